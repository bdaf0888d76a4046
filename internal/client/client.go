package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/zhouzirui/chat-app/backend/internal/model/chat"
)

var (
	ErrInvalidCredentials = errors.New("incorrect username or password")
	ErrPasswordMismatch   = errors.New("passwords do not match")
	ErrUsernameTaken      = errors.New("username already exists")
	ErrLoginRequired      = errors.New("login required")
	ErrUnauthorized       = errors.New("session expired")
)

// StatusError reports an unexpected HTTP status.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.Code, e.Body)
}

// Message returns the text the views show for err.
func Message(err error) string {
	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return "Incorrect Username or Password"
	case errors.Is(err, ErrPasswordMismatch):
		return "Password in both the fields should be same!"
	case errors.Is(err, ErrUsernameTaken):
		return "Username already exists!"
	case errors.Is(err, ErrLoginRequired), errors.Is(err, ErrUnauthorized):
		return "Please log in."
	case err == nil:
		return ""
	default:
		return err.Error()
	}
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithDialer replaces the websocket dialer.
func WithDialer(d *websocket.Dialer) Option {
	return func(c *Client) { c.dialer = d }
}

// WithClock overrides the time source for local message echoes.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// Client talks to the chat backend on behalf of one user.
type Client struct {
	base   *url.URL
	tokens TokenStore
	http   *http.Client
	dialer *websocket.Dialer
	now    func() time.Time
}

// New creates a client for the backend at baseURL.
func New(baseURL string, tokens TokenStore, opts ...Option) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("base url must be http or https, got %q", baseURL)
	}

	c := &Client{
		base:   base,
		tokens: tokens,
		http:   &http.Client{Timeout: 30 * time.Second},
		dialer: websocket.DefaultDialer,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) endpoint(path string) string {
	u := *c.base
	u.Path = strings.TrimRight(u.Path, "/") + path
	return u.String()
}

// Login exchanges credentials for a token and stores it.
func (c *Client) Login(ctx context.Context, username, password string) error {
	form := url.Values{"username": {username}, "password": {password}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("/login"), strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("login request: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized:
		return ErrInvalidCredentials
	default:
		return statusError(resp)
	}

	var payload struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return fmt.Errorf("decode login response: %w", err)
	}
	if payload.AccessToken == "" {
		return errors.New("login response carried no access token")
	}
	return c.tokens.Save(payload.AccessToken)
}

// Signup registers an account. confirm must equal password.
func (c *Client) Signup(ctx context.Context, username, password, confirm string) error {
	if confirm != password {
		return ErrPasswordMismatch
	}

	body, err := json.Marshal(map[string]string{"username": username, "password": password})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("/signup"), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("signup request: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return nil
	case http.StatusBadRequest:
		return ErrUsernameTaken
	default:
		return statusError(resp)
	}
}

// Logout forgets the stored token.
func (c *Client) Logout() error {
	return c.tokens.Clear()
}

// RequireToken returns the stored token or ErrLoginRequired.
func (c *Client) RequireToken() (string, error) {
	token, err := c.tokens.Load()
	if err != nil {
		return "", err
	}
	if token == "" {
		return "", ErrLoginRequired
	}
	return token, nil
}

// History fetches the conversation. A 401 clears the stored token.
func (c *Client) History(ctx context.Context) ([]chat.Record, error) {
	token, err := c.RequireToken()
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint("/chats"), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("history request: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized:
		if err := c.tokens.Clear(); err != nil {
			return nil, err
		}
		return nil, ErrUnauthorized
	default:
		return nil, statusError(resp)
	}

	var records []chat.Record
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		return nil, fmt.Errorf("decode history: %w", err)
	}
	return records, nil
}

// Conversation is an open chat socket.
type Conversation struct {
	conn  *websocket.Conn
	token string
	now   func() time.Time
}

// Connect opens the chat socket.
func (c *Client) Connect(ctx context.Context) (*Conversation, error) {
	token, err := c.RequireToken()
	if err != nil {
		return nil, err
	}

	u := *c.base
	if u.Scheme == "https" {
		u.Scheme = "wss"
	} else {
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/chat"

	conn, _, err := c.dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("dial chat socket: %w", err)
	}
	return &Conversation{conn: conn, token: token, now: c.now}, nil
}

// Send writes a message and returns the frame to display locally.
func (c *Conversation) Send(text string) (chat.OutboundFrame, error) {
	if err := c.conn.WriteJSON(chat.InboundFrame{Message: text, AccessToken: c.token}); err != nil {
		return chat.OutboundFrame{}, fmt.Errorf("send message: %w", err)
	}
	return chat.OutboundFrame{Message: text, Time: chat.FormatTime(c.now())}, nil
}

// Receive blocks until the next server frame.
func (c *Conversation) Receive() (chat.OutboundFrame, error) {
	var frame chat.OutboundFrame
	if err := c.conn.ReadJSON(&frame); err != nil {
		return chat.OutboundFrame{}, err
	}
	return frame, nil
}

// Close sends a normal close frame and closes the socket.
func (c *Conversation) Close() error {
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return c.conn.Close()
}

func statusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
	return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
}
