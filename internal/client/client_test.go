package client_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/zhouzirui/chat-app/backend/internal/client"
	"github.com/zhouzirui/chat-app/backend/internal/config"
	"github.com/zhouzirui/chat-app/backend/internal/handler"
	chatHandler "github.com/zhouzirui/chat-app/backend/internal/handler/chat"
	"github.com/zhouzirui/chat-app/backend/internal/model/chat"
	authService "github.com/zhouzirui/chat-app/backend/internal/service/auth"
	chatService "github.com/zhouzirui/chat-app/backend/internal/service/chat"
	"github.com/zhouzirui/chat-app/backend/internal/store"
)

type upperResponder struct{}

func (upperResponder) Reply(_ context.Context, history []chat.Record) (string, error) {
	return "you said: " + history[len(history)-1].Message, nil
}

func newBackend(t *testing.T) *httptest.Server {
	t.Helper()
	st, err := store.Open(context.Background(), filepath.Join(t.TempDir(), "chat.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	authSvc := authService.NewService(st, config.AuthConfig{SecretKey: "secret", TokenExpiry: time.Minute}, authService.WithBcryptCost(bcrypt.MinCost))
	chatSvc := chatService.NewService(st, upperResponder{})
	router := handler.NewRouter(config.ServerConfig{AllowedOrigins: []string{"*"}}, authSvc, chatSvc, chatHandler.NewHub(), zap.NewNop())

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

func newClient(t *testing.T, baseURL string, tokens client.TokenStore) *client.Client {
	t.Helper()
	c, err := client.New(baseURL, tokens)
	require.NoError(t, err)
	return c
}

func TestLoginStoresToken(t *testing.T) {
	srv := newBackend(t)
	tokens := &client.MemoryTokenStore{}
	c := newClient(t, srv.URL, tokens)
	ctx := context.Background()

	require.NoError(t, c.Signup(ctx, "alice", "pw", "pw"))
	require.NoError(t, c.Login(ctx, "alice", "pw"))

	token, err := c.RequireToken()
	require.NoError(t, err)
	assert.NotEmpty(t, token)
}

func TestLoginWrongPassword(t *testing.T) {
	srv := newBackend(t)
	tokens := &client.MemoryTokenStore{}
	c := newClient(t, srv.URL, tokens)
	ctx := context.Background()

	require.NoError(t, c.Signup(ctx, "alice", "pw", "pw"))

	err := c.Login(ctx, "alice", "nope")
	assert.ErrorIs(t, err, client.ErrInvalidCredentials)
	assert.Equal(t, "Incorrect Username or Password", client.Message(err))

	_, err = c.RequireToken()
	assert.ErrorIs(t, err, client.ErrLoginRequired)
}

func TestSignupPasswordMismatchSendsNothing(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	c := newClient(t, srv.URL, &client.MemoryTokenStore{})
	err := c.Signup(context.Background(), "alice", "pw", "pW")

	assert.ErrorIs(t, err, client.ErrPasswordMismatch)
	assert.Equal(t, "Password in both the fields should be same!", client.Message(err))
	assert.Zero(t, calls.Load())
}

func TestSignupUsernameTaken(t *testing.T) {
	srv := newBackend(t)
	c := newClient(t, srv.URL, &client.MemoryTokenStore{})
	ctx := context.Background()

	require.NoError(t, c.Signup(ctx, "alice", "pw", "pw"))
	err := c.Signup(ctx, "alice", "pw2", "pw2")
	assert.ErrorIs(t, err, client.ErrUsernameTaken)
	assert.Equal(t, "Username already exists!", client.Message(err))
}

func TestHistoryUnauthorizedClearsToken(t *testing.T) {
	srv := newBackend(t)
	tokens := &client.MemoryTokenStore{}
	require.NoError(t, tokens.Save("stale-token"))
	c := newClient(t, srv.URL, tokens)

	_, err := c.History(context.Background())
	assert.ErrorIs(t, err, client.ErrUnauthorized)

	stored, err := tokens.Load()
	require.NoError(t, err)
	assert.Empty(t, stored)
}

func TestRouteGuardWithoutToken(t *testing.T) {
	c := newClient(t, "http://127.0.0.1:1", &client.MemoryTokenStore{})

	_, err := c.History(context.Background())
	assert.ErrorIs(t, err, client.ErrLoginRequired)

	_, err = c.Connect(context.Background())
	assert.ErrorIs(t, err, client.ErrLoginRequired)
}

func TestConversationRoundTrip(t *testing.T) {
	srv := newBackend(t)
	stamp := time.Date(2024, time.May, 1, 9, 15, 0, 0, time.UTC)
	c, err := client.New(srv.URL, &client.MemoryTokenStore{}, client.WithClock(func() time.Time { return stamp }))
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, c.Signup(ctx, "alice", "pw", "pw"))
	require.NoError(t, c.Login(ctx, "alice", "pw"))

	conv, err := c.Connect(ctx)
	require.NoError(t, err)
	defer conv.Close()

	echo, err := conv.Send("hello")
	require.NoError(t, err)
	assert.Equal(t, chat.OutboundFrame{Message: "hello", Time: "09:15 AM | May 01"}, echo)

	reply, err := conv.Receive()
	require.NoError(t, err)
	assert.Equal(t, "you said: hello", reply.Message)

	history, err := c.History(ctx)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.False(t, history[0].FromAssistant())
	assert.True(t, history[1].FromAssistant())
}

func TestLogoutClearsToken(t *testing.T) {
	tokens := &client.MemoryTokenStore{}
	require.NoError(t, tokens.Save("token"))
	c := newClient(t, "http://localhost:8000", tokens)

	require.NoError(t, c.Logout())
	_, err := c.RequireToken()
	assert.ErrorIs(t, err, client.ErrLoginRequired)
}

func TestNewRejectsBadURL(t *testing.T) {
	_, err := client.New("ftp://example.com", &client.MemoryTokenStore{})
	assert.Error(t, err)
}
