package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/zhouzirui/chat-app/backend/internal/config"
	"github.com/zhouzirui/chat-app/backend/internal/model/chat"
	"github.com/zhouzirui/chat-app/backend/internal/model/user"
	"github.com/zhouzirui/chat-app/backend/internal/store"
)

var (
	ErrInvalidInput       = errors.New("username and password are required")
	ErrUsernameTaken      = errors.New("username already registered")
	ErrInvalidCredentials = errors.New("incorrect username or password")
	ErrInvalidToken       = errors.New("could not validate credentials")
)

// TokenType is the scheme clients send tokens with.
const TokenType = "bearer"

// UserStore is the persistence the auth service depends on.
type UserStore interface {
	CreateUser(ctx context.Context, username, hashedPassword string) (user.User, error)
	GetUser(ctx context.Context, username string) (user.User, error)
}

// Token is returned to clients after a successful login.
type Token struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// Option customizes a Service.
type Option func(*Service)

// WithClock overrides the time source used for token timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithBcryptCost overrides the password hashing cost.
func WithBcryptCost(cost int) Option {
	return func(s *Service) { s.cost = cost }
}

// Service handles account registration and bearer tokens.
type Service struct {
	users  UserStore
	secret []byte
	expiry time.Duration
	cost   int
	now    func() time.Time
}

// NewService builds an auth service backed by users.
func NewService(users UserStore, cfg config.AuthConfig, opts ...Option) *Service {
	s := &Service{
		users:  users,
		secret: []byte(cfg.SecretKey),
		expiry: cfg.TokenExpiry,
		cost:   bcrypt.DefaultCost,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.expiry <= 0 {
		s.expiry = 15 * time.Minute
	}
	return s
}

// Signup registers a new account.
func (s *Service) Signup(ctx context.Context, username, password string) (user.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return user.User{}, ErrInvalidInput
	}
	// The assistant participant shares every user's history.
	if strings.EqualFold(username, chat.Assistant) {
		return user.User{}, ErrUsernameTaken
	}

	if _, err := s.users.GetUser(ctx, username); err == nil {
		return user.User{}, ErrUsernameTaken
	} else if !errors.Is(err, store.ErrUserNotFound) {
		return user.User{}, fmt.Errorf("lookup user: %w", err)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return user.User{}, fmt.Errorf("hash password: %w", err)
	}

	created, err := s.users.CreateUser(ctx, username, string(hashed))
	if errors.Is(err, store.ErrUserExists) {
		return user.User{}, ErrUsernameTaken
	}
	if err != nil {
		return user.User{}, fmt.Errorf("create user: %w", err)
	}
	return created, nil
}

// Authenticate verifies a username and password pair.
func (s *Service) Authenticate(ctx context.Context, username, password string) (user.User, error) {
	username = strings.TrimSpace(username)
	u, err := s.users.GetUser(ctx, username)
	if errors.Is(err, store.ErrUserNotFound) {
		return user.User{}, ErrInvalidCredentials
	}
	if err != nil {
		return user.User{}, fmt.Errorf("lookup user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.HashedPassword), []byte(password)); err != nil {
		return user.User{}, ErrInvalidCredentials
	}
	return u, nil
}

// IssueToken signs an access token for username.
func (s *Service) IssueToken(username string) (Token, error) {
	now := s.now()
	claims := jwt.RegisteredClaims{
		Subject:   username,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.expiry)),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return Token{}, fmt.Errorf("sign token: %w", err)
	}
	return Token{AccessToken: signed, TokenType: TokenType}, nil
}

// ParseToken validates raw and returns the username it was issued to.
func (s *Service) ParseToken(raw string) (string, error) {
	if raw == "" {
		return "", ErrInvalidToken
	}

	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return "", ErrInvalidToken
	}
	if claims.Subject == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}
