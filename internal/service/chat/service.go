package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/zhouzirui/chat-app/backend/internal/model/chat"
	"github.com/zhouzirui/chat-app/backend/internal/service/ai"
)

var (
	ErrEmptyMessage         = errors.New("message is empty")
	ErrAssistantUnavailable = errors.New("assistant unavailable")
)

// Store persists conversation records.
type Store interface {
	SaveChat(ctx context.Context, record chat.Record) (chat.Record, error)
	ListChats(ctx context.Context, username string) ([]chat.Record, error)
}

// Reply is the assistant turn handed back to the socket.
type Reply struct {
	Message string
	Time    string
}

// Option customizes a Service.
type Option func(*Service)

// WithClock overrides the time source for message timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLogger sets the service logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// Service encapsulates conversation state management.
type Service struct {
	store     Store
	responder ai.Responder
	now       func() time.Time
	logger    *zap.Logger
}

// NewService wires the chat service. A nil responder leaves the assistant unavailable.
func NewService(store Store, responder ai.Responder, opts ...Option) *Service {
	s := &Service{
		store:     store,
		responder: responder,
		now:       time.Now,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Stamp returns the current time in display form.
func (s *Service) Stamp() string {
	return chat.FormatTime(s.now())
}

// History returns every turn the user took part in, oldest first.
func (s *Service) History(ctx context.Context, username string) ([]chat.Record, error) {
	records, err := s.store.ListChats(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	return records, nil
}

// Exchange stores the user's message, asks the assistant and stores its answer.
func (s *Service) Exchange(ctx context.Context, username, text string) (Reply, error) {
	if strings.TrimSpace(text) == "" {
		return Reply{}, ErrEmptyMessage
	}

	stamp := s.Stamp()

	if _, err := s.store.SaveChat(ctx, chat.Record{
		Sender:    username,
		Receiver:  chat.Assistant,
		Message:   text,
		Timestamp: stamp,
	}); err != nil {
		return Reply{}, fmt.Errorf("save user message: %w", err)
	}

	if s.responder == nil {
		return Reply{}, ErrAssistantUnavailable
	}

	history, err := s.store.ListChats(ctx, username)
	if err != nil {
		return Reply{}, fmt.Errorf("load history: %w", err)
	}

	answer, err := s.responder.Reply(ctx, history)
	if err != nil {
		return Reply{}, fmt.Errorf("generate reply: %w", err)
	}

	if _, err := s.store.SaveChat(ctx, chat.Record{
		Sender:    chat.Assistant,
		Receiver:  username,
		Message:   answer,
		Timestamp: stamp,
	}); err != nil {
		return Reply{}, fmt.Errorf("save assistant message: %w", err)
	}

	s.logger.Debug("exchange complete",
		zap.String("user", username),
		zap.Int("history", len(history)),
		zap.Int("reply_len", len(answer)),
	)

	return Reply{Message: answer, Time: stamp}, nil
}
