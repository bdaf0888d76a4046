package chat_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/zhouzirui/chat-app/backend/internal/model/chat"
	chatservice "github.com/zhouzirui/chat-app/backend/internal/service/chat"
	"github.com/zhouzirui/chat-app/backend/internal/store"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type scriptedResponder struct {
	reply   string
	err     error
	history []chat.Record
}

func (r *scriptedResponder) Reply(_ context.Context, history []chat.Record) (string, error) {
	r.history = history
	return r.reply, r.err
}

var fixedNow = time.Date(2024, time.March, 9, 14, 5, 0, 0, time.UTC)

func newService(t *testing.T, responder *scriptedResponder) (*chatservice.Service, *store.Store) {
	t.Helper()
	st, err := store.Open(context.Background(), filepath.Join(t.TempDir(), "chat.db"))
	if err != nil {
		t.Fatalf("store.Open err: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	opts := []chatservice.Option{chatservice.WithClock(func() time.Time { return fixedNow })}
	if responder == nil {
		return chatservice.NewService(st, nil, opts...), st
	}
	return chatservice.NewService(st, responder, opts...), st
}

func TestExchangePersistsBothTurns(t *testing.T) {
	responder := &scriptedResponder{reply: "Hello Alice"}
	svc, _ := newService(t, responder)
	ctx := context.Background()

	reply, err := svc.Exchange(ctx, "alice", "hi")
	if err != nil {
		t.Fatalf("Exchange err: %v", err)
	}
	if reply.Message != "Hello Alice" {
		t.Fatalf("unexpected reply: %q", reply.Message)
	}
	if reply.Time != "02:05 PM | Mar 09" {
		t.Fatalf("unexpected time: %q", reply.Time)
	}

	if len(responder.history) != 1 || responder.history[0].Message != "hi" {
		t.Fatalf("responder should see the new message, got %+v", responder.history)
	}

	history, err := svc.History(ctx, "alice")
	if err != nil {
		t.Fatalf("History err: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 records, got %d", len(history))
	}
	if history[0].Sender != "alice" || history[0].Receiver != chat.Assistant {
		t.Fatalf("unexpected user record: %+v", history[0])
	}
	if history[1].Sender != chat.Assistant || history[1].Receiver != "alice" {
		t.Fatalf("unexpected assistant record: %+v", history[1])
	}
	if history[1].Timestamp != reply.Time {
		t.Fatalf("timestamps differ: %q vs %q", history[1].Timestamp, reply.Time)
	}
}

func TestExchangeSendsFullHistory(t *testing.T) {
	responder := &scriptedResponder{reply: "ok"}
	svc, _ := newService(t, responder)
	ctx := context.Background()

	for _, text := range []string{"one", "two"} {
		if _, err := svc.Exchange(ctx, "alice", text); err != nil {
			t.Fatalf("Exchange(%q) err: %v", text, err)
		}
	}

	if len(responder.history) != 3 {
		t.Fatalf("expected 3 records in second call, got %d", len(responder.history))
	}
}

func TestExchangeEmptyMessage(t *testing.T) {
	svc, st := newService(t, &scriptedResponder{reply: "ok"})
	ctx := context.Background()

	if _, err := svc.Exchange(ctx, "alice", "   "); !errors.Is(err, chatservice.ErrEmptyMessage) {
		t.Fatalf("expected ErrEmptyMessage, got %v", err)
	}

	records, _ := st.ListChats(ctx, "alice")
	if len(records) != 0 {
		t.Fatalf("expected nothing persisted, got %d", len(records))
	}
}

func TestExchangeResponderFailureKeepsUserMessage(t *testing.T) {
	svc, st := newService(t, &scriptedResponder{err: errors.New("rate limited")})
	ctx := context.Background()

	if _, err := svc.Exchange(ctx, "alice", "hi"); err == nil {
		t.Fatal("expected error from responder")
	}

	records, _ := st.ListChats(ctx, "alice")
	if len(records) != 1 || records[0].Sender != "alice" {
		t.Fatalf("expected only the user message, got %+v", records)
	}
}

func TestExchangeWithoutResponder(t *testing.T) {
	svc, _ := newService(t, nil)

	if _, err := svc.Exchange(context.Background(), "alice", "hi"); !errors.Is(err, chatservice.ErrAssistantUnavailable) {
		t.Fatalf("expected ErrAssistantUnavailable, got %v", err)
	}
}

func TestHistoryIsolatedPerUser(t *testing.T) {
	svc, _ := newService(t, &scriptedResponder{reply: "ok"})
	ctx := context.Background()

	if _, err := svc.Exchange(ctx, "alice", "hi"); err != nil {
		t.Fatalf("Exchange err: %v", err)
	}

	history, err := svc.History(ctx, "bob")
	if err != nil {
		t.Fatalf("History err: %v", err)
	}
	if len(history) != 0 {
		t.Fatalf("bob should see no records, got %d", len(history))
	}
}
