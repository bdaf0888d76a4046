package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/chat-app/backend/internal/model/chat"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "chat.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCreateAndGetUser(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	created, err := s.CreateUser(ctx, "alice", "hash")
	require.NoError(t, err)
	assert.NotZero(t, created.ID)

	got, err := s.GetUser(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, created, got)
}

func TestCreateUserDuplicate(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.CreateUser(ctx, "alice", "hash")
	require.NoError(t, err)

	_, err = s.CreateUser(ctx, "alice", "other")
	assert.True(t, errors.Is(err, ErrUserExists), "got %v", err)
}

func TestGetUserNotFound(t *testing.T) {
	s := openTestStore(t)

	_, err := s.GetUser(context.Background(), "ghost")
	assert.True(t, errors.Is(err, ErrUserNotFound), "got %v", err)
}

func TestListChatsFiltersAndOrders(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	records := []chat.Record{
		{Sender: "alice", Receiver: chat.Assistant, Message: "hi", Timestamp: "10:00 AM | Jan 01"},
		{Sender: "bob", Receiver: chat.Assistant, Message: "yo", Timestamp: "10:01 AM | Jan 01"},
		{Sender: chat.Assistant, Receiver: "alice", Message: "hello alice", Timestamp: "10:00 AM | Jan 01"},
		{Sender: chat.Assistant, Receiver: "bob", Message: "hello bob", Timestamp: "10:01 AM | Jan 01"},
	}
	for _, r := range records {
		saved, err := s.SaveChat(ctx, r)
		require.NoError(t, err)
		assert.NotZero(t, saved.ID)
	}

	got, err := s.ListChats(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "hi", got[0].Message)
	assert.Equal(t, "hello alice", got[1].Message)
	assert.Less(t, got[0].ID, got[1].ID)
}

func TestListChatsEmpty(t *testing.T) {
	s := openTestStore(t)

	got, err := s.ListChats(context.Background(), "nobody")
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chat.db")
	ctx := context.Background()

	first, err := Open(ctx, path)
	require.NoError(t, err)
	_, err = first.CreateUser(ctx, "alice", "hash")
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := Open(ctx, path)
	require.NoError(t, err)
	defer second.Close()

	_, err = second.GetUser(ctx, "alice")
	require.NoError(t, err)
}
