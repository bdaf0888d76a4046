package main

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/zhouzirui/chat-app/backend/internal/client"
	"github.com/zhouzirui/chat-app/backend/internal/model/chat"
)

func TestRenderHistoryAlignsBySender(t *testing.T) {
	var buf bytes.Buffer
	renderHistory(&buf, []chat.Record{
		{Sender: "alice", Message: "hi", Timestamp: "10:00 AM | Jan 01"},
		{Sender: chat.Assistant, Message: "hello", Timestamp: "10:00 AM | Jan 01"},
	}, 20)

	lines := strings.Split(buf.String(), "\n")
	if lines[0] != "                  hi" {
		t.Fatalf("user line should be right aligned, got %q", lines[0])
	}
	if lines[3] != "hello" {
		t.Fatalf("assistant line should be left aligned, got %q", lines[3])
	}
}

func TestPadLeftKeepsLongLines(t *testing.T) {
	if got := padLeft("abcdef", 3); got != "abcdef" {
		t.Fatalf("unexpected %q", got)
	}
}

func TestViewError(t *testing.T) {
	if got := viewError(client.ErrUnauthorized).Error(); !strings.Contains(got, "chatcli login") {
		t.Fatalf("unexpected %q", got)
	}
	if got := viewError(client.ErrUsernameTaken).Error(); got != "Username already exists!" {
		t.Fatalf("unexpected %q", got)
	}
	if got := viewError(errors.New("boom")).Error(); got != "boom" {
		t.Fatalf("unexpected %q", got)
	}
}
