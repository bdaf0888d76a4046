package main

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/zhouzirui/chat-app/backend/internal/model/chat"
)

// chatView prints assistant turns on the left and the user's on the right.
type chatView struct {
	mu    sync.Mutex
	out   io.Writer
	width int
}

func (v *chatView) assistant(frame chat.OutboundFrame) {
	v.mu.Lock()
	defer v.mu.Unlock()
	writeTurn(v.out, frame.Message, frame.Time, false, v.width)
}

func (v *chatView) user(frame chat.OutboundFrame) {
	v.mu.Lock()
	defer v.mu.Unlock()
	writeTurn(v.out, frame.Message, frame.Time, true, v.width)
}

func renderHistory(out io.Writer, records []chat.Record, width int) {
	for _, r := range records {
		writeTurn(out, r.Message, r.Timestamp, !r.FromAssistant(), width)
	}
}

func writeTurn(out io.Writer, message, stamp string, rightAlign bool, width int) {
	for _, line := range []string{message, stamp} {
		if rightAlign {
			fmt.Fprintln(out, padLeft(line, width))
		} else {
			fmt.Fprintln(out, line)
		}
	}
	fmt.Fprintln(out)
}

func padLeft(s string, width int) string {
	n := len([]rune(s))
	if n >= width {
		return s
	}
	return strings.Repeat(" ", width-n) + s
}
