package service

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/opsdesk/desk-agent/internal/core/domain"
)

func pushMessage(t *stubTransport, id, conv int64, sentAt time.Time) {
	payload, _ := json.Marshal(domain.ChatMessage{
		ID: id, ConversationID: conv, SenderID: "u2", Body: "hi", SentAt: sentAt,
	})
	t.push(domain.Frame{Type: domain.FrameNewMessage, Payload: payload})
}

func TestChatTracker_CountsSinceLastRead(t *testing.T) {
	transport := newStubTransport()
	tracker := NewChatTracker(zerolog.Nop())
	defer tracker.Attach(transport)()

	now := time.Now()
	pushMessage(transport, 1, 10, now)
	pushMessage(transport, 2, 10, now.Add(time.Second))
	pushMessage(transport, 3, 20, now)

	if got := tracker.Unread(10); got != 2 {
		t.Fatalf("conversation 10: expected 2 unread, got %d", got)
	}
	if got := tracker.UnreadTotal(); got != 3 {
		t.Fatalf("expected 3 total unread, got %d", got)
	}

	tracker.MarkConversationRead(10, now.Add(time.Minute))
	if got := tracker.Unread(10); got != 0 {
		t.Fatalf("mark-read should reset the counter, got %d", got)
	}
	if got := tracker.UnreadTotal(); got != 1 {
		t.Fatalf("other conversations must be untouched, got %d", got)
	}

	// Messages older than the read marker do not count.
	pushMessage(transport, 4, 10, now.Add(30*time.Second))
	if got := tracker.Unread(10); got != 0 {
		t.Fatalf("stale message counted, got %d", got)
	}
}

func TestChatTracker_MalformedPushIgnored(t *testing.T) {
	transport := newStubTransport()
	tracker := NewChatTracker(zerolog.Nop())
	defer tracker.Attach(transport)()

	transport.push(domain.Frame{Type: domain.FrameNewMessage, Payload: json.RawMessage(`{`)})
	if got := tracker.UnreadTotal(); got != 0 {
		t.Fatalf("malformed push counted: %d", got)
	}
}

func TestChatTracker_Reset(t *testing.T) {
	transport := newStubTransport()
	tracker := NewChatTracker(zerolog.Nop())
	defer tracker.Attach(transport)()

	pushMessage(transport, 1, 10, time.Now())
	tracker.Reset()
	if got := tracker.UnreadTotal(); got != 0 {
		t.Fatalf("reset should drop all counters, got %d", got)
	}
}
