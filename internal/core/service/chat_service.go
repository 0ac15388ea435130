package service

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/opsdesk/desk-agent/internal/core/domain"
	"github.com/opsdesk/desk-agent/internal/core/ports"
)

// ChatTracker derives per-conversation unread counts by comparing the
// last-read marker against message timestamps pushed since the last
// mark-read. It keeps no message bodies, only counters.
type ChatTracker struct {
	log zerolog.Logger

	mu       sync.Mutex
	lastRead map[int64]time.Time
	unread   map[int64]int
}

// NewChatTracker creates an empty tracker.
func NewChatTracker(log zerolog.Logger) *ChatTracker {
	return &ChatTracker{
		log:      log,
		lastRead: make(map[int64]time.Time),
		unread:   make(map[int64]int),
	}
}

// Attach subscribes the tracker to incoming chat frames and returns the
// disposer.
func (t *ChatTracker) Attach(transport ports.Transport) func() {
	return transport.On(domain.FrameNewMessage, t.handleFrame)
}

// MarkConversationRead records the read marker and resets the counter.
func (t *ChatTracker) MarkConversationRead(conversationID int64, at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastRead[conversationID] = at
	delete(t.unread, conversationID)
}

// Unread returns the counter for one conversation.
func (t *ChatTracker) Unread(conversationID int64) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.unread[conversationID]
}

// UnreadTotal sums unread messages across all conversations.
func (t *ChatTracker) UnreadTotal() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	total := 0
	for _, n := range t.unread {
		total += n
	}
	return total
}

// Reset forgets all counters and markers, for logout.
func (t *ChatTracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastRead = make(map[int64]time.Time)
	t.unread = make(map[int64]int)
}

func (t *ChatTracker) handleFrame(frame domain.Frame) {
	var msg domain.ChatMessage
	if err := json.Unmarshal(frame.Payload, &msg); err != nil || msg.ConversationID == 0 {
		t.log.Debug().Msg("unparseable chat push dropped")
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if !msg.SentAt.After(t.lastRead[msg.ConversationID]) {
		return
	}
	t.unread[msg.ConversationID]++
}
