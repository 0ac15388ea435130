package domain

import "time"

// Conversation is a two-participant chat thread. Unread counts are derived by
// comparing LastReadAt against message timestamps received since the last
// mark-read, not stored by the backend.
type Conversation struct {
	ID         int64     `json:"id"`
	PeerID     string    `json:"peer_id"`
	PeerName   string    `json:"peer_name,omitempty"`
	LastReadAt time.Time `json:"last_read_at"`
}

// ChatMessage is a single message within a conversation.
type ChatMessage struct {
	ID             int64     `json:"id"`
	ConversationID int64     `json:"conversation_id"`
	SenderID       string    `json:"sender_id"`
	Body           string    `json:"body"`
	SentAt         time.Time `json:"sent_at"`
}
