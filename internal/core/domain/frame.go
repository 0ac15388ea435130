package domain

import "encoding/json"

// Frame is the tagged envelope exchanged over the realtime connection.
// Inbound payloads stay raw until a subscriber decodes them; a frame one
// subscriber cannot parse must not poison the others.
type Frame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Inbound frame types pushed by the backend.
const (
	FrameNewMessage         = "new_message"
	FrameNotification       = "notification"
	FrameNewApprovalRequest = "new_approval_request"
	FrameApprovalResponse   = "approval_response"
	FramePong               = "pong"

	// FrameAll is the wildcard channel: subscribers on it receive every
	// inbound frame after the type-specific subscribers have run.
	FrameAll = "all"
)

// FramePing is the outbound heartbeat frame type.
const FramePing = "ping"
