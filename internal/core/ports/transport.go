package ports

import "github.com/opsdesk/desk-agent/internal/core/domain"

// ConnState is the realtime connection lifecycle state.
type ConnState int32

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateConnected
	StateReconnecting
)

func (s ConnState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	default:
		return "disconnected"
	}
}

// Transport is the persistent realtime connection to the backend. A single
// instance owns at most one live socket; no other component may open one.
type Transport interface {
	// Connect starts the connection machine for the given token. It is
	// idempotent: a no-op while already connected or connecting.
	Connect(token string)

	// Disconnect closes the socket with the normal close code, suppressing
	// reconnection. Safe to call when already disconnected.
	Disconnect()

	// Send transmits a frame when connected; otherwise the frame is dropped
	// (never queued) and domain.ErrNotConnected is returned.
	Send(frame domain.Frame) error

	// On registers a subscriber for a frame type (or domain.FrameAll) and
	// returns its disposer. Subscribers run in registration order; a panic
	// in one must not suppress the others.
	On(frameType string, fn func(domain.Frame)) (unsubscribe func())

	// State reports the current lifecycle state.
	State() ConnState

	// IsConnected is shorthand for State() == StateConnected.
	IsConnected() bool

	// InstanceID identifies this client instance for the lifetime of the
	// process, across reconnects.
	InstanceID() string
}
