package domain

import "errors"

var (
	// ErrInvalidCredentials is returned when a login attempt is rejected by the backend.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrUnauthorized is returned when the backend rejects the bearer token (401).
	// The session treats it as a signal to purge persisted credentials.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrNotConnected is returned by Send when the realtime connection is not established.
	// Frames are dropped, never queued.
	ErrNotConnected = errors.New("realtime connection not established")

	// ErrNotFound is returned when the backend reports a missing resource.
	ErrNotFound = errors.New("not found")

	// ErrConfirmationRequired is returned by destructive bulk operations that were
	// invoked without an explicit confirmation.
	ErrConfirmationRequired = errors.New("confirmation required")
)
