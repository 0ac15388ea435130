package ports

import (
	"context"

	"github.com/opsdesk/desk-agent/internal/core/domain"
)

// NotificationSource is one of the three independently polled feeds. The
// aggregator treats every source uniformly through this interface.
type NotificationSource interface {
	// Kind identifies the feed; items returned by List are tagged with it.
	Kind() domain.SourceKind

	// List fetches the current snapshot of the feed.
	// Returns domain.ErrUnauthorized when the token is rejected.
	List(ctx context.Context, token string) ([]domain.NotificationItem, error)

	// MarkRead flags a single item as read on the backend.
	MarkRead(ctx context.Context, token string, id int64) error
}

// ApprovalAPI extends the approval feed with the inline actions only that
// source supports.
type ApprovalAPI interface {
	NotificationSource

	// Respond approves or rejects a pending request.
	Respond(ctx context.Context, token string, id int64, approve bool, comment string) error

	// Dismiss removes a single approval notification.
	Dismiss(ctx context.Context, token string, id int64) error

	// ClearAll removes every approval notification.
	ClearAll(ctx context.Context, token string) error
}
