package domain

import "time"

// SourceKind discriminates the three independent notification feeds.
type SourceKind string

const (
	SourceSystem   SourceKind = "system"
	SourceTask     SourceKind = "task"
	SourceApproval SourceKind = "approval"

	// SourceChat is push-only: chat messages arrive over the realtime
	// connection but have no polled feed behind them.
	SourceChat SourceKind = "chat"
)

// SourceKinds lists the polled feeds in merge order. SourceChat is absent on
// purpose; it only ever appears in pending deltas.
var SourceKinds = []SourceKind{SourceSystem, SourceTask, SourceApproval}

// CompositeKey uniquely identifies a notification across feeds. Backend IDs
// are unique only within their own feed.
type CompositeKey struct {
	Source SourceKind
	ID     int64
}

// ApprovalStatus is the lifecycle state of an approval request.
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
)

// ApprovalRequest is the embedded payload of approval notifications. It
// supports inline respond actions directly from the feed.
type ApprovalRequest struct {
	ID            int64          `json:"id"`
	Status        ApprovalStatus `json:"status"`
	RequesterID   string         `json:"requester_id"`
	RequesterName string         `json:"requester_name,omitempty"`
	ApproverID    string         `json:"approver_id,omitempty"`
	ApproverName  string         `json:"approver_name,omitempty"`
	Subject       string         `json:"subject,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	RespondedAt   *time.Time     `json:"responded_at,omitempty"`
}

// NotificationItem is the normalised union of the three feed variants.
// Task items carry AssignmentID/ActionURL; approval items embed the request.
type NotificationItem struct {
	ID        int64      `json:"id"`
	Source    SourceKind `json:"source"`
	Title     string     `json:"title"`
	Message   string     `json:"message"`
	IsRead    bool       `json:"is_read"`
	CreatedAt time.Time  `json:"created_at"`

	AssignmentID int64            `json:"assignment_id,omitempty"`
	ActionURL    string           `json:"action_url,omitempty"`
	Approval     *ApprovalRequest `json:"approval_request,omitempty"`
}

// Key returns the composite identity of the item.
func (n NotificationItem) Key() CompositeKey {
	return CompositeKey{Source: n.Source, ID: n.ID}
}
