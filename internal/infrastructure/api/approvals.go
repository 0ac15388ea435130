package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/opsdesk/desk-agent/internal/core/domain"
	"github.com/opsdesk/desk-agent/internal/core/ports"
)

// approvalDTO is an approval-request notification on the wire: the request
// object itself, plus the read flag for the notification around it.
type approvalDTO struct {
	domain.ApprovalRequest
	IsRead bool `json:"is_read"`
}

func (d approvalDTO) toDomain() domain.NotificationItem {
	req := d.ApprovalRequest
	return domain.NotificationItem{
		ID:        req.ID,
		Source:    domain.SourceApproval,
		Title:     "Approval request",
		Message:   req.Subject,
		IsRead:    d.IsRead,
		CreatedAt: req.CreatedAt,
		Approval:  &req,
	}
}

// ApprovalSource is the approval-request feed: the only source that supports
// inline respond, dismiss and clear-all actions.
type ApprovalSource struct{ c *Client }

// Approvals returns the approval-request feed bound to this client.
func (c *Client) Approvals() *ApprovalSource { return &ApprovalSource{c: c} }

var _ ports.ApprovalAPI = (*ApprovalSource)(nil)

func (a *ApprovalSource) Kind() domain.SourceKind { return domain.SourceApproval }

func (a *ApprovalSource) List(ctx context.Context, token string) ([]domain.NotificationItem, error) {
	var raw []approvalDTO
	if err := a.c.do(ctx, http.MethodGet, "/approvals/requests", token, nil, &raw); err != nil {
		return nil, err
	}
	items := make([]domain.NotificationItem, 0, len(raw))
	for _, d := range raw {
		items = append(items, d.toDomain())
	}
	return items, nil
}

func (a *ApprovalSource) MarkRead(ctx context.Context, token string, id int64) error {
	return a.c.do(ctx, http.MethodPost, fmt.Sprintf("/approvals/requests/%d/read", id), token, nil, nil)
}

type respondRequest struct {
	Approved bool   `json:"approved"`
	Comment  string `json:"comment,omitempty"`
}

// Respond approves or rejects a pending request.
func (a *ApprovalSource) Respond(ctx context.Context, token string, id int64, approve bool, comment string) error {
	body := respondRequest{Approved: approve, Comment: comment}
	return a.c.do(ctx, http.MethodPost, fmt.Sprintf("/approvals/requests/%d/respond", id), token, body, nil)
}

// Dismiss removes a single approval notification.
func (a *ApprovalSource) Dismiss(ctx context.Context, token string, id int64) error {
	return a.c.do(ctx, http.MethodDelete, fmt.Sprintf("/approvals/requests/%d", id), token, nil, nil)
}

// ClearAll removes every approval notification. Callers must obtain explicit
// user confirmation before issuing this.
func (a *ApprovalSource) ClearAll(ctx context.Context, token string) error {
	return a.c.do(ctx, http.MethodDelete, "/approvals/requests", token, nil, nil)
}
