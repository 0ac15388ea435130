package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/opsdesk/desk-agent/internal/core/domain"
	"github.com/opsdesk/desk-agent/internal/core/ports"
)

// notificationDTO is the wire shape shared by the system and task feeds.
type notificationDTO struct {
	ID           int64     `json:"id"`
	Title        string    `json:"title"`
	Message      string    `json:"message"`
	IsRead       bool      `json:"is_read"`
	CreatedAt    time.Time `json:"created_at"`
	AssignmentID int64     `json:"assignment_id,omitempty"`
	ActionURL    string    `json:"action_url,omitempty"`
}

func (d notificationDTO) toDomain(kind domain.SourceKind) domain.NotificationItem {
	return domain.NotificationItem{
		ID:           d.ID,
		Source:       kind,
		Title:        d.Title,
		Message:      d.Message,
		IsRead:       d.IsRead,
		CreatedAt:    d.CreatedAt,
		AssignmentID: d.AssignmentID,
		ActionURL:    d.ActionURL,
	}
}

// SystemSource is the generic notification feed.
type SystemSource struct{ c *Client }

// System returns the generic notification feed bound to this client.
func (c *Client) System() *SystemSource { return &SystemSource{c: c} }

var _ ports.NotificationSource = (*SystemSource)(nil)

func (s *SystemSource) Kind() domain.SourceKind { return domain.SourceSystem }

func (s *SystemSource) List(ctx context.Context, token string) ([]domain.NotificationItem, error) {
	var raw []notificationDTO
	if err := s.c.do(ctx, http.MethodGet, "/notifications", token, nil, &raw); err != nil {
		return nil, err
	}
	items := make([]domain.NotificationItem, 0, len(raw))
	for _, d := range raw {
		items = append(items, d.toDomain(domain.SourceSystem))
	}
	return items, nil
}

func (s *SystemSource) MarkRead(ctx context.Context, token string, id int64) error {
	return s.c.do(ctx, http.MethodPost, fmt.Sprintf("/notifications/%d/read", id), token, nil, nil)
}

// TaskSource is the task-assignment notification feed.
type TaskSource struct{ c *Client }

// Tasks returns the task-assignment feed bound to this client.
func (c *Client) Tasks() *TaskSource { return &TaskSource{c: c} }

var _ ports.NotificationSource = (*TaskSource)(nil)

func (t *TaskSource) Kind() domain.SourceKind { return domain.SourceTask }

func (t *TaskSource) List(ctx context.Context, token string) ([]domain.NotificationItem, error) {
	var raw []notificationDTO
	if err := t.c.do(ctx, http.MethodGet, "/tasks/notifications", token, nil, &raw); err != nil {
		return nil, err
	}
	items := make([]domain.NotificationItem, 0, len(raw))
	for _, d := range raw {
		items = append(items, d.toDomain(domain.SourceTask))
	}
	return items, nil
}

func (t *TaskSource) MarkRead(ctx context.Context, token string, id int64) error {
	return t.c.do(ctx, http.MethodPost, fmt.Sprintf("/tasks/notifications/%d/read", id), token, nil, nil)
}
