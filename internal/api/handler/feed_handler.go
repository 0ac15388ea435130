package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/opsdesk/desk-agent/internal/core/domain"
	"github.com/opsdesk/desk-agent/internal/core/service"
)

// FeedHandler exposes the merged notification feed and its actions.
type FeedHandler struct {
	agg  *service.Aggregator
	chat *service.ChatTracker
}

func NewFeedHandler(agg *service.Aggregator, chat *service.ChatTracker) *FeedHandler {
	return &FeedHandler{agg: agg, chat: chat}
}

// tabFilter maps the ?tab= query to a source filter; empty or "all" selects
// the union.
func tabFilter(c echo.Context) domain.SourceKind {
	tab := c.QueryParam("tab")
	if tab == "" || tab == "all" {
		return ""
	}
	return domain.SourceKind(tab)
}

// List returns the combined view, newest first, optionally filtered by tab.
func (h *FeedHandler) List(c echo.Context) error {
	items := h.agg.Combined(tabFilter(c))
	return c.JSON(http.StatusOK, map[string]any{
		"items":  items,
		"unread": h.agg.UnreadCount(),
	})
}

// Unread returns the merged unread counters, chat included.
func (h *FeedHandler) Unread(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"total":     h.agg.UnreadCount(),
		"by_source": h.agg.UnreadBySource(),
		"chat":      h.chat.UnreadTotal(),
	})
}

type markReadRequest struct {
	Source domain.SourceKind `json:"source"`
	ID     int64             `json:"id"`
}

// MarkRead flips one item read, optimistically.
func (h *FeedHandler) MarkRead(c echo.Context) error {
	var req markReadRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid payload"})
	}
	key := domain.CompositeKey{Source: req.Source, ID: req.ID}
	if err := h.agg.MarkRead(c.Request().Context(), key); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// MarkAllRead flips every unread item on the active tab.
func (h *FeedHandler) MarkAllRead(c echo.Context) error {
	if err := h.agg.MarkAllRead(c.Request().Context(), tabFilter(c)); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// Refresh forces an immediate poll cycle.
func (h *FeedHandler) Refresh(c echo.Context) error {
	h.agg.Refresh(c.Request().Context())
	return c.NoContent(http.StatusNoContent)
}

type respondRequest struct {
	Approve bool   `json:"approve"`
	Comment string `json:"comment,omitempty"`
}

// RespondApproval answers an approval request inline.
func (h *FeedHandler) RespondApproval(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid id"})
	}
	var req respondRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid payload"})
	}
	if err := h.agg.RespondApproval(c.Request().Context(), id, req.Approve, req.Comment); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// DismissApproval removes one approval notification.
func (h *FeedHandler) DismissApproval(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid id"})
	}
	if err := h.agg.DismissApproval(c.Request().Context(), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// ClearApprovals removes every approval notification. The destructive call is
// only issued when ?confirm=true is present.
func (h *FeedHandler) ClearApprovals(c echo.Context) error {
	confirmed := c.QueryParam("confirm") == "true"
	if err := h.agg.ClearApprovals(c.Request().Context(), confirmed); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// MarkConversationRead resets the chat unread counter for one conversation.
func (h *FeedHandler) MarkConversationRead(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid id"})
	}
	h.chat.MarkConversationRead(id, time.Now().UTC())
	return c.NoContent(http.StatusNoContent)
}
