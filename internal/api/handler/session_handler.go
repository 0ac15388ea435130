package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/opsdesk/desk-agent/internal/core/domain"
	"github.com/opsdesk/desk-agent/internal/core/service"
)

// SessionHandler exposes login/logout and the session view over the local
// control API.
type SessionHandler struct {
	session *service.SessionService
}

func NewSessionHandler(session *service.SessionService) *SessionHandler {
	return &SessionHandler{session: session}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionResponse struct {
	Authenticated bool         `json:"authenticated"`
	User          *domain.User `json:"user,omitempty"`
}

// Login exchanges credentials for an authenticated session.
func (h *SessionHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid payload"})
	}

	if err := h.session.Login(c.Request().Context(), req.Email, req.Password); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, sessionResponse{Authenticated: true, User: h.session.User()})
}

// Logout clears the session; always succeeds locally.
func (h *SessionHandler) Logout(c echo.Context) error {
	h.session.Logout(c.Request().Context())
	return c.NoContent(http.StatusNoContent)
}

// Current returns the session view.
func (h *SessionHandler) Current(c echo.Context) error {
	user := h.session.User()
	return c.JSON(http.StatusOK, sessionResponse{Authenticated: user != nil, User: user})
}

// Navigation lists the pages the current user may open, in canonical order.
func (h *SessionHandler) Navigation(c echo.Context) error {
	user := h.session.User()
	pages := make([]domain.PageKey, 0)
	for page := range domain.AccessiblePages(user) {
		pages = append(pages, page)
	}
	return c.JSON(http.StatusOK, map[string]any{"pages": pages})
}
