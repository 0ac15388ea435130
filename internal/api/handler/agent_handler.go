package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/opsdesk/desk-agent/internal/core/domain"
	"github.com/opsdesk/desk-agent/internal/core/ports"
	"github.com/opsdesk/desk-agent/internal/core/service"
)

// AgentHandler exposes agent-level state: liveness, realtime connection
// control, preferences, and the alert unlock.
type AgentHandler struct {
	session   *service.SessionService
	transport ports.Transport
	alerter   ports.Alerter
	store     ports.StateStore
}

func NewAgentHandler(session *service.SessionService, transport ports.Transport, alerter ports.Alerter, store ports.StateStore) *AgentHandler {
	return &AgentHandler{session: session, transport: transport, alerter: alerter, store: store}
}

// Liveness confirms the process is alive.
func (h *AgentHandler) Liveness(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// Status reports the realtime state and session summary.
func (h *AgentHandler) Status(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"realtime": map[string]any{
			"state":       h.transport.State().String(),
			"connected":   h.transport.IsConnected(),
			"instance_id": h.transport.InstanceID(),
		},
		"authenticated":  h.session.Authenticated(),
		"alert_unlocked": h.alerter.Unlocked(),
	})
}

// Connect starts the realtime connection for the current session.
func (h *AgentHandler) Connect(c echo.Context) error {
	token, ok := h.session.Token()
	if !ok {
		return domain.ErrUnauthorized
	}
	h.transport.Connect(token)
	return c.NoContent(http.StatusAccepted)
}

// Disconnect tears the realtime connection down.
func (h *AgentHandler) Disconnect(c echo.Context) error {
	h.transport.Disconnect()
	return c.NoContent(http.StatusNoContent)
}

// Interact records a genuine user interaction, unlocking the alert channel.
func (h *AgentHandler) Interact(c echo.Context) error {
	h.alerter.Unlock()
	return c.NoContent(http.StatusNoContent)
}

// Language returns the persisted language preference.
func (h *AgentHandler) Language(c echo.Context) error {
	lang, err := h.store.Language(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{"language": lang})
}

type languageRequest struct {
	Language string `json:"language"`
}

// SetLanguage stores the language preference, normalising legacy aliases.
func (h *AgentHandler) SetLanguage(c echo.Context) error {
	var req languageRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid payload"})
	}
	if err := h.store.SetLanguage(c.Request().Context(), req.Language); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{"language": domain.NormalizeLanguage(req.Language)})
}
