package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/opsdesk/desk-agent/internal/core/domain"
	"github.com/opsdesk/desk-agent/internal/core/ports"
	"github.com/opsdesk/desk-agent/internal/core/service"
)

type noopAuthAPI struct{}

func (noopAuthAPI) Login(context.Context, string, string) (string, error) {
	return "", domain.ErrInvalidCredentials
}

func (noopAuthAPI) Profile(context.Context, string) (*domain.User, error) {
	return nil, domain.ErrUnauthorized
}

type quietStore struct{ token, lang string }

func (s *quietStore) Token(context.Context) (string, error) { return s.token, nil }
func (s *quietStore) SetToken(_ context.Context, t string) error {
	s.token = t
	return nil
}
func (s *quietStore) ClearToken(context.Context) error { s.token = ""; return nil }
func (s *quietStore) Language(context.Context) (string, error) {
	return domain.NormalizeLanguage(s.lang), nil
}
func (s *quietStore) SetLanguage(_ context.Context, l string) error {
	s.lang = l
	return nil
}

type idleTransport struct{}

func (idleTransport) Connect(string)                       {}
func (idleTransport) Disconnect()                          {}
func (idleTransport) Send(domain.Frame) error              { return domain.ErrNotConnected }
func (idleTransport) On(string, func(domain.Frame)) func() { return func() {} }
func (idleTransport) State() ports.ConnState               { return ports.StateDisconnected }
func (idleTransport) IsConnected() bool                    { return false }
func (idleTransport) InstanceID() string                   { return "agent-1" }

type gateAlerter struct{ unlocked bool }

func (a *gateAlerter) Unlock()               { a.unlocked = true }
func (a *gateAlerter) Unlocked() bool        { return a.unlocked }
func (a *gateAlerter) Notify(string, string) {}

func TestStatus_ReportsRealtimeIdentity(t *testing.T) {
	session := service.NewSessionService(noopAuthAPI{}, &quietStore{}, zerolog.Nop())
	h := NewAgentHandler(session, idleTransport{}, &gateAlerter{}, &quietStore{})

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	rec := httptest.NewRecorder()
	if err := h.Status(e.NewContext(req, rec)); err != nil {
		t.Fatalf("status: %v", err)
	}

	var body struct {
		Realtime struct {
			State      string `json:"state"`
			Connected  bool   `json:"connected"`
			InstanceID string `json:"instance_id"`
		} `json:"realtime"`
		Authenticated bool `json:"authenticated"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Realtime.InstanceID != "agent-1" {
		t.Fatalf("instance id not surfaced: %q", body.Realtime.InstanceID)
	}
	if body.Realtime.State != "disconnected" || body.Realtime.Connected || body.Authenticated {
		t.Fatalf("unexpected status body: %s", rec.Body.String())
	}
}

func TestInteract_UnlocksAlerts(t *testing.T) {
	session := service.NewSessionService(noopAuthAPI{}, &quietStore{}, zerolog.Nop())
	alerter := &gateAlerter{}
	h := NewAgentHandler(session, idleTransport{}, alerter, &quietStore{})

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/interact", nil)
	rec := httptest.NewRecorder()
	if err := h.Interact(e.NewContext(req, rec)); err != nil {
		t.Fatalf("interact: %v", err)
	}

	if rec.Code != http.StatusNoContent || !alerter.Unlocked() {
		t.Fatalf("interaction must unlock alerts: code=%d unlocked=%v", rec.Code, alerter.Unlocked())
	}
}
