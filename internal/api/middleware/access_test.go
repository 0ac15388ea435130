package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/opsdesk/desk-agent/internal/core/domain"
)

type fakeSession struct {
	user *domain.User
}

func (f *fakeSession) User() *domain.User { return f.user }

func invoke(t *testing.T, mw echo.MiddlewareFunc) (*httptest.ResponseRecorder, bool) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	called := false
	handler := mw(func(c echo.Context) error {
		called = true
		return c.NoContent(http.StatusOK)
	})
	if err := handler(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	return rec, called
}

func TestPageAccess_AllowsResolvedAccess(t *testing.T) {
	session := &fakeSession{user: &domain.User{Role: domain.RoleMember}}
	rec, called := invoke(t, PageAccess(session, domain.PageDashboard, false))

	if !called || rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with next reached, got %d called=%v", rec.Code, called)
	}
}

func TestPageAccess_ForbidsDeniedPage(t *testing.T) {
	session := &fakeSession{user: &domain.User{Role: domain.RoleMember}}
	rec, called := invoke(t, PageAccess(session, domain.PageAdminPanel, false))

	if called || rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d called=%v", rec.Code, called)
	}
}

func TestPageAccess_EditRequiredRejectsViewOnly(t *testing.T) {
	session := &fakeSession{user: &domain.User{Role: domain.RoleMember}}
	// Members hold view on projects, which is not enough for edit routes.
	rec, called := invoke(t, PageAccess(session, domain.PageProjects, true))

	if called || rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for view-only access, got %d", rec.Code)
	}
}

func TestPageAccess_UnauthenticatedIs401(t *testing.T) {
	rec, called := invoke(t, PageAccess(&fakeSession{}, domain.PageDashboard, false))

	if called || rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestPageAccess_AdminOverridesStoredDenial(t *testing.T) {
	session := &fakeSession{user: &domain.User{
		Role:        domain.RoleAdmin,
		Permissions: domain.PermissionMap{domain.PageAdminPanel: domain.AccessNone},
	}}
	rec, called := invoke(t, PageAccess(session, domain.PageAdminPanel, true))

	if !called || rec.Code != http.StatusOK {
		t.Fatalf("admin must never be locked out, got %d", rec.Code)
	}
}

func TestRequireSession(t *testing.T) {
	rec, called := invoke(t, RequireSession(&fakeSession{}))
	if called || rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without session, got %d", rec.Code)
	}

	rec, called = invoke(t, RequireSession(&fakeSession{user: &domain.User{Role: domain.RoleViewer}}))
	if !called || rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with session, got %d", rec.Code)
	}
}
