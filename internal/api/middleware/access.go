package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/opsdesk/desk-agent/internal/core/domain"
)

// UserProvider supplies the hydrated user for the current session, or nil
// when unauthenticated.
type UserProvider interface {
	User() *domain.User
}

// PageAccess gates a route group behind the permission model: 401 without a
// session, 403 when the resolved level denies access. Pass edit=true for
// mutating routes, which then require AccessEdit rather than any access.
func PageAccess(session UserProvider, page domain.PageKey, edit bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			user := session.User()
			if user == nil {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			}
			lvl := domain.ResolveAccess(user, page)
			if !lvl.Granted() || (edit && lvl != domain.AccessEdit) {
				return c.JSON(http.StatusForbidden, map[string]string{"error": "forbidden"})
			}
			return next(c)
		}
	}
}

// RequireSession gates a route behind any authenticated session, without a
// page-level check.
func RequireSession(session UserProvider) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if session.User() == nil {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			}
			return next(c)
		}
	}
}
