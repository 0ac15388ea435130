package ports

import (
	"context"

	"github.com/opsdesk/desk-agent/internal/core/domain"
)

// AuthAPI is the backend authentication surface consumed by the session.
type AuthAPI interface {
	// Login exchanges credentials for a bearer token.
	// Returns domain.ErrInvalidCredentials on rejection.
	Login(ctx context.Context, email, password string) (token string, err error)

	// Profile fetches the full user profile for the token.
	// Returns domain.ErrUnauthorized when the token is stale.
	Profile(ctx context.Context, token string) (*domain.User, error)
}
