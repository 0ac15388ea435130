package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/opsdesk/desk-agent/internal/core/domain"
	"github.com/opsdesk/desk-agent/internal/core/ports"
)

var _ ports.AuthAPI = (*Client)(nil)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	AccessToken string `json:"access_token"`
}

// Login exchanges credentials for a bearer token.
func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	var out loginResponse
	err := c.do(ctx, http.MethodPost, "/auth/login", "", loginRequest{Email: email, Password: password}, &out)
	if errors.Is(err, domain.ErrUnauthorized) {
		return "", domain.ErrInvalidCredentials
	}
	if err != nil {
		return "", err
	}
	if out.AccessToken == "" {
		return "", errors.New("login: empty token in response")
	}
	return out.AccessToken, nil
}

// Profile fetches the authenticated user's profile, permission overrides
// included.
func (c *Client) Profile(ctx context.Context, token string) (*domain.User, error) {
	var u domain.User
	if err := c.do(ctx, http.MethodGet, "/users/me", token, nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}
