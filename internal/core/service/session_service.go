package service

import (
	"context"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"github.com/opsdesk/desk-agent/internal/core/domain"
	"github.com/opsdesk/desk-agent/internal/core/ports"
)

// SessionService owns the bearer token and the hydrated user profile. It is
// the only component that mutates them, and the only writer of the persisted
// token.
//
// Invariant: a user is present only while a token is present and was last
// validated successfully. Any authentication failure clears both atomically.
type SessionService struct {
	api      ports.AuthAPI
	store    ports.StateStore
	log      zerolog.Logger
	validate *validator.Validate

	mu       sync.Mutex
	token    string
	user     *domain.User
	inFlight string // token currently hydrating; guards double-fetch
	onChange []func(authenticated bool)
}

type loginInput struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required"`
}

// NewSessionService wires the session against the auth API and state store.
func NewSessionService(api ports.AuthAPI, store ports.StateStore, log zerolog.Logger) *SessionService {
	return &SessionService{
		api:      api,
		store:    store,
		log:      log,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Login exchanges credentials for a token, persists it, and hydrates the
// profile. The session stays unauthenticated on any failure.
func (s *SessionService) Login(ctx context.Context, email, password string) error {
	if err := s.validate.Struct(loginInput{Email: email, Password: password}); err != nil {
		return domain.ErrInvalidCredentials
	}

	token, err := s.api.Login(ctx, email, password)
	if err != nil {
		return err
	}
	user, err := s.api.Profile(ctx, token)
	if err != nil {
		return err
	}

	if err := s.store.SetToken(ctx, token); err != nil {
		// The session still works in memory; it just won't survive a restart.
		s.log.Warn().Err(err).Msg("failed to persist token")
	}

	s.mu.Lock()
	s.token = token
	s.user = user
	s.mu.Unlock()

	s.log.Info().Str("user_id", user.ID).Str("role", string(user.Role)).Msg("logged in")
	s.fire(true)
	return nil
}

// Hydrate restores the session from the persisted token at startup. Any
// failure purges the token — this is the single path by which stale
// credentials self-heal. Concurrent calls for the same token do not
// double-fetch.
func (s *SessionService) Hydrate(ctx context.Context) error {
	token, err := s.store.Token(ctx)
	if err != nil {
		return err
	}
	if token == "" {
		return nil
	}

	s.mu.Lock()
	if s.inFlight == token || (s.token == token && s.user != nil) {
		s.mu.Unlock()
		return nil
	}
	s.inFlight = token
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		if s.inFlight == token {
			s.inFlight = ""
		}
		s.mu.Unlock()
	}()

	// Preflight: a token with an already-passed exp claim can be purged
	// without a round-trip. Opaque tokens skip this check.
	if tokenExpired(token) {
		s.log.Info().Msg("persisted token expired, purging")
		s.purge(ctx)
		return domain.ErrUnauthorized
	}

	user, err := s.api.Profile(ctx, token)
	if err != nil {
		s.log.Warn().Err(err).Msg("hydration failed, purging persisted token")
		s.purge(ctx)
		return err
	}

	s.mu.Lock()
	s.token = token
	s.user = user
	s.mu.Unlock()

	s.log.Info().Str("user_id", user.ID).Msg("session hydrated")
	s.fire(true)
	return nil
}

// Logout clears the session locally and purges the persisted token. No
// network call is required for it to take effect.
func (s *SessionService) Logout(ctx context.Context) {
	s.purge(ctx)
	s.log.Info().Msg("logged out")
}

// Invalidate is called by collaborators that observe a 401 mid-session.
func (s *SessionService) Invalidate(ctx context.Context) {
	s.purge(ctx)
}

// Token returns the current bearer token and whether one is held.
func (s *SessionService) Token() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token, s.token != ""
}

// User returns a copy of the hydrated profile, or nil when unauthenticated.
// Callers cannot mutate session state through it.
func (s *SessionService) User() *domain.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

// Authenticated reports whether a validated session is held.
func (s *SessionService) Authenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token != "" && s.user != nil
}

// OnChange registers a callback fired after every authentication transition.
func (s *SessionService) OnChange(fn func(authenticated bool)) {
	s.mu.Lock()
	s.onChange = append(s.onChange, fn)
	s.mu.Unlock()
}

func (s *SessionService) purge(ctx context.Context) {
	if err := s.store.ClearToken(ctx); err != nil {
		s.log.Warn().Err(err).Msg("failed to clear persisted token")
	}
	s.mu.Lock()
	wasAuthenticated := s.token != ""
	s.token = ""
	s.user = nil
	s.mu.Unlock()
	if wasAuthenticated {
		s.fire(false)
	}
}

func (s *SessionService) fire(authenticated bool) {
	s.mu.Lock()
	fns := make([]func(bool), len(s.onChange))
	copy(fns, s.onChange)
	s.mu.Unlock()
	for _, fn := range fns {
		fn(authenticated)
	}
}

// tokenExpired inspects the token's exp claim without verifying the
// signature; verification is the backend's job. Non-JWT tokens pass.
func tokenExpired(token string) bool {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return exp.Before(time.Now())
}
