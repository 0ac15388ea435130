package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"github.com/opsdesk/desk-agent/internal/core/domain"
)

// ---------------------------------------------------------------------------
// Stubs
// ---------------------------------------------------------------------------

type stubAuthAPI struct {
	loginToken string
	loginErr   error
	profile    *domain.User
	profileErr error

	loginCalls   atomic.Int64
	profileCalls atomic.Int64
	profileGate  chan struct{} // when set, Profile blocks until closed
}

func (a *stubAuthAPI) Login(context.Context, string, string) (string, error) {
	a.loginCalls.Add(1)
	return a.loginToken, a.loginErr
}

func (a *stubAuthAPI) Profile(context.Context, string) (*domain.User, error) {
	a.profileCalls.Add(1)
	if a.profileGate != nil {
		<-a.profileGate
	}
	if a.profileErr != nil {
		return nil, a.profileErr
	}
	u := *a.profile
	return &u, nil
}

type memStore struct {
	mu    sync.Mutex
	token string
	lang  string
}

func (s *memStore) Token(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token, nil
}

func (s *memStore) SetToken(_ context.Context, t string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = t
	return nil
}

func (s *memStore) ClearToken(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	return nil
}

func (s *memStore) Language(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.NormalizeLanguage(s.lang), nil
}

func (s *memStore) SetLanguage(_ context.Context, l string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lang = l
	return nil
}

func (s *memStore) stored() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

func testUser() *domain.User {
	return &domain.User{ID: "u1", Email: "a@b.co", Role: domain.RoleMember}
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestLogin_PersistsTokenAndHydrates(t *testing.T) {
	api := &stubAuthAPI{loginToken: "tok", profile: testUser()}
	st := &memStore{}
	s := NewSessionService(api, st, zerolog.Nop())

	var transitions []bool
	s.OnChange(func(authed bool) { transitions = append(transitions, authed) })

	if err := s.Login(context.Background(), "a@b.co", "secret"); err != nil {
		t.Fatalf("login failed: %v", err)
	}

	if st.stored() != "tok" {
		t.Fatalf("token not persisted, stored=%q", st.stored())
	}
	if !s.Authenticated() {
		t.Fatalf("expected authenticated session")
	}
	if u := s.User(); u == nil || u.ID != "u1" {
		t.Fatalf("profile not hydrated: %+v", u)
	}
	if len(transitions) != 1 || !transitions[0] {
		t.Fatalf("expected one authenticated transition, got %v", transitions)
	}
}

func TestLogin_RejectsMalformedInputWithoutNetworkCall(t *testing.T) {
	api := &stubAuthAPI{loginToken: "tok", profile: testUser()}
	s := NewSessionService(api, &memStore{}, zerolog.Nop())

	if err := s.Login(context.Background(), "not-an-email", "x"); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if api.loginCalls.Load() != 0 {
		t.Fatalf("backend called for invalid input")
	}
}

func TestLogin_FailureLeavesSessionUnauthenticated(t *testing.T) {
	api := &stubAuthAPI{loginErr: domain.ErrInvalidCredentials}
	st := &memStore{}
	s := NewSessionService(api, st, zerolog.Nop())

	if err := s.Login(context.Background(), "a@b.co", "bad"); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if s.Authenticated() || st.stored() != "" {
		t.Fatalf("failed login must not authenticate or persist")
	}
}

func TestHydrate_NoTokenIsANoop(t *testing.T) {
	api := &stubAuthAPI{profile: testUser()}
	s := NewSessionService(api, &memStore{}, zerolog.Nop())

	if err := s.Hydrate(context.Background()); err != nil {
		t.Fatalf("hydrate without token should succeed: %v", err)
	}
	if s.Authenticated() || api.profileCalls.Load() != 0 {
		t.Fatalf("nothing should happen without a persisted token")
	}
}

func TestHydrate_RestoresSession(t *testing.T) {
	api := &stubAuthAPI{profile: testUser()}
	st := &memStore{token: "persisted"}
	s := NewSessionService(api, st, zerolog.Nop())

	if err := s.Hydrate(context.Background()); err != nil {
		t.Fatalf("hydrate failed: %v", err)
	}
	if tok, ok := s.Token(); !ok || tok != "persisted" {
		t.Fatalf("token not restored: %q %v", tok, ok)
	}
}

func TestHydrate_FailurePurgesPersistedToken(t *testing.T) {
	api := &stubAuthAPI{profileErr: domain.ErrUnauthorized}
	st := &memStore{token: "stale"}
	s := NewSessionService(api, st, zerolog.Nop())

	if err := s.Hydrate(context.Background()); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if st.stored() != "" {
		t.Fatalf("stale token not purged")
	}
	if s.Authenticated() {
		t.Fatalf("session must stay unauthenticated after failed hydration")
	}
}

func TestHydrate_ExpiredJWTPurgedWithoutRoundTrip(t *testing.T) {
	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "u1",
		"exp": time.Now().Add(-time.Hour).Unix(),
	})
	signed, err := expired.SignedString([]byte("irrelevant"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	api := &stubAuthAPI{profile: testUser()}
	st := &memStore{token: signed}
	s := NewSessionService(api, st, zerolog.Nop())

	if err := s.Hydrate(context.Background()); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if api.profileCalls.Load() != 0 {
		t.Fatalf("expired token should be purged without hitting the backend")
	}
	if st.stored() != "" {
		t.Fatalf("expired token not purged")
	}
}

func TestHydrate_ConcurrentCallsDoNotDoubleFetch(t *testing.T) {
	api := &stubAuthAPI{profile: testUser(), profileGate: make(chan struct{})}
	st := &memStore{token: "tok"}
	s := NewSessionService(api, st, zerolog.Nop())

	done := make(chan struct{})
	go func() {
		_ = s.Hydrate(context.Background())
		close(done)
	}()

	// Wait for the first hydration to be in flight, then race a second one.
	for api.profileCalls.Load() == 0 {
		time.Sleep(time.Millisecond)
	}
	if err := s.Hydrate(context.Background()); err != nil {
		t.Fatalf("concurrent hydrate should be a guarded no-op: %v", err)
	}

	close(api.profileGate)
	<-done

	if got := api.profileCalls.Load(); got != 1 {
		t.Fatalf("expected exactly one profile fetch, got %d", got)
	}
}

func TestLogout_ClearsEverythingLocally(t *testing.T) {
	api := &stubAuthAPI{loginToken: "tok", profile: testUser()}
	st := &memStore{}
	s := NewSessionService(api, st, zerolog.Nop())

	if err := s.Login(context.Background(), "a@b.co", "secret"); err != nil {
		t.Fatalf("login failed: %v", err)
	}

	var last bool
	s.OnChange(func(authed bool) { last = authed })

	s.Logout(context.Background())
	if s.Authenticated() || st.stored() != "" {
		t.Fatalf("logout must clear token and user")
	}
	if last {
		t.Fatalf("expected a de-authentication transition")
	}
}
