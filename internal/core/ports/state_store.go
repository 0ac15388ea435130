package ports

import "context"

// StateStore is the durable client-side state: exactly two keys survive
// restarts, the bearer token and the language preference. The token is
// written only by login, logout and hydrate-failure.
type StateStore interface {
	// Token returns the persisted bearer token, or "" when absent.
	Token(ctx context.Context) (string, error)

	SetToken(ctx context.Context, token string) error

	ClearToken(ctx context.Context) error

	// Language returns the persisted preference, already normalised
	// (legacy aliases resolved, defaulting to English).
	Language(ctx context.Context) (string, error)

	SetLanguage(ctx context.Context, lang string) error
}
