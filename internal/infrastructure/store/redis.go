// Package store persists the two durable client-state keys: the bearer token
// and the language preference. Two backends exist — Redis for shared setups
// and a plain file for single-machine installs.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/opsdesk/desk-agent/internal/core/domain"
	"github.com/opsdesk/desk-agent/internal/core/ports"
)

const (
	tokenKey    = "deskd:token"
	languageKey = "deskd:language"

	defaultTimeout = 5 * time.Second
)

// RedisConfig captures the settings for establishing a Redis connection.
type RedisConfig struct {
	Addr    string
	DB      int
	Timeout time.Duration
}

// ConnectRedis initialises a Redis client and validates connectivity with a
// ping. A default timeout is applied when none is provided.
func ConnectRedis(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	client := redis.NewClient(&redis.Options{
		Addr: cfg.Addr,
		DB:   cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return client, nil
}

// RedisStore keeps the durable state in Redis.
type RedisStore struct {
	client *redis.Client
}

var _ ports.StateStore = (*RedisStore)(nil)

// NewRedisStore wraps an established Redis client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Token(ctx context.Context) (string, error) {
	v, err := s.client.Get(ctx, tokenKey).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read token: %w", err)
	}
	return v, nil
}

func (s *RedisStore) SetToken(ctx context.Context, token string) error {
	return s.client.Set(ctx, tokenKey, token, 0).Err()
}

func (s *RedisStore) ClearToken(ctx context.Context) error {
	return s.client.Del(ctx, tokenKey).Err()
}

func (s *RedisStore) Language(ctx context.Context) (string, error) {
	v, err := s.client.Get(ctx, languageKey).Result()
	if errors.Is(err, redis.Nil) {
		return domain.LangEnglish, nil
	}
	if err != nil {
		return "", fmt.Errorf("read language: %w", err)
	}
	return domain.NormalizeLanguage(v), nil
}

func (s *RedisStore) SetLanguage(ctx context.Context, lang string) error {
	return s.client.Set(ctx, languageKey, domain.NormalizeLanguage(lang), 0).Err()
}
