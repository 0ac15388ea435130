package config

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	// APIBaseURL selects the backend origin for every REST call.
	APIBaseURL string `env:"API_BASE_URL, default=https://api.opsdesk.app" validate:"required,url"`
	// WSEndpoint is the realtime endpoint; the bearer token is appended as
	// the final path segment.
	WSEndpoint string `env:"WS_ENDPOINT, default=wss://api.opsdesk.app/ws/notifications" validate:"required,url"`

	Env      string `env:"ENV,       default=development"`
	LogLevel string `env:"LOG_LEVEL, default=info"`

	// StatusPort is where the local status/control API listens.
	StatusPort string `env:"STATUS_PORT, default=7380"`

	PollInterval         time.Duration `env:"POLL_INTERVAL,          default=30s"`
	HeartbeatInterval    time.Duration `env:"HEARTBEAT_INTERVAL,     default=30s"`
	ReconnectDelay       time.Duration `env:"RECONNECT_DELAY,        default=5s"`
	MaxReconnectAttempts int           `env:"MAX_RECONNECT_ATTEMPTS, default=5"`

	Redis RedisConfig
}

// RedisConfig is optional: an empty Addr selects the file-backed state store.
type RedisConfig struct {
	Addr string `env:"REDIS_ADDR"`
	DB   int    `env:"REDIS_DB, default=0"`
}

// Load reads configuration from environment variables using go-envconfig and
// validates the result.
func Load(ctx context.Context) (*Config, error) {
	var cfg Config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &cfg, nil
}
