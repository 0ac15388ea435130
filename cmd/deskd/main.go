// deskd is the headless desk-agent: it keeps an authenticated session against
// the backend, holds the realtime connection open, aggregates the three
// notification feeds, raises desktop alerts, and serves a local status and
// control API.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/opsdesk/desk-agent/internal/api"
	"github.com/opsdesk/desk-agent/internal/core/domain"
	"github.com/opsdesk/desk-agent/internal/core/ports"
	"github.com/opsdesk/desk-agent/internal/core/service"
	"github.com/opsdesk/desk-agent/internal/infrastructure/alert"
	restapi "github.com/opsdesk/desk-agent/internal/infrastructure/api"
	"github.com/opsdesk/desk-agent/internal/infrastructure/config"
	"github.com/opsdesk/desk-agent/internal/infrastructure/store"
	"github.com/opsdesk/desk-agent/internal/infrastructure/ws"
	"github.com/opsdesk/desk-agent/pkg/logger"
)

func main() {
	// A missing .env is fine; the environment itself takes precedence.
	_ = godotenv.Load()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load(ctx)
	if err != nil {
		logger.Init(logger.Options{})
		fallback := logger.Get()
		fallback.Fatal().Err(err).Msg("configuration failed")
	}

	log := logger.Init(logger.Options{
		Level:  cfg.LogLevel,
		Pretty: cfg.Env == "development",
	})

	stateStore, closeStore, err := buildStateStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("state store initialisation failed")
	}
	defer closeStore()

	backend := restapi.NewClient(cfg.APIBaseURL, log)
	session := service.NewSessionService(backend, stateStore, log)
	transport := ws.New(ws.Options{
		Endpoint:          cfg.WSEndpoint,
		HeartbeatInterval: cfg.HeartbeatInterval,
		ReconnectDelay:    cfg.ReconnectDelay,
		MaxReconnects:     cfg.MaxReconnectAttempts,
		Log:               log,
	})
	alerter := alert.New(log)
	chat := service.NewChatTracker(log)
	detachChat := chat.Attach(transport)
	defer detachChat()

	aggregator := service.NewAggregator(
		session,
		backend.System(),
		backend.Tasks(),
		backend.Approvals(),
		transport,
		alerter,
		cfg.PollInterval,
		log,
	)

	// The session drives the realtime and polling lifecycles: authenticated
	// sessions connect and poll, everything stops on logout or self-heal.
	session.OnChange(func(authenticated bool) {
		if authenticated {
			token, _ := session.Token()
			transport.Connect(token)
			aggregator.Start(ctx)
			return
		}
		transport.Disconnect()
		aggregator.Stop()
		chat.Reset()
	})

	if err := session.Hydrate(ctx); err != nil && !errors.Is(err, domain.ErrUnauthorized) {
		log.Warn().Err(err).Msg("startup hydration failed, continuing unauthenticated")
	}

	e := api.NewRouter(api.Deps{
		Session:    session,
		Aggregator: aggregator,
		Chat:       chat,
		Transport:  transport,
		Alerter:    alerter,
		Store:      stateStore,
		Log:        log,
	})

	go func() {
		addr := "127.0.0.1:" + cfg.StatusPort
		log.Info().Str("addr", addr).Msg("status server listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("status server stopped")
			cancel()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	aggregator.Stop()
	transport.Disconnect()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("status server shutdown failed")
	}
}

// buildStateStore selects Redis when configured, otherwise the per-user file.
func buildStateStore(ctx context.Context, cfg *config.Config) (ports.StateStore, func(), error) {
	if cfg.Redis.Addr != "" {
		client, err := store.ConnectRedis(ctx, store.RedisConfig{Addr: cfg.Redis.Addr, DB: cfg.Redis.DB})
		if err != nil {
			return nil, nil, err
		}
		return store.NewRedisStore(client), func() { _ = client.Close() }, nil
	}

	path, err := store.DefaultStatePath()
	if err != nil {
		return nil, nil, err
	}
	fs, err := store.NewFileStore(path)
	if err != nil {
		return nil, nil, err
	}
	return fs, func() {}, nil
}
