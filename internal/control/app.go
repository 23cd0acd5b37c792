package control

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/vietddude/shiftfetch/internal/core/config"
	"github.com/vietddude/shiftfetch/internal/core/domain"
	"github.com/vietddude/shiftfetch/internal/infra/api"
	"github.com/vietddude/shiftfetch/internal/infra/health"
	redisclient "github.com/vietddude/shiftfetch/internal/infra/redis"
	"github.com/vietddude/shiftfetch/internal/infra/storage"
	"github.com/vietddude/shiftfetch/internal/infra/storage/memory"
	"github.com/vietddude/shiftfetch/internal/infra/storage/postgres"
	"github.com/vietddude/shiftfetch/internal/transport"
	"github.com/vietddude/shiftfetch/internal/transport/session"
)

// App wires the transport to its token store, backend client and health server.
type App struct {
	cfg          *config.AppConfig
	client       *api.Client
	tokens       storage.TokenStore
	transport    *transport.Transport
	healthMon    *health.Monitor
	healthServer *health.Server
	redisClient  *redisclient.Client
	db           *postgres.DB
	unsubscribe  func()
	log          *slog.Logger
}

// NewApp creates an App with all dependencies initialized.
func NewApp(ctx context.Context, cfg *config.AppConfig) (*App, error) {
	a := &App{cfg: cfg, log: slog.Default()}

	// 1. Initialize Token Storage
	var pinger health.Pinger
	switch cfg.Tokens.Backend {
	case config.TokenBackendRedis:
		client, err := redisclient.NewClient(cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("failed to init redis: %w", err)
		}
		a.redisClient = client
		a.tokens = redisclient.NewTokenStore(client, cfg.Tokens.SessionID, cfg.Redis.TokenTTL)
		pinger = client
		a.log.Info("Using Redis token storage", "session", cfg.Tokens.SessionID)

	case config.TokenBackendPostgres:
		db, err := postgres.NewDB(ctx, cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to init db: %w", err)
		}
		if err := db.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, err
		}
		a.db = db
		a.tokens = postgres.NewTokenStore(db, cfg.Tokens.SessionID)
		pinger = db
		a.log.Info("Using PostgreSQL token storage", "session", cfg.Tokens.SessionID)

	default:
		a.tokens = memory.NewTokenStore(domain.TokenPair{
			AccessToken:  cfg.Tokens.AccessToken,
			RefreshToken: cfg.Tokens.RefreshToken,
		})
		a.log.Info("Using Memory token storage")
	}

	// 2. Initialize Transport
	a.client = api.NewClient(cfg.APIClient())
	a.transport = transport.New(transport.Config{
		ErrorCache: cfg.ErrorCache,
		Retry:      cfg.Retry,
		Client:     cfg.ClientInfo(),
	}, a.client, a.tokens, transport.WithLogger(a.log))

	a.unsubscribe = a.transport.Bus().Subscribe(func(sig session.Signal) {
		switch sig {
		case session.SignalUnauthorized:
			a.log.Warn("Session unauthorized")
		case session.SignalSessionEnded:
			a.log.Warn("Session ended, sign in again with 'session set'")
		}
	})

	// 3. Initialize Health Monitor
	a.healthMon = health.NewMonitor(a.client, pinger, a.transport.ErrorCache(), cfg.ErrorCache.MaxSize)
	a.healthServer = health.NewServer(a.healthMon, cfg.Server.Port)

	return a, nil
}

// Transport returns the resilient transport.
func (a *App) Transport() *transport.Transport {
	return a.transport
}

// Tokens returns the configured token store.
func (a *App) Tokens() storage.TokenStore {
	return a.tokens
}

// Health returns the current health report.
func (a *App) Health(ctx context.Context) health.HealthReport {
	return a.healthMon.CheckHealth(ctx)
}

// Start starts the health server in the background.
func (a *App) Start(ctx context.Context) error {
	go func() {
		if err := a.healthServer.Start(); err != nil {
			a.log.Error("Health server failed", "error", err)
		}
	}()
	a.log.Info("Health server started", "port", a.cfg.Server.Port)
	return nil
}

// Stop stops the health server and releases connections.
func (a *App) Stop(ctx context.Context) error {
	a.log.Info("Stopping shiftfetch...")
	err := a.healthServer.Stop(ctx)
	if cerr := a.Close(); err == nil {
		err = cerr
	}
	return err
}

// Close releases connections without touching the health server.
func (a *App) Close() error {
	if a.unsubscribe != nil {
		a.unsubscribe()
	}
	_ = a.client.Close()

	// Close Redis
	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.log.Warn("Failed to close Redis", "error", err)
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			return fmt.Errorf("failed to close db: %w", err)
		}
	}
	return nil
}
