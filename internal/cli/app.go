package cli

import (
	"context"
	"fmt"
	"time"

	"ledger/internal/backend"
	"ledger/internal/cache"
	"ledger/internal/config"
	"ledger/internal/ledger"
	"ledger/internal/log"
	"ledger/internal/session"
	"ledger/internal/store"
	"ledger/internal/worker"
)

// App is one CLI invocation's wiring: store, ledger and exporter for the
// configured user.
type App struct {
	Config   *config.Config
	Logger   *log.Logger
	Store    store.Store
	Ledger   *ledger.Ledger
	Exporter backend.Exporter
	UserID   string

	cleanup backend.CleanupFunc
}

// Opener builds the App a command runs against.
type Opener func(ctx context.Context) (*App, error)

// Open creates the configured backend and a ledger bound to cfg.UserID.
// Balance events are published when a broker is configured.
func Open(ctx context.Context, cfg *config.Config, logger *log.Logger) (*App, error) {
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	res, err := backend.NewFactory(logger).CreateBackend(ctx, bcfg)
	if err != nil {
		return nil, err
	}

	opts := []ledger.Option{ledger.WithLogger(logger)}
	if res.Publisher != nil {
		opts = append(opts, ledger.WithPublisher(res.Publisher))
	}
	app := NewApp(cfg, logger, res.Store, res.Exporter, opts...)
	app.cleanup = res.Cleanup
	return app, nil
}

// NewApp wires an App around an already opened store.
func NewApp(cfg *config.Config, logger *log.Logger, s store.Store, exporter backend.Exporter, opts ...ledger.Option) *App {
	return &App{
		Config:   cfg,
		Logger:   logger,
		Store:    s,
		Ledger:   ledger.New(s, session.Static(cfg.UserID), opts...),
		Exporter: exporter,
		UserID:   cfg.UserID,
	}
}

// Auditor returns a balance auditor over the app's store.
func (a *App) Auditor() *worker.Auditor {
	size, ttl := a.Config.AuditDedupeSize, a.Config.AuditDedupeTTL
	if size < 1 {
		size = 1
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return worker.NewAuditor(a.Store, cache.NewLRU[time.Time](size, ttl), a.Logger)
}

func (a *App) Close() error {
	if a.cleanup == nil {
		return nil
	}
	if err := a.cleanup(); err != nil {
		return fmt.Errorf("close backend: %w", err)
	}
	return nil
}
