package main

import (
	"context"
	"errors"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"ledger/internal/amqp"
	"ledger/internal/backend"
	"ledger/internal/cache"
	"ledger/internal/cli"
	"ledger/internal/config"
	"ledger/internal/log"
	"ledger/internal/worker"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = cli.LoadEnvFile("")

	cfg := config.Load()
	logger := cli.SetupLogger(cfg.LogLevel, log.ComponentWorker)
	logger.Info("Starting ledger-auditor")

	if err := cfg.ValidateAuditor(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}
	if cfg.DataBackend == config.BackendMemory {
		logger.Warn("Auditing the memory backend only sees this process's own data")
	}

	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}
	// The auditor consumes events; it never publishes them.
	bcfg.AMQPURL = ""
	res, err := backend.NewFactory(logger).CreateBackend(context.Background(), bcfg)
	if err != nil {
		logger.Error("Failed to initialize backend", log.FieldError, err)
		os.Exit(1)
	}
	defer res.Cleanup()

	consumer, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}
	defer consumer.Close()

	seen := cache.NewLRU[time.Time](cfg.AuditDedupeSize, cfg.AuditDedupeTTL)
	auditor := worker.NewAuditor(res.Store, seen, logger)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, nil)

	// Startup pass catches drift from events missed while the auditor was down.
	if _, err := auditor.AuditAll(ctx, cfg.UserID); err != nil {
		logger.Error("Startup audit failed", log.FieldError, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return consumer.ConsumeBalanceEvents(gctx, auditor.HandleBalanceEvent)
	})
	g.Go(func() error {
		ticker := time.NewTicker(cfg.AuditInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return gctx.Err()
			case <-ticker.C:
				if _, err := auditor.AuditAll(gctx, cfg.UserID); err != nil {
					logger.Error("Periodic audit failed", log.FieldError, err)
				}
			}
		}
	})
	g.Go(func() error {
		cache.NewJanitor(logger, seen).Run(gctx, time.Minute)
		return gctx.Err()
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Auditor stopped", log.FieldError, err)
	}
	cli.WaitForShutdown(ctx, done)
	logger.Info("Auditor shutdown complete", log.FieldOperation, log.OpShutdown)
}
