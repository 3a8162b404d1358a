package backend

import (
	"context"
	"errors"
	"fmt"

	"ledger/internal/amqp"
	"ledger/internal/log"
	gsheet "ledger/internal/sheets/google"
	sheetsmem "ledger/internal/sheets/memory"
	"ledger/internal/store"
	"ledger/internal/store/bolt"
	"ledger/internal/store/memory"
	"ledger/internal/store/sqlite"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &DefaultFactory{
		logger: logger.WithComponent(log.ComponentBackend),
	}
}

// CreateBackend opens the store, then attaches the optional publisher and
// exporter. A broker that cannot be reached is logged and skipped.
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*Result, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	s, closeStore, err := f.openStore(config)
	if err != nil {
		return nil, err
	}
	res := &Result{Store: s}
	cleanups := []CleanupFunc{closeStore}

	if config.AMQPURL != "" {
		client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
		if err != nil {
			f.logger.Warn("Failed to initialize AMQP client, continuing without balance events", log.FieldError, err)
		} else {
			f.logger.Info("Initialized AMQP client",
				"exchange", config.AMQPExchange,
				"queue", config.AMQPQueue)
			res.Publisher = client
			cleanups = append(cleanups, client.Close)
		}
	}

	res.Exporter, err = f.createExporter(ctx, config)
	if err != nil {
		runCleanups(cleanups)
		return nil, err
	}

	res.Cleanup = func() error { return runCleanups(cleanups) }
	return res, nil
}

func (f *DefaultFactory) openStore(config Config) (store.Store, CleanupFunc, error) {
	switch config.Type {
	case SQLiteBackend:
		s, err := sqlite.Open(config.SQLiteDBPath)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize SQLite store: %w", err)
		}
		f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)
		return s, s.Close, nil
	case BoltBackend:
		s, err := bolt.Open(config.BoltDBPath)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize bolt store: %w", err)
		}
		f.logger.Info("Initialized bolt backend", "db_path", config.BoltDBPath)
		return s, s.Close, nil
	case MemoryBackend:
		f.logger.Info("Initialized memory backend")
		return memory.New(), nil, nil
	default:
		return nil, nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createExporter(ctx context.Context, config Config) (Exporter, error) {
	if config.GoogleSpreadsheetID == "" {
		return sheetsmem.New(), nil
	}
	cli, err := gsheet.New(ctx, gsheet.Config{
		SpreadsheetID: config.GoogleSpreadsheetID,
		ReportSheet:   config.GoogleReportSheetName,
		AuditSheet:    config.GoogleAuditSheetName,
	}, f.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
	}
	f.logger.Info("Initialized Google Sheets exporter")
	return cli, nil
}

func runCleanups(cleanups []CleanupFunc) error {
	var errs []error
	for i := len(cleanups) - 1; i >= 0; i-- {
		if cleanups[i] == nil {
			continue
		}
		if err := cleanups[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
