// Package backend assembles the record store and optional collaborators
// (event publisher, spreadsheet exporter) selected by configuration.
package backend

import (
	"context"

	"ledger/internal/amqp"
	"ledger/internal/sheets"
	"ledger/internal/store"
)

// Exporter writes reports and audits to a spreadsheet.
type Exporter interface {
	sheets.ReportExporter
	sheets.AuditExporter
}

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// Result holds the opened store and its collaborators. Publisher is nil
// when no broker is configured.
type Result struct {
	Store     store.Store
	Publisher *amqp.Client
	Exporter  Exporter
	Cleanup   CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*Result, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	SQLiteDBPath string
	BoltDBPath   string

	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	GoogleSpreadsheetID   string
	GoogleReportSheetName string
	GoogleAuditSheetName  string
}

// BackendType represents the type of backend
type BackendType string

const (
	MemoryBackend BackendType = "memory"
	SQLiteBackend BackendType = "sqlite"
	BoltBackend   BackendType = "bolt"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case MemoryBackend, SQLiteBackend, BoltBackend:
		return true
	default:
		return false
	}
}
