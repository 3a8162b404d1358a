// Package sheets defines the outbound ports for exporting ledger reports
// to spreadsheets.
package sheets

import (
	"context"

	"ledger/internal/core"
)

// Ports for outbound adapters.
type (
	// ReportExporter writes a per-category report and returns a reference
	// to where it landed.
	ReportExporter interface {
		ExportCategoryReport(ctx context.Context, title string, r core.CategoryReport) (ref string, err error)
	}

	// AuditExporter writes one row per audited wallet.
	AuditExporter interface {
		ExportAudit(ctx context.Context, rows []AuditRow) (ref string, err error)
	}
)

// AuditRow is the exported shape of a wallet audit.
type AuditRow struct {
	WalletID string
	Name     string
	Stored   core.Money
	Expected core.Money
}

func (r AuditRow) Drift() core.Money {
	return r.Stored.Sub(r.Expected)
}
