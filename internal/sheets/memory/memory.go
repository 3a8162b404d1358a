// Package memory is an in-process exporter used when no spreadsheet is
// configured and in tests.
package memory

import (
	"context"
	"fmt"
	"sync"

	"ledger/internal/core"
	"ledger/internal/sheets"
)

var (
	_ sheets.ReportExporter = (*Exporter)(nil)
	_ sheets.AuditExporter  = (*Exporter)(nil)
)

type Exporter struct {
	mu     sync.Mutex
	tables [][][]any
}

func New() *Exporter {
	return &Exporter{}
}

// ExportCategoryReport stores the rows and returns a synthetic reference.
func (e *Exporter) ExportCategoryReport(_ context.Context, title string, r core.CategoryReport) (string, error) {
	return e.append(sheets.ReportRows(title, r)), nil
}

func (e *Exporter) ExportAudit(_ context.Context, rows []sheets.AuditRow) (string, error) {
	return e.append(sheets.AuditRows(rows)), nil
}

// Tables returns every exported table in order.
func (e *Exporter) Tables() [][][]any {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([][][]any(nil), e.tables...)
}

func (e *Exporter) append(rows [][]any) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tables = append(e.tables, rows)
	return fmt.Sprintf("mem:%d", len(e.tables))
}
