// Package google exports ledger reports to a Google Sheets spreadsheet.
package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"ledger/internal/core"
	"ledger/internal/log"
	ports "ledger/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// Ensure interface conformance
var (
	_ ports.ReportExporter = (*Client)(nil)
	_ ports.AuditExporter  = (*Client)(nil)
)

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	reportSheet   string
	auditSheet    string
	logger        *log.Logger
}

// Config names the target spreadsheet and tabs.
type Config struct {
	SpreadsheetID string
	ReportSheet   string // default "Reports"
	AuditSheet    string // default "Audit"
}

// New creates a Sheets client authenticated with service account
// credentials from GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE
// or GOOGLE_APPLICATION_CREDENTIALS.
func New(ctx context.Context, cfg Config, logger *log.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	creds, err := serviceAccountJSON(ctx, logger)
	if err != nil {
		return nil, err
	}
	return NewWithOptions(ctx, cfg, logger,
		goption.WithCredentialsJSON(creds),
		goption.WithScopes(gsheet.SpreadsheetsScope))
}

// NewWithOptions creates a client with explicit API options.
func NewWithOptions(ctx context.Context, cfg Config, logger *log.Logger, opts ...goption.ClientOption) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	svc, err := gsheet.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	if cfg.ReportSheet == "" {
		cfg.ReportSheet = "Reports"
	}
	if cfg.AuditSheet == "" {
		cfg.AuditSheet = "Audit"
	}
	return &Client{
		svc:           svc,
		spreadsheetID: cfg.SpreadsheetID,
		reportSheet:   cfg.ReportSheet,
		auditSheet:    cfg.AuditSheet,
		logger:        logger.WithComponent(log.ComponentSheets),
	}, nil
}

func serviceAccountJSON(ctx context.Context, logger *log.Logger) ([]byte, error) {
	inline := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))
	file := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if inline == "" && file == "" {
		file = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	switch {
	case inline != "":
		logger.DebugContext(ctx, "Using inline JSON credentials")
		return []byte(inline), nil
	case file != "":
		logger.DebugContext(ctx, "Reading credentials from file", "path", file)
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return data, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
}

// ExportCategoryReport appends the report below existing content of the
// report tab and returns the updated range.
func (c *Client) ExportCategoryReport(ctx context.Context, title string, r core.CategoryReport) (string, error) {
	ref, err := c.append(ctx, c.reportSheet, ports.ReportRows(title, r))
	if err != nil {
		return "", err
	}
	c.logger.InfoContext(ctx, "Exported category report",
		log.FieldSheetsRef, ref,
		log.FieldCount, len(r.Rows))
	return ref, nil
}

func (c *Client) ExportAudit(ctx context.Context, rows []ports.AuditRow) (string, error) {
	ref, err := c.append(ctx, c.auditSheet, ports.AuditRows(rows))
	if err != nil {
		return "", err
	}
	c.logger.InfoContext(ctx, "Exported audit", log.FieldSheetsRef, ref, log.FieldCount, len(rows))
	return ref, nil
}

func (c *Client) append(ctx context.Context, sheet string, rows [][]any) (string, error) {
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}
	rng := fmt.Sprintf("%s!A:E", sheet)
	vr := &gsheet.ValueRange{Values: rows}
	resp, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("append to %s: %w", sheet, err)
	}
	if resp.Updates == nil {
		return rng, nil
	}
	return resp.Updates.UpdatedRange, nil
}
