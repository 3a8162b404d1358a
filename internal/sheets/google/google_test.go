package google

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"ledger/internal/core"
	"ledger/internal/log"
	ports "ledger/internal/sheets"

	goption "google.golang.org/api/option"
)

func TestNew_MissingSpreadsheetID(t *testing.T) {
	_, err := New(context.Background(), Config{}, log.Discard())
	if err == nil {
		t.Fatal("expected error for missing GOOGLE_SPREADSHEET_ID")
	}
	if err.Error() != "missing GOOGLE_SPREADSHEET_ID" {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestNew_MissingCredentials(t *testing.T) {
	for _, k := range []string{"GOOGLE_SERVICE_ACCOUNT_JSON", "GOOGLE_SERVICE_ACCOUNT_FILE", "GOOGLE_APPLICATION_CREDENTIALS"} {
		t.Setenv(k, "")
	}

	_, err := New(context.Background(), Config{SpreadsheetID: "sheet"}, log.Discard())
	if err == nil || !strings.Contains(err.Error(), "missing service account credentials") {
		t.Errorf("expected credentials error, got: %v", err)
	}
}

func TestNew_UnreadableCredentialsFile(t *testing.T) {
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_JSON", "")
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_FILE", "/nonexistent/creds.json")

	_, err := New(context.Background(), Config{SpreadsheetID: "sheet"}, log.Discard())
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected not-exist error, got: %v", err)
	}
}

func TestClient_NilService(t *testing.T) {
	c := &Client{spreadsheetID: "test", logger: log.Discard()}

	_, err := c.ExportCategoryReport(context.Background(), "title", core.CategoryReport{})
	if err == nil || err.Error() != "sheets service not initialized" {
		t.Errorf("unexpected error: %v", err)
	}
}

type appendCall struct {
	path  string
	query string
	body  struct {
		Values [][]any `json:"values"`
	}
}

func fakeSheets(t *testing.T, calls *[]appendCall) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var call appendCall
		call.path = r.URL.Path
		call.query = r.URL.RawQuery
		data, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(data, &call.body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		*calls = append(*calls, call)
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"spreadsheetId":"sheet-1","updates":{"updatedRange":"Reports!A1:D5","updatedRows":5}}`)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_ExportCategoryReport(t *testing.T) {
	var calls []appendCall
	srv := fakeSheets(t, &calls)

	c, err := NewWithOptions(context.Background(), Config{SpreadsheetID: "sheet-1"}, log.Discard(),
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithoutAuthentication(),
		goption.WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("NewWithOptions() error = %v", err)
	}

	report := core.CategoryReport{
		From: core.NewDate(2024, 5, 1),
		To:   core.NewDate(2024, 5, 31),
		Rows: []core.CategoryStats{
			{Category: core.Category{Name: "Food"}, Expense: core.Cents(1250), Net: core.Cents(-1250)},
		},
		TotalExpense: core.Cents(1250),
		Net:          core.Cents(-1250),
	}
	ref, err := c.ExportCategoryReport(context.Background(), "May", report)
	if err != nil {
		t.Fatalf("ExportCategoryReport() error = %v", err)
	}
	if ref != "Reports!A1:D5" {
		t.Errorf("ref = %q", ref)
	}

	if len(calls) != 1 {
		t.Fatalf("calls = %d, want 1", len(calls))
	}
	if !strings.Contains(calls[0].path, "/spreadsheets/sheet-1/values/") || !strings.HasSuffix(calls[0].path, ":append") {
		t.Errorf("path = %q", calls[0].path)
	}
	if !strings.Contains(calls[0].query, "valueInputOption=USER_ENTERED") {
		t.Errorf("query = %q", calls[0].query)
	}
	if got := len(calls[0].body.Values); got != len(ports.ReportRows("May", report)) {
		t.Errorf("rows sent = %d", got)
	}
	if calls[0].body.Values[2][0] != "Food" {
		t.Errorf("first category row = %v", calls[0].body.Values[2])
	}
}

func TestClient_ExportAuditUsesAuditSheet(t *testing.T) {
	var calls []appendCall
	srv := fakeSheets(t, &calls)

	c, err := NewWithOptions(context.Background(), Config{SpreadsheetID: "sheet-1", AuditSheet: "Checks"}, log.Discard(),
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithoutAuthentication(),
		goption.WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("NewWithOptions() error = %v", err)
	}

	_, err = c.ExportAudit(context.Background(), []ports.AuditRow{{WalletID: "w1", Stored: core.Cents(100)}})
	if err != nil {
		t.Fatalf("ExportAudit() error = %v", err)
	}
	if len(calls) != 1 || !strings.Contains(calls[0].path, "Checks") {
		t.Errorf("calls = %+v", calls)
	}
}
