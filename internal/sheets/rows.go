package sheets

import (
	"ledger/internal/core"
)

// ReportRows lays out a category report as spreadsheet rows: a title row,
// a header, one row per category and a totals row. Amounts are decimal
// strings in major units.
func ReportRows(title string, r core.CategoryReport) [][]any {
	rows := make([][]any, 0, len(r.Rows)+3)
	rows = append(rows,
		[]any{title, r.From.String(), r.To.String()},
		[]any{"Category", "Income", "Expense", "Net"},
	)
	for _, s := range r.Rows {
		rows = append(rows, []any{s.Category.Name, s.Income.String(), s.Expense.String(), s.Net.String()})
	}
	rows = append(rows, []any{"Total", r.TotalIncome.String(), r.TotalExpense.String(), r.Net.String()})
	return rows
}

// AuditRows lays out audit results under a header row.
func AuditRows(audits []AuditRow) [][]any {
	rows := make([][]any, 0, len(audits)+1)
	rows = append(rows, []any{"Wallet", "Name", "Stored", "Expected", "Drift"})
	for _, a := range audits {
		rows = append(rows, []any{a.WalletID, a.Name, a.Stored.String(), a.Expected.String(), a.Drift().String()})
	}
	return rows
}
