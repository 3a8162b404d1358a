package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"ledger/internal/core"
	"ledger/internal/report"
)

func (r *root) reportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Summaries over wallets and transactions",
	}

	var wallet, date, period string
	var export bool

	// transactions reloads a single wallet's transactions when asked to.
	transactions := func(cmd *cobra.Command) ([]core.Transaction, error) {
		repo := r.app.Ledger.Transactions
		if wallet == "" {
			return repo.Transactions(), nil
		}
		return repo.List(cmd.Context(), wallet)
	}

	summary := &cobra.Command{
		Use:   "summary",
		Short: "Total balance, month-to-date totals, top categories and recent transactions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ref, err := parseDateFlag(date)
			if err != nil {
				return err
			}
			txs, err := transactions(cmd)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			mtd := report.MonthToDate(txs, ref)

			fmt.Fprintf(out, "Total balance: %s\n", report.TotalBalance(r.app.Ledger.Wallets.Wallets()))
			fmt.Fprintf(out, "Month to date (%s..%s): income %s (%d), expense %s (%d)\n",
				mtd.From, mtd.To, mtd.Income, mtd.IncomeCount, mtd.Expense, mtd.ExpenseCount)

			fmt.Fprintln(out, "\nTop categories:")
			tw := newTable(out, "CATEGORY", "EXPENSE")
			for _, c := range report.TopCategories(txs, report.TopN) {
				row(tw, c.Name, c.Amount)
			}
			if err := tw.Flush(); err != nil {
				return err
			}

			fmt.Fprintln(out, "\nRecent:")
			tw = newTable(out, "DATE", "CATEGORY", "INCOME", "EXPENSE", "REASON")
			for _, t := range report.Recent(txs, report.RecentN) {
				row(tw, t.Date, t.Category, optMoney(t.Income), optMoney(t.Expense), t.Reason)
			}
			return tw.Flush()
		},
	}

	categories := &cobra.Command{
		Use:   "categories",
		Short: "Income, expense and net per category over a period",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ref, err := parseDateFlag(date)
			if err != nil {
				return err
			}
			p, err := report.ParsePeriod(period)
			if err != nil {
				return err
			}
			txs, err := transactions(cmd)
			if err != nil {
				return err
			}
			from, to := p.Range(ref)
			rep := report.ByCategory(txs, r.app.Ledger.Categories.Categories(), from, to)

			tw := newTable(cmd.OutOrStdout(), "CATEGORY", "INCOME", "EXPENSE", "NET")
			for _, s := range rep.Rows {
				row(tw, s.Category.Name, s.Income, s.Expense, s.Net)
			}
			row(tw, "TOTAL", rep.TotalIncome, rep.TotalExpense, rep.Net)
			if err := tw.Flush(); err != nil {
				return err
			}

			if !export {
				return nil
			}
			title := fmt.Sprintf("Categories %s", p)
			exported, err := r.app.Exporter.ExportCategoryReport(cmd.Context(), title, rep)
			if err != nil {
				return fmt.Errorf("export report: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported to %s\n", exported)
			return nil
		},
	}
	categories.Flags().BoolVar(&export, "export", false, "append the report to the configured spreadsheet")

	series := &cobra.Command{
		Use:   "series",
		Short: "Daily income and expense over a week, month or year",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ref, err := parseDateFlag(date)
			if err != nil {
				return err
			}
			p, err := report.ParsePeriod(period)
			if err != nil {
				return err
			}
			txs, err := transactions(cmd)
			if err != nil {
				return err
			}
			tw := newTable(cmd.OutOrStdout(), "DATE", "INCOME", "EXPENSE")
			for _, pt := range report.SeriesFor(txs, p, ref) {
				row(tw, pt.Date, pt.Income, pt.Expense)
			}
			return tw.Flush()
		},
	}

	totals := &cobra.Command{
		Use:   "totals",
		Short: "Income and expense per category label over all transactions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			txs, err := transactions(cmd)
			if err != nil {
				return err
			}
			tw := newTable(cmd.OutOrStdout(), "CATEGORY", "INCOME", "EXPENSE")
			for _, t := range report.CategoryTotals(txs, r.app.Ledger.Categories.Names()) {
				row(tw, t.Label, t.Income, t.Expense)
			}
			return tw.Flush()
		},
	}

	for _, c := range []*cobra.Command{summary, categories, series, totals} {
		c.Flags().StringVar(&wallet, "wallet", "", "only this wallet")
	}
	for _, c := range []*cobra.Command{summary, categories, series} {
		c.Flags().StringVar(&date, "date", "", "reference date as YYYY-MM-DD (default today)")
	}
	for _, c := range []*cobra.Command{categories, series} {
		c.Flags().StringVar(&period, "period", "week", "week, month or year")
	}

	cmd.AddCommand(summary, categories, series, totals)
	return cmd
}
