package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"ledger/internal/sheets"
)

func (r *root) auditCmd() *cobra.Command {
	var export bool
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Check every wallet balance against opening balance plus its transactions",
		Long: `audit recomputes each wallet's expected balance as its opening balance
plus the net of every transaction referencing it, and reports any drift.
Balances are never rewritten.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			results, err := r.app.Auditor().AuditAll(cmd.Context(), r.app.UserID)
			if err != nil {
				return err
			}

			rows := make([]sheets.AuditRow, 0, len(results))
			drifted := 0
			tw := newTable(cmd.OutOrStdout(), "WALLET", "NAME", "STORED", "EXPECTED", "DRIFT")
			for _, a := range results {
				name := ""
				if w, ok := r.app.Ledger.Wallets.Get(a.WalletID); ok {
					name = w.Name
				}
				rows = append(rows, sheets.AuditRow{WalletID: a.WalletID, Name: name, Stored: a.Stored, Expected: a.Expected})
				row(tw, a.WalletID, name, a.Stored, a.Expected, a.Drift())
				if !a.Consistent() {
					drifted++
				}
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d wallets audited, %d drifted\n", len(results), drifted)

			if export {
				ref, err := r.app.Exporter.ExportAudit(cmd.Context(), rows)
				if err != nil {
					return fmt.Errorf("export audit: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Exported to %s\n", ref)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&export, "export", false, "append the results to the configured spreadsheet")
	return cmd
}
