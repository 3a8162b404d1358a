package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"ledger/internal/core"
	"ledger/internal/report"
)

func (r *root) walletCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wallet",
		Short: "Manage wallets",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List wallets, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			wallets := r.app.Ledger.Wallets.Wallets()
			tw := newTable(cmd.OutOrStdout(), "ID", "NAME", "CURRENCY", "BALANCE")
			for _, w := range wallets {
				row(tw, w.ID, w.Name, w.Currency, w.Balance)
			}
			row(tw, "", "TOTAL", "", report.TotalBalance(wallets))
			return tw.Flush()
		},
	}

	var name, currency, opening string
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a wallet with an opening balance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := core.ParseSignedMoney(opening)
			if err != nil {
				return fmt.Errorf("invalid opening balance: %w", err)
			}
			w, err := r.app.Ledger.Wallets.Create(cmd.Context(), core.NewWallet{
				Name:           name,
				Currency:       strings.ToUpper(currency),
				OpeningBalance: amount,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created wallet %s (%s %s)\n", w.ID, w.Balance, w.Currency)
			return nil
		},
	}
	create.Flags().StringVar(&name, "name", "", "wallet name")
	create.Flags().StringVar(&currency, "currency", "USD", "currency code")
	create.Flags().StringVar(&opening, "opening", "0", "opening balance")
	create.MarkFlagRequired("name")

	var newName, newCurrency, balance string
	update := &cobra.Command{
		Use:   "update <id>",
		Short: "Rename a wallet, change its currency or set its balance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var patch core.WalletPatch
			if cmd.Flags().Changed("name") {
				patch.Name = &newName
			}
			if cmd.Flags().Changed("currency") {
				c := strings.ToUpper(newCurrency)
				patch.Currency = &c
			}
			if cmd.Flags().Changed("balance") {
				b, err := core.ParseSignedMoney(balance)
				if err != nil {
					return fmt.Errorf("invalid balance: %w", err)
				}
				patch.Balance = &b
			}
			w, err := r.app.Ledger.Wallets.Update(cmd.Context(), args[0], patch)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated wallet %s: %s %s %s\n", w.ID, w.Name, w.Balance, w.Currency)
			return nil
		},
	}
	update.Flags().StringVar(&newName, "name", "", "new name")
	update.Flags().StringVar(&newCurrency, "currency", "", "new currency code")
	update.Flags().StringVar(&balance, "balance", "", "overwrite the balance")

	del := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a wallet (its transactions are kept)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := r.app.Ledger.Wallets.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted wallet %s\n", args[0])
			return nil
		},
	}

	cmd.AddCommand(list, create, update, del)
	return cmd
}
