package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"ledger/internal/core"
	"ledger/internal/ledger"
	"ledger/internal/report"
)

type txFlags struct {
	wallet, date, income, expense, category, reason string
	clearIncome, clearExpense                       bool
}

func (f *txFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.wallet, "wallet", "", "wallet id")
	cmd.Flags().StringVar(&f.date, "date", "", "date as YYYY-MM-DD (default today)")
	cmd.Flags().StringVar(&f.income, "income", "", "income amount")
	cmd.Flags().StringVar(&f.expense, "expense", "", "expense amount")
	cmd.Flags().StringVar(&f.category, "category", "", "category label")
	cmd.Flags().StringVar(&f.reason, "reason", "", "free-text reason")
}

func parseAmount(s string) (*core.Money, error) {
	if s == "" {
		return nil, nil
	}
	m, err := core.ParseMoney(s)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return &m, nil
}

func (r *root) txCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "tx",
		Aliases: []string{"transaction"},
		Short:   "Manage transactions",
	}

	var wallet, category, from, to, search string
	var recent int
	list := &cobra.Command{
		Use:   "list",
		Short: "List transactions, newest date first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			repo := r.app.Ledger.Transactions
			if wallet != "" {
				if _, err := repo.List(cmd.Context(), wallet); err != nil {
					return err
				}
			}
			f := ledger.TxFilter{Category: category}
			var err error
			if f.From, err = optDate(from); err != nil {
				return err
			}
			if f.To, err = optDate(to); err != nil {
				return err
			}
			txs := report.Search(repo.Filter(f), search)
			if recent > 0 {
				txs = report.Recent(txs, recent)
			}

			tw := newTable(cmd.OutOrStdout(), "ID", "DATE", "WALLET", "CATEGORY", "INCOME", "EXPENSE", "REASON")
			for _, t := range txs {
				row(tw, t.ID, t.Date, t.WalletID, t.Category, optMoney(t.Income), optMoney(t.Expense), t.Reason)
			}
			return tw.Flush()
		},
	}
	list.Flags().StringVar(&wallet, "wallet", "", "only this wallet")
	list.Flags().StringVar(&category, "category", "", "only this category label")
	list.Flags().StringVar(&from, "from", "", "first day, inclusive")
	list.Flags().StringVar(&to, "to", "", "last day, inclusive")
	list.Flags().StringVar(&search, "search", "", "substring of reason or category")
	list.Flags().IntVar(&recent, "recent", 0, "show only the first N")

	var add txFlags
	addCmd := &cobra.Command{
		Use:   "add",
		Short: "Record a transaction and adjust its wallet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			date, err := parseDateFlag(add.date)
			if err != nil {
				return err
			}
			in := core.NewTransaction{
				Date:     date,
				Category: add.category,
				Reason:   add.reason,
				WalletID: add.wallet,
			}
			if in.Income, err = parseAmount(add.income); err != nil {
				return err
			}
			if in.Expense, err = parseAmount(add.expense); err != nil {
				return err
			}
			tx, err := r.app.Ledger.Transactions.Create(cmd.Context(), in)
			if err != nil {
				return err
			}
			r.printBalance(cmd, "Created transaction "+tx.ID, tx.WalletID)
			return nil
		},
	}
	add.register(addCmd)

	var upd txFlags
	updateCmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change a transaction and re-adjust the affected wallets",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			patch, err := upd.patch(cmd)
			if err != nil {
				return err
			}
			tx, err := r.app.Ledger.Transactions.Update(cmd.Context(), args[0], patch)
			if err != nil {
				return err
			}
			r.printBalance(cmd, "Updated transaction "+tx.ID, tx.WalletID)
			return nil
		},
	}
	upd.register(updateCmd)
	updateCmd.Flags().BoolVar(&upd.clearIncome, "clear-income", false, "remove the income amount")
	updateCmd.Flags().BoolVar(&upd.clearExpense, "clear-expense", false, "remove the expense amount")

	del := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a transaction and reverse its effect on the wallet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := r.app.Ledger.Transactions.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted transaction %s\n", args[0])
			return nil
		},
	}

	cmd.AddCommand(list, addCmd, updateCmd, del)
	return cmd
}

func (f *txFlags) patch(cmd *cobra.Command) (core.TransactionPatch, error) {
	var p core.TransactionPatch
	changed := cmd.Flags().Changed
	if changed("date") {
		d, err := core.ParseDate(f.date)
		if err != nil {
			return p, fmt.Errorf("invalid date %q: %w", f.date, err)
		}
		p.Date = &d
	}
	if changed("income") {
		m, err := parseAmount(f.income)
		if err != nil {
			return p, err
		}
		p.Income = m
	}
	if changed("expense") {
		m, err := parseAmount(f.expense)
		if err != nil {
			return p, err
		}
		p.Expense = m
	}
	if changed("category") {
		p.Category = &f.category
	}
	if changed("reason") {
		p.Reason = &f.reason
	}
	if changed("wallet") {
		p.WalletID = &f.wallet
	}
	p.ClearIncome = f.clearIncome
	p.ClearExpense = f.clearExpense
	return p, nil
}

func (r *root) printBalance(cmd *cobra.Command, msg, walletID string) {
	out := cmd.OutOrStdout()
	if w, ok := r.app.Ledger.Wallets.Get(walletID); ok {
		fmt.Fprintf(out, "%s; %s balance %s %s\n", msg, w.Name, w.Balance, w.Currency)
		return
	}
	fmt.Fprintln(out, msg)
}
