// Package report derives summaries from wallet and transaction
// collections. Every function is pure and total: the empty collection
// yields zero sums and empty groupings.
package report

import (
	"sort"
	"strings"

	"ledger/internal/core"
)

const (
	// TopN bounds the category breakdown.
	TopN = 5
	// RecentN is the default length of the recent-transactions list.
	RecentN = 5
)

// TotalBalance sums every wallet's balance.
func TotalBalance(wallets []core.Wallet) core.Money {
	var total core.Money
	for _, w := range wallets {
		total = total.Add(w.Balance)
	}
	return total
}

// Totals sums income and expense over transactions dated within
// [from, to], counting transactions with a positive amount on each side.
func Totals(txs []core.Transaction, from, to core.Date) core.PeriodTotals {
	out := core.PeriodTotals{From: from, To: to}
	for _, tx := range txs {
		if !tx.Date.Within(&from, &to) {
			continue
		}
		out.Income = out.Income.Add(tx.IncomeOrZero())
		out.Expense = out.Expense.Add(tx.ExpenseOrZero())
		if tx.IsIncome() {
			out.IncomeCount++
		}
		if tx.IsExpense() {
			out.ExpenseCount++
		}
	}
	return out
}

// MonthToDate sums the calendar month containing ref, up to ref.
func MonthToDate(txs []core.Transaction, ref core.Date) core.PeriodTotals {
	from := core.NewDate(ref.Year(), int(ref.Month()), 1)
	return Totals(txs, from, ref)
}

// TopCategories groups expenses by category label and returns the n
// largest, descending. Categories without expense are omitted and ties
// keep first-seen order.
func TopCategories(txs []core.Transaction, n int) []core.CategoryAmount {
	var groups []core.CategoryAmount
	index := make(map[string]int)
	for _, tx := range txs {
		i, ok := index[tx.Category]
		if !ok {
			i = len(groups)
			index[tx.Category] = i
			groups = append(groups, core.CategoryAmount{Name: tx.Category})
		}
		groups[i].Amount = groups[i].Amount.Add(tx.ExpenseOrZero())
	}

	out := groups[:0]
	for _, g := range groups {
		if !g.Amount.IsZero() {
			out = append(out, g)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Amount.Cents > out[j].Amount.Cents
	})
	if n >= 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// Series returns one point per calendar day in [from, to], summing the
// transactions dated exactly on that day.
func Series(txs []core.Transaction, from, to core.Date) []core.DayPoint {
	byDay := make(map[string]*core.DayPoint)
	var out []core.DayPoint
	for d := from; d.Compare(to) <= 0; d = d.AddDays(1) {
		out = append(out, core.DayPoint{Date: d})
	}
	for i := range out {
		byDay[out[i].Date.String()] = &out[i]
	}
	for _, tx := range txs {
		p, ok := byDay[tx.Date.String()]
		if !ok {
			continue
		}
		p.Income = p.Income.Add(tx.IncomeOrZero())
		p.Expense = p.Expense.Add(tx.ExpenseOrZero())
	}
	return out
}

// SeriesFor is Series over the period containing ref.
func SeriesFor(txs []core.Transaction, p Period, ref core.Date) []core.DayPoint {
	from, to := p.Range(ref)
	return Series(txs, from, to)
}

// ByCategory reports income, expense and net per known category for
// transactions whose label equals the category name and whose date lies
// in [from, to].
func ByCategory(txs []core.Transaction, categories []core.Category, from, to core.Date) core.CategoryReport {
	out := core.CategoryReport{From: from, To: to, Rows: make([]core.CategoryStats, 0, len(categories))}
	for _, c := range categories {
		row := core.CategoryStats{Category: c}
		for _, tx := range txs {
			if tx.Category != c.Name || !tx.Date.Within(&from, &to) {
				continue
			}
			row.Income = row.Income.Add(tx.IncomeOrZero())
			row.Expense = row.Expense.Add(tx.ExpenseOrZero())
		}
		row.Net = row.Income.Sub(row.Expense)
		out.TotalIncome = out.TotalIncome.Add(row.Income)
		out.TotalExpense = out.TotalExpense.Add(row.Expense)
		out.Rows = append(out.Rows, row)
	}
	out.Net = out.TotalIncome.Sub(out.TotalExpense)
	return out
}

// CategoryTotals sums income and expense per label over all transactions.
// Labels in known come first, at zero when unused; other labels follow in
// first-seen order.
func CategoryTotals(txs []core.Transaction, known []string) []core.IncomeExpense {
	out := make([]core.IncomeExpense, 0, len(known))
	index := make(map[string]int, len(known))
	add := func(label string) int {
		if i, ok := index[label]; ok {
			return i
		}
		index[label] = len(out)
		out = append(out, core.IncomeExpense{Label: label})
		return len(out) - 1
	}
	for _, k := range known {
		add(k)
	}
	for _, tx := range txs {
		i := add(tx.Category)
		out[i].Income = out[i].Income.Add(tx.IncomeOrZero())
		out[i].Expense = out[i].Expense.Add(tx.ExpenseOrZero())
	}
	return out
}

// Recent returns the first n transactions in collection order.
func Recent(txs []core.Transaction, n int) []core.Transaction {
	if n < 0 || n > len(txs) {
		n = len(txs)
	}
	return append([]core.Transaction(nil), txs[:n]...)
}

// Search keeps transactions whose reason or category contains q, ignoring
// case. An empty query matches everything.
func Search(txs []core.Transaction, q string) []core.Transaction {
	q = strings.ToLower(strings.TrimSpace(q))
	out := make([]core.Transaction, 0, len(txs))
	for _, tx := range txs {
		if q == "" ||
			strings.Contains(strings.ToLower(tx.Reason), q) ||
			strings.Contains(strings.ToLower(tx.Category), q) {
			out = append(out, tx)
		}
	}
	return out
}
