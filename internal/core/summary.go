package core

import "time"

// CategoryAmount represents an amount aggregated by category name.
type CategoryAmount struct {
	Name   string
	Amount Money
}

// PeriodTotals sums income and expense over a date window.
type PeriodTotals struct {
	From         Date
	To           Date
	Income       Money
	Expense      Money
	IncomeCount  int
	ExpenseCount int
}

// DayPoint is one calendar day of a time-bucketed series.
type DayPoint struct {
	Date    Date
	Income  Money
	Expense Money
}

// CategoryStats is one row of a per-category report.
type CategoryStats struct {
	Category Category
	Income   Money
	Expense  Money
	Net      Money
}

// CategoryReport is the per-category breakdown over an explicit range.
type CategoryReport struct {
	From         Date
	To           Date
	Rows         []CategoryStats
	TotalIncome  Money
	TotalExpense Money
	Net          Money
}

// IncomeExpense pairs the two sides for a single label.
type IncomeExpense struct {
	Label   string
	Income  Money
	Expense Money
}

// BalanceEvent describes one committed compensating adjustment.
type BalanceEvent struct {
	ID            string
	UserID        string
	WalletID      string
	TransactionID string
	Operation     string // create, update or delete
	Delta         Money
	Balance       Money // wallet balance after the adjustment
	At            time.Time
}
