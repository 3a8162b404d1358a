package core

import (
	"errors"
	"strings"
	"time"
)

// AllCategories is the filter sentinel meaning "no category restriction".
const AllCategories = "All"

type (
	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	Wallet struct {
		ID             string
		UserID         string
		Name           string
		Balance        Money // running total, adjusted by transaction mutations
		OpeningBalance Money // balance at creation, never adjusted
		Currency       string
		CreatedAt      time.Time
	}

	// Transaction is a single dated income or expense event. Income and
	// Expense are nil when absent; at most one of them is positive.
	Transaction struct {
		ID        string
		UserID    string
		Date      Date
		Income    *Money
		Expense   *Money
		Category  string // free-text label matched against Category.Name
		Reason    string
		WalletID  string
		CreatedAt time.Time
	}

	Category struct {
		ID        string
		UserID    string
		Name      string
		Color     string
		CreatedAt time.Time
	}

	NewWallet struct {
		Name           string
		Currency       string
		OpeningBalance Money
	}

	WalletPatch struct {
		Name     *string
		Currency *string
		Balance  *Money
	}

	NewTransaction struct {
		Date     Date
		Income   *Money
		Expense  *Money
		Category string
		Reason   string
		WalletID string
	}

	// TransactionPatch is a partial update. Nil fields keep their current
	// value; ClearIncome/ClearExpense remove an amount so a transaction can
	// switch between income and expense.
	TransactionPatch struct {
		Date         *Date
		Income       *Money
		Expense      *Money
		ClearIncome  bool
		ClearExpense bool
		Category     *string
		Reason       *string
		WalletID     *string
	}

	NewCategory struct {
		Name  string
		Color string
	}

	CategoryPatch struct {
		Name  *string
		Color *string
	}
)

var (
	ErrMissingWallet    = errors.New("please select a wallet")
	ErrBothAmounts      = errors.New("transaction cannot carry both income and expense")
	ErrMissingAmount    = errors.New("transaction needs an income or an expense")
	ErrInvalidDate      = errors.New("invalid date")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrEmptyName        = errors.New("name cannot be empty")
	ErrInvalidCurrency  = errors.New("unsupported currency")
	ErrDuplicateName    = errors.New("category name already exists")
	ErrReasonTooLong    = errors.New("reason too long (max 200 characters)")
	ErrWalletNameLength = errors.New("wallet name too long (max 60 characters)")
)

// SupportedCurrencies lists the ISO codes a wallet may be created with.
var SupportedCurrencies = []string{"USD", "EUR", "GBP", "JPY", "CAD", "AUD", "INR", "NPR"}

// DefaultCategories seeds a new user's category set.
var DefaultCategories = []string{
	"Transportation",
	"Food",
	"Salary",
	"Internet",
	"TV",
	"House Rent Income",
	"Dad/ Mom",
	"Games / Apps",
	"Phone Recharge",
	"Festival",
	"Online to Cash",
	"Cash To Online",
	"Stationary",
	"Bank/ Wallet Interest",
	"Loan",
	"EMI",
	"Transfer to Another app",
	"Given By others",
	"Gift to others",
	"Tech",
	"Lost",
	"Entertainment",
	"Clothes / Shoes",
	"Cash Withdrawal",
	"Medicine",
	"Haircut",
	"Card Game",
}

// IsSupportedCurrency reports whether code is one of SupportedCurrencies.
func IsSupportedCurrency(code string) bool {
	for _, c := range SupportedCurrencies {
		if c == code {
			return true
		}
	}
	return false
}

// Net returns income minus expense, treating absent amounts as zero.
func (t Transaction) Net() Money {
	return t.IncomeOrZero().Sub(t.ExpenseOrZero())
}

func (t Transaction) IncomeOrZero() Money {
	if t.Income == nil {
		return Money{}
	}
	return *t.Income
}

func (t Transaction) ExpenseOrZero() Money {
	if t.Expense == nil {
		return Money{}
	}
	return *t.Expense
}

// IsIncome reports whether the transaction carries a positive income.
func (t Transaction) IsIncome() bool {
	return t.Income != nil && t.Income.Cents > 0
}

// IsExpense reports whether the transaction carries a positive expense.
func (t Transaction) IsExpense() bool {
	return t.Expense != nil && t.Expense.Cents > 0
}

// Apply returns a copy of t with the patch merged in.
func (t Transaction) Apply(p TransactionPatch) Transaction {
	out := t
	if p.Date != nil {
		out.Date = *p.Date
	}
	if p.ClearIncome {
		out.Income = nil
	}
	if p.ClearExpense {
		out.Expense = nil
	}
	if p.Income != nil {
		v := *p.Income
		out.Income = &v
	}
	if p.Expense != nil {
		v := *p.Expense
		out.Expense = &v
	}
	if p.Category != nil {
		out.Category = *p.Category
	}
	if p.Reason != nil {
		out.Reason = *p.Reason
	}
	if p.WalletID != nil {
		out.WalletID = *p.WalletID
	}
	return out
}

// Validate checks the persisted-state invariants of a transaction.
func (t Transaction) Validate() error {
	if strings.TrimSpace(t.WalletID) == "" {
		return ErrMissingWallet
	}
	if t.Date.IsZero() {
		return ErrInvalidDate
	}
	if t.Income != nil && t.Expense != nil {
		return ErrBothAmounts
	}
	if t.Income == nil && t.Expense == nil {
		return ErrMissingAmount
	}
	if len(t.Reason) > 200 {
		return ErrReasonTooLong
	}
	return nil
}

// Transaction builds the record a create request will persist.
func (n NewTransaction) Transaction() Transaction {
	return Transaction{
		Date:     n.Date,
		Income:   n.Income,
		Expense:  n.Expense,
		Category: strings.TrimSpace(n.Category),
		Reason:   n.Reason,
		WalletID: strings.TrimSpace(n.WalletID),
	}
}

func (n NewTransaction) Validate() error {
	return n.Transaction().Validate()
}

func (n NewWallet) Validate() error {
	name := strings.TrimSpace(n.Name)
	if name == "" {
		return ErrEmptyName
	}
	if len(name) > 60 {
		return ErrWalletNameLength
	}
	if !IsSupportedCurrency(n.Currency) {
		return ErrInvalidCurrency
	}
	return nil
}

func (p WalletPatch) Validate() error {
	if p.Name != nil {
		name := strings.TrimSpace(*p.Name)
		if name == "" {
			return ErrEmptyName
		}
		if len(name) > 60 {
			return ErrWalletNameLength
		}
	}
	if p.Currency != nil && !IsSupportedCurrency(*p.Currency) {
		return ErrInvalidCurrency
	}
	return nil
}

// Apply returns a copy of w with the patch merged in.
func (w Wallet) Apply(p WalletPatch) Wallet {
	out := w
	if p.Name != nil {
		out.Name = strings.TrimSpace(*p.Name)
	}
	if p.Currency != nil {
		out.Currency = *p.Currency
	}
	if p.Balance != nil {
		out.Balance = *p.Balance
	}
	return out
}

func (n NewCategory) Validate() error {
	if strings.TrimSpace(n.Name) == "" {
		return ErrEmptyName
	}
	return nil
}

// Apply returns a copy of c with the patch merged in.
func (c Category) Apply(p CategoryPatch) Category {
	out := c
	if p.Name != nil {
		out.Name = strings.TrimSpace(*p.Name)
	}
	if p.Color != nil {
		out.Color = *p.Color
	}
	return out
}
