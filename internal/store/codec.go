package store

import (
	"fmt"

	"ledger/internal/core"
)

// Record field names for the three collections.
const (
	FieldName           = "name"
	FieldBalance        = "balance"
	FieldOpeningBalance = "opening_balance"
	FieldCurrency       = "currency"
	FieldDate           = "date"
	FieldIncome         = "income"
	FieldExpense        = "expense"
	FieldCategory       = "category"
	FieldReason         = "reason"
	FieldWalletID       = "wallet_id"
	FieldColor          = "color"
)

func EncodeWallet(w core.Wallet) Record {
	rec := Record{
		FieldName:           w.Name,
		FieldBalance:        w.Balance.Cents,
		FieldOpeningBalance: w.OpeningBalance.Cents,
		FieldCurrency:       w.Currency,
	}
	stampIdentity(rec, w.ID, w.UserID, w.CreatedAt.IsZero(), FormatTime(w.CreatedAt))
	return rec
}

func DecodeWallet(rec Record) (core.Wallet, error) {
	balance, ok := rec.Int64(FieldBalance)
	if !ok && rec[FieldBalance] != nil {
		return core.Wallet{}, fmt.Errorf("decode wallet %s: invalid balance %v", rec.ID(), rec[FieldBalance])
	}
	opening, _ := rec.Int64(FieldOpeningBalance)
	return core.Wallet{
		ID:             rec.ID(),
		UserID:         rec.String(FieldUserID),
		Name:           rec.String(FieldName),
		Balance:        core.Cents(balance),
		OpeningBalance: core.Cents(opening),
		Currency:       rec.String(FieldCurrency),
		CreatedAt:      rec.Time(FieldCreatedAt),
	}, nil
}

// EncodeTransaction stores absent amounts as nil.
func EncodeTransaction(t core.Transaction) Record {
	rec := Record{
		FieldDate:     t.Date.String(),
		FieldIncome:   centsOrNil(t.Income),
		FieldExpense:  centsOrNil(t.Expense),
		FieldCategory: t.Category,
		FieldReason:   t.Reason,
		FieldWalletID: t.WalletID,
	}
	stampIdentity(rec, t.ID, t.UserID, t.CreatedAt.IsZero(), FormatTime(t.CreatedAt))
	return rec
}

func DecodeTransaction(rec Record) (core.Transaction, error) {
	var date core.Date
	if s := rec.String(FieldDate); s != "" {
		d, err := core.ParseDate(s)
		if err != nil {
			return core.Transaction{}, fmt.Errorf("decode transaction %s: %w", rec.ID(), err)
		}
		date = d
	}
	return core.Transaction{
		ID:        rec.ID(),
		UserID:    rec.String(FieldUserID),
		Date:      date,
		Income:    moneyOrNil(rec, FieldIncome),
		Expense:   moneyOrNil(rec, FieldExpense),
		Category:  rec.String(FieldCategory),
		Reason:    rec.String(FieldReason),
		WalletID:  rec.String(FieldWalletID),
		CreatedAt: rec.Time(FieldCreatedAt),
	}, nil
}

func EncodeCategory(c core.Category) Record {
	rec := Record{
		FieldName:  c.Name,
		FieldColor: c.Color,
	}
	stampIdentity(rec, c.ID, c.UserID, c.CreatedAt.IsZero(), FormatTime(c.CreatedAt))
	return rec
}

func DecodeCategory(rec Record) core.Category {
	return core.Category{
		ID:        rec.ID(),
		UserID:    rec.String(FieldUserID),
		Name:      rec.String(FieldName),
		Color:     rec.String(FieldColor),
		CreatedAt: rec.Time(FieldCreatedAt),
	}
}

// Patch strips identity fields so a full encoding can be sent as an update.
func Patch(rec Record) Record {
	out := rec.Clone()
	delete(out, FieldID)
	delete(out, FieldUserID)
	delete(out, FieldCreatedAt)
	return out
}

func stampIdentity(rec Record, id, userID string, noCreated bool, createdAt string) {
	if id != "" {
		rec[FieldID] = id
	}
	if userID != "" {
		rec[FieldUserID] = userID
	}
	if !noCreated {
		rec[FieldCreatedAt] = createdAt
	}
}

func centsOrNil(m *core.Money) any {
	if m == nil {
		return nil
	}
	return m.Cents
}

func moneyOrNil(rec Record, key string) *core.Money {
	v, ok := rec.Int64(key)
	if !ok {
		return nil
	}
	return core.Cents(v).Ptr()
}
