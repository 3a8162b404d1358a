package ledger

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"ledger/internal/core"
	"ledger/internal/session"
	"ledger/internal/store"
	"ledger/internal/store/bolt"
	"ledger/internal/store/memory"
	"ledger/internal/store/sqlite"
)

type backend struct {
	name string
	open func(t *testing.T) store.Store
}

// backends lists every store the engine must behave the same on; "saga"
// hides Atomically so the compensating path runs.
func backends() []backend {
	return []backend{
		{"memory", func(t *testing.T) store.Store { return memory.New() }},
		{"saga", func(t *testing.T) store.Store { return memory.New().Plain() }},
		{"sqlite", func(t *testing.T) store.Store {
			s, err := sqlite.Open(filepath.Join(t.TempDir(), "ledger.db"))
			if err != nil {
				t.Fatalf("open sqlite: %v", err)
			}
			t.Cleanup(func() { s.Close() })
			return s
		}},
		{"bolt", func(t *testing.T) store.Store {
			s, err := bolt.Open(filepath.Join(t.TempDir(), "ledger.bolt"))
			if err != nil {
				t.Fatalf("open bolt: %v", err)
			}
			t.Cleanup(func() { s.Close() })
			return s
		}},
	}
}

func newTestLedger(s store.Store, opts ...Option) *Ledger {
	return New(s, session.Static("u1"), opts...)
}

func mustWallet(t *testing.T, l *Ledger, name string, opening int64) core.Wallet {
	t.Helper()
	w, err := l.Wallets.Create(context.Background(), core.NewWallet{
		Name:           name,
		Currency:       "USD",
		OpeningBalance: core.Cents(opening),
	})
	if err != nil {
		t.Fatalf("create wallet %s: %v", name, err)
	}
	return w
}

func income(walletID string, day int, cents int64, category string) core.NewTransaction {
	return core.NewTransaction{
		Date:     core.NewDate(2024, 5, day),
		Income:   core.Cents(cents).Ptr(),
		Category: category,
		WalletID: walletID,
	}
}

func expense(walletID string, day int, cents int64, category string) core.NewTransaction {
	return core.NewTransaction{
		Date:     core.NewDate(2024, 5, day),
		Expense:  core.Cents(cents).Ptr(),
		Category: category,
		WalletID: walletID,
	}
}

func mustCreate(t *testing.T, l *Ledger, in core.NewTransaction) core.Transaction {
	t.Helper()
	tx, err := l.Transactions.Create(context.Background(), in)
	if err != nil {
		t.Fatalf("create transaction: %v", err)
	}
	return tx
}

// storedBalance reads the balance straight from the store.
func storedBalance(t *testing.T, s store.Store, walletID string) int64 {
	t.Helper()
	rec, err := store.Get(context.Background(), s, store.Wallets, walletID)
	if err != nil {
		t.Fatalf("get wallet %s: %v", walletID, err)
	}
	w, err := store.DecodeWallet(rec)
	if err != nil {
		t.Fatalf("decode wallet: %v", err)
	}
	return w.Balance.Cents
}

// expectedBalance recomputes opening + Σnet from the stored transactions.
func expectedBalance(t *testing.T, s store.Store, walletID string) int64 {
	t.Helper()
	ctx := context.Background()
	rec, err := store.Get(ctx, s, store.Wallets, walletID)
	if err != nil {
		t.Fatalf("get wallet: %v", err)
	}
	w, _ := store.DecodeWallet(rec)
	recs, err := s.Select(ctx, store.Transactions, store.Query{Filter: store.Filter{store.FieldWalletID: walletID}})
	if err != nil {
		t.Fatalf("select transactions: %v", err)
	}
	sum := w.OpeningBalance.Cents
	for _, r := range recs {
		tx, err := store.DecodeTransaction(r)
		if err != nil {
			t.Fatalf("decode transaction: %v", err)
		}
		sum += tx.Net().Cents
	}
	return sum
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []core.BalanceEvent
	err    error
}

func (p *recordingPublisher) PublishBalanceAdjusted(_ context.Context, evt core.BalanceEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
	return p.err
}

func (p *recordingPublisher) Events() []core.BalanceEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]core.BalanceEvent(nil), p.events...)
}
