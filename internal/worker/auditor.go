// Package worker runs the balance auditor that consumes balance events and
// checks each wallet against its transaction history.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ledger/internal/amqp"
	"ledger/internal/cache"
	"ledger/internal/core"
	"ledger/internal/log"
	"ledger/internal/store"
)

// WalletAudit compares a wallet's stored balance with opening balance plus
// the net of every transaction referencing it.
type WalletAudit struct {
	UserID       string
	WalletID     string
	Stored       core.Money
	Expected     core.Money
	Transactions int
}

// Drift is Stored minus Expected.
func (a WalletAudit) Drift() core.Money {
	return a.Stored.Sub(a.Expected)
}

func (a WalletAudit) Consistent() bool {
	return a.Drift().IsZero()
}

// Auditor reports balance drift. It never rewrites balances.
type Auditor struct {
	store  store.Store
	seen   cache.Cache[time.Time]
	logger *log.Logger
}

// NewAuditor builds an auditor reading from s. seen remembers handled
// event ids so redelivered messages are skipped.
func NewAuditor(s store.Store, seen cache.Cache[time.Time], logger *log.Logger) *Auditor {
	return &Auditor{
		store:  s,
		seen:   seen,
		logger: logger.WithComponent(log.ComponentWorker),
	}
}

// HandleBalanceEvent audits the wallet named by msg. Store failures are
// returned so the message is requeued.
func (a *Auditor) HandleBalanceEvent(ctx context.Context, msg *amqp.BalanceEventMessage) error {
	if msg.ID != "" && !a.seen.Add(msg.ID, time.Now()) {
		a.logger.DebugContext(ctx, "Skipping duplicate balance event", log.FieldEventID, msg.ID)
		return nil
	}

	_, err := a.AuditWallet(ctx, msg.UserID, msg.WalletID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		a.logger.WarnContext(ctx, "Audited wallet no longer exists",
			log.FieldEventID, msg.ID,
			log.FieldWalletID, msg.WalletID)
		return nil
	case err != nil:
		a.seen.Delete(msg.ID)
		return fmt.Errorf("audit wallet %s: %w", msg.WalletID, err)
	}
	return nil
}

// AuditWallet recomputes one wallet's expected balance. An empty userID
// audits without owner scoping.
func (a *Auditor) AuditWallet(ctx context.Context, userID, walletID string) (WalletAudit, error) {
	var result WalletAudit
	err := a.read(ctx, userID, func(s store.Store) error {
		rec, err := store.Get(ctx, s, store.Wallets, walletID)
		if err != nil {
			return err
		}
		w, err := store.DecodeWallet(rec)
		if err != nil {
			return err
		}
		result, err = audit(ctx, s, w)
		return err
	})
	if err != nil {
		return WalletAudit{}, err
	}
	a.report(ctx, result)
	return result, nil
}

// AuditAll audits every wallet the owner holds.
func (a *Auditor) AuditAll(ctx context.Context, userID string) ([]WalletAudit, error) {
	start := time.Now()
	var results []WalletAudit
	err := a.read(ctx, userID, func(s store.Store) error {
		recs, err := s.Select(ctx, store.Wallets, store.Query{
			Order: []store.Order{{Field: store.FieldCreatedAt, Desc: true}},
		})
		if err != nil {
			return fmt.Errorf("list wallets: %w", err)
		}
		results = make([]WalletAudit, 0, len(recs))
		for _, rec := range recs {
			w, err := store.DecodeWallet(rec)
			if err != nil {
				return err
			}
			r, err := audit(ctx, s, w)
			if err != nil {
				return err
			}
			results = append(results, r)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	drifted := 0
	for _, r := range results {
		a.report(ctx, r)
		if !r.Consistent() {
			drifted++
		}
	}
	a.logger.InfoContext(ctx, "Audit completed",
		log.FieldUserID, userID,
		log.FieldCount, len(results),
		"drifted", drifted,
		log.FieldDuration, time.Since(start).Milliseconds())
	return results, nil
}

// read runs fn in one storage transaction when the store supports it, so
// the wallet and its transactions are read from the same snapshot.
func (a *Auditor) read(ctx context.Context, userID string, fn func(store.Store) error) error {
	s := a.store
	if userID != "" {
		s = store.ForOwner(s, userID)
	}
	if tx, ok := s.(store.Transactor); ok {
		return tx.Atomically(ctx, fn)
	}
	return fn(s)
}

func (a *Auditor) report(ctx context.Context, r WalletAudit) {
	if r.Consistent() {
		a.logger.DebugContext(ctx, "Wallet balance consistent",
			log.FieldWalletID, r.WalletID,
			log.FieldBalanceCents, r.Stored.Cents)
		return
	}
	a.logger.WarnContext(ctx, "Balance drift detected",
		log.FieldUserID, r.UserID,
		log.FieldWalletID, r.WalletID,
		log.FieldBalanceCents, r.Stored.Cents,
		log.FieldExpectedCents, r.Expected.Cents,
		log.FieldDriftCents, r.Drift().Cents,
		log.FieldCount, r.Transactions)
}

func audit(ctx context.Context, s store.Store, w core.Wallet) (WalletAudit, error) {
	recs, err := s.Select(ctx, store.Transactions, store.Query{
		Filter: store.Filter{store.FieldWalletID: w.ID},
	})
	if err != nil {
		return WalletAudit{}, fmt.Errorf("list transactions: %w", err)
	}
	expected := w.OpeningBalance
	for _, rec := range recs {
		t, err := store.DecodeTransaction(rec)
		if err != nil {
			return WalletAudit{}, err
		}
		expected = expected.Add(t.Net())
	}
	return WalletAudit{
		UserID:       w.UserID,
		WalletID:     w.ID,
		Stored:       w.Balance,
		Expected:     expected,
		Transactions: len(recs),
	}, nil
}
