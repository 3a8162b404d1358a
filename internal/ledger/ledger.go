// Package ledger keeps wallet balances consistent with the transactions
// recorded against them. Every transaction create, update and delete goes
// through the Engine, which applies the compensating wallet adjustment
// before (or atomically with) the transaction write.
package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"ledger/internal/core"
	"ledger/internal/log"
	"ledger/internal/session"
	"ledger/internal/store"
)

// Publisher receives committed balance adjustments.
type Publisher interface {
	PublishBalanceAdjusted(ctx context.Context, evt core.BalanceEvent) error
}

type deps struct {
	store     store.Store
	session   session.Provider
	engine    *Engine
	logger    *log.Logger
	publisher Publisher
}

// scope resolves the signed-in user and returns the store restricted to
// their records.
func (d *deps) scope(ctx context.Context, op string) (store.Store, string, error) {
	u, err := d.session.Current(ctx)
	if err != nil {
		return nil, "", core.E(core.KindPrecondition, op, err)
	}
	return store.ForOwner(d.store, u.ID), u.ID, nil
}

// publish sends one event per written adjustment. Failures are logged and
// never undo the committed change.
func (d *deps) publish(ctx context.Context, userID, txID, op string, applied []Applied) {
	if d.publisher == nil {
		return
	}
	for _, a := range applied {
		if !a.Written {
			continue
		}
		evt := core.BalanceEvent{
			ID:            uuid.NewString(),
			UserID:        userID,
			WalletID:      a.WalletID,
			TransactionID: txID,
			Operation:     op,
			Delta:         a.Delta,
			Balance:       a.After,
			At:            time.Now().UTC(),
		}
		if err := d.publisher.PublishBalanceAdjusted(ctx, evt); err != nil {
			d.logger.WarnContext(ctx, "Failed to publish balance event",
				log.NewFields().
					WithOperation(log.OpPublish).
					WithAdjustment(a.WalletID, a.Delta.Cents, a.After.Cents).
					WithError(err).
					ToSlice()...)
		}
	}
}

// Option configures a Ledger.
type Option func(*deps)

func WithLogger(l *log.Logger) Option {
	return func(d *deps) { d.logger = l }
}

// WithPublisher publishes an event after every committed adjustment.
func WithPublisher(p Publisher) Option {
	return func(d *deps) { d.publisher = p }
}

// Ledger bundles the repositories of one application instance around a
// shared store, session and engine.
type Ledger struct {
	Wallets      *WalletRepository
	Transactions *TransactionRepository
	Categories   *CategoryRepository
}

func New(s store.Store, sp session.Provider, opts ...Option) *Ledger {
	d := &deps{store: s, session: sp}
	for _, opt := range opts {
		opt(d)
	}
	if d.logger == nil {
		d.logger = log.Discard()
	}
	d.engine = NewEngine(d.logger)

	wallets := newWalletRepository(d)
	return &Ledger{
		Wallets:      wallets,
		Transactions: newTransactionRepository(d, wallets),
		Categories:   newCategoryRepository(d),
	}
}

// Load fetches wallets, transactions and categories concurrently.
func (l *Ledger) Load(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		_, err := l.Wallets.List(ctx)
		return err
	})
	g.Go(func() error {
		_, err := l.Transactions.List(ctx, "")
		return err
	})
	g.Go(func() error {
		_, err := l.Categories.List(ctx)
		return err
	})
	return g.Wait()
}
