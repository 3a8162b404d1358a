package ledger

import (
	"context"
	"errors"
	"fmt"

	"ledger/internal/core"
	"ledger/internal/log"
	"ledger/internal/store"
)

// Adjustment is a signed change to one wallet's balance.
type Adjustment struct {
	WalletID string
	Delta    core.Money
}

// Applied records an adjustment after its wallet was read. Written is false
// when the delta was zero and the write was skipped.
type Applied struct {
	WalletID string
	Delta    core.Money
	Before   core.Money
	After    core.Money
	Written  bool
}

// PlanCreate adds the new transaction's net effect to its wallet.
func PlanCreate(tx core.Transaction) []Adjustment {
	return []Adjustment{{WalletID: tx.WalletID, Delta: tx.Net()}}
}

// PlanUpdate returns one adjustment when the wallet is unchanged and two
// when the transaction moves: the old wallet loses the old net effect and
// the new wallet gains the new one.
func PlanUpdate(old, updated core.Transaction) []Adjustment {
	if old.WalletID == updated.WalletID {
		income := updated.IncomeOrZero().Sub(old.IncomeOrZero())
		expense := updated.ExpenseOrZero().Sub(old.ExpenseOrZero())
		return []Adjustment{{WalletID: old.WalletID, Delta: income.Sub(expense)}}
	}
	return []Adjustment{
		{WalletID: old.WalletID, Delta: old.Net().Neg()},
		{WalletID: updated.WalletID, Delta: updated.Net()},
	}
}

// PlanDelete reverses the transaction's net effect.
func PlanDelete(tx core.Transaction) []Adjustment {
	return []Adjustment{{WalletID: tx.WalletID, Delta: tx.ExpenseOrZero().Sub(tx.IncomeOrZero())}}
}

// Engine applies balance adjustments ahead of the paired transaction write.
// Mutations are serialized per wallet; when the store is a Transactor both
// writes share one storage transaction, otherwise a failed transaction
// write restores the wallet balances it followed.
type Engine struct {
	locks  *keyLocks
	logger *log.Logger
}

func NewEngine(logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.Discard()
	}
	return &Engine{locks: newKeyLocks(), logger: logger.WithComponent(log.ComponentLedger)}
}

// Commit locks the wallets in adjs, reads each once, writes every non-zero
// adjusted balance and then runs write. Nothing is written when a wallet
// read fails. committed, if set, runs after a successful commit while the
// wallet locks are still held.
func (e *Engine) Commit(ctx context.Context, s store.Store, op string, adjs []Adjustment, write func(store.Store) error, committed func([]Applied)) ([]Applied, error) {
	keys := make([]string, 0, len(adjs))
	for _, a := range adjs {
		if a.WalletID == "" {
			return nil, core.E(core.KindValidation, op, core.ErrMissingWallet)
		}
		keys = append(keys, walletKey(a.WalletID))
	}
	unlock, err := e.locks.lock(ctx, keys...)
	if err != nil {
		return nil, core.E(core.KindStore, op, err)
	}
	defer unlock()

	if tx, ok := s.(store.Transactor); ok {
		var applied []Applied
		err := tx.Atomically(ctx, func(inner store.Store) error {
			var err error
			applied, err = e.apply(ctx, inner, op, adjs)
			if err != nil {
				return err
			}
			return write(inner)
		})
		if err != nil {
			return nil, core.E(core.KindStore, op, err)
		}
		e.done(ctx, op, applied, committed)
		return applied, nil
	}

	applied, err := e.apply(ctx, s, op, adjs)
	if err != nil {
		return nil, e.compensate(ctx, s, op, applied, err)
	}
	if err := write(s); err != nil {
		return nil, e.compensate(ctx, s, op, applied, core.E(core.KindStore, op, err))
	}
	e.done(ctx, op, applied, committed)
	return applied, nil
}

func (e *Engine) done(ctx context.Context, op string, applied []Applied, committed func([]Applied)) {
	if committed != nil {
		committed(applied)
	}
	e.logApplied(ctx, op, applied)
}

// apply reads every wallet before writing any, so a failed read leaves the
// store untouched. On a failed write the adjustments written so far are
// returned alongside the error.
func (e *Engine) apply(ctx context.Context, s store.Store, op string, adjs []Adjustment) ([]Applied, error) {
	merged := mergeAdjustments(adjs)
	applied := make([]Applied, 0, len(merged))
	for _, a := range merged {
		rec, err := store.Get(ctx, s, store.Wallets, a.WalletID)
		if errors.Is(err, store.ErrNotFound) {
			return nil, core.E(core.KindNotFound, op, fmt.Errorf("wallet %s: %w", a.WalletID, err))
		}
		if err != nil {
			return nil, core.E(core.KindStore, op, err)
		}
		w, err := store.DecodeWallet(rec)
		if err != nil {
			return nil, core.E(core.KindStore, op, err)
		}
		applied = append(applied, Applied{
			WalletID: a.WalletID,
			Delta:    a.Delta,
			Before:   w.Balance,
			After:    w.Balance.Add(a.Delta),
		})
	}

	written := make([]Applied, 0, len(applied))
	for _, a := range applied {
		if a.Delta.IsZero() {
			written = append(written, a)
			continue
		}
		_, err := store.UpdateOwned(ctx, s, store.Wallets, a.WalletID, store.Record{store.FieldBalance: a.After.Cents})
		if err != nil {
			return written, core.E(core.KindStore, op, err)
		}
		a.Written = true
		written = append(written, a)
	}
	return written, nil
}

// compensate restores the prior balance of every written wallet. If that
// fails the store is left inconsistent and the error says so.
func (e *Engine) compensate(ctx context.Context, s store.Store, op string, applied []Applied, cause error) error {
	ctx = context.WithoutCancel(ctx)
	var failed []error
	for i := len(applied) - 1; i >= 0; i-- {
		a := applied[i]
		if !a.Written {
			continue
		}
		_, err := store.UpdateOwned(ctx, s, store.Wallets, a.WalletID, store.Record{store.FieldBalance: a.Before.Cents})
		if err != nil {
			e.logger.ErrorContext(ctx, "Failed to restore wallet balance",
				log.NewFields().
					WithOperation(log.OpCompensate).
					WithAdjustment(a.WalletID, a.Delta.Cents, a.After.Cents).
					WithError(err).
					ToSlice()...)
			failed = append(failed, fmt.Errorf("wallet %s: %w", a.WalletID, err))
			continue
		}
		e.logger.WarnContext(ctx, "Wallet balance restored after failed write",
			log.FieldOperation, op,
			log.FieldWalletID, a.WalletID,
			log.FieldBalanceCents, a.Before.Cents)
	}
	if len(failed) == 0 {
		return cause
	}
	return &core.Error{
		Kind: core.KindInconsistent,
		Op:   op,
		Err:  fmt.Errorf("%w (restoring balance failed: %v)", cause, errors.Join(failed...)),
	}
}

func (e *Engine) logApplied(ctx context.Context, op string, applied []Applied) {
	for _, a := range applied {
		if !a.Written {
			continue
		}
		e.logger.InfoContext(ctx, "Wallet balance adjusted",
			log.NewFields().
				WithOperation(op).
				WithAdjustment(a.WalletID, a.Delta.Cents, a.After.Cents).
				ToSlice()...)
	}
}

// lockTransaction serializes mutations of one transaction so the record an
// update or delete plans from cannot change underneath it.
func (e *Engine) lockTransaction(ctx context.Context, id string) (func(), error) {
	return e.locks.lock(ctx, transactionKey(id))
}

// lockWallet serializes a user balance edit with adjustments.
func (e *Engine) lockWallet(ctx context.Context, id string) (func(), error) {
	return e.locks.lock(ctx, walletKey(id))
}

// mergeAdjustments folds adjustments to the same wallet so each wallet is
// read and written at most once.
func mergeAdjustments(adjs []Adjustment) []Adjustment {
	out := make([]Adjustment, 0, len(adjs))
	index := make(map[string]int, len(adjs))
	for _, a := range adjs {
		if i, ok := index[a.WalletID]; ok {
			out[i].Delta = out[i].Delta.Add(a.Delta)
			continue
		}
		index[a.WalletID] = len(out)
		out = append(out, a)
	}
	return out
}
