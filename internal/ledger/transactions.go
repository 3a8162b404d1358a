package ledger

import (
	"context"
	"errors"
	"sync"

	"ledger/internal/core"
	"ledger/internal/log"
	"ledger/internal/store"
)

// TxFilter narrows the filtered view. An empty Category or AllCategories
// means no category restriction; nil bounds are open; bounds are inclusive
// calendar days.
type TxFilter struct {
	Category string
	From     *core.Date
	To       *core.Date
}

// Match reports whether tx passes the filter.
func (f TxFilter) Match(tx core.Transaction) bool {
	if f.Category != "" && f.Category != core.AllCategories && tx.Category != f.Category {
		return false
	}
	return tx.Date.Within(f.From, f.To)
}

// ApplyFilter returns the transactions matching f in their original order.
func ApplyFilter(txs []core.Transaction, f TxFilter) []core.Transaction {
	out := make([]core.Transaction, 0, len(txs))
	for _, tx := range txs {
		if f.Match(tx) {
			out = append(out, tx)
		}
	}
	return out
}

// TransactionRepository owns the full transaction collection and the
// filtered view derived from it.
type TransactionRepository struct {
	state
	d       *deps
	wallets *WalletRepository
	logger  *log.Logger

	mu       sync.RWMutex
	all      []core.Transaction
	filtered []core.Transaction
	filter   TxFilter
}

func newTransactionRepository(d *deps, wallets *WalletRepository) *TransactionRepository {
	return &TransactionRepository{
		d:       d,
		wallets: wallets,
		logger:  d.logger.WithComponent(log.ComponentTransaction),
	}
}

// List loads transactions, optionally for one wallet, newest date first.
// Both the full collection and the filtered view get the result.
func (r *TransactionRepository) List(ctx context.Context, walletID string) ([]core.Transaction, error) {
	const op = "transaction.list"
	r.begin()
	txs, err := r.list(ctx, op, walletID)
	r.end(err)
	if err != nil {
		r.logFailure(ctx, log.OpList, "", err)
		return nil, err
	}
	r.mu.Lock()
	r.all = txs
	r.filtered = cloneTransactions(txs)
	r.filter = TxFilter{}
	r.mu.Unlock()
	return cloneTransactions(txs), nil
}

func (r *TransactionRepository) list(ctx context.Context, op, walletID string) ([]core.Transaction, error) {
	s, _, err := r.d.scope(ctx, op)
	if err != nil {
		return nil, err
	}
	q := store.Query{Order: []store.Order{{Field: store.FieldDate, Desc: true}}}
	if walletID != "" {
		q.Filter = store.Filter{store.FieldWalletID: walletID}
	}
	recs, err := s.Select(ctx, store.Transactions, q)
	if err != nil {
		return nil, core.E(core.KindStore, op, err)
	}
	txs := make([]core.Transaction, 0, len(recs))
	for _, rec := range recs {
		tx, err := store.DecodeTransaction(rec)
		if err != nil {
			return nil, core.E(core.KindStore, op, err)
		}
		txs = append(txs, tx)
	}
	return txs, nil
}

// Create adjusts the wallet, stores the transaction and prepends it to
// both collections. The new record goes first regardless of its date.
func (r *TransactionRepository) Create(ctx context.Context, in core.NewTransaction) (core.Transaction, error) {
	const op = "transaction.create"
	if err := in.Validate(); err != nil {
		err = core.E(core.KindValidation, op, err)
		r.fail(err)
		return core.Transaction{}, err
	}
	r.begin()
	tx, err := r.create(ctx, op, in.Transaction())
	r.end(err)
	if err != nil {
		r.logFailure(ctx, log.OpCreate, "", err)
		return core.Transaction{}, err
	}
	r.mu.Lock()
	r.all = append([]core.Transaction{tx}, r.all...)
	r.filtered = append([]core.Transaction{tx}, r.filtered...)
	r.mu.Unlock()
	return tx, nil
}

func (r *TransactionRepository) create(ctx context.Context, op string, tx core.Transaction) (core.Transaction, error) {
	s, userID, err := r.d.scope(ctx, op)
	if err != nil {
		return core.Transaction{}, err
	}
	var saved core.Transaction
	applied, err := r.wallets.adjust(ctx, s, op, PlanCreate(tx), func(s store.Store) error {
		rec, err := s.Insert(ctx, store.Transactions, store.EncodeTransaction(tx))
		if err != nil {
			return err
		}
		saved, err = store.DecodeTransaction(rec)
		return err
	})
	if err != nil {
		return core.Transaction{}, err
	}
	r.d.publish(ctx, userID, saved.ID, log.OpCreate, applied)
	return saved, nil
}

// Update loads the stored transaction, applies patch, adjusts the affected
// wallet(s) and replaces the record in both collections.
func (r *TransactionRepository) Update(ctx context.Context, id string, patch core.TransactionPatch) (core.Transaction, error) {
	const op = "transaction.update"
	r.begin()
	tx, err := r.update(ctx, op, id, patch)
	r.end(err)
	if err != nil {
		r.logFailure(ctx, log.OpUpdate, id, err)
		return core.Transaction{}, err
	}
	return tx, nil
}

func (r *TransactionRepository) update(ctx context.Context, op, id string, patch core.TransactionPatch) (core.Transaction, error) {
	s, userID, err := r.d.scope(ctx, op)
	if err != nil {
		return core.Transaction{}, err
	}
	unlock, err := r.d.engine.lockTransaction(ctx, id)
	if err != nil {
		return core.Transaction{}, core.E(core.KindStore, op, err)
	}
	defer unlock()

	old, err := r.load(ctx, s, op, id)
	if err != nil {
		return core.Transaction{}, err
	}
	updated := old.Apply(patch)
	if err := updated.Validate(); err != nil {
		return core.Transaction{}, core.E(core.KindValidation, op, err)
	}
	var saved core.Transaction
	applied, err := r.wallets.adjust(ctx, s, op, PlanUpdate(old, updated), func(s store.Store) error {
		rec, err := s.Update(ctx, store.Transactions, id, store.Patch(store.EncodeTransaction(updated)))
		if err != nil {
			return err
		}
		saved, err = store.DecodeTransaction(rec)
		return err
	})
	if err != nil {
		return core.Transaction{}, err
	}
	r.mu.Lock()
	replaceTransaction(r.all, saved)
	replaceTransaction(r.filtered, saved)
	r.mu.Unlock()
	r.d.publish(ctx, userID, id, log.OpUpdate, applied)
	return saved, nil
}

// Delete loads the stored transaction, reverses its effect on the wallet
// and removes it from both collections.
func (r *TransactionRepository) Delete(ctx context.Context, id string) error {
	const op = "transaction.delete"
	r.begin()
	err := r.delete(ctx, op, id)
	r.end(err)
	if err != nil {
		r.logFailure(ctx, log.OpDelete, id, err)
		return err
	}
	return nil
}

func (r *TransactionRepository) delete(ctx context.Context, op, id string) error {
	s, userID, err := r.d.scope(ctx, op)
	if err != nil {
		return err
	}
	unlock, err := r.d.engine.lockTransaction(ctx, id)
	if err != nil {
		return core.E(core.KindStore, op, err)
	}
	defer unlock()

	old, err := r.load(ctx, s, op, id)
	if err != nil {
		return err
	}
	applied, err := r.wallets.adjust(ctx, s, op, PlanDelete(old), func(s store.Store) error {
		return s.Delete(ctx, store.Transactions, id)
	})
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.all = removeTransaction(r.all, id)
	r.filtered = removeTransaction(r.filtered, id)
	r.mu.Unlock()
	r.d.publish(ctx, userID, id, log.OpDelete, applied)
	return nil
}

// load reads the authoritative stored record, not the in-memory copy.
func (r *TransactionRepository) load(ctx context.Context, s store.Store, op, id string) (core.Transaction, error) {
	rec, err := store.Get(ctx, s, store.Transactions, id)
	if errors.Is(err, store.ErrNotFound) || errors.Is(err, store.ErrInvalidID) {
		return core.Transaction{}, core.E(core.KindNotFound, op, err)
	}
	if err != nil {
		return core.Transaction{}, core.E(core.KindStore, op, err)
	}
	tx, err := store.DecodeTransaction(rec)
	if err != nil {
		return core.Transaction{}, core.E(core.KindStore, op, err)
	}
	return tx, nil
}

// Filter recomputes the filtered view from the full collection.
func (r *TransactionRepository) Filter(f TxFilter) []core.Transaction {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.filter = f
	r.filtered = ApplyFilter(r.all, f)
	return cloneTransactions(r.filtered)
}

// ActiveFilter returns the filter the view was last computed with.
func (r *TransactionRepository) ActiveFilter() TxFilter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.filter
}

// Transactions returns a copy of the full collection.
func (r *TransactionRepository) Transactions() []core.Transaction {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return cloneTransactions(r.all)
}

// Filtered returns a copy of the filtered view.
func (r *TransactionRepository) Filtered() []core.Transaction {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return cloneTransactions(r.filtered)
}

func (r *TransactionRepository) logFailure(ctx context.Context, op, id string, err error) {
	r.logger.ErrorContext(ctx, "Transaction operation failed",
		log.FieldOperation, op,
		log.FieldTransactionID, id,
		log.FieldErrorKind, string(core.KindOf(err)),
		log.FieldError, err.Error())
}

func replaceTransaction(txs []core.Transaction, tx core.Transaction) {
	for i := range txs {
		if txs[i].ID == tx.ID {
			txs[i] = tx
		}
	}
}

func removeTransaction(txs []core.Transaction, id string) []core.Transaction {
	out := txs[:0:0]
	for _, tx := range txs {
		if tx.ID != id {
			out = append(out, tx)
		}
	}
	return out
}

func cloneTransactions(in []core.Transaction) []core.Transaction {
	return append([]core.Transaction(nil), in...)
}
