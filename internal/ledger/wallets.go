package ledger

import (
	"context"
	"errors"
	"strings"
	"sync"

	"ledger/internal/core"
	"ledger/internal/log"
	"ledger/internal/store"
)

// WalletRepository owns the in-memory wallet collection and the selected
// wallet pointer. Balance adjustments are written through it.
type WalletRepository struct {
	state
	d      *deps
	logger *log.Logger

	mu       sync.RWMutex
	wallets  []core.Wallet
	selected *core.Wallet
}

func newWalletRepository(d *deps) *WalletRepository {
	return &WalletRepository{d: d, logger: d.logger.WithComponent(log.ComponentWallet)}
}

// List loads the user's wallets, newest first.
func (r *WalletRepository) List(ctx context.Context) ([]core.Wallet, error) {
	const op = "wallet.list"
	r.begin()
	wallets, err := r.list(ctx, op)
	r.end(err)
	if err != nil {
		r.logFailure(ctx, log.OpList, err)
		return nil, err
	}
	r.mu.Lock()
	r.wallets = wallets
	r.mu.Unlock()
	return cloneWallets(wallets), nil
}

func (r *WalletRepository) list(ctx context.Context, op string) ([]core.Wallet, error) {
	s, _, err := r.d.scope(ctx, op)
	if err != nil {
		return nil, err
	}
	recs, err := s.Select(ctx, store.Wallets, store.Query{
		Order: []store.Order{{Field: store.FieldCreatedAt, Desc: true}},
	})
	if err != nil {
		return nil, core.E(core.KindStore, op, err)
	}
	wallets := make([]core.Wallet, 0, len(recs))
	for _, rec := range recs {
		w, err := store.DecodeWallet(rec)
		if err != nil {
			return nil, core.E(core.KindStore, op, err)
		}
		wallets = append(wallets, w)
	}
	return wallets, nil
}

// Create stores a wallet whose balance starts at the opening balance and
// prepends it to the collection.
func (r *WalletRepository) Create(ctx context.Context, in core.NewWallet) (core.Wallet, error) {
	const op = "wallet.create"
	if err := in.Validate(); err != nil {
		err = core.E(core.KindValidation, op, err)
		r.fail(err)
		return core.Wallet{}, err
	}
	r.begin()
	w, err := r.create(ctx, op, in)
	r.end(err)
	if err != nil {
		r.logFailure(ctx, log.OpCreate, err)
		return core.Wallet{}, err
	}
	r.mu.Lock()
	r.wallets = append([]core.Wallet{w}, r.wallets...)
	r.mu.Unlock()
	r.logger.InfoContext(ctx, "Wallet created",
		log.FieldWalletID, w.ID,
		log.FieldBalanceCents, w.Balance.Cents)
	return w, nil
}

func (r *WalletRepository) create(ctx context.Context, op string, in core.NewWallet) (core.Wallet, error) {
	s, _, err := r.d.scope(ctx, op)
	if err != nil {
		return core.Wallet{}, err
	}
	rec, err := s.Insert(ctx, store.Wallets, store.EncodeWallet(core.Wallet{
		Name:           strings.TrimSpace(in.Name),
		Balance:        in.OpeningBalance,
		OpeningBalance: in.OpeningBalance,
		Currency:       in.Currency,
	}))
	if err != nil {
		return core.Wallet{}, core.E(core.KindStore, op, err)
	}
	w, err := store.DecodeWallet(rec)
	if err != nil {
		return core.Wallet{}, core.E(core.KindStore, op, err)
	}
	return w, nil
}

// Update merge-patches a wallet. It is serialized with transaction
// adjustments on the same wallet.
func (r *WalletRepository) Update(ctx context.Context, id string, patch core.WalletPatch) (core.Wallet, error) {
	const op = "wallet.update"
	if err := patch.Validate(); err != nil {
		err = core.E(core.KindValidation, op, err)
		r.fail(err)
		return core.Wallet{}, err
	}
	r.begin()
	w, err := r.update(ctx, op, id, patch)
	r.end(err)
	if err != nil {
		r.logFailure(ctx, log.OpUpdate, err)
		return core.Wallet{}, err
	}
	return w, nil
}

func (r *WalletRepository) update(ctx context.Context, op, id string, patch core.WalletPatch) (core.Wallet, error) {
	s, _, err := r.d.scope(ctx, op)
	if err != nil {
		return core.Wallet{}, err
	}
	unlock, err := r.d.engine.lockWallet(ctx, id)
	if err != nil {
		return core.Wallet{}, core.E(core.KindStore, op, err)
	}
	defer unlock()
	rec := store.Record{}
	if patch.Name != nil {
		rec[store.FieldName] = strings.TrimSpace(*patch.Name)
	}
	if patch.Currency != nil {
		rec[store.FieldCurrency] = *patch.Currency
	}
	if patch.Balance != nil {
		rec[store.FieldBalance] = patch.Balance.Cents
	}
	out, err := s.Update(ctx, store.Wallets, id, rec)
	if errors.Is(err, store.ErrNotFound) {
		return core.Wallet{}, core.E(core.KindNotFound, op, err)
	}
	if err != nil {
		return core.Wallet{}, core.E(core.KindStore, op, err)
	}
	w, err := store.DecodeWallet(out)
	if err != nil {
		return core.Wallet{}, core.E(core.KindStore, op, err)
	}
	r.replace(w)
	return w, nil
}

// Delete removes a wallet and clears the selection if it pointed at it.
// Transactions referencing the wallet are left in place.
func (r *WalletRepository) Delete(ctx context.Context, id string) error {
	const op = "wallet.delete"
	r.begin()
	err := r.delete(ctx, op, id)
	r.end(err)
	if err != nil {
		r.logFailure(ctx, log.OpDelete, err)
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, w := range r.wallets {
		if w.ID == id {
			r.wallets = append(r.wallets[:i:i], r.wallets[i+1:]...)
			break
		}
	}
	if r.selected != nil && r.selected.ID == id {
		r.selected = nil
	}
	return nil
}

func (r *WalletRepository) delete(ctx context.Context, op, id string) error {
	s, _, err := r.d.scope(ctx, op)
	if err != nil {
		return err
	}
	err = s.Delete(ctx, store.Wallets, id)
	if errors.Is(err, store.ErrNotFound) {
		return core.E(core.KindNotFound, op, err)
	}
	return core.E(core.KindStore, op, err)
}

// Select sets the active wallet; nil clears it. Last call wins.
func (r *WalletRepository) Select(w *core.Wallet) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if w == nil {
		r.selected = nil
		return
	}
	c := *w
	r.selected = &c
}

// Selected returns the active wallet, if any.
func (r *WalletRepository) Selected() (core.Wallet, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.selected == nil {
		return core.Wallet{}, false
	}
	return *r.selected, true
}

// Wallets returns a copy of the in-memory collection.
func (r *WalletRepository) Wallets() []core.Wallet {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return cloneWallets(r.wallets)
}

// Get looks a wallet up in the in-memory collection.
func (r *WalletRepository) Get(id string) (core.Wallet, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, w := range r.wallets {
		if w.ID == id {
			return w, true
		}
	}
	return core.Wallet{}, false
}

// adjust runs the engine and mirrors the new balances into memory before
// the wallet locks are released.
func (r *WalletRepository) adjust(ctx context.Context, s store.Store, op string, adjs []Adjustment, write func(store.Store) error) ([]Applied, error) {
	return r.d.engine.Commit(ctx, s, op, adjs, write, r.mirror)
}

func (r *WalletRepository) mirror(applied []Applied) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range applied {
		if !a.Written {
			continue
		}
		for i := range r.wallets {
			if r.wallets[i].ID == a.WalletID {
				r.wallets[i].Balance = a.After
			}
		}
		if r.selected != nil && r.selected.ID == a.WalletID {
			r.selected.Balance = a.After
		}
	}
}

// replace swaps w into the collection by id and refreshes the selection.
func (r *WalletRepository) replace(w core.Wallet) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.wallets {
		if r.wallets[i].ID == w.ID {
			r.wallets[i] = w
		}
	}
	if r.selected != nil && r.selected.ID == w.ID {
		c := w
		r.selected = &c
	}
}

func (r *WalletRepository) logFailure(ctx context.Context, op string, err error) {
	r.logger.ErrorContext(ctx, "Wallet operation failed",
		log.NewFields().
			WithOperation(op).
			WithError(err).
			ToSlice()...)
}

func cloneWallets(in []core.Wallet) []core.Wallet {
	return append([]core.Wallet(nil), in...)
}
