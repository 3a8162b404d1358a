// Package storetest holds the behaviour every store backend must share.
package storetest

import (
	"context"
	"errors"
	"testing"

	"ledger/internal/store"
)

// Factory returns a fresh, empty store for one subtest.
type Factory func(t *testing.T) store.Store

// Run exercises the store contract against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Helper()
	tests := []struct {
		name string
		fn   func(t *testing.T, s store.Store)
	}{
		{"InsertAssignsIDAndCreatedAt", testInsertAssigns},
		{"InsertKeepsGivenID", testInsertKeepsID},
		{"SelectFiltersByEquality", testSelectFilter},
		{"SelectOrdersStably", testSelectOrder},
		{"UpdateMerges", testUpdateMerges},
		{"UpdateMissing", testUpdateMissing},
		{"DeleteRemoves", testDelete},
		{"UnknownCollection", testUnknownCollection},
		{"OwnerScoping", testOwnerScoping},
		{"GuardedWrites", testGuardedWrites},
		{"AtomicallyRollsBack", testAtomically},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tc.fn(t, newStore(t))
		})
	}
}

func mustInsert(t *testing.T, s store.Store, coll string, rec store.Record) store.Record {
	t.Helper()
	out, err := s.Insert(context.Background(), coll, rec)
	if err != nil {
		t.Fatalf("insert into %s: %v", coll, err)
	}
	return out
}

func testInsertAssigns(t *testing.T, s store.Store) {
	ctx := context.Background()
	got := mustInsert(t, s, store.Wallets, store.Record{"name": "Cash", "balance": int64(1050)})
	if got.ID() == "" {
		t.Fatalf("expected generated id")
	}
	if got.Time(store.FieldCreatedAt).IsZero() {
		t.Fatalf("expected created_at, got %v", got[store.FieldCreatedAt])
	}
	back, err := store.Get(ctx, s, store.Wallets, got.ID())
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if back.String("name") != "Cash" {
		t.Fatalf("name = %q", back.String("name"))
	}
	if v, ok := back.Int64("balance"); !ok || v != 1050 {
		t.Fatalf("balance = %v (%v)", back["balance"], ok)
	}
}

func testInsertKeepsID(t *testing.T, s store.Store) {
	got := mustInsert(t, s, store.Categories, store.Record{store.FieldID: "cat-1", "name": "Food"})
	if got.ID() != "cat-1" {
		t.Fatalf("id = %q", got.ID())
	}
	if _, err := store.Get(context.Background(), s, store.Categories, "cat-1"); err != nil {
		t.Fatalf("get: %v", err)
	}
}

func testSelectFilter(t *testing.T, s store.Store) {
	ctx := context.Background()
	mustInsert(t, s, store.Transactions, store.Record{"wallet_id": "w1", "expense": int64(10)})
	mustInsert(t, s, store.Transactions, store.Record{"wallet_id": "w2", "expense": int64(20)})
	mustInsert(t, s, store.Transactions, store.Record{"wallet_id": "w1", "expense": int64(30)})

	got, err := s.Select(ctx, store.Transactions, store.Query{Filter: store.Filter{"wallet_id": "w1"}})
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	got, err = s.Select(ctx, store.Transactions, store.Query{Filter: store.Filter{"wallet_id": "w1", "expense": 30}})
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("numeric filter len = %d, want 1", len(got))
	}
	all, err := s.Select(ctx, store.Transactions, store.Query{})
	if err != nil || len(all) != 3 {
		t.Fatalf("select all: len=%d err=%v", len(all), err)
	}
}

func testSelectOrder(t *testing.T, s store.Store) {
	ctx := context.Background()
	mustInsert(t, s, store.Transactions, store.Record{"date": "2024-01-01", "reason": "a"})
	mustInsert(t, s, store.Transactions, store.Record{"date": "2024-01-03", "reason": "b"})
	mustInsert(t, s, store.Transactions, store.Record{"date": "2024-01-01", "reason": "c"})
	mustInsert(t, s, store.Transactions, store.Record{"date": "2024-01-02", "reason": "d"})

	got, err := s.Select(ctx, store.Transactions, store.Query{Order: []store.Order{{Field: "date", Desc: true}}})
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	var reasons string
	for _, r := range got {
		reasons += r.String("reason")
	}
	if reasons != "bdac" {
		t.Fatalf("order = %q, want %q", reasons, "bdac")
	}
}

func testUpdateMerges(t *testing.T, s store.Store) {
	ctx := context.Background()
	w := mustInsert(t, s, store.Wallets, store.Record{"name": "Cash", "balance": int64(100), "currency": "USD"})
	got, err := s.Update(ctx, store.Wallets, w.ID(), store.Record{"balance": int64(150)})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if v, _ := got.Int64("balance"); v != 150 {
		t.Fatalf("balance = %v", got["balance"])
	}
	if got.String("name") != "Cash" || got.String("currency") != "USD" {
		t.Fatalf("untouched fields lost: %v", got)
	}
	back, err := store.Get(ctx, s, store.Wallets, w.ID())
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if v, _ := back.Int64("balance"); v != 150 {
		t.Fatalf("stored balance = %v", back["balance"])
	}
}

func testUpdateMissing(t *testing.T, s store.Store) {
	_, err := s.Update(context.Background(), store.Wallets, "nope", store.Record{"name": "x"})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func testDelete(t *testing.T, s store.Store) {
	ctx := context.Background()
	c := mustInsert(t, s, store.Categories, store.Record{"name": "Food"})
	if err := s.Delete(ctx, store.Categories, c.ID()); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.Get(ctx, s, store.Categories, c.ID()); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("get after delete err = %v", err)
	}
	if err := s.Delete(ctx, store.Categories, c.ID()); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("second delete err = %v", err)
	}
}

func testUnknownCollection(t *testing.T, s store.Store) {
	_, err := s.Select(context.Background(), "budgets", store.Query{})
	if !errors.Is(err, store.ErrUnknownCollection) {
		t.Fatalf("err = %v, want ErrUnknownCollection", err)
	}
}

func testOwnerScoping(t *testing.T, s store.Store) {
	ctx := context.Background()
	alice := store.ForOwner(s, "alice")
	bob := store.ForOwner(s, "bob")

	w := mustInsert(t, alice, store.Wallets, store.Record{"name": "Alice cash"})
	if w.String(store.FieldUserID) != "alice" {
		t.Fatalf("user_id = %q", w.String(store.FieldUserID))
	}
	mustInsert(t, bob, store.Wallets, store.Record{"name": "Bob cash", store.FieldUserID: "alice"})

	got, err := alice.Select(ctx, store.Wallets, store.Query{})
	if err != nil || len(got) != 1 {
		t.Fatalf("alice select: len=%d err=%v", len(got), err)
	}
	if _, err := bob.Update(ctx, store.Wallets, w.ID(), store.Record{"name": "stolen"}); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("cross-owner update err = %v", err)
	}
	if err := bob.Delete(ctx, store.Wallets, w.ID()); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("cross-owner delete err = %v", err)
	}
	if _, ok := s.(store.Transactor); ok {
		if _, ok := alice.(store.Transactor); !ok {
			t.Fatalf("scoped store should stay transactional")
		}
	}
}

func testGuardedWrites(t *testing.T, s store.Store) {
	g, ok := s.(store.GuardedWriter)
	if !ok {
		t.Skip("store has no guarded writes")
	}
	ctx := context.Background()
	w := mustInsert(t, s, store.Wallets, store.Record{store.FieldUserID: "alice", "name": "Cash"})

	_, err := g.UpdateWhere(ctx, store.Wallets, w.ID(), store.Filter{store.FieldUserID: "bob"}, store.Record{"name": "x"})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("guarded update err = %v, want ErrNotFound", err)
	}
	if err := g.DeleteWhere(ctx, store.Wallets, w.ID(), store.Filter{store.FieldUserID: "bob"}); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("guarded delete err = %v, want ErrNotFound", err)
	}
	back, err := store.Get(ctx, s, store.Wallets, w.ID())
	if err != nil || back.String("name") != "Cash" {
		t.Fatalf("record changed: %v %v", back, err)
	}

	got, err := g.UpdateWhere(ctx, store.Wallets, w.ID(), store.Filter{store.FieldUserID: "alice"}, store.Record{"name": "Wallet"})
	if err != nil || got.String("name") != "Wallet" {
		t.Fatalf("matching update: %v %v", got, err)
	}
	if err := g.DeleteWhere(ctx, store.Wallets, w.ID(), store.Filter{store.FieldUserID: "alice"}); err != nil {
		t.Fatalf("matching delete: %v", err)
	}
}

func testAtomically(t *testing.T, s store.Store) {
	tx, ok := s.(store.Transactor)
	if !ok {
		t.Skip("store is not transactional")
	}
	ctx := context.Background()
	w := mustInsert(t, s, store.Wallets, store.Record{"name": "Cash", "balance": int64(100)})
	boom := errors.New("boom")

	err := tx.Atomically(ctx, func(inner store.Store) error {
		if _, err := inner.Update(ctx, store.Wallets, w.ID(), store.Record{"balance": int64(50)}); err != nil {
			return err
		}
		if _, err := inner.Insert(ctx, store.Transactions, store.Record{"wallet_id": w.ID()}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
	back, err := store.Get(ctx, s, store.Wallets, w.ID())
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if v, _ := back.Int64("balance"); v != 100 {
		t.Fatalf("balance after rollback = %v, want 100", back["balance"])
	}
	txs, err := s.Select(ctx, store.Transactions, store.Query{})
	if err != nil || len(txs) != 0 {
		t.Fatalf("transactions after rollback: len=%d err=%v", len(txs), err)
	}

	err = tx.Atomically(ctx, func(inner store.Store) error {
		_, err := inner.Update(ctx, store.Wallets, w.ID(), store.Record{"balance": int64(75)})
		return err
	})
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	back, _ = store.Get(ctx, s, store.Wallets, w.ID())
	if v, _ := back.Int64("balance"); v != 75 {
		t.Fatalf("balance after commit = %v, want 75", back["balance"])
	}
}
