package store_test

import (
	"context"
	"errors"
	"testing"

	"ledger/internal/store"
	"ledger/internal/store/memory"
)

func TestForOwnerUpdateChecksOwnership(t *testing.T) {
	ctx := context.Background()
	mem := memory.New()
	alice := store.ForOwner(mem.Plain(), "alice")
	bob := store.ForOwner(mem.Plain(), "bob")

	rec, err := alice.Insert(ctx, store.Wallets, store.Record{store.FieldName: "Cash"})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if _, err := bob.Update(ctx, store.Wallets, rec.ID(), store.Record{store.FieldName: "Stolen"}); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("update by other owner: err = %v, want ErrNotFound", err)
	}

	mem.ResetCalls()
	if _, err := alice.Update(ctx, store.Wallets, rec.ID(), store.Record{store.FieldName: "Purse"}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if got := mem.Calls(memory.OpSelect, store.Wallets); got != 1 {
		t.Fatalf("ownership reads = %d, want 1", got)
	}
}

func TestUpdateOwnedSkipsOwnershipRead(t *testing.T) {
	ctx := context.Background()
	mem := memory.New()
	tests := []struct {
		name string
		s    store.Store
	}{
		{"plain", store.ForOwner(mem.Plain(), "alice")},
		{"guarded", store.ForOwner(mem, "alice")},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec, err := tc.s.Insert(ctx, store.Wallets, store.Record{store.FieldName: "Cash"})
			if err != nil {
				t.Fatalf("insert: %v", err)
			}
			mem.ResetCalls()
			out, err := store.UpdateOwned(ctx, tc.s, store.Wallets, rec.ID(), store.Record{
				store.FieldName:   "Purse",
				store.FieldUserID: "mallory",
			})
			if err != nil {
				t.Fatalf("update: %v", err)
			}
			if got := mem.Calls(memory.OpSelect, store.Wallets); got != 0 {
				t.Fatalf("reads = %d, want 0", got)
			}
			if out.String(store.FieldName) != "Purse" || out.String(store.FieldUserID) != "alice" {
				t.Fatalf("record = %v", out)
			}
		})
	}
}
