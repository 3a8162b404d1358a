package ledger

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"testing"

	"golang.org/x/sync/errgroup"

	"ledger/internal/core"
	"ledger/internal/session"
	"ledger/internal/store"
	"ledger/internal/store/memory"
)

func TestBalanceFollowsMutations(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			ctx := context.Background()
			s := b.open(t)
			l := newTestLedger(s)
			w := mustWallet(t, l, "Cash", 50)

			tx := mustCreate(t, l, income(w.ID, 1, 100, "Salary"))
			if got := storedBalance(t, s, w.ID); got != 150 {
				t.Fatalf("after create: balance = %d, want 150", got)
			}

			if _, err := l.Transactions.Update(ctx, tx.ID, core.TransactionPatch{Income: core.Cents(40).Ptr()}); err != nil {
				t.Fatalf("update: %v", err)
			}
			if got := storedBalance(t, s, w.ID); got != 90 {
				t.Fatalf("after update: balance = %d, want 90", got)
			}

			spend := mustCreate(t, l, expense(w.ID, 2, 30, "Food"))
			if got := storedBalance(t, s, w.ID); got != 60 {
				t.Fatalf("after expense: balance = %d, want 60", got)
			}
			if err := l.Transactions.Delete(ctx, spend.ID); err != nil {
				t.Fatalf("delete: %v", err)
			}
			if got := storedBalance(t, s, w.ID); got != 90 {
				t.Fatalf("after delete: balance = %d, want 90", got)
			}
			if mem, ok := l.Wallets.Get(w.ID); !ok || mem.Balance.Cents != 90 {
				t.Fatalf("in-memory balance = %v, want 90", mem.Balance)
			}
		})
	}
}

func TestDeleteExpenseRestoresBalance(t *testing.T) {
	s := memory.New()
	l := newTestLedger(s)
	w := mustWallet(t, l, "Cash", 120)
	tx := mustCreate(t, l, expense(w.ID, 3, 30, "Food"))
	if got := storedBalance(t, s, w.ID); got != 90 {
		t.Fatalf("balance = %d, want 90", got)
	}
	if err := l.Transactions.Delete(context.Background(), tx.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if got := storedBalance(t, s, w.ID); got != 120 {
		t.Fatalf("balance = %d, want 120", got)
	}
}

func TestInvariantOverRandomSequence(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			ctx := context.Background()
			s := b.open(t)
			l := newTestLedger(s)
			wallets := []core.Wallet{mustWallet(t, l, "A", 1000), mustWallet(t, l, "B", -250)}
			rng := rand.New(rand.NewSource(42))
			var ids []string

			for step := 0; step < 60; step++ {
				switch op := rng.Intn(3); {
				case op == 0 || len(ids) == 0:
					w := wallets[rng.Intn(len(wallets))]
					in := expense(w.ID, 1+rng.Intn(28), int64(rng.Intn(5000)), "Food")
					if rng.Intn(2) == 0 {
						in = income(w.ID, 1+rng.Intn(28), int64(rng.Intn(5000)), "Salary")
					}
					ids = append(ids, mustCreate(t, l, in).ID)
				case op == 1:
					id := ids[rng.Intn(len(ids))]
					patch := core.TransactionPatch{Expense: core.Cents(int64(rng.Intn(3000))).Ptr(), ClearIncome: true}
					if rng.Intn(2) == 0 {
						patch = core.TransactionPatch{Income: core.Cents(int64(rng.Intn(3000))).Ptr(), ClearExpense: true}
					}
					if rng.Intn(3) == 0 {
						target := wallets[rng.Intn(len(wallets))].ID
						patch.WalletID = &target
					}
					if _, err := l.Transactions.Update(ctx, id, patch); err != nil {
						t.Fatalf("step %d update: %v", step, err)
					}
				default:
					i := rng.Intn(len(ids))
					if err := l.Transactions.Delete(ctx, ids[i]); err != nil {
						t.Fatalf("step %d delete: %v", step, err)
					}
					ids = append(ids[:i], ids[i+1:]...)
				}
				for _, w := range wallets {
					if got, want := storedBalance(t, s, w.ID), expectedBalance(t, s, w.ID); got != want {
						t.Fatalf("step %d wallet %s: balance = %d, want %d", step, w.Name, got, want)
					}
				}
			}
		})
	}
}

func TestUpdateMovesTransactionBetweenWallets(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			s := b.open(t)
			l := newTestLedger(s)
			from := mustWallet(t, l, "Cash", 500)
			to := mustWallet(t, l, "Bank", 1000)
			tx := mustCreate(t, l, expense(from.ID, 4, 200, "Food"))

			patch := core.TransactionPatch{WalletID: &to.ID, Expense: core.Cents(350).Ptr()}
			got, err := l.Transactions.Update(context.Background(), tx.ID, patch)
			if err != nil {
				t.Fatalf("update: %v", err)
			}
			if got.WalletID != to.ID {
				t.Fatalf("wallet id = %q, want %q", got.WalletID, to.ID)
			}
			if bal := storedBalance(t, s, from.ID); bal != 500 {
				t.Fatalf("old wallet balance = %d, want 500", bal)
			}
			if bal := storedBalance(t, s, to.ID); bal != 650 {
				t.Fatalf("new wallet balance = %d, want 650", bal)
			}
		})
	}
}

func TestUpdateWithoutAmountChangeSkipsWalletWrite(t *testing.T) {
	s := memory.New()
	l := newTestLedger(s)
	w := mustWallet(t, l, "Cash", 100)
	tx := mustCreate(t, l, expense(w.ID, 5, 10, "Food"))

	s.ResetCalls()
	reason := "groceries"
	if _, err := l.Transactions.Update(context.Background(), tx.ID, core.TransactionPatch{Reason: &reason}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if got := s.Calls(memory.OpSelect, store.Wallets); got != 1 {
		t.Fatalf("wallet reads = %d, want 1", got)
	}
	if got := s.Calls(memory.OpUpdate, store.Wallets); got != 0 {
		t.Fatalf("wallet writes = %d, want 0", got)
	}
	if got := l.Transactions.Transactions()[0].Reason; got != "groceries" {
		t.Fatalf("reason = %q", got)
	}
}

func TestMutationsReadAndWriteWalletOnce(t *testing.T) {
	for _, name := range []string{"memory", "saga"} {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := memory.New()
			var st store.Store = s
			if name == "saga" {
				st = s.Plain()
			}
			l := newTestLedger(st)
			w := mustWallet(t, l, "Cash", 100)

			steps := []struct {
				op  string
				run func() error
			}{
				{"create", func() error {
					_, err := l.Transactions.Create(ctx, income(w.ID, 5, 10, "Salary"))
					return err
				}},
				{"update", func() error {
					id := l.Transactions.Transactions()[0].ID
					_, err := l.Transactions.Update(ctx, id, core.TransactionPatch{Income: core.Cents(25).Ptr()})
					return err
				}},
				{"delete", func() error {
					return l.Transactions.Delete(ctx, l.Transactions.Transactions()[0].ID)
				}},
			}
			for _, step := range steps {
				s.ResetCalls()
				if err := step.run(); err != nil {
					t.Fatalf("%s: %v", step.op, err)
				}
				if got := s.Calls(memory.OpSelect, store.Wallets); got != 1 {
					t.Fatalf("%s: wallet reads = %d, want 1", step.op, got)
				}
				if got := s.Calls(memory.OpUpdate, store.Wallets); got != 1 {
					t.Fatalf("%s: wallet writes = %d, want 1", step.op, got)
				}
			}
			if got := storedBalance(t, s, w.ID); got != 100 {
				t.Fatalf("balance = %d, want 100", got)
			}
		})
	}
}

func TestSagaRestoresBalanceWhenTransactionWriteFails(t *testing.T) {
	s := memory.New()
	l := newTestLedger(s.Plain())
	w := mustWallet(t, l, "Cash", 100)
	denied := errors.New("permission denied for table transactions")
	s.FailOn(memory.OpInsert, store.Transactions, denied)

	_, err := l.Transactions.Create(context.Background(), expense(w.ID, 6, 40, "Food"))
	if !errors.Is(err, denied) || !core.IsKind(err, core.KindStore) {
		t.Fatalf("err = %v (kind %q), want store error wrapping denied", err, core.KindOf(err))
	}
	if got := l.Transactions.Status().Error; got != denied.Error() {
		t.Fatalf("state error = %q, want verbatim %q", got, denied.Error())
	}
	if got := storedBalance(t, s, w.ID); got != 100 {
		t.Fatalf("balance = %d, want restored 100", got)
	}
	if got := s.Calls(memory.OpUpdate, store.Wallets); got != 2 {
		t.Fatalf("wallet writes = %d, want adjustment plus restore", got)
	}
	if len(l.Transactions.Transactions()) != 0 || len(l.Transactions.Filtered()) != 0 {
		t.Fatalf("collections changed after failure")
	}
	if mem, _ := l.Wallets.Get(w.ID); mem.Balance.Cents != 100 {
		t.Fatalf("in-memory balance = %d, want 100", mem.Balance.Cents)
	}
}

func TestSagaReportsInconsistencyWhenRestoreFails(t *testing.T) {
	s := memory.New()
	l := newTestLedger(s.Plain())
	w := mustWallet(t, l, "Cash", 100)
	s.FailOn(memory.OpInsert, store.Transactions, errors.New("insert failed"))
	s.FailAfter(memory.OpUpdate, store.Wallets, 1, errors.New("network unreachable"))

	_, err := l.Transactions.Create(context.Background(), expense(w.ID, 6, 40, "Food"))
	if !core.IsKind(err, core.KindInconsistent) {
		t.Fatalf("kind = %q, want inconsistent (err %v)", core.KindOf(err), err)
	}
	if !strings.Contains(err.Error(), "insert failed") || !strings.Contains(err.Error(), "network unreachable") {
		t.Fatalf("error should name both failures: %v", err)
	}
	s.Heal()
	if got := storedBalance(t, s, w.ID); got != 60 {
		t.Fatalf("balance = %d, want the unrestored 60", got)
	}
}

func TestAtomicStoreRollsBackWalletWrite(t *testing.T) {
	s := memory.New()
	l := newTestLedger(s)
	w := mustWallet(t, l, "Cash", 100)
	tx := mustCreate(t, l, expense(w.ID, 7, 25, "Food"))
	s.FailOn(memory.OpDelete, store.Transactions, errors.New("delete refused"))

	if err := l.Transactions.Delete(context.Background(), tx.ID); err == nil {
		t.Fatalf("expected delete to fail")
	}
	if got := storedBalance(t, s, w.ID); got != 75 {
		t.Fatalf("balance = %d, want 75", got)
	}
	if len(l.Transactions.Transactions()) != 1 {
		t.Fatalf("transaction removed from memory after failure")
	}
}

func TestWalletReadFailureBlocksTransactionWrite(t *testing.T) {
	for _, plain := range []bool{false, true} {
		s := memory.New()
		var st store.Store = s
		if plain {
			st = s.Plain()
		}
		l := newTestLedger(st)
		w := mustWallet(t, l, "Cash", 100)
		s.FailOn(memory.OpSelect, store.Wallets, errors.New("timeout"))

		if _, err := l.Transactions.Create(context.Background(), income(w.ID, 8, 10, "Salary")); err == nil {
			t.Fatalf("plain=%v: expected failure", plain)
		}
		if got := s.Calls(memory.OpInsert, store.Transactions); got != 0 {
			t.Fatalf("plain=%v: transaction inserts = %d, want 0", plain, got)
		}
		if got := s.Calls(memory.OpUpdate, store.Wallets); got != 0 {
			t.Fatalf("plain=%v: wallet writes = %d, want 0", plain, got)
		}
	}
}

func TestWalletWriteFailureBlocksTransactionWrite(t *testing.T) {
	s := memory.New()
	l := newTestLedger(s.Plain())
	w := mustWallet(t, l, "Cash", 100)
	s.FailOn(memory.OpUpdate, store.Wallets, errors.New("read-only"))

	if _, err := l.Transactions.Create(context.Background(), income(w.ID, 8, 10, "Salary")); err == nil {
		t.Fatalf("expected failure")
	}
	if got := s.Calls(memory.OpInsert, store.Transactions); got != 0 {
		t.Fatalf("transaction inserts = %d, want 0", got)
	}
}

func TestCreateOnUnknownWallet(t *testing.T) {
	l := newTestLedger(memory.New())
	_, err := l.Transactions.Create(context.Background(), income("missing", 1, 10, "Salary"))
	if !core.IsKind(err, core.KindNotFound) {
		t.Fatalf("kind = %q, want not_found", core.KindOf(err))
	}
}

func TestCreateRequiresWallet(t *testing.T) {
	s := memory.New()
	l := newTestLedger(s)
	_, err := l.Transactions.Create(context.Background(), income("", 1, 10, "Salary"))
	if !errors.Is(err, core.ErrMissingWallet) || !core.IsKind(err, core.KindValidation) {
		t.Fatalf("err = %v, want validation ErrMissingWallet", err)
	}
	if got := l.Transactions.Status().Error; got != "please select a wallet" {
		t.Fatalf("state error = %q", got)
	}
	if s.Calls(memory.OpSelect, store.Wallets) != 0 {
		t.Fatalf("validation failure reached the store")
	}
}

func TestNoSessionIsPrecondition(t *testing.T) {
	l := New(memory.New(), session.Static(""))
	_, err := l.Transactions.List(context.Background(), "")
	if !core.IsKind(err, core.KindPrecondition) || err.Error() != "no authenticated session found" {
		t.Fatalf("err = %v (kind %q)", err, core.KindOf(err))
	}
	if got := l.Transactions.Status(); got.Error != "no authenticated session found" || got.IsLoading {
		t.Fatalf("status = %+v", got)
	}
	if _, err := l.Wallets.Create(context.Background(), core.NewWallet{Name: "Cash", Currency: "USD"}); !core.IsKind(err, core.KindPrecondition) {
		t.Fatalf("wallet create err = %v", err)
	}
}

func TestOwnersCannotTouchEachOthersWallets(t *testing.T) {
	s := memory.New()
	alice := New(s, session.Static("alice"))
	bob := New(s, session.Static("bob"))
	w := mustWallet(t, alice, "Cash", 100)

	_, err := bob.Transactions.Create(context.Background(), income(w.ID, 1, 10, "Salary"))
	if !core.IsKind(err, core.KindNotFound) {
		t.Fatalf("kind = %q, want not_found", core.KindOf(err))
	}
	if got := storedBalance(t, s, w.ID); got != 100 {
		t.Fatalf("balance = %d, want 100", got)
	}
	list, err := bob.Wallets.List(context.Background())
	if err != nil || len(list) != 0 {
		t.Fatalf("bob sees %d wallets (err %v)", len(list), err)
	}
}

func TestConcurrentCreatesDoNotLoseDeltas(t *testing.T) {
	for _, name := range []string{"memory", "saga"} {
		t.Run(name, func(t *testing.T) {
			s := memory.New()
			var st store.Store = s
			if name == "saga" {
				st = s.Plain()
			}
			l := newTestLedger(st)
			w := mustWallet(t, l, "Cash", 10000)
			other := mustWallet(t, l, "Bank", 0)

			g, ctx := errgroup.WithContext(context.Background())
			for i := 0; i < 40; i++ {
				i := i
				g.Go(func() error {
					walletID := w.ID
					if i%4 == 0 {
						walletID = other.ID
					}
					_, err := l.Transactions.Create(ctx, expense(walletID, 1+i%28, 25, "Food"))
					return err
				})
			}
			if err := g.Wait(); err != nil {
				t.Fatalf("create: %v", err)
			}
			if got := storedBalance(t, s, w.ID); got != 10000-30*25 {
				t.Fatalf("balance = %d, want %d", got, 10000-30*25)
			}
			if got := storedBalance(t, s, other.ID); got != -10*25 {
				t.Fatalf("other balance = %d, want %d", got, -10*25)
			}
			for _, id := range []string{w.ID, other.ID} {
				mem, ok := l.Wallets.Get(id)
				if !ok {
					t.Fatalf("wallet %s missing from memory", id)
				}
				if got := storedBalance(t, s, id); mem.Balance.Cents != got {
					t.Fatalf("in-memory balance = %d, stored %d", mem.Balance.Cents, got)
				}
			}
			if n := len(l.Transactions.Transactions()); n != 40 {
				t.Fatalf("collection size = %d, want 40", n)
			}
		})
	}
}

func TestConcurrentUpdatesOfOneTransaction(t *testing.T) {
	s := memory.New()
	l := newTestLedger(s.Plain())
	w := mustWallet(t, l, "Cash", 0)
	tx := mustCreate(t, l, expense(w.ID, 1, 10, "Food"))

	g, ctx := errgroup.WithContext(context.Background())
	for i := 1; i <= 20; i++ {
		amount := int64(i * 10)
		g.Go(func() error {
			_, err := l.Transactions.Update(ctx, tx.ID, core.TransactionPatch{Expense: core.Cents(amount).Ptr()})
			return err
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("update: %v", err)
	}
	if got, want := storedBalance(t, s, w.ID), expectedBalance(t, s, w.ID); got != want {
		t.Fatalf("balance = %d, want %d", got, want)
	}
	stored, err := store.Get(context.Background(), s, store.Transactions, tx.ID)
	if err != nil {
		t.Fatalf("get transaction: %v", err)
	}
	want, _ := store.DecodeTransaction(stored)
	if got := l.Transactions.Transactions()[0]; got.ExpenseOrZero() != want.ExpenseOrZero() {
		t.Fatalf("in-memory expense = %v, stored %v", got.ExpenseOrZero(), want.ExpenseOrZero())
	}
	if mem, _ := l.Wallets.Get(w.ID); mem.Balance.Cents != storedBalance(t, s, w.ID) {
		t.Fatalf("in-memory balance = %d, stored %d", mem.Balance.Cents, storedBalance(t, s, w.ID))
	}
}

func TestListOrdersByDateAndCreatePrepends(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			ctx := context.Background()
			l := newTestLedger(b.open(t))
			w := mustWallet(t, l, "Cash", 0)
			for _, day := range []int{3, 10, 3, 7} {
				in := expense(w.ID, day, 1, "Food")
				in.Reason = core.NewDate(2024, 5, day).String()
				mustCreate(t, l, in)
			}

			txs, err := l.Transactions.List(ctx, w.ID)
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			var days []int
			for _, tx := range txs {
				days = append(days, tx.Date.Day())
			}
			if len(days) != 4 || days[0] != 10 || days[1] != 7 || days[2] != 3 || days[3] != 3 {
				t.Fatalf("days = %v, want [10 7 3 3]", days)
			}
			if len(l.Transactions.Filtered()) != 4 {
				t.Fatalf("filtered view not populated by list")
			}

			mustCreate(t, l, expense(w.ID, 1, 1, "Food"))
			if got := l.Transactions.Transactions()[0].Date.Day(); got != 1 {
				t.Fatalf("created transaction not prepended: first day = %d", got)
			}
			if got := l.Transactions.Filtered()[0].Date.Day(); got != 1 {
				t.Fatalf("created transaction not prepended to filtered view")
			}
		})
	}
}

func TestListRestrictsToWallet(t *testing.T) {
	l := newTestLedger(memory.New())
	a := mustWallet(t, l, "A", 0)
	b := mustWallet(t, l, "B", 0)
	mustCreate(t, l, expense(a.ID, 1, 1, "Food"))
	mustCreate(t, l, expense(b.ID, 1, 1, "Food"))
	mustCreate(t, l, expense(a.ID, 2, 1, "Food"))

	txs, err := l.Transactions.List(context.Background(), a.ID)
	if err != nil || len(txs) != 2 {
		t.Fatalf("list(a) len = %d err = %v", len(txs), err)
	}
	all, err := l.Transactions.List(context.Background(), "")
	if err != nil || len(all) != 3 {
		t.Fatalf("list() len = %d err = %v", len(all), err)
	}
}

func TestFilterByCategory(t *testing.T) {
	l := newTestLedger(memory.New())
	w := mustWallet(t, l, "Cash", 0)
	cats := []string{"Food", "Tech", "Food", "Salary", "TV", "Food", "Tech", "Loan", "EMI", "Gift"}
	for i, c := range cats {
		in := expense(w.ID, 10, int64(i+1), c)
		mustCreate(t, l, in)
	}
	all := l.Transactions.Transactions()

	got := l.Transactions.Filter(TxFilter{Category: "Food"})
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	var want []string
	for _, tx := range all {
		if tx.Category == "Food" {
			want = append(want, tx.ID)
		}
	}
	for i := range got {
		if got[i].ID != want[i] {
			t.Fatalf("order differs at %d", i)
		}
	}

	again := l.Transactions.Filter(TxFilter{Category: "Food"})
	if len(again) != len(got) {
		t.Fatalf("filter is not idempotent")
	}
	for i := range got {
		if again[i].ID != got[i].ID {
			t.Fatalf("filter is not idempotent at %d", i)
		}
	}
	if len(l.Transactions.Filter(TxFilter{Category: core.AllCategories})) != 10 {
		t.Fatalf("All should not restrict")
	}
	if len(l.Transactions.Transactions()) != 10 {
		t.Fatalf("filter changed the full collection")
	}
}

func TestFilterByDateRange(t *testing.T) {
	txs := []core.Transaction{
		{ID: "1", Date: core.NewDate(2024, 5, 1), Category: "Food"},
		{ID: "2", Date: core.NewDate(2024, 5, 10), Category: "Food"},
		{ID: "3", Date: core.NewDate(2024, 5, 20), Category: "Tech"},
		{ID: "4", Date: core.NewDate(2024, 5, 31), Category: "Food"},
	}
	from, to := core.NewDate(2024, 5, 10), core.NewDate(2024, 5, 31)
	tests := []struct {
		name string
		f    TxFilter
		want string
	}{
		{"none", TxFilter{}, "1234"},
		{"inclusive range", TxFilter{From: &from, To: &to}, "234"},
		{"open start", TxFilter{To: &from}, "12"},
		{"category and range", TxFilter{Category: "Food", From: &from}, "24"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var ids string
			for _, tx := range ApplyFilter(txs, tc.f) {
				ids += tx.ID
			}
			if ids != tc.want {
				t.Fatalf("ids = %q, want %q", ids, tc.want)
			}
		})
	}
}

func TestUpdateUsesStoredRecord(t *testing.T) {
	s := memory.New()
	l := newTestLedger(s)
	w := mustWallet(t, l, "Cash", 0)
	tx := mustCreate(t, l, income(w.ID, 1, 100, "Salary"))

	// A second session changes the stored record behind this one's back.
	other := newTestLedger(s)
	if _, err := other.Transactions.Update(context.Background(), tx.ID, core.TransactionPatch{Income: core.Cents(300).Ptr()}); err != nil {
		t.Fatalf("other update: %v", err)
	}
	if _, err := l.Transactions.Update(context.Background(), tx.ID, core.TransactionPatch{Income: core.Cents(50).Ptr()}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if got := storedBalance(t, s, w.ID); got != 50 {
		t.Fatalf("balance = %d, want 50", got)
	}
}

func TestUpdateAndDeleteMissingTransaction(t *testing.T) {
	l := newTestLedger(memory.New())
	if _, err := l.Transactions.Update(context.Background(), "nope", core.TransactionPatch{}); !core.IsKind(err, core.KindNotFound) {
		t.Fatalf("update kind = %q", core.KindOf(err))
	}
	if err := l.Transactions.Delete(context.Background(), "nope"); !core.IsKind(err, core.KindNotFound) {
		t.Fatalf("delete kind = %q", core.KindOf(err))
	}
}

func TestUpdateRejectsBothAmounts(t *testing.T) {
	s := memory.New()
	l := newTestLedger(s)
	w := mustWallet(t, l, "Cash", 0)
	tx := mustCreate(t, l, income(w.ID, 1, 100, "Salary"))

	_, err := l.Transactions.Update(context.Background(), tx.ID, core.TransactionPatch{Expense: core.Cents(5).Ptr()})
	if !errors.Is(err, core.ErrBothAmounts) {
		t.Fatalf("err = %v, want ErrBothAmounts", err)
	}
	if got := storedBalance(t, s, w.ID); got != 100 {
		t.Fatalf("balance = %d, want 100", got)
	}
}

func TestEventsPublishedAfterCommit(t *testing.T) {
	pub := &recordingPublisher{}
	l := newTestLedger(memory.New(), WithPublisher(pub))
	a := mustWallet(t, l, "A", 0)
	b := mustWallet(t, l, "B", 0)
	tx := mustCreate(t, l, expense(a.ID, 1, 30, "Food"))

	reason := "only text"
	if _, err := l.Transactions.Update(context.Background(), tx.ID, core.TransactionPatch{Reason: &reason}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if _, err := l.Transactions.Update(context.Background(), tx.ID, core.TransactionPatch{WalletID: &b.ID}); err != nil {
		t.Fatalf("move: %v", err)
	}

	evts := pub.Events()
	if len(evts) != 3 {
		t.Fatalf("events = %d, want 3 (create, move out, move in)", len(evts))
	}
	if evts[0].Operation != "create" || evts[0].Delta.Cents != -30 || evts[0].TransactionID != tx.ID || evts[0].UserID != "u1" {
		t.Fatalf("create event = %+v", evts[0])
	}
	if evts[1].WalletID != a.ID || evts[1].Balance.Cents != 0 || evts[2].WalletID != b.ID || evts[2].Balance.Cents != -30 {
		t.Fatalf("move events = %+v, %+v", evts[1], evts[2])
	}
}

func TestPublishFailureDoesNotFailMutation(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("broker down")}
	l := newTestLedger(memory.New(), WithPublisher(pub))
	w := mustWallet(t, l, "Cash", 0)
	if _, err := l.Transactions.Create(context.Background(), income(w.ID, 1, 10, "Salary")); err != nil {
		t.Fatalf("create: %v", err)
	}
	if l.Transactions.Status().Error != "" {
		t.Fatalf("publish failure leaked into state")
	}
}
