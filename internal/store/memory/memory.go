// Package memory is an in-process record store used for tests and the
// "memory" backend. It supports atomic units and failure injection.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"ledger/internal/store"
)

// Op names a store call for failure injection and call counting.
type Op string

const (
	OpSelect Op = "select"
	OpInsert Op = "insert"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

type rule struct {
	op    Op
	coll  string
	after int // calls allowed to succeed before failing
	err   error
}

type callKey struct {
	op   Op
	coll string
}

type Store struct {
	mu    sync.Mutex
	data  map[string][]store.Record
	rules []*rule
	calls map[callKey]int
}

func New() *Store {
	data := make(map[string][]store.Record, len(store.Collections))
	for _, c := range store.Collections {
		data[c] = nil
	}
	return &Store{data: data, calls: map[callKey]int{}}
}

// FailOn makes every subsequent op on collection return err.
func (s *Store) FailOn(op Op, collection string, err error) {
	s.FailAfter(op, collection, 0, err)
}

// FailAfter lets n more calls of op on collection succeed, then fails the
// rest with err.
func (s *Store) FailAfter(op Op, collection string, n int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules = append(s.rules, &rule{op: op, coll: collection, after: n, err: err})
}

// Heal removes every injected failure.
func (s *Store) Heal() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules = nil
}

// Calls returns how many times op was invoked on collection, failed calls
// included.
func (s *Store) Calls(op Op, collection string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[callKey{op, collection}]
}

// ResetCalls zeroes the call counters.
func (s *Store) ResetCalls() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = map[callKey]int{}
}

// Plain returns a view of s without Atomically, so callers fall back to
// their non-transactional path.
func (s *Store) Plain() store.Store {
	return struct{ store.Store }{s}
}

func (s *Store) Select(ctx context.Context, collection string, q store.Query) ([]store.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (*locked)(s).Select(ctx, collection, q)
}

func (s *Store) Insert(ctx context.Context, collection string, rec store.Record) (store.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (*locked)(s).Insert(ctx, collection, rec)
}

func (s *Store) Update(ctx context.Context, collection, id string, patch store.Record) (store.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (*locked)(s).Update(ctx, collection, id, patch)
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (*locked)(s).Delete(ctx, collection, id)
}

func (s *Store) UpdateWhere(ctx context.Context, collection, id string, guard store.Filter, patch store.Record) (store.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (*locked)(s).UpdateWhere(ctx, collection, id, guard, patch)
}

func (s *Store) DeleteWhere(ctx context.Context, collection, id string, guard store.Filter) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (*locked)(s).DeleteWhere(ctx, collection, id, guard)
}

// Atomically runs fn holding the store lock; on error every change made
// through the passed store is rolled back.
func (s *Store) Atomically(ctx context.Context, fn func(store.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := make(map[string][]store.Record, len(s.data))
	for k, v := range s.data {
		snapshot[k] = append([]store.Record(nil), v...)
	}
	if err := fn((*locked)(s)); err != nil {
		s.data = snapshot
		return err
	}
	return nil
}

// locked implements store.Store for callers already holding mu.
type locked Store

func (l *locked) check(ctx context.Context, op Op, collection string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.calls[callKey{op, collection}]++
	for _, r := range l.rules {
		if r.op != op || r.coll != collection {
			continue
		}
		if r.after > 0 {
			r.after--
			continue
		}
		return r.err
	}
	if _, ok := l.data[collection]; !ok {
		return fmt.Errorf("%w: %s", store.ErrUnknownCollection, collection)
	}
	return nil
}

func (l *locked) Select(ctx context.Context, collection string, q store.Query) ([]store.Record, error) {
	if err := l.check(ctx, OpSelect, collection); err != nil {
		return nil, err
	}
	var out []store.Record
	for _, rec := range l.data[collection] {
		if rec.Matches(q.Filter) {
			out = append(out, rec.Clone())
		}
	}
	store.SortRecords(out, q.Order)
	return out, nil
}

func (l *locked) Insert(ctx context.Context, collection string, rec store.Record) (store.Record, error) {
	if err := l.check(ctx, OpInsert, collection); err != nil {
		return nil, err
	}
	rec = rec.Clone()
	if rec.ID() == "" {
		rec[store.FieldID] = uuid.NewString()
	}
	if rec.String(store.FieldCreatedAt) == "" {
		rec[store.FieldCreatedAt] = store.Now()
	}
	for _, existing := range l.data[collection] {
		if existing.ID() == rec.ID() {
			return nil, fmt.Errorf("insert %s: duplicate id %s", collection, rec.ID())
		}
	}
	l.data[collection] = append(l.data[collection], rec)
	return rec.Clone(), nil
}

func (l *locked) Update(ctx context.Context, collection, id string, patch store.Record) (store.Record, error) {
	return l.UpdateWhere(ctx, collection, id, nil, patch)
}

func (l *locked) UpdateWhere(ctx context.Context, collection, id string, guard store.Filter, patch store.Record) (store.Record, error) {
	if err := l.check(ctx, OpUpdate, collection); err != nil {
		return nil, err
	}
	if id == "" {
		return nil, store.ErrInvalidID
	}
	recs := l.data[collection]
	for i, rec := range recs {
		if rec.ID() != id {
			continue
		}
		if !rec.Matches(guard) {
			return nil, store.ErrNotFound
		}
		merged := rec.Merge(patch)
		merged[store.FieldID] = id
		recs[i] = merged
		return merged.Clone(), nil
	}
	return nil, store.ErrNotFound
}

func (l *locked) Delete(ctx context.Context, collection, id string) error {
	return l.DeleteWhere(ctx, collection, id, nil)
}

func (l *locked) DeleteWhere(ctx context.Context, collection, id string, guard store.Filter) error {
	if err := l.check(ctx, OpDelete, collection); err != nil {
		return err
	}
	if id == "" {
		return store.ErrInvalidID
	}
	recs := l.data[collection]
	for i, rec := range recs {
		if rec.ID() == id {
			if !rec.Matches(guard) {
				return store.ErrNotFound
			}
			l.data[collection] = append(recs[:i:i], recs[i+1:]...)
			return nil
		}
	}
	return store.ErrNotFound
}
