package store

import (
	"context"
)

// ForOwner scopes every call to records owned by ownerID: selects gain a
// user_id filter, inserts are stamped with it, and updates/deletes only
// touch owned records. The returned store is a Transactor when s is.
func ForOwner(s Store, ownerID string) Store {
	base := scoped{inner: s, owner: ownerID}
	if _, ok := s.(Transactor); ok {
		return scopedTx{base}
	}
	return base
}

type scoped struct {
	inner Store
	owner string
}

type scopedTx struct {
	scoped
}

func (s scoped) Select(ctx context.Context, collection string, q Query) ([]Record, error) {
	f := make(Filter, len(q.Filter)+1)
	for k, v := range q.Filter {
		f[k] = v
	}
	f[FieldUserID] = s.owner
	return s.inner.Select(ctx, collection, Query{Filter: f, Order: q.Order})
}

func (s scoped) Insert(ctx context.Context, collection string, rec Record) (Record, error) {
	rec = rec.Clone()
	rec[FieldUserID] = s.owner
	return s.inner.Insert(ctx, collection, rec)
}

func (s scoped) Update(ctx context.Context, collection string, id string, patch Record) (Record, error) {
	if _, ok := s.inner.(GuardedWriter); !ok {
		if err := s.owns(ctx, collection, id); err != nil {
			return nil, err
		}
	}
	return s.updateOwned(ctx, collection, id, patch)
}

// UpdateOwned updates a record the caller has just read through s. When s
// is owner scoped the ownership read is skipped; guarded stores still check
// the owner as part of the write.
func UpdateOwned(ctx context.Context, s Store, collection, id string, patch Record) (Record, error) {
	switch v := s.(type) {
	case scoped:
		return v.updateOwned(ctx, collection, id, patch)
	case scopedTx:
		return v.updateOwned(ctx, collection, id, patch)
	}
	return s.Update(ctx, collection, id, patch)
}

func (s scoped) updateOwned(ctx context.Context, collection, id string, patch Record) (Record, error) {
	patch = patch.Clone()
	delete(patch, FieldUserID)
	delete(patch, FieldID)
	if g, ok := s.inner.(GuardedWriter); ok {
		return g.UpdateWhere(ctx, collection, id, s.guard(), patch)
	}
	return s.inner.Update(ctx, collection, id, patch)
}

func (s scoped) Delete(ctx context.Context, collection string, id string) error {
	if g, ok := s.inner.(GuardedWriter); ok {
		return g.DeleteWhere(ctx, collection, id, s.guard())
	}
	if err := s.owns(ctx, collection, id); err != nil {
		return err
	}
	return s.inner.Delete(ctx, collection, id)
}

func (s scoped) guard() Filter {
	return Filter{FieldUserID: s.owner}
}

// owns checks ownership with a read for stores without guarded writes.
func (s scoped) owns(ctx context.Context, collection, id string) error {
	_, err := Get(ctx, s, collection, id)
	return err
}

func (s scopedTx) Atomically(ctx context.Context, fn func(Store) error) error {
	return s.inner.(Transactor).Atomically(ctx, func(inner Store) error {
		return fn(ForOwner(inner, s.owner))
	})
}
