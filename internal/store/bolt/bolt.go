// Package bolt persists records in a bbolt file: one bucket per collection
// keyed by insertion sequence, plus an id index bucket.
package bolt

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"

	"ledger/internal/store"
)

func indexBucket(collection string) []byte {
	return []byte(collection + "_ids")
}

// Store represents the bbolt database wrapper.
type Store struct {
	db *bolt.DB
}

// Open opens (or creates) the database and initializes buckets.
func Open(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}
	db, err := bolt.Open(dbPath, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, c := range store.Collections {
			if _, err := tx.CreateBucketIfNotExists([]byte(c)); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", c, err)
			}
			if _, err := tx.CreateBucketIfNotExists(indexBucket(c)); err != nil {
				return fmt.Errorf("failed to create index bucket %s: %w", c, err)
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Select(ctx context.Context, collection string, q store.Query) ([]store.Record, error) {
	var out []store.Record
	err := s.db.View(func(tx *bolt.Tx) error {
		var err error
		out, err = txStore{tx}.Select(ctx, collection, q)
		return err
	})
	return out, err
}

func (s *Store) Insert(ctx context.Context, collection string, rec store.Record) (store.Record, error) {
	var out store.Record
	err := s.db.Update(func(tx *bolt.Tx) error {
		var err error
		out, err = txStore{tx}.Insert(ctx, collection, rec)
		return err
	})
	return out, err
}

func (s *Store) Update(ctx context.Context, collection, id string, patch store.Record) (store.Record, error) {
	return s.UpdateWhere(ctx, collection, id, nil, patch)
}

func (s *Store) UpdateWhere(ctx context.Context, collection, id string, guard store.Filter, patch store.Record) (store.Record, error) {
	var out store.Record
	err := s.db.Update(func(tx *bolt.Tx) error {
		var err error
		out, err = txStore{tx}.UpdateWhere(ctx, collection, id, guard, patch)
		return err
	})
	return out, err
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	return s.DeleteWhere(ctx, collection, id, nil)
}

func (s *Store) DeleteWhere(ctx context.Context, collection, id string, guard store.Filter) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return txStore{tx}.DeleteWhere(ctx, collection, id, guard)
	})
}

// Atomically runs fn in a single read-write bbolt transaction.
func (s *Store) Atomically(ctx context.Context, fn func(store.Store) error) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return fn(txStore{tx})
	})
}

type txStore struct {
	tx *bolt.Tx
}

func (t txStore) buckets(collection string) (data, index *bolt.Bucket, err error) {
	if !store.IsKnownCollection(collection) {
		return nil, nil, fmt.Errorf("%w: %s", store.ErrUnknownCollection, collection)
	}
	data = t.tx.Bucket([]byte(collection))
	index = t.tx.Bucket(indexBucket(collection))
	if data == nil || index == nil {
		return nil, nil, fmt.Errorf("bucket %s not found", collection)
	}
	return data, index, nil
}

func (t txStore) Select(ctx context.Context, collection string, q store.Query) ([]store.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b, _, err := t.buckets(collection)
	if err != nil {
		return nil, err
	}
	var out []store.Record
	// Keys are big-endian sequence numbers, so ForEach walks insertion order.
	err = b.ForEach(func(_, v []byte) error {
		rec, err := decode(v)
		if err != nil {
			return err
		}
		if rec.Matches(q.Filter) {
			out = append(out, rec)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", collection, err)
	}
	store.SortRecords(out, q.Order)
	return out, nil
}

func (t txStore) Insert(ctx context.Context, collection string, rec store.Record) (store.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b, idx, err := t.buckets(collection)
	if err != nil {
		return nil, err
	}
	rec = rec.Clone()
	if rec.ID() == "" {
		rec[store.FieldID] = uuid.NewString()
	}
	if rec.String(store.FieldCreatedAt) == "" {
		rec[store.FieldCreatedAt] = store.Now()
	}
	if idx.Get([]byte(rec.ID())) != nil {
		return nil, fmt.Errorf("insert %s: duplicate id %s", collection, rec.ID())
	}
	seq, err := b.NextSequence()
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal value: %w", err)
	}
	key := itob(int64(seq))
	if err := b.Put(key, data); err != nil {
		return nil, err
	}
	if err := idx.Put([]byte(rec.ID()), key); err != nil {
		return nil, err
	}
	return rec, nil
}

func (t txStore) Update(ctx context.Context, collection, id string, patch store.Record) (store.Record, error) {
	return t.UpdateWhere(ctx, collection, id, nil, patch)
}

func (t txStore) UpdateWhere(ctx context.Context, collection, id string, guard store.Filter, patch store.Record) (store.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if id == "" {
		return nil, store.ErrInvalidID
	}
	b, idx, err := t.buckets(collection)
	if err != nil {
		return nil, err
	}
	key := idx.Get([]byte(id))
	if key == nil {
		return nil, store.ErrNotFound
	}
	key = bytes.Clone(key)
	current, err := decode(b.Get(key))
	if err != nil {
		return nil, fmt.Errorf("decode %s %s: %w", collection, id, err)
	}
	if !current.Matches(guard) {
		return nil, store.ErrNotFound
	}
	merged := current.Merge(patch)
	merged[store.FieldID] = id
	data, err := json.Marshal(merged)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal value: %w", err)
	}
	if err := b.Put(key, data); err != nil {
		return nil, err
	}
	return merged, nil
}

func (t txStore) Delete(ctx context.Context, collection, id string) error {
	return t.DeleteWhere(ctx, collection, id, nil)
}

func (t txStore) DeleteWhere(ctx context.Context, collection, id string, guard store.Filter) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if id == "" {
		return store.ErrInvalidID
	}
	b, idx, err := t.buckets(collection)
	if err != nil {
		return err
	}
	key := idx.Get([]byte(id))
	if key == nil {
		return store.ErrNotFound
	}
	key = bytes.Clone(key)
	if len(guard) > 0 {
		current, err := decode(b.Get(key))
		if err != nil {
			return fmt.Errorf("decode %s %s: %w", collection, id, err)
		}
		if !current.Matches(guard) {
			return store.ErrNotFound
		}
	}
	if err := b.Delete(key); err != nil {
		return err
	}
	return idx.Delete([]byte(id))
}

func decode(data []byte) (store.Record, error) {
	if data == nil {
		return nil, store.ErrNotFound
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var rec store.Record
	if err := dec.Decode(&rec); err != nil {
		return nil, err
	}
	return rec.Clone(), nil
}

// itob converts an int64 to a byte slice for use as a bbolt key.
func itob(v int64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(v))
	return b
}
