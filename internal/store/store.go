// Package store defines the Record Store contract the ledger persists
// through: keyed collections of JSON-shaped records supporting
// select/insert/update/delete with equality filters and ordering.
package store

import (
	"context"
	"errors"
	"time"
)

// Collection names.
const (
	Wallets      = "wallets"
	Transactions = "transactions"
	Categories   = "categories"
)

// Reserved record fields.
const (
	FieldID        = "id"
	FieldUserID    = "user_id"
	FieldCreatedAt = "created_at"
)

// TimeLayout is a fixed-width UTC timestamp layout so stored timestamps sort
// lexically.
const TimeLayout = "2006-01-02T15:04:05.000000000Z"

var (
	// ErrNotFound is returned when a record is not found.
	ErrNotFound = errors.New("record not found")

	// ErrInvalidID is returned when an empty or malformed ID is provided.
	ErrInvalidID = errors.New("invalid ID")

	// ErrUnknownCollection is returned for a collection the store does not hold.
	ErrUnknownCollection = errors.New("unknown collection")
)

// Collections lists every collection a store must accept.
var Collections = []string{Wallets, Transactions, Categories}

type (
	// Filter matches records whose fields equal every given value.
	Filter map[string]any

	// Order sorts by a single field.
	Order struct {
		Field string
		Desc  bool
	}

	// Query narrows and orders a Select. Records comparing equal under
	// Order keep insertion order.
	Query struct {
		Filter Filter
		Order  []Order
	}

	// Store is the remote, fallible persistence collaborator.
	Store interface {
		Select(ctx context.Context, collection string, q Query) ([]Record, error)
		// Insert assigns id and created_at when absent and returns the
		// stored record.
		Insert(ctx context.Context, collection string, rec Record) (Record, error)
		// Update merges patch into the record and returns the result.
		Update(ctx context.Context, collection string, id string, patch Record) (Record, error)
		Delete(ctx context.Context, collection string, id string) error
	}

	// GuardedWriter is implemented by stores that can check extra field
	// equalities as part of an update or delete. A record failing the guard
	// is reported as ErrNotFound.
	GuardedWriter interface {
		UpdateWhere(ctx context.Context, collection, id string, guard Filter, patch Record) (Record, error)
		DeleteWhere(ctx context.Context, collection, id string, guard Filter) error
	}

	// Transactor is implemented by stores that can run several calls as a
	// single all-or-nothing unit.
	Transactor interface {
		Atomically(ctx context.Context, fn func(Store) error) error
	}
)

// Get selects a single record by id.
func Get(ctx context.Context, s Store, collection, id string) (Record, error) {
	if id == "" {
		return nil, ErrInvalidID
	}
	recs, err := s.Select(ctx, collection, Query{Filter: Filter{FieldID: id}})
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, ErrNotFound
	}
	return recs[0], nil
}

// IsKnownCollection reports whether name is one of Collections.
func IsKnownCollection(name string) bool {
	for _, c := range Collections {
		if c == name {
			return true
		}
	}
	return false
}

// Now returns the current time formatted with TimeLayout.
func Now() string {
	return FormatTime(time.Now())
}

func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}
