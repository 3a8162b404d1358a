// Package sqlite persists records as JSON documents in a single SQLite
// table, queried with json_extract.
package sqlite

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"ledger/internal/store"
)

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Store struct {
	db *sql.DB
	queries
}

// Open creates the database file if needed, runs migrations and returns a
// ready store.
func Open(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// One writer at a time; Atomically holds the only connection.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	slog.Debug("SQLite record store opened", "path", dbPath)
	return &Store{db: db, queries: queries{q: db}}, nil
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Update runs its read-merge-write inside a transaction.
func (s *Store) Update(ctx context.Context, collection, id string, patch store.Record) (store.Record, error) {
	return s.UpdateWhere(ctx, collection, id, nil, patch)
}

func (s *Store) UpdateWhere(ctx context.Context, collection, id string, guard store.Filter, patch store.Record) (store.Record, error) {
	var out store.Record
	err := s.Atomically(ctx, func(tx store.Store) error {
		var err error
		out, err = tx.(queries).UpdateWhere(ctx, collection, id, guard, patch)
		return err
	})
	return out, err
}

func (s *Store) DeleteWhere(ctx context.Context, collection, id string, guard store.Filter) error {
	if len(guard) == 0 {
		return s.queries.DeleteWhere(ctx, collection, id, nil)
	}
	return s.Atomically(ctx, func(tx store.Store) error {
		return tx.(queries).DeleteWhere(ctx, collection, id, guard)
	})
}

// Atomically runs fn inside a database transaction.
func (s *Store) Atomically(ctx context.Context, fn func(store.Store) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(queries{q: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			slog.WarnContext(ctx, "Rollback failed", "error", rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

type queries struct {
	q querier
}

func (r queries) Select(ctx context.Context, collection string, q store.Query) ([]store.Record, error) {
	if !store.IsKnownCollection(collection) {
		return nil, fmt.Errorf("%w: %s", store.ErrUnknownCollection, collection)
	}
	var (
		sb   strings.Builder
		args = []any{collection}
	)
	sb.WriteString("SELECT data FROM records WHERE collection = ?")
	for field, want := range q.Filter {
		col, err := column(field)
		if err != nil {
			return nil, err
		}
		want = store.Normalize(want)
		if want == nil {
			sb.WriteString(" AND " + col + " IS NULL")
			continue
		}
		sb.WriteString(" AND " + col + " = ?")
		args = append(args, want)
	}
	sb.WriteString(" ORDER BY ")
	for _, o := range q.Order {
		col, err := column(o.Field)
		if err != nil {
			return nil, err
		}
		sb.WriteString(col)
		if o.Desc {
			sb.WriteString(" DESC")
		}
		sb.WriteString(", ")
	}
	sb.WriteString("seq")

	rows, err := r.q.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", collection, err)
	}
	defer rows.Close()

	var out []store.Record
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan %s: %w", collection, err)
		}
		rec, err := decode(data)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", collection, err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", collection, err)
	}
	return out, nil
}

func (r queries) Insert(ctx context.Context, collection string, rec store.Record) (store.Record, error) {
	if !store.IsKnownCollection(collection) {
		return nil, fmt.Errorf("%w: %s", store.ErrUnknownCollection, collection)
	}
	rec = rec.Clone()
	if rec.ID() == "" {
		rec[store.FieldID] = uuid.NewString()
	}
	if rec.String(store.FieldCreatedAt) == "" {
		rec[store.FieldCreatedAt] = store.Now()
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", collection, err)
	}
	_, err = r.q.ExecContext(ctx,
		`INSERT INTO records (collection, id, user_id, data, created_at) VALUES (?, ?, ?, ?, ?)`,
		collection, rec.ID(), rec.String(store.FieldUserID), string(data), rec.String(store.FieldCreatedAt))
	if err != nil {
		return nil, fmt.Errorf("insert %s: %w", collection, err)
	}
	return rec, nil
}

func (r queries) Update(ctx context.Context, collection, id string, patch store.Record) (store.Record, error) {
	return r.UpdateWhere(ctx, collection, id, nil, patch)
}

func (r queries) UpdateWhere(ctx context.Context, collection, id string, guard store.Filter, patch store.Record) (store.Record, error) {
	if !store.IsKnownCollection(collection) {
		return nil, fmt.Errorf("%w: %s", store.ErrUnknownCollection, collection)
	}
	if id == "" {
		return nil, store.ErrInvalidID
	}
	current, err := r.load(ctx, collection, id, guard)
	if err != nil {
		return nil, err
	}
	merged := current.Merge(patch)
	merged[store.FieldID] = id
	encoded, err := json.Marshal(merged)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", collection, err)
	}
	_, err = r.q.ExecContext(ctx,
		`UPDATE records SET data = ?, user_id = ? WHERE collection = ? AND id = ?`,
		string(encoded), merged.String(store.FieldUserID), collection, id)
	if err != nil {
		return nil, fmt.Errorf("update %s %s: %w", collection, id, err)
	}
	return merged, nil
}

func (r queries) Delete(ctx context.Context, collection, id string) error {
	return r.DeleteWhere(ctx, collection, id, nil)
}

func (r queries) DeleteWhere(ctx context.Context, collection, id string, guard store.Filter) error {
	if !store.IsKnownCollection(collection) {
		return fmt.Errorf("%w: %s", store.ErrUnknownCollection, collection)
	}
	if id == "" {
		return store.ErrInvalidID
	}
	if len(guard) > 0 {
		if _, err := r.load(ctx, collection, id, guard); err != nil {
			return err
		}
	}
	res, err := r.q.ExecContext(ctx, `DELETE FROM records WHERE collection = ? AND id = ?`, collection, id)
	if err != nil {
		return fmt.Errorf("delete %s %s: %w", collection, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete %s %s: %w", collection, id, err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// load reads one record and checks it against guard.
func (r queries) load(ctx context.Context, collection, id string, guard store.Filter) (store.Record, error) {
	var data string
	err := r.q.QueryRowContext(ctx,
		`SELECT data FROM records WHERE collection = ? AND id = ?`, collection, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load %s %s: %w", collection, id, err)
	}
	rec, err := decode(data)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", collection, err)
	}
	if !rec.Matches(guard) {
		return nil, store.ErrNotFound
	}
	return rec, nil
}

// column maps a record field to its SQL expression. Field names are
// restricted to identifier characters since they are spliced into SQL.
func column(field string) (string, error) {
	if field == "" {
		return "", fmt.Errorf("empty field name")
	}
	for _, c := range field {
		if !(c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9') {
			return "", fmt.Errorf("invalid field name %q", field)
		}
	}
	switch field {
	case store.FieldID, store.FieldUserID:
		return field, nil
	}
	return "json_extract(data, '$." + field + "')", nil
}

func decode(data string) (store.Record, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(data)))
	dec.UseNumber()
	var rec store.Record
	if err := dec.Decode(&rec); err != nil {
		return nil, err
	}
	return rec.Clone(), nil
}
