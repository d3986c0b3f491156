// Package postgres is the durable storage backend, backed by
// github.com/jmoiron/sqlx over lib/pq, with schema management via
// golang-migrate/migrate/v4. Registered under (storage, "postgres").
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/hiveforge/hived/internal/registry"
	"github.com/hiveforge/hived/internal/storage"
	"github.com/hiveforge/hived/internal/storage/postgres/migrations"
)

// Store persists collections as rows in a single "records" table, keyed by
// (collection, key).
type Store struct {
	db *sqlx.DB
}

var _ storage.Store = (*Store)(nil)

type args struct {
	DSN string `json:"dsn"`
}

// New wraps an already-open *sqlx.DB.
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Open opens a new connection pool against dsn and applies migrations.
func Open(dsn string) (*Store, error) {
	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := migrations.Apply(db.DB); err != nil {
		db.Close()
		return nil, err
	}
	return New(db), nil
}

func (s *Store) Get(ctx context.Context, collection, key string) ([]byte, error) {
	var value []byte
	err := s.db.GetContext(ctx, &value,
		`SELECT value FROM records WHERE collection = $1 AND key = $2`, collection, key)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres get %s/%s: %w", collection, key, err)
	}
	return value, nil
}

func (s *Store) Put(ctx context.Context, collection, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO records (collection, key, value, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (collection, key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
		collection, key, value)
	if err != nil {
		return fmt.Errorf("postgres put %s/%s: %w", collection, key, err)
	}
	return nil
}

func (s *Store) Remove(ctx context.Context, collection, key string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM records WHERE collection = $1 AND key = $2`, collection, key)
	if err != nil {
		return fmt.Errorf("postgres remove %s/%s: %w", collection, key, err)
	}
	return nil
}

func (s *Store) All(ctx context.Context, collection string) (map[string][]byte, error) {
	rows, err := s.db.QueryxContext(ctx,
		`SELECT key, value FROM records WHERE collection = $1`, collection)
	if err != nil {
		return nil, fmt.Errorf("postgres all %s: %w", collection, err)
	}
	defer rows.Close()

	out := make(map[string][]byte)
	for rows.Next() {
		var key string
		var value []byte
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("postgres scan %s: %w", collection, err)
		}
		out[key] = value
	}
	return out, rows.Err()
}

// Close releases the underlying connection pool.
func (s *Store) Close() error { return s.db.Close() }

// Factory is installed into the registry under (storage, "postgres").
func Factory(_ any, _ string, raw json.RawMessage) (any, error) {
	var a args
	if err := json.Unmarshal(raw, &a); err != nil {
		return nil, fmt.Errorf("postgres args: %w", err)
	}
	if a.DSN == "" {
		return nil, fmt.Errorf("postgres: dsn is required")
	}
	return Open(a.DSN)
}

// Register installs the postgres factory into r.
func Register(r *registry.Registry) error {
	return r.Register(registry.CategoryStorage, "postgres", Factory)
}
