// Package postgres provides a Postgres-backed blob store for topic state.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/surugaya-watcher/internal/watch"
)

const defaultTable = "topic_state"

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Config controls the Postgres connection pool used for state rows.
type Config struct {
	DSN             string
	Table           string
	MaxConns        int32
	MaxConnLifetime time.Duration
}

type pool interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	QueryRow(context.Context, string, ...any) pgx.Row
	Close()
}

// BlobStore keeps one JSONB row per state key.
type BlobStore struct {
	pool  pool
	table string
}

// NewBlobStore connects to Postgres and creates the state table if it is missing.
func NewBlobStore(ctx context.Context, cfg Config) (*BlobStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("state.postgres.dsn is required")
	}
	table, err := tableName(cfg.Table)
	if err != nil {
		return nil, err
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	p, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	store := &BlobStore{pool: p, table: table}
	if err := store.EnsureSchema(ctx); err != nil {
		p.Close()
		return nil, err
	}
	return store, nil
}

// NewBlobStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewBlobStoreWithPool(p pool, table string) (*BlobStore, error) {
	if p == nil {
		return nil, fmt.Errorf("pool is required")
	}
	name, err := tableName(table)
	if err != nil {
		return nil, err
	}
	return &BlobStore{pool: p, table: name}, nil
}

func tableName(table string) (string, error) {
	if table == "" {
		table = defaultTable
	}
	if !validTableName.MatchString(table) {
		return "", fmt.Errorf("invalid table name %q", table)
	}
	return table, nil
}

// EnsureSchema creates the state table when it does not exist.
func (s *BlobStore) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	key TEXT PRIMARY KEY,
	payload JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`, s.table)
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("create table %s: %w", s.table, err)
	}
	return nil
}

// Close releases the underlying pool resources.
func (s *BlobStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// GetObject returns the payload stored for path.
func (s *BlobStore) GetObject(ctx context.Context, path string) ([]byte, error) {
	if path == "" {
		return nil, fmt.Errorf("path is required")
	}
	query := fmt.Sprintf(`SELECT payload FROM %s WHERE key = $1`, s.table)
	var payload []byte
	if err := s.pool.QueryRow(ctx, query, path).Scan(&payload); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", watch.ErrStateNotFound, path)
		}
		return nil, fmt.Errorf("select state: %w", err)
	}
	return payload, nil
}

// PutObject upserts the payload for path. The content type is implied by the JSONB column.
func (s *BlobStore) PutObject(ctx context.Context, path string, _ string, data []byte) error {
	if path == "" {
		return fmt.Errorf("path is required")
	}
	query := fmt.Sprintf(`
INSERT INTO %s (key, payload, updated_at)
VALUES ($1, $2, now())
ON CONFLICT (key) DO UPDATE SET payload = EXCLUDED.payload, updated_at = EXCLUDED.updated_at`, s.table)
	if _, err := s.pool.Exec(ctx, query, path, data); err != nil {
		return fmt.Errorf("upsert state: %w", err)
	}
	return nil
}
