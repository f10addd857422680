package store

// SQLite-backed Nonce Record / Failure Ledger for single-process
// deployments that need durability across restarts. Like postgres.go this
// file only imports database/sql; callers blank-import
// github.com/mattn/go-sqlite3 (see cmd/elpomega-server/main.go).

import (
	"context"
	"database/sql"
	"fmt"
)

type SQLiteNonceStore struct {
	db *sql.DB
}

func NewSQLiteNonceStore(db *sql.DB) *SQLiteNonceStore {
	return &SQLiteNonceStore{db: db}
}

func (s *SQLiteNonceStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, createNoncesTableSQLite)
	return err
}

// CheckAndStore uses INSERT OR IGNORE, SQLite's equivalent of
// ON CONFLICT DO NOTHING, and inspects RowsAffected the same way the
// Postgres backend does.
func (s *SQLiteNonceStore) CheckAndStore(ctx context.Context, nonce string, firstSeenMs int64) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO elp_nonces (nonce, first_seen_ms) VALUES (?, ?)`,
		nonce, firstSeenMs)
	if err != nil {
		return false, fmt.Errorf("store: sqlite nonce insert: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("store: sqlite nonce rows affected: %w", err)
	}
	return n == 1, nil
}

func (s *SQLiteNonceStore) Evict(ctx context.Context, olderThanMs int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM elp_nonces WHERE first_seen_ms < ?`, olderThanMs)
	if err != nil {
		return fmt.Errorf("store: sqlite nonce evict: %w", err)
	}
	return nil
}

type SQLiteFailureStore struct {
	db *sql.DB
}

func NewSQLiteFailureStore(db *sql.DB) *SQLiteFailureStore {
	return &SQLiteFailureStore{db: db}
}

func (s *SQLiteFailureStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, createFailuresTableSQLite)
	return err
}

// RecordFailure runs the read-decide-write sequence inside a single
// transaction, since SQLite's upsert clause cannot reference the
// conflicting row's own columns the way Postgres' EXCLUDED/table-alias
// syntax can in one statement without a driver-specific extension.
func (s *SQLiteFailureStore) RecordFailure(ctx context.Context, fingerprint string, nowMs, windowMs int64) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("store: sqlite failure begin tx: %w", err)
	}
	defer tx.Rollback()

	var count int
	var windowStart int64
	err = tx.QueryRowContext(ctx,
		`SELECT count, window_start_ms FROM elp_failures WHERE fingerprint = ?`, fingerprint).
		Scan(&count, &windowStart)

	switch {
	case err == sql.ErrNoRows:
		count, windowStart = 1, nowMs
		_, err = tx.ExecContext(ctx,
			`INSERT INTO elp_failures (fingerprint, count, window_start_ms) VALUES (?, ?, ?)`,
			fingerprint, count, windowStart)
	case err != nil:
		return 0, fmt.Errorf("store: sqlite failure select: %w", err)
	default:
		if nowMs-windowStart > windowMs {
			count, windowStart = 1, nowMs
		} else {
			count++
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE elp_failures SET count = ?, window_start_ms = ? WHERE fingerprint = ?`,
			count, windowStart, fingerprint)
	}
	if err != nil {
		return 0, fmt.Errorf("store: sqlite failure write: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("store: sqlite failure commit: %w", err)
	}
	return count, nil
}
