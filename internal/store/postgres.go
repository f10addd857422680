package store

// Postgres-backed Nonce Record / Failure Ledger (library-only).
//
// Standard library database/sql only; the lib/pq driver must be registered
// elsewhere at runtime via a blank import (see cmd/elpomega-server). This
// mirrors the storage service's relational store: no driver import here,
// so this package stays testable against any database/sql-compatible
// driver.

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresNonceStore persists the Nonce Record table in PostgreSQL for
// multi-process, single-database deployments.
type PostgresNonceStore struct {
	db *sql.DB
}

func NewPostgresNonceStore(db *sql.DB) *PostgresNonceStore {
	return &PostgresNonceStore{db: db}
}

// EnsureSchema creates the backing table if it does not exist. Idempotent.
func (s *PostgresNonceStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, createNoncesTablePostgres)
	return err
}

// CheckAndStore relies on INSERT ... ON CONFLICT DO NOTHING to perform the
// test-and-insert in a single round trip; RowsAffected distinguishes a
// fresh insert (1) from a no-op on an existing nonce (0).
func (s *PostgresNonceStore) CheckAndStore(ctx context.Context, nonce string, firstSeenMs int64) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO elp_nonces (nonce, first_seen_ms) VALUES ($1, $2) ON CONFLICT (nonce) DO NOTHING`,
		nonce, firstSeenMs)
	if err != nil {
		return false, fmt.Errorf("store: postgres nonce insert: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("store: postgres nonce rows affected: %w", err)
	}
	return n == 1, nil
}

func (s *PostgresNonceStore) Evict(ctx context.Context, olderThanMs int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM elp_nonces WHERE first_seen_ms < $1`, olderThanMs)
	if err != nil {
		return fmt.Errorf("store: postgres nonce evict: %w", err)
	}
	return nil
}

// PostgresFailureStore persists the Failure Ledger in PostgreSQL.
type PostgresFailureStore struct {
	db *sql.DB
}

func NewPostgresFailureStore(db *sql.DB) *PostgresFailureStore {
	return &PostgresFailureStore{db: db}
}

func (s *PostgresFailureStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, createFailuresTablePostgres)
	return err
}

// RecordFailure performs the reset-or-increment decision inside the
// database with a single UPSERT, avoiding the read-then-write race
// spec.md §4.E forbids: the window comparison happens in the SQL
// statement itself, so two concurrent failures from the same fingerprint
// both land as separate statement executions serialized by Postgres' row
// lock on the upsert target.
func (s *PostgresFailureStore) RecordFailure(ctx context.Context, fingerprint string, nowMs, windowMs int64) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
INSERT INTO elp_failures (fingerprint, count, window_start_ms)
VALUES ($1, 1, $2)
ON CONFLICT (fingerprint) DO UPDATE SET
	count = CASE WHEN $2 - elp_failures.window_start_ms > $3 THEN 1 ELSE elp_failures.count + 1 END,
	window_start_ms = CASE WHEN $2 - elp_failures.window_start_ms > $3 THEN $2 ELSE elp_failures.window_start_ms END
RETURNING count`,
		fingerprint, nowMs, windowMs).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("store: postgres failure upsert: %w", err)
	}
	return count, nil
}
