// Package store provides the pluggable backing stores for the ELP-Ω Nonce
// Record table and Failure Ledger (spec.md §3: "a concrete backing store —
// in-memory, distributed cache, etc. — is a deployment choice"). Every
// implementation must satisfy the same atomicity contract regardless of
// backend: NonceStore.CheckAndStore is a single atomic test-and-insert, and
// FailureStore.RecordFailure is a single atomic read-increment-write.
package store

import "context"

// NonceStore guards against nonce replay (spec.md §4.D).
type NonceStore interface {
	// CheckAndStore atomically tests whether nonce has already been
	// recorded and, if not, records it with firstSeenMs. fresh is true iff
	// this call performed the insert.
	CheckAndStore(ctx context.Context, nonce string, firstSeenMs int64) (fresh bool, err error)

	// Evict removes nonce records first seen before olderThanMs. Safe to
	// call from a background sweeper or lazily on insert; eviction never
	// affects the atomicity guarantee of CheckAndStore.
	Evict(ctx context.Context, olderThanMs int64) error
}

// FailureStore implements the per-fingerprint sliding-window failure
// counter (spec.md §4.E).
type FailureStore interface {
	// RecordFailure increments fingerprint's failure count, resetting the
	// window to (1, nowMs) if the previous window started more than
	// windowMs ago (or no record exists). Returns the resulting count.
	RecordFailure(ctx context.Context, fingerprint string, nowMs, windowMs int64) (count int, err error)
}
