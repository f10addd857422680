package engine

import (
	"context"

	"github.com/Ap3pp3rs94/elpomega/internal/store"
)

// handleSealFailure implements spec.md §4.E/§4.I step 3: a seal mismatch is
// the only error kind that feeds the Failure Ledger. It returns MIRROR for
// the 1st through max_failures-th offense in the window and SHADOW once the
// count exceeds max_failures.
func handleSealFailure(ctx context.Context, failures store.FailureStore, fingerprint string, nowMs, windowMs int64, maxFailures int) (Reality, error) {
	count, err := failures.RecordFailure(ctx, fingerprint, nowMs, windowMs)
	if err != nil {
		return MIRROR, err
	}
	if count > maxFailures {
		return SHADOW, nil
	}
	return MIRROR, nil
}
