package engine

import (
	"context"

	"github.com/Ap3pp3rs94/elpomega/internal/store"
)

// checkReplay runs the Replay Guard (spec.md §4.D): an atomic
// test-and-insert against the Nonce Record table. It is always the last
// cascade step, so only nonces that already passed mask/freshness/seal are
// ever inserted.
func checkReplay(ctx context.Context, nonces store.NonceStore, nonce string, nowMs int64) (fresh bool, err error) {
	return nonces.CheckAndStore(ctx, nonce, nowMs)
}
