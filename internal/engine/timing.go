package engine

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"math/big"
	"time"
)

// equalize sleeps for a uniformly-random duration in [lowMs, highMs],
// drawn fresh on every call from a non-deterministic source (spec.md
// §4.H). It is the only place in the engine that uses crypto/rand instead
// of the Shadow Generator's seeded math/rand — the two PRNG requirements
// are intentionally distinct (spec.md §9).
//
// If ctx is canceled mid-sleep (client disconnect), the sleep is
// short-circuited; any nonce/failure-ledger mutation already performed by
// the caller is not, and must not be, rolled back (spec.md §5).
func equalize(ctx context.Context, lowMs, highMs int) {
	if highMs <= lowMs {
		sleep(ctx, time.Duration(lowMs)*time.Millisecond)
		return
	}
	span := int64(highMs-lowMs) + 1
	n, err := rand.Int(rand.Reader, big.NewInt(span))
	var offset int64
	if err != nil {
		// Fall back to a direct crypto/rand.Read; still non-deterministic,
		// still a fresh draw per call, never memoized.
		var b [8]byte
		_, _ = randFallback(b[:])
		offset = int64(binary.BigEndian.Uint64(b[:])%uint64(span))
	} else {
		offset = n.Int64()
	}
	sleep(ctx, time.Duration(int64(lowMs)+offset)*time.Millisecond)
}

// EqualizeDelay is the exported form of equalize. It lets a real handler
// pull its own processing time into the same window the cascade uses to
// equalize MIRROR/SHADOW/malformed branches, so a near-instant PRIME
// response does not stand out as implausibly fast next to the deliberately
// delayed branches (spec.md §9 Open Questions: the distinguishability-by-
// latency risk). cmd/elpomega-server's newRealResourceHandler is the grounding
// use; any other RealHandler whose own work is already slower than
// highMs should not call this.
func EqualizeDelay(ctx context.Context, lowMs, highMs int) {
	equalize(ctx, lowMs, highMs)
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}

// randFallback is split out so timing.go has exactly one non-deterministic
// entropy source in the primary path and a narrow, well-defined fallback.
func randFallback(b []byte) (int, error) {
	return rand.Read(b)
}
