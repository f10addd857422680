package engine

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math/rand"

	"github.com/google/uuid"
)

// ShadowPayload is the synthetic body shape spec.md §4.G.3 defines for a
// generic financial-resource endpoint. Implementers porting to another
// endpoint schema parameterize this shape while preserving determinism and
// the no-marker rule; this repository's demo resource uses this shape
// directly (SPEC_FULL.md §4.K).
type ShadowPayload struct {
	Status        string            `json:"status"`
	TransactionID string            `json:"transaction_id"`
	TimestampMs   int64             `json:"timestamp"`
	Data          ShadowAccountData `json:"data"`
	Meta          ShadowMeta        `json:"meta"`
}

type ShadowAccountData struct {
	AccountType string   `json:"account_type"`
	Balance     float64  `json:"balance"`
	Currency    string   `json:"currency"`
	Flags       []string `json:"flags"`
}

type ShadowMeta struct {
	ProcessingTimeMs int    `json:"processing_time_ms"`
	Region           string `json:"region"`
}

var shadowAccountTypes = []string{"checking", "savings", "investment"}

// shadowSeed derives the integer PRNG seed from SHA-256("{path}|{context}|
// {nonce}|{secret}"), per spec.md §4.G.4.
func shadowSeed(secret []byte, context, path, nonce string) int64 {
	h := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%s|%s", path, context, nonce, secret)))
	return int64(binary.BigEndian.Uint64(h[:8]) &^ (1 << 63)) // non-negative
}

// GenerateShadow produces the deterministic synthetic payload for
// spec.md §4.G. Identical (path, context, nonce, secret) always yields
// byte-for-byte identical output (invariant 6, spec.md §8), including the
// timestamp field: a real wall-clock read there would make repeat calls
// diverge, so the "wall-clock ms" value spec.md §4.G.3 describes is itself
// derived from the seed, reading as a plausible recent timestamp without
// breaking determinism.
func GenerateShadow(secret []byte, context, path, nonce string) []byte {
	seed := shadowSeed(secret, context, path, nonce)
	rng := rand.New(rand.NewSource(seed))

	var idBytes [16]byte
	for i := 0; i < 16; i += 8 {
		binary.BigEndian.PutUint64(idBytes[i:i+8], rng.Uint64())
	}
	id := uuid.UUID(idBytes)
	// Force RFC 4122 version 4 / variant bits so the seeded bytes still
	// read as a plausible v4 UUID, matching a legitimate client's ID shape.
	id[6] = (id[6] & 0x0f) | 0x40
	id[8] = (id[8] & 0x3f) | 0x80

	balance := 1000.00 + rng.Float64()*(500000.00-1000.00)
	balance = float64(int64(balance*100)) / 100

	// A plausible-looking recent timestamp, derived from the seed rather
	// than read from the clock, so GenerateShadow stays pure.
	const day = int64(24 * 60 * 60 * 1000)
	seededTimestampMs := int64(1_700_000_000_000) + rng.Int63n(120*day)

	payload := ShadowPayload{
		Status:        "success",
		TransactionID: id.String(),
		TimestampMs:   seededTimestampMs,
		Data: ShadowAccountData{
			AccountType: shadowAccountTypes[rng.Intn(len(shadowAccountTypes))],
			Balance:     balance,
			Currency:    "BRL",
			Flags:       []string{"verified", "secure"},
		},
		Meta: ShadowMeta{
			ProcessingTimeMs: 10 + rng.Intn(150-10+1),
			Region:           "us-east-1",
		},
	}
	b, err := json.Marshal(payload)
	if err != nil {
		// json.Marshal on this fixed, all-primitive struct cannot fail.
		return []byte(`{"status":"success"}`)
	}
	return b
}
