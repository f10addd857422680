package engine

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
)

// canonicalSealInput renders the canonical byte string spec.md §4.B/§6
// defines: "{mask}|{context}|{timestamp}|{path}|{nonce}", decimal integers
// with no leading zeros, no surrounding whitespace.
func canonicalSealInput(mask int64, context string, timestampMs int64, path, nonce string) []byte {
	return []byte(fmt.Sprintf("%d|%s|%d|%s|%s", mask, context, timestampMs, path, nonce))
}

// computeSeal returns the base64-standard-with-padding encoding of the
// HMAC-SHA256 of the canonical seal input under secret. Pure function.
func computeSeal(secret []byte, mask int64, context string, timestampMs int64, path, nonce string) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(canonicalSealInput(mask, context, timestampMs, path, nonce))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// ComputeSeal is the exported counterpart of computeSeal, used by
// pkg/elpclient so a legitimate caller computes the seal the same way the
// verifier does, from the same canonical input.
func ComputeSeal(secret []byte, mask int64, context string, timestampMs int64, path, nonce string) string {
	return computeSeal(secret, mask, context, timestampMs, path, nonce)
}

// sealMatches performs a constant-time comparison between the
// client-supplied seal and the one the server computes for the same
// inputs. The comparison runs on the base64 text itself; the claimed seal
// is not decoded first.
func sealMatches(secret []byte, claimed string, mask int64, context string, timestampMs int64, path, nonce string) bool {
	expected := computeSeal(secret, mask, context, timestampMs, path, nonce)
	// hmac.Equal is constant-time for equal-length inputs and already
	// avoids a data-dependent early exit; it still short-circuits on
	// length, which is not a secret (base64 of a fixed 32-byte MAC has a
	// fixed length for well-formed input, so a mismatched length from a
	// malformed claimed seal reveals nothing beyond "malformed").
	return hmac.Equal([]byte(claimed), []byte(expected))
}
