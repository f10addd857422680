package engine

import (
	"context"
	"strings"
	"testing"
	"time"
)

const testSecret = "SUA_CHAVE_MESTRA_AQUI"
const testPath = "/api/v1/resource"
const testContext = "GET"

func testEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	cfg := Config{
		Secret:          []byte(testSecret),
		MaxAgeMs:        300000,
		MaxFailures:     5,
		FailureWindowMs: 3600000,
		EqualizeLowMs:   0,
		EqualizeHighMs:  0,
	}
	e, err := New(cfg, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return e
}

func sealFor(mask int64, context string, ts int64, path, nonce string) string {
	return computeSeal([]byte(testSecret), mask, context, ts, path, nonce)
}

func noopReal(_ context.Context, _ Envelope) ([]byte, error) {
	return []byte(`{"data":{"secret":"real handler body"}}`), nil
}

func TestScenario1_PrimeOnValidRequest(t *testing.T) {
	e := testEngine(t)
	ts := time.Now().UnixMilli()
	env := Envelope{
		Mask:        5,
		Context:     testContext,
		TimestampMs: ts,
		Path:        testPath,
		Nonce:       "n1",
		Fingerprint: "fp-1",
	}
	env.Seal = sealFor(env.Mask, env.Context, env.TimestampMs, env.Path, env.Nonce)

	d := e.Process(context.Background(), env, noopReal)
	if d.Reality != PRIME {
		t.Fatalf("reality = %v, want PRIME", d.Reality)
	}
	if !strings.Contains(string(d.Body), "real handler body") {
		t.Fatalf("expected real handler body passthrough, got %s", d.Body)
	}
}

func TestScenario2_ShadowOnAdjacentMaskBits(t *testing.T) {
	e := testEngine(t)
	env := Envelope{Mask: 6, Context: testContext, Path: testPath, Nonce: "n2", Fingerprint: "fp-2"}
	d := e.Process(context.Background(), env, noopReal)
	if d.Reality != SHADOW {
		t.Fatalf("reality = %v, want SHADOW", d.Reality)
	}
	if strings.Contains(strings.ToLower(string(d.Body)), "shadow") {
		t.Fatal("shadow body leaked a marker")
	}
}

func TestScenario3_MirrorThenShadowOnRepeatedSealFailure(t *testing.T) {
	e := testEngine(t)
	ts := time.Now().UnixMilli()
	fp := "fp-3"

	var lastReality Reality
	for i := 0; i < 6; i++ {
		env := Envelope{
			Mask: 5, Context: testContext, TimestampMs: ts, Path: testPath,
			Nonce: "bad-seal-nonce", Fingerprint: fp, Seal: "AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA=",
		}
		d := e.Process(context.Background(), env, noopReal)
		lastReality = d.Reality
		if i < 5 {
			if d.Reality != MIRROR {
				t.Fatalf("offense %d: reality = %v, want MIRROR", i+1, d.Reality)
			}
		}
	}
	if lastReality != SHADOW {
		t.Fatalf("6th offense: reality = %v, want SHADOW", lastReality)
	}
}

func TestScenario4_MirrorOnStaleTimestamp(t *testing.T) {
	e := testEngine(t)
	ts := time.Now().UnixMilli() - 600000
	env := Envelope{
		Mask: 5, Context: testContext, TimestampMs: ts, Path: testPath,
		Nonce: "n4", Fingerprint: "fp-4",
	}
	env.Seal = sealFor(env.Mask, env.Context, env.TimestampMs, env.Path, env.Nonce)
	d := e.Process(context.Background(), env, noopReal)
	if d.Reality != MIRROR {
		t.Fatalf("reality = %v, want MIRROR", d.Reality)
	}
}

func TestScenario5_ShadowOnReplayedNonce(t *testing.T) {
	e := testEngine(t)
	ts := time.Now().UnixMilli()
	env := Envelope{
		Mask: 5, Context: testContext, TimestampMs: ts, Path: testPath,
		Nonce: "n5", Fingerprint: "fp-5",
	}
	env.Seal = sealFor(env.Mask, env.Context, env.TimestampMs, env.Path, env.Nonce)

	first := e.Process(context.Background(), env, noopReal)
	if first.Reality != PRIME {
		t.Fatalf("first send reality = %v, want PRIME", first.Reality)
	}
	second := e.Process(context.Background(), env, noopReal)
	if second.Reality != SHADOW {
		t.Fatalf("replay reality = %v, want SHADOW", second.Reality)
	}
}

func TestScenario6_FirstSendPrimeSecondSendShadow(t *testing.T) {
	e := testEngine(t)
	ts := time.Now().UnixMilli()
	env := Envelope{
		Mask: 5, Context: testContext, TimestampMs: ts, Path: testPath,
		Nonce: "n6", Fingerprint: "fp-6",
	}
	env.Seal = sealFor(env.Mask, env.Context, env.TimestampMs, env.Path, env.Nonce)

	r1 := e.Process(context.Background(), env, noopReal)
	r2 := e.Process(context.Background(), env, noopReal)
	if r1.Reality != PRIME || r2.Reality != SHADOW {
		t.Fatalf("got r1=%v r2=%v, want PRIME then SHADOW", r1.Reality, r2.Reality)
	}
}

func TestMalformedMaskDoesNotTouchFailureLedger(t *testing.T) {
	var failureCalls int
	e := testEngine(t)
	e.onDecision = func(stage Stage, _ time.Duration) {
		if stage == StageSeal {
			failureCalls++
		}
	}
	env := Envelope{Mask: -1, Context: testContext, Path: testPath, Nonce: "n", Fingerprint: "fp"}
	d := e.Process(context.Background(), env, noopReal)
	if d.Reality != SHADOW {
		t.Fatalf("reality = %v, want SHADOW", d.Reality)
	}
	if failureCalls != 0 {
		t.Fatal("malformed mask must not reach the seal/failure-ledger stage")
	}
}

func TestReplayGuardIsLastStep(t *testing.T) {
	// A request that fails the seal must not consume the nonce, so a
	// subsequent valid request with the same nonce still succeeds.
	e := testEngine(t)
	ts := time.Now().UnixMilli()
	nonce := "shared-nonce"

	badEnv := Envelope{
		Mask: 5, Context: testContext, TimestampMs: ts, Path: testPath,
		Nonce: nonce, Fingerprint: "fp-x", Seal: "not-a-real-seal========",
	}
	d1 := e.Process(context.Background(), badEnv, noopReal)
	if d1.Reality == PRIME {
		t.Fatal("bad seal should not produce PRIME")
	}

	goodEnv := badEnv
	goodEnv.Seal = sealFor(goodEnv.Mask, goodEnv.Context, goodEnv.TimestampMs, goodEnv.Path, goodEnv.Nonce)
	d2 := e.Process(context.Background(), goodEnv, noopReal)
	if d2.Reality != PRIME {
		t.Fatalf("reality = %v, want PRIME (nonce must not have been consumed by the failed seal check)", d2.Reality)
	}
}
