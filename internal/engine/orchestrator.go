package engine

import (
	"context"
	"time"

	"github.com/Ap3pp3rs94/elpomega/internal/store"
)

// Engine owns the Decision Orchestrator's configuration and the two
// mutable stores; it is constructed once per process and injected into the
// HTTP middleware (spec.md §3 "Ownership and lifecycle", §9).
type Engine struct {
	cfg      Config
	nonces   store.NonceStore
	failures store.FailureStore

	// onDecision, if set, is called after every cascade run with only the
	// stage reached and latency — never the reality label — for
	// operational metrics/logging. It must not be used to reconstruct the
	// reality from outside the engine.
	onDecision func(stage Stage, took time.Duration)

	// mirrorSource supplies the real payload shape the Sanitizer (4.F)
	// masks on MIRROR. It must be cheap and side-effect free: it runs on
	// freshness/seal failures, which a naive attacker can trigger without
	// knowing the secret (spec.md §7), so it must not be as expensive as
	// the real handler.
	mirrorSource func(ctx context.Context, env Envelope) []byte
}

// Option configures an Engine at construction time.
type Option func(*Engine)

// WithNonceStore overrides the default in-memory Nonce Record table.
func WithNonceStore(s store.NonceStore) Option {
	return func(e *Engine) { e.nonces = s }
}

// WithFailureStore overrides the default in-memory Failure Ledger.
func WithFailureStore(s store.FailureStore) Option {
	return func(e *Engine) { e.failures = s }
}

// WithObserver registers a stage/latency observer for metrics or
// operational logging (SPEC_FULL.md §1). It never receives the Reality.
func WithObserver(fn func(stage Stage, took time.Duration)) Option {
	return func(e *Engine) { e.onDecision = fn }
}

// WithMirrorSource supplies the cheap, side-effect-free lookup the
// Sanitizer masks on MIRROR (spec.md §4.I: "Sanitizer on MIRROR using the
// real payload if available"). Without this option, MIRROR sanitizes a
// fixed placeholder shape.
func WithMirrorSource(fn func(ctx context.Context, env Envelope) []byte) Option {
	return func(e *Engine) { e.mirrorSource = fn }
}

// New constructs an Engine. cfg must pass Validate.
func New(cfg Config, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	e := &Engine{
		cfg:      cfg,
		nonces:   store.NewMemoryNonceStore(),
		failures: store.NewMemoryFailureStore(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Process runs the cascade from spec.md §4.I in its mandated order —
// Mask -> Freshness -> Seal -> Replay -> PRIME — and returns the body to
// emit. Every outcome is meant to be served as HTTP 200 by the caller;
// Process never returns an HTTP status itself. On PRIME, real is invoked
// and its body/error are passed through unchanged (spec.md §7,
// HandlerFailure).
//
// Non-PRIME branches are timing-equalized before Process returns, so
// callers should not add their own delay; PRIME is returned as soon as
// real completes, exactly as spec.md §4.H intends (only the non-PRIME
// branches are artificially delayed; the real handler's own latency is
// what the equalizer bounds are tuned to overlap, per spec.md §9 Open
// Questions). A RealHandler whose own work is faster than EqualizeLowMs
// needs to close that gap itself — see EqualizeDelay and
// cmd/elpomega-server's newRealResourceHandler — since Process has no way
// to know in advance whether a given real is already slow enough.
func (e *Engine) Process(ctx context.Context, env Envelope, real RealHandler) Decision {
	start := time.Now()
	stage := StageMask
	defer func() {
		if e.onDecision != nil {
			e.onDecision(stage, time.Since(start))
		}
	}()

	if !validMask(env.Mask) {
		e.equalizeNonPrime(ctx)
		return Decision{Reality: SHADOW, Stage: StageMask, Body: GenerateShadow(e.cfg.Secret, env.Context, env.Path, env.Nonce)}
	}

	stage = StageFreshness
	nowMs := time.Now().UnixMilli()
	if !freshnessOK(nowMs, env.TimestampMs, e.cfg.MaxAgeMs) {
		e.equalizeNonPrime(ctx)
		return Decision{Reality: MIRROR, Stage: StageFreshness, Body: []byte(Sanitize(string(e.mirrorData(ctx, env))))}
	}

	stage = StageSeal
	if !sealMatches(e.cfg.Secret, env.Seal, env.Mask, env.Context, env.TimestampMs, env.Path, env.Nonce) {
		reality, _ := handleSealFailure(ctx, e.failures, env.Fingerprint, nowMs, e.cfg.FailureWindowMs, e.cfg.MaxFailures)
		e.equalizeNonPrime(ctx)
		var body []byte
		if reality == SHADOW {
			body = GenerateShadow(e.cfg.Secret, env.Context, env.Path, env.Nonce)
		} else {
			body = []byte(Sanitize(string(e.mirrorData(ctx, env))))
		}
		return Decision{Reality: reality, Stage: StageSeal, Body: body}
	}

	stage = StageReplay
	fresh, err := checkReplay(ctx, e.nonces, env.Nonce, nowMs)
	if err != nil || !fresh {
		e.equalizeNonPrime(ctx)
		return Decision{Reality: SHADOW, Stage: StageReplay, Body: GenerateShadow(e.cfg.Secret, env.Context, env.Path, env.Nonce)}
	}

	stage = StagePrime
	body, herr := real(ctx, env)
	return Decision{Reality: PRIME, Stage: StagePrime, Body: body, HandlerErr: herr}
}

func (e *Engine) equalizeNonPrime(ctx context.Context) {
	equalize(ctx, e.cfg.EqualizeLowMs, e.cfg.EqualizeHighMs)
}

func (e *Engine) mirrorData(ctx context.Context, env Envelope) []byte {
	if e.mirrorSource != nil {
		return e.mirrorSource(ctx, env)
	}
	return []byte(realDataPlaceholder)
}

// EvictStaleNonces runs the Nonce Record table's retention sweep (spec.md
// §3/§9: required for the port, any horizon >= max_age_ms is compatible
// with invariant 3). Callers typically run this on a ticker.
func (e *Engine) EvictStaleNonces(ctx context.Context) error {
	horizon := e.cfg.retentionHorizonMs()
	cutoff := time.Now().UnixMilli() - horizon
	return e.nonces.Evict(ctx, cutoff)
}

// realDataPlaceholder stands in for the "real_data" argument the Python
// source threads through process_request, used when no WithMirrorSource is
// configured.
const realDataPlaceholder = "status: verified saldo: R$ 5000,00 senha: trustno1 cpf: 12345678901"
