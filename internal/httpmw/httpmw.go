// Package httpmw adapts engine.Engine to net/http: it pulls the ELP-Ω
// protocol headers off an incoming request, builds the Envelope, drives
// the Orchestrator, and writes the response — always HTTP 200, regardless
// of Reality (spec.md §6: "the HTTP status code MUST NOT vary with
// Reality").
package httpmw

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/Ap3pp3rs94/elpomega/internal/engine"
	elperrors "github.com/Ap3pp3rs94/elpomega/pkg/errors"
	"github.com/Ap3pp3rs94/elpomega/pkg/telemetry"
)

const (
	headerMask      = "X-ELP-Mask"
	headerSeal      = "X-ELP-Seal"
	headerTimestamp = "X-ELP-Timestamp"
	headerNonce     = "X-ELP-Nonce"
)

// Observer receives a completed decision for logging/metrics. Only Stage
// and HandlerErr are safe to pass through here; Reality must never leak
// past this package into a client-visible signal, but it is fine for
// purely internal observers (see cmd/elpomega-server's telemetry wiring).
type Observer func(r *http.Request, d engine.Decision)

// Options configures Wrap.
type Options struct {
	// FingerprintFunc derives the per-client identifier used by the
	// Failure Ledger. Defaults to the request's remote IP.
	FingerprintFunc func(r *http.Request) string
	Observer        Observer
	ContentType     string
	// Logger records a HandlerFailure (a downstream real-handler error, or a
	// recovered panic, on the PRIME path). Defaults to telemetry.Nop. This is
	// the only place this package logs anything itself; every other outcome
	// is reported solely through Observer.
	Logger *telemetry.Logger
}

func defaultFingerprint(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Wrap builds an http.Handler that runs every request through eng before
// delegating PRIME requests to real. real is only ever invoked on the
// PRIME branch.
func Wrap(eng *engine.Engine, real engine.RealHandler, opts Options) http.Handler {
	if opts.FingerprintFunc == nil {
		opts.FingerprintFunc = defaultFingerprint
	}
	if opts.ContentType == "" {
		opts.ContentType = "application/json; charset=utf-8"
	}
	if opts.Logger == nil {
		opts.Logger = telemetry.Nop
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		env := envelopeFromRequest(r, opts.FingerprintFunc)

		d := processRecovered(r.Context(), eng, env, real, opts.Logger)

		if opts.Observer != nil {
			opts.Observer(r, d)
		}

		w.Header().Set("Content-Type", opts.ContentType)
		w.WriteHeader(http.StatusOK)

		if d.HandlerErr != nil {
			opts.Logger.Error(r.Context(), "handler failure on PRIME path", map[string]string{
				"path":  r.URL.Path,
				"error": d.HandlerErr.Error(),
			})
			_, _ = w.Write(handlerFailureBody(d.HandlerErr))
			return
		}

		_, _ = w.Write(d.Body)
	})
}

// processRecovered runs eng.Process, recovering a panic raised by real the
// same way the teacher's router.go recoverer guards a downstream handler —
// except here the recovery happens around the one call this package makes
// into caller-supplied code rather than around the whole chain, since a
// panic before StagePrime is impossible (real is only ever invoked on
// PRIME). A recovered panic is reported as a HandlerErr, identically to an
// ordinary downstream error return.
func processRecovered(ctx context.Context, eng *engine.Engine, env engine.Envelope, real engine.RealHandler, logger *telemetry.Logger) (d engine.Decision) {
	defer func() {
		if rec := recover(); rec != nil {
			logger.Error(ctx, "recovered panic in real handler", map[string]string{
				"panic": fmt.Sprintf("%v", rec),
			})
			d = engine.Decision{
				Reality:    engine.PRIME,
				Stage:      engine.StagePrime,
				HandlerErr: fmt.Errorf("httpmw: recovered panic in real handler: %v", rec),
			}
		}
	}()
	return eng.Process(ctx, env, real)
}

// handlerFailureBody renders a HandlerFailure as a bounded JSON error
// envelope. The ELP-Ω status-code discipline (spec.md §6) still forces 200
// here — a downstream failure on an already-authenticated PRIME request is
// not a routing decision and gives an attacker nothing to distinguish, so
// there is no reason to special-case the status — but the body makes the
// failure observable to the legitimate caller instead of silently serving a
// stale or empty success body.
func handlerFailureBody(handlerErr error) []byte {
	env := elperrors.NewEnvelope(elperrors.HandlerFailure, handlerErr.Error(), "", nil)
	b, err := json.Marshal(env)
	if err != nil {
		return []byte(`{"error":{"code":"handler.failure","message":"downstream handler failed","retryable":false,"kind":"dependency"}}`)
	}
	return b
}

func envelopeFromRequest(r *http.Request, fingerprint func(*http.Request) string) engine.Envelope {
	mask, err := strconv.ParseInt(strings.TrimSpace(r.Header.Get(headerMask)), 10, 64)
	if err != nil {
		// An unparseable mask is itself malformed input; -1 always fails
		// validMask's non-negativity check and routes to SHADOW through
		// the normal Mask Validator path rather than a special case here.
		mask = -1
	}
	ts, _ := strconv.ParseInt(strings.TrimSpace(r.Header.Get(headerTimestamp)), 10, 64)

	return engine.Envelope{
		Mask:        mask,
		Seal:        strings.TrimSpace(r.Header.Get(headerSeal)),
		TimestampMs: ts,
		Nonce:       strings.TrimSpace(r.Header.Get(headerNonce)),
		Context:     r.Method,
		Path:        r.URL.Path,
		Fingerprint: fingerprint(r),
	}
}
