// Command elpomega-server runs a demo protected resource behind the
// ELP-Ω cascade: GET /api/v1/resource is wrapped by the Orchestrator, and
// a second, separate listener serves /internal/metrics and /healthz so
// that probing the metrics port can never be used to time the request
// path (ported from run_server.py's single-process demo, split into two
// listeners per SPEC_FULL.md §6).
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	_ "github.com/mattn/go-sqlite3"

	"github.com/gorilla/mux"

	"github.com/Ap3pp3rs94/elpomega/internal/engine"
	"github.com/Ap3pp3rs94/elpomega/internal/httpmw"
	"github.com/Ap3pp3rs94/elpomega/internal/metrics"
	"github.com/Ap3pp3rs94/elpomega/internal/middleware"
	"github.com/Ap3pp3rs94/elpomega/internal/store"
	"github.com/Ap3pp3rs94/elpomega/pkg/config"
	elperrors "github.com/Ap3pp3rs94/elpomega/pkg/errors"
	"github.com/Ap3pp3rs94/elpomega/pkg/telemetry"
)

func main() {
	configPath := flag.String("config", "", "path to server YAML config")
	flag.Parse()

	logger := telemetry.NewDefaultLogger(os.Stdout, "elpomega-server")
	ctx := context.Background()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fatal(ctx, logger, elperrors.ConfigNotFound, err, nil)
	}
	if err := cfg.Validate(); err != nil {
		fatal(ctx, logger, elperrors.ConfigInvalid, err, nil)
	}

	nonces, failures, closeStore, err := buildStores(ctx, cfg.Store)
	if err != nil {
		fatal(ctx, logger, elperrors.StoreUnavailable, err, map[string]any{"backend": cfg.Store.Backend})
	}
	defer closeStore()

	collector := metrics.New("elpomega")

	eng, err := engine.New(engine.Config{
		Secret:          []byte(cfg.Engine.Secret),
		MaxAgeMs:        cfg.Engine.MaxAgeMs,
		MaxFailures:     cfg.Engine.MaxFailures,
		FailureWindowMs: cfg.Engine.FailureWindowMs,
		EqualizeLowMs:   cfg.Engine.EqualizeLowMs,
		EqualizeHighMs:  cfg.Engine.EqualizeHighMs,
		GCIntervalMs:    cfg.Engine.GCIntervalMs,
	},
		engine.WithNonceStore(nonces),
		engine.WithFailureStore(failures),
		engine.WithObserver(func(stage engine.Stage, took time.Duration) {
			collector.ObserveStage(stage.String(), took)
		}),
	)
	if err != nil {
		fatal(ctx, logger, elperrors.ConfigInvalid, err, nil)
	}

	// Sweep stale nonces on a ticker so the Nonce Record table does not
	// grow without bound while the servers run.
	sweepEvery := time.Duration(cfg.Engine.GCIntervalMs) * time.Millisecond
	if sweepEvery <= 0 {
		sweepEvery = time.Duration(2*cfg.Engine.MaxAgeMs) * time.Millisecond
	}
	if sweepEvery > 0 {
		go func() {
			for range time.Tick(sweepEvery) {
				if err := eng.EvictStaleNonces(ctx); err != nil {
					logger.Warn(ctx, "nonce sweep failed", map[string]string{"error": err.Error()})
				}
			}
		}()
	}

	resourceRouter := mux.NewRouter()
	resourceRouter.Handle("/api/v1/resource", httpmw.Wrap(eng, newRealResourceHandler(cfg.Engine.EqualizeLowMs, cfg.Engine.EqualizeHighMs), httpmw.Options{
		Logger: logger,
		Observer: func(r *http.Request, d engine.Decision) {
			logger.Info(r.Context(), "cascade decision", map[string]string{
				"stage":       d.Stage.String(),
				"method":      r.Method,
				"path":        r.URL.Path,
				"fingerprint": defaultFingerprintForLog(r),
			})
		},
	})).Methods(http.MethodGet)
	resourceRouter.HandleFunc("/healthz", healthHandler).Methods(http.MethodGet)

	resourceHandler := middleware.RequestID(resourceRouter)

	metricsRouter := mux.NewRouter()
	metricsRouter.Handle("/internal/metrics", collector.Handler()).Methods(http.MethodGet)
	metricsRouter.HandleFunc("/healthz", healthHandler).Methods(http.MethodGet)

	resourceSrv := newServer(cfg.ListenAddr, resourceHandler)
	metricsSrv := newServer(cfg.MetricsListenAddr, metricsRouter)

	runAndWait(ctx, logger, resourceSrv, metricsSrv)
}

func newServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}

func runAndWait(ctx context.Context, logger *telemetry.Logger, servers ...*http.Server) {
	errCh := make(chan error, len(servers))
	for _, srv := range servers {
		srv := srv
		ln, err := net.Listen("tcp", srv.Addr)
		if err != nil {
			fatal(ctx, logger, elperrors.ListenFailed, err, map[string]any{"addr": srv.Addr})
		}
		go func() {
			logger.Info(ctx, "listening", map[string]string{"addr": ln.Addr().String()})
			errCh <- srv.Serve(ln)
		}()
	}

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info(ctx, "shutdown signal received", map[string]string{"signal": sig.String()})
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logger.Error(ctx, "server error", map[string]string{"error": err.Error()})
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, srv := range servers {
		_ = srv.Shutdown(shutdownCtx)
	}
}

// fatal logs a startup failure through pkg/errors' envelope machinery,
// giving every exit(1) path a stable code and kind instead of a bare
// message, then exits. It is called for startup failures up to and
// including binding the listeners, so servers started earlier in
// runAndWait may already be serving when it exits.
func fatal(ctx context.Context, logger *telemetry.Logger, code elperrors.Code, err error, details map[string]any) {
	env := elperrors.FromError(err, code, "")
	fields := map[string]string{
		"code":    string(env.Error.Code),
		"message": env.Error.Message,
		"kind":    env.Error.Kind,
	}
	for _, kv := range elperrors.NewEnvelope(code, err.Error(), "", details).Error.Details {
		fields[kv.K] = kv.V
	}
	logger.Error(ctx, "fatal startup error", fields)
	os.Exit(1)
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// newRealResourceHandler builds the downstream business handler the
// Orchestrator only reaches on PRIME. A real deployment would look up an
// account by whatever identity the caller authenticated with; the demo
// returns a fixed realistic payload, mirroring run_server.py's handler —
// including run_server.py's artificial processing delay
// (time.sleep(random.uniform(0.010, 0.050))), ported here as a call into
// the same equalizer lowMs/highMs bounds the cascade uses for MIRROR and
// SHADOW. Without it this handler returns in well under a millisecond,
// falling far outside the window the non-PRIME branches are deliberately
// delayed into, which would make PRIME distinguishable by latency alone.
func newRealResourceHandler(equalizeLowMs, equalizeHighMs int) engine.RealHandler {
	return func(ctx context.Context, env engine.Envelope) ([]byte, error) {
		engine.EqualizeDelay(ctx, equalizeLowMs, equalizeHighMs)

		body := map[string]any{
			"status": "verified",
			"data": map[string]any{
				"account_type": "checking",
				"balance":      "R$ 12450,30",
				"currency":     "BRL",
			},
		}
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("resource handler: marshal: %w", err)
		}
		return b, nil
	}
}

func defaultFingerprintForLog(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// buildStores constructs the Nonce Record and Failure Ledger backends
// named by cfg.Backend, ensuring schema where the backend requires it.
// The returned close func releases any underlying connection; callers
// must defer it.
func buildStores(ctx context.Context, cfg config.StoreConfig) (store.NonceStore, store.FailureStore, func(), error) {
	switch cfg.Backend {
	case "", "memory":
		return store.NewMemoryNonceStore(), store.NewMemoryFailureStore(), func() {}, nil

	case "sqlite":
		db, err := sql.Open("sqlite3", cfg.DSN)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("sqlite open: %w", err)
		}
		nonces := store.NewSQLiteNonceStore(db)
		failures := store.NewSQLiteFailureStore(db)
		if err := nonces.EnsureSchema(ctx); err != nil {
			return nil, nil, nil, fmt.Errorf("sqlite nonce schema: %w", err)
		}
		if err := failures.EnsureSchema(ctx); err != nil {
			return nil, nil, nil, fmt.Errorf("sqlite failure schema: %w", err)
		}
		return nonces, failures, func() { _ = db.Close() }, nil

	case "postgres":
		db, err := sql.Open("postgres", cfg.DSN)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("postgres open: %w", err)
		}
		nonces := store.NewPostgresNonceStore(db)
		failures := store.NewPostgresFailureStore(db)
		if err := nonces.EnsureSchema(ctx); err != nil {
			return nil, nil, nil, fmt.Errorf("postgres nonce schema: %w", err)
		}
		if err := failures.EnsureSchema(ctx); err != nil {
			return nil, nil, nil, fmt.Errorf("postgres failure schema: %w", err)
		}
		return nonces, failures, func() { _ = db.Close() }, nil

	case "redis":
		opts, err := redis.ParseURL(cfg.DSN)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("redis parse dsn: %w", err)
		}
		rdb := redis.NewClient(opts)
		const ttl = 24 * time.Hour
		nonces := store.NewRedisNonceStore(rdb, ttl)
		failures := store.NewRedisFailureStore(rdb, ttl)
		return nonces, failures, func() { _ = rdb.Close() }, nil

	default:
		return nil, nil, nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}
