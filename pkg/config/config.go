// Package config loads the ELP-Ω demo server's configuration from a YAML
// file with environment-variable overrides, simplified from the
// multi-tier base/env/tenant loader used elsewhere in this codebase: the
// engine's configuration surface is a single flat document, not a
// multi-tenant bundle, so one layer plus env overrides is sufficient.
//
// Env var overrides follow the same convention as the multi-tier loader:
// prefix ELPOMEGA_, "__" for nesting, e.g. ELPOMEGA_STORE__BACKEND=redis
// overrides store.backend.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// StoreConfig selects and configures the backing store for the Nonce
// Record table and Failure Ledger.
type StoreConfig struct {
	// Backend is one of "memory", "sqlite", "postgres", "redis".
	Backend string `yaml:"backend"`
	DSN     string `yaml:"dsn"`
}

// EngineConfig mirrors engine.Config's YAML-serializable fields.
type EngineConfig struct {
	Secret          string `yaml:"secret"`
	MaxAgeMs        int64  `yaml:"max_age_ms"`
	MaxFailures     int    `yaml:"max_failures"`
	FailureWindowMs int64  `yaml:"failure_window_ms"`
	EqualizeLowMs   int    `yaml:"equalize_low_ms"`
	EqualizeHighMs  int    `yaml:"equalize_high_ms"`
	GCIntervalMs    int64  `yaml:"gc_interval_ms"`
}

// ServerConfig is the demo server's full configuration document.
type ServerConfig struct {
	ListenAddr         string       `yaml:"listen_addr"`
	MetricsListenAddr  string       `yaml:"metrics_listen_addr"`
	Engine             EngineConfig `yaml:"engine"`
	Store              StoreConfig  `yaml:"store"`
}

// Default returns the baseline configuration a fresh checkout should be
// able to run with, aside from Engine.Secret which has no safe default.
func Default() ServerConfig {
	return ServerConfig{
		ListenAddr:        ":8080",
		MetricsListenAddr: ":9090",
		Engine: EngineConfig{
			MaxAgeMs:        300_000,
			MaxFailures:     5,
			FailureWindowMs: 3_600_000,
			EqualizeLowMs:   15,
			EqualizeHighMs:  60,
			GCIntervalMs:    600_000,
		},
		Store: StoreConfig{Backend: "memory"},
	}
}

// Load reads path (if non-empty) as YAML over the defaults, then applies
// ELPOMEGA_-prefixed environment overrides.
func Load(path string) (ServerConfig, error) {
	cfg := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	applyEnvOverrides(&cfg)
	return cfg, nil
}

const (
	envPrefix        = "ELPOMEGA_"
	envPathDelimiter = "__"
)

// applyEnvOverrides walks a small fixed set of known paths rather than a
// generic map-merge: the engine's configuration surface is flat and
// closed, so the override table can be explicit instead of reflective.
func applyEnvOverrides(cfg *ServerConfig) {
	set := func(path string, dst *string) {
		if v, ok := lookupEnvPath(path); ok {
			*dst = v
		}
	}
	setInt64 := func(path string, dst *int64) {
		if v, ok := lookupEnvPath(path); ok {
			if n, err := strconv.ParseInt(v, 10, 64); err == nil {
				*dst = n
			}
		}
	}
	setInt := func(path string, dst *int) {
		if v, ok := lookupEnvPath(path); ok {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}

	set("listen_addr", &cfg.ListenAddr)
	set("metrics_listen_addr", &cfg.MetricsListenAddr)
	set("engine__secret", &cfg.Engine.Secret)
	setInt64("engine__max_age_ms", &cfg.Engine.MaxAgeMs)
	setInt("engine__max_failures", &cfg.Engine.MaxFailures)
	setInt64("engine__failure_window_ms", &cfg.Engine.FailureWindowMs)
	setInt("engine__equalize_low_ms", &cfg.Engine.EqualizeLowMs)
	setInt("engine__equalize_high_ms", &cfg.Engine.EqualizeHighMs)
	setInt64("engine__gc_interval_ms", &cfg.Engine.GCIntervalMs)
	set("store__backend", &cfg.Store.Backend)
	set("store__dsn", &cfg.Store.DSN)
}

func lookupEnvPath(path string) (string, bool) {
	key := envPrefix + strings.ToUpper(strings.ReplaceAll(path, "__", envPathDelimiter))
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return v, true
}

// Validate checks the fields Load cannot default for (chiefly the
// secret), returning an error the caller should treat as fatal at
// startup.
func (c ServerConfig) Validate() error {
	if strings.TrimSpace(c.Engine.Secret) == "" {
		return fmt.Errorf("config: engine.secret is required")
	}
	switch c.Store.Backend {
	case "memory", "sqlite", "postgres", "redis":
	default:
		return fmt.Errorf("config: unknown store.backend %q", c.Store.Backend)
	}
	if c.Store.Backend != "memory" && strings.TrimSpace(c.Store.DSN) == "" {
		return fmt.Errorf("config: store.dsn is required for backend %q", c.Store.Backend)
	}
	return nil
}
