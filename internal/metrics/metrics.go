// Package metrics exposes Prometheus collectors for the cascade's stage
// distribution and latency, served on a listener separate from the
// protected resource server (SPEC_FULL.md §6: the metrics endpoint must
// never share a port with request traffic, since an attacker watching
// response timing on the real listener is exactly what the Timing
// Equalizer defends against). Grounded in the gateway's
// observability.go counter/histogram pair, with the OpenTelemetry
// tracer dropped — a single-process middleware has no downstream span
// to propagate to.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds the registry and collectors for one server instance.
type Collector struct {
	registry       *prometheus.Registry
	decisions      *prometheus.CounterVec
	stageDurations *prometheus.HistogramVec
	nonceEvictions prometheus.Counter
}

// New builds and registers the ELP-Ω collector set under the given
// namespace (default "elpomega" if empty).
func New(namespace string) *Collector {
	if namespace == "" {
		namespace = "elpomega"
	}
	registry := prometheus.NewRegistry()

	decisions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cascade_stage_total",
		Help:      "Count of requests that reached each cascade stage.",
	}, []string{"stage"})

	stageDurations := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "cascade_duration_seconds",
		Help:      "Time spent in Process per request, labeled by the stage reached.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"stage"})

	nonceEvictions := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "nonce_evictions_total",
		Help:      "Count of stale nonce records removed by the retention sweeper.",
	})

	registry.MustRegister(decisions, stageDurations, nonceEvictions)

	return &Collector{
		registry:       registry,
		decisions:      decisions,
		stageDurations: stageDurations,
		nonceEvictions: nonceEvictions,
	}
}

// ObserveStage records one cascade stage transition. It deliberately
// takes a stage label, not a Reality value — see internal/httpmw's
// Observer contract.
func (c *Collector) ObserveStage(stage string, took time.Duration) {
	c.decisions.WithLabelValues(stage).Inc()
	c.stageDurations.WithLabelValues(stage).Observe(took.Seconds())
}

// IncNonceEvictions adds n evicted nonce records to the counter.
func (c *Collector) IncNonceEvictions(n int) {
	if n <= 0 {
		return
	}
	c.nonceEvictions.Add(float64(n))
}

// Handler serves the Prometheus exposition format for this collector's
// registry, meant to be mounted on the internal-only listener.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
