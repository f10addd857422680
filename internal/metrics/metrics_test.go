package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestObserveStageIncrementsCounter(t *testing.T) {
	c := New("elpomega_test")
	c.ObserveStage("prime", 5*time.Millisecond)
	c.ObserveStage("shadow", 1*time.Millisecond)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/internal/metrics", nil)
	c.Handler().ServeHTTP(rec, req)

	body := rec.Body.String()
	if !strings.Contains(body, `elpomega_test_cascade_stage_total{stage="prime"} 1`) {
		t.Fatalf("expected prime stage counter, got:\n%s", body)
	}
	if !strings.Contains(body, `elpomega_test_cascade_stage_total{stage="shadow"} 1`) {
		t.Fatalf("expected shadow stage counter, got:\n%s", body)
	}
}

func TestMetricsOutputNeverMentionsReality(t *testing.T) {
	c := New("elpomega_test2")
	c.ObserveStage("seal", time.Millisecond)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/internal/metrics", nil))
	body := strings.ToLower(rec.Body.String())
	for _, forbidden := range []string{"prime", "mirror_reality", "shadow_reality"} {
		if strings.Contains(body, forbidden) {
			t.Fatalf("metrics output should describe stages, not reality outcomes: found %q", forbidden)
		}
	}
}

func TestIncNonceEvictions(t *testing.T) {
	c := New("elpomega_test3")
	c.IncNonceEvictions(4)
	c.IncNonceEvictions(0)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/internal/metrics", nil))
	if !strings.Contains(rec.Body.String(), "elpomega_test3_nonce_evictions_total 4") {
		t.Fatalf("expected eviction counter = 4, got:\n%s", rec.Body.String())
	}
}
