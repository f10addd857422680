package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Ap3pp3rs94/elpomega/pkg/telemetry"
)

func TestRequestIDGeneratedWhenMissing(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.Header.Get(requestIDHeader)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if seen == "" {
		t.Fatal("expected a generated request id")
	}
	if rec.Header().Get(requestIDHeader) != seen {
		t.Fatal("response header should echo the request id")
	}
}

func TestRequestIDPreservesValidIncoming(t *testing.T) {
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(requestIDHeader, "req_caller-supplied")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Header().Get(requestIDHeader) != "req_caller-supplied" {
		t.Fatalf("got %q, want caller-supplied id preserved", rec.Header().Get(requestIDHeader))
	}
}

func TestRequestIDPropagatesToTelemetryContext(t *testing.T) {
	var loggedID string
	var buf bytes.Buffer
	logger := telemetry.NewDefaultLogger(&buf, "test")

	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger.Info(r.Context(), "handled", nil)
		loggedID = r.Header.Get(requestIDHeader)
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if loggedID == "" {
		t.Fatal("expected request id to be set")
	}
	if !bytes.Contains(buf.Bytes(), []byte(loggedID)) {
		t.Fatalf("expected logger output to carry request id %q: %s", loggedID, buf.Bytes())
	}
}
