package elpclient

import (
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/Ap3pp3rs94/elpomega/internal/engine"
)

func TestNewRejectsEmptySecret(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Fatal("expected error for empty secret")
	}
}

func TestSignProducesVerifiableSeal(t *testing.T) {
	c, err := New("shared-secret")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	req := httptest.NewRequest("GET", "/api/v1/resource", nil)
	c.Sign(req, 5)

	mask, _ := strconv.ParseInt(req.Header.Get(headerMask), 10, 64)
	ts, _ := strconv.ParseInt(req.Header.Get(headerTimestamp), 10, 64)
	nonce := req.Header.Get(headerNonce)
	seal := req.Header.Get(headerSeal)

	want := engine.ComputeSeal([]byte("shared-secret"), mask, "GET", ts, "/api/v1/resource", nonce)
	if seal != want {
		t.Fatalf("seal = %q, want %q", seal, want)
	}
}

func TestHeadersMatchesSign(t *testing.T) {
	c, _ := New("shared-secret")
	h := c.Headers("GET", "/api/v1/resource", 5)
	if h.Get(headerMask) != "5" {
		t.Fatalf("mask header = %q, want 5", h.Get(headerMask))
	}
	if h.Get(headerSeal) == "" || h.Get(headerNonce) == "" || h.Get(headerTimestamp) == "" {
		t.Fatal("expected all four headers to be populated")
	}
}

func TestSignUsesFreshNonceEachCall(t *testing.T) {
	c, _ := New("shared-secret")
	req1 := httptest.NewRequest("GET", "/api/v1/resource", nil)
	req2 := httptest.NewRequest("GET", "/api/v1/resource", nil)
	c.Sign(req1, 5)
	c.Sign(req2, 5)
	if req1.Header.Get(headerNonce) == req2.Header.Get(headerNonce) {
		t.Fatal("expected distinct nonces across calls")
	}
}
