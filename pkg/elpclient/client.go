// Package elpclient is the legitimate client SDK for an ELP-Ω-protected
// resource: it computes the same seal the Orchestrator verifies and
// attaches the four protocol headers to an outgoing request. It is the
// honest counterpart of cmd/elpattack, which deliberately reuses and
// corrupts the same header construction to probe the server.
package elpclient

import (
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/Ap3pp3rs94/elpomega/internal/engine"
)

const (
	headerMask      = "X-ELP-Mask"
	headerSeal      = "X-ELP-Seal"
	headerTimestamp = "X-ELP-Timestamp"
	headerNonce     = "X-ELP-Nonce"
)

// Client holds the shared secret used to seal requests. It is safe for
// concurrent use.
type Client struct {
	secret []byte
}

// New builds a Client from the shared secret. Returns an error if secret
// is empty, mirroring engine.Config.Validate's same requirement.
func New(secret string) (*Client, error) {
	if secret == "" {
		return nil, fmt.Errorf("elpclient: secret must not be empty")
	}
	return &Client{secret: []byte(secret)}, nil
}

// Sign attaches the X-ELP-* headers to req for the given mask, using the
// request's own method and path and a fresh nonce and timestamp. mask
// must already satisfy the Zeckendorf-like validity rule; Sign does not
// check it, so a mask with adjacent set bits is signed as given and the
// server routes the request to SHADOW.
func (c *Client) Sign(req *http.Request, mask int64) {
	ts := time.Now().UnixMilli()
	nonce := uuid.New().String()
	seal := engine.ComputeSeal(c.secret, mask, req.Method, ts, req.URL.Path, nonce)

	req.Header.Set(headerMask, fmt.Sprintf("%d", mask))
	req.Header.Set(headerSeal, seal)
	req.Header.Set(headerTimestamp, fmt.Sprintf("%d", ts))
	req.Header.Set(headerNonce, nonce)
}

// Headers returns the same four headers Sign would attach, without
// requiring an *http.Request — useful for building requests with other
// HTTP client libraries.
func (c *Client) Headers(method, path string, mask int64) http.Header {
	ts := time.Now().UnixMilli()
	nonce := uuid.New().String()
	seal := engine.ComputeSeal(c.secret, mask, method, ts, path, nonce)

	h := make(http.Header, 4)
	h.Set(headerMask, fmt.Sprintf("%d", mask))
	h.Set(headerSeal, seal)
	h.Set(headerTimestamp, fmt.Sprintf("%d", ts))
	h.Set(headerNonce, nonce)
	return h
}
