// Package sender implements the HTTP Resilience Sender: a retrying,
// jitter-backed, circuit-breaker-gated HTTP client used by the Sender Pool
// to POST notifications to the configured API endpoint.
package sender

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/0xmhha/filewatchrest/pkg/clock"
)

// RequestFactory builds a fresh *http.Request for one attempt. Senders call
// this once per attempt rather than reusing a single *http.Request because
// a streaming body cannot be rewound after a failed attempt consumes it.
type RequestFactory func(ctx context.Context) (*http.Request, error)

// Config configures a Sender.
type Config struct {
	// Retries is the number of retry attempts after the first (so total
	// attempts = Retries+1).
	Retries int

	// RetryDelay is the base delay for exponential backoff between
	// retryable attempts: delay = RetryDelay * 2^(attempt-1) + jitter.
	RetryDelay time.Duration

	// BearerToken, if non-empty, is sent as an Authorization: Bearer
	// header on every attempt.
	BearerToken string

	// Transport overrides the underlying http.RoundTripper. Defaults to
	// an HTTP/2-aware transport (golang.org/x/net/http2) when nil.
	Transport http.RoundTripper

	// Clock allows deterministic backoff testing. Defaults to clock.New()
	// when nil.
	Clock clock.Clock
}

// Result describes the outcome of a successful send.
type Result struct {
	StatusCode int
	Attempts   int
	Body       []byte
}

func drainAndClose(body io.ReadCloser) {
	if body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, body)
	_ = body.Close()
}

func readLimited(r io.Reader, limit int64) ([]byte, error) {
	return io.ReadAll(io.LimitReader(r, limit))
}
