package sender

import "errors"

// Common errors returned by the sender package.
var (
	// ErrRetryableSend wraps a terminal-after-retries error whose every
	// attempt was classified retryable (5xx, 408, 429, timeout).
	ErrRetryableSend = errors.New("send failed after exhausting retries")

	// ErrNonRetryableSend wraps an error whose attempt was classified
	// non-retryable (other 4xx): retries are not attempted.
	ErrNonRetryableSend = errors.New("send failed with non-retryable response")
)
