// Package config provides configuration management for filewatchrest.
//
// Configuration is loaded from multiple sources with the following precedence:
// 1. Command-line flags (highest priority)
// 2. Environment variable FILEWATCHREST_CONFIG (path to the file)
// 3. Configuration file (JSON)
// 4. Default values (lowest priority)
//
// A Config is an immutable snapshot: once handed to a consumer it is never
// mutated in place. Reloads produce a brand new *Config; consumers swap
// their local reference atomically instead of writing into the old one.
//
// Example usage:
//
//	cfg, err := config.Load("")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("watching: %v\n", cfg.Folders)
package config

import (
	"net/url"
	"time"
)

// Config is the complete, validated configuration snapshot.
//
// Invariants (see Validate):
//   - Folders must have at least one entry
//   - APIEndpoint must parse as an absolute http/https URL
//   - DiagnosticsURLPrefix must parse as a URL
//   - ProcessedFolder must be non-empty
//   - every *Ms/int field respects its documented bound
type Config struct {
	// Folders are the directories watched for new/changed files.
	Folders []string `json:"folders"`

	// APIEndpoint is the remote HTTP(S) endpoint notifications are POSTed to.
	APIEndpoint string `json:"api_endpoint"`

	// BearerToken is treated opaquely by the core; it is assumed already
	// decoded to plaintext by an external collaborator. Credential storage
	// and rotation are out of scope.
	BearerToken string `json:"bearer_token,omitempty"`

	// PostFileContents, if true, includes file content in the Notification
	// subject to MaxContentBytes.
	PostFileContents bool `json:"post_file_contents"`

	// MoveProcessedFiles, if true, relocates a file to ProcessedFolder after
	// a successful send.
	MoveProcessedFiles bool `json:"move_processed_files"`

	// ProcessedFolder is the archive subdirectory name (not a path), e.g.
	// "processed". Events whose path has this as a path segment are never
	// re-emitted by the watcher.
	ProcessedFolder string `json:"processed_folder"`

	// AllowedExtensions, case-insensitive, with or without the leading dot.
	// An empty set allows every extension.
	AllowedExtensions []string `json:"allowed_extensions"`

	// IncludeSubdirectories recurses into each watched folder.
	IncludeSubdirectories bool `json:"include_subdirectories"`

	// DebounceMs is the per-path quiet period before a coalesced event is
	// emitted. 0 means immediate pass-through (still serialized per path).
	DebounceMs int `json:"debounce_ms"`

	// Retries is the number of retry attempts after the first (so total
	// attempts = Retries+1).
	Retries int `json:"retries"`

	// RetryDelayMs is the base delay for exponential backoff between
	// retryable attempts (delay = RetryDelayMs * 2^(attempt-1) + jitter).
	RetryDelayMs int `json:"retry_delay_ms"`

	// ChannelCapacity bounds the Work Queue.
	ChannelCapacity int `json:"channel_capacity"`

	// MaxParallelSends is the Sender Pool worker count.
	MaxParallelSends int `json:"max_parallel_sends"`

	// WatcherMaxRestartAttempts bounds automatic watcher restarts before a
	// watcher is marked Failed.
	WatcherMaxRestartAttempts int `json:"watcher_max_restart_attempts"`

	// WatcherRestartDelayMs is the sleep before a failed watcher is recreated.
	WatcherRestartDelayMs int `json:"watcher_restart_delay_ms"`

	// WaitForFileReadyMs bounds how long to wait for a file to become
	// openable for shared read before emission/send.
	WaitForFileReadyMs int `json:"wait_for_file_ready_ms"`

	// MaxContentBytes is the maximum file size eligible for inline content;
	// above this, Content is always nil regardless of PostFileContents.
	MaxContentBytes int64 `json:"max_content_bytes"`

	// StreamingThresholdBytes: files larger than this use a streaming
	// (multipart/chunked) upload instead of buffering.
	StreamingThresholdBytes int64 `json:"streaming_threshold_bytes"`

	// EnableCircuitBreaker turns on the per-endpoint circuit breaker gate.
	EnableCircuitBreaker bool `json:"enable_circuit_breaker"`

	// CircuitBreakerFailureThreshold consecutive failures before opening.
	CircuitBreakerFailureThreshold int `json:"circuit_breaker_failure_threshold"`

	// CircuitBreakerOpenDurationMs is the cooldown window once opened.
	CircuitBreakerOpenDurationMs int `json:"circuit_breaker_open_duration_ms"`

	// DiagnosticsURLPrefix is the bind address/prefix for the read-only
	// diagnostics HTTP endpoint, e.g. "http://127.0.0.1:9000".
	DiagnosticsURLPrefix string `json:"diagnostics_url_prefix"`

	// OtelEndpoint is an optional OTLP/HTTP collector endpoint for tracing
	// HTTP resilience sender attempts. Empty disables the exporter.
	OtelEndpoint string `json:"otel_endpoint,omitempty"`

	// Logging configures the ambient structured logger (external to the
	// core's contract, but always present so the core can construct one).
	Logging LoggingConfig `json:"logging"`
}

// LoggingConfig mirrors pkg/logger.Config; kept here so the JSON config file
// can configure it directly.
type LoggingConfig struct {
	Level  string `json:"level"`
	Output string `json:"output"`
	Format string `json:"format"`
}

// DebounceDuration returns DebounceMs as a time.Duration.
func (c *Config) DebounceDuration() time.Duration {
	return time.Duration(c.DebounceMs) * time.Millisecond
}

// RetryDelayDuration returns RetryDelayMs as a time.Duration.
func (c *Config) RetryDelayDuration() time.Duration {
	return time.Duration(c.RetryDelayMs) * time.Millisecond
}

// WatcherRestartDelayDuration returns WatcherRestartDelayMs as a time.Duration.
func (c *Config) WatcherRestartDelayDuration() time.Duration {
	return time.Duration(c.WatcherRestartDelayMs) * time.Millisecond
}

// WaitForFileReadyDuration returns WaitForFileReadyMs as a time.Duration.
func (c *Config) WaitForFileReadyDuration() time.Duration {
	return time.Duration(c.WaitForFileReadyMs) * time.Millisecond
}

// CircuitBreakerOpenDuration returns CircuitBreakerOpenDurationMs as a
// time.Duration.
func (c *Config) CircuitBreakerOpenDuration() time.Duration {
	return time.Duration(c.CircuitBreakerOpenDurationMs) * time.Millisecond
}

// Validate checks every invariant a Configuration must satisfy before it
// may become the active snapshot.
//
// Thread-safety: read-only, safe for concurrent use.
func (c *Config) Validate() error {
	if len(c.Folders) == 0 {
		return ErrNoFolders
	}

	u, err := url.Parse(c.APIEndpoint)
	if err != nil || !u.IsAbs() || (u.Scheme != "http" && u.Scheme != "https") {
		return ErrInvalidAPIEndpoint
	}

	if c.DiagnosticsURLPrefix == "" {
		return ErrInvalidDiagnosticsURL
	}
	if _, err := url.Parse(c.DiagnosticsURLPrefix); err != nil {
		return ErrInvalidDiagnosticsURL
	}

	if c.ProcessedFolder == "" {
		return ErrEmptyProcessedFolder
	}

	if c.DebounceMs < 0 {
		return ErrInvalidDebounceMs
	}
	if c.Retries < 0 {
		return ErrInvalidRetries
	}
	if c.RetryDelayMs < 0 {
		return ErrInvalidRetryDelayMs
	}
	if c.ChannelCapacity < 1 {
		return ErrInvalidChannelCapacity
	}
	if c.MaxParallelSends < 1 {
		return ErrInvalidMaxParallelSends
	}
	if c.WatcherMaxRestartAttempts < 0 {
		return ErrInvalidWatcherMaxRestartAttempts
	}
	if c.WatcherRestartDelayMs < 0 {
		return ErrInvalidWatcherRestartDelayMs
	}
	if c.WaitForFileReadyMs < 0 {
		return ErrInvalidWaitForFileReadyMs
	}
	if c.MaxContentBytes < 0 {
		return ErrInvalidMaxContentBytes
	}
	if c.StreamingThresholdBytes < 0 {
		return ErrInvalidStreamingThresholdBytes
	}
	if c.EnableCircuitBreaker {
		if c.CircuitBreakerFailureThreshold < 1 {
			return ErrInvalidCircuitBreakerFailureThreshold
		}
		if c.CircuitBreakerOpenDurationMs < 1 {
			return ErrInvalidCircuitBreakerOpenDurationMs
		}
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true, "": true}
	if !validLevels[c.Logging.Level] {
		return ErrInvalidLogLevel
	}
	validFormats := map[string]bool{"text": true, "json": true, "": true}
	if !validFormats[c.Logging.Format] {
		return ErrInvalidLogFormat
	}

	return nil
}

// Default returns a configuration with conservative default values.
func Default() *Config {
	return &Config{
		Folders:                        nil,
		APIEndpoint:                    "",
		PostFileContents:               false,
		MoveProcessedFiles:             true,
		ProcessedFolder:                "processed",
		AllowedExtensions:              nil,
		IncludeSubdirectories:          true,
		DebounceMs:                     500,
		Retries:                        2,
		RetryDelayMs:                   1000,
		ChannelCapacity:                100,
		MaxParallelSends:               4,
		WatcherMaxRestartAttempts:      5,
		WatcherRestartDelayMs:          1000,
		WaitForFileReadyMs:             2000,
		MaxContentBytes:                10 * 1024 * 1024,
		StreamingThresholdBytes:        1 * 1024 * 1024,
		EnableCircuitBreaker:           true,
		CircuitBreakerFailureThreshold: 5,
		CircuitBreakerOpenDurationMs:   30000,
		DiagnosticsURLPrefix:           "http://127.0.0.1:9000",
		Logging: LoggingConfig{
			Level:  "info",
			Output: "stderr",
			Format: "text",
		},
	}
}
