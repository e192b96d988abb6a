package config

import "errors"

// Common errors returned by the config package: surfaced as fatal on
// startup, logged and discarded (retaining the previous snapshot) on
// reload.
var (
	// ErrNoFolders is returned when no folders are configured to watch.
	ErrNoFolders = errors.New("no folders specified")

	// ErrInvalidAPIEndpoint is returned when api_endpoint does not parse as
	// an absolute http/https URL.
	ErrInvalidAPIEndpoint = errors.New("invalid api_endpoint: must be an absolute http(s) URL")

	// ErrInvalidDiagnosticsURL is returned when diagnostics_url_prefix does
	// not parse as a URL.
	ErrInvalidDiagnosticsURL = errors.New("invalid diagnostics_url_prefix")

	// ErrEmptyProcessedFolder is returned when processed_folder is empty.
	ErrEmptyProcessedFolder = errors.New("processed_folder must not be empty")

	// ErrInvalidDebounceMs is returned when debounce_ms is negative.
	ErrInvalidDebounceMs = errors.New("invalid debounce_ms: must be >= 0")

	// ErrInvalidRetries is returned when retries is negative.
	ErrInvalidRetries = errors.New("invalid retries: must be >= 0")

	// ErrInvalidRetryDelayMs is returned when retry_delay_ms is negative.
	ErrInvalidRetryDelayMs = errors.New("invalid retry_delay_ms: must be >= 0")

	// ErrInvalidChannelCapacity is returned when channel_capacity is < 1.
	ErrInvalidChannelCapacity = errors.New("invalid channel_capacity: must be >= 1")

	// ErrInvalidMaxParallelSends is returned when max_parallel_sends is < 1.
	ErrInvalidMaxParallelSends = errors.New("invalid max_parallel_sends: must be >= 1")

	// ErrInvalidWatcherMaxRestartAttempts is returned when negative.
	ErrInvalidWatcherMaxRestartAttempts = errors.New("invalid watcher_max_restart_attempts: must be >= 0")

	// ErrInvalidWatcherRestartDelayMs is returned when negative.
	ErrInvalidWatcherRestartDelayMs = errors.New("invalid watcher_restart_delay_ms: must be >= 0")

	// ErrInvalidWaitForFileReadyMs is returned when negative.
	ErrInvalidWaitForFileReadyMs = errors.New("invalid wait_for_file_ready_ms: must be >= 0")

	// ErrInvalidMaxContentBytes is returned when negative.
	ErrInvalidMaxContentBytes = errors.New("invalid max_content_bytes: must be >= 0")

	// ErrInvalidStreamingThresholdBytes is returned when negative.
	ErrInvalidStreamingThresholdBytes = errors.New("invalid streaming_threshold_bytes: must be >= 0")

	// ErrInvalidCircuitBreakerFailureThreshold is returned when circuit
	// breaker is enabled and the threshold is < 1.
	ErrInvalidCircuitBreakerFailureThreshold = errors.New("invalid circuit_breaker_failure_threshold: must be >= 1")

	// ErrInvalidCircuitBreakerOpenDurationMs is returned when circuit
	// breaker is enabled and the open duration is < 1.
	ErrInvalidCircuitBreakerOpenDurationMs = errors.New("invalid circuit_breaker_open_duration_ms: must be >= 1")

	// ErrInvalidLogLevel is returned when log level is not recognized.
	ErrInvalidLogLevel = errors.New("invalid log level: must be debug, info, warn, or error")

	// ErrInvalidLogFormat is returned when log format is not recognized.
	ErrInvalidLogFormat = errors.New("invalid log format: must be text or json")

	// ErrConfigNotFound is returned when the config file is not found.
	ErrConfigNotFound = errors.New("config file not found")

	// ErrInvalidJSON is returned when the config file has invalid JSON syntax.
	ErrInvalidJSON = errors.New("invalid JSON syntax in config file")
)
