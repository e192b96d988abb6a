package watcher

import "errors"

// Common errors returned by the watcher package.
var (
	// ErrSupervisorClosed is returned when attempting to use a closed
	// supervisor.
	ErrSupervisorClosed = errors.New("watcher supervisor is closed")

	// ErrAlreadyStarted is returned when Start is called on a running
	// supervisor.
	ErrAlreadyStarted = errors.New("watcher supervisor already started")

	// ErrNotStarted is returned when Stop is called on a non-running
	// supervisor.
	ErrNotStarted = errors.New("watcher supervisor not started")

	// ErrNoFolders is returned when Start is called with no watchable
	// folders (all configured folders missing from disk, or none
	// configured).
	ErrNoFolders = errors.New("no watchable folders")

	// ErrWatcherFailed marks a single folder's watcher as permanently
	// failed after exhausting MaxRestartAttempts.
	ErrWatcherFailed = errors.New("watcher exhausted restart attempts")
)
