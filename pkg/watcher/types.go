// Package watcher provides the Watcher Supervisor: one fsnotify watch per
// configured folder, each independently restartable, filtering raw
// filesystem events down to the ones the rest of the pipeline cares about
// and forwarding them on a single shared channel.
//
// Example usage:
//
//	s := watcher.NewSupervisor(watcher.Config{
//	    Folders:           []string{"/srv/incoming"},
//	    AllowedExtensions: []string{".csv"},
//	    ProcessedFolder:   "processed",
//	}, logger.Default())
//
//	ctx := context.Background()
//	if err := s.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer s.Close()
//
//	for event := range s.Events() {
//	    fmt.Printf("file %s: %s\n", event.Path, event.Op)
//	}
package watcher

import (
	"time"

	"github.com/0xmhha/filewatchrest/pkg/clock"
)

// Op describes a file operation type.
type Op uint32

// File operation types.
const (
	OpCreate Op = 1 << iota // File created
	OpWrite                 // File modified
	OpRemove                // File deleted
	OpRename                // File renamed/moved
	OpChmod                 // File permissions changed
)

// String returns a human-readable operation name.
func (op Op) String() string {
	switch op {
	case OpCreate:
		return "CREATE"
	case OpWrite:
		return "WRITE"
	case OpRemove:
		return "REMOVE"
	case OpRename:
		return "RENAME"
	case OpChmod:
		return "CHMOD"
	default:
		return "UNKNOWN"
	}
}

// FileEvent is a single filtered, attributable filesystem occurrence handed
// to the Debounce Coalescer.
type FileEvent struct {
	// Path is the absolute path to the file that triggered the event.
	Path string

	// Folder is the configured watch root this event was observed under.
	Folder string

	// Op is the operation that triggered the event.
	Op Op

	// Timestamp is when the event was observed.
	Timestamp time.Time
}

// State is a watcher goroutine's lifecycle state.
type State string

// Watcher lifecycle states.
const (
	StateStarting   State = "starting"
	StateRunning    State = "running"
	StateRestarting State = "restarting"
	StateFailed     State = "failed"
)

// WatcherHandle is a read-only snapshot of one per-folder watcher's state,
// exposed to the Diagnostics Store.
type WatcherHandle struct {
	Folder       string
	State        State
	RestartCount int
	LastError    string
	StartedAt    time.Time
}

// Config configures the Supervisor.
type Config struct {
	// Folders are the directories to watch, one fsnotify watch per entry.
	Folders []string

	// AllowedExtensions filters emitted events by file extension
	// (case-insensitive, leading dot optional). Empty allows every
	// extension.
	AllowedExtensions []string

	// IncludeSubdirectories recurses into each folder at start and adds
	// newly created subdirectories as they appear.
	IncludeSubdirectories bool

	// ProcessedFolder is the archive subdirectory name; events whose path
	// contains it as a path segment are never emitted.
	ProcessedFolder string

	// MaxRestartAttempts bounds automatic restarts of a single folder's
	// watcher before it is marked Failed.
	MaxRestartAttempts int

	// RestartDelay is the base delay before a failed watcher is recreated.
	RestartDelay time.Duration

	// Clock allows deterministic restart-delay testing. Defaults to
	// clock.New() when nil.
	Clock clock.Clock
}
