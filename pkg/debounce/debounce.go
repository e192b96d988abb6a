// Package debounce implements the Debounce Coalescer: per-path timer table
// that coalesces bursts of watcher.FileEvent into a single emission once a
// path has been quiet for the configured interval.
package debounce

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/0xmhha/filewatchrest/pkg/clock"
	"github.com/0xmhha/filewatchrest/pkg/logger"
	"github.com/0xmhha/filewatchrest/pkg/watcher"
)

// Config configures the Coalescer.
type Config struct {
	// Interval is the per-path quiet period before a coalesced event is
	// emitted. Zero means immediate pass-through (still serialized per
	// path by the timer table).
	Interval time.Duration

	// WaitForFileReady bounds how long to wait, after the quiet period
	// elapses, for the file to become openable for shared read before
	// emission. Zero skips the readiness wait entirely.
	WaitForFileReady time.Duration

	// Clock allows deterministic testing. Defaults to clock.New() when nil.
	Clock clock.Clock
}

// Coalescer reads watcher.FileEvents and republishes at most one event per
// path per quiet period.
type Coalescer struct {
	cfg    Config
	clock  clock.Clock
	logger logger.Logger

	out chan watcher.FileEvent

	mu      sync.Mutex
	timers  map[string]clock.Timer
	pending map[string]watcher.FileEvent
}

// New creates a Coalescer publishing coalesced events on the channel
// returned by Out. Run must be called with the input channel to start.
func New(cfg Config, log logger.Logger) *Coalescer {
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	if log == nil {
		log = logger.Default()
	}
	return &Coalescer{
		cfg:     cfg,
		clock:   cfg.Clock,
		logger:  log,
		out:     make(chan watcher.FileEvent, 256),
		timers:  make(map[string]clock.Timer),
		pending: make(map[string]watcher.FileEvent),
	}
}

// Out returns the channel of coalesced events.
func (c *Coalescer) Out() <-chan watcher.FileEvent {
	return c.out
}

// Run consumes in until it closes or ctx is cancelled, then closes Out's
// channel once all in-flight timers have fired or been abandoned.
func (c *Coalescer) Run(ctx context.Context, in <-chan watcher.FileEvent) {
	defer close(c.out)

	for {
		select {
		case <-ctx.Done():
			c.stopAllTimers()
			return

		case ev, ok := <-in:
			if !ok {
				return
			}
			c.schedule(ctx, ev)
		}
	}
}

// schedule resets (or creates) the debounce timer for ev.Path, replacing any
// previously pending event for that path: a burst of n events for one path
// within the quiet period yields exactly one emission, carrying the most
// recent event's metadata.
func (c *Coalescer) schedule(ctx context.Context, ev watcher.FileEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.pending[ev.Path] = ev

	if timer, exists := c.timers[ev.Path]; exists {
		timer.Stop()
	}

	if c.cfg.Interval <= 0 {
		delete(c.timers, ev.Path)
		pending := c.pending[ev.Path]
		delete(c.pending, ev.Path)
		go c.emit(ctx, pending)
		return
	}

	timer := c.clock.NewTimer(c.cfg.Interval)
	c.timers[ev.Path] = timer

	go func() {
		select {
		case <-timer.C():
			c.mu.Lock()
			pending, ok := c.pending[ev.Path]
			delete(c.pending, ev.Path)
			delete(c.timers, ev.Path)
			c.mu.Unlock()
			if ok {
				c.emit(ctx, pending)
			}
		case <-ctx.Done():
		}
	}()
}

// emit optionally waits for the file to become readable, then publishes.
func (c *Coalescer) emit(ctx context.Context, ev watcher.FileEvent) {
	if ev.Op != watcher.OpRemove && c.cfg.WaitForFileReady > 0 {
		c.waitForReady(ctx, ev.Path)
	}

	select {
	case c.out <- ev:
	case <-ctx.Done():
	}
}

// waitForReady polls for the file to be openable for shared read, giving up
// (and emitting anyway) once WaitForFileReady has elapsed. A writer still
// holding an exclusive lock on some platforms, or a file still being
// written, is the common case this guards against.
func (c *Coalescer) waitForReady(ctx context.Context, path string) {
	deadline := c.clock.Now().Add(c.cfg.WaitForFileReady)
	for {
		f, err := os.Open(path) // nolint:gosec
		if err == nil {
			f.Close()
			return
		}
		if c.clock.Now().After(deadline) {
			c.logger.Warn("file not ready before deadline, emitting anyway", "path", path)
			return
		}
		select {
		case <-c.clock.After(25 * time.Millisecond):
		case <-ctx.Done():
			return
		}
	}
}

func (c *Coalescer) stopAllTimers() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, timer := range c.timers {
		timer.Stop()
	}
	c.timers = make(map[string]clock.Timer)
	c.pending = make(map[string]watcher.FileEvent)
}
