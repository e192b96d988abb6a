// Package clock provides an injectable time and jitter source.
//
// Every pipeline component that schedules a timer or computes a backoff
// delay takes a Clock so that tests can advance time deterministically
// instead of sleeping in wall time.
package clock

import (
	"math/rand"
	"sync"
	"time"
)

// Clock is the time source used throughout the pipeline.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// After returns a channel that fires once d has elapsed.
	After(d time.Duration) <-chan time.Time

	// NewTimer returns a Timer that fires once d has elapsed.
	NewTimer(d time.Duration) Timer

	// Jitter returns a pseudo-random duration in [0, max).
	// Returns 0 if max <= 0.
	Jitter(max time.Duration) time.Duration
}

// Timer abstracts time.Timer so fakes can control firing without real sleeps.
type Timer interface {
	C() <-chan time.Time
	Stop() bool
	Reset(d time.Duration) bool
}

// realClock implements Clock using the standard library.
type realClock struct {
	mu   sync.Mutex
	rand *rand.Rand
}

// New returns a Clock backed by the real wall clock and a seeded PRNG.
func New() Clock {
	return &realClock{rand: rand.New(rand.NewSource(time.Now().UnixNano()))} // nolint:gosec
}

func (c *realClock) Now() time.Time { return time.Now() }

func (c *realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

func (c *realClock) NewTimer(d time.Duration) Timer {
	return &realTimer{t: time.NewTimer(d)}
}

func (c *realClock) Jitter(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return time.Duration(c.rand.Int63n(int64(max)))
}

type realTimer struct {
	t *time.Timer
}

func (r *realTimer) C() <-chan time.Time        { return r.t.C }
func (r *realTimer) Stop() bool                 { return r.t.Stop() }
func (r *realTimer) Reset(d time.Duration) bool { return r.t.Reset(d) }
