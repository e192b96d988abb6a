// Package queue implements the bounded Work Queue between the Debounce
// Coalescer and the Sender Pool. Put blocks under backpressure instead of
// silently dropping events.
package queue

import (
	"context"

	"github.com/0xmhha/filewatchrest/pkg/watcher"
)

// Queue is a bounded FIFO of watcher.FileEvent.
type Queue struct {
	ch chan watcher.FileEvent
}

// New creates a Queue with the given capacity.
func New(capacity int) *Queue {
	if capacity < 1 {
		capacity = 1
	}
	return &Queue{ch: make(chan watcher.FileEvent, capacity)}
}

// Put blocks until the event is enqueued or ctx is cancelled. Returns
// ctx.Err() on cancellation. Put must not be called after Close.
func (q *Queue) Put(ctx context.Context, ev watcher.FileEvent) error {
	select {
	case q.ch <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Get returns the receive-only channel Sender Pool workers read from.
func (q *Queue) Get() <-chan watcher.FileEvent {
	return q.ch
}

// Len reports the number of events currently buffered.
func (q *Queue) Len() int {
	return len(q.ch)
}

// Cap reports the queue's configured capacity.
func (q *Queue) Cap() int {
	return cap(q.ch)
}

// Close closes the underlying channel. Callers must stop calling Put before
// calling Close.
func (q *Queue) Close() {
	close(q.ch)
}
