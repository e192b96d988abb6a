// Package diagnostics implements the Diagnostics Store: an in-memory,
// mutex-guarded ring buffer of recent send outcomes plus the latest watcher
// and circuit-breaker snapshots, read by the Diagnostics HTTP Endpoint.
package diagnostics

import (
	"sync"
	"time"

	"github.com/0xmhha/filewatchrest/pkg/circuitbreaker"
	"github.com/0xmhha/filewatchrest/pkg/watcher"
)

// Capacity is the maximum number of events retained in the ring buffer.
const Capacity = 500

// EventRecord is one entry in the diagnostics ring buffer.
type EventRecord struct {
	Path          string    `json:"path"`
	Timestamp     time.Time `json:"timestamp"`
	PostedSuccess bool      `json:"posted_success"`
	StatusCode    int       `json:"status_code,omitempty"`
	Error         string    `json:"error,omitempty"`
}

// Store is the shared, thread-safe diagnostics state.
type Store struct {
	mu sync.RWMutex

	events      []EventRecord
	next        int
	count       int
	totalEvents uint64

	watchers []watcher.WatcherHandle
	circuits []circuitbreaker.Snapshot
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{events: make([]EventRecord, Capacity)}
}

// RecordEvent appends rec to the ring buffer, evicting the oldest entry
// once Capacity is reached.
func (s *Store) RecordEvent(rec EventRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events[s.next] = rec
	s.next = (s.next + 1) % Capacity
	if s.count < Capacity {
		s.count++
	}
	s.totalEvents++
}

// SetWatchers replaces the watcher snapshot set, called on every periodic
// poll of the Supervisor's handles.
func (s *Store) SetWatchers(handles []watcher.WatcherHandle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.watchers = handles
}

// SetCircuits replaces the circuit-breaker snapshot set.
func (s *Store) SetCircuits(snapshots []circuitbreaker.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.circuits = snapshots
}

// Events returns up to limit of the most recent events, newest first. A
// non-positive limit returns the full buffer (up to Capacity).
func (s *Store) Events(limit int) []EventRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.eventsLocked(limit)
}

// eventsLocked is Events' body, callable while s.mu is already held.
func (s *Store) eventsLocked(limit int) []EventRecord {
	if limit <= 0 || limit > s.count {
		limit = s.count
	}

	out := make([]EventRecord, 0, limit)
	// s.next points at the slot the *next* write will use, i.e. one past
	// the most recently written entry (mod Capacity).
	idx := (s.next - 1 + Capacity) % Capacity
	for i := 0; i < limit; i++ {
		out = append(out, s.events[idx])
		idx = (idx - 1 + Capacity) % Capacity
	}
	return out
}

// Watchers returns the latest watcher snapshot set.
func (s *Store) Watchers() []watcher.WatcherHandle {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]watcher.WatcherHandle, len(s.watchers))
	copy(out, s.watchers)
	return out
}

// Circuits returns the latest circuit-breaker snapshot set.
func (s *Store) Circuits() []circuitbreaker.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]circuitbreaker.Snapshot, len(s.circuits))
	copy(out, s.circuits)
	return out
}

// Status is the aggregate view served by GET / and GET /status.
type Status struct {
	ActiveWatchers  int                       `json:"active_watchers"`
	RestartAttempts int                       `json:"restart_attempts"`
	RecentEvents    []EventRecord             `json:"recent_events"`
	Timestamp       time.Time                 `json:"timestamp"`
	EventCount      int                       `json:"event_count"`
	CircuitStates   []circuitbreaker.Snapshot `json:"circuit_states"`
	TotalEvents     uint64                    `json:"total_events"`
}

// Status builds the aggregate diagnostics snapshot.
func (s *Store) Status(now time.Time) Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	active := 0
	restarts := 0
	for _, h := range s.watchers {
		if h.State == watcher.StateRunning {
			active++
		}
		restarts += h.RestartCount
	}

	recent := s.eventsLocked(Capacity)

	return Status{
		ActiveWatchers:  active,
		RestartAttempts: restarts,
		RecentEvents:    recent,
		Timestamp:       now,
		EventCount:      len(recent),
		CircuitStates:   s.circuits,
		TotalEvents:     s.totalEvents,
	}
}
