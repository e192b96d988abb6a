// Package circuitbreaker implements the per-endpoint Circuit Breaker
// Registry guarding the HTTP Resilience Sender from hammering a failing
// remote endpoint. A circuit opens after a configurable run of consecutive
// failures. Once its cooldown window elapses it lets requests through again
// as an implicit half-open trial with no separate state value: the next
// recorded failure reopens it and the next recorded success closes it.
package circuitbreaker

import (
	"sync"
	"time"

	"github.com/0xmhha/filewatchrest/pkg/clock"
)

// State is the externally observable circuit state for diagnostics. There
// is no distinct stored "half-open" state: requests let through after
// openUntil elapses are implicitly a half-open trial, and the next recorded
// outcome either closes the circuit (success) or reopens it (failure).
type State string

// Circuit states.
const (
	StateClosed State = "closed"
	StateOpen   State = "open"
)

// Config configures a Registry.
type Config struct {
	// FailureThreshold is the number of consecutive failures before a
	// circuit opens.
	FailureThreshold int

	// OpenDuration is the cooldown window once a circuit opens.
	OpenDuration time.Duration

	// Clock allows deterministic testing. Defaults to clock.New() when nil.
	Clock clock.Clock
}

type circuitState struct {
	failureCount int
	openUntil    time.Time
}

// Registry tracks one circuit per endpoint key (typically the API
// endpoint's host or full URL).
type Registry struct {
	cfg   Config
	clock clock.Clock

	mu       sync.Mutex
	circuits map[string]*circuitState
}

// NewRegistry creates a Registry.
func NewRegistry(cfg Config) *Registry {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.OpenDuration <= 0 {
		cfg.OpenDuration = 30 * time.Second
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	return &Registry{cfg: cfg, clock: cfg.Clock, circuits: make(map[string]*circuitState)}
}

// Allow reports whether a request to endpoint may proceed. It returns true
// for a closed circuit and for every request once the open window has
// elapsed (the implicit half-open trial), until RecordFailure reopens the
// circuit or RecordSuccess closes it.
func (r *Registry) Allow(endpoint string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	cs := r.circuits[endpoint]
	if cs == nil {
		return true
	}
	if cs.failureCount < r.cfg.FailureThreshold {
		return true
	}
	return !r.clock.Now().Before(cs.openUntil)
}

// RecordSuccess closes the circuit for endpoint.
func (r *Registry) RecordSuccess(endpoint string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.circuits, endpoint)
}

// RecordFailure increments endpoint's failure count, opening (or
// re-opening, on a failed half-open trial) the circuit once the threshold
// is reached.
func (r *Registry) RecordFailure(endpoint string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cs := r.circuits[endpoint]
	if cs == nil {
		cs = &circuitState{}
		r.circuits[endpoint] = cs
	}
	cs.failureCount++
	if cs.failureCount >= r.cfg.FailureThreshold {
		cs.openUntil = r.clock.Now().Add(r.cfg.OpenDuration)
	}
}

// State returns endpoint's current externally observable state.
func (r *Registry) State(endpoint string) State {
	r.mu.Lock()
	defer r.mu.Unlock()

	cs := r.circuits[endpoint]
	if cs == nil || cs.failureCount < r.cfg.FailureThreshold {
		return StateClosed
	}
	if r.clock.Now().Before(cs.openUntil) {
		return StateOpen
	}
	return StateClosed
}

// Snapshot is a read-only view of one endpoint's circuit, for diagnostics.
type Snapshot struct {
	Endpoint     string
	State        State
	FailureCount int
	OpenUntil    time.Time
}

// Snapshots returns a snapshot of every tracked endpoint's circuit.
func (r *Registry) Snapshots() []Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Snapshot, 0, len(r.circuits))
	for endpoint, cs := range r.circuits {
		state := StateClosed
		if cs.failureCount >= r.cfg.FailureThreshold && r.clock.Now().Before(cs.openUntil) {
			state = StateOpen
		}
		out = append(out, Snapshot{
			Endpoint:     endpoint,
			State:        state,
			FailureCount: cs.failureCount,
			OpenUntil:    cs.openUntil,
		})
	}
	return out
}
