package circuitbreaker

import "errors"

// ErrCircuitOpen is returned by the sender when Allow reports false for an
// endpoint.
var ErrCircuitOpen = errors.New("circuit breaker open for endpoint")
