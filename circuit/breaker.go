// Package circuit provides the circuit breaker guarding the harness
// setup calls. Every virtual client attempts its account-service call
// exactly once; with a downed service the breaker turns the tail of
// those attempts into fast failures instead of a timeout per client.
package circuit

import (
	"context"
	"time"
)

// State is the breaker state.
type State int

const (
	// StateClosed passes setup calls through.
	StateClosed State = iota
	// StateOpen rejects setup calls without touching the service.
	StateOpen
	// StateHalfOpen lets a bounded number of calls probe for recovery.
	StateHalfOpen
)

// String returns the string representation of the state
func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

// BreakerConfig tunes when the breaker gives up on a service.
type BreakerConfig struct {
	// Threshold is the number of consecutive failed setup calls that
	// opens the circuit.
	Threshold int
	// Timeout is how long an open circuit rejects calls before probing
	// the service again.
	Timeout time.Duration
	// HalfOpenMaxReqs bounds the probing calls while half-open.
	HalfOpenMaxReqs int
}

// DefaultBreakerConfig returns the default breaker configuration. The
// threshold is below the default client count so a dead account
// service trips before every client has burned its one setup attempt.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		Threshold:       5,
		Timeout:         30 * time.Second,
		HalfOpenMaxReqs: 3,
	}
}

// BreakerCounts is the call statistics of one breaker.
type BreakerCounts struct {
	// Requests is the number of calls the breaker let through.
	Requests int64
	// TotalSuccesses is the number of calls that returned nil.
	TotalSuccesses int64
	// TotalFailures is the number of calls that returned an error.
	TotalFailures int64
	// ConsecutiveSuccesses is the current success streak.
	ConsecutiveSuccesses int64
	// ConsecutiveFailures is the current failure streak.
	ConsecutiveFailures int64
}

// Breaker hands out one CircuitBreaker per target service, shared by
// every client linking against that service.
type Breaker interface {
	// Get returns the circuit breaker for the named service, creating
	// it on first use.
	Get(service string) CircuitBreaker
}

// CircuitBreaker guards the calls against one service.
type CircuitBreaker interface {
	// Execute runs fn under the breaker. When the circuit is open the
	// call fails immediately with ErrCircuitOpen and fn never runs.
	Execute(ctx context.Context, fn func() error) error
	// State returns the current breaker state.
	State() State
	// Reset forces the breaker back to closed and clears its counts.
	Reset()
	// Counts returns the call statistics.
	Counts() BreakerCounts
}
