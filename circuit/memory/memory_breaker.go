// Package memory provides an in-memory circuit breaker used to guard
// the harness setup calls against a downed service.
package memory

import (
	"context"
	"sync"
	"time"

	"skew/circuit"
	"skew/metrics"

	skew "skew"
)

// MemoryBreaker is an in-memory implementation of the Breaker interface
type MemoryBreaker struct {
	mu       sync.RWMutex
	breakers map[string]*memoryCircuitBreaker
	config   circuit.BreakerConfig
	metrics  metrics.Metrics
}

var _ circuit.Breaker = (*MemoryBreaker)(nil)

// Option configures a MemoryBreaker.
type Option func(*MemoryBreaker)

// WithConfig sets the breaker configuration applied to every service.
func WithConfig(config circuit.BreakerConfig) Option {
	return func(m *MemoryBreaker) {
		m.config = config
	}
}

// WithMetrics sets the metrics sink notified on state transitions.
func WithMetrics(mx metrics.Metrics) Option {
	return func(m *MemoryBreaker) {
		m.metrics = mx
	}
}

// NewMemoryBreaker creates a new MemoryBreaker.
func NewMemoryBreaker(opts ...Option) *MemoryBreaker {
	m := &MemoryBreaker{
		breakers: make(map[string]*memoryCircuitBreaker),
		config:   circuit.DefaultBreakerConfig(),
		metrics:  &metrics.NoopMetrics{},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Get returns the circuit breaker for the named service, creating it
// on first use.
func (m *MemoryBreaker) Get(service string) circuit.CircuitBreaker {
	m.mu.Lock()
	defer m.mu.Unlock()

	if cb, exists := m.breakers[service]; exists {
		return cb
	}

	cb := &memoryCircuitBreaker{
		service: service,
		config:  m.config,
		state:   circuit.StateClosed,
		metrics: m.metrics,
	}
	m.breakers[service] = cb
	return cb
}

// memoryCircuitBreaker is an in-memory implementation of CircuitBreaker
type memoryCircuitBreaker struct {
	mu      sync.RWMutex
	service string
	config  circuit.BreakerConfig
	state   circuit.State
	counts  circuit.BreakerCounts
	metrics metrics.Metrics

	// openedAt is the time when the circuit was opened
	openedAt time.Time
	// halfOpenRequests tracks the number of requests in half-open state
	halfOpenRequests int
}

var _ circuit.CircuitBreaker = (*memoryCircuitBreaker)(nil)

// Execute executes the given function with circuit breaker protection
func (cb *memoryCircuitBreaker) Execute(ctx context.Context, fn func() error) error {
	if err := cb.allow(); err != nil {
		return err
	}

	err := fn()

	cb.record(err == nil)

	return err
}

// transition changes the state and notifies the metrics sink. Caller
// holds cb.mu.
func (cb *memoryCircuitBreaker) transition(state circuit.State) {
	cb.state = state
	cb.metrics.CircuitStateChanged(cb.service, state)
}

// allow checks if the request can proceed and updates state if needed
func (cb *memoryCircuitBreaker) allow() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case circuit.StateClosed:
		cb.counts.Requests++
		return nil

	case circuit.StateOpen:
		if time.Since(cb.openedAt) >= cb.config.Timeout {
			cb.transition(circuit.StateHalfOpen)
			cb.halfOpenRequests = 1
			cb.counts.Requests++
			return nil
		}
		return skew.ErrCircuitOpen

	case circuit.StateHalfOpen:
		if cb.halfOpenRequests >= cb.config.HalfOpenMaxReqs {
			return skew.ErrCircuitOpen
		}
		cb.counts.Requests++
		cb.halfOpenRequests++
		return nil

	default:
		return skew.ErrCircuitOpen
	}
}

// record records the result of the request and updates state
func (cb *memoryCircuitBreaker) record(success bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if success {
		cb.onSuccess()
	} else {
		cb.onFailure()
	}
}

func (cb *memoryCircuitBreaker) onSuccess() {
	cb.counts.TotalSuccesses++
	cb.counts.ConsecutiveSuccesses++
	cb.counts.ConsecutiveFailures = 0

	if cb.state == circuit.StateHalfOpen &&
		cb.counts.ConsecutiveSuccesses >= int64(cb.config.HalfOpenMaxReqs) {
		cb.transition(circuit.StateClosed)
		cb.halfOpenRequests = 0
	}
}

func (cb *memoryCircuitBreaker) onFailure() {
	cb.counts.TotalFailures++
	cb.counts.ConsecutiveFailures++
	cb.counts.ConsecutiveSuccesses = 0

	switch cb.state {
	case circuit.StateClosed:
		if cb.counts.ConsecutiveFailures >= int64(cb.config.Threshold) {
			cb.transition(circuit.StateOpen)
			cb.openedAt = time.Now()
		}
	case circuit.StateHalfOpen:
		// Any failure in half-open state opens the circuit again
		cb.transition(circuit.StateOpen)
		cb.openedAt = time.Now()
		cb.halfOpenRequests = 0
	}
}

// State returns the current state of the circuit breaker
func (cb *memoryCircuitBreaker) State() circuit.State {
	cb.mu.RLock()
	defer cb.mu.RUnlock()

	// Report HALF_OPEN once the open timeout has elapsed; the actual
	// transition happens on the next request to avoid a write lock here.
	if cb.state == circuit.StateOpen && time.Since(cb.openedAt) >= cb.config.Timeout {
		return circuit.StateHalfOpen
	}

	return cb.state
}

// Reset manually resets the circuit breaker to closed state
func (cb *memoryCircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state != circuit.StateClosed {
		cb.transition(circuit.StateClosed)
	}
	cb.counts = circuit.BreakerCounts{}
	cb.halfOpenRequests = 0
}

// Counts returns the current statistics
func (cb *memoryCircuitBreaker) Counts() circuit.BreakerCounts {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.counts
}
