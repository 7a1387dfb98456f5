// Package metrics provides the metrics interface for the harness.
package metrics

import (
	"time"

	"skew/circuit"
)

// Metrics defines the interface for collecting observability metrics.
// Implementations can use Prometheus, StatsD, or other metrics backends.
type Metrics interface {
	// Probe metrics
	ProbeClassified(outcome string)
	ProbeDuration(outcome string, duration time.Duration)

	// Client metrics
	ClientReady()
	ClientDisabled(reason string)
	LinkageCompleted(duration time.Duration)
	LinkageFailed(stage string)

	// Circuit breaker metrics
	CircuitStateChanged(service string, state circuit.State)

	// Monitor metrics
	MonitorScanned(probes int)
	MonitorAlert(severity string)

	// Lock metrics
	LockAcquired(duration time.Duration)
	LockFailed(reason string)
	LockExtended()
	LockExtendFailed()
}

// NoopMetrics is a no-op implementation of Metrics for testing or when metrics are disabled.
type NoopMetrics struct{}

var _ Metrics = (*NoopMetrics)(nil)

func (n *NoopMetrics) ProbeClassified(outcome string)                           {}
func (n *NoopMetrics) ProbeDuration(outcome string, d time.Duration)            {}
func (n *NoopMetrics) ClientReady()                                             {}
func (n *NoopMetrics) ClientDisabled(reason string)                             {}
func (n *NoopMetrics) LinkageCompleted(d time.Duration)                         {}
func (n *NoopMetrics) LinkageFailed(stage string)                               {}
func (n *NoopMetrics) CircuitStateChanged(service string, state circuit.State)  {}
func (n *NoopMetrics) MonitorScanned(probes int)                                {}
func (n *NoopMetrics) MonitorAlert(severity string)                             {}
func (n *NoopMetrics) LockAcquired(d time.Duration)                             {}
func (n *NoopMetrics) LockFailed(reason string)                                 {}
func (n *NoopMetrics) LockExtended()                                            {}
func (n *NoopMetrics) LockExtendFailed()                                        {}
