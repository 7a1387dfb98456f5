// Package prometheus provides a Prometheus implementation of the metrics interface.
package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"skew/circuit"
	"skew/metrics"
)

// PrometheusMetrics implements the Metrics interface using Prometheus.
type PrometheusMetrics struct {
	// Probe metrics
	probesTotal   *prometheus.CounterVec
	probeDuration *prometheus.HistogramVec

	// Client metrics
	clientsReadyTotal    prometheus.Counter
	clientsDisabledTotal *prometheus.CounterVec
	linkageDuration      prometheus.Histogram
	linkageFailedTotal   *prometheus.CounterVec

	// Circuit breaker metrics
	circuitState *prometheus.GaugeVec

	// Monitor metrics
	monitorScannedTotal prometheus.Counter
	monitorAlertsTotal  *prometheus.CounterVec

	// Lock metrics
	lockAcquiredTotal     prometheus.Counter
	lockFailedTotal       *prometheus.CounterVec
	lockExtendedTotal     prometheus.Counter
	lockExtendFailedTotal prometheus.Counter
	lockAcquireDuration   prometheus.Histogram
}

var _ metrics.Metrics = (*PrometheusMetrics)(nil)

// Config holds configuration for PrometheusMetrics.
type Config struct {
	// Namespace is the prefix for all metrics (e.g., "skew")
	Namespace string
	// Subsystem is an optional subsystem name
	Subsystem string
	// Registry is the Prometheus registry to use. If nil, the default registry is used.
	Registry prometheus.Registerer
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Namespace: "skew",
		Subsystem: "",
		Registry:  prometheus.DefaultRegisterer,
	}
}

// New creates a new PrometheusMetrics instance with the given configuration.
func New(cfg Config) *PrometheusMetrics {
	if cfg.Registry == nil {
		cfg.Registry = prometheus.DefaultRegisterer
	}

	factory := promauto.With(cfg.Registry)

	return &PrometheusMetrics{
		// Probe metrics
		probesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "probes_total",
			Help:      "Total number of delete probes by outcome",
		}, []string{"outcome"}),

		probeDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "probe_duration_seconds",
			Help:      "Delete probe round-trip duration in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 15), // 1ms to ~16s
		}, []string{"outcome"}),

		// Client metrics
		clientsReadyTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "clients_ready_total",
			Help:      "Total number of virtual clients that completed linkage",
		}),

		clientsDisabledTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "clients_disabled_total",
			Help:      "Total number of virtual clients disabled during setup",
		}, []string{"reason"}),

		linkageDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "linkage_duration_seconds",
			Help:      "Member plus account linkage duration in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 15), // 1ms to ~16s
		}),

		linkageFailedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "linkage_failed_total",
			Help:      "Total number of linkage failures by stage",
		}, []string{"stage"}),

		// Circuit breaker metrics
		circuitState: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "circuit_breaker_state",
			Help:      "Current state of circuit breaker (0=closed, 1=open, 2=half-open)",
		}, []string{"service"}),

		// Monitor metrics
		monitorScannedTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "monitor_scanned_total",
			Help:      "Total number of probes observed by the run monitor",
		}),

		monitorAlertsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "monitor_alerts_total",
			Help:      "Total number of alerts raised by the run monitor",
		}, []string{"severity"}),

		// Lock metrics
		lockAcquiredTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "lock_acquired_total",
			Help:      "Total number of locks acquired",
		}),

		lockFailedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "lock_failed_total",
			Help:      "Total number of lock acquisition failures",
		}, []string{"reason"}),

		lockExtendedTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "lock_extended_total",
			Help:      "Total number of lock extensions",
		}),

		lockExtendFailedTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "lock_extend_failed_total",
			Help:      "Total number of lock extension failures",
		}),

		lockAcquireDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "lock_acquire_duration_seconds",
			Help:      "Time taken to acquire locks in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~2s
		}),
	}
}

// Probe metrics

func (p *PrometheusMetrics) ProbeClassified(outcome string) {
	p.probesTotal.WithLabelValues(outcome).Inc()
}

func (p *PrometheusMetrics) ProbeDuration(outcome string, duration time.Duration) {
	p.probeDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

// Client metrics

func (p *PrometheusMetrics) ClientReady() {
	p.clientsReadyTotal.Inc()
}

func (p *PrometheusMetrics) ClientDisabled(reason string) {
	p.clientsDisabledTotal.WithLabelValues(reason).Inc()
}

func (p *PrometheusMetrics) LinkageCompleted(duration time.Duration) {
	p.linkageDuration.Observe(duration.Seconds())
}

func (p *PrometheusMetrics) LinkageFailed(stage string) {
	p.linkageFailedTotal.WithLabelValues(stage).Inc()
}

// Circuit breaker metrics

func (p *PrometheusMetrics) CircuitStateChanged(service string, state circuit.State) {
	p.circuitState.WithLabelValues(service).Set(float64(state))
}

// Monitor metrics

func (p *PrometheusMetrics) MonitorScanned(probes int) {
	p.monitorScannedTotal.Add(float64(probes))
}

func (p *PrometheusMetrics) MonitorAlert(severity string) {
	p.monitorAlertsTotal.WithLabelValues(severity).Inc()
}

// Lock metrics

func (p *PrometheusMetrics) LockAcquired(duration time.Duration) {
	p.lockAcquiredTotal.Inc()
	p.lockAcquireDuration.Observe(duration.Seconds())
}

func (p *PrometheusMetrics) LockFailed(reason string) {
	p.lockFailedTotal.WithLabelValues(reason).Inc()
}

func (p *PrometheusMetrics) LockExtended() {
	p.lockExtendedTotal.Inc()
}

func (p *PrometheusMetrics) LockExtendFailed() {
	p.lockExtendFailedTotal.Inc()
}
