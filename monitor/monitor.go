// Package monitor provides the run watchdog. It periodically inspects
// the shared verdict and raises alerts on the event bus, so a long
// soak run surfaces problems while it is still running instead of at
// the final report.
package monitor

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	skew "skew"
	"skew/event"
	"skew/metrics"
)

// Run is the view of a harness run the monitor needs.
type Run interface {
	RunID() string
	Verdict() *skew.Verdict
	Clients() []*skew.VirtualClient
}

// Config holds the configuration for the monitor.
type Config struct {
	// Interval is the interval between scans.
	Interval time.Duration
	// AmbiguousTolerance is the ambiguous fraction above which a
	// warning is raised.
	AmbiguousTolerance float64
}

// DefaultConfig returns the default configuration for the monitor.
func DefaultConfig() Config {
	return Config{
		Interval:           5 * time.Second,
		AmbiguousTolerance: 0.05,
	}
}

// Logger defines the logging interface.
type Logger interface {
	Printf(format string, v ...any)
}

type defaultLogger struct{}

func (l *defaultLogger) Printf(format string, v ...any) {
	log.Printf("[Monitor] "+format, v...)
}

// Monitor is the run watchdog. It scans the verdict on a ticker and
// publishes alert events for violations, ambiguous drift and a fully
// disabled client pool.
type Monitor struct {
	run     Run
	events  event.EventBus
	metrics metrics.Metrics
	config  Config
	logger  Logger

	// State
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex

	// Scan state
	lastTotal          int64
	violationAlerted   bool
	ambiguousAlerted   bool
	allDisabledAlerted bool

	// Metrics
	scanCount  int64
	alertCount int64
	metricsMu  sync.RWMutex
}

// Option is a function that configures the Monitor.
type Option func(*Monitor)

// WithEventBus sets the event bus for the monitor.
func WithEventBus(e event.EventBus) Option {
	return func(m *Monitor) {
		m.events = e
	}
}

// WithMetrics sets the metrics sink for the monitor.
func WithMetrics(mx metrics.Metrics) Option {
	return func(m *Monitor) {
		m.metrics = mx
	}
}

// WithConfig sets the configuration for the monitor.
func WithConfig(cfg Config) Option {
	return func(m *Monitor) {
		m.config = cfg
	}
}

// WithLogger sets the logger for the monitor.
func WithLogger(l Logger) Option {
	return func(m *Monitor) {
		m.logger = l
	}
}

// NewMonitor creates a new monitor over the given run.
func NewMonitor(run Run, opts ...Option) *Monitor {
	m := &Monitor{
		run:     run,
		metrics: &metrics.NoopMetrics{},
		config:  DefaultConfig(),
		logger:  &defaultLogger{},
		stopCh:  make(chan struct{}),
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Start starts the monitor. It runs in the background and scans on
// the configured interval.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return fmt.Errorf("monitor already running")
	}
	m.running = true
	m.stopCh = make(chan struct{})
	m.mu.Unlock()

	m.wg.Add(1)
	go m.loop(ctx)

	m.logger.Printf("started with interval=%v, ambiguousTolerance=%.2f", m.config.Interval, m.config.AmbiguousTolerance)
	return nil
}

// Stop stops the monitor gracefully.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	close(m.stopCh)
	m.mu.Unlock()

	m.wg.Wait()
	m.logger.Printf("stopped")
}

// IsRunning returns true if the monitor is running.
func (m *Monitor) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *Monitor) loop(ctx context.Context) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.config.Interval)
	defer ticker.Stop()

	m.scan(ctx)

	for {
		select {
		case <-ticker.C:
			m.scan(ctx)
		case <-m.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// scan performs a single watchdog pass.
func (m *Monitor) scan(ctx context.Context) {
	snapshot := m.run.Verdict().Snapshot()

	m.mu.Lock()
	delta := snapshot.TotalProbes - m.lastTotal
	m.lastTotal = snapshot.TotalProbes
	m.mu.Unlock()

	m.metrics.MonitorScanned(int(delta))
	m.incrementScans()

	m.checkViolations(ctx, snapshot)
	m.checkAmbiguous(ctx, snapshot)
	m.checkDisabled(ctx)
}

// checkViolations raises a critical alert on the first violation.
func (m *Monitor) checkViolations(ctx context.Context, s skew.VerdictSnapshot) {
	m.mu.Lock()
	alreadyAlerted := m.violationAlerted
	if s.ViolatedCount > 0 {
		m.violationAlerted = true
	}
	m.mu.Unlock()

	if s.ViolatedCount == 0 || alreadyAlerted {
		return
	}

	m.logger.Printf("CRITICAL: %d deletion(s) succeeded despite linked accounts", s.ViolatedCount)
	m.alert(ctx, event.NewEvent(event.EventAlertCritical).
		WithRunID(m.run.RunID()).
		WithData("message", "member deletion succeeded despite linked account").
		WithData("violated_count", s.ViolatedCount))
	m.metrics.MonitorAlert("critical")
}

// checkAmbiguous raises a warning when the ambiguous fraction exceeds
// the tolerance. The alert re-arms if the fraction recovers, so a
// persistent environment problem keeps showing up.
func (m *Monitor) checkAmbiguous(ctx context.Context, s skew.VerdictSnapshot) {
	if s.TotalProbes == 0 {
		return
	}
	fraction := float64(s.AmbiguousCount) / float64(s.TotalProbes)
	breached := fraction > m.config.AmbiguousTolerance

	m.mu.Lock()
	alreadyAlerted := m.ambiguousAlerted
	m.ambiguousAlerted = breached
	m.mu.Unlock()

	if !breached || alreadyAlerted {
		return
	}

	m.logger.Printf("WARNING: ambiguous fraction %.2f exceeds tolerance %.2f (%d/%d probes)",
		fraction, m.config.AmbiguousTolerance, s.AmbiguousCount, s.TotalProbes)
	m.alert(ctx, event.NewEvent(event.EventAlertWarning).
		WithRunID(m.run.RunID()).
		WithData("message", "ambiguous outcome fraction exceeds tolerance").
		WithData("ambiguous_fraction", fraction).
		WithData("tolerance", m.config.AmbiguousTolerance))
	m.metrics.MonitorAlert("warning")
}

// checkDisabled raises a critical alert once when every client in the
// run is disabled: the run is still ticking but measures nothing.
func (m *Monitor) checkDisabled(ctx context.Context) {
	clients := m.run.Clients()
	if len(clients) == 0 {
		return
	}
	for _, c := range clients {
		if c.Eligible() {
			return
		}
	}

	m.mu.Lock()
	alreadyAlerted := m.allDisabledAlerted
	m.allDisabledAlerted = true
	m.mu.Unlock()

	if alreadyAlerted {
		return
	}

	m.logger.Printf("CRITICAL: all %d clients are disabled, run produces no probes", len(clients))
	m.alert(ctx, event.NewEvent(event.EventAlertCritical).
		WithRunID(m.run.RunID()).
		WithData("message", "all clients disabled").
		WithData("clients", len(clients)))
	m.metrics.MonitorAlert("critical")
}

func (m *Monitor) alert(ctx context.Context, e event.Event) {
	m.incrementAlerts()
	if m.events != nil {
		m.events.Publish(ctx, e)
	}
}

func (m *Monitor) incrementScans() {
	m.metricsMu.Lock()
	defer m.metricsMu.Unlock()
	m.scanCount++
}

func (m *Monitor) incrementAlerts() {
	m.metricsMu.Lock()
	defer m.metricsMu.Unlock()
	m.alertCount++
}

// Stats holds the current statistics of the monitor.
type Stats struct {
	ScanCount  int64
	AlertCount int64
	IsRunning  bool
}

// Stats returns the current statistics of the monitor.
func (m *Monitor) Stats() Stats {
	m.metricsMu.RLock()
	defer m.metricsMu.RUnlock()
	return Stats{
		ScanCount:  m.scanCount,
		AlertCount: m.alertCount,
		IsRunning:  m.IsRunning(),
	}
}

// ScanOnce performs a single scan synchronously.
// This is useful for testing.
func (m *Monitor) ScanOnce(ctx context.Context) {
	m.scan(ctx)
}
