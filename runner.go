package skew

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"skew/circuit"
	"skew/event"
	"skew/lock"
	"skew/metrics"
	"skew/service"
	"skew/tracing"
)

// Runner owns one harness run: it sets up the virtual clients
// concurrently, lets the eligible ones probe until stopped, and
// exposes the shared verdict.
type Runner struct {
	config Config

	verdict    *Verdict
	identities *IdentityRegistry

	// Dependencies
	locker  lock.Locker
	breaker circuit.Breaker
	bus     event.EventBus
	metrics metrics.Metrics
	tracer  tracing.Tracer
	logger  Logger

	runID   string
	clients []*VirtualClient

	mu      sync.Mutex
	started bool
	stop    context.CancelFunc
	done    chan struct{}
	handle  lock.LockHandle
}

// RunnerOption is a function that configures the Runner.
type RunnerOption func(*Runner)

// WithRunnerConfig sets the configuration for the runner.
func WithRunnerConfig(cfg Config) RunnerOption {
	return func(r *Runner) {
		r.config = cfg
	}
}

// WithRunnerLocker sets the environment locker. A nil locker means
// runs do not exclude each other.
func WithRunnerLocker(l lock.Locker) RunnerOption {
	return func(r *Runner) {
		r.locker = l
	}
}

// WithRunnerBreaker sets the circuit breaker manager guarding setup
// calls to the account service.
func WithRunnerBreaker(b circuit.Breaker) RunnerOption {
	return func(r *Runner) {
		r.breaker = b
	}
}

// WithRunnerEventBus sets the event bus for the runner.
func WithRunnerEventBus(bus event.EventBus) RunnerOption {
	return func(r *Runner) {
		r.bus = bus
	}
}

// WithRunnerMetrics sets the metrics sink for the runner.
func WithRunnerMetrics(m metrics.Metrics) RunnerOption {
	return func(r *Runner) {
		r.metrics = m
	}
}

// WithRunnerTracer sets the tracer for the runner.
func WithRunnerTracer(t tracing.Tracer) RunnerOption {
	return func(r *Runner) {
		r.tracer = t
	}
}

// WithRunnerLogger sets the logger for the runner.
func WithRunnerLogger(l Logger) RunnerOption {
	return func(r *Runner) {
		r.logger = l
	}
}

// NewRunner creates a new Runner with the given options.
func NewRunner(opts ...RunnerOption) *Runner {
	r := &Runner{
		config:     DefaultConfig(),
		verdict:    NewVerdict(),
		identities: NewIdentityRegistry(),
		bus:        event.NewNoOpEventBus(),
		metrics:    &metrics.NoopMetrics{},
		tracer:     &tracing.NoopTracer{},
		logger:     &defaultLogger{},
		runID:      uuid.NewString(),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// RunID returns the unique ID of this run.
func (r *Runner) RunID() string {
	return r.runID
}

// Verdict returns the shared verdict of this run.
func (r *Runner) Verdict() *Verdict {
	return r.verdict
}

// Clients returns the virtual clients of this run. Empty until Start.
func (r *Runner) Clients() []*VirtualClient {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.clients
}

// Start sets up the clients and launches the probe loops. It returns
// once setup is complete and probing has begun; outcomes accumulate in
// the verdict until Stop or ctx cancellation.
func (r *Runner) Start(ctx context.Context) error {
	if r.config.Clients <= 0 {
		return ErrNoClients
	}
	if err := r.config.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	if r.started {
		r.mu.Unlock()
		return ErrRunAlreadyStarted
	}
	r.started = true
	r.mu.Unlock()

	if err := r.acquireRunLock(ctx); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})

	r.mu.Lock()
	r.stop = cancel
	r.done = done
	r.clients = r.buildClients()
	clients := r.clients
	r.mu.Unlock()

	r.bus.Publish(ctx, event.NewEvent(event.EventRunStarted).
		WithRunID(r.runID).
		WithData("clients", len(clients)))
	r.logger.Printf("[Runner %s] starting %d clients against %s / %s",
		r.runID, len(clients), r.config.MemberServiceURL, r.config.AccountServiceURL)

	// Set up all clients concurrently; a failed setup disables that
	// client only.
	var setupWG sync.WaitGroup
	for _, c := range clients {
		setupWG.Add(1)
		go func(c *VirtualClient) {
			defer setupWG.Done()
			c.Setup(ctx)
		}(c)
	}
	setupWG.Wait()

	eligible := 0
	for _, c := range clients {
		if c.Eligible() {
			eligible++
		}
	}
	r.logger.Printf("[Runner %s] setup complete: %d/%d clients eligible", r.runID, eligible, len(clients))

	var probeWG sync.WaitGroup
	for _, c := range clients {
		probeWG.Add(1)
		go func(c *VirtualClient) {
			defer probeWG.Done()
			c.Run(runCtx)
		}(c)
	}

	go r.extendRunLock(runCtx)

	go func() {
		probeWG.Wait()
		close(done)
	}()

	return nil
}

// Stop cancels the probe loops and waits for in-flight probes to
// finish recording, then releases the run lock. Probes already on the
// wire complete; no new probes start.
func (r *Runner) Stop(ctx context.Context) VerdictSnapshot {
	r.mu.Lock()
	stop := r.stop
	done := r.done
	handle := r.handle
	r.handle = nil
	r.mu.Unlock()

	if stop != nil {
		stop()
	}
	if done != nil {
		select {
		case <-done:
		case <-ctx.Done():
		}
	}

	if handle != nil {
		if err := handle.Release(ctx); err != nil {
			r.logger.Printf("[Runner %s] run lock release failed: %v", r.runID, err)
		}
	}

	snapshot := r.verdict.Snapshot()
	r.bus.Publish(ctx, event.NewEvent(event.EventRunStopped).
		WithRunID(r.runID).
		WithData("totalProbes", snapshot.TotalProbes).
		WithData("violated", snapshot.ViolatedCount))
	r.logger.Printf("[Runner %s] stopped: %d probes, %d blocked, %d violated, %d ambiguous",
		r.runID, snapshot.TotalProbes, snapshot.BlockedCount, snapshot.ViolatedCount, snapshot.AmbiguousCount)

	return snapshot
}

// Wait blocks until all probe loops have exited.
func (r *Runner) Wait() {
	r.mu.Lock()
	done := r.done
	r.mu.Unlock()
	if done != nil {
		<-done
	}
}

// Clean reports whether the run finished without a violation and with
// an ambiguous fraction inside the configured tolerance.
func (r *Runner) Clean() bool {
	return r.verdict.Clean(r.config.AmbiguousTolerance)
}

// buildClients constructs the configured number of virtual clients
// sharing one member client, one account client and one breaker.
func (r *Runner) buildClients() []*VirtualClient {
	members := service.NewMemberClient(r.config.MemberServiceURL)
	accounts := service.NewAccountClient(r.config.AccountServiceURL)

	linkageOpts := []LinkageOption{
		WithLinkageTimeout(r.config.SetupTimeout),
		WithLinkageBalance(r.config.InitialBalance),
	}
	if r.breaker != nil {
		linkageOpts = append(linkageOpts, WithLinkageBreaker(r.breaker.Get("account-service")))
	}
	linkage := NewLinkageStep(members, accounts, r.identities, linkageOpts...)

	clients := make([]*VirtualClient, 0, r.config.Clients)
	for i := 0; i < r.config.Clients; i++ {
		id := fmt.Sprintf("client-%03d", i)
		clients = append(clients, NewVirtualClient(id, linkage, members, r.verdict,
			WithClientRunID(r.runID),
			WithClientEventBus(r.bus),
			WithClientMetrics(r.metrics),
			WithClientTracer(r.tracer),
			WithClientLogger(r.logger),
			WithClientThinkTime(r.config.MinThinkTime, r.config.MaxThinkTime),
		))
	}
	return clients
}

// acquireRunLock takes the environment lock when a locker is
// configured. Without a locker, runs do not exclude each other.
func (r *Runner) acquireRunLock(ctx context.Context) error {
	if r.locker == nil {
		return nil
	}

	start := time.Now()
	handle, err := r.locker.Acquire(ctx, r.lockKey(), r.config.RunLockTTL)
	if err != nil {
		r.metrics.LockFailed("held")
		return fmt.Errorf("%w: %v", ErrRunLockHeld, err)
	}
	r.metrics.LockAcquired(time.Since(start))

	r.mu.Lock()
	r.handle = handle
	r.mu.Unlock()
	return nil
}

// extendRunLock keeps the environment lock alive while probing runs.
func (r *Runner) extendRunLock(ctx context.Context) {
	r.mu.Lock()
	handle := r.handle
	r.mu.Unlock()
	if handle == nil {
		return
	}

	ticker := time.NewTicker(r.config.RunLockExtendPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := handle.Extend(ctx, r.config.RunLockTTL); err != nil {
				r.metrics.LockExtendFailed()
				r.logger.Printf("[Runner %s] run lock extension failed: %v", r.runID, err)
			} else {
				r.metrics.LockExtended()
			}
		}
	}
}

// lockKey derives the environment lock key from the target services.
func (r *Runner) lockKey() string {
	return fmt.Sprintf("env:%s|%s", r.config.MemberServiceURL, r.config.AccountServiceURL)
}
