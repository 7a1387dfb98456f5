package skew

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"skew/event"
	"skew/metrics"
	"skew/service"
	"skew/tracing"
)

// VirtualClient is one concurrent actor in a harness run. It sets up
// its own member/account pair once, then probes member deletion until
// the run stops. A client whose setup fails is disabled: it stays in
// the run but its probe loop does nothing, so it can never skew the
// verdict with outcomes for state it does not own.
type VirtualClient struct {
	id    string
	runID string

	linkage *LinkageStep
	members *service.MemberClient

	verdict *Verdict
	bus     event.EventBus
	metrics metrics.Metrics
	tracer  tracing.Tracer
	logger  Logger

	minThink time.Duration
	maxThink time.Duration

	// Written once by Setup, read by the probe loop.
	mu       sync.RWMutex
	eligible bool
	memberID string
	result   LinkageResult
}

// ClientOption configures a VirtualClient.
type ClientOption func(*VirtualClient)

// WithClientEventBus sets the event bus for the client.
func WithClientEventBus(bus event.EventBus) ClientOption {
	return func(c *VirtualClient) {
		c.bus = bus
	}
}

// WithClientMetrics sets the metrics sink for the client.
func WithClientMetrics(m metrics.Metrics) ClientOption {
	return func(c *VirtualClient) {
		c.metrics = m
	}
}

// WithClientTracer sets the tracer for the client.
func WithClientTracer(t tracing.Tracer) ClientOption {
	return func(c *VirtualClient) {
		c.tracer = t
	}
}

// WithClientLogger sets the logger for the client.
func WithClientLogger(l Logger) ClientOption {
	return func(c *VirtualClient) {
		c.logger = l
	}
}

// WithClientThinkTime sets the think-time range between probes.
func WithClientThinkTime(min, max time.Duration) ClientOption {
	return func(c *VirtualClient) {
		c.minThink = min
		c.maxThink = max
	}
}

// WithClientRunID tags the client's events with the run ID.
func WithClientRunID(runID string) ClientOption {
	return func(c *VirtualClient) {
		c.runID = runID
	}
}

// NewVirtualClient creates a virtual client recording into verdict.
func NewVirtualClient(id string, linkage *LinkageStep, members *service.MemberClient, verdict *Verdict, opts ...ClientOption) *VirtualClient {
	c := &VirtualClient{
		id:       id,
		linkage:  linkage,
		members:  members,
		verdict:  verdict,
		bus:      event.NewNoOpEventBus(),
		metrics:  &metrics.NoopMetrics{},
		tracer:   &tracing.NoopTracer{},
		logger:   &defaultLogger{},
		minThink: 500 * time.Millisecond,
		maxThink: 1 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ID returns the client ID.
func (c *VirtualClient) ID() string {
	return c.id
}

// Eligible reports whether setup completed and the client probes.
func (c *VirtualClient) Eligible() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.eligible
}

// MemberID returns the member this client owns, empty until setup
// succeeds.
func (c *VirtualClient) MemberID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.memberID
}

// Setup runs the linkage step once. On failure the client is left
// disabled and the error is returned; the run continues without it.
func (c *VirtualClient) Setup(ctx context.Context) error {
	ctx, span := c.tracer.StartSetup(ctx, c.runID, c.id)
	defer span.End()

	start := time.Now()
	result, err := c.linkage.Link(ctx)

	c.mu.Lock()
	c.result = result
	c.memberID = result.MemberID
	c.eligible = err == nil
	c.mu.Unlock()

	if err != nil {
		span.SetError(err)
		stage := "member"
		if result.MemberCreated {
			stage = "account"
		}
		c.metrics.LinkageFailed(stage)
		c.metrics.ClientDisabled(stage)
		c.logger.Printf("[Client %s] setup failed at %s stage: %v", c.id, stage, err)
		c.bus.Publish(ctx, event.NewEvent(event.EventClientDisabled).
			WithRunID(c.runID).
			WithClientID(c.id).
			WithMemberID(result.MemberID).
			WithError(err).
			WithData("stage", stage))
		return err
	}

	c.metrics.LinkageCompleted(time.Since(start))
	c.metrics.ClientReady()
	c.bus.Publish(ctx, event.NewEvent(event.EventClientReady).
		WithRunID(c.runID).
		WithClientID(c.id).
		WithMemberID(result.MemberID).
		WithData("accountId", result.AccountID))
	return nil
}

// Run probes in a loop until ctx is cancelled. An ineligible client
// returns immediately.
func (c *VirtualClient) Run(ctx context.Context) {
	if !c.Eligible() {
		return
	}

	for {
		if !c.think(ctx) {
			return
		}
		c.Probe(ctx)
	}
}

// Probe issues one delete attempt against the owned member and records
// the classified result. Exactly one network call is made per probe.
func (c *VirtualClient) Probe(ctx context.Context) ProbeResult {
	memberID := c.MemberID()

	ctx, span := c.tracer.StartProbe(ctx, c.runID, c.id, memberID)
	defer span.End()

	start := time.Now()
	status, err := c.members.DeleteMember(ctx, memberID)
	elapsed := time.Since(start)

	res := NewProbeResult(c.id, memberID, status, err)
	c.verdict.Record(res)

	c.metrics.ProbeClassified(string(res.Outcome))
	c.metrics.ProbeDuration(string(res.Outcome), elapsed)
	if err != nil {
		span.SetError(err)
	}

	c.bus.Publish(ctx, probeEvent(res).
		WithRunID(c.runID).
		WithClientID(c.id).
		WithMemberID(memberID).
		WithStatusCode(status).
		WithError(err))

	if res.Outcome == OutcomeViolated {
		c.logger.Printf("[Client %s] delete of member %s succeeded (status %d) despite linked account", c.id, memberID, status)
	}

	return res
}

// probeEvent maps an outcome to its event type.
func probeEvent(res ProbeResult) event.Event {
	switch res.Outcome {
	case OutcomeBlocked:
		return event.NewEvent(event.EventProbeBlocked)
	case OutcomeViolated:
		return event.NewEvent(event.EventProbeViolated)
	default:
		return event.NewEvent(event.EventProbeAmbiguous)
	}
}

// think sleeps a uniformly random duration within the configured
// range. Returns false when ctx was cancelled during the sleep.
func (c *VirtualClient) think(ctx context.Context) bool {
	d := c.minThink
	if spread := c.maxThink - c.minThink; spread > 0 {
		d += rand.N(spread)
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
