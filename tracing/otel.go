// Package tracing provides OpenTelemetry tracing integration for the harness.
package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Tracer defines the interface for distributed tracing.
type Tracer interface {
	// StartSetup starts a root span covering a client's linkage phase.
	StartSetup(ctx context.Context, runID, clientID string) (context.Context, Span)

	// StartProbe starts a span for a single delete probe.
	StartProbe(ctx context.Context, runID, clientID, memberID string) (context.Context, Span)

	// StartStage starts a span for a scenario stage.
	StartStage(ctx context.Context, scenario, stage string) (context.Context, Span)
}

// Span represents an active tracing span.
type Span interface {
	// End completes the span.
	End()

	// SetError marks the span as having an error.
	SetError(err error)

	// SetStatus sets the span status.
	SetStatus(code codes.Code, description string)

	// SetAttributes adds attributes to the span.
	SetAttributes(attrs ...attribute.KeyValue)

	// AddEvent adds an event to the span.
	AddEvent(name string, attrs ...attribute.KeyValue)
}

// OTelTracer implements Tracer using OpenTelemetry.
type OTelTracer struct {
	tracer trace.Tracer
}

// Config holds configuration for OTelTracer.
type Config struct {
	// ServiceName is the name of the service for tracing.
	ServiceName string
	// TracerProvider is the OpenTelemetry tracer provider. If nil, the global provider is used.
	TracerProvider trace.TracerProvider
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		ServiceName:    "skew",
		TracerProvider: nil,
	}
}

// NewOTelTracer creates a new OTelTracer with the given configuration.
func NewOTelTracer(cfg Config) *OTelTracer {
	var tp trace.TracerProvider
	if cfg.TracerProvider != nil {
		tp = cfg.TracerProvider
	} else {
		tp = otel.GetTracerProvider()
	}

	return &OTelTracer{
		tracer: tp.Tracer(cfg.ServiceName),
	}
}

// StartSetup starts a root span covering a client's linkage phase.
func (t *OTelTracer) StartSetup(ctx context.Context, runID, clientID string) (context.Context, Span) {
	ctx, span := t.tracer.Start(ctx, "client.setup",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("run.id", runID),
			attribute.String("client.id", clientID),
		),
	)
	return ctx, &otelSpan{span: span}
}

// StartProbe starts a span for a single delete probe.
func (t *OTelTracer) StartProbe(ctx context.Context, runID, clientID, memberID string) (context.Context, Span) {
	ctx, span := t.tracer.Start(ctx, "client.probe",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("run.id", runID),
			attribute.String("client.id", clientID),
			attribute.String("member.id", memberID),
		),
	)
	return ctx, &otelSpan{span: span}
}

// StartStage starts a span for a scenario stage.
func (t *OTelTracer) StartStage(ctx context.Context, scenario, stage string) (context.Context, Span) {
	ctx, span := t.tracer.Start(ctx, "scenario.stage",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("scenario.name", scenario),
			attribute.String("stage.name", stage),
		),
	)
	return ctx, &otelSpan{span: span}
}

// otelSpan wraps an OpenTelemetry span.
type otelSpan struct {
	span trace.Span
}

func (s *otelSpan) End() {
	s.span.End()
}

func (s *otelSpan) SetError(err error) {
	if err != nil {
		s.span.RecordError(err)
		s.span.SetStatus(codes.Error, err.Error())
	}
}

func (s *otelSpan) SetStatus(code codes.Code, description string) {
	s.span.SetStatus(code, description)
}

func (s *otelSpan) SetAttributes(attrs ...attribute.KeyValue) {
	s.span.SetAttributes(attrs...)
}

func (s *otelSpan) AddEvent(name string, attrs ...attribute.KeyValue) {
	s.span.AddEvent(name, trace.WithAttributes(attrs...))
}

// NoopTracer is a no-op implementation of Tracer for testing or when tracing is disabled.
type NoopTracer struct{}

var _ Tracer = (*NoopTracer)(nil)

func (n *NoopTracer) StartSetup(ctx context.Context, runID, clientID string) (context.Context, Span) {
	return ctx, &noopSpan{}
}

func (n *NoopTracer) StartProbe(ctx context.Context, runID, clientID, memberID string) (context.Context, Span) {
	return ctx, &noopSpan{}
}

func (n *NoopTracer) StartStage(ctx context.Context, scenario, stage string) (context.Context, Span) {
	return ctx, &noopSpan{}
}

// noopSpan is a no-op span implementation.
type noopSpan struct{}

func (s *noopSpan) End()                                              {}
func (s *noopSpan) SetError(err error)                                {}
func (s *noopSpan) SetStatus(code codes.Code, description string)     {}
func (s *noopSpan) SetAttributes(attrs ...attribute.KeyValue)         {}
func (s *noopSpan) AddEvent(name string, attrs ...attribute.KeyValue) {}
