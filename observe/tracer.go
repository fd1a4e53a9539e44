package observe

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// CommandMeta describes one command invocation for telemetry purposes.
type CommandMeta struct {
	Name         string // Command name (required), e.g. "latex"
	Scope        string // Serialization scope, e.g. a guild ID (optional)
	InvocationID string // Per-invocation correlation ID (optional)
	Stage        string // Sub-step such as "render" or "paste" (optional)
}

// SpanName returns the deterministic span name.
// Format: <name>.command or <name>.<stage>
func (m CommandMeta) SpanName() string {
	if m.Stage != "" {
		return m.Name + "." + m.Stage
	}
	return m.Name + ".command"
}

// WithStage returns a copy of m for a sub-step.
func (m CommandMeta) WithStage(stage string) CommandMeta {
	m.Stage = stage
	return m
}

func (m CommandMeta) attributes() []attribute.KeyValue {
	attrs := []attribute.KeyValue{attribute.String("command.name", m.Name)}
	if m.Scope != "" {
		attrs = append(attrs, attribute.String("command.scope", m.Scope))
	}
	if m.InvocationID != "" {
		attrs = append(attrs, attribute.String("command.invocation_id", m.InvocationID))
	}
	return attrs
}

// Tracer wraps OpenTelemetry tracing with command span naming.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: EndSpan must be best-effort and must not panic.
type Tracer interface {
	// StartSpan starts a span named by meta.SpanName.
	StartSpan(ctx context.Context, meta CommandMeta) (context.Context, trace.Span)

	// EndSpan ends the span, recording err if non-nil.
	EndSpan(span trace.Span, err error)
}

type tracerImpl struct {
	tracer trace.Tracer
}

// NewTracer wraps an OpenTelemetry tracer.
func NewTracer(t trace.Tracer) Tracer {
	return &tracerImpl{tracer: t}
}

func (t *tracerImpl) StartSpan(ctx context.Context, meta CommandMeta) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, meta.SpanName(),
		trace.WithAttributes(meta.attributes()...),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

func (t *tracerImpl) EndSpan(span trace.Span, err error) {
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// NopTracer returns a Tracer whose spans are discarded.
func NopTracer() Tracer {
	return &tracerImpl{tracer: tracenoop.NewTracerProvider().Tracer("noop")}
}
