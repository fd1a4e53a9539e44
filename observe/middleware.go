package observe

import (
	"context"
	"time"
)

// CommandFunc runs one command invocation.
type CommandFunc func(ctx context.Context, meta CommandMeta) (Report, error)

// Middleware wraps command execution with tracing, metrics, and logging.
//
// Contract:
//   - Concurrency: Wrap() returns a thread-safe CommandFunc.
//   - Context: the wrapped function receives the span context.
//   - Errors: errors from the wrapped function are recorded and returned unchanged.
type Middleware struct {
	tracer  Tracer
	metrics Metrics
	logger  Logger
}

// NewMiddleware creates a Middleware. Nil components are replaced by no-ops.
func NewMiddleware(tracer Tracer, metrics Metrics, logger Logger) *Middleware {
	if tracer == nil {
		tracer = NopTracer()
	}
	if metrics == nil {
		metrics = NopMetrics()
	}
	if logger == nil {
		logger = NopLogger()
	}
	return &Middleware{tracer: tracer, metrics: metrics, logger: logger}
}

// MiddlewareFromObserver creates a Middleware from an Observer.
func MiddlewareFromObserver(obs Observer) (*Middleware, error) {
	if obs == nil {
		return nil, ErrNilObserver
	}
	metrics, err := NewMetrics(obs.Meter())
	if err != nil {
		return nil, err
	}
	return NewMiddleware(NewTracer(obs.Tracer()), metrics, obs.Logger()), nil
}

// Tracer returns the tracer used for command spans, for sub-step spans.
func (m *Middleware) Tracer() Tracer {
	return m.tracer
}

// Logger returns the base logger.
func (m *Middleware) Logger() Logger {
	return m.logger
}

// Wrap wraps fn with a span, metrics, and one log line per invocation.
func (m *Middleware) Wrap(fn CommandFunc) CommandFunc {
	return func(ctx context.Context, meta CommandMeta) (Report, error) {
		ctx, span := m.tracer.StartSpan(ctx, meta)
		start := time.Now()

		report, err := fn(ctx, meta)

		duration := time.Since(start)
		m.tracer.EndSpan(span, err)
		m.metrics.RecordCommand(ctx, meta, report, duration, err)

		fields := []Field{
			{Key: "duration_ms", Value: float64(duration.Microseconds()) / 1000},
		}
		if report.Key != "" {
			fields = append(fields, Field{Key: "key", Value: report.Key})
		}

		log := m.logger.WithCommand(meta)
		if err != nil {
			fields = append(fields, Field{Key: "error", Value: err.Error()})
			log.Error(ctx, "command failed", fields...)
			return report, err
		}

		fields = append(fields,
			Field{Key: "outcome", Value: string(report.Outcome)},
			Field{Key: "cached", Value: report.Cached},
		)
		if report.PasteFailed {
			fields = append(fields, Field{Key: "paste_failed", Value: true})
		}
		log.Info(ctx, "command completed", fields...)
		return report, nil
	}
}
