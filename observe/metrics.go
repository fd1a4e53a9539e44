package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Outcome labels how a command invocation ended.
type Outcome string

const (
	// OutcomeImage means an image was delivered.
	OutcomeImage Outcome = "image"
	// OutcomeFailure means a failure notice was delivered.
	OutcomeFailure Outcome = "failure"
	// OutcomeError means the invocation returned an error.
	OutcomeError Outcome = "error"
)

// Report summarizes one finished invocation for metrics and logs.
type Report struct {
	Outcome     Outcome
	Key         string
	Cached      bool
	PasteFailed bool
}

// Metrics records command metrics.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: implementations must not panic.
type Metrics interface {
	// RecordCommand records one finished invocation.
	RecordCommand(ctx context.Context, meta CommandMeta, report Report, duration time.Duration, err error)
}

type metricsImpl struct {
	total         metric.Int64Counter
	errors        metric.Int64Counter
	duration      metric.Float64Histogram
	cacheHits     metric.Int64Counter
	renderFailure metric.Int64Counter
	pasteFailure  metric.Int64Counter
}

// NewMetrics registers the command instruments on meter.
func NewMetrics(meter metric.Meter) (Metrics, error) {
	m := &metricsImpl{}
	var err error

	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
		unit string
	}{
		{&m.total, "latex.command.total", "Total number of command invocations", "{call}"},
		{&m.errors, "latex.command.errors", "Invocations that ended in an error", "{error}"},
		{&m.cacheHits, "latex.cache.hits", "Invocations served from the image cache", "{hit}"},
		{&m.renderFailure, "latex.render.failures", "Renders rejected by the rendering service", "{failure}"},
		{&m.pasteFailure, "latex.paste.failures", "Log uploads that did not yield a URL", "{failure}"},
	}
	for _, c := range counters {
		*c.dst, err = meter.Int64Counter(c.name, metric.WithDescription(c.desc), metric.WithUnit(c.unit))
		if err != nil {
			return nil, err
		}
	}

	m.duration, err = meter.Float64Histogram(
		"latex.command.duration_ms",
		metric.WithDescription("Command invocation duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (m *metricsImpl) RecordCommand(ctx context.Context, meta CommandMeta, report Report, duration time.Duration, err error) {
	outcome := report.Outcome
	if err != nil {
		outcome = OutcomeError
	}
	opt := metric.WithAttributes(
		attribute.String("command.name", meta.Name),
		attribute.String("command.outcome", string(outcome)),
	)

	m.total.Add(ctx, 1, opt)
	m.duration.Record(ctx, float64(duration.Microseconds())/1000, opt)

	if err != nil {
		m.errors.Add(ctx, 1, opt)
		return
	}
	if report.Cached {
		m.cacheHits.Add(ctx, 1, opt)
	}
	if report.Outcome == OutcomeFailure {
		m.renderFailure.Add(ctx, 1, opt)
	}
	if report.PasteFailed {
		m.pasteFailure.Add(ctx, 1, opt)
	}
}

type noopMetrics struct{}

// NopMetrics returns Metrics that record nothing.
func NopMetrics() Metrics { return noopMetrics{} }

func (noopMetrics) RecordCommand(context.Context, CommandMeta, Report, time.Duration, error) {}
