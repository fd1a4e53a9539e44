// Package observe provides logging, tracing, and metrics for command
// invocations.
//
// It is a pure instrumentation library: no execution, no transport, no I/O
// beyond exporter setup. The latex handler wraps each invocation with
// Middleware; the server exposes the prometheus registry passed in
// MetricsConfig.
package observe
