// Package resilience guards calls to the rendering and paste services and
// serializes command invocations per scope.
//
// # Patterns
//
//   - Circuit Breaker: stops calling an upstream after consecutive failures
//     and tries it again after a reset timeout.
//
//   - Retry: re-runs retryable failures with jittered exponential backoff
//     (github.com/cenkalti/backoff). The default budget is a single attempt.
//
//   - Rate Limiter: token bucket pacing calls to an upstream.
//
//   - Bulkhead: caps concurrent calls (golang.org/x/sync/semaphore).
//
//   - Timeout: bounds each attempt.
//
//   - Gate: per-scope mutual exclusion. Callers for a busy scope block (they
//     are queued, not rejected) and may give up through their context.
//
// # Usage
//
//	exec := resilience.NewPolicyExecutor(resilience.Policy{
//	    Timeout:      30 * time.Second,
//	    Rate:         2,
//	    Burst:        5,
//	    MaxFailures:  5,
//	    ResetTimeout: time.Minute,
//	})
//
//	gate := resilience.NewGate()
//	err := gate.Do(ctx, guildID, func(ctx context.Context) error {
//	    return exec.Execute(ctx, callRenderer)
//	})
package resilience
