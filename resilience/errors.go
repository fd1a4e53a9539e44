package resilience

import (
	"context"
	"errors"
)

// Sentinel errors for resilience operations.
var (
	// ErrCircuitOpen is returned while the breaker rejects calls.
	ErrCircuitOpen = errors.New("resilience: circuit breaker is open")

	// ErrRateLimitExceeded is returned when no token is available in time.
	ErrRateLimitExceeded = errors.New("resilience: rate limit exceeded")

	// ErrBulkheadFull is returned when every concurrency slot is taken.
	ErrBulkheadFull = errors.New("resilience: bulkhead at capacity")

	// ErrTimeout is returned when an attempt outlives its deadline.
	ErrTimeout = errors.New("resilience: operation timed out")

	// ErrEmptyScope is returned by Gate.Do for a blank scope.
	ErrEmptyScope = errors.New("resilience: scope is required")
)

// IsRejected reports whether err means the call was refused before it ran.
// Callers surface these as "try again later" rather than as upstream faults.
func IsRejected(err error) bool {
	return errors.Is(err, ErrCircuitOpen) ||
		errors.Is(err, ErrRateLimitExceeded) ||
		errors.Is(err, ErrBulkheadFull)
}

// IsCanceled reports whether err came from the caller's own context.
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled)
}
