package resilience

import (
	"context"
	"errors"
	"time"
)

// Executor composes the resilience patterns guarding one upstream.
//
// The execution order, outermost first:
//  1. Rate limiter - paces calls to the upstream
//  2. Bulkhead - caps calls in flight
//  3. Circuit breaker - stops calling a failing upstream
//  4. Retry - re-runs retryable failures
//  5. Timeout - bounds each attempt
type Executor struct {
	circuitBreaker *CircuitBreaker
	retry          *Retry
	rateLimiter    *RateLimiter
	bulkhead       *Bulkhead
	timeout        time.Duration
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// NewExecutor creates an executor. With no options it just runs the op.
func NewExecutor(opts ...ExecutorOption) *Executor {
	e := &Executor{}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// WithCircuitBreaker adds a circuit breaker.
func WithCircuitBreaker(cb *CircuitBreaker) ExecutorOption {
	return func(e *Executor) { e.circuitBreaker = cb }
}

// WithRetry adds retries.
func WithRetry(r *Retry) ExecutorOption {
	return func(e *Executor) { e.retry = r }
}

// WithRateLimiter adds rate limiting.
func WithRateLimiter(rl *RateLimiter) ExecutorOption {
	return func(e *Executor) { e.rateLimiter = rl }
}

// WithBulkhead adds a concurrency cap.
func WithBulkhead(b *Bulkhead) ExecutorOption {
	return func(e *Executor) { e.bulkhead = b }
}

// WithTimeout bounds each attempt. Zero disables the bound.
func WithTimeout(d time.Duration) ExecutorOption {
	return func(e *Executor) { e.timeout = d }
}

// CircuitBreaker returns the configured breaker, or nil.
func (e *Executor) CircuitBreaker() *CircuitBreaker {
	return e.circuitBreaker
}

// Execute runs op through every configured pattern.
func (e *Executor) Execute(ctx context.Context, op func(context.Context) error) error {
	execute := op

	if e.timeout > 0 {
		inner, d := execute, e.timeout
		execute = func(ctx context.Context) error {
			attemptCtx, cancel := context.WithTimeout(ctx, d)
			defer cancel()
			err := inner(attemptCtx)
			if err != nil && ctx.Err() == nil && errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
				return errors.Join(ErrTimeout, err)
			}
			return err
		}
	}

	if e.retry != nil {
		inner := execute
		execute = func(ctx context.Context) error {
			return e.retry.Execute(ctx, inner)
		}
	}

	if e.circuitBreaker != nil {
		inner := execute
		execute = func(ctx context.Context) error {
			return e.circuitBreaker.Execute(ctx, inner)
		}
	}

	if e.bulkhead != nil {
		inner := execute
		execute = func(ctx context.Context) error {
			return e.bulkhead.Execute(ctx, inner)
		}
	}

	if e.rateLimiter != nil {
		inner := execute
		execute = func(ctx context.Context) error {
			return e.rateLimiter.Execute(ctx, inner)
		}
	}

	return execute(ctx)
}

// Policy is the flat, config-friendly description of an Executor.
// Zero fields leave the matching pattern out.
type Policy struct {
	Timeout       time.Duration
	Rate          float64
	Burst         int
	MaxConcurrent int
	MaxAttempts   int
	MaxFailures   int
	ResetTimeout  time.Duration
	RetryIf       func(error) bool
	IsFailure     func(error) bool
	OnStateChange func(from, to State)
	OnRetry       func(err error, delay time.Duration)
	QueueWait     time.Duration
	RetryDelay    time.Duration
	MaxRetryDelay time.Duration
}

// NewPolicyExecutor builds an Executor from p.
func NewPolicyExecutor(p Policy) *Executor {
	var opts []ExecutorOption

	if p.Timeout > 0 {
		opts = append(opts, WithTimeout(p.Timeout))
	}
	if p.MaxAttempts > 1 {
		opts = append(opts, WithRetry(NewRetry(RetryConfig{
			MaxAttempts:  p.MaxAttempts,
			InitialDelay: p.RetryDelay,
			MaxDelay:     p.MaxRetryDelay,
			RetryIf:      p.RetryIf,
			OnRetry:      p.OnRetry,
		})))
	}
	if p.MaxFailures > 0 {
		opts = append(opts, WithCircuitBreaker(NewCircuitBreaker(CircuitBreakerConfig{
			MaxFailures:   p.MaxFailures,
			ResetTimeout:  p.ResetTimeout,
			IsFailure:     p.IsFailure,
			OnStateChange: p.OnStateChange,
		})))
	}
	if p.MaxConcurrent > 0 {
		opts = append(opts, WithBulkhead(NewBulkhead(BulkheadConfig{
			MaxConcurrent: p.MaxConcurrent,
			MaxWait:       p.QueueWait,
		})))
	}
	if p.Rate > 0 {
		opts = append(opts, WithRateLimiter(NewRateLimiter(RateLimiterConfig{
			Rate:    p.Rate,
			Burst:   p.Burst,
			MaxWait: p.QueueWait,
		})))
	}
	return NewExecutor(opts...)
}
