package resilience

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// RetryConfig configures a Retry.
type RetryConfig struct {
	// MaxAttempts counts the first call. One means no retry.
	// Default: 1
	MaxAttempts int

	// InitialDelay is the delay before the second attempt.
	// Default: 200ms
	InitialDelay time.Duration

	// MaxDelay caps the delay between attempts.
	// Default: 5s
	MaxDelay time.Duration

	// RetryIf decides whether an error is worth another attempt.
	// Default: every non-nil error that is not a caller cancellation.
	RetryIf func(err error) bool

	// OnRetry is called before sleeping ahead of the next attempt.
	OnRetry func(err error, delay time.Duration)
}

// Retry re-runs an operation with jittered exponential backoff.
type Retry struct {
	config RetryConfig
}

// NewRetry creates a retry policy.
func NewRetry(config RetryConfig) *Retry {
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 1
	}
	if config.InitialDelay <= 0 {
		config.InitialDelay = 200 * time.Millisecond
	}
	if config.MaxDelay <= 0 {
		config.MaxDelay = 5 * time.Second
	}
	if config.RetryIf == nil {
		config.RetryIf = func(err error) bool { return err != nil && !IsCanceled(err) }
	}
	return &Retry{config: config}
}

// MaxAttempts returns the configured attempt budget.
func (r *Retry) MaxAttempts() int {
	return r.config.MaxAttempts
}

// Execute runs op until it succeeds, returns a non-retryable error, or the
// attempt budget is spent.
func (r *Retry) Execute(ctx context.Context, op func(context.Context) error) error {
	if r.config.MaxAttempts == 1 {
		return op(ctx)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.config.InitialDelay
	b.MaxInterval = r.config.MaxDelay

	opts := []backoff.RetryOption{
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(r.config.MaxAttempts)),
	}
	if r.config.OnRetry != nil {
		opts = append(opts, backoff.WithNotify(func(err error, d time.Duration) {
			r.config.OnRetry(err, d)
		}))
	}

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		err := op(ctx)
		if err != nil && !r.config.RetryIf(err) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	}, opts...)

	var permanent *backoff.PermanentError
	if errors.As(err, &permanent) {
		return permanent.Err
	}
	return err
}
