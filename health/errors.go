package health

import "errors"

var (
	// ErrCheckFailed wraps the cause when a check of the cache directory or
	// the render endpoint fails.
	ErrCheckFailed = errors.New("health: check failed")

	// ErrCheckTimeout is recorded for a check that outlived the aggregator
	// timeout.
	ErrCheckTimeout = errors.New("health: check timed out")

	// ErrCheckerNotFound is returned by Aggregator.Check for an unknown name.
	ErrCheckerNotFound = errors.New("health: no checker registered under that name")
)
