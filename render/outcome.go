package render

import (
	"context"
	"errors"
	"fmt"
)

// Outcome is the result of a render call that reached the service: either
// Success or Failure. Transport problems are reported as errors instead.
type Outcome interface {
	outcome()
}

// Success carries the rendered image bytes.
type Success struct {
	Image []byte
}

// Failure carries the compiler log for input the service could not render.
type Failure struct {
	Logs string
}

func (Success) outcome() {}
func (Failure) outcome() {}

// ErrEmptyImage is returned when the service serves a zero-length artifact.
var ErrEmptyImage = errors.New("render: empty image")

// TransportError reports a call that did not produce a usable response:
// a network failure, a non-2xx status, or a malformed body.
type TransportError struct {
	Op         string // "submit" or "fetch"
	URL        string
	StatusCode int // zero when no response was received
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("render: %s %s: status %d", e.Op, e.URL, e.StatusCode)
	}
	return fmt.Sprintf("render: %s %s: %v", e.Op, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Temporary reports whether repeating the call could succeed: no response at
// all, a 5xx, or 429.
func (e *TransportError) Temporary() bool {
	switch {
	case e.StatusCode == 0:
		return !errors.Is(e.Err, errMalformed) && !errors.Is(e.Err, context.Canceled)
	case e.StatusCode == 429:
		return true
	default:
		return e.StatusCode >= 500
	}
}

// errMalformed marks a 2xx response whose body could not be used.
var errMalformed = errors.New("malformed response")

// Retryable reports whether err is a TransportError worth retrying.
func Retryable(err error) bool {
	var te *TransportError
	return errors.As(err, &te) && te.Temporary()
}
