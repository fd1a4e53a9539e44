package cache

import (
	"errors"
	"fmt"
	"os"
	"sync"
)

// Reservation is an open write handle for one cache entry.
//
// A reservation ends exactly once, with Commit or Abort. Both are safe to call
// again afterwards: a second Commit returns ErrCommitted, a second Abort is a
// no-op, so callers may defer Abort unconditionally.
type Reservation struct {
	key   string
	final string
	part  string

	mu      sync.Mutex
	file    *os.File
	written int64
	done    bool
}

// Key returns the cache key this reservation writes.
func (r *Reservation) Key() string {
	return r.key
}

// Path returns the final entry path.
func (r *Reservation) Path() string {
	return r.final
}

// Write appends p to the pending entry.
func (r *Reservation) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.done {
		return 0, ErrCommitted
	}
	n, err := r.file.Write(p)
	r.written += int64(n)
	return n, err
}

// Written returns the number of bytes written so far.
func (r *Reservation) Written() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.written
}

// Commit closes the handle and publishes the entry at Path.
// An empty entry is discarded and ErrEmptyResult is returned.
func (r *Reservation) Commit() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.done {
		return ErrCommitted
	}
	r.done = true

	if err := r.file.Close(); err != nil {
		_ = removeIfExists(r.part)
		return fmt.Errorf("cache: closing entry: %w", err)
	}
	if r.written == 0 {
		_ = removeIfExists(r.part)
		return ErrEmptyResult
	}
	if err := os.Rename(r.part, r.final); err != nil {
		_ = removeIfExists(r.part)
		return fmt.Errorf("cache: publishing entry: %w", err)
	}
	return nil
}

// Abort closes the handle and discards anything written.
// Nothing is left at Path by an aborted reservation.
func (r *Reservation) Abort() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.done {
		return nil
	}
	r.done = true

	closeErr := r.file.Close()
	if err := removeIfExists(r.part); err != nil {
		return err
	}
	if closeErr != nil && !errors.Is(closeErr, os.ErrClosed) {
		return fmt.Errorf("cache: closing entry: %w", closeErr)
	}
	return nil
}
