package cache

import (
	"context"
	"errors"
	"io"
	"strings"
)

// MaxKeyLength is the maximum allowed length for a cache key.
// SHA-256 hex digests (64 chars) are the longest keys a Keyer produces.
const MaxKeyLength = 128

// Sentinel errors for cache operations.
var (
	ErrInvalidKey  = errors.New("cache: key is invalid")
	ErrKeyTooLong  = errors.New("cache: key exceeds max length")
	ErrNotFound    = errors.New("cache: entry not found")
	ErrCommitted   = errors.New("cache: reservation already finished")
	ErrEmptyRoot   = errors.New("cache: root directory is required")
	ErrEmptyResult = errors.New("cache: refusing to commit an empty entry")
)

// Store is a content-addressed image store keyed by a hex digest.
//
// Contract:
//   - Concurrency: lookups are safe for concurrent use. Writers to the same key
//     must be serialized by the caller; the store does no locking of its own.
//   - Errors: Exists never errors; Remove of a missing entry returns nil.
//   - Ownership: Reserve hands the caller exclusive ownership of the open
//     handle until Commit or Abort.
type Store interface {
	// Exists reports whether an entry is present for key.
	Exists(ctx context.Context, key string) bool

	// Path returns the location of the entry for key. It performs no I/O.
	Path(key string) string

	// Open opens a stored entry for reading. Returns ErrNotFound on miss.
	Open(ctx context.Context, key string) (io.ReadCloser, error)

	// Reserve opens the entry path for key for writing.
	Reserve(ctx context.Context, key string) (*Reservation, error)

	// Remove deletes the entry for key. Idempotent - no error on miss.
	Remove(ctx context.Context, key string) error
}

// ValidateKey checks that key is a lowercase hex digest safe to use as a
// file name stem.
func ValidateKey(key string) error {
	if key == "" || strings.TrimSpace(key) == "" {
		return ErrInvalidKey
	}
	if len(key) > MaxKeyLength {
		return ErrKeyTooLong
	}
	for _, r := range key {
		switch {
		case r >= '0' && r <= '9':
		case r >= 'a' && r <= 'f':
		default:
			return ErrInvalidKey
		}
	}
	return nil
}
