package cache

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// Keyer derives a deterministic cache key from normalized query text.
//
// Contract:
// - Determinism: identical text yields an identical key on every run and platform.
// - Format: keys are lowercase hex and pass ValidateKey.
// - Concurrency: implementations must be safe for concurrent use.
type Keyer interface {
	// Key returns the hex digest of the UTF-8 bytes of text.
	Key(text string) string

	// Name identifies the digest algorithm.
	Name() string
}

// MD5Keyer produces 32-character MD5 hex digests.
// MD5 is used as a fingerprint here, not for integrity against an adversary.
type MD5Keyer struct{}

// NewMD5Keyer creates the default keyer.
func NewMD5Keyer() *MD5Keyer {
	return &MD5Keyer{}
}

// Key returns the MD5 hex digest of text.
func (k *MD5Keyer) Key(text string) string {
	sum := md5.Sum([]byte(text)) // #nosec G401 -- non-adversarial content fingerprint.
	return hex.EncodeToString(sum[:])
}

// Name returns "md5".
func (k *MD5Keyer) Name() string { return "md5" }

// SHA256Keyer produces 64-character SHA-256 hex digests.
type SHA256Keyer struct{}

// NewSHA256Keyer creates a SHA-256 keyer.
func NewSHA256Keyer() *SHA256Keyer {
	return &SHA256Keyer{}
}

// Key returns the SHA-256 hex digest of text.
func (k *SHA256Keyer) Key(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// Name returns "sha256".
func (k *SHA256Keyer) Name() string { return "sha256" }

// NewKeyer returns the keyer for a digest name. An empty name selects MD5.
func NewKeyer(name string) (Keyer, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "md5":
		return NewMD5Keyer(), nil
	case "sha256":
		return NewSHA256Keyer(), nil
	default:
		return nil, fmt.Errorf("cache: unknown hash %q", name)
	}
}

var (
	_ Keyer = (*MD5Keyer)(nil)
	_ Keyer = (*SHA256Keyer)(nil)
)
