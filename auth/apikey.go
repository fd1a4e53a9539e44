package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"
)

// DefaultAPIKeyHeader carries the API key.
const DefaultAPIKeyHeader = "X-API-Key"

// hashedPrefix marks a key spec that already holds a SHA-256 hex digest.
const hashedPrefix = "sha256:"

// APIKeyInfo describes one registered key. Only the hash is kept.
type APIKeyInfo struct {
	ID        string
	KeyHash   string
	Principal string
	TenantID  string
	ExpiresAt time.Time
}

// APIKeyStore looks up keys by hash.
type APIKeyStore interface {
	// Lookup returns the key with the given hash, or nil.
	Lookup(ctx context.Context, keyHash string) (*APIKeyInfo, error)
}

// APIKeyAuthenticator validates API keys against a store.
type APIKeyAuthenticator struct {
	header string
	store  APIKeyStore
}

// NewAPIKeyAuthenticator creates an authenticator reading header. An empty
// header selects DefaultAPIKeyHeader.
func NewAPIKeyAuthenticator(header string, store APIKeyStore) *APIKeyAuthenticator {
	if header == "" {
		header = DefaultAPIKeyHeader
	}
	return &APIKeyAuthenticator{header: header, store: store}
}

// Name returns "api_key".
func (a *APIKeyAuthenticator) Name() string { return string(MethodAPIKey) }

// Supports reports whether the key header is present.
func (a *APIKeyAuthenticator) Supports(_ context.Context, req *AuthRequest) bool {
	return req.Header(a.header) != ""
}

// Authenticate validates the key.
func (a *APIKeyAuthenticator) Authenticate(ctx context.Context, req *AuthRequest) (*AuthResult, error) {
	key := strings.TrimSpace(req.Header(a.header))
	if key == "" {
		return AuthFailure(ErrMissingCredentials, a.Name()), nil
	}

	info, err := a.store.Lookup(ctx, HashAPIKey(key))
	if err != nil {
		return nil, err
	}
	if info == nil {
		return AuthFailure(ErrInvalidCredentials, a.Name()), nil
	}
	if !info.ExpiresAt.IsZero() && time.Now().After(info.ExpiresAt) {
		return AuthFailure(ErrTokenExpired, a.Name()), nil
	}

	return AuthSuccess(&Identity{
		Principal: info.Principal,
		TenantID:  info.TenantID,
		Method:    MethodAPIKey,
		ExpiresAt: info.ExpiresAt,
	}), nil
}

// HashAPIKey returns the SHA-256 hex digest of key.
func HashAPIKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// ParseAPIKey parses a configured key of the form
//
//	principal[@tenant]:key
//
// where key is either the raw key or "sha256:<hex digest>". The raw key is
// hashed immediately and not retained.
func ParseAPIKey(spec string) (*APIKeyInfo, error) {
	who, key, ok := strings.Cut(strings.TrimSpace(spec), ":")
	if !ok || who == "" || key == "" {
		return nil, fmt.Errorf("%w: want principal[@tenant]:key", ErrInvalidKeySpec)
	}
	principal, tenant, _ := strings.Cut(who, "@")
	if principal == "" {
		return nil, fmt.Errorf("%w: empty principal", ErrInvalidKeySpec)
	}

	var hash string
	if digest, found := strings.CutPrefix(key, hashedPrefix); found {
		if _, err := hex.DecodeString(digest); err != nil || len(digest) != sha256.Size*2 {
			return nil, fmt.Errorf("%w: %s is not a sha256 hex digest", ErrInvalidKeySpec, principal)
		}
		hash = strings.ToLower(digest)
	} else {
		hash = HashAPIKey(key)
	}

	return &APIKeyInfo{
		ID:        principal + "/" + hash[:8],
		KeyHash:   hash,
		Principal: principal,
		TenantID:  tenant,
	}, nil
}

// MemoryAPIKeyStore is an in-memory APIKeyStore.
type MemoryAPIKeyStore struct {
	mu   sync.RWMutex
	keys map[string]*APIKeyInfo
}

// NewMemoryAPIKeyStore creates an empty store.
func NewMemoryAPIKeyStore() *MemoryAPIKeyStore {
	return &MemoryAPIKeyStore{keys: make(map[string]*APIKeyInfo)}
}

// NewMemoryAPIKeyStoreFromSpecs creates a store holding every key in specs.
// See ParseAPIKey for the spec format.
func NewMemoryAPIKeyStoreFromSpecs(specs []string) (*MemoryAPIKeyStore, error) {
	s := NewMemoryAPIKeyStore()
	for i, spec := range specs {
		info, err := ParseAPIKey(spec)
		if err != nil {
			return nil, fmt.Errorf("api key %d: %w", i, err)
		}
		s.Add(info)
	}
	return s, nil
}

// Lookup returns the key with hash keyHash, or nil.
func (s *MemoryAPIKeyStore) Lookup(_ context.Context, keyHash string) (*APIKeyInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.keys[keyHash], nil
}

// Add stores info, replacing any key with the same hash.
func (s *MemoryAPIKeyStore) Add(info *APIKeyInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys[info.KeyHash] = info
}

// Remove deletes the key with hash keyHash.
func (s *MemoryAPIKeyStore) Remove(keyHash string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.keys, keyHash)
}

// Len returns the number of stored keys.
func (s *MemoryAPIKeyStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.keys)
}

var (
	_ Authenticator = (*APIKeyAuthenticator)(nil)
	_ APIKeyStore   = (*MemoryAPIKeyStore)(nil)
)
