package auth

import (
	"context"
	"net/http"
)

// Authenticator validates credentials and returns an identity.
//
// Contract:
//   - Concurrency: implementations must be safe for concurrent use.
//   - Errors: Authenticate returns (nil, error) for internal errors and
//     (result, nil) for rejected credentials; check result.Authenticated.
type Authenticator interface {
	// Name identifies the method in logs.
	Name() string

	// Supports reports whether req carries credentials for this method.
	Supports(ctx context.Context, req *AuthRequest) bool

	// Authenticate validates the credentials in req.
	Authenticate(ctx context.Context, req *AuthRequest) (*AuthResult, error)
}

// AuthRequest carries the credentials of one call.
type AuthRequest struct {
	Headers http.Header
}

// Header returns the first value of the named header.
func (r *AuthRequest) Header(key string) string {
	return r.Headers.Get(key)
}

// AuthResult is the outcome of an authentication attempt.
type AuthResult struct {
	Authenticated bool
	Identity      *Identity
	Error         error
	Method        string
}

// AuthSuccess creates a successful result.
func AuthSuccess(id *Identity) *AuthResult {
	return &AuthResult{Authenticated: true, Identity: id, Method: string(id.Method)}
}

// AuthFailure creates a rejected result.
func AuthFailure(err error, method string) *AuthResult {
	return &AuthResult{Error: err, Method: method}
}
