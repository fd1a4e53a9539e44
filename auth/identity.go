package auth

import "time"

// Method indicates how a caller was authenticated.
type Method string

const (
	MethodJWT       Method = "jwt"
	MethodAPIKey    Method = "api_key"
	MethodAnonymous Method = "anonymous"
)

// Identity is an authenticated caller.
type Identity struct {
	Principal string
	TenantID  string
	Method    Method
	ExpiresAt time.Time
}

// IsAnonymous reports whether the caller did not authenticate.
func (id *Identity) IsAnonymous() bool {
	return id.Method == MethodAnonymous || id.Principal == ""
}

// Scope returns the serialization scope for the caller: the tenant if set,
// else the principal, else "".
func (id *Identity) Scope() string {
	if id == nil || id.IsAnonymous() {
		return ""
	}
	if id.TenantID != "" {
		return id.TenantID
	}
	return id.Principal
}

// AnonymousIdentity is attached when authentication is disabled.
func AnonymousIdentity() *Identity {
	return &Identity{Principal: "anonymous", Method: MethodAnonymous}
}
