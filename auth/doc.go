// Package auth authenticates callers of the HTTP command surface.
//
// Two methods are supported: API keys sent in X-API-Key, stored only as
// SHA-256 hashes, and HS256 JWT bearer tokens. A CompositeAuthenticator tries
// them in order and Middleware rejects unauthenticated requests with 401. The
// resulting Identity is attached to the request context; its tenant, when
// present, becomes the default serialization scope for the command.
package auth
