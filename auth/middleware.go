package auth

import (
	"encoding/json"
	"errors"
	"net/http"
)

// RejectFunc observes a rejected request. err is the rejection reason, or
// the internal error when result is nil.
type RejectFunc func(r *http.Request, result *AuthResult, err error)

// Middleware authenticates every request with a and attaches the identity to
// the request context. Rejected requests get 401 with a JSON error body;
// internal authenticator errors get 500. A nil a lets every request through
// as AnonymousIdentity.
func Middleware(a Authenticator, onReject RejectFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if a == nil {
				next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), AnonymousIdentity())))
				return
			}

			result, err := a.Authenticate(r.Context(), &AuthRequest{Headers: r.Header})
			if err != nil {
				if onReject != nil {
					onReject(r, nil, err)
				}
				writeError(w, http.StatusInternalServerError, "authentication unavailable")
				return
			}
			if !result.Authenticated || result.Identity == nil {
				if onReject != nil {
					onReject(r, result, result.Error)
				}
				w.Header().Set("WWW-Authenticate", `Bearer realm="latexbot"`)
				writeError(w, http.StatusUnauthorized, rejectMessage(result.Error))
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), result.Identity)))
		})
	}
}

func rejectMessage(err error) string {
	switch {
	case errors.Is(err, ErrMissingCredentials):
		return "missing credentials"
	case errors.Is(err, ErrTokenExpired):
		return "credentials expired"
	default:
		return "invalid credentials"
	}
}

func writeError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
