package middleware

import (
	"context"
	"net/http"

	"github.com/utafrali/storefront/pkg/httputil"
)

type contextKeyType string

const identityKey contextKeyType = "identity"

// Identity describes the shopper behind a request. The storefront agent holds
// a single session, so the identity comes from that session rather than from
// a per-request header.
type Identity struct {
	UserID        string
	Authenticated bool
}

// IdentityFunc resolves the current identity.
type IdentityFunc func(ctx context.Context) Identity

// Identify stores the resolved identity in the request context.
func Identify(resolve IdentityFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), identityKey, resolve(r.Context()))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAuth rejects requests without an authenticated identity with 401.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !IdentityFromContext(r.Context()).Authenticated {
			httputil.WriteJSON(w, http.StatusUnauthorized, httputil.Response{
				Error: &httputil.ErrorResponse{Code: "UNAUTHORIZED", Message: "login required"},
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// IdentityFromContext returns the identity set by Identify, or the zero value.
func IdentityFromContext(ctx context.Context) Identity {
	id, _ := ctx.Value(identityKey).(Identity)
	return id
}

// UserIDFromContext extracts the user ID from the request context.
func UserIDFromContext(ctx context.Context) string {
	return IdentityFromContext(ctx).UserID
}
