// Package auth authenticates API requests and verifies provider webhook
// signatures (spec.md §4.11, §9 — OAuth/identity UX itself is out of scope;
// this package only carries the already-authenticated principal through the
// request).
package auth

import (
	"context"
	"net/http"
	"strings"
)

// Principal is the authenticated identity attached to a request context
// (spec.md §9: "explicit context" replacing an ambient request.user).
type Principal struct {
	UserRef string
	Admin   bool
}

type contextKey string

const principalKey contextKey = "auth_principal"

// WithPrincipal returns a context carrying p.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// FromContext extracts the Principal stored by the auth middleware.
// ok is false if the request was never authenticated.
func FromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey).(Principal)
	return p, ok
}

// Store resolves a bearer token to the user it belongs to. The token scheme
// is one opaque token per user (spec.md §4.11); real issuance/rotation is an
// external collaborator and out of scope here (spec.md §1 Non-goals).
type Store interface {
	Lookup(ctx context.Context, token string) (Principal, bool)
}

// StaticStore is a fixed token->principal table, suitable for the dev/test
// token store this service ships with; a real deployment swaps in a Store
// backed by the identity provider's session table.
type StaticStore map[string]Principal

// Lookup implements Store.
func (s StaticStore) Lookup(_ context.Context, token string) (Principal, bool) {
	p, ok := s[token]
	return p, ok
}

// bearerToken extracts the token from an "Authorization: Bearer <token>" header.
func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(h, prefix) {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(h, prefix))
	if token == "" {
		return "", false
	}
	return token, true
}

// RequireUser rejects requests without a valid bearer token and otherwise
// attaches the resolved Principal to the request context.
func RequireUser(store Store, onUnauthorized func(w http.ResponseWriter, r *http.Request)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				onUnauthorized(w, r)
				return
			}
			principal, ok := store.Lookup(r.Context(), token)
			if !ok {
				onUnauthorized(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
		})
	}
}

// RequireAdmin rejects requests whose principal does not carry the admin
// privilege (spec.md §6.1 admin endpoints). It must run after RequireUser.
func RequireAdmin(onForbidden func(w http.ResponseWriter, r *http.Request)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := FromContext(r.Context())
			if !ok || !principal.Admin {
				onForbidden(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
