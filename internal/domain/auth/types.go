// Package auth provides API-key authentication for the Aegis HTTP API.
package auth

import "context"

// Identity is an authenticated caller of the API.
type Identity struct {
	// Name identifies the caller in logs and audit records.
	Name string
}

// identityKey is the context key type for authenticated identities.
type identityKey struct{}

// WithIdentity stores an authenticated identity in the context, for
// handlers downstream of the auth middleware.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFromContext retrieves the authenticated identity from the
// context. Returns nil if the request was not authenticated.
func IdentityFromContext(ctx context.Context) *Identity {
	id, _ := ctx.Value(identityKey{}).(*Identity)
	return id
}
