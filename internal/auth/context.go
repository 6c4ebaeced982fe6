// Package auth provides the authenticated identity and its context helpers.
//
// This package is designed to be imported by both middleware and handler
// packages without causing import cycles.
package auth

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

// Identity is the caller established by the auth middleware. The service
// itself owns no accounts; identity comes from a bearer token issued by the
// host application.
type Identity struct {
	UserID uuid.UUID
	Email  string
}

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const identityContextKey contextKey = "identity"

// GetIdentity retrieves the authenticated identity from the context.
//
// Returns nil if no identity is present.
func GetIdentity(ctx context.Context) *Identity {
	id, ok := ctx.Value(identityContextKey).(*Identity)
	if !ok {
		return nil
	}
	return id
}

// GetIdentityFromRequest is a convenience wrapper around GetIdentity.
func GetIdentityFromRequest(r *http.Request) *Identity {
	return GetIdentity(r.Context())
}

// SetIdentity stores an identity in the context.
func SetIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, id)
}
