// Package middleware contains HTTP middleware for the compliq API.
//
// Middleware functions follow the standard Go pattern of wrapping http.Handler.
// They are designed to be composed using a middleware stack approach.
package middleware

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/DukeRupert/compliq/internal/auth"
	"github.com/DukeRupert/compliq/internal/handler"
)

// =============================================================================
// Auth Middleware Configuration
// =============================================================================

// AuthMiddleware authenticates requests by their bearer token.
//
// The service owns no accounts. Tokens are issued by the host application's
// identity provider and signed with a shared HS256 secret.
type AuthMiddleware struct {
	secret string
	logger *slog.Logger
}

// NewAuthMiddleware creates a new AuthMiddleware instance.
func NewAuthMiddleware(secret string, logger *slog.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		secret: secret,
		logger: logger,
	}
}

// =============================================================================
// WithIdentity Middleware
// =============================================================================

// WithIdentity loads the identity from the Authorization header when one is
// present and valid, and continues either way.
//
// The identity can be retrieved in handlers using:
//
//	id := auth.GetIdentity(r.Context())
func (m *AuthMiddleware) WithIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := m.authenticate(r)
		if err != nil {
			if !errors.Is(err, auth.ErrMissingToken) {
				m.logger.Debug("bearer token rejected", "path", r.URL.Path, "error", err)
			}
			next.ServeHTTP(w, r)
			return
		}

		next.ServeHTTP(w, r.WithContext(auth.SetIdentity(r.Context(), id)))
	})
}

// =============================================================================
// RequireUser Middleware
// =============================================================================

// RequireUser requires an authenticated caller and answers 401 otherwise.
//
// It may run after WithIdentity; when no identity is in context yet, it
// authenticates the request itself.
//
// Flow:
//
//	Request -> RequireUser -> Handler
//	           |
//	           +-> identity in context? call next
//	           +-> parse bearer token
//	           +-> invalid or missing: 401 JSON
func (m *AuthMiddleware) RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth.GetIdentity(r.Context()) != nil {
			next.ServeHTTP(w, r)
			return
		}

		id, err := m.authenticate(r)
		if err != nil {
			m.logger.Info("unauthenticated request",
				"method", r.Method,
				"path", r.URL.Path,
				"reason", err,
			)
			handler.UnauthorizedResponse(w, r, m.logger)
			return
		}

		next.ServeHTTP(w, r.WithContext(auth.SetIdentity(r.Context(), id)))
	})
}

func (m *AuthMiddleware) authenticate(r *http.Request) (*auth.Identity, error) {
	token, err := auth.BearerToken(r.Header.Get("Authorization"))
	if err != nil {
		return nil, err
	}
	return auth.ParseToken(token, m.secret)
}

// =============================================================================
// Middleware Stack Helpers
// =============================================================================

// Stack composes multiple middleware functions into a single middleware.
//
// Middleware is applied in the order provided, meaning the first middleware
// in the slice is the outermost (runs first on request, last on response).
//
// Example:
//
//	stack := Stack(authMw.RequireUser, processLimitMw.Limit)
//	mux.Handle("POST /api/documents/process", stack(processHandler))
//
// This is equivalent to:
//
//	mux.Handle("POST /api/documents/process",
//	    authMw.RequireUser(processLimitMw.Limit(processHandler)))
func Stack(middlewares ...func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	return func(final http.Handler) http.Handler {
		for i := len(middlewares) - 1; i >= 0; i-- {
			final = middlewares[i](final)
		}
		return final
	}
}

// Ensure middleware functions have correct signature
var (
	_ func(http.Handler) http.Handler = (&AuthMiddleware{}).WithIdentity
	_ func(http.Handler) http.Handler = (&AuthMiddleware{}).RequireUser
)
