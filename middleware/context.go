package middleware

import (
	"context"

	"github.com/campusdocs/cert-portal/token"
)

// Context key type to avoid collisions
type contextKey string

const (
	// RequestIDKey is the context key for request ID
	RequestIDKey contextKey = "request_id"

	// IdentityKey is the context key for the authenticated identity
	IdentityKey contextKey = "identity"
)

// GetRequestIDFromContext retrieves the request ID from context
func GetRequestIDFromContext(ctx context.Context) string {
	if val := ctx.Value(RequestIDKey); val != nil {
		if requestID, ok := val.(string); ok {
			return requestID
		}
	}
	return ""
}

// WithRequestID adds a request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// GetIdentityFromContext retrieves the authenticated identity from context
func GetIdentityFromContext(ctx context.Context) *token.Identity {
	if val := ctx.Value(IdentityKey); val != nil {
		if identity, ok := val.(*token.Identity); ok {
			return identity
		}
	}
	return nil
}

// WithIdentity adds an authenticated identity to the context
func WithIdentity(ctx context.Context, identity *token.Identity) context.Context {
	return context.WithValue(ctx, IdentityKey, identity)
}
