package middleware

import (
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/campusdocs/cert-portal/models"
	"github.com/campusdocs/cert-portal/token"
	"github.com/campusdocs/cert-portal/utils"
)

// TokenValidator validates a session token and returns the embedded identity
type TokenValidator interface {
	Validate(tokenString string) (*token.Identity, error)
}

// AuthMiddleware provides authentication middleware functionality
type AuthMiddleware struct {
	validator TokenValidator
	logger    *zap.Logger
}

// NewAuthMiddleware creates a new AuthMiddleware
func NewAuthMiddleware(validator TokenValidator, logger *zap.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		validator: validator,
		logger:    logger,
	}
}

// RequireAuth requires a valid session token on the request. On success the
// decoded identity is placed on the request context.
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		requestID := GetRequestIDFromContext(ctx)

		tokenString := extractBearerToken(r)
		if tokenString == "" {
			m.logger.Warn("missing token",
				zap.String("request_id", requestID))
			_ = utils.WriteUnauthorized(w, "Missing or invalid authorization")
			return
		}

		identity, err := m.validator.Validate(tokenString)
		if err != nil {
			m.logger.Warn("token validation failed",
				zap.String("request_id", requestID),
				zap.Error(err))
			if errors.Is(err, token.ErrTokenExpired) {
				_ = utils.WriteUnauthorized(w, "Token expired")
				return
			}
			_ = utils.WriteUnauthorized(w, "Invalid token")
			return
		}

		ctx = WithIdentity(ctx, identity)

		m.logger.Debug("authentication successful",
			zap.String("request_id", requestID),
			zap.String("email", identity.Email),
			zap.String("role", string(identity.Role)))

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole requires the authenticated identity to carry the given role.
// Must run after RequireAuth.
func (m *AuthMiddleware) RequireRole(role models.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := GetRequestIDFromContext(ctx)

			identity := GetIdentityFromContext(ctx)
			if identity == nil {
				m.logger.Error("identity not found in context",
					zap.String("request_id", requestID))
				_ = utils.WriteUnauthorized(w, "Authentication required")
				return
			}

			if identity.Role != role {
				m.logger.Warn("insufficient permissions",
					zap.String("request_id", requestID),
					zap.String("required_role", string(role)),
					zap.String("user_role", string(identity.Role)))
				_ = utils.WriteForbidden(w, "Insufficient permissions")
				return
			}

			m.logger.Debug("role check passed",
				zap.String("request_id", requestID),
				zap.String("required_role", string(role)))

			next.ServeHTTP(w, r)
		})
	}
}

// extractBearerToken extracts the Bearer token from the Authorization header
func extractBearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return ""
	}

	return strings.TrimSpace(parts[1])
}
