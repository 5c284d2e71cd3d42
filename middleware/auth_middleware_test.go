package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/campusdocs/cert-portal/models"
	"github.com/campusdocs/cert-portal/token"
)

const testSecret = "middleware-test-secret"

func newTestMiddleware(t *testing.T) (*AuthMiddleware, *token.Issuer) {
	t.Helper()
	logger, _ := zap.NewDevelopment()
	issuer := token.NewIssuer(testSecret, "cert-portal")
	return NewAuthMiddleware(issuer, logger), issuer
}

func okHandler(captured **token.Identity) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if captured != nil {
			*captured = GetIdentityFromContext(r.Context())
		}
		w.WriteHeader(http.StatusOK)
	})
}

func TestRequireAuthMissingHeader(t *testing.T) {
	m, _ := newTestMiddleware(t)

	req := httptest.NewRequest(http.MethodGet, "/api/certificates", nil)
	rec := httptest.NewRecorder()

	m.RequireAuth(okHandler(nil)).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireAuthMalformedHeader(t *testing.T) {
	m, issuer := newTestMiddleware(t)

	tokenString, err := issuer.Mint("Alice", "alice@uni.edu", models.RoleStudent, time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
	}{
		{"no scheme", tokenString},
		{"wrong scheme", "Basic " + tokenString},
		{"empty bearer", "Bearer "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/certificates", nil)
			req.Header.Set("Authorization", tt.header)
			rec := httptest.NewRecorder()

			m.RequireAuth(okHandler(nil)).ServeHTTP(rec, req)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}

func TestRequireAuthInvalidToken(t *testing.T) {
	m, _ := newTestMiddleware(t)

	req := httptest.NewRequest(http.MethodGet, "/api/certificates", nil)
	req.Header.Set("Authorization", "Bearer not.a.token")
	rec := httptest.NewRecorder()

	m.RequireAuth(okHandler(nil)).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireAuthExpiredToken(t *testing.T) {
	logger, _ := zap.NewDevelopment()

	past := time.Now().Add(-2 * time.Hour)
	minter := token.NewIssuer(testSecret, "cert-portal", token.WithClock(func() time.Time { return past }))
	expired, err := minter.Mint("Late", "late@uni.edu", models.RoleStudent, time.Hour)
	require.NoError(t, err)

	validator := token.NewIssuer(testSecret, "cert-portal")
	m := NewAuthMiddleware(validator, logger)

	req := httptest.NewRequest(http.MethodGet, "/api/certificates", nil)
	req.Header.Set("Authorization", "Bearer "+expired)
	rec := httptest.NewRecorder()

	m.RequireAuth(okHandler(nil)).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "expired")
}

func TestRequireAuthValidToken(t *testing.T) {
	m, issuer := newTestMiddleware(t)

	tokenString, err := issuer.Mint("Alice", "Alice@Uni.EDU", models.RoleAdmin, time.Hour)
	require.NoError(t, err)

	var identity *token.Identity
	req := httptest.NewRequest(http.MethodGet, "/api/certificates", nil)
	req.Header.Set("Authorization", "Bearer "+tokenString)
	rec := httptest.NewRecorder()

	m.RequireAuth(okHandler(&identity)).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, identity)
	assert.Equal(t, "alice@uni.edu", identity.Email)
	assert.Equal(t, models.RoleAdmin, identity.Role)
}

func TestRequireRole(t *testing.T) {
	m, issuer := newTestMiddleware(t)

	studentToken, err := issuer.Mint("Student", "student1@uni.edu", models.RoleStudent, time.Hour)
	require.NoError(t, err)
	adminToken, err := issuer.Mint("Admin", "admin2@gmail.com", models.RoleAdmin, time.Hour)
	require.NoError(t, err)

	protected := m.RequireAuth(m.RequireRole(models.RoleAdmin)(okHandler(nil)))

	// Student hits the admin wall with 403, not 401
	req := httptest.NewRequest(http.MethodGet, "/api/certificates", nil)
	req.Header.Set("Authorization", "Bearer "+studentToken)
	rec := httptest.NewRecorder()
	protected.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// Admin passes
	req = httptest.NewRequest(http.MethodGet, "/api/certificates", nil)
	req.Header.Set("Authorization", "Bearer "+adminToken)
	rec = httptest.NewRecorder()
	protected.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireRoleWithoutAuth(t *testing.T) {
	m, _ := newTestMiddleware(t)

	// RequireRole without RequireAuth finds no identity and rejects
	req := httptest.NewRequest(http.MethodGet, "/api/certificates", nil)
	rec := httptest.NewRecorder()

	m.RequireRole(models.RoleAdmin)(okHandler(nil)).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequestIDContext(t *testing.T) {
	ctx := WithRequestID(httptest.NewRequest(http.MethodGet, "/", nil).Context(), "req-123")
	assert.Equal(t, "req-123", GetRequestIDFromContext(ctx))
}
