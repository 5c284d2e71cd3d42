package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/campusdocs/cert-portal/models"
	"github.com/campusdocs/cert-portal/token"
)

const testSecret = "session-test-secret"

func newIssuer() *token.Issuer {
	return token.NewIssuer(testSecret, "cert-portal")
}

func newTestSession(store TokenStore) *Session {
	logger, _ := zap.NewDevelopment()
	return NewSession(store, newIssuer(), logger)
}

func mintToken(t *testing.T, email string, role models.Role) string {
	t.Helper()
	tokenString, err := newIssuer().Mint("Test User", email, role, time.Hour)
	require.NoError(t, err)
	return tokenString
}

func mintExpiredToken(t *testing.T) string {
	t.Helper()
	past := time.Now().Add(-2 * time.Hour)
	issuer := token.NewIssuer(testSecret, "cert-portal", token.WithClock(func() time.Time { return past }))
	tokenString, err := issuer.Mint("Late", "late@uni.edu", models.RoleStudent, time.Hour)
	require.NoError(t, err)
	return tokenString
}

func TestLoadWithNoStoredToken(t *testing.T) {
	sess := newTestSession(NewMemoryStore())

	assert.Equal(t, StateLoading, sess.State())
	require.NoError(t, sess.Load())

	assert.Equal(t, StateResolved, sess.State())
	assert.Nil(t, sess.Identity())
}

func TestLoadWithValidStoredToken(t *testing.T) {
	store := NewMemoryStore()
	require.NoError(t, store.Set(mintToken(t, "student1@uni.edu", models.RoleStudent)))

	sess := newTestSession(store)
	require.NoError(t, sess.Load())

	identity := sess.Identity()
	require.NotNil(t, identity)
	assert.Equal(t, "student1@uni.edu", identity.Email)
}

func TestLoadClearsInvalidStoredToken(t *testing.T) {
	store := NewMemoryStore()
	require.NoError(t, store.Set("garbage.token.value"))

	sess := newTestSession(store)
	require.NoError(t, sess.Load())

	assert.Equal(t, StateResolved, sess.State())
	assert.Nil(t, sess.Identity())

	stored, err := store.Get()
	require.NoError(t, err)
	assert.Empty(t, stored)
}

func TestLoadClearsExpiredStoredToken(t *testing.T) {
	store := NewMemoryStore()
	require.NoError(t, store.Set(mintExpiredToken(t)))

	sess := newTestSession(store)
	require.NoError(t, sess.Load())

	// Expired is handled identically to malformed: cleared and unauthenticated
	assert.Nil(t, sess.Identity())
	stored, _ := store.Get()
	assert.Empty(t, stored)
}

func TestSignInAndSignOut(t *testing.T) {
	store := NewMemoryStore()
	sess := newTestSession(store)
	require.NoError(t, sess.Load())

	require.NoError(t, sess.SignIn(mintToken(t, "admin2@gmail.com", models.RoleAdmin)))
	require.NotNil(t, sess.Identity())
	assert.Equal(t, models.RoleAdmin, sess.Identity().Role)

	stored, _ := store.Get()
	assert.NotEmpty(t, stored)

	require.NoError(t, sess.SignOut())
	assert.Nil(t, sess.Identity())
	stored, _ = store.Get()
	assert.Empty(t, stored)
}

func TestSignInRejectsInvalidToken(t *testing.T) {
	store := NewMemoryStore()
	sess := newTestSession(store)

	err := sess.SignIn("not-a-token")
	assert.Error(t, err)

	stored, _ := store.Get()
	assert.Empty(t, stored)
}

func TestGuardWaitsWhileLoading(t *testing.T) {
	sess := newTestSession(NewMemoryStore())
	guard := NewGuard(sess)

	// Loading never renders a guarded view
	decision := guard.Evaluate(Route{Path: "/dashboard"})
	assert.Equal(t, ActionWait, decision.Action)
}

func TestGuardRedirectsToLoginWhenUnauthenticated(t *testing.T) {
	sess := newTestSession(NewMemoryStore())
	require.NoError(t, sess.Load())
	guard := NewGuard(sess)

	decision := guard.Evaluate(Route{Path: "/dashboard"})
	assert.Equal(t, ActionRedirectLogin, decision.Action)
	assert.Equal(t, "/dashboard", decision.From)
}

func TestGuardRendersForAuthenticated(t *testing.T) {
	store := NewMemoryStore()
	require.NoError(t, store.Set(mintToken(t, "student1@uni.edu", models.RoleStudent)))

	sess := newTestSession(store)
	require.NoError(t, sess.Load())
	guard := NewGuard(sess)

	decision := guard.Evaluate(Route{Path: "/dashboard"})
	assert.Equal(t, ActionRender, decision.Action)
}

func TestGuardRoleMismatchRedirectsToUnauthorizedNotLogin(t *testing.T) {
	store := NewMemoryStore()
	require.NoError(t, store.Set(mintToken(t, "student1@uni.edu", models.RoleStudent)))

	sess := newTestSession(store)
	require.NoError(t, sess.Load())
	guard := NewGuard(sess)

	// Valid token, wrong role: unauthorized, never login
	decision := guard.Evaluate(Route{Path: "/admin", RequiredRole: models.RoleAdmin})
	assert.Equal(t, ActionRedirectUnauthorized, decision.Action)
}

func TestGuardStopsRenderingAfterTokenExpiresMidSession(t *testing.T) {
	now := time.Now()
	issuer := token.NewIssuer(testSecret, "cert-portal", token.WithClock(func() time.Time { return now }))

	tokenString, err := issuer.Mint("Student", "student1@uni.edu", models.RoleStudent, time.Hour)
	require.NoError(t, err)

	store := NewMemoryStore()
	require.NoError(t, store.Set(tokenString))

	logger, _ := zap.NewDevelopment()
	sess := NewSession(store, issuer, logger)
	require.NoError(t, sess.Load())
	guard := NewGuard(sess)

	decision := guard.Evaluate(Route{Path: "/dashboard"})
	assert.Equal(t, ActionRender, decision.Action)

	// The token expires while the session stays open; the next navigation
	// must not render from the earlier decision
	now = now.Add(2 * time.Hour)

	decision = guard.Evaluate(Route{Path: "/dashboard"})
	assert.Equal(t, ActionRedirectLogin, decision.Action)
	assert.Equal(t, "/dashboard", decision.From)

	stored, _ := store.Get()
	assert.Empty(t, stored)
}

func TestGuardSeesSignOutFromAnotherEvaluation(t *testing.T) {
	store := NewMemoryStore()
	require.NoError(t, store.Set(mintToken(t, "student1@uni.edu", models.RoleStudent)))

	sess := newTestSession(store)
	require.NoError(t, sess.Load())
	guard := NewGuard(sess)

	assert.Equal(t, ActionRender, guard.Evaluate(Route{Path: "/dashboard"}).Action)

	// Token removed from the store out of band
	require.NoError(t, store.Clear())

	decision := guard.Evaluate(Route{Path: "/dashboard"})
	assert.Equal(t, ActionRedirectLogin, decision.Action)
}

func TestGuardMatchingRoleRenders(t *testing.T) {
	store := NewMemoryStore()
	require.NoError(t, store.Set(mintToken(t, "admin2@gmail.com", models.RoleAdmin)))

	sess := newTestSession(store)
	require.NoError(t, sess.Load())
	guard := NewGuard(sess)

	decision := guard.Evaluate(Route{Path: "/admin", RequiredRole: models.RoleAdmin})
	assert.Equal(t, ActionRender, decision.Action)
}
