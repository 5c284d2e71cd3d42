package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/campusdocs/cert-portal/config"
	"github.com/campusdocs/cert-portal/googleid"
	"github.com/campusdocs/cert-portal/models"
	"github.com/campusdocs/cert-portal/repositories"
	"github.com/campusdocs/cert-portal/services"
	"github.com/campusdocs/cert-portal/token"
)

// fakeUserRepo is an in-memory UserRepository keyed by lowercased email
type fakeUserRepo struct {
	users      map[string]*models.User
	createErr  error
	getErr     error
	createCall int
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]*models.User)}
}

func (f *fakeUserRepo) Create(ctx context.Context, user *models.User) error {
	f.createCall++
	if f.createErr != nil {
		return f.createErr
	}
	key := models.NormalizeEmail(user.Email)
	if _, exists := f.users[key]; exists {
		return repositories.ErrDuplicateEmail
	}
	f.users[key] = user
	return nil
}

func (f *fakeUserRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	for _, u := range f.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (f *fakeUserRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	u, ok := f.users[models.NormalizeEmail(email)]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return u, nil
}

func (f *fakeUserRepo) WithTx(tx repositories.Transaction) repositories.UserRepository {
	return f
}

// fakeVerifier returns a fixed identity or error
type fakeVerifier struct {
	identity *googleid.Identity
	err      error
}

func (f *fakeVerifier) Verify(ctx context.Context, idToken string) (*googleid.Identity, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.identity, nil
}

func testAuthConfig() config.AuthConfig {
	return config.AuthConfig{
		JWTSecret:      "test-secret",
		Issuer:         "cert-portal",
		LocalTokenTTL:  24 * time.Hour,
		GoogleTokenTTL: 7 * 24 * time.Hour,
		AdminEmails:    []string{"admin2@gmail.com"},
	}
}

func newTestService(repo repositories.UserRepository, verifier GoogleVerifier) (*Service, *token.Issuer) {
	cfg := testAuthConfig()
	issuer := token.NewIssuer(cfg.JWTSecret, cfg.Issuer)
	logger, _ := zap.NewDevelopment()
	return NewService(repo, issuer, verifier, nil, cfg, logger), issuer
}

func TestRegisterThenLogin(t *testing.T) {
	repo := newFakeUserRepo()
	svc, issuer := newTestService(repo, nil)
	ctx := context.Background()

	session, err := svc.Register(ctx, "Student One", "student1@uni.edu", "Secret123!")
	require.NoError(t, err)
	require.NotNil(t, session.User)
	assert.Equal(t, models.RoleStudent, session.User.Role)
	assert.Equal(t, models.AuthTypeLocal, session.User.AuthType)

	identity, err := issuer.Validate(session.Token)
	require.NoError(t, err)
	assert.Equal(t, "student1@uni.edu", identity.Email)
	assert.Equal(t, models.RoleStudent, identity.Role)

	loginSession, err := svc.Login(ctx, "student1@uni.edu", "Secret123!")
	require.NoError(t, err)

	loginIdentity, err := issuer.Validate(loginSession.Token)
	require.NoError(t, err)
	assert.Equal(t, identity.Email, loginIdentity.Email)
}

func TestRegisterAssignsAdminFromAllowList(t *testing.T) {
	repo := newFakeUserRepo()
	svc, issuer := newTestService(repo, nil)

	session, err := svc.Register(context.Background(), "Admin Two", "admin2@gmail.com", "Secret123!")
	require.NoError(t, err)

	identity, err := issuer.Validate(session.Token)
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, identity.Role)
}

func TestRegisterAllowListIsCaseInsensitive(t *testing.T) {
	repo := newFakeUserRepo()
	svc, _ := newTestService(repo, nil)

	session, err := svc.Register(context.Background(), "Admin Two", "Admin2@Gmail.COM", "Secret123!")
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, session.User.Role)
	assert.Equal(t, "admin2@gmail.com", session.User.Email)
}

func TestRegisterDuplicateEmailFailsWithoutMutation(t *testing.T) {
	repo := newFakeUserRepo()
	svc, _ := newTestService(repo, nil)
	ctx := context.Background()

	_, err := svc.Register(ctx, "First", "student1@uni.edu", "Secret123!")
	require.NoError(t, err)
	original := repo.users["student1@uni.edu"]

	_, err = svc.Register(ctx, "Second", "Student1@Uni.edu", "Other456!")
	assert.ErrorIs(t, err, services.ErrAccountExists)

	// The stored account is untouched
	assert.Same(t, original, repo.users["student1@uni.edu"])
	assert.Len(t, repo.users, 1)
}

func TestRegisterDuplicateRaceMapsToAccountExists(t *testing.T) {
	repo := newFakeUserRepo()
	repo.createErr = repositories.ErrDuplicateEmail
	svc, _ := newTestService(repo, nil)

	_, err := svc.Register(context.Background(), "Racer", "race@uni.edu", "Secret123!")
	assert.ErrorIs(t, err, services.ErrAccountExists)
}

func TestRegisterRejectsEmptyFields(t *testing.T) {
	repo := newFakeUserRepo()
	svc, _ := newTestService(repo, nil)
	ctx := context.Background()

	_, err := svc.Register(ctx, "", "a@b.co", "pw")
	assert.ErrorIs(t, err, services.ErrInvalidInput)

	_, err = svc.Register(ctx, "Name", "", "pw")
	assert.ErrorIs(t, err, services.ErrInvalidInput)

	_, err = svc.Register(ctx, "Name", "a@b.co", "")
	assert.ErrorIs(t, err, services.ErrInvalidInput)
}

func TestLoginWrongPassword(t *testing.T) {
	repo := newFakeUserRepo()
	svc, _ := newTestService(repo, nil)
	ctx := context.Background()

	_, err := svc.Register(ctx, "Student One", "student1@uni.edu", "Secret123!")
	require.NoError(t, err)

	session, err := svc.Login(ctx, "student1@uni.edu", "WrongPassword!")
	assert.ErrorIs(t, err, services.ErrInvalidCredentials)
	assert.Nil(t, session)
}

func TestLoginUnknownEmailMatchesWrongPassword(t *testing.T) {
	repo := newFakeUserRepo()
	svc, _ := newTestService(repo, nil)

	// Unknown email and wrong password surface the same error kind
	_, err := svc.Login(context.Background(), "nobody@uni.edu", "Secret123!")
	assert.ErrorIs(t, err, services.ErrInvalidCredentials)
}

func TestLoginAllowListOverridesStoredRole(t *testing.T) {
	repo := newFakeUserRepo()
	svc, issuer := newTestService(repo, nil)
	ctx := context.Background()

	// Account stored as student, then the email lands on the allow-list
	_, err := svc.Register(ctx, "Promoted", "promoted@uni.edu", "Secret123!")
	require.NoError(t, err)
	repo.users["promoted@uni.edu"].Role = models.RoleStudent

	svc.cfg.AdminEmails = append(svc.cfg.AdminEmails, "promoted@uni.edu")

	session, err := svc.Login(ctx, "promoted@uni.edu", "Secret123!")
	require.NoError(t, err)

	identity, err := issuer.Validate(session.Token)
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, identity.Role)
}

func TestGoogleLoginProvisionsAccount(t *testing.T) {
	repo := newFakeUserRepo()
	verifier := &fakeVerifier{identity: &googleid.Identity{
		Email: "Student1@Uni.EDU",
		Name:  "Student One",
	}}
	svc, issuer := newTestService(repo, verifier)

	session, err := svc.GoogleLogin(context.Background(), "some-google-id-token")
	require.NoError(t, err)

	user := session.User
	assert.Equal(t, "student1@uni.edu", user.Email)
	assert.Equal(t, models.AuthTypeGoogle, user.AuthType)
	assert.Equal(t, models.RoleStudent, user.Role)
	assert.Empty(t, user.PasswordHash)

	identity, err := issuer.Validate(session.Token)
	require.NoError(t, err)
	assert.Equal(t, "student1@uni.edu", identity.Email)
}

func TestGoogleLoginReusesStoredRole(t *testing.T) {
	repo := newFakeUserRepo()
	existing := models.NewUser("Promoted", "promoted@uni.edu", models.AuthTypeGoogle, models.RoleAdmin)
	repo.users[existing.Email] = existing

	verifier := &fakeVerifier{identity: &googleid.Identity{Email: "promoted@uni.edu", Name: "Promoted"}}
	svc, issuer := newTestService(repo, verifier)

	session, err := svc.GoogleLogin(context.Background(), "some-google-id-token")
	require.NoError(t, err)

	identity, err := issuer.Validate(session.Token)
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, identity.Role)
	assert.Equal(t, 0, repo.createCall)
}

func TestGoogleLoginAllowListWinsOnProvision(t *testing.T) {
	repo := newFakeUserRepo()
	verifier := &fakeVerifier{identity: &googleid.Identity{Email: "admin2@gmail.com", Name: "Admin Two"}}
	svc, _ := newTestService(repo, verifier)

	session, err := svc.GoogleLogin(context.Background(), "some-google-id-token")
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, session.User.Role)
}

func TestGoogleLoginVerificationFailure(t *testing.T) {
	repo := newFakeUserRepo()
	verifier := &fakeVerifier{err: errors.New("signature mismatch")}
	svc, _ := newTestService(repo, verifier)

	_, err := svc.GoogleLogin(context.Background(), "bad-token")
	assert.ErrorIs(t, err, services.ErrInvalidExternalToken)
}

func TestGoogleLoginEmptyToken(t *testing.T) {
	repo := newFakeUserRepo()
	svc, _ := newTestService(repo, &fakeVerifier{})

	_, err := svc.GoogleLogin(context.Background(), "")
	assert.ErrorIs(t, err, services.ErrInvalidExternalToken)
}

func TestGoogleLoginLostProvisioningRace(t *testing.T) {
	repo := newFakeUserRepo()
	repo.createErr = repositories.ErrDuplicateEmail

	winner := models.NewUser("Winner", "race@uni.edu", models.AuthTypeGoogle, models.RoleStudent)
	repo.users[winner.Email] = winner

	verifier := &fakeVerifier{identity: &googleid.Identity{Email: "race@uni.edu", Name: "Racer"}}
	svc, _ := newTestService(&raceUserRepo{fakeUserRepo: repo}, verifier)

	// First lookup misses, create loses the race, re-fetch finds the winner
	session, err := svc.GoogleLogin(context.Background(), "some-google-id-token")
	require.NoError(t, err)
	assert.Equal(t, winner.ID, session.User.ID)
}

// raceUserRepo misses the first GetByEmail and hits afterwards, simulating
// a provisioning race lost to a concurrent request
type raceUserRepo struct {
	*fakeUserRepo
	lookups int
}

func (r *raceUserRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	r.lookups++
	if r.lookups == 1 {
		return nil, repositories.ErrNotFound
	}
	u, ok := r.users[models.NormalizeEmail(email)]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return u, nil
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("Secret123!")
	require.NoError(t, err)
	assert.NotEqual(t, "Secret123!", hash)

	assert.NoError(t, VerifyPassword(hash, "Secret123!"))
	assert.Error(t, VerifyPassword(hash, "secret123!"))
	assert.Error(t, VerifyPassword("", "Secret123!"))

	_, err = HashPassword("")
	assert.Error(t, err)
}
