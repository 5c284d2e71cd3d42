package auth

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/campusdocs/cert-portal/config"
	"github.com/campusdocs/cert-portal/googleid"
	"github.com/campusdocs/cert-portal/models"
	"github.com/campusdocs/cert-portal/repositories"
	"github.com/campusdocs/cert-portal/services"
)

// TokenMinter mints session tokens for an authenticated identity
type TokenMinter interface {
	Mint(name, email string, role models.Role, ttl time.Duration) (string, error)
}

// GoogleVerifier verifies a Google ID token and returns the embedded identity
type GoogleVerifier interface {
	Verify(ctx context.Context, idToken string) (*googleid.Identity, error)
}

// AuditRecorder records portal events; recording is best-effort
type AuditRecorder interface {
	Record(log *models.AuditLog) error
}

// Session is the result of a successful login or registration. Local and
// Google logins produce the same shape: downstream consumers cannot tell
// the origin apart.
type Session struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// Service is the credential issuer: it authenticates a principal via local
// credentials or a Google identity token and mints a session token.
type Service struct {
	users    repositories.UserRepository
	minter   TokenMinter
	verifier GoogleVerifier
	audit    AuditRecorder
	cfg      config.AuthConfig
	logger   *zap.Logger
}

// NewService creates a new credential issuer. The admin allow-list comes in
// through cfg; it is the only place role assignment consults.
func NewService(
	users repositories.UserRepository,
	minter TokenMinter,
	verifier GoogleVerifier,
	audit AuditRecorder,
	cfg config.AuthConfig,
	logger *zap.Logger,
) *Service {
	return &Service{
		users:    users,
		minter:   minter,
		verifier: verifier,
		audit:    audit,
		cfg:      cfg,
		logger:   logger,
	}
}

// Register creates a local account and mints a session token for it.
// Fails with AccountExists when the email is already registered; the
// failure performs no mutation.
func (s *Service) Register(ctx context.Context, name, email, password string) (*Session, error) {
	email = models.NormalizeEmail(email)
	if name == "" || email == "" || password == "" {
		return nil, services.ErrInvalidInput
	}

	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, services.ErrAccountExists
	} else if !errors.Is(err, repositories.ErrNotFound) {
		return nil, services.WrapInternal("account lookup failed", err)
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, services.WrapInternal("password hashing failed", err)
	}

	role := s.assignRole(email)
	user := models.NewUser(name, email, models.AuthTypeLocal, role)
	user.PasswordHash = hash

	if err := s.users.Create(ctx, user); err != nil {
		// A lost registration race surfaces via the uniqueness constraint
		if errors.Is(err, repositories.ErrDuplicateEmail) {
			return nil, services.ErrAccountExists
		}
		return nil, services.WrapInternal("account creation failed", err)
	}

	s.logger.Info("account registered",
		zap.String("email", user.Email),
		zap.String("role", string(user.Role)))
	s.record(models.NewAuditLog(user.Email, user.Role, models.AuditActionUserRegistered, "user").WithResource(user.ID))

	return s.mintSession(user, s.cfg.LocalTokenTTL)
}

// Login authenticates local credentials and mints a session token.
// Unknown email and wrong password both fail with InvalidCredentials so
// callers cannot probe which emails are registered.
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	email = models.NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, services.ErrInvalidInput
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, services.ErrInvalidCredentials
		}
		return nil, services.WrapInternal("account lookup failed", err)
	}

	if err := VerifyPassword(user.PasswordHash, password); err != nil {
		return nil, services.ErrInvalidCredentials
	}

	// Allow-list wins over the stored role; otherwise the stored role stands
	role := user.Role
	if s.cfg.IsAdminEmail(email) {
		role = models.RoleAdmin
	}
	user.Role = role

	s.logger.Info("local login",
		zap.String("email", user.Email),
		zap.String("role", string(role)))

	return s.mintSession(user, s.cfg.LocalTokenTTL)
}

// GoogleLogin verifies a Google ID token, auto-provisions an account on
// first sighting, and mints a session token in the same shape as local
// login.
func (s *Service) GoogleLogin(ctx context.Context, idToken string) (*Session, error) {
	if idToken == "" {
		return nil, services.ErrInvalidExternalToken
	}

	identity, err := s.verifier.Verify(ctx, idToken)
	if err != nil {
		s.logger.Warn("google token verification failed", zap.Error(err))
		return nil, services.ErrInvalidExternalToken.WithDetail("cause", err.Error())
	}

	email := models.NormalizeEmail(identity.Email)

	user, err := s.users.GetByEmail(ctx, email)
	switch {
	case err == nil:
		// Subsequent sighting: reuse the stored role

	case errors.Is(err, repositories.ErrNotFound):
		user = models.NewUser(identity.Name, email, models.AuthTypeGoogle, s.assignRole(email))
		if err := s.users.Create(ctx, user); err != nil {
			if errors.Is(err, repositories.ErrDuplicateEmail) {
				// Lost a provisioning race; the other request won
				if user, err = s.users.GetByEmail(ctx, email); err != nil {
					return nil, services.WrapInternal("account lookup failed", err)
				}
			} else {
				return nil, services.WrapInternal("account provisioning failed", err)
			}
		} else {
			s.logger.Info("google account provisioned",
				zap.String("email", user.Email),
				zap.String("role", string(user.Role)))
			s.record(models.NewAuditLog(user.Email, user.Role, models.AuditActionUserProvisioned, "user").WithResource(user.ID))
		}

	default:
		return nil, services.WrapInternal("account lookup failed", err)
	}

	return s.mintSession(user, s.cfg.GoogleTokenTTL)
}

// assignRole consults the admin allow-list; everyone else is a student
func (s *Service) assignRole(email string) models.Role {
	if s.cfg.IsAdminEmail(email) {
		return models.RoleAdmin
	}
	return models.RoleStudent
}

func (s *Service) mintSession(user *models.User, ttl time.Duration) (*Session, error) {
	token, err := s.minter.Mint(user.Name, user.Email, user.Role, ttl)
	if err != nil {
		return nil, services.WrapInternal("token minting failed", err)
	}
	return &Session{Token: token, User: user}, nil
}

func (s *Service) record(log *models.AuditLog) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(log)
}
