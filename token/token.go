package token

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/campusdocs/cert-portal/models"
)

var (
	// ErrInvalidToken is returned when the token is empty, structurally
	// malformed, or fails signature verification
	ErrInvalidToken = errors.New("invalid token")

	// ErrTokenExpired is returned when the token's expiry is at or before now
	ErrTokenExpired = errors.New("token expired")

	// ErrMissingEmail is returned when the token carries no email claim
	ErrMissingEmail = errors.New("token missing email claim")
)

// Claims are the session token claims. Every token minted by the portal,
// whether the login was local or Google, carries exactly this shape.
type Claims struct {
	Name  string      `json:"name"`
	Email string      `json:"email"`
	Role  models.Role `json:"role"`
	jwt.RegisteredClaims
}

// Identity is the decoded subject of a valid session token
type Identity struct {
	Name      string
	Email     string
	Role      models.Role
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Issuer mints and validates HS256 session tokens. Validation performs no
// network or storage I/O.
type Issuer struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// Option configures an Issuer
type Option func(*Issuer)

// WithClock overrides the time source, used in tests
func WithClock(now func() time.Time) Option {
	return func(i *Issuer) {
		i.now = now
	}
}

// NewIssuer creates a token issuer signing with the given secret
func NewIssuer(secret, issuer string, opts ...Option) *Issuer {
	i := &Issuer{
		secret: []byte(secret),
		issuer: issuer,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Mint signs a session token for the given identity with the given lifetime.
// The email is case-folded before being embedded.
func (i *Issuer) Mint(name, email string, role models.Role, ttl time.Duration) (string, error) {
	email = models.NormalizeEmail(email)
	if email == "" {
		return "", ErrMissingEmail
	}
	now := i.now().UTC()
	claims := Claims{
		Name:  name,
		Email: email,
		Role:  role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   email,
			Issuer:    i.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Validate checks a session token and returns the embedded identity.
// It fails with ErrInvalidToken for empty, malformed, or badly signed input,
// ErrMissingEmail when the email claim is absent, and ErrTokenExpired when
// the current time is at or past the embedded expiry. Expiry is always
// checked, never just structural validity.
func (i *Issuer) Validate(tokenString string) (*Identity, error) {
	if tokenString == "" {
		return nil, ErrInvalidToken
	}
	if strings.Count(tokenString, ".") != 2 {
		return nil, ErrInvalidToken
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(i.now),
	)

	claims := &Claims{}
	tok, err := parser.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return i.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !tok.Valid {
		return nil, ErrInvalidToken
	}

	if claims.Email == "" {
		return nil, ErrMissingEmail
	}
	role := claims.Role
	if role == "" {
		role = models.RoleStudent
	}

	identity := &Identity{
		Name:  claims.Name,
		Email: models.NormalizeEmail(claims.Email),
		Role:  role,
	}
	if claims.IssuedAt != nil {
		identity.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		identity.ExpiresAt = claims.ExpiresAt.Time
	}
	return identity, nil
}
