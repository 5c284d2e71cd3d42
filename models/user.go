package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Role represents the permission class of an account
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleStudent Role = "student"
)

// IsValid reports whether the role is one of the known values
func (r Role) IsValid() bool {
	return r == RoleAdmin || r == RoleStudent
}

// AuthType identifies where an account's credentials originate
type AuthType string

const (
	AuthTypeLocal  AuthType = "local"
	AuthTypeGoogle AuthType = "google"
)

// User represents a portal account. Emails are stored lowercased; PasswordHash
// is empty for accounts provisioned from Google Sign-In.
type User struct {
	ID           uuid.UUID `json:"id" db:"id"`
	Name         string    `json:"name" db:"name"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"`
	AuthType     AuthType  `json:"auth_type" db:"auth_type"`
	Role         Role      `json:"role" db:"role"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// TableName returns the table name for the User model
func (User) TableName() string {
	return "users"
}

// NewUser creates a new User instance with a normalized email
func NewUser(name, email string, authType AuthType, role Role) *User {
	now := time.Now()
	return &User{
		ID:        uuid.New(),
		Name:      name,
		Email:     NormalizeEmail(email),
		AuthType:  authType,
		Role:      role,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// IsAdmin returns true if the user has admin role
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// NormalizeEmail is the single authoritative email normalization rule:
// emails are case-folded and trimmed at every boundary (storage, lookup,
// allow-list checks).
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
