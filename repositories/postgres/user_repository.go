package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/campusdocs/cert-portal/models"
	"github.com/campusdocs/cert-portal/repositories"
)

// uniqueViolation is the PostgreSQL error code for unique constraint violations
const uniqueViolation = "23505"

// UserRepository implements the repositories.UserRepository interface
type UserRepository struct {
	db     *DB
	tx     *Transaction
	logger *zap.Logger
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *DB, logger *zap.Logger) repositories.UserRepository {
	return &UserRepository{
		db:     db,
		logger: logger,
	}
}

// Create creates a new user. The email is case-folded before insert; a
// duplicate (including one lost in a registration race) surfaces as
// repositories.ErrDuplicateEmail via the unique index on lower(email).
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (id, name, email, password_hash, auth_type, role, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	executor := r.executor(ctx)
	_, err := executor.ExecContext(ctx, query,
		user.ID,
		user.Name,
		models.NormalizeEmail(user.Email),
		user.PasswordHash,
		user.AuthType,
		user.Role,
		user.CreatedAt,
		user.UpdatedAt,
	)

	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			return repositories.ErrDuplicateEmail
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	r.logger.Debug("user created",
		zap.String("id", user.ID.String()),
		zap.String("email", user.Email),
		zap.String("role", string(user.Role)))
	return nil
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	query := `
		SELECT id, name, email, password_hash, auth_type, role, created_at, updated_at
		FROM users
		WHERE id = $1
	`

	executor := r.executor(ctx)
	user := &models.User{}

	err := executor.QueryRowContext(ctx, query, id).Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.PasswordHash,
		&user.AuthType,
		&user.Role,
		&user.CreatedAt,
		&user.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repositories.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return user, nil
}

// GetByEmail retrieves a user by email. Lookup is case-insensitive: the
// input is case-folded and matched against lower(email).
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `
		SELECT id, name, email, password_hash, auth_type, role, created_at, updated_at
		FROM users
		WHERE lower(email) = $1
	`

	executor := r.executor(ctx)
	user := &models.User{}

	err := executor.QueryRowContext(ctx, query, models.NormalizeEmail(email)).Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.PasswordHash,
		&user.AuthType,
		&user.Role,
		&user.CreatedAt,
		&user.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repositories.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return user, nil
}

// WithTx returns a new repository instance bound to the transaction
func (r *UserRepository) WithTx(tx repositories.Transaction) repositories.UserRepository {
	bound := &UserRepository{
		db:     r.db,
		logger: r.logger,
	}
	if pgTx, ok := tx.(*Transaction); ok {
		bound.tx = pgTx
	}
	return bound
}

// executor prefers the bound transaction, then a context-carried
// transaction, then the pooled connection
func (r *UserRepository) executor(ctx context.Context) Executor {
	if r.tx != nil {
		return r.tx.GetTx()
	}
	return GetExecutor(ctx, r.db)
}
