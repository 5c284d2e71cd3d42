package repositories

import (
	"context"

	"github.com/google/uuid"

	"github.com/campusdocs/cert-portal/models"
)

// TransactionManager manages database transactions
type TransactionManager interface {
	// Begin starts a new transaction
	Begin(ctx context.Context) (Transaction, error)

	// InTransaction executes a function within a transaction
	// Automatically commits if function succeeds, rolls back on error
	InTransaction(ctx context.Context, fn func(ctx context.Context, tx Transaction) error) error
}

// Transaction represents a database transaction
type Transaction interface {
	// Commit commits the transaction
	Commit() error

	// Rollback rolls back the transaction
	Rollback() error

	// Context returns the transaction context
	Context() context.Context
}

// UserRepository handles account data operations. Implementations must
// enforce the email uniqueness constraint and case-fold emails at the
// storage boundary, surfacing duplicates as ErrDuplicateEmail.
type UserRepository interface {
	// Create creates a new user
	Create(ctx context.Context, user *models.User) error

	// GetByID retrieves a user by ID
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)

	// GetByEmail retrieves a user by email (case-insensitive)
	GetByEmail(ctx context.Context, email string) (*models.User, error)

	// WithTx returns a new repository instance bound to the transaction
	WithTx(tx Transaction) UserRepository
}

// CertificateRepository handles certificate submission data operations
type CertificateRepository interface {
	// Create persists a new certificate submission
	Create(ctx context.Context, cert *models.Certificate) error

	// GetByID retrieves a certificate by ID
	GetByID(ctx context.Context, id uuid.UUID) (*models.Certificate, error)

	// List retrieves all certificates, newest first
	List(ctx context.Context) ([]*models.Certificate, error)

	// ListByStudentEmail retrieves a student's certificates, newest first
	ListByStudentEmail(ctx context.Context, email string) ([]*models.Certificate, error)

	// Update updates a certificate's review fields and submission history
	Update(ctx context.Context, cert *models.Certificate) error

	// Delete removes a certificate
	Delete(ctx context.Context, id uuid.UUID) error

	// WithTx returns a new repository instance bound to the transaction
	WithTx(tx Transaction) CertificateRepository
}

// AuditRepository handles audit log data operations
type AuditRepository interface {
	// Insert inserts a new audit log entry
	Insert(ctx context.Context, log *models.AuditLog) error

	// GetByActorEmail retrieves audit logs for an actor with pagination
	GetByActorEmail(ctx context.Context, email string, limit, offset int) ([]*models.AuditLog, error)

	// GetByResourceID retrieves audit logs for a resource
	GetByResourceID(ctx context.Context, resourceID uuid.UUID) ([]*models.AuditLog, error)

	// WithTx returns a new repository instance bound to the transaction
	WithTx(tx Transaction) AuditRepository
}

// Repositories bundles all repository instances
type Repositories struct {
	Users        UserRepository
	Certificates CertificateRepository
	AuditLogs    AuditRepository
}
