package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/campusdocs/cert-portal/models"
	"github.com/campusdocs/cert-portal/repositories"
)

// CertificateRepository implements the repositories.CertificateRepository interface
type CertificateRepository struct {
	db     *DB
	tx     *Transaction
	logger *zap.Logger
}

// NewCertificateRepository creates a new certificate repository
func NewCertificateRepository(db *DB, logger *zap.Logger) repositories.CertificateRepository {
	return &CertificateRepository{
		db:     db,
		logger: logger,
	}
}

const certificateColumns = `id, student_email, name, status, feedback, due_date, priority, description, file_url, file_name, submissions, created_at, updated_at`

// Create persists a new certificate submission
func (r *CertificateRepository) Create(ctx context.Context, cert *models.Certificate) error {
	query := `
		INSERT INTO certificates (` + certificateColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	submissions, err := marshalSubmissions(cert.Submissions)
	if err != nil {
		return err
	}

	executor := r.executor(ctx)
	_, err = executor.ExecContext(ctx, query,
		cert.ID,
		models.NormalizeEmail(cert.StudentEmail),
		cert.Name,
		cert.Status,
		cert.Feedback,
		cert.DueDate,
		cert.Priority,
		cert.Description,
		cert.FileURL,
		cert.FileName,
		submissions,
		cert.CreatedAt,
		cert.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create certificate: %w", err)
	}

	r.logger.Debug("certificate created",
		zap.String("id", cert.ID.String()),
		zap.String("student_email", cert.StudentEmail))
	return nil
}

// GetByID retrieves a certificate by ID
func (r *CertificateRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Certificate, error) {
	query := `
		SELECT ` + certificateColumns + `
		FROM certificates
		WHERE id = $1
	`

	executor := r.executor(ctx)
	row := executor.QueryRowContext(ctx, query, id)

	cert, err := scanCertificate(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repositories.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get certificate: %w", err)
	}

	return cert, nil
}

// List retrieves all certificates, newest first
func (r *CertificateRepository) List(ctx context.Context) ([]*models.Certificate, error) {
	query := `
		SELECT ` + certificateColumns + `
		FROM certificates
		ORDER BY created_at DESC
	`

	executor := r.executor(ctx)
	rows, err := executor.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query certificates: %w", err)
	}
	defer rows.Close()

	return collectCertificates(rows)
}

// ListByStudentEmail retrieves a student's certificates, newest first.
// The email is case-folded before matching.
func (r *CertificateRepository) ListByStudentEmail(ctx context.Context, email string) ([]*models.Certificate, error) {
	query := `
		SELECT ` + certificateColumns + `
		FROM certificates
		WHERE lower(student_email) = $1
		ORDER BY created_at DESC
	`

	executor := r.executor(ctx)
	rows, err := executor.QueryContext(ctx, query, models.NormalizeEmail(email))
	if err != nil {
		return nil, fmt.Errorf("failed to query certificates: %w", err)
	}
	defer rows.Close()

	return collectCertificates(rows)
}

// Update updates a certificate's review fields and submission history
func (r *CertificateRepository) Update(ctx context.Context, cert *models.Certificate) error {
	query := `
		UPDATE certificates
		SET status = $2,
		    feedback = $3,
		    submissions = $4,
		    updated_at = $5
		WHERE id = $1
	`

	submissions, err := marshalSubmissions(cert.Submissions)
	if err != nil {
		return err
	}

	executor := r.executor(ctx)
	result, err := executor.ExecContext(ctx, query,
		cert.ID,
		cert.Status,
		cert.Feedback,
		submissions,
		cert.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to update certificate: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return repositories.ErrNotFound
	}

	r.logger.Debug("certificate updated",
		zap.String("id", cert.ID.String()),
		zap.String("status", string(cert.Status)))
	return nil
}

// Delete removes a certificate
func (r *CertificateRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM certificates WHERE id = $1`

	executor := r.executor(ctx)
	result, err := executor.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete certificate: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return repositories.ErrNotFound
	}

	r.logger.Debug("certificate deleted", zap.String("id", id.String()))
	return nil
}

// WithTx returns a new repository instance bound to the transaction
func (r *CertificateRepository) WithTx(tx repositories.Transaction) repositories.CertificateRepository {
	bound := &CertificateRepository{
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
func (r *CertificateRepository) executor(ctx context.Context) Executor {
	if r.tx != nil {
		return r.tx.GetTx()
	}
	return GetExecutor(ctx, r.db)
}

// rowScanner matches both *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanCertificate(row rowScanner) (*models.Certificate, error) {
	cert := &models.Certificate{}
	var submissions []byte

	err := row.Scan(
		&cert.ID,
		&cert.StudentEmail,
		&cert.Name,
		&cert.Status,
		&cert.Feedback,
		&cert.DueDate,
		&cert.Priority,
		&cert.Description,
		&cert.FileURL,
		&cert.FileName,
		&submissions,
		&cert.CreatedAt,
		&cert.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(submissions) > 0 {
		if err := json.Unmarshal(submissions, &cert.Submissions); err != nil {
			return nil, fmt.Errorf("failed to unmarshal submissions: %w", err)
		}
	}

	return cert, nil
}

func collectCertificates(rows *sql.Rows) ([]*models.Certificate, error) {
	var certs []*models.Certificate
	for rows.Next() {
		cert, err := scanCertificate(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan certificate: %w", err)
		}
		certs = append(certs, cert)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating certificate rows: %w", err)
	}

	return certs, nil
}

func marshalSubmissions(records []models.SubmissionRecord) ([]byte, error) {
	if records == nil {
		return []byte("[]"), nil
	}
	data, err := json.Marshal(records)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal submissions: %w", err)
	}
	return data, nil
}
