package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/campusdocs/cert-portal/models"
	"github.com/campusdocs/cert-portal/repositories"
)

// AuditRepository implements the repositories.AuditRepository interface
type AuditRepository struct {
	db     *DB
	tx     *Transaction
	logger *zap.Logger
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(db *DB, logger *zap.Logger) repositories.AuditRepository {
	return &AuditRepository{
		db:     db,
		logger: logger,
	}
}

const auditColumns = `id, actor_email, actor_role, action, resource_type, resource_id, details, request_id, timestamp`

// Insert inserts a new audit log entry
func (r *AuditRepository) Insert(ctx context.Context, log *models.AuditLog) error {
	query := `
		INSERT INTO audit_logs (` + auditColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	executor := r.executor(ctx)
	_, err := executor.ExecContext(ctx, query,
		log.ID,
		log.ActorEmail,
		log.ActorRole,
		log.Action,
		log.ResourceType,
		log.ResourceID,
		nullableJSON(log.Details),
		log.RequestID,
		log.Timestamp,
	)

	if err != nil {
		return fmt.Errorf("failed to insert audit log: %w", err)
	}

	return nil
}

// GetByActorEmail retrieves audit logs for an actor with pagination
func (r *AuditRepository) GetByActorEmail(ctx context.Context, email string, limit, offset int) ([]*models.AuditLog, error) {
	query := `
		SELECT ` + auditColumns + `
		FROM audit_logs
		WHERE actor_email = $1
		ORDER BY timestamp DESC
		LIMIT $2 OFFSET $3
	`

	executor := r.executor(ctx)
	rows, err := executor.QueryContext(ctx, query, models.NormalizeEmail(email), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit logs: %w", err)
	}
	defer rows.Close()

	return collectAuditLogs(rows)
}

// GetByResourceID retrieves audit logs for a resource
func (r *AuditRepository) GetByResourceID(ctx context.Context, resourceID uuid.UUID) ([]*models.AuditLog, error) {
	query := `
		SELECT ` + auditColumns + `
		FROM audit_logs
		WHERE resource_id = $1
		ORDER BY timestamp DESC
	`

	executor := r.executor(ctx)
	rows, err := executor.QueryContext(ctx, query, resourceID)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit logs: %w", err)
	}
	defer rows.Close()

	return collectAuditLogs(rows)
}

// WithTx returns a new repository instance bound to the transaction
func (r *AuditRepository) WithTx(tx repositories.Transaction) repositories.AuditRepository {
	bound := &AuditRepository{
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
func (r *AuditRepository) executor(ctx context.Context) Executor {
	if r.tx != nil {
		return r.tx.GetTx()
	}
	return GetExecutor(ctx, r.db)
}

func collectAuditLogs(rows *sql.Rows) ([]*models.AuditLog, error) {
	var logs []*models.AuditLog
	for rows.Next() {
		log := &models.AuditLog{}
		var details []byte
		err := rows.Scan(
			&log.ID,
			&log.ActorEmail,
			&log.ActorRole,
			&log.Action,
			&log.ResourceType,
			&log.ResourceID,
			&details,
			&log.RequestID,
			&log.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit log: %w", err)
		}
		log.Details = details
		logs = append(logs, log)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit log rows: %w", err)
	}

	return logs, nil
}

func nullableJSON(data []byte) interface{} {
	if len(data) == 0 {
		return nil
	}
	return data
}
