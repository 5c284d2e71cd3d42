package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/campusdocs/cert-portal/models"
	"github.com/campusdocs/cert-portal/repositories"
)

func TestAuditInsert(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAuditRepository(db, zap.NewNop())

	resourceID := uuid.New()
	entry := models.NewAuditLog("admin2@gmail.com", models.RoleAdmin, models.AuditActionCertificateReviewed, "certificate").
		WithResource(resourceID).
		WithRequestID("req-1").
		WithDetails(map[string]string{"status": "Completed"})

	mock.ExpectExec("INSERT INTO audit_logs").
		WithArgs(entry.ID, "admin2@gmail.com", models.RoleAdmin,
			models.AuditActionCertificateReviewed, "certificate", entry.ResourceID,
			[]byte(entry.Details), "req-1", entry.Timestamp).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Insert(context.Background(), entry))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditInsertEmptyDetailsStoredAsNull(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAuditRepository(db, zap.NewNop())

	entry := models.NewAuditLog("student1@uni.edu", models.RoleStudent, models.AuditActionCertificateUploaded, "certificate")

	mock.ExpectExec("INSERT INTO audit_logs").
		WithArgs(entry.ID, "student1@uni.edu", models.RoleStudent,
			models.AuditActionCertificateUploaded, "certificate", nil,
			nil, "", entry.Timestamp).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Insert(context.Background(), entry))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditGetByActorEmail(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAuditRepository(db, zap.NewNop())

	entry := models.NewAuditLog("admin2@gmail.com", models.RoleAdmin, models.AuditActionCertificateDeleted, "certificate")

	rows := sqlmock.NewRows([]string{
		"id", "actor_email", "actor_role", "action", "resource_type",
		"resource_id", "details", "request_id", "timestamp",
	}).AddRow(entry.ID, entry.ActorEmail, entry.ActorRole, entry.Action,
		entry.ResourceType, nil, nil, "", entry.Timestamp)

	mock.ExpectQuery("FROM audit_logs").
		WithArgs("admin2@gmail.com", 20, 0).
		WillReturnRows(rows)

	logs, err := repo.GetByActorEmail(context.Background(), "Admin2@Gmail.com", 20, 0)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, models.AuditActionCertificateDeleted, logs[0].Action)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionManagerCommit(t *testing.T) {
	db, mock := newMockDB(t)
	tm := NewTransactionManager(db, zap.NewNop())
	repo := NewCertificateRepository(db, zap.NewNop())

	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM certificates").
		WithArgs(id).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := tm.InTransaction(context.Background(), func(ctx context.Context, tx repositories.Transaction) error {
		return repo.WithTx(tx).Delete(ctx, id)
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionManagerRollbackOnError(t *testing.T) {
	db, mock := newMockDB(t)
	tm := NewTransactionManager(db, zap.NewNop())

	boom := errors.New("boom")

	mock.ExpectBegin()
	mock.ExpectRollback()

	err := tm.InTransaction(context.Background(), func(ctx context.Context, tx repositories.Transaction) error {
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetExecutorPrefersContextTransaction(t *testing.T) {
	db, mock := newMockDB(t)
	tm := NewTransactionManager(db, zap.NewNop())
	repo := NewUserRepository(db, zap.NewNop())

	user := models.NewUser("Alice", "alice@uni.edu", models.AuthTypeLocal, models.RoleStudent)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO users").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	// The repository picks the transaction up from the context without an
	// explicit WithTx
	err := tm.InTransaction(context.Background(), func(ctx context.Context, tx repositories.Transaction) error {
		return repo.Create(ctx, user)
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
