package certificate

import (
	"context"
	"errors"
	"io"
	"path"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/campusdocs/cert-portal/models"
	"github.com/campusdocs/cert-portal/repositories"
	"github.com/campusdocs/cert-portal/services"
)

// intakeOffice is the office recorded on a submission's initial history entry
const intakeOffice = "Academic Section"

// FileStore persists uploaded certificate files
type FileStore interface {
	Save(originalName string, content io.Reader) (string, error)
	Remove(filename string) error
}

// AuditRecorder records portal events; recording is best-effort
type AuditRecorder interface {
	Record(log *models.AuditLog) error
}

// Actor is the authenticated principal performing an operation
type Actor struct {
	Email string
	Role  models.Role
}

// UploadInput carries a new certificate submission
type UploadInput struct {
	StudentEmail string
	Name         string
	Status       models.CertificateStatus
	Feedback     string
	Description  string
	FileName     string
	File         io.Reader
}

// ReviewInput carries an admin review decision
type ReviewInput struct {
	Status   *models.CertificateStatus
	Feedback *string
}

// Service implements certificate submission and review operations
type Service struct {
	certs        repositories.CertificateRepository
	txManager    repositories.TransactionManager
	store        FileStore
	audit        AuditRecorder
	publicPrefix string
	logger       *zap.Logger
	now          func() time.Time
}

// NewService creates a new certificate service
func NewService(
	certs repositories.CertificateRepository,
	txManager repositories.TransactionManager,
	store FileStore,
	audit AuditRecorder,
	publicPrefix string,
	logger *zap.Logger,
) *Service {
	return &Service{
		certs:        certs,
		txManager:    txManager,
		store:        store,
		audit:        audit,
		publicPrefix: publicPrefix,
		logger:       logger,
		now:          time.Now,
	}
}

// Upload stores the file and persists a new submission. Student uploads
// are always persisted as Pending with empty feedback and with the
// student's own email, regardless of what was submitted; admins may set
// status and target email on intake.
func (s *Service) Upload(ctx context.Context, actor Actor, input UploadInput) (*models.Certificate, error) {
	if input.File == nil {
		return nil, services.ErrMissingFile
	}
	if input.FileName == "" {
		return nil, services.ErrInvalidInput.WithDetail("field", "file_name")
	}

	studentEmail := models.NormalizeEmail(input.StudentEmail)
	status := input.Status
	feedback := input.Feedback

	if actor.Role == models.RoleStudent {
		studentEmail = models.NormalizeEmail(actor.Email)
		status = models.StatusPending
		feedback = ""
	}
	if studentEmail == "" {
		return nil, services.ErrInvalidInput.WithDetail("field", "student_email")
	}
	if status == "" {
		status = models.StatusPending
	}
	if !status.IsValid() {
		return nil, services.ErrInvalidStatus.WithDetail("status", string(status))
	}

	storedName, err := s.store.Save(input.FileName, input.File)
	if err != nil {
		return nil, services.NewDomainError(services.ErrorTypeInternal, "file storage error", err)
	}

	name := input.Name
	if name == "" {
		name = input.FileName
	}

	now := s.now()
	cert := models.NewCertificate(studentEmail, name, status)
	cert.Feedback = feedback
	cert.Description = input.Description
	cert.DueDate = "Submitted on " + now.Format("Mon Jan 2 2006")
	cert.FileName = storedName
	cert.FileURL = path.Join(s.publicPrefix, storedName)
	cert.AddSubmission(models.SubmissionRecord{
		Date:   now.Format("Mon Jan 2 2006"),
		Office: intakeOffice,
		Status: string(status),
	})

	if err := s.certs.Create(ctx, cert); err != nil {
		// The row never existed; do not leave the file orphaned
		if rmErr := s.store.Remove(storedName); rmErr != nil {
			s.logger.Error("failed to remove orphaned file",
				zap.String("file_name", storedName),
				zap.Error(rmErr))
		}
		return nil, services.WrapInternal("certificate creation failed", err)
	}

	s.logger.Info("certificate uploaded",
		zap.String("id", cert.ID.String()),
		zap.String("student_email", cert.StudentEmail),
		zap.String("status", string(cert.Status)))
	s.record(models.NewAuditLog(actor.Email, actor.Role, models.AuditActionCertificateUploaded, "certificate").
		WithResource(cert.ID).
		WithDetails(map[string]string{"name": cert.Name, "status": string(cert.Status)}))

	return cert, nil
}

// List returns every submission, newest first. Admin only.
func (s *Service) List(ctx context.Context, actor Actor) ([]*models.Certificate, error) {
	if actor.Role != models.RoleAdmin {
		return nil, services.ErrForbidden
	}
	certs, err := s.certs.List(ctx)
	if err != nil {
		return nil, services.WrapInternal("certificate listing failed", err)
	}
	return certs, nil
}

// ListByStudent returns a student's submissions, newest first. Students
// may only list their own; admins may list anyone's.
func (s *Service) ListByStudent(ctx context.Context, actor Actor, email string) ([]*models.Certificate, error) {
	email = models.NormalizeEmail(email)
	if actor.Role != models.RoleAdmin && models.NormalizeEmail(actor.Email) != email {
		return nil, services.ErrForbidden
	}
	certs, err := s.certs.ListByStudentEmail(ctx, email)
	if err != nil {
		return nil, services.WrapInternal("certificate listing failed", err)
	}
	return certs, nil
}

// Get retrieves a single submission. Students may only fetch their own.
func (s *Service) Get(ctx context.Context, actor Actor, id uuid.UUID) (*models.Certificate, error) {
	cert, err := s.certs.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, services.ErrCertificateNotFound
		}
		return nil, services.WrapInternal("certificate lookup failed", err)
	}
	if actor.Role != models.RoleAdmin && models.NormalizeEmail(actor.Email) != cert.StudentEmail {
		return nil, services.ErrForbidden
	}
	return cert, nil
}

// Review updates a submission's status and/or feedback. Admin only.
// The read and write run in one transaction so concurrent reviews never
// interleave their submission history.
func (s *Service) Review(ctx context.Context, actor Actor, id uuid.UUID, input ReviewInput) (*models.Certificate, error) {
	if actor.Role != models.RoleAdmin {
		return nil, services.ErrForbidden
	}
	if input.Status != nil && !input.Status.IsValid() {
		return nil, services.ErrInvalidStatus.WithDetail("status", string(*input.Status))
	}

	cert, err := services.WithTransactionResult(ctx, s.txManager, func(ctx context.Context, tx repositories.Transaction) (*models.Certificate, error) {
		repo := s.certs.WithTx(tx)

		cert, err := repo.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				return nil, services.ErrCertificateNotFound
			}
			return nil, services.WrapInternal("certificate lookup failed", err)
		}

		if input.Status != nil {
			cert.Status = *input.Status
		}
		if input.Feedback != nil {
			cert.Feedback = *input.Feedback
		}

		now := s.now()
		cert.UpdatedAt = now
		cert.AddSubmission(models.SubmissionRecord{
			Date:   now.Format("Mon Jan 2 2006"),
			Office: intakeOffice,
			Status: string(cert.Status),
		})

		if err := repo.Update(ctx, cert); err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				return nil, services.ErrCertificateNotFound
			}
			return nil, services.WrapInternal("certificate update failed", err)
		}
		return cert, nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("certificate reviewed",
		zap.String("id", cert.ID.String()),
		zap.String("status", string(cert.Status)),
		zap.String("reviewer", actor.Email))
	s.record(models.NewAuditLog(actor.Email, actor.Role, models.AuditActionCertificateReviewed, "certificate").
		WithResource(cert.ID).
		WithDetails(map[string]string{"status": string(cert.Status), "feedback": cert.Feedback}))

	return cert, nil
}

// Delete removes a submission and its stored file. Admin only.
func (s *Service) Delete(ctx context.Context, actor Actor, id uuid.UUID) error {
	if actor.Role != models.RoleAdmin {
		return services.ErrForbidden
	}

	var cert *models.Certificate
	err := services.WithTransaction(ctx, s.txManager, func(ctx context.Context, tx repositories.Transaction) error {
		repo := s.certs.WithTx(tx)

		found, err := repo.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				return services.ErrCertificateNotFound
			}
			return services.WrapInternal("certificate lookup failed", err)
		}
		cert = found

		if err := repo.Delete(ctx, id); err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				return services.ErrCertificateNotFound
			}
			return services.WrapInternal("certificate deletion failed", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if err := s.store.Remove(cert.FileName); err != nil {
		// Row is gone; a leftover file is only worth a log line
		s.logger.Error("failed to remove certificate file",
			zap.String("id", id.String()),
			zap.String("file_name", cert.FileName),
			zap.Error(err))
	}

	s.logger.Info("certificate deleted",
		zap.String("id", id.String()),
		zap.String("deleted_by", actor.Email))
	s.record(models.NewAuditLog(actor.Email, actor.Role, models.AuditActionCertificateDeleted, "certificate").
		WithResource(id).
		WithDetails(map[string]string{"name": cert.Name, "student_email": cert.StudentEmail}))

	return nil
}

func (s *Service) record(log *models.AuditLog) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(log)
}
