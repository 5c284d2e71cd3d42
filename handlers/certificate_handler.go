package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/campusdocs/cert-portal/middleware"
	"github.com/campusdocs/cert-portal/models"
	"github.com/campusdocs/cert-portal/services/certificate"
	"github.com/campusdocs/cert-portal/utils"
)

// ReviewCertificateRequest represents an admin review update
type ReviewCertificateRequest struct {
	Status   *models.CertificateStatus `json:"status,omitempty" validate:"omitempty,oneof=Pending 'In Progress' Completed Rejected"`
	Feedback *string                   `json:"feedback,omitempty" validate:"omitempty,max=2000"`
}

// CertificateService defines the interface for certificate operations
type CertificateService interface {
	Upload(ctx context.Context, actor certificate.Actor, input certificate.UploadInput) (*models.Certificate, error)
	List(ctx context.Context, actor certificate.Actor) ([]*models.Certificate, error)
	ListByStudent(ctx context.Context, actor certificate.Actor, email string) ([]*models.Certificate, error)
	Get(ctx context.Context, actor certificate.Actor, id uuid.UUID) (*models.Certificate, error)
	Review(ctx context.Context, actor certificate.Actor, id uuid.UUID, input certificate.ReviewInput) (*models.Certificate, error)
	Delete(ctx context.Context, actor certificate.Actor, id uuid.UUID) error
}

// CertificateHandler handles certificate HTTP requests
type CertificateHandler struct {
	certService CertificateService
	maxFileSize int64
	logger      *zap.Logger
}

// NewCertificateHandler creates a new CertificateHandler
func NewCertificateHandler(certService CertificateService, maxFileSize int64, logger *zap.Logger) *CertificateHandler {
	return &CertificateHandler{
		certService: certService,
		maxFileSize: maxFileSize,
		logger:      logger,
	}
}

// HandleUpload handles POST /api/certificates. The file travels in the
// "file" multipart field; the remaining fields are plain form values.
func (h *CertificateHandler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestIDFromContext(ctx)

	actor, ok := h.actorFromContext(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxFileSize)
	if err := r.ParseMultipartForm(h.maxFileSize); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			_ = utils.WriteError(w, http.StatusRequestEntityTooLarge, "File too large", nil)
			return
		}
		_ = utils.WriteBadRequest(w, "Invalid multipart form", nil)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		_ = utils.WriteBadRequest(w, "Missing file field", nil)
		return
	}
	defer file.Close()

	input := certificate.UploadInput{
		StudentEmail: r.FormValue("studentEmail"),
		Name:         r.FormValue("name"),
		Status:       models.CertificateStatus(r.FormValue("status")),
		Feedback:     r.FormValue("feedback"),
		Description:  r.FormValue("description"),
		FileName:     header.Filename,
		File:         file,
	}

	cert, err := h.certService.Upload(ctx, actor, input)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	h.logger.Info("certificate upload accepted",
		zap.String("request_id", requestID),
		zap.String("id", cert.ID.String()))

	_ = utils.WriteJSON(w, http.StatusCreated, cert)
}

// HandleList handles GET /api/certificates (admin only)
func (h *CertificateHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	actor, ok := h.actorFromContext(w, r)
	if !ok {
		return
	}

	certs, err := h.certService.List(ctx, actor)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteJSON(w, http.StatusOK, certs)
}

// HandleListByStudent handles GET /api/certificates/student/{email}
func (h *CertificateHandler) HandleListByStudent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	actor, ok := h.actorFromContext(w, r)
	if !ok {
		return
	}

	email := chi.URLParam(r, "email")
	if email == "" {
		_ = utils.WriteBadRequest(w, "Missing email parameter", nil)
		return
	}

	certs, err := h.certService.ListByStudent(ctx, actor, email)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteJSON(w, http.StatusOK, certs)
}

// HandleGet handles GET /api/certificates/{id}
func (h *CertificateHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	actor, ok := h.actorFromContext(w, r)
	if !ok {
		return
	}

	id, ok := h.parseID(w, r)
	if !ok {
		return
	}

	cert, err := h.certService.Get(ctx, actor, id)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteJSON(w, http.StatusOK, cert)
}

// HandleReview handles PATCH /api/certificates/{id} (admin only)
func (h *CertificateHandler) HandleReview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestIDFromContext(ctx)

	actor, ok := h.actorFromContext(w, r)
	if !ok {
		return
	}

	id, ok := h.parseID(w, r)
	if !ok {
		return
	}

	var req ReviewCertificateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}
	if req.Status == nil && req.Feedback == nil {
		_ = utils.WriteBadRequest(w, "Nothing to update", nil)
		return
	}

	cert, err := h.certService.Review(ctx, actor, id, certificate.ReviewInput{
		Status:   req.Status,
		Feedback: req.Feedback,
	})
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	h.logger.Info("certificate review applied",
		zap.String("request_id", requestID),
		zap.String("id", cert.ID.String()),
		zap.String("status", string(cert.Status)))

	_ = utils.WriteJSON(w, http.StatusOK, cert)
}

// HandleDelete handles DELETE /api/certificates/{id} (admin only)
func (h *CertificateHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestIDFromContext(ctx)

	actor, ok := h.actorFromContext(w, r)
	if !ok {
		return
	}

	id, ok := h.parseID(w, r)
	if !ok {
		return
	}

	if err := h.certService.Delete(ctx, actor, id); err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	h.logger.Info("certificate deleted",
		zap.String("request_id", requestID),
		zap.String("id", id.String()))

	utils.WriteNoContent(w)
}

// actorFromContext resolves the authenticated principal placed on the
// context by RequireAuth
func (h *CertificateHandler) actorFromContext(w http.ResponseWriter, r *http.Request) (certificate.Actor, bool) {
	identity := middleware.GetIdentityFromContext(r.Context())
	if identity == nil {
		_ = utils.WriteUnauthorized(w, "Authentication required")
		return certificate.Actor{}, false
	}
	return certificate.Actor{Email: identity.Email, Role: identity.Role}, true
}

func (h *CertificateHandler) parseID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	idStr := chi.URLParam(r, "id")
	id, err := uuid.Parse(idStr)
	if err != nil {
		_ = utils.WriteBadRequest(w, "Invalid certificate ID", nil)
		return uuid.Nil, false
	}
	return id, true
}
