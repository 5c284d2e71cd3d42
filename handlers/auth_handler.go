package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/campusdocs/cert-portal/middleware"
	"github.com/campusdocs/cert-portal/services/auth"
	"github.com/campusdocs/cert-portal/utils"
)

// RegisterRequest represents a local registration request
type RegisterRequest struct {
	Name     string `json:"name" validate:"required,max=120"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6,max=72"`
}

// LoginRequest represents a local login request
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// GoogleLoginRequest carries the Google ID token obtained by the client
type GoogleLoginRequest struct {
	Credential string `json:"credential" validate:"required"`
}

// AuthService defines the interface for authentication operations
type AuthService interface {
	Register(ctx context.Context, name, email, password string) (*auth.Session, error)
	Login(ctx context.Context, email, password string) (*auth.Session, error)
	GoogleLogin(ctx context.Context, idToken string) (*auth.Session, error)
}

// AuthHandler handles authentication HTTP requests
type AuthHandler struct {
	authService AuthService
	logger      *zap.Logger
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(authService AuthService, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		logger:      logger,
	}
}

// HandleRegister handles POST /api/auth/register
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestIDFromContext(ctx)

	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	session, err := h.authService.Register(ctx, req.Name, req.Email, req.Password)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	h.logger.Info("registration successful",
		zap.String("request_id", requestID),
		zap.String("email", session.User.Email))

	_ = utils.WriteJSON(w, http.StatusCreated, session)
}

// HandleLogin handles POST /api/auth/login
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestIDFromContext(ctx)

	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	session, err := h.authService.Login(ctx, req.Email, req.Password)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	h.logger.Info("login successful",
		zap.String("request_id", requestID),
		zap.String("email", session.User.Email))

	_ = utils.WriteJSON(w, http.StatusOK, session)
}

// HandleGoogleLogin handles POST /api/auth/google
func (h *AuthHandler) HandleGoogleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestIDFromContext(ctx)

	var req GoogleLoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	session, err := h.authService.GoogleLogin(ctx, req.Credential)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	h.logger.Info("google login successful",
		zap.String("request_id", requestID),
		zap.String("email", session.User.Email))

	_ = utils.WriteJSON(w, http.StatusOK, session)
}

// HandleMe handles GET /api/auth/me, returning the identity embedded in the
// presented session token
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentityFromContext(r.Context())
	if identity == nil {
		_ = utils.WriteUnauthorized(w, "Authentication required")
		return
	}

	_ = utils.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"name":  identity.Name,
		"email": identity.Email,
		"role":  identity.Role,
	})
}
