package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// AuditAction represents the type of action being audited
type AuditAction string

const (
	AuditActionCertificateUploaded AuditAction = "certificate_uploaded"
	AuditActionCertificateReviewed AuditAction = "certificate_reviewed"
	AuditActionCertificateDeleted  AuditAction = "certificate_deleted"
	AuditActionUserRegistered      AuditAction = "user_registered"
	AuditActionUserProvisioned     AuditAction = "user_provisioned"
)

// AuditLog represents an audit trail entry for portal actions
type AuditLog struct {
	ID           uuid.UUID       `json:"id" db:"id"`
	ActorEmail   string          `json:"actor_email" db:"actor_email"`
	ActorRole    Role            `json:"actor_role" db:"actor_role"`
	Action       AuditAction     `json:"action" db:"action"`
	ResourceType string          `json:"resource_type" db:"resource_type"` // certificate, user
	ResourceID   *uuid.UUID      `json:"resource_id,omitempty" db:"resource_id"`
	Details      json.RawMessage `json:"details" db:"details"` // JSONB for flexible metadata
	RequestID    string          `json:"request_id" db:"request_id"`
	Timestamp    time.Time       `json:"timestamp" db:"timestamp"`
}

// TableName returns the table name for the AuditLog model
func (AuditLog) TableName() string {
	return "audit_logs"
}

// NewAuditLog creates a new AuditLog instance
func NewAuditLog(actorEmail string, actorRole Role, action AuditAction, resourceType string) *AuditLog {
	return &AuditLog{
		ID:           uuid.New(),
		ActorEmail:   NormalizeEmail(actorEmail),
		ActorRole:    actorRole,
		Action:       action,
		ResourceType: resourceType,
		Timestamp:    time.Now(),
	}
}

// WithResource sets the resource ID
func (a *AuditLog) WithResource(resourceID uuid.UUID) *AuditLog {
	a.ResourceID = &resourceID
	return a
}

// WithDetails sets the details payload
func (a *AuditLog) WithDetails(details interface{}) *AuditLog {
	if data, err := json.Marshal(details); err == nil {
		a.Details = data
	}
	return a
}

// WithRequestID sets the originating request ID
func (a *AuditLog) WithRequestID(requestID string) *AuditLog {
	a.RequestID = requestID
	return a
}
