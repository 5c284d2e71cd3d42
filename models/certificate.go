package models

import (
	"time"

	"github.com/google/uuid"
)

// CertificateStatus represents the review state of a submission
type CertificateStatus string

const (
	StatusPending    CertificateStatus = "Pending"
	StatusInProgress CertificateStatus = "In Progress"
	StatusCompleted  CertificateStatus = "Completed"
	StatusRejected   CertificateStatus = "Rejected"
)

// IsValid reports whether the status is one of the known values
func (s CertificateStatus) IsValid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted, StatusRejected:
		return true
	}
	return false
}

// SubmissionRecord is one entry in a certificate's submission history,
// recorded each time the file passes through a processing office.
type SubmissionRecord struct {
	Date   string `json:"date"`
	Office string `json:"office"`
	Status string `json:"status"`
}

// Certificate represents an uploaded certificate submission
type Certificate struct {
	ID           uuid.UUID          `json:"id" db:"id"`
	StudentEmail string             `json:"student_email" db:"student_email"`
	Name         string             `json:"name" db:"name"`
	Status       CertificateStatus  `json:"status" db:"status"`
	Feedback     string             `json:"feedback" db:"feedback"`
	DueDate      string             `json:"due_date,omitempty" db:"due_date"`
	Priority     string             `json:"priority,omitempty" db:"priority"`
	Description  string             `json:"description,omitempty" db:"description"`
	FileURL      string             `json:"url" db:"file_url"`
	FileName     string             `json:"file_name,omitempty" db:"file_name"`
	Submissions  []SubmissionRecord `json:"submissions,omitempty" db:"submissions"` // JSONB
	CreatedAt    time.Time          `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time          `json:"updated_at" db:"updated_at"`
}

// TableName returns the table name for the Certificate model
func (Certificate) TableName() string {
	return "certificates"
}

// NewCertificate creates a new Certificate instance with a normalized student email
func NewCertificate(studentEmail, name string, status CertificateStatus) *Certificate {
	now := time.Now()
	return &Certificate{
		ID:           uuid.New(),
		StudentEmail: NormalizeEmail(studentEmail),
		Name:         name,
		Status:       status,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// AddSubmission appends a record to the submission history
func (c *Certificate) AddSubmission(record SubmissionRecord) {
	c.Submissions = append(c.Submissions, record)
}
