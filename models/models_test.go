package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeEmail(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Admin2@Gmail.com", "admin2@gmail.com"},
		{"  student1@uni.edu  ", "student1@uni.edu"},
		{"MIXED@Case.EDU", "mixed@case.edu"},
		{"", ""},
		{"   ", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, NormalizeEmail(tt.input))
	}
}

func TestRoleIsValid(t *testing.T) {
	assert.True(t, RoleAdmin.IsValid())
	assert.True(t, RoleStudent.IsValid())
	assert.False(t, Role("professor").IsValid())
	assert.False(t, Role("").IsValid())
}

func TestCertificateStatusIsValid(t *testing.T) {
	assert.True(t, StatusPending.IsValid())
	assert.True(t, StatusInProgress.IsValid())
	assert.True(t, StatusCompleted.IsValid())
	assert.True(t, StatusRejected.IsValid())
	assert.False(t, CertificateStatus("Archived").IsValid())
	assert.False(t, CertificateStatus("pending").IsValid())
}

func TestNewUserNormalizesEmail(t *testing.T) {
	user := NewUser("Alice", "Alice@Uni.EDU", AuthTypeLocal, RoleStudent)
	assert.Equal(t, "alice@uni.edu", user.Email)
	assert.NotEqual(t, user.ID.String(), "00000000-0000-0000-0000-000000000000")
}

func TestNewCertificateNormalizesStudentEmail(t *testing.T) {
	cert := NewCertificate("Student1@Uni.EDU", "Transcript", StatusPending)
	assert.Equal(t, "student1@uni.edu", cert.StudentEmail)
	assert.Equal(t, StatusPending, cert.Status)
}

func TestAddSubmission(t *testing.T) {
	cert := NewCertificate("s@uni.edu", "Transcript", StatusPending)
	assert.Empty(t, cert.Submissions)

	cert.AddSubmission(SubmissionRecord{Date: "Mon Mar 2 2026", Office: "Academic Section", Status: "Pending"})
	cert.AddSubmission(SubmissionRecord{Date: "Tue Mar 3 2026", Office: "Academic Section", Status: "Completed"})

	assert.Len(t, cert.Submissions, 2)
	assert.Equal(t, "Completed", cert.Submissions[1].Status)
}
