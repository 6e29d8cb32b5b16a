package dto

import "github.com/noah-isme/unireg-api/internal/models"

// CreateRegistrationRequest is submitted by a student (or an admin on a student's behalf).
type CreateRegistrationRequest struct {
	StudentID string             `json:"student_id"`
	CourseID  string             `json:"course_id" validate:"required"`
	Type      models.RequestType `json:"request_type" validate:"required,oneof=enroll drop withdraw"`
}

// ApproveRegistrationRequest carries an optional advisor note.
type ApproveRegistrationRequest struct {
	Note string `json:"note"`
}

// RejectRegistrationRequest carries the mandatory rejection reason.
type RejectRegistrationRequest struct {
	Reason string `json:"reason"`
}

// RequestQuery mirrors supported listing filters.
type RequestQuery struct {
	StudentID string
	CourseID  string
	Status    []models.RequestStatus
	Type      models.RequestType
	Limit     int
	Offset    int
}
