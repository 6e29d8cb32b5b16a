package models

import "time"

// RequestType enumerates student actions that need advisor adjudication.
type RequestType string

const (
	RequestTypeEnroll   RequestType = "enroll"
	RequestTypeDrop     RequestType = "drop"
	RequestTypeWithdraw RequestType = "withdraw"
)

// Valid reports whether the type is supported.
func (t RequestType) Valid() bool {
	switch t {
	case RequestTypeEnroll, RequestTypeDrop, RequestTypeWithdraw:
		return true
	default:
		return false
	}
}

// RequestStatus captures workflow states. Approved and rejected are terminal.
type RequestStatus string

const (
	RequestStatusPending  RequestStatus = "pending"
	RequestStatusApproved RequestStatus = "approved"
	RequestStatusRejected RequestStatus = "rejected"
)

// Terminal reports whether no further transition is allowed.
func (s RequestStatus) Terminal() bool {
	return s == RequestStatusApproved || s == RequestStatusRejected
}

// RegistrationRequest is a student-initiated action awaiting an advisor decision.
type RegistrationRequest struct {
	ID           string        `db:"id" json:"id"`
	StudentID    string        `db:"student_id" json:"student_id"`
	CourseID     string        `db:"course_id" json:"course_id"`
	AdvisorID    string        `db:"advisor_id" json:"advisor_id"`
	Type         RequestType   `db:"request_type" json:"request_type"`
	Status       RequestStatus `db:"status" json:"status"`
	AdvisorNotes *string       `db:"advisor_notes" json:"advisor_notes,omitempty"`
	Semester     string        `db:"semester" json:"semester"`
	Year         int           `db:"year" json:"year"`
	DecidedBy    *string       `db:"decided_by" json:"decided_by,omitempty"`
	DecidedAt    *time.Time    `db:"decided_at" json:"decided_at,omitempty"`
	CreatedAt    time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time     `db:"updated_at" json:"updated_at"`
}

// RequestFilter constrains listing queries.
type RequestFilter struct {
	StudentID string
	AdvisorID string
	CourseID  string
	Status    []RequestStatus
	Type      RequestType
	Limit     int
	Offset    int
}
