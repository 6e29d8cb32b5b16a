package models

// DenyReason names the first failing eligibility check.
type DenyReason string

const (
	DenyRegistrationClosed  DenyReason = "REGISTRATION_CLOSED"
	DenyCourseNotOffered    DenyReason = "COURSE_NOT_OFFERED"
	DenyAlreadyRegistered   DenyReason = "ALREADY_REGISTERED"
	DenyPrerequisiteNotMet  DenyReason = "PREREQUISITE_NOT_MET"
	DenyNoAdvisorAssigned   DenyReason = "NO_ADVISOR_ASSIGNED"
	DenyCreditLimitExceeded DenyReason = "CREDIT_LIMIT_EXCEEDED"
	DenyCourseFull          DenyReason = "COURSE_FULL"
)

// EligibilityDecision is the admit/deny outcome of an enrollment check.
type EligibilityDecision struct {
	Admitted             bool       `json:"admitted"`
	Reason               DenyReason `json:"reason,omitempty"`
	MissingPrerequisites []string   `json:"missing_prerequisites,omitempty"`
	CreditLoad           int        `json:"credit_load"`
	MaxCredits           int        `json:"max_credits"`
}

// RequestWithCourse joins a request with the catalog fields needed for load calculations.
type RequestWithCourse struct {
	RegistrationRequest
	CourseCode  string `db:"course_code" json:"course_code"`
	CreditHours int    `db:"credit_hours" json:"credit_hours"`
}
