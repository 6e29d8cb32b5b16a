package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a typed domain error with HTTP awareness.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	Err     error  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is reports whether target carries the same code, so clones match their template.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || e == nil || t == nil {
		return false
	}
	return e.Code == t.Code
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Predefined errors for common scenarios.
var (
	ErrNotFound           = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrForbidden          = New("FORBIDDEN", http.StatusForbidden, "forbidden")
	ErrUnauthorized       = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrConflict           = New("CONFLICT", http.StatusConflict, "conflict")
	ErrPreconditionFailed = New("PRECONDITION_FAILED", http.StatusPreconditionFailed, "precondition failed")
	ErrValidation         = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal           = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
	ErrCacheMiss          = New("CACHE_MISS", http.StatusNotFound, "cache miss")
)

// Registration workflow errors. Codes are surfaced verbatim to clients.
var (
	ErrAlreadyRegistered      = New("ALREADY_REGISTERED", http.StatusConflict, "student already has an active registration for this course")
	ErrPrerequisiteNotMet     = New("PREREQUISITE_NOT_MET", http.StatusUnprocessableEntity, "course prerequisites not completed")
	ErrNoAdvisorAssigned      = New("NO_ADVISOR_ASSIGNED", http.StatusUnprocessableEntity, "student has no assigned advisor")
	ErrCreditLimitExceeded    = New("CREDIT_LIMIT_EXCEEDED", http.StatusUnprocessableEntity, "credit load would exceed the semester maximum")
	ErrCreditMinimumViolated  = New("CREDIT_MINIMUM_VIOLATED", http.StatusUnprocessableEntity, "credit load would fall below the semester minimum")
	ErrRegistrationClosed     = New("REGISTRATION_CLOSED", http.StatusUnprocessableEntity, "registration is closed")
	ErrMissingRejectionReason = New("MISSING_REJECTION_REASON", http.StatusBadRequest, "a reason is required to reject a request")
	ErrCourseNotOffered       = New("COURSE_NOT_OFFERED", http.StatusUnprocessableEntity, "course is not offered")
	ErrCourseFull             = New("COURSE_FULL", http.StatusConflict, "course has no remaining seats")
	ErrDeadlinePassed         = New("DEADLINE_PASSED", http.StatusUnprocessableEntity, "deadline for this request type has passed")
	ErrNotEnrolled            = New("NOT_ENROLLED", http.StatusUnprocessableEntity, "student is not currently enrolled in this course")
	ErrRequestPending         = New("REQUEST_PENDING", http.StatusConflict, "a pending request already exists for this course")
	ErrUnknownGrade           = New("UNKNOWN_GRADE", http.StatusBadRequest, "grade is not on the grade scale")
	ErrInvalidTransition      = New("INVALID_TRANSITION", http.StatusConflict, "transition not allowed from current state")
)

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}

// Internal wraps a collaborator failure keeping the cause on the chain.
func Internal(err error, message string) *Error {
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, message)
}
