package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/noah-isme/unireg-api/internal/models"
	appErrors "github.com/noah-isme/unireg-api/pkg/errors"
)

// EligibilityInput is the student state an enrollment decision is made against.
type EligibilityInput struct {
	Student         *models.User
	Course          *models.Course
	Enrollments     []models.EnrollmentWithCourse
	PendingRequests []models.RequestWithCourse
	SeatsTaken      int
	Policy          models.RegistrationPolicy
}

// CanEnroll evaluates the enrollment checks in order and stops at the first failure.
// It never mutates its input.
func CanEnroll(in EligibilityInput) models.EligibilityDecision {
	decision := models.EligibilityDecision{
		CreditLoad: activeCreditLoad(in.Enrollments, in.PendingRequests),
		MaxCredits: in.Policy.MaxCredits,
	}
	deny := func(reason models.DenyReason) models.EligibilityDecision {
		decision.Reason = reason
		return decision
	}

	if !in.Policy.RegistrationOpen {
		return deny(models.DenyRegistrationClosed)
	}
	if !in.Course.Active {
		return deny(models.DenyCourseNotOffered)
	}
	if hasActiveRegistration(in.Course.ID, in.Enrollments, in.PendingRequests) {
		return deny(models.DenyAlreadyRegistered)
	}
	if missing := MissingPrerequisites(in.Course, CompletedCourseCodes(in.Enrollments)); len(missing) > 0 {
		decision.MissingPrerequisites = missing
		return deny(models.DenyPrerequisiteNotMet)
	}
	if !in.Student.HasAdvisor() {
		return deny(models.DenyNoAdvisorAssigned)
	}
	if in.Policy.EnforceCreditLimit && in.Policy.MaxCredits > 0 &&
		decision.CreditLoad+in.Course.CreditHours > in.Policy.MaxCredits {
		return deny(models.DenyCreditLimitExceeded)
	}
	if in.Course.MaxStudents > 0 && in.SeatsTaken >= in.Course.MaxStudents {
		return deny(models.DenyCourseFull)
	}

	decision.Admitted = true
	return decision
}

// DecisionError converts a denied decision into the matching typed validation error.
func DecisionError(decision models.EligibilityDecision) error {
	if decision.Admitted {
		return nil
	}
	switch decision.Reason {
	case models.DenyRegistrationClosed:
		return appErrors.Clone(appErrors.ErrRegistrationClosed, "")
	case models.DenyCourseNotOffered:
		return appErrors.Clone(appErrors.ErrCourseNotOffered, "")
	case models.DenyAlreadyRegistered:
		return appErrors.Clone(appErrors.ErrAlreadyRegistered, "")
	case models.DenyPrerequisiteNotMet:
		return appErrors.Clone(appErrors.ErrPrerequisiteNotMet,
			fmt.Sprintf("missing prerequisites: %s", strings.Join(decision.MissingPrerequisites, ", ")))
	case models.DenyNoAdvisorAssigned:
		return appErrors.Clone(appErrors.ErrNoAdvisorAssigned, "")
	case models.DenyCreditLimitExceeded:
		return appErrors.Clone(appErrors.ErrCreditLimitExceeded,
			fmt.Sprintf("credit load would exceed the semester maximum of %d", decision.MaxCredits))
	case models.DenyCourseFull:
		return appErrors.Clone(appErrors.ErrCourseFull, "")
	default:
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("enrollment denied: %s", decision.Reason))
	}
}

// CanWithdraw gates drop and withdraw requests against a current enrollment of the course.
func CanWithdraw(in EligibilityInput, reqType models.RequestType, now time.Time) (*models.EnrollmentWithCourse, error) {
	var current *models.EnrollmentWithCourse
	for i := range in.Enrollments {
		e := &in.Enrollments[i]
		if e.CourseID == in.Course.ID && e.Status == models.EnrollmentStatusCurrent {
			current = e
			break
		}
	}
	if current == nil {
		return nil, appErrors.Clone(appErrors.ErrNotEnrolled, "")
	}
	for _, r := range in.PendingRequests {
		if r.CourseID == in.Course.ID && r.Status == models.RequestStatusPending {
			return nil, appErrors.Clone(appErrors.ErrRequestPending, "")
		}
	}
	if !in.Student.HasAdvisor() {
		return nil, appErrors.Clone(appErrors.ErrNoAdvisorAssigned, "")
	}

	deadline := in.Policy.WithdrawDeadline
	if reqType == models.RequestTypeDrop {
		deadline = in.Policy.DropDeadline
	}
	if !withinDeadline(now, deadline) {
		return nil, appErrors.Clone(appErrors.ErrDeadlinePassed,
			fmt.Sprintf("%s deadline was %s", reqType, deadline.Format(DeadlineLayout)))
	}

	if reqType == models.RequestTypeDrop && in.Policy.EnforceCreditLimit && in.Policy.MinCredits > 0 {
		remaining := activeCreditLoad(in.Enrollments, in.PendingRequests) - current.CreditHours
		if remaining < in.Policy.MinCredits {
			return nil, appErrors.Clone(appErrors.ErrCreditMinimumViolated,
				fmt.Sprintf("credit load would fall to %d, below the semester minimum of %d", remaining, in.Policy.MinCredits))
		}
	}
	return current, nil
}

func hasActiveRegistration(courseID string, enrollments []models.EnrollmentWithCourse, pending []models.RequestWithCourse) bool {
	for _, e := range enrollments {
		if e.CourseID == courseID && e.Status.Active() {
			return true
		}
	}
	for _, r := range pending {
		if r.CourseID == courseID && r.Status == models.RequestStatusPending {
			return true
		}
	}
	return false
}

// activeCreditLoad sums active enrollments plus pending enroll requests not yet materialised.
func activeCreditLoad(enrollments []models.EnrollmentWithCourse, pending []models.RequestWithCourse) int {
	load := 0
	for _, e := range enrollments {
		if e.Status.Active() {
			load += e.CreditHours
		}
	}
	for _, r := range pending {
		if r.Type == models.RequestTypeEnroll && r.Status == models.RequestStatusPending {
			load += r.CreditHours
		}
	}
	return load
}
