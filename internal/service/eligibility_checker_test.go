package service

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/unireg-api/internal/models"
	appErrors "github.com/noah-isme/unireg-api/pkg/errors"
)

func eligibleInput() EligibilityInput {
	advisor := "adv-1"
	return EligibilityInput{
		Student: &models.User{ID: "stu-1", Role: models.RoleStudent, AdvisorID: &advisor},
		Course:  &models.Course{ID: "c-201", Code: "CS201", CreditHours: 3, Prerequisites: []string{"CS101"}, MaxStudents: 2, Active: true},
		Enrollments: []models.EnrollmentWithCourse{
			withCourseID(record("CS101", 3, models.EnrollmentStatusCompleted, "A", "fall", 2025), "c-101"),
		},
		Policy: models.RegistrationPolicy{RegistrationOpen: true, MaxCredits: 21, EnforceCreditLimit: true},
	}
}

func withCourseID(r models.EnrollmentWithCourse, courseID string) models.EnrollmentWithCourse {
	r.CourseID = courseID
	return r
}

func TestPrerequisitesSatisfied(t *testing.T) {
	course := &models.Course{Code: "CS201", Prerequisites: []string{"CS101"}}
	assert.False(t, PrerequisitesSatisfied(course, map[string]struct{}{}))
	assert.True(t, PrerequisitesSatisfied(course, map[string]struct{}{"CS101": {}}))
	assert.True(t, PrerequisitesSatisfied(&models.Course{Code: "CS101"}, nil))

	inProgress := CompletedCourseCodes([]models.EnrollmentWithCourse{
		record("cs101", 3, models.EnrollmentStatusCurrent, "", "fall", 2026),
	})
	assert.False(t, PrerequisitesSatisfied(course, inProgress))

	done := CompletedCourseCodes([]models.EnrollmentWithCourse{
		record("cs101 ", 3, models.EnrollmentStatusCompleted, "F", "fall", 2025),
	})
	assert.True(t, PrerequisitesSatisfied(course, done))
	assert.Equal(t, []string{"MA101"}, MissingPrerequisites(&models.Course{Prerequisites: []string{"CS101", "MA101"}}, done))
}

func TestCanEnrollAdmits(t *testing.T) {
	in := eligibleInput()
	decision := CanEnroll(in)
	assert.True(t, decision.Admitted)
	assert.Empty(t, decision.Reason)
	assert.NoError(t, DecisionError(decision))
	assert.Len(t, in.Enrollments, 1)
}

func TestCanEnrollCheckOrder(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(in *EligibilityInput)
		reason models.DenyReason
		err    *appErrors.Error
	}{
		{
			name: "closed beats everything",
			mutate: func(in *EligibilityInput) {
				in.Policy.RegistrationOpen = false
				in.Student.AdvisorID = nil
				in.Enrollments = nil
			},
			reason: models.DenyRegistrationClosed,
			err:    appErrors.ErrRegistrationClosed,
		},
		{
			name: "inactive course after closed window",
			mutate: func(in *EligibilityInput) {
				in.Course.Active = false
				in.Enrollments = []models.EnrollmentWithCourse{withCourseID(record("CS201", 3, models.EnrollmentStatusCurrent, "", "fall", 2026), "c-201")}
			},
			reason: models.DenyCourseNotOffered,
			err:    appErrors.ErrCourseNotOffered,
		},
		{
			name: "closed before inactive course",
			mutate: func(in *EligibilityInput) {
				in.Policy.RegistrationOpen = false
				in.Course.Active = false
			},
			reason: models.DenyRegistrationClosed,
			err:    appErrors.ErrRegistrationClosed,
		},
		{
			name: "already registered before prerequisites",
			mutate: func(in *EligibilityInput) {
				in.Enrollments = []models.EnrollmentWithCourse{withCourseID(record("CS201", 3, models.EnrollmentStatusCurrent, "", "fall", 2026), "c-201")}
			},
			reason: models.DenyAlreadyRegistered,
			err:    appErrors.ErrAlreadyRegistered,
		},
		{
			name: "pending request counts as registered",
			mutate: func(in *EligibilityInput) {
				in.PendingRequests = []models.RequestWithCourse{{
					RegistrationRequest: models.RegistrationRequest{CourseID: "c-201", Type: models.RequestTypeEnroll, Status: models.RequestStatusPending},
					CreditHours:         3,
				}}
			},
			reason: models.DenyAlreadyRegistered,
			err:    appErrors.ErrAlreadyRegistered,
		},
		{
			name: "prerequisites before advisor",
			mutate: func(in *EligibilityInput) {
				in.Enrollments = nil
				in.Student.AdvisorID = nil
			},
			reason: models.DenyPrerequisiteNotMet,
			err:    appErrors.ErrPrerequisiteNotMet,
		},
		{
			name:   "advisor before credit limit",
			mutate: func(in *EligibilityInput) { in.Student.AdvisorID = nil; in.Policy.MaxCredits = 1 },
			reason: models.DenyNoAdvisorAssigned,
			err:    appErrors.ErrNoAdvisorAssigned,
		},
		{
			name:   "credit limit before capacity",
			mutate: func(in *EligibilityInput) { in.Policy.MaxCredits = 2; in.SeatsTaken = 2 },
			reason: models.DenyCreditLimitExceeded,
			err:    appErrors.ErrCreditLimitExceeded,
		},
		{
			name:   "capacity",
			mutate: func(in *EligibilityInput) { in.SeatsTaken = 2 },
			reason: models.DenyCourseFull,
			err:    appErrors.ErrCourseFull,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := eligibleInput()
			tc.mutate(&in)
			decision := CanEnroll(in)
			assert.False(t, decision.Admitted)
			assert.Equal(t, tc.reason, decision.Reason)
			err := DecisionError(decision)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tc.err))
		})
	}
}

func TestCanEnrollCreditLoad(t *testing.T) {
	in := eligibleInput()
	in.Policy.MaxCredits = 9
	in.Enrollments = append(in.Enrollments,
		withCourseID(record("MA101", 3, models.EnrollmentStatusCurrent, "", "fall", 2026), "c-ma"))
	in.PendingRequests = []models.RequestWithCourse{{
		RegistrationRequest: models.RegistrationRequest{CourseID: "c-ph", Type: models.RequestTypeEnroll, Status: models.RequestStatusPending},
		CreditHours:         3,
	}}

	decision := CanEnroll(in)
	assert.True(t, decision.Admitted)
	assert.Equal(t, 6, decision.CreditLoad)

	in.Policy.MaxCredits = 8
	assert.Equal(t, models.DenyCreditLimitExceeded, CanEnroll(in).Reason)

	in.Policy.EnforceCreditLimit = false
	assert.True(t, CanEnroll(in).Admitted)
}

func TestCanWithdraw(t *testing.T) {
	now := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	base := func() EligibilityInput {
		in := eligibleInput()
		in.Enrollments = []models.EnrollmentWithCourse{
			withCourseID(record("CS201", 3, models.EnrollmentStatusCurrent, "", "fall", 2026), "c-201"),
			withCourseID(record("MA101", 4, models.EnrollmentStatusCurrent, "", "fall", 2026), "c-ma"),
		}
		return in
	}

	current, err := CanWithdraw(base(), models.RequestTypeDrop, now)
	require.NoError(t, err)
	assert.Equal(t, "CS201", current.CourseCode)

	in := base()
	in.Enrollments = in.Enrollments[1:]
	_, err = CanWithdraw(in, models.RequestTypeWithdraw, now)
	assert.True(t, errors.Is(err, appErrors.ErrNotEnrolled))

	in = base()
	past := time.Date(2026, 9, 30, 0, 0, 0, 0, time.UTC)
	in.Policy.WithdrawDeadline = &past
	_, err = CanWithdraw(in, models.RequestTypeWithdraw, now)
	assert.True(t, errors.Is(err, appErrors.ErrDeadlinePassed))
	_, err = CanWithdraw(in, models.RequestTypeDrop, now)
	assert.NoError(t, err)

	in = base()
	in.Policy.MinCredits = 5
	_, err = CanWithdraw(in, models.RequestTypeDrop, now)
	assert.True(t, errors.Is(err, appErrors.ErrCreditMinimumViolated))
	in.Policy.MinCredits = 4
	_, err = CanWithdraw(in, models.RequestTypeDrop, now)
	assert.NoError(t, err)

	in = base()
	in.Student.AdvisorID = nil
	_, err = CanWithdraw(in, models.RequestTypeDrop, now)
	assert.True(t, errors.Is(err, appErrors.ErrNoAdvisorAssigned))
}
