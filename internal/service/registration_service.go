package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/unireg-api/internal/dto"
	"github.com/noah-isme/unireg-api/internal/models"
	"github.com/noah-isme/unireg-api/internal/repository"
	appErrors "github.com/noah-isme/unireg-api/pkg/errors"
)

type registrationStore interface {
	WithinTx(ctx context.Context, fn func(tx repository.RegistrationTx) error) error
	GetRequest(ctx context.Context, id string) (*models.RegistrationRequest, error)
	ListRequests(ctx context.Context, filter models.RequestFilter) ([]models.RegistrationRequest, error)
}

type policyProvider interface {
	Policy(ctx context.Context) (models.RegistrationPolicy, error)
}

type auditLogger interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type notificationSender interface {
	Dispatch(ctx context.Context, notification models.Notification) error
}

// RegistrationService drives registration requests from creation to their terminal state.
type RegistrationService struct {
	repo      registrationStore
	policy    policyProvider
	notifier  notificationSender
	audit     auditLogger
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// RegistrationServiceOption configures the service.
type RegistrationServiceOption func(*RegistrationService)

// WithRegistrationClock overrides the time source used for deadlines and decisions.
func WithRegistrationClock(now func() time.Time) RegistrationServiceOption {
	return func(s *RegistrationService) {
		if now != nil {
			s.now = now
		}
	}
}

// WithRegistrationNotifier sets the collaborator informed of decisions.
func WithRegistrationNotifier(notifier notificationSender) RegistrationServiceOption {
	return func(s *RegistrationService) {
		s.notifier = notifier
	}
}

// WithRegistrationMetrics attaches Prometheus counters.
func WithRegistrationMetrics(metrics *MetricsService) RegistrationServiceOption {
	return func(s *RegistrationService) {
		s.metrics = metrics
	}
}

// NewRegistrationService constructs the workflow service.
func NewRegistrationService(repo registrationStore, policy policyProvider, audit auditLogger, validate *validator.Validate, logger *zap.Logger, opts ...RegistrationServiceOption) *RegistrationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	svc := &RegistrationService{
		repo:      repo,
		policy:    policy,
		audit:     audit,
		validator: validate,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

// CheckEligibility previews the enrollment decision without writing anything.
func (s *RegistrationService) CheckEligibility(ctx context.Context, actor models.Actor, studentID, courseID string) (*models.EligibilityDecision, error) {
	studentID, err := resolveStudent(actor, studentID)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(courseID) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "course_id is required")
	}
	policy, err := s.policy.Policy(ctx)
	if err != nil {
		return nil, err
	}

	var decision models.EligibilityDecision
	err = s.repo.WithinTx(ctx, func(tx repository.RegistrationTx) error {
		in, err := s.loadInput(ctx, tx, studentID, courseID, policy)
		if err != nil {
			return err
		}
		if actor.Role == models.RoleAdvisor && !advises(actor, in.Student) {
			return appErrors.ErrForbidden
		}
		decision = CanEnroll(in)
		return nil
	})
	if err != nil {
		return nil, s.mapTxError(err, "failed to evaluate eligibility")
	}
	return &decision, nil
}

// Create files a new pending request after the eligibility gate, atomically with the gate.
func (s *RegistrationService) Create(ctx context.Context, actor models.Actor, req dto.CreateRegistrationRequest) (*models.RegistrationRequest, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid registration payload")
	}
	if err := authorizeCreate(actor); err != nil {
		return nil, err
	}
	studentID, err := resolveStudent(actor, req.StudentID)
	if err != nil {
		return nil, err
	}
	policy, err := s.policy.Policy(ctx)
	if err != nil {
		return nil, err
	}

	var created *models.RegistrationRequest
	err = s.repo.WithinTx(ctx, func(tx repository.RegistrationTx) error {
		in, err := s.loadInput(ctx, tx, studentID, req.CourseID, policy)
		if err != nil {
			return err
		}

		semester, year := policy.CurrentSemester, policy.CurrentYear
		switch req.Type {
		case models.RequestTypeEnroll:
			decision := CanEnroll(in)
			if !decision.Admitted {
				s.metrics.RecordEligibilityDenial(string(decision.Reason))
				return DecisionError(decision)
			}
		case models.RequestTypeDrop, models.RequestTypeWithdraw:
			current, err := CanWithdraw(in, req.Type, s.now())
			if err != nil {
				return err
			}
			semester, year = current.Semester, current.Year
		default:
			return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported request type %q", req.Type))
		}

		created = &models.RegistrationRequest{
			ID:        uuid.NewString(),
			StudentID: in.Student.ID,
			CourseID:  in.Course.ID,
			AdvisorID: *in.Student.AdvisorID,
			Type:      req.Type,
			Status:    models.RequestStatusPending,
			Semester:  semester,
			Year:      year,
		}
		return tx.InsertRequest(ctx, created)
	})
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateActive) {
			if req.Type == models.RequestTypeEnroll {
				return nil, appErrors.Clone(appErrors.ErrAlreadyRegistered, "")
			}
			return nil, appErrors.Clone(appErrors.ErrRequestPending, "")
		}
		return nil, s.mapTxError(err, "failed to create registration request")
	}

	s.metrics.RecordRegistrationRequest(string(created.Type))
	s.emitAudit(ctx, actor, models.AuditActionRequestCreate, created)
	s.logger.Info("registration request created",
		zap.String("request_id", created.ID),
		zap.String("student_id", created.StudentID),
		zap.String("course_id", created.CourseID),
		zap.String("type", string(created.Type)))
	return created, nil
}

// Approve moves a pending request to approved and applies its enrollment side effect.
func (s *RegistrationService) Approve(ctx context.Context, actor models.Actor, id string, payload dto.ApproveRegistrationRequest) (*models.RegistrationRequest, error) {
	var decided *models.RegistrationRequest
	var courseCode string
	err := s.repo.WithinTx(ctx, func(tx repository.RegistrationTx) error {
		req, err := s.lockPending(ctx, tx, actor, id)
		if err != nil {
			return err
		}
		course, err := tx.GetCourse(ctx, req.CourseID, true)
		if err != nil {
			return notFound(err, "course not found")
		}
		courseCode = course.Code

		switch req.Type {
		case models.RequestTypeEnroll:
			if err := s.materialiseEnrollment(ctx, tx, req, course); err != nil {
				return err
			}
		case models.RequestTypeDrop, models.RequestTypeWithdraw:
			enrollment, err := tx.FindActiveEnrollment(ctx, req.StudentID, req.CourseID)
			if err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					return appErrors.Clone(appErrors.ErrNotEnrolled, "")
				}
				return err
			}
			if enrollment.Status != models.EnrollmentStatusCurrent {
				return appErrors.Clone(appErrors.ErrNotEnrolled, "")
			}
			if err := tx.TransitionEnrollment(ctx, enrollment.ID, models.EnrollmentStatusCurrent, models.EnrollmentStatusDropped); err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					return appErrors.Clone(appErrors.ErrInvalidTransition, "enrollment changed concurrently")
				}
				return err
			}
		default:
			return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported request type %q", req.Type))
		}

		decided, err = s.decide(ctx, tx, actor, req, models.RequestStatusApproved, optionalNote(payload.Note))
		return err
	})
	if err != nil {
		return nil, s.mapTxError(err, "failed to approve registration request")
	}

	s.afterDecision(ctx, actor, decided, models.AuditActionRequestApprove, models.Notification{
		UserID:  decided.StudentID,
		Title:   "Request approved",
		Message: fmt.Sprintf("Your %s request for %s was approved.", decided.Type, courseCode),
		Type:    models.NotificationSuccess,
	})
	return decided, nil
}

// Reject moves a pending request to rejected. A non-empty reason is mandatory.
func (s *RegistrationService) Reject(ctx context.Context, actor models.Actor, id string, payload dto.RejectRegistrationRequest) (*models.RegistrationRequest, error) {
	reason := strings.TrimSpace(payload.Reason)
	if reason == "" {
		return nil, appErrors.Clone(appErrors.ErrMissingRejectionReason, "")
	}

	var decided *models.RegistrationRequest
	var courseCode string
	err := s.repo.WithinTx(ctx, func(tx repository.RegistrationTx) error {
		req, err := s.lockPending(ctx, tx, actor, id)
		if err != nil {
			return err
		}
		if course, err := tx.GetCourse(ctx, req.CourseID, false); err == nil {
			courseCode = course.Code
		}
		decided, err = s.decide(ctx, tx, actor, req, models.RequestStatusRejected, &reason)
		return err
	})
	if err != nil {
		return nil, s.mapTxError(err, "failed to reject registration request")
	}
	if courseCode == "" {
		courseCode = decided.CourseID
	}

	s.afterDecision(ctx, actor, decided, models.AuditActionRequestReject, models.Notification{
		UserID:  decided.StudentID,
		Title:   "Request rejected",
		Message: fmt.Sprintf("Your %s request for %s was rejected: %s", decided.Type, courseCode, reason),
		Type:    models.NotificationError,
	})
	return decided, nil
}

// Get returns a request visible to the actor.
func (s *RegistrationService) Get(ctx context.Context, actor models.Actor, id string) (*models.RegistrationRequest, error) {
	req, err := s.repo.GetRequest(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "registration request not found")
		}
		return nil, appErrors.Internal(err, "failed to load registration request")
	}
	if !canView(actor, req) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "registration request not found")
	}
	return req, nil
}

// List returns requests scoped by role: own for students, assigned for advisors, all for admins.
func (s *RegistrationService) List(ctx context.Context, actor models.Actor, query dto.RequestQuery) ([]models.RegistrationRequest, error) {
	filter := models.RequestFilter{
		StudentID: query.StudentID,
		CourseID:  query.CourseID,
		Status:    query.Status,
		Type:      query.Type,
		Limit:     query.Limit,
		Offset:    query.Offset,
	}
	switch actor.Role {
	case models.RoleStudent:
		filter.StudentID = actor.UserID
	case models.RoleAdvisor:
		filter.AdvisorID = actor.UserID
	case models.RoleAdmin:
	default:
		return nil, appErrors.ErrForbidden
	}
	requests, err := s.repo.ListRequests(ctx, filter)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list registration requests")
	}
	return requests, nil
}

func (s *RegistrationService) loadInput(ctx context.Context, tx repository.RegistrationTx, studentID, courseID string, policy models.RegistrationPolicy) (EligibilityInput, error) {
	student, err := tx.LockStudent(ctx, studentID)
	if err != nil {
		return EligibilityInput{}, notFound(err, "student not found")
	}
	if student.Role != models.RoleStudent {
		return EligibilityInput{}, appErrors.Clone(appErrors.ErrValidation, "user is not a student")
	}
	course, err := tx.GetCourse(ctx, courseID, false)
	if err != nil {
		return EligibilityInput{}, notFound(err, "course not found")
	}
	enrollments, err := tx.ListStudentEnrollments(ctx, student.ID)
	if err != nil {
		return EligibilityInput{}, err
	}
	pending, err := tx.ListPendingRequests(ctx, student.ID)
	if err != nil {
		return EligibilityInput{}, err
	}
	seats := 0
	if course.MaxStudents > 0 {
		seats, err = tx.CountSeatsTaken(ctx, course.ID, policy.CurrentSemester, policy.CurrentYear)
		if err != nil {
			return EligibilityInput{}, err
		}
	}
	return EligibilityInput{
		Student:         student,
		Course:          course,
		Enrollments:     enrollments,
		PendingRequests: pending,
		SeatsTaken:      seats,
		Policy:          policy,
	}, nil
}

func (s *RegistrationService) lockPending(ctx context.Context, tx repository.RegistrationTx, actor models.Actor, id string) (*models.RegistrationRequest, error) {
	req, err := tx.LockRequest(ctx, id)
	if err != nil {
		return nil, notFound(err, "registration request not found")
	}
	if err := authorizeDecision(actor, req); err != nil {
		return nil, err
	}
	if req.Status != models.RequestStatusPending {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition,
			fmt.Sprintf("request is already %s", req.Status))
	}
	return req, nil
}

// materialiseEnrollment re-checks capacity under the course lock before seating the student.
func (s *RegistrationService) materialiseEnrollment(ctx context.Context, tx repository.RegistrationTx, req *models.RegistrationRequest, course *models.Course) error {
	existing, err := tx.FindActiveEnrollment(ctx, req.StudentID, req.CourseID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return err
	}
	if existing != nil && existing.Status == models.EnrollmentStatusCurrent {
		return appErrors.Clone(appErrors.ErrAlreadyRegistered, "")
	}

	if course.MaxStudents > 0 {
		seats, err := tx.CountSeatsTaken(ctx, course.ID, req.Semester, req.Year)
		if err != nil {
			return err
		}
		if seats >= course.MaxStudents {
			s.metrics.RecordEligibilityDenial(string(models.DenyCourseFull))
			return appErrors.Clone(appErrors.ErrCourseFull, "")
		}
	}

	if existing != nil {
		if err := tx.TransitionEnrollment(ctx, existing.ID, models.EnrollmentStatusPending, models.EnrollmentStatusCurrent); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrInvalidTransition, "enrollment changed concurrently")
			}
			return err
		}
		return nil
	}
	requestID := req.ID
	return tx.InsertEnrollment(ctx, &models.Enrollment{
		UserID:    req.StudentID,
		CourseID:  req.CourseID,
		RequestID: &requestID,
		Status:    models.EnrollmentStatusCurrent,
		Semester:  req.Semester,
		Year:      req.Year,
	})
}

func (s *RegistrationService) decide(ctx context.Context, tx repository.RegistrationTx, actor models.Actor, req *models.RegistrationRequest, status models.RequestStatus, notes *string) (*models.RegistrationRequest, error) {
	decidedAt := s.now()
	err := tx.DecideRequest(ctx, repository.DecideRequestParams{
		ID:        req.ID,
		Status:    status,
		DecidedBy: actor.UserID,
		DecidedAt: decidedAt,
		Notes:     notes,
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "request is no longer pending")
		}
		return nil, err
	}
	decided := *req
	decided.Status = status
	decided.DecidedBy = &actor.UserID
	decided.DecidedAt = &decidedAt
	decided.UpdatedAt = decidedAt
	if notes != nil {
		decided.AdvisorNotes = notes
	}
	return &decided, nil
}

func (s *RegistrationService) afterDecision(ctx context.Context, actor models.Actor, req *models.RegistrationRequest, action string, notification models.Notification) {
	s.metrics.RecordRegistrationDecision(string(req.Type), string(req.Status))
	s.emitAudit(ctx, actor, action, req)
	if s.notifier != nil {
		if err := s.notifier.Dispatch(ctx, notification); err != nil {
			s.logger.Warn("failed to dispatch notification", zap.String("request_id", req.ID), zap.Error(err))
		}
	}
	s.logger.Info("registration request decided",
		zap.String("request_id", req.ID),
		zap.String("status", string(req.Status)),
		zap.String("decided_by", actor.UserID))
}

func (s *RegistrationService) emitAudit(ctx context.Context, actor models.Actor, action string, req *models.RegistrationRequest) {
	if s.audit == nil || req == nil {
		return
	}
	payload, err := json.Marshal(req)
	if err != nil {
		s.logger.Warn("failed to marshal audit payload", zap.Error(err))
		return
	}
	userID := actor.UserID
	resourceID := req.ID
	if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &userID,
		Action:     action,
		Resource:   "requests",
		ResourceID: &resourceID,
		NewValues:  payload,
		IPAddress:  "system",
		UserAgent:  "registration-service",
	}); err != nil {
		s.logger.Warn("failed to persist audit log", zap.String("action", action), zap.Error(err))
	}
}

// mapTxError passes typed errors through and wraps collaborator failures.
func (s *RegistrationService) mapTxError(err error, message string) error {
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	if errors.Is(err, repository.ErrDuplicateActive) {
		return appErrors.Clone(appErrors.ErrAlreadyRegistered, "")
	}
	s.logger.Error(message, zap.Error(err))
	return appErrors.Internal(err, message)
}

func notFound(err error, message string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, message)
	}
	return err
}

func optionalNote(note string) *string {
	note = strings.TrimSpace(note)
	if note == "" {
		return nil
	}
	return &note
}

func authorizeCreate(actor models.Actor) error {
	if actor.IsZero() {
		return appErrors.ErrUnauthorized
	}
	switch actor.Role {
	case models.RoleStudent, models.RoleAdmin:
		return nil
	case models.RoleAdvisor:
		return appErrors.Clone(appErrors.ErrForbidden, "advisors cannot file registration requests")
	default:
		return appErrors.ErrForbidden
	}
}

func authorizeDecision(actor models.Actor, req *models.RegistrationRequest) error {
	switch actor.Role {
	case models.RoleAdmin:
		return nil
	case models.RoleAdvisor:
		if req.AdvisorID == actor.UserID {
			return nil
		}
		return appErrors.Clone(appErrors.ErrForbidden, "request is assigned to another advisor")
	case models.RoleStudent:
		return appErrors.Clone(appErrors.ErrForbidden, "students cannot decide requests")
	default:
		return appErrors.ErrForbidden
	}
}

func canView(actor models.Actor, req *models.RegistrationRequest) bool {
	switch actor.Role {
	case models.RoleAdmin:
		return true
	case models.RoleAdvisor:
		return req.AdvisorID == actor.UserID
	case models.RoleStudent:
		return req.StudentID == actor.UserID
	default:
		return false
	}
}

// resolveStudent picks the student a call acts on. Students may only act on themselves.
func resolveStudent(actor models.Actor, requested string) (string, error) {
	if actor.IsZero() {
		return "", appErrors.ErrUnauthorized
	}
	requested = strings.TrimSpace(requested)
	switch actor.Role {
	case models.RoleStudent:
		if requested != "" && requested != actor.UserID {
			return "", appErrors.Clone(appErrors.ErrForbidden, "students may only act on their own record")
		}
		return actor.UserID, nil
	case models.RoleAdvisor, models.RoleAdmin:
		if requested == "" {
			return "", appErrors.Clone(appErrors.ErrValidation, "student_id is required")
		}
		return requested, nil
	default:
		return "", appErrors.ErrForbidden
	}
}

func advises(actor models.Actor, student *models.User) bool {
	return student.AdvisorID != nil && *student.AdvisorID == actor.UserID
}
