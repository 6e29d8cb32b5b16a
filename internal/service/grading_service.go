package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/unireg-api/internal/dto"
	"github.com/noah-isme/unireg-api/internal/models"
	appErrors "github.com/noah-isme/unireg-api/pkg/errors"
)

type gradeStore interface {
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
	Complete(ctx context.Context, id, grade string, points float64, at time.Time) error
}

type recordInvalidator interface {
	Invalidate(ctx context.Context, studentID string)
}

// GradingService is the write path used by the term-end grading process.
type GradingService struct {
	repo      gradeStore
	records   recordInvalidator
	audit     auditLogger
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewGradingService constructs the grading service.
func NewGradingService(repo gradeStore, records recordInvalidator, audit auditLogger, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *GradingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &GradingService{
		repo:      repo,
		records:   records,
		audit:     audit,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// PostFinalGrade completes a current enrollment. Grades are written once.
func (s *GradingService) PostFinalGrade(ctx context.Context, actor models.Actor, enrollmentID string, req dto.PostGradeRequest) (*models.Enrollment, error) {
	switch actor.Role {
	case models.RoleAdmin:
	case models.RoleStudent, models.RoleAdvisor:
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only administrators may post grades")
	default:
		return nil, appErrors.ErrForbidden
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid grade payload")
	}
	grade := normalizeGrade(req.Grade)
	if !IsKnownGrade(grade) {
		return nil, appErrors.Clone(appErrors.ErrUnknownGrade, fmt.Sprintf("grade %q is not on the grade scale", req.Grade))
	}

	enrollment, err := s.repo.FindByID(ctx, enrollmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Internal(err, "failed to load enrollment")
	}
	if enrollment.Status != models.EnrollmentStatusCurrent {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition,
			fmt.Sprintf("cannot grade an enrollment that is %s", enrollment.Status))
	}

	points := PointsFor(grade)
	at := s.now()
	if err := s.repo.Complete(ctx, enrollment.ID, grade, points, at); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "enrollment is no longer current")
		}
		return nil, appErrors.Internal(err, "failed to record grade")
	}
	enrollment.Status = models.EnrollmentStatusCompleted
	enrollment.Grade = &grade
	enrollment.GPAPoints = &points
	enrollment.UpdatedAt = at

	if s.records != nil {
		s.records.Invalidate(ctx, enrollment.UserID)
	}
	s.metrics.RecordGradePosted()
	if s.audit != nil {
		payload, _ := json.Marshal(enrollment)
		userID := actor.UserID
		if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
			UserID:     &userID,
			Action:     models.AuditActionGradePost,
			Resource:   "enrollments",
			ResourceID: &enrollment.ID,
			NewValues:  payload,
			IPAddress:  "system",
			UserAgent:  "grading-service",
		}); err != nil {
			s.logger.Warn("failed to persist audit log", zap.Error(err))
		}
	}
	return enrollment, nil
}
