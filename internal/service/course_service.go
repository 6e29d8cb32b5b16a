package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/noah-isme/unireg-api/internal/dto"
	"github.com/noah-isme/unireg-api/internal/models"
	"github.com/noah-isme/unireg-api/internal/repository"
	appErrors "github.com/noah-isme/unireg-api/pkg/errors"
)

type courseStore interface {
	List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error)
	FindByID(ctx context.Context, id string) (*models.Course, error)
	FindByCode(ctx context.Context, code string) (*models.Course, error)
	ExistingCodes(ctx context.Context, codes []string) (map[string]bool, error)
	Create(ctx context.Context, course *models.Course) error
	Update(ctx context.Context, course *models.Course) error
	UpsertBatch(ctx context.Context, courses []*models.Course) (created, updated int, err error)
}

// CourseService manages the course catalog.
type CourseService struct {
	repo      courseStore
	audit     auditLogger
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCourseService constructs the catalog service.
func NewCourseService(repo courseStore, audit auditLogger, validate *validator.Validate, logger *zap.Logger) *CourseService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &CourseService{repo: repo, audit: audit, validator: validate, logger: logger}
}

// List returns catalog entries with pagination metadata.
func (s *CourseService) List(ctx context.Context, filter models.CourseFilter) ([]models.Course, *models.Pagination, error) {
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 || filter.PageSize > 100 {
		filter.PageSize = 20
	}
	courses, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Internal(err, "failed to list courses")
	}
	return courses, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// Get returns a course by id.
func (s *CourseService) Get(ctx context.Context, id string) (*models.Course, error) {
	course, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Internal(err, "failed to load course")
	}
	return course, nil
}

// Create adds a catalog entry. Codes are unique and prerequisites must already exist.
func (s *CourseService) Create(ctx context.Context, actor models.Actor, input dto.CourseInput) (*models.Course, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(input); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}
	course := courseFromInput(input)
	if err := s.checkPrerequisites(ctx, course, nil); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, course); err != nil {
		if errors.Is(err, repository.ErrDuplicateActive) {
			return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("course code %s already exists", course.Code))
		}
		return nil, appErrors.Internal(err, "failed to create course")
	}
	s.emitAudit(ctx, actor, course)
	return course, nil
}

// Update replaces the mutable fields of a course. The code cannot change.
func (s *CourseService) Update(ctx context.Context, actor models.Actor, id string, input dto.CourseInput) (*models.Course, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(input); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}
	existing, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	course := courseFromInput(input)
	if course.Code != existing.Code {
		return nil, appErrors.Clone(appErrors.ErrValidation, "course code cannot be changed")
	}
	course.ID = existing.ID
	course.CreatedAt = existing.CreatedAt
	if err := s.checkPrerequisites(ctx, course, nil); err != nil {
		return nil, err
	}
	if err := s.checkCycles(ctx, []*models.Course{course}); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, course); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Internal(err, "failed to update course")
	}
	s.emitAudit(ctx, actor, course)
	return course, nil
}

// ImportCatalog upserts a batch of courses keyed by code. Prerequisites may reference
// courses defined earlier in the catalog or elsewhere in the same batch.
func (s *CourseService) ImportCatalog(ctx context.Context, actor models.Actor, catalog dto.CourseCatalog) (*dto.ImportResult, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(catalog); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course catalog")
	}

	batch := make(map[string]bool, len(catalog.Courses))
	courses := make([]*models.Course, 0, len(catalog.Courses))
	for _, input := range catalog.Courses {
		course := courseFromInput(input)
		if batch[course.Code] {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("course %s appears more than once", course.Code))
		}
		batch[course.Code] = true
		courses = append(courses, course)
	}
	for _, course := range courses {
		if err := s.checkPrerequisites(ctx, course, batch); err != nil {
			return nil, err
		}
	}

	if err := s.checkCycles(ctx, courses); err != nil {
		return nil, err
	}

	created, updated, err := s.repo.UpsertBatch(ctx, courses)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateActive) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "course code already exists")
		}
		return nil, appErrors.Internal(err, "catalog import failed, no courses were written")
	}
	result := &dto.ImportResult{Created: created, Updated: updated, Codes: make([]string, 0, len(courses))}
	for _, course := range courses {
		result.Codes = append(result.Codes, course.Code)
		s.emitAudit(ctx, actor, course)
	}
	s.logger.Info("course catalog imported", zap.Int("created", result.Created), zap.Int("updated", result.Updated))
	return result, nil
}

// checkPrerequisites rejects self references and codes unknown to both the catalog and the batch.
func (s *CourseService) checkPrerequisites(ctx context.Context, course *models.Course, batch map[string]bool) error {
	lookup := make([]string, 0, len(course.Prerequisites))
	for _, code := range course.Prerequisites {
		if code == course.Code {
			return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("course %s cannot be its own prerequisite", course.Code))
		}
		if !batch[code] {
			lookup = append(lookup, code)
		}
	}
	if len(lookup) == 0 {
		return nil
	}
	existing, err := s.repo.ExistingCodes(ctx, lookup)
	if err != nil {
		return appErrors.Internal(err, "failed to verify prerequisites")
	}
	var unknown []string
	for _, code := range lookup {
		if !existing[code] {
			unknown = append(unknown, code)
		}
	}
	if len(unknown) > 0 {
		return appErrors.Clone(appErrors.ErrValidation,
			fmt.Sprintf("course %s lists unknown prerequisites: %s", course.Code, strings.Join(unknown, ", ")))
	}
	return nil
}

// checkCycles rejects prerequisite chains that loop back on themselves. Courses outside
// the given set contribute the prerequisites currently stored for them.
func (s *CourseService) checkCycles(ctx context.Context, courses []*models.Course) error {
	graph := make(map[string][]string, len(courses))
	for _, course := range courses {
		graph[course.Code] = course.Prerequisites
	}
	const (
		visiting = 1
		done     = 2
	)
	state := make(map[string]int)
	var visit func(code string, path []string) error
	visit = func(code string, path []string) error {
		switch state[code] {
		case done:
			return nil
		case visiting:
			return appErrors.Clone(appErrors.ErrValidation,
				fmt.Sprintf("prerequisite cycle: %s", strings.Join(append(path, code), " -> ")))
		}
		prereqs, ok := graph[code]
		if !ok {
			stored, err := s.repo.FindByCode(ctx, code)
			switch {
			case err == nil:
				prereqs = stored.Prerequisites
			case errors.Is(err, sql.ErrNoRows):
			default:
				return appErrors.Internal(err, "failed to load prerequisites")
			}
			graph[code] = prereqs
		}
		state[code] = visiting
		for _, next := range prereqs {
			if err := visit(next, append(path, code)); err != nil {
				return err
			}
		}
		state[code] = done
		return nil
	}
	for _, course := range courses {
		if err := visit(course.Code, nil); err != nil {
			return err
		}
	}
	return nil
}

func (s *CourseService) emitAudit(ctx context.Context, actor models.Actor, course *models.Course) {
	if s.audit == nil {
		return
	}
	payload, _ := json.Marshal(course)
	userID := actor.UserID
	if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &userID,
		Action:     models.AuditActionCourseUpsert,
		Resource:   "courses",
		ResourceID: &course.ID,
		NewValues:  payload,
		IPAddress:  "system",
		UserAgent:  "course-service",
	}); err != nil {
		s.logger.Warn("failed to persist audit log", zap.Error(err))
	}
}

func courseFromInput(input dto.CourseInput) *models.Course {
	active := true
	if input.Active != nil {
		active = *input.Active
	}
	prereqs := make(pq.StringArray, 0, len(input.Prerequisites))
	seen := make(map[string]bool, len(input.Prerequisites))
	for _, code := range input.Prerequisites {
		code = normalizeCode(code)
		if code == "" || seen[code] {
			continue
		}
		seen[code] = true
		prereqs = append(prereqs, code)
	}
	days := make(pq.StringArray, 0, len(input.Days))
	for _, d := range input.Days {
		if d = strings.TrimSpace(d); d != "" {
			days = append(days, d)
		}
	}
	return &models.Course{
		Code:          normalizeCode(input.Code),
		Name:          strings.TrimSpace(input.Name),
		NameLocal:     strings.TrimSpace(input.NameLocal),
		Description:   strings.TrimSpace(input.Description),
		CreditHours:   input.CreditHours,
		Level:         input.Level,
		Prerequisites: prereqs,
		MaxStudents:   input.MaxStudents,
		Days:          days,
		StartTime:     input.StartTime,
		EndTime:       input.EndTime,
		Room:          input.Room,
		Active:        active,
	}
}

func requireAdmin(actor models.Actor) error {
	switch actor.Role {
	case models.RoleAdmin:
		return nil
	case models.RoleStudent, models.RoleAdvisor:
		return appErrors.Clone(appErrors.ErrForbidden, "administrator role required")
	default:
		return appErrors.ErrForbidden
	}
}
