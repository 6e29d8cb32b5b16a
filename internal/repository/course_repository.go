package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/unireg-api/internal/models"
)

const courseColumns = `id, course_code, name, name_local, description, credit_hours, level, prerequisites,
       max_students, days, start_time, end_time, room, active, created_at, updated_at`

const insertCourseQuery = `INSERT INTO courses (id, course_code, name, name_local, description, credit_hours, level, prerequisites,
        max_students, days, start_time, end_time, room, active, created_at, updated_at)
        VALUES (:id, :course_code, :name, :name_local, :description, :credit_hours, :level, :prerequisites,
        :max_students, :days, :start_time, :end_time, :room, :active, :created_at, :updated_at)`

const updateCourseQuery = `UPDATE courses SET name = :name, name_local = :name_local, description = :description,
        credit_hours = :credit_hours, level = :level, prerequisites = :prerequisites, max_students = :max_students,
        days = :days, start_time = :start_time, end_time = :end_time, room = :room, active = :active, updated_at = :updated_at
        WHERE id = :id`

// CourseRepository persists the course catalog.
type CourseRepository struct {
	db *sqlx.DB
}

// NewCourseRepository constructs the repository.
func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

// List returns courses matching the filter with a total count.
func (r *CourseRepository) List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error) {
	base := `FROM courses`
	var conditions []string
	var args []interface{}

	if filter.Level > 0 {
		conditions = append(conditions, fmt.Sprintf("level = $%d", len(args)+1))
		args = append(args, filter.Level)
	}
	if filter.Active != nil {
		conditions = append(conditions, fmt.Sprintf("active = $%d", len(args)+1))
		args = append(args, *filter.Active)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(course_code ILIKE $%d OR name ILIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+filter.Search+"%")
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT %s %s ORDER BY course_code ASC LIMIT %d OFFSET %d`, courseColumns, base+clause, size, offset)
	var courses []models.Course
	if err := r.db.SelectContext(ctx, &courses, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list courses: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, fmt.Sprintf("SELECT COUNT(*) %s", base+clause), args...); err != nil {
		return nil, 0, fmt.Errorf("count courses: %w", err)
	}
	return courses, total, nil
}

// FindByID returns a course by identifier.
func (r *CourseRepository) FindByID(ctx context.Context, id string) (*models.Course, error) {
	query := fmt.Sprintf(`SELECT %s FROM courses WHERE id = $1`, courseColumns)
	var course models.Course
	if err := r.db.GetContext(ctx, &course, query, id); err != nil {
		return nil, err
	}
	return &course, nil
}

// FindByCode returns a course by its catalog code.
func (r *CourseRepository) FindByCode(ctx context.Context, code string) (*models.Course, error) {
	query := fmt.Sprintf(`SELECT %s FROM courses WHERE course_code = $1`, courseColumns)
	var course models.Course
	if err := r.db.GetContext(ctx, &course, query, code); err != nil {
		return nil, err
	}
	return &course, nil
}

// ExistingCodes reports which of the given codes are present in the catalog.
func (r *CourseRepository) ExistingCodes(ctx context.Context, codes []string) (map[string]bool, error) {
	existing := make(map[string]bool, len(codes))
	if len(codes) == 0 {
		return existing, nil
	}
	var found []string
	if err := r.db.SelectContext(ctx, &found, `SELECT course_code FROM courses WHERE course_code = ANY($1)`, pq.Array(codes)); err != nil {
		return nil, fmt.Errorf("check course codes: %w", err)
	}
	for _, code := range found {
		existing[code] = true
	}
	return existing, nil
}

// Create inserts a new course.
func (r *CourseRepository) Create(ctx context.Context, course *models.Course) error {
	if course.ID == "" {
		course.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	course.CreatedAt = now
	course.UpdatedAt = now
	if _, err := r.db.NamedExecContext(ctx, insertCourseQuery, course); err != nil {
		return translateConstraint(fmt.Errorf("create course: %w", err))
	}
	return nil
}

// Update overwrites mutable catalog fields. The code is the stable identifier and never changes.
func (r *CourseRepository) Update(ctx context.Context, course *models.Course) error {
	course.UpdatedAt = time.Now().UTC()
	result, err := r.db.NamedExecContext(ctx, updateCourseQuery, course)
	if err != nil {
		return fmt.Errorf("update course: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check course update rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// UpsertBatch writes every course keyed by code in one transaction. Nothing is written
// unless the whole batch succeeds.
func (r *CourseRepository) UpsertBatch(ctx context.Context, courses []*models.Course) (created, updated int, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("begin catalog tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := time.Now().UTC()
	for _, course := range courses {
		var existing struct {
			ID        string    `db:"id"`
			CreatedAt time.Time `db:"created_at"`
		}
		lookupErr := tx.GetContext(ctx, &existing, `SELECT id, created_at FROM courses WHERE course_code = $1 FOR UPDATE`, course.Code)
		switch {
		case lookupErr == nil:
			course.ID = existing.ID
			course.CreatedAt = existing.CreatedAt
			course.UpdatedAt = now
			if _, err = tx.NamedExecContext(ctx, updateCourseQuery, course); err != nil {
				return 0, 0, fmt.Errorf("update course %s: %w", course.Code, err)
			}
			updated++
		case errors.Is(lookupErr, sql.ErrNoRows):
			if course.ID == "" {
				course.ID = uuid.NewString()
			}
			course.CreatedAt = now
			course.UpdatedAt = now
			if _, err = tx.NamedExecContext(ctx, insertCourseQuery, course); err != nil {
				return 0, 0, translateConstraint(fmt.Errorf("create course %s: %w", course.Code, err))
			}
			created++
		default:
			err = fmt.Errorf("lock course %s: %w", course.Code, lookupErr)
			return 0, 0, err
		}
	}
	if err = tx.Commit(); err != nil {
		return 0, 0, fmt.Errorf("commit catalog tx: %w", err)
	}
	return created, updated, nil
}
