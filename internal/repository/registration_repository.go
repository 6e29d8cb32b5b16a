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

// ErrDuplicateActive is returned when a unique-active index rejects a write.
var ErrDuplicateActive = errors.New("duplicate active registration")

const uniqueViolation = "23505"

const requestColumns = `id, student_id, course_id, advisor_id, request_type, status, advisor_notes,
       semester, year, decided_by, decided_at, created_at, updated_at`

const enrollmentColumns = `id, user_id, course_id, request_id, status, grade, gpa_points, semester, year, created_at, updated_at`

// RegistrationTx groups the reads and writes a workflow step performs atomically.
type RegistrationTx interface {
	LockStudent(ctx context.Context, studentID string) (*models.User, error)
	GetCourse(ctx context.Context, courseID string, forUpdate bool) (*models.Course, error)
	ListStudentEnrollments(ctx context.Context, studentID string) ([]models.EnrollmentWithCourse, error)
	ListPendingRequests(ctx context.Context, studentID string) ([]models.RequestWithCourse, error)
	// CountSeatsTaken counts current enrollments of a course in a term.
	CountSeatsTaken(ctx context.Context, courseID, semester string, year int) (int, error)
	InsertRequest(ctx context.Context, req *models.RegistrationRequest) error
	LockRequest(ctx context.Context, id string) (*models.RegistrationRequest, error)
	DecideRequest(ctx context.Context, params DecideRequestParams) error
	FindActiveEnrollment(ctx context.Context, studentID, courseID string) (*models.Enrollment, error)
	InsertEnrollment(ctx context.Context, enrollment *models.Enrollment) error
	TransitionEnrollment(ctx context.Context, id string, from, to models.EnrollmentStatus) error
}

// DecideRequestParams groups mutable columns for a decision.
type DecideRequestParams struct {
	ID        string
	Status    models.RequestStatus
	DecidedBy string
	DecidedAt time.Time
	Notes     *string
}

// RegistrationRepository persists registration requests and the enrollments they produce.
type RegistrationRepository struct {
	db *sqlx.DB
}

// NewRegistrationRepository constructs the repository.
func NewRegistrationRepository(db *sqlx.DB) *RegistrationRepository {
	return &RegistrationRepository{db: db}
}

// WithinTx runs fn in a single transaction, committing only when fn succeeds.
func (r *RegistrationRepository) WithinTx(ctx context.Context, fn func(tx RegistrationTx) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin registration tx: %w", err)
	}
	if err := fn(&sqlRegistrationTx{tx: tx}); err != nil {
		_ = tx.Rollback()
		return translateConstraint(err)
	}
	if err := tx.Commit(); err != nil {
		return translateConstraint(fmt.Errorf("commit registration tx: %w", err))
	}
	return nil
}

// GetRequest fetches a request by identifier.
func (r *RegistrationRepository) GetRequest(ctx context.Context, id string) (*models.RegistrationRequest, error) {
	query := fmt.Sprintf(`SELECT %s FROM requests WHERE id = $1`, requestColumns)
	var req models.RegistrationRequest
	if err := r.db.GetContext(ctx, &req, query, id); err != nil {
		return nil, err
	}
	return &req, nil
}

// ListRequests returns requests matching the filter, latest first.
func (r *RegistrationRepository) ListRequests(ctx context.Context, filter models.RequestFilter) ([]models.RegistrationRequest, error) {
	builder := strings.Builder{}
	args := make([]interface{}, 0, 6)
	builder.WriteString(fmt.Sprintf(`SELECT %s FROM requests`, requestColumns))

	conditions := make([]string, 0, 5)
	if len(filter.Status) > 0 {
		placeholders := make([]string, len(filter.Status))
		for i, status := range filter.Status {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		conditions = append(conditions, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.StudentID != "" {
		args = append(args, filter.StudentID)
		conditions = append(conditions, fmt.Sprintf("student_id = $%d", len(args)))
	}
	if filter.AdvisorID != "" {
		args = append(args, filter.AdvisorID)
		conditions = append(conditions, fmt.Sprintf("advisor_id = $%d", len(args)))
	}
	if filter.CourseID != "" {
		args = append(args, filter.CourseID)
		conditions = append(conditions, fmt.Sprintf("course_id = $%d", len(args)))
	}
	if filter.Type != "" {
		args = append(args, filter.Type)
		conditions = append(conditions, fmt.Sprintf("request_type = $%d", len(args)))
	}
	if len(conditions) > 0 {
		builder.WriteString(" WHERE ")
		builder.WriteString(strings.Join(conditions, " AND "))
	}
	builder.WriteString(" ORDER BY created_at DESC")

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	builder.WriteString(fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset))

	var requests []models.RegistrationRequest
	if err := r.db.SelectContext(ctx, &requests, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}
	return requests, nil
}

type sqlRegistrationTx struct {
	tx *sqlx.Tx
}

func (t *sqlRegistrationTx) LockStudent(ctx context.Context, studentID string) (*models.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE id = $1 FOR UPDATE`, userColumns)
	var user models.User
	if err := t.tx.GetContext(ctx, &user, query, studentID); err != nil {
		return nil, err
	}
	return &user, nil
}

func (t *sqlRegistrationTx) GetCourse(ctx context.Context, courseID string, forUpdate bool) (*models.Course, error) {
	query := fmt.Sprintf(`SELECT %s FROM courses WHERE id = $1`, courseColumns)
	if forUpdate {
		query += " FOR UPDATE"
	}
	var course models.Course
	if err := t.tx.GetContext(ctx, &course, query, courseID); err != nil {
		return nil, err
	}
	return &course, nil
}

func (t *sqlRegistrationTx) ListStudentEnrollments(ctx context.Context, studentID string) ([]models.EnrollmentWithCourse, error) {
	var records []models.EnrollmentWithCourse
	if err := t.tx.SelectContext(ctx, &records, studentEnrollmentsQuery, studentID); err != nil {
		return nil, fmt.Errorf("list student enrollments: %w", err)
	}
	return records, nil
}

func (t *sqlRegistrationTx) ListPendingRequests(ctx context.Context, studentID string) ([]models.RequestWithCourse, error) {
	const query = `SELECT r.id, r.student_id, r.course_id, r.advisor_id, r.request_type, r.status, r.advisor_notes,
       r.semester, r.year, r.decided_by, r.decided_at, r.created_at, r.updated_at,
       c.course_code, c.credit_hours
FROM requests r JOIN courses c ON c.id = r.course_id
WHERE r.student_id = $1 AND r.status = $2`
	var requests []models.RequestWithCourse
	if err := t.tx.SelectContext(ctx, &requests, query, studentID, models.RequestStatusPending); err != nil {
		return nil, fmt.Errorf("list pending requests: %w", err)
	}
	return requests, nil
}

func (t *sqlRegistrationTx) CountSeatsTaken(ctx context.Context, courseID, semester string, year int) (int, error) {
	const query = `SELECT COUNT(*) FROM enrollments
WHERE course_id = $1 AND semester = $2 AND year = $3 AND status = $4`
	var count int
	if err := t.tx.GetContext(ctx, &count, query, courseID, semester, year, models.EnrollmentStatusCurrent); err != nil {
		return 0, fmt.Errorf("count seats taken: %w", err)
	}
	return count, nil
}

func (t *sqlRegistrationTx) InsertRequest(ctx context.Context, req *models.RegistrationRequest) error {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.Status == "" {
		req.Status = models.RequestStatusPending
	}
	now := time.Now().UTC()
	if req.CreatedAt.IsZero() {
		req.CreatedAt = now
	}
	req.UpdatedAt = now
	const query = `INSERT INTO requests
	(id, student_id, course_id, advisor_id, request_type, status, advisor_notes, semester, year, decided_by, decided_at, created_at, updated_at)
	VALUES (:id, :student_id, :course_id, :advisor_id, :request_type, :status, :advisor_notes, :semester, :year, :decided_by, :decided_at, :created_at, :updated_at)`
	if _, err := t.tx.NamedExecContext(ctx, query, req); err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	return nil
}

func (t *sqlRegistrationTx) LockRequest(ctx context.Context, id string) (*models.RegistrationRequest, error) {
	query := fmt.Sprintf(`SELECT %s FROM requests WHERE id = $1 FOR UPDATE`, requestColumns)
	var req models.RegistrationRequest
	if err := t.tx.GetContext(ctx, &req, query, id); err != nil {
		return nil, err
	}
	return &req, nil
}

// DecideRequest only updates pending rows; sql.ErrNoRows signals a lost race or terminal state.
func (t *sqlRegistrationTx) DecideRequest(ctx context.Context, params DecideRequestParams) error {
	const query = `UPDATE requests
SET status = $2, decided_by = $3, decided_at = $4, advisor_notes = COALESCE($5, advisor_notes), updated_at = $4
WHERE id = $1 AND status = $6`
	result, err := t.tx.ExecContext(ctx, query, params.ID, params.Status, params.DecidedBy, params.DecidedAt,
		params.Notes, models.RequestStatusPending)
	if err != nil {
		return fmt.Errorf("decide request: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check request update rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (t *sqlRegistrationTx) FindActiveEnrollment(ctx context.Context, studentID, courseID string) (*models.Enrollment, error) {
	query := fmt.Sprintf(`SELECT %s FROM enrollments
WHERE user_id = $1 AND course_id = $2 AND status IN ($3, $4) LIMIT 1 FOR UPDATE`, enrollmentColumns)
	var enrollment models.Enrollment
	if err := t.tx.GetContext(ctx, &enrollment, query, studentID, courseID,
		models.EnrollmentStatusPending, models.EnrollmentStatusCurrent); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

func (t *sqlRegistrationTx) InsertEnrollment(ctx context.Context, enrollment *models.Enrollment) error {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	if enrollment.Status == "" {
		enrollment.Status = models.EnrollmentStatusCurrent
	}
	now := time.Now().UTC()
	if enrollment.CreatedAt.IsZero() {
		enrollment.CreatedAt = now
	}
	enrollment.UpdatedAt = now
	const query = `INSERT INTO enrollments (id, user_id, course_id, request_id, status, grade, gpa_points, semester, year, created_at, updated_at)
        VALUES (:id, :user_id, :course_id, :request_id, :status, :grade, :gpa_points, :semester, :year, :created_at, :updated_at)`
	if _, err := t.tx.NamedExecContext(ctx, query, enrollment); err != nil {
		return fmt.Errorf("create enrollment: %w", err)
	}
	return nil
}

func (t *sqlRegistrationTx) TransitionEnrollment(ctx context.Context, id string, from, to models.EnrollmentStatus) error {
	const query = `UPDATE enrollments SET status = $3, updated_at = $4 WHERE id = $1 AND status = $2`
	result, err := t.tx.ExecContext(ctx, query, id, from, to, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("transition enrollment: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check enrollment update rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func translateConstraint(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %s", ErrDuplicateActive, pqErr.Constraint)
	}
	return err
}
