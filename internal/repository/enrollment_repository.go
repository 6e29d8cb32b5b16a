package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/unireg-api/internal/models"
)

const studentEnrollmentsQuery = `SELECT e.id, e.user_id, e.course_id, e.request_id, e.status, e.grade, e.gpa_points,
       e.semester, e.year, e.created_at, e.updated_at,
       c.course_code, c.name AS course_name, c.credit_hours
FROM enrollments e JOIN courses c ON c.id = e.course_id
WHERE e.user_id = $1
ORDER BY e.year ASC, e.semester ASC, c.course_code ASC`

// EnrollmentRepository handles enrollment reads and final grade posting.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// FindByID returns an enrollment by its ID.
func (r *EnrollmentRepository) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	query := fmt.Sprintf(`SELECT %s FROM enrollments WHERE id = $1`, enrollmentColumns)
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, id); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// ListByStudent returns every enrollment of a student joined with course data.
func (r *EnrollmentRepository) ListByStudent(ctx context.Context, studentID string) ([]models.EnrollmentWithCourse, error) {
	var records []models.EnrollmentWithCourse
	if err := r.db.SelectContext(ctx, &records, studentEnrollmentsQuery, studentID); err != nil {
		return nil, fmt.Errorf("list student enrollments: %w", err)
	}
	return records, nil
}

// Complete records the final grade of a current enrollment. Completed rows are never rewritten;
// sql.ErrNoRows is returned when the enrollment is not current.
func (r *EnrollmentRepository) Complete(ctx context.Context, id, grade string, points float64, at time.Time) error {
	const query = `UPDATE enrollments SET status = $2, grade = $3, gpa_points = $4, updated_at = $5
WHERE id = $1 AND status = $6`
	result, err := r.db.ExecContext(ctx, query, id, models.EnrollmentStatusCompleted, grade, points, at, models.EnrollmentStatusCurrent)
	if err != nil {
		return fmt.Errorf("complete enrollment: %w", err)
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
