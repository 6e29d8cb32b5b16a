package models

import "time"

// EnrollmentStatus represents the lifecycle of an enrollment.
type EnrollmentStatus string

// Possible enrollment statuses.
const (
	EnrollmentStatusPending   EnrollmentStatus = "pending"
	EnrollmentStatusCurrent   EnrollmentStatus = "current"
	EnrollmentStatusCompleted EnrollmentStatus = "completed"
	EnrollmentStatusDropped   EnrollmentStatus = "dropped"
)

// Active reports whether the status counts toward the one-active-per-course rule.
func (s EnrollmentStatus) Active() bool {
	return s == EnrollmentStatusPending || s == EnrollmentStatusCurrent
}

// Enrollment records a student's relationship to a course in a term.
// Grade and GPAPoints are set only once the enrollment is completed.
type Enrollment struct {
	ID        string           `db:"id" json:"id"`
	UserID    string           `db:"user_id" json:"user_id"`
	CourseID  string           `db:"course_id" json:"course_id"`
	RequestID *string          `db:"request_id" json:"request_id,omitempty"`
	Status    EnrollmentStatus `db:"status" json:"status"`
	Grade     *string          `db:"grade" json:"grade,omitempty"`
	GPAPoints *float64         `db:"gpa_points" json:"gpa_points,omitempty"`
	Semester  string           `db:"semester" json:"semester"`
	Year      int              `db:"year" json:"year"`
	CreatedAt time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt time.Time        `db:"updated_at" json:"updated_at"`
}

// EnrollmentWithCourse joins the catalog fields the GPA and eligibility rules need.
type EnrollmentWithCourse struct {
	Enrollment
	CourseCode  string `db:"course_code" json:"course_code"`
	CourseName  string `db:"course_name" json:"course_name"`
	CreditHours int    `db:"credit_hours" json:"credit_hours"`
}
