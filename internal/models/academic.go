package models

// TotalCreditsRequired is the program-wide graduation requirement.
const TotalCreditsRequired = 140

// GPAResult is the aggregate over a set of completed enrollments.
type GPAResult struct {
	GPA                  float64 `json:"gpa"`
	TotalPoints          float64 `json:"total_points"`
	CompletedCredits     int     `json:"completed_credits"`
	TotalCreditsRequired int     `json:"total_credits_required"`
}

// SemesterGPA is the GPA restricted to one (semester, year) pair.
type SemesterGPA struct {
	Semester string `json:"semester"`
	Year     int    `json:"year"`
	GPAResult
}

// AcademicRecord summarises a student's cumulative performance.
type AcademicRecord struct {
	StudentID        string                 `json:"student_id"`
	Cumulative       GPAResult              `json:"cumulative"`
	Semesters        []SemesterGPA          `json:"semesters"`
	RemainingCredits int                    `json:"remaining_credits"`
	Courses          []EnrollmentWithCourse `json:"courses"`
}
