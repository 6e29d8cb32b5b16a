package models

import (
	"time"

	"github.com/lib/pq"
)

// Course is a catalog entry. The workflow reads courses but never mutates them.
type Course struct {
	ID            string         `db:"id" json:"id"`
	Code          string         `db:"course_code" json:"code"`
	Name          string         `db:"name" json:"name"`
	NameLocal     string         `db:"name_local" json:"name_local,omitempty"`
	Description   string         `db:"description" json:"description,omitempty"`
	CreditHours   int            `db:"credit_hours" json:"credit_hours"`
	Level         int            `db:"level" json:"level"`
	Prerequisites pq.StringArray `db:"prerequisites" json:"prerequisites"`
	MaxStudents   int            `db:"max_students" json:"max_students"`
	Days          pq.StringArray `db:"days" json:"days,omitempty"`
	StartTime     string         `db:"start_time" json:"start_time,omitempty"`
	EndTime       string         `db:"end_time" json:"end_time,omitempty"`
	Room          string         `db:"room" json:"room,omitempty"`
	Active        bool           `db:"active" json:"active"`
	CreatedAt     time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at" json:"updated_at"`
}

// CourseFilter captures supported filters for listing courses.
type CourseFilter struct {
	Level    int
	Search   string
	Active   *bool
	Page     int
	PageSize int
}
