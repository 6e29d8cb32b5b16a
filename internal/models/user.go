package models

import "time"

// UserRole represents the closed set of roles known to the registration workflow.
type UserRole string

const (
	RoleStudent UserRole = "student"
	RoleAdvisor UserRole = "advisor"
	RoleAdmin   UserRole = "admin"
)

// Valid reports whether the role is one of the known roles.
func (r UserRole) Valid() bool {
	switch r {
	case RoleStudent, RoleAdvisor, RoleAdmin:
		return true
	default:
		return false
	}
}

// User represents an account owned by the identity collaborator. Role is immutable after creation.
type User struct {
	ID        string    `db:"id" json:"id"`
	Email     string    `db:"email" json:"email"`
	FullName  string    `db:"full_name" json:"full_name"`
	Role      UserRole  `db:"role" json:"role"`
	StudentID *string   `db:"student_id" json:"student_id,omitempty"`
	Major     *string   `db:"major" json:"major,omitempty"`
	Level     *int      `db:"level" json:"level,omitempty"`
	AdvisorID *string   `db:"advisor_id" json:"advisor_id,omitempty"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// HasAdvisor reports whether requests from this student can be routed.
func (u *User) HasAdvisor() bool {
	return u != nil && u.AdvisorID != nil && *u.AdvisorID != ""
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
