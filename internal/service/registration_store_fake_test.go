package service

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/unireg-api/internal/models"
	"github.com/noah-isme/unireg-api/internal/repository"
)

// memRegistrationStore serialises transactions behind one mutex and commits a working copy,
// mirroring the row locks and partial unique indexes of the Postgres schema.
type memRegistrationStore struct {
	mu          sync.Mutex
	users       map[string]*models.User
	courses     map[string]*models.Course
	enrollments map[string]models.Enrollment
	requests    map[string]models.RegistrationRequest
	txErr       error
}

func newMemRegistrationStore() *memRegistrationStore {
	return &memRegistrationStore{
		users:       make(map[string]*models.User),
		courses:     make(map[string]*models.Course),
		enrollments: make(map[string]models.Enrollment),
		requests:    make(map[string]models.RegistrationRequest),
	}
}

func (s *memRegistrationStore) addUser(user *models.User) {
	s.users[user.ID] = user
}

func (s *memRegistrationStore) addCourse(course *models.Course) {
	s.courses[course.ID] = course
}

func (s *memRegistrationStore) addEnrollment(userID, courseID string, status models.EnrollmentStatus, grade string, semester string, year int) string {
	e := models.Enrollment{
		ID:       uuid.NewString(),
		UserID:   userID,
		CourseID: courseID,
		Status:   status,
		Semester: semester,
		Year:     year,
	}
	if grade != "" {
		g := grade
		e.Grade = &g
	}
	s.enrollments[e.ID] = e
	return e.ID
}

func (s *memRegistrationStore) enrollmentsFor(userID, courseID string) []models.Enrollment {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Enrollment
	for _, e := range s.enrollments {
		if e.UserID == userID && e.CourseID == courseID {
			out = append(out, e)
		}
	}
	return out
}

func (s *memRegistrationStore) countCurrent(courseID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, e := range s.enrollments {
		if e.CourseID == courseID && e.Status == models.EnrollmentStatusCurrent {
			n++
		}
	}
	return n
}

func (s *memRegistrationStore) WithinTx(ctx context.Context, fn func(tx repository.RegistrationTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.txErr != nil {
		return s.txErr
	}
	tx := &memRegistrationTx{
		store:       s,
		enrollments: make(map[string]models.Enrollment, len(s.enrollments)),
		requests:    make(map[string]models.RegistrationRequest, len(s.requests)),
	}
	for k, v := range s.enrollments {
		tx.enrollments[k] = v
	}
	for k, v := range s.requests {
		tx.requests[k] = v
	}
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.checkUnique(); err != nil {
		return err
	}
	s.enrollments = tx.enrollments
	s.requests = tx.requests
	return nil
}

func (s *memRegistrationStore) GetRequest(ctx context.Context, id string) (*models.RegistrationRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.requests[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &req, nil
}

func (s *memRegistrationStore) ListRequests(ctx context.Context, filter models.RequestFilter) ([]models.RegistrationRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.RegistrationRequest
	for _, r := range s.requests {
		if filter.StudentID != "" && r.StudentID != filter.StudentID {
			continue
		}
		if filter.AdvisorID != "" && r.AdvisorID != filter.AdvisorID {
			continue
		}
		if filter.CourseID != "" && r.CourseID != filter.CourseID {
			continue
		}
		if filter.Type != "" && r.Type != filter.Type {
			continue
		}
		if len(filter.Status) > 0 {
			match := false
			for _, st := range filter.Status {
				if r.Status == st {
					match = true
				}
			}
			if !match {
				continue
			}
		}
		out = append(out, r)
	}
	return out, nil
}

type memRegistrationTx struct {
	store       *memRegistrationStore
	enrollments map[string]models.Enrollment
	requests    map[string]models.RegistrationRequest
}

func (t *memRegistrationTx) LockStudent(ctx context.Context, studentID string) (*models.User, error) {
	user, ok := t.store.users[studentID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *user
	return &clone, nil
}

func (t *memRegistrationTx) GetCourse(ctx context.Context, courseID string, forUpdate bool) (*models.Course, error) {
	course, ok := t.store.courses[courseID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *course
	return &clone, nil
}

func (t *memRegistrationTx) ListStudentEnrollments(ctx context.Context, studentID string) ([]models.EnrollmentWithCourse, error) {
	var out []models.EnrollmentWithCourse
	for _, e := range t.enrollments {
		if e.UserID != studentID {
			continue
		}
		course := t.store.courses[e.CourseID]
		out = append(out, models.EnrollmentWithCourse{
			Enrollment:  e,
			CourseCode:  course.Code,
			CourseName:  course.Name,
			CreditHours: course.CreditHours,
		})
	}
	return out, nil
}

func (t *memRegistrationTx) ListPendingRequests(ctx context.Context, studentID string) ([]models.RequestWithCourse, error) {
	var out []models.RequestWithCourse
	for _, r := range t.requests {
		if r.StudentID != studentID || r.Status != models.RequestStatusPending {
			continue
		}
		course := t.store.courses[r.CourseID]
		out = append(out, models.RequestWithCourse{RegistrationRequest: r, CourseCode: course.Code, CreditHours: course.CreditHours})
	}
	return out, nil
}

func (t *memRegistrationTx) CountSeatsTaken(ctx context.Context, courseID, semester string, year int) (int, error) {
	n := 0
	for _, e := range t.enrollments {
		if e.CourseID == courseID && e.Semester == semester && e.Year == year && e.Status == models.EnrollmentStatusCurrent {
			n++
		}
	}
	return n, nil
}

func (t *memRegistrationTx) InsertRequest(ctx context.Context, req *models.RegistrationRequest) error {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	req.CreatedAt = time.Now().UTC()
	req.UpdatedAt = req.CreatedAt
	t.requests[req.ID] = *req
	return nil
}

func (t *memRegistrationTx) LockRequest(ctx context.Context, id string) (*models.RegistrationRequest, error) {
	req, ok := t.requests[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &req, nil
}

func (t *memRegistrationTx) DecideRequest(ctx context.Context, params repository.DecideRequestParams) error {
	req, ok := t.requests[params.ID]
	if !ok || req.Status != models.RequestStatusPending {
		return sql.ErrNoRows
	}
	req.Status = params.Status
	decidedBy := params.DecidedBy
	decidedAt := params.DecidedAt
	req.DecidedBy = &decidedBy
	req.DecidedAt = &decidedAt
	if params.Notes != nil {
		notes := *params.Notes
		req.AdvisorNotes = &notes
	}
	t.requests[req.ID] = req
	return nil
}

func (t *memRegistrationTx) FindActiveEnrollment(ctx context.Context, studentID, courseID string) (*models.Enrollment, error) {
	for _, e := range t.enrollments {
		if e.UserID == studentID && e.CourseID == courseID && e.Status.Active() {
			clone := e
			return &clone, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (t *memRegistrationTx) InsertEnrollment(ctx context.Context, enrollment *models.Enrollment) error {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	t.enrollments[enrollment.ID] = *enrollment
	return nil
}

func (t *memRegistrationTx) TransitionEnrollment(ctx context.Context, id string, from, to models.EnrollmentStatus) error {
	e, ok := t.enrollments[id]
	if !ok || e.Status != from {
		return sql.ErrNoRows
	}
	e.Status = to
	t.enrollments[id] = e
	return nil
}

func (t *memRegistrationTx) checkUnique() error {
	active := make(map[string]bool)
	for _, e := range t.enrollments {
		if !e.Status.Active() {
			continue
		}
		key := e.UserID + "/" + e.CourseID
		if active[key] {
			return fmt.Errorf("%w: enrollments_one_active", repository.ErrDuplicateActive)
		}
		active[key] = true
	}
	pending := make(map[string]bool)
	for _, r := range t.requests {
		if r.Status != models.RequestStatusPending {
			continue
		}
		key := r.StudentID + "/" + r.CourseID
		if pending[key] {
			return fmt.Errorf("%w: requests_one_pending", repository.ErrDuplicateActive)
		}
		pending[key] = true
	}
	return nil
}
