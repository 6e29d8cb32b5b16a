package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/unireg-api/internal/dto"
	"github.com/noah-isme/unireg-api/internal/models"
	appErrors "github.com/noah-isme/unireg-api/pkg/errors"
)

type gradeRepoStub struct {
	enrollments map[string]*models.Enrollment
}

func (g *gradeRepoStub) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	e, ok := g.enrollments[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *e
	return &clone, nil
}

func (g *gradeRepoStub) Complete(ctx context.Context, id, grade string, points float64, at time.Time) error {
	e, ok := g.enrollments[id]
	if !ok || e.Status != models.EnrollmentStatusCurrent {
		return sql.ErrNoRows
	}
	e.Status = models.EnrollmentStatusCompleted
	e.Grade = &grade
	e.GPAPoints = &points
	return nil
}

type invalidatorStub struct {
	students []string
}

func (i *invalidatorStub) Invalidate(ctx context.Context, studentID string) {
	i.students = append(i.students, studentID)
}

func TestGradingServicePostFinalGrade(t *testing.T) {
	repo := &gradeRepoStub{enrollments: map[string]*models.Enrollment{
		"e-1": {ID: "e-1", UserID: "stu-1", Status: models.EnrollmentStatusCurrent},
		"e-2": {ID: "e-2", UserID: "stu-1", Status: models.EnrollmentStatusDropped},
	}}
	records := &invalidatorStub{}
	audit := &auditStub{}
	svc := NewGradingService(repo, records, audit, nil, nil, nil)
	ctx := context.Background()

	enrollment, err := svc.PostFinalGrade(ctx, adminActor, "e-1", dto.PostGradeRequest{Grade: "b+"})
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusCompleted, enrollment.Status)
	assert.Equal(t, "B+", *enrollment.Grade)
	assert.Equal(t, 4.5, *enrollment.GPAPoints)
	assert.Equal(t, []string{"stu-1"}, records.students)
	require.Len(t, audit.logs, 1)

	_, err = svc.PostFinalGrade(ctx, adminActor, "e-1", dto.PostGradeRequest{Grade: "A"})
	assert.True(t, errors.Is(err, appErrors.ErrInvalidTransition))
	assert.Equal(t, "B+", *repo.enrollments["e-1"].Grade)

	_, err = svc.PostFinalGrade(ctx, adminActor, "e-2", dto.PostGradeRequest{Grade: "A"})
	assert.True(t, errors.Is(err, appErrors.ErrInvalidTransition))

	_, err = svc.PostFinalGrade(ctx, adminActor, "e-1", dto.PostGradeRequest{Grade: "E"})
	assert.True(t, errors.Is(err, appErrors.ErrUnknownGrade))

	_, err = svc.PostFinalGrade(ctx, adminActor, "missing", dto.PostGradeRequest{Grade: "A"})
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))

	_, err = svc.PostFinalGrade(ctx, advisorActor, "e-1", dto.PostGradeRequest{Grade: "A"})
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))
}
