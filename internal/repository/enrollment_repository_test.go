package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/unireg-api/internal/models"
)

func TestEnrollmentRepositoryListByStudent(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()

	repo := NewEnrollmentRepository(db)
	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "user_id", "course_id", "request_id", "status", "grade", "gpa_points",
		"semester", "year", "created_at", "updated_at", "course_code", "course_name", "credit_hours"}).
		AddRow("e-1", "stu-1", "c-1", nil, "completed", "A", 4.5, "fall", 2025, now, now, "CS101", "Intro", 3).
		AddRow("e-2", "stu-1", "c-2", "r-1", "current", nil, nil, "spring", 2026, now, now, "CS201", "Data Structures", 4)
	mock.ExpectQuery(regexp.QuoteMeta("FROM enrollments e JOIN courses c ON c.id = e.course_id")).
		WithArgs("stu-1").
		WillReturnRows(rows)

	records, err := repo.ListByStudent(context.Background(), "stu-1")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "CS101", records[0].CourseCode)
	require.NotNil(t, records[0].Grade)
	assert.Equal(t, "A", *records[0].Grade)
	assert.Nil(t, records[1].Grade)
	require.NotNil(t, records[1].RequestID)
	assert.Equal(t, 4, records[1].CreditHours)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryComplete(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()

	repo := NewEnrollmentRepository(db)
	at := time.Date(2026, 12, 20, 0, 0, 0, 0, time.UTC)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE enrollments SET status = $2, grade = $3, gpa_points = $4, updated_at = $5")).
		WithArgs("e-1", models.EnrollmentStatusCompleted, "B+", 3.5, at, models.EnrollmentStatusCurrent).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Complete(context.Background(), "e-1", "B+", 3.5, at))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryCompleteNotCurrent(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()

	repo := NewEnrollmentRepository(db)
	mock.ExpectExec("UPDATE enrollments SET status").WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Complete(context.Background(), "e-1", "B", 3, time.Now())
	assert.ErrorIs(t, err, sql.ErrNoRows)
}
