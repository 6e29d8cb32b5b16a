package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/unireg-api/internal/models"
)

var courseRowColumns = []string{"id", "course_code", "name", "name_local", "description", "credit_hours", "level", "prerequisites",
	"max_students", "days", "start_time", "end_time", "room", "active", "created_at", "updated_at"}

func TestCourseRepositoryListWithFilters(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()

	repo := NewCourseRepository(db)
	now := time.Now()
	active := true
	mock.ExpectQuery(regexp.QuoteMeta("FROM courses WHERE level = $1 AND active = $2 AND (course_code ILIKE $3 OR name ILIKE $3) ORDER BY course_code ASC LIMIT 10 OFFSET 10")).
		WithArgs(2, true, "%data%").
		WillReturnRows(sqlmock.NewRows(courseRowColumns).
			AddRow("c-1", "CS201", "Data Structures", "", "", 3, 2, "{}", 0, "{}", "", "", "", true, now, now))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM courses WHERE level = $1")).
		WithArgs(2, true, "%data%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(11))

	courses, total, err := repo.List(context.Background(), models.CourseFilter{Level: 2, Active: &active, Search: "data", Page: 2, PageSize: 10})
	require.NoError(t, err)
	assert.Len(t, courses, 1)
	assert.Equal(t, 11, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseRepositoryExistingCodes(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()

	repo := NewCourseRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT course_code FROM courses WHERE course_code = ANY($1)")).
		WithArgs(pq.Array([]string{"CS101", "CS999"})).
		WillReturnRows(sqlmock.NewRows([]string{"course_code"}).AddRow("CS101"))

	existing, err := repo.ExistingCodes(context.Background(), []string{"CS101", "CS999"})
	require.NoError(t, err)
	assert.True(t, existing["CS101"])
	assert.False(t, existing["CS999"])

	empty, err := repo.ExistingCodes(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseRepositoryCreateDuplicateCode(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()

	repo := NewCourseRepository(db)
	mock.ExpectExec("INSERT INTO courses").WillReturnError(&pq.Error{Code: uniqueViolation, Constraint: "courses_course_code_key"})

	err := repo.Create(context.Background(), &models.Course{Code: "CS101", Name: "Intro", CreditHours: 3, Level: 1})
	assert.ErrorIs(t, err, ErrDuplicateActive)
}

func TestCourseRepositoryUpsertBatch(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()

	repo := NewCourseRepository(db)
	createdAt := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
	lockQuery := regexp.QuoteMeta("SELECT id, created_at FROM courses WHERE course_code = $1 FOR UPDATE")

	mock.ExpectBegin()
	mock.ExpectQuery(lockQuery).WithArgs("CS101").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow("c-101", createdAt))
	mock.ExpectExec("UPDATE courses SET").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(lockQuery).WithArgs("CS201").WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}))
	mock.ExpectExec("INSERT INTO courses").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	courses := []*models.Course{
		{Code: "CS101", Name: "Intro", CreditHours: 3, Level: 1},
		{Code: "CS201", Name: "Data Structures", CreditHours: 3, Level: 2, Prerequisites: pq.StringArray{"CS101"}},
	}
	created, updated, err := repo.UpsertBatch(context.Background(), courses)
	require.NoError(t, err)
	assert.Equal(t, 1, created)
	assert.Equal(t, 1, updated)
	assert.Equal(t, "c-101", courses[0].ID)
	assert.Equal(t, createdAt, courses[0].CreatedAt)
	assert.NotEmpty(t, courses[1].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseRepositoryUpsertBatchRollsBack(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()

	repo := NewCourseRepository(db)
	lockQuery := regexp.QuoteMeta("SELECT id, created_at FROM courses WHERE course_code = $1 FOR UPDATE")

	mock.ExpectBegin()
	mock.ExpectQuery(lockQuery).WithArgs("CS101").WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}))
	mock.ExpectExec("INSERT INTO courses").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(lockQuery).WithArgs("CS201").WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}))
	mock.ExpectExec("INSERT INTO courses").WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	_, _, err := repo.UpsertBatch(context.Background(), []*models.Course{
		{Code: "CS101", Name: "Intro", CreditHours: 3, Level: 1},
		{Code: "CS201", Name: "Data Structures", CreditHours: 3, Level: 2},
	})
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
