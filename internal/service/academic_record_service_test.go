package service

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/unireg-api/internal/models"
	appErrors "github.com/noah-isme/unireg-api/pkg/errors"
)

type enrollmentReaderStub struct {
	records map[string][]models.EnrollmentWithCourse
	calls   int
}

func (e *enrollmentReaderStub) ListByStudent(ctx context.Context, studentID string) ([]models.EnrollmentWithCourse, error) {
	e.calls++
	return e.records[studentID], nil
}

type memoryCacheRepo struct {
	values map[string]interface{}
}

func (m *memoryCacheRepo) Get(ctx context.Context, key string, dest interface{}) error {
	v, ok := m.values[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	record, ok := v.(*models.AcademicRecord)
	if !ok {
		return appErrors.ErrCacheMiss
	}
	*(dest.(*models.AcademicRecord)) = *record
	return nil
}

func (m *memoryCacheRepo) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	m.values[key] = value
	return nil
}

func (m *memoryCacheRepo) DeleteByPattern(ctx context.Context, pattern string) error {
	delete(m.values, pattern)
	return nil
}

func newAcademicFixture() (*AcademicRecordService, *enrollmentReaderStub, *memoryCacheRepo) {
	users := &stubUserReader{users: map[string]*models.User{
		"stu-1": {ID: "stu-1", Role: models.RoleStudent, FullName: "Student One", StudentID: strPtr("2026001"), AdvisorID: strPtr("adv-1")},
		"adv-1": {ID: "adv-1", Role: models.RoleAdvisor},
	}}
	reader := &enrollmentReaderStub{records: map[string][]models.EnrollmentWithCourse{
		"stu-1": {
			record("CS101", 3, models.EnrollmentStatusCompleted, "A+", "fall", 2025),
			record("MA101", 4, models.EnrollmentStatusCompleted, "B", "fall", 2025),
			record("CS201", 3, models.EnrollmentStatusCurrent, "", "spring", 2026),
		},
	}}
	cacheRepo := &memoryCacheRepo{values: map[string]interface{}{}}
	cache := NewCacheService(cacheRepo, nil, time.Minute, nil, true)
	return NewAcademicRecordService(reader, users, cache, time.Minute, nil), reader, cacheRepo
}

func TestAcademicRecordServiceRecord(t *testing.T) {
	svc, reader, _ := newAcademicFixture()
	ctx := context.Background()

	rec, err := svc.Record(ctx, studentActor, "")
	require.NoError(t, err)
	assert.InDelta(t, 31.0/7.0, rec.Cumulative.GPA, 1e-9)
	assert.Equal(t, 7, rec.Cumulative.CompletedCredits)
	assert.Equal(t, 133, rec.RemainingCredits)
	assert.Len(t, rec.Semesters, 1)
	assert.Len(t, rec.Courses, 2)

	_, err = svc.Record(ctx, studentActor, "")
	require.NoError(t, err)
	assert.Equal(t, 1, reader.calls)

	svc.Invalidate(ctx, "stu-1")
	_, err = svc.Record(ctx, advisorActor, "stu-1")
	require.NoError(t, err)
	assert.Equal(t, 2, reader.calls)
}

func TestAcademicRecordServiceAuthorization(t *testing.T) {
	svc, _, _ := newAcademicFixture()
	ctx := context.Background()

	_, err := svc.Record(ctx, otherAdvisor, "stu-1")
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))
	_, err = svc.Record(ctx, studentActor, "stu-2")
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))
	_, err = svc.Record(ctx, adminActor, "adv-1")
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
	_, err = svc.Record(ctx, adminActor, "nobody")
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestAcademicRecordServiceTranscript(t *testing.T) {
	svc, _, _ := newAcademicFixture()
	ctx := context.Background()

	csvFile, err := svc.Transcript(ctx, studentActor, "", "csv")
	require.NoError(t, err)
	assert.Equal(t, "text/csv", csvFile.ContentType)
	assert.Equal(t, "transcript-stu-1.csv", csvFile.Filename)
	body := string(csvFile.Body)
	assert.True(t, strings.HasPrefix(body, "Code,Course,Term,Credits,Grade,Points\n"))
	assert.Contains(t, body, "CS101,,fall 2025,3,A+,5.00")
	assert.Contains(t, body, "Cumulative GPA,4.43")
	assert.NotContains(t, body, "CS201")

	pdfFile, err := svc.Transcript(ctx, adminActor, "stu-1", "")
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", pdfFile.ContentType)
	assert.True(t, bytes.HasPrefix(pdfFile.Body, []byte("%PDF")))

	_, err = svc.Transcript(ctx, studentActor, "", "xlsx")
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}
