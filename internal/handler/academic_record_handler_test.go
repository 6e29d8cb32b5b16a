package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/unireg-api/internal/dto"
	"github.com/noah-isme/unireg-api/internal/models"
	"github.com/noah-isme/unireg-api/internal/service"
	appErrors "github.com/noah-isme/unireg-api/pkg/errors"
)

type recordServiceMock struct {
	lastFormat string
}

func (m *recordServiceMock) Record(ctx context.Context, actor models.Actor, studentID string) (*models.AcademicRecord, error) {
	if studentID != actor.UserID {
		return nil, appErrors.ErrNotFound
	}
	return &models.AcademicRecord{StudentID: studentID, RemainingCredits: 140}, nil
}

func (m *recordServiceMock) Transcript(ctx context.Context, actor models.Actor, studentID, format string) (*service.Transcript, error) {
	m.lastFormat = format
	return &service.Transcript{Filename: "transcript-stu-1.csv", ContentType: "text/csv", Body: []byte("Code,Course\n")}, nil
}

type gradingServiceMock struct {
	grade string
}

func (m *gradingServiceMock) PostFinalGrade(ctx context.Context, actor models.Actor, enrollmentID string, req dto.PostGradeRequest) (*models.Enrollment, error) {
	if req.Grade == "Z" {
		return nil, appErrors.ErrUnknownGrade
	}
	m.grade = req.Grade
	return &models.Enrollment{ID: enrollmentID, Status: models.EnrollmentStatusCompleted, Grade: &req.Grade}, nil
}

func TestAcademicRecordHandlerRecord(t *testing.T) {
	handler := NewAcademicRecordHandler(&recordServiceMock{}, &gradingServiceMock{})

	c, w := newTestContext(http.MethodGet, "/students/stu-1/record", nil, studentClaims)
	c.Params = gin.Params{{Key: "id", Value: "stu-1"}}
	handler.Record(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"remaining_credits":140`)

	c, w = newTestContext(http.MethodGet, "/students/stu-2/record", nil, studentClaims)
	c.Params = gin.Params{{Key: "id", Value: "stu-2"}}
	handler.Record(c)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAcademicRecordHandlerTranscriptAttachment(t *testing.T) {
	records := &recordServiceMock{}
	handler := NewAcademicRecordHandler(records, &gradingServiceMock{})
	c, w := newTestContext(http.MethodGet, "/students/stu-1/transcript?format=CSV", nil, studentClaims)
	c.Params = gin.Params{{Key: "id", Value: "stu-1"}}

	handler.Transcript(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "csv", records.lastFormat)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "transcript-stu-1.csv")
	assert.Equal(t, "Code,Course\n", w.Body.String())
}

func TestAcademicRecordHandlerPostGrade(t *testing.T) {
	grading := &gradingServiceMock{}
	handler := NewAcademicRecordHandler(&recordServiceMock{}, grading)
	admin := &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin}

	c, w := newTestContext(http.MethodPost, "/enrollments/e-1/grade", []byte(`{"grade":"B+"}`), admin)
	c.Params = gin.Params{{Key: "id", Value: "e-1"}}
	handler.PostGrade(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "B+", grading.grade)

	c, w = newTestContext(http.MethodPost, "/enrollments/e-1/grade", []byte(`{"grade":"Z"}`), admin)
	c.Params = gin.Params{{Key: "id", Value: "e-1"}}
	handler.PostGrade(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "UNKNOWN_GRADE", decodeErrorCode(t, w))
}
