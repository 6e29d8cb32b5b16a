package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/noah-isme/unireg-api/internal/dto"
	"github.com/noah-isme/unireg-api/internal/handler"
	"github.com/noah-isme/unireg-api/internal/models"
	"github.com/noah-isme/unireg-api/internal/service"
	appErrors "github.com/noah-isme/unireg-api/pkg/errors"
)

type tokenTable map[string]*models.JWTClaims

func (t tokenTable) Authenticate(ctx context.Context, token string) (*models.JWTClaims, error) {
	if claims, ok := t[token]; ok {
		return claims, nil
	}
	return nil, appErrors.ErrUnauthorized
}

type auditSink struct {
	logs []*models.AuditLog
}

func (a *auditSink) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	a.logs = append(a.logs, log)
	return nil
}

type recordStub struct {
	calls int
}

func (r *recordStub) Record(ctx context.Context, actor models.Actor, studentID string) (*models.AcademicRecord, error) {
	r.calls++
	return &models.AcademicRecord{StudentID: studentID}, nil
}

func (r *recordStub) Transcript(ctx context.Context, actor models.Actor, studentID, format string) (*service.Transcript, error) {
	r.calls++
	return &service.Transcript{Filename: "transcript.csv", ContentType: "text/csv", Body: []byte("Code\n")}, nil
}

type gradeStub struct{}

func (gradeStub) PostFinalGrade(ctx context.Context, actor models.Actor, enrollmentID string, req dto.PostGradeRequest) (*models.Enrollment, error) {
	return &models.Enrollment{ID: enrollmentID}, nil
}

func TestStudentRoutesAllowSelfAdvisorAndAdmin(t *testing.T) {
	gin.SetMode(gin.TestMode)
	records := &recordStub{}
	audit := &auditSink{}
	tokens := tokenTable{
		"student": {UserID: "stu-1", Role: models.RoleStudent},
		"advisor": {UserID: "adv-1", Role: models.RoleAdvisor},
		"admin":   {UserID: "adm-1", Role: models.RoleAdmin},
	}

	r := gin.New()
	registerRoutes(r.Group("/api/v1"), routeDeps{
		auth:    tokens,
		audit:   audit,
		logger:  zap.NewNop(),
		records: handler.NewAcademicRecordHandler(records, gradeStub{}),
	})

	cases := []struct {
		name   string
		token  string
		path   string
		status int
	}{
		{name: "own record", token: "student", path: "/api/v1/students/stu-1/record", status: http.StatusOK},
		{name: "other student's record", token: "student", path: "/api/v1/students/stu-2/record", status: http.StatusForbidden},
		{name: "other student's transcript", token: "student", path: "/api/v1/students/stu-2/transcript", status: http.StatusForbidden},
		{name: "advisor", token: "advisor", path: "/api/v1/students/stu-2/record", status: http.StatusOK},
		{name: "admin transcript", token: "admin", path: "/api/v1/students/stu-2/transcript", status: http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tc.path, nil)
			req.Header.Set("Authorization", "Bearer "+tc.token)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tc.status, w.Code)
		})
	}

	assert.Equal(t, 3, records.calls)
	assert.Len(t, audit.logs, 1)
}
