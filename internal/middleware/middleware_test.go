package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/unireg-api/internal/models"
	appErrors "github.com/noah-isme/unireg-api/pkg/errors"
)

type authenticatorStub struct {
	claims *models.JWTClaims
	err    error
}

func (s authenticatorStub) Authenticate(ctx context.Context, token string) (*models.JWTClaims, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.claims, nil
}

type auditRecorderStub struct {
	logs []*models.AuditLog
}

func (s *auditRecorderStub) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	s.logs = append(s.logs, log)
	return nil
}

func newRouter(auth Authenticator, extra ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handlers := append([]gin.HandlerFunc{JWT(auth)}, extra...)
	handlers = append(handlers, func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/students/:id", handlers...)
	return r
}

func perform(r *gin.Engine, path, header string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	r.ServeHTTP(w, req)
	return w
}

func TestJWTRejectsMissingAndMalformedHeader(t *testing.T) {
	r := newRouter(authenticatorStub{claims: &models.JWTClaims{UserID: "u", Role: models.RoleStudent}})

	assert.Equal(t, http.StatusUnauthorized, perform(r, "/students/u", "").Code)
	assert.Equal(t, http.StatusUnauthorized, perform(r, "/students/u", "Basic abc").Code)
	assert.Equal(t, http.StatusOK, perform(r, "/students/u", "Bearer token").Code)
}

func TestJWTPropagatesAuthenticationError(t *testing.T) {
	r := newRouter(authenticatorStub{err: appErrors.Clone(appErrors.ErrUnauthorized, "account disabled")})
	assert.Equal(t, http.StatusUnauthorized, perform(r, "/students/u", "Bearer token").Code)
}

func TestRBACRolesAndSelf(t *testing.T) {
	student := authenticatorStub{claims: &models.JWTClaims{UserID: "stu-1", Role: models.RoleStudent}}
	r := newRouter(student, RBAC(string(models.RoleAdvisor), SelfAccess))

	assert.Equal(t, http.StatusOK, perform(r, "/students/stu-1", "Bearer t").Code)
	assert.Equal(t, http.StatusForbidden, perform(r, "/students/stu-2", "Bearer t").Code)

	advisor := authenticatorStub{claims: &models.JWTClaims{UserID: "adv-1", Role: models.RoleAdvisor}}
	r = newRouter(advisor, RequireRoles(models.RoleAdvisor, models.RoleAdmin))
	assert.Equal(t, http.StatusOK, perform(r, "/students/stu-2", "Bearer t").Code)
}

func TestAuditRecordsSuccessfulReads(t *testing.T) {
	recorder := &auditRecorderStub{}
	claims := &models.JWTClaims{UserID: "stu-1", Role: models.RoleStudent}
	r := newRouter(authenticatorStub{claims: claims}, Audit(recorder, nil, models.AuditActionTranscriptRead, "transcript"))

	require.Equal(t, http.StatusOK, perform(r, "/students/stu-1?format=csv", "Bearer t").Code)
	require.Len(t, recorder.logs, 1)
	log := recorder.logs[0]
	assert.Equal(t, models.AuditActionTranscriptRead, log.Action)
	require.NotNil(t, log.UserID)
	assert.Equal(t, "stu-1", *log.UserID)
	require.NotNil(t, log.ResourceID)
	assert.Equal(t, "stu-1", *log.ResourceID)
	assert.Contains(t, string(log.NewValues), "format=csv")

	perform(r, "/students/stu-1", "")
	assert.Len(t, recorder.logs, 1)
}
