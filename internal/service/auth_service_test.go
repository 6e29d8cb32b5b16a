package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/unireg-api/internal/models"
	appErrors "github.com/noah-isme/unireg-api/pkg/errors"
)

type stubUserReader struct {
	users map[string]*models.User
	err   error
}

func (s *stubUserReader) FindByID(ctx context.Context, id string) (*models.User, error) {
	if s.err != nil {
		return nil, s.err
	}
	user, ok := s.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *user
	return &clone, nil
}

func newTestAuthService(users userReader) *AuthService {
	return NewAuthService(users, zap.NewNop(), AuthConfig{
		AccessTokenSecret: "secret",
		AccessTokenExpiry: time.Minute,
		Issuer:            "unireg",
	})
}

func TestAuthServiceIssueAndValidate(t *testing.T) {
	svc := newTestAuthService(nil)
	user := &models.User{ID: "stu-1", Email: "s@uni.test", FullName: "Student", Role: models.RoleStudent}

	token, expiresAt, err := svc.IssueToken(user)
	require.NoError(t, err)
	assert.True(t, expiresAt.After(time.Now()))

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, models.Actor{UserID: "stu-1", Role: models.RoleStudent}, claims.Actor())
}

func TestAuthServiceRejectsForeignSignature(t *testing.T) {
	svc := newTestAuthService(nil)
	other := NewAuthService(nil, nil, AuthConfig{AccessTokenSecret: "other", Issuer: "unireg"})
	token, _, err := other.IssueToken(&models.User{ID: "u", Role: models.RoleAdmin})
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrUnauthorized))
}

func TestAuthServiceRejectsUnknownRole(t *testing.T) {
	svc := newTestAuthService(nil)
	claims := &models.JWTClaims{
		UserID: "u-1",
		Role:   models.UserRole("registrar"),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "unireg",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrUnauthorized))
}

func TestAuthServiceAuthenticateChecksAccount(t *testing.T) {
	users := &stubUserReader{users: map[string]*models.User{
		"adv-1": {ID: "adv-1", Role: models.RoleAdvisor, Active: true},
		"adv-2": {ID: "adv-2", Role: models.RoleAdvisor, Active: false},
		"adv-3": {ID: "adv-3", Role: models.RoleStudent, Active: true},
	}}
	svc := newTestAuthService(users)

	issue := func(id string) string {
		token, _, err := svc.IssueToken(&models.User{ID: id, Role: models.RoleAdvisor})
		require.NoError(t, err)
		return token
	}

	claims, err := svc.Authenticate(context.Background(), issue("adv-1"))
	require.NoError(t, err)
	assert.Equal(t, "adv-1", claims.UserID)

	_, err = svc.Authenticate(context.Background(), issue("adv-2"))
	assert.True(t, errors.Is(err, appErrors.ErrUnauthorized))

	_, err = svc.Authenticate(context.Background(), issue("adv-3"))
	assert.True(t, errors.Is(err, appErrors.ErrUnauthorized))

	_, err = svc.Authenticate(context.Background(), issue("missing"))
	assert.True(t, errors.Is(err, appErrors.ErrUnauthorized))
}
