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
	appErrors "github.com/noah-isme/unireg-api/pkg/errors"
)

type settingsServiceMock struct {
	key, value string
}

func (m *settingsServiceMock) List(ctx context.Context) ([]dto.SettingItem, error) {
	return []dto.SettingItem{{Key: models.SettingRegistrationOpen, Value: "true", Type: "BOOLEAN"}}, nil
}

func (m *settingsServiceMock) Update(ctx context.Context, actor models.Actor, key, value string) (*dto.SettingItem, error) {
	if actor.Role != models.RoleAdmin {
		return nil, appErrors.ErrForbidden
	}
	m.key, m.value = key, value
	return &dto.SettingItem{Key: key, Value: value}, nil
}

func TestSettingsHandlerUpdate(t *testing.T) {
	mock := &settingsServiceMock{}
	handler := NewSettingsHandler(mock)

	c, w := newTestContext(http.MethodPut, "/settings/drop_deadline", []byte(`{"value":"2026-10-01"}`), &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin})
	c.Params = gin.Params{{Key: "key", Value: "drop_deadline"}}
	handler.Update(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "drop_deadline", mock.key)
	assert.Equal(t, "2026-10-01", mock.value)

	c, w = newTestContext(http.MethodPut, "/settings/drop_deadline", []byte(`{"value":"2026-10-01"}`), studentClaims)
	c.Params = gin.Params{{Key: "key", Value: "drop_deadline"}}
	handler.Update(c)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestSettingsHandlerList(t *testing.T) {
	handler := NewSettingsHandler(&settingsServiceMock{})
	c, w := newTestContext(http.MethodGet, "/settings", nil, studentClaims)

	handler.List(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), models.SettingRegistrationOpen)
}
