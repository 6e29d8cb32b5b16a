package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/unireg-api/internal/dto"
	"github.com/noah-isme/unireg-api/internal/models"
	appErrors "github.com/noah-isme/unireg-api/pkg/errors"
	"github.com/noah-isme/unireg-api/pkg/response"
)

type settingsService interface {
	List(ctx context.Context) ([]dto.SettingItem, error)
	Update(ctx context.Context, actor models.Actor, key, value string) (*dto.SettingItem, error)
}

// SettingsHandler exposes the registration policy settings.
type SettingsHandler struct {
	service settingsService
}

// NewSettingsHandler builds a new handler.
func NewSettingsHandler(service settingsService) *SettingsHandler {
	return &SettingsHandler{service: service}
}

// List godoc
// @Summary List registration policy settings
// @Tags Settings
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /settings [get]
func (h *SettingsHandler) List(c *gin.Context) {
	items, err := h.service.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// Update godoc
// @Summary Update a policy setting
// @Tags Settings
// @Accept json
// @Produce json
// @Param key path string true "Setting key"
// @Param payload body dto.UpdateSettingRequest true "Setting payload"
// @Success 200 {object} response.Envelope
// @Router /settings/{key} [put]
func (h *SettingsHandler) Update(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.UpdateSettingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid payload"))
		return
	}
	key := strings.TrimSpace(c.Param("key"))
	item, err := h.service.Update(c.Request.Context(), actor, key, req.Value)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}
