package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/unireg-api/internal/models"
	appErrors "github.com/noah-isme/unireg-api/pkg/errors"
	"github.com/noah-isme/unireg-api/pkg/response"
)

type notificationLister interface {
	ListForUser(ctx context.Context, actor models.Actor, limit int) ([]models.Notification, error)
}

// NotificationHandler lists the caller's workflow notifications.
type NotificationHandler struct {
	service notificationLister
}

// NewNotificationHandler constructs the handler.
func NewNotificationHandler(service notificationLister) *NotificationHandler {
	return &NotificationHandler{service: service}
}

// List godoc
// @Summary List my notifications
// @Tags Notifications
// @Produce json
// @Param limit query int false "Maximum items"
// @Success 200 {object} response.Envelope
// @Router /notifications [get]
func (h *NotificationHandler) List(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	items, err := h.service.ListForUser(c.Request.Context(), actor, queryInt(c, "limit", 50))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}
