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

type registrationService interface {
	CheckEligibility(ctx context.Context, actor models.Actor, studentID, courseID string) (*models.EligibilityDecision, error)
	Create(ctx context.Context, actor models.Actor, req dto.CreateRegistrationRequest) (*models.RegistrationRequest, error)
	Approve(ctx context.Context, actor models.Actor, id string, payload dto.ApproveRegistrationRequest) (*models.RegistrationRequest, error)
	Reject(ctx context.Context, actor models.Actor, id string, payload dto.RejectRegistrationRequest) (*models.RegistrationRequest, error)
	Get(ctx context.Context, actor models.Actor, id string) (*models.RegistrationRequest, error)
	List(ctx context.Context, actor models.Actor, query dto.RequestQuery) ([]models.RegistrationRequest, error)
}

// RegistrationHandler exposes the enroll/drop/withdraw request workflow.
type RegistrationHandler struct {
	service registrationService
}

// NewRegistrationHandler constructs the handler.
func NewRegistrationHandler(service registrationService) *RegistrationHandler {
	return &RegistrationHandler{service: service}
}

// Create godoc
// @Summary Submit a registration request
// @Tags Registration
// @Accept json
// @Produce json
// @Param payload body dto.CreateRegistrationRequest true "Request payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /registration/requests [post]
func (h *RegistrationHandler) Create(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.CreateRegistrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid registration payload"))
		return
	}
	req.Type = models.RequestType(strings.ToLower(strings.TrimSpace(string(req.Type))))
	created, err := h.service.Create(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, created)
}

// List godoc
// @Summary List registration requests visible to the caller
// @Tags Registration
// @Produce json
// @Param status query string false "Comma separated statuses"
// @Param type query string false "Request type"
// @Param student_id query string false "Student filter"
// @Param course_id query string false "Course filter"
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Success 200 {object} response.Envelope
// @Router /registration/requests [get]
func (h *RegistrationHandler) List(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	query := dto.RequestQuery{
		StudentID: strings.TrimSpace(c.Query("student_id")),
		CourseID:  strings.TrimSpace(c.Query("course_id")),
		Limit:     queryInt(c, "limit", 0),
		Offset:    queryInt(c, "offset", 0),
	}
	if rawType := strings.TrimSpace(c.Query("type")); rawType != "" {
		query.Type = models.RequestType(strings.ToLower(rawType))
		if !query.Type.Valid() {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "unknown request type"))
			return
		}
	}
	if rawStatus := c.Query("status"); rawStatus != "" {
		for _, part := range strings.Split(rawStatus, ",") {
			part = strings.ToLower(strings.TrimSpace(part))
			if part == "" {
				continue
			}
			query.Status = append(query.Status, models.RequestStatus(part))
		}
	}
	requests, err := h.service.List(c.Request.Context(), actor, query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, requests, nil)
}

// Get godoc
// @Summary Get a registration request
// @Tags Registration
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /registration/requests/{id} [get]
func (h *RegistrationHandler) Get(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	req, err := h.service.Get(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, req, nil)
}

// Approve godoc
// @Summary Approve a pending request
// @Tags Registration
// @Accept json
// @Produce json
// @Param id path string true "Request ID"
// @Param payload body dto.ApproveRegistrationRequest false "Optional note"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /registration/requests/{id}/approve [post]
func (h *RegistrationHandler) Approve(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var payload dto.ApproveRegistrationRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&payload); err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid approval payload"))
			return
		}
	}
	req, err := h.service.Approve(c.Request.Context(), actor, c.Param("id"), payload)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, req, nil)
}

// Reject godoc
// @Summary Reject a pending request
// @Tags Registration
// @Accept json
// @Produce json
// @Param id path string true "Request ID"
// @Param payload body dto.RejectRegistrationRequest true "Rejection reason"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /registration/requests/{id}/reject [post]
func (h *RegistrationHandler) Reject(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var payload dto.RejectRegistrationRequest
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.ErrMissingRejectionReason)
		return
	}
	req, err := h.service.Reject(c.Request.Context(), actor, c.Param("id"), payload)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, req, nil)
}

// Eligibility godoc
// @Summary Dry-run the enrollment eligibility checks
// @Tags Registration
// @Produce json
// @Param course_id query string true "Course ID"
// @Param student_id query string false "Student ID (advisor/admin)"
// @Success 200 {object} response.Envelope
// @Router /registration/eligibility [get]
func (h *RegistrationHandler) Eligibility(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	courseID := strings.TrimSpace(c.Query("course_id"))
	if courseID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "course_id is required"))
		return
	}
	decision, err := h.service.CheckEligibility(c.Request.Context(), actor, strings.TrimSpace(c.Query("student_id")), courseID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, decision, nil)
}
