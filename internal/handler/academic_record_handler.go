package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/unireg-api/internal/dto"
	"github.com/noah-isme/unireg-api/internal/models"
	"github.com/noah-isme/unireg-api/internal/service"
	appErrors "github.com/noah-isme/unireg-api/pkg/errors"
	"github.com/noah-isme/unireg-api/pkg/response"
)

type academicRecordService interface {
	Record(ctx context.Context, actor models.Actor, studentID string) (*models.AcademicRecord, error)
	Transcript(ctx context.Context, actor models.Actor, studentID, format string) (*service.Transcript, error)
}

type gradingService interface {
	PostFinalGrade(ctx context.Context, actor models.Actor, enrollmentID string, req dto.PostGradeRequest) (*models.Enrollment, error)
}

// AcademicRecordHandler serves GPA summaries, transcripts and grade posting.
type AcademicRecordHandler struct {
	records academicRecordService
	grading gradingService
}

// NewAcademicRecordHandler constructs the handler.
func NewAcademicRecordHandler(records academicRecordService, grading gradingService) *AcademicRecordHandler {
	return &AcademicRecordHandler{records: records, grading: grading}
}

// Record godoc
// @Summary Get a student's academic record
// @Tags Academic Records
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/record [get]
func (h *AcademicRecordHandler) Record(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	record, err := h.records.Record(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}

// Transcript godoc
// @Summary Download a transcript
// @Tags Academic Records
// @Produce application/pdf
// @Produce text/csv
// @Param id path string true "Student ID"
// @Param format query string false "pdf or csv"
// @Success 200 {file} file
// @Router /students/{id}/transcript [get]
func (h *AcademicRecordHandler) Transcript(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	format := strings.ToLower(strings.TrimSpace(c.Query("format")))
	transcript, err := h.records.Transcript(c.Request.Context(), actor, c.Param("id"), format)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, transcript.Filename, transcript.ContentType, transcript.Body)
}

// PostGrade godoc
// @Summary Post the final grade of an enrollment
// @Tags Academic Records
// @Accept json
// @Produce json
// @Param id path string true "Enrollment ID"
// @Param payload body dto.PostGradeRequest true "Grade payload"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id}/grade [post]
func (h *AcademicRecordHandler) PostGrade(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.PostGradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid grade payload"))
		return
	}
	enrollment, err := h.grading.PostFinalGrade(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollment, nil)
}
