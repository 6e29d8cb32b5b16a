package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/unireg-api/internal/models"
	appErrors "github.com/noah-isme/unireg-api/pkg/errors"
	"github.com/noah-isme/unireg-api/pkg/export"
)

// Transcript formats.
const (
	TranscriptCSV = "csv"
	TranscriptPDF = "pdf"
)

type enrollmentReader interface {
	ListByStudent(ctx context.Context, studentID string) ([]models.EnrollmentWithCourse, error)
}

type userReader interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type csvRenderer interface {
	Render(data export.Dataset, trailer ...[]string) ([]byte, error)
}

type pdfRenderer interface {
	Render(doc export.Document) ([]byte, error)
}

// Transcript is a rendered transcript file.
type Transcript struct {
	Filename    string
	ContentType string
	Body        []byte
}

// AcademicRecordService derives GPA summaries on demand and renders transcripts.
type AcademicRecordService struct {
	enrollments enrollmentReader
	users       userReader
	cache       *CacheService
	cacheTTL    time.Duration
	csv         csvRenderer
	pdf         pdfRenderer
	logger      *zap.Logger
}

// NewAcademicRecordService constructs the service. cache may be nil.
func NewAcademicRecordService(enrollments enrollmentReader, users userReader, cache *CacheService, cacheTTL time.Duration, logger *zap.Logger) *AcademicRecordService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AcademicRecordService{
		enrollments: enrollments,
		users:       users,
		cache:       cache,
		cacheTTL:    cacheTTL,
		csv:         export.NewCSVExporter(),
		pdf:         export.NewPDFExporter(),
		logger:      logger,
	}
}

// Record returns the academic record of a student visible to the actor.
func (s *AcademicRecordService) Record(ctx context.Context, actor models.Actor, studentID string) (*models.AcademicRecord, error) {
	student, err := s.authorize(ctx, actor, studentID)
	if err != nil {
		return nil, err
	}

	key := gpaCacheKey(student.ID)
	var cached models.AcademicRecord
	if hit, err := s.cache.Get(ctx, key, &cached); err == nil && hit {
		return &cached, nil
	}

	records, err := s.enrollments.ListByStudent(ctx, student.ID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load enrollments")
	}
	record := BuildAcademicRecord(student.ID, records)
	_ = s.cache.Set(ctx, key, record, s.cacheTTL)
	return record, nil
}

// Invalidate drops the cached record of a student.
func (s *AcademicRecordService) Invalidate(ctx context.Context, studentID string) {
	if err := s.cache.Invalidate(ctx, gpaCacheKey(studentID)); err != nil {
		s.logger.Warn("failed to invalidate gpa cache", zap.String("student_id", studentID), zap.Error(err))
	}
}

// Transcript renders the completed coursework of a student as CSV or PDF.
func (s *AcademicRecordService) Transcript(ctx context.Context, actor models.Actor, studentID, format string) (*Transcript, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = TranscriptPDF
	}
	if format != TranscriptCSV && format != TranscriptPDF {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported transcript format %q", format))
	}
	student, err := s.authorize(ctx, actor, studentID)
	if err != nil {
		return nil, err
	}
	records, err := s.enrollments.ListByStudent(ctx, student.ID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load enrollments")
	}
	record := BuildAcademicRecord(student.ID, records)
	dataset := transcriptDataset(record.Courses)
	summary := []string{
		fmt.Sprintf("Student: %s (%s)", student.FullName, derefString(student.StudentID)),
		fmt.Sprintf("Cumulative GPA: %.2f", record.Cumulative.GPA),
		fmt.Sprintf("Completed credits: %d of %d", record.Cumulative.CompletedCredits, record.Cumulative.TotalCreditsRequired),
	}
	base := fmt.Sprintf("transcript-%s", student.ID)

	switch format {
	case TranscriptCSV:
		body, err := s.csv.Render(dataset,
			[]string{"", "", "Cumulative GPA", strconv.FormatFloat(round2(record.Cumulative.GPA), 'f', 2, 64)},
			[]string{"", "", "Completed credits", strconv.Itoa(record.Cumulative.CompletedCredits)})
		if err != nil {
			return nil, appErrors.Internal(err, "failed to render transcript")
		}
		return &Transcript{Filename: base + ".csv", ContentType: "text/csv", Body: body}, nil
	default:
		body, err := s.pdf.Render(export.Document{
			Title:   "Academic Transcript",
			Summary: summary,
			Data:    dataset,
			Widths:  map[string]float64{"Course": 2, "Term": 1.5},
		})
		if err != nil {
			return nil, appErrors.Internal(err, "failed to render transcript")
		}
		return &Transcript{Filename: base + ".pdf", ContentType: "application/pdf", Body: body}, nil
	}
}

// BuildAcademicRecord assembles cumulative and per-semester figures from enrollment history.
func BuildAcademicRecord(studentID string, records []models.EnrollmentWithCourse) *models.AcademicRecord {
	cumulative := ComputeGPA(records)
	remaining := cumulative.TotalCreditsRequired - cumulative.CompletedCredits
	if remaining < 0 {
		remaining = 0
	}
	courses := make([]models.EnrollmentWithCourse, 0, len(records))
	for _, r := range records {
		if r.Status == models.EnrollmentStatusCompleted {
			courses = append(courses, r)
		}
	}
	return &models.AcademicRecord{
		StudentID:        studentID,
		Cumulative:       cumulative,
		Semesters:        SemesterBreakdown(records),
		RemainingCredits: remaining,
		Courses:          courses,
	}
}

func (s *AcademicRecordService) authorize(ctx context.Context, actor models.Actor, studentID string) (*models.User, error) {
	studentID, err := resolveStudent(actor, studentID)
	if err != nil {
		return nil, err
	}
	student, err := s.users.FindByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Internal(err, "failed to load student")
	}
	if student.Role != models.RoleStudent {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
	}
	switch actor.Role {
	case models.RoleStudent, models.RoleAdmin:
		return student, nil
	case models.RoleAdvisor:
		if advises(actor, student) {
			return student, nil
		}
		return nil, appErrors.Clone(appErrors.ErrForbidden, "student is not your advisee")
	default:
		return nil, appErrors.ErrForbidden
	}
}

func transcriptDataset(courses []models.EnrollmentWithCourse) export.Dataset {
	headers := []string{"Code", "Course", "Term", "Credits", "Grade", "Points"}
	rows := make([]map[string]string, 0, len(courses))
	for _, c := range courses {
		grade := derefString(c.Grade)
		rows = append(rows, map[string]string{
			"Code":    c.CourseCode,
			"Course":  c.CourseName,
			"Term":    fmt.Sprintf("%s %d", c.Semester, c.Year),
			"Credits": strconv.Itoa(c.CreditHours),
			"Grade":   grade,
			"Points":  strconv.FormatFloat(PointsFor(grade), 'f', 2, 64),
		})
	}
	return export.Dataset{Headers: headers, Rows: rows}
}

func gpaCacheKey(studentID string) string {
	return "gpa:" + studentID
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func round2(v float64) float64 {
	return float64(int64(v*100+0.5)) / 100
}
