package service

import (
	"strings"

	"github.com/noah-isme/unireg-api/internal/models"
)

// CompletedCourseCodes collects the codes of completed enrollments.
// In-progress work does not count.
func CompletedCourseCodes(records []models.EnrollmentWithCourse) map[string]struct{} {
	codes := make(map[string]struct{}, len(records))
	for _, record := range records {
		if record.Status == models.EnrollmentStatusCompleted {
			codes[normalizeCode(record.CourseCode)] = struct{}{}
		}
	}
	return codes
}

// PrerequisitesSatisfied reports whether every prerequisite of course is in completed.
func PrerequisitesSatisfied(course *models.Course, completed map[string]struct{}) bool {
	return len(MissingPrerequisites(course, completed)) == 0
}

// MissingPrerequisites lists prerequisite codes absent from completed, in catalog order.
func MissingPrerequisites(course *models.Course, completed map[string]struct{}) []string {
	if course == nil || len(course.Prerequisites) == 0 {
		return nil
	}
	var missing []string
	for _, code := range course.Prerequisites {
		if _, ok := completed[normalizeCode(code)]; !ok {
			missing = append(missing, code)
		}
	}
	return missing
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
