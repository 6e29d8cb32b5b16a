package service

import (
	"sort"
	"strings"

	"github.com/noah-isme/unireg-api/internal/models"
)

// ComputeGPA aggregates completed enrollments into a credit-weighted GPA.
// Records that are not completed are ignored and the input is never modified.
func ComputeGPA(records []models.EnrollmentWithCourse) models.GPAResult {
	var totalPoints float64
	var totalCredits int
	for _, record := range records {
		if record.Status != models.EnrollmentStatusCompleted {
			continue
		}
		grade := ""
		if record.Grade != nil {
			grade = *record.Grade
		}
		totalPoints += PointsFor(grade) * float64(record.CreditHours)
		totalCredits += record.CreditHours
	}
	result := models.GPAResult{
		TotalPoints:          totalPoints,
		CompletedCredits:     totalCredits,
		TotalCreditsRequired: models.TotalCreditsRequired,
	}
	if totalCredits > 0 {
		result.GPA = totalPoints / float64(totalCredits)
	}
	return result
}

// ComputeSemesterGPA restricts ComputeGPA to one (semester, year) pair.
func ComputeSemesterGPA(records []models.EnrollmentWithCourse, semester string, year int) models.GPAResult {
	filtered := make([]models.EnrollmentWithCourse, 0, len(records))
	for _, record := range records {
		if record.Semester == semester && record.Year == year {
			filtered = append(filtered, record)
		}
	}
	return ComputeGPA(filtered)
}

// termOrder ranks term names within a calendar year. Unlisted names sort after these.
var termOrder = map[string]int{"winter": 0, "spring": 1, "summer": 2, "fall": 3, "autumn": 3}

func termRank(semester string) int {
	if rank, ok := termOrder[strings.ToLower(strings.TrimSpace(semester))]; ok {
		return rank
	}
	return len(termOrder)
}

// SemesterBreakdown returns one GPA entry per term that has completed work, oldest first.
func SemesterBreakdown(records []models.EnrollmentWithCourse) []models.SemesterGPA {
	type term struct {
		semester string
		year     int
	}
	seen := make(map[term]struct{})
	terms := make([]term, 0)
	for _, record := range records {
		if record.Status != models.EnrollmentStatusCompleted {
			continue
		}
		key := term{semester: record.Semester, year: record.Year}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		terms = append(terms, key)
	}
	sort.Slice(terms, func(i, j int) bool {
		if terms[i].year != terms[j].year {
			return terms[i].year < terms[j].year
		}
		ri, rj := termRank(terms[i].semester), termRank(terms[j].semester)
		if ri != rj {
			return ri < rj
		}
		return terms[i].semester < terms[j].semester
	})

	breakdown := make([]models.SemesterGPA, 0, len(terms))
	for _, t := range terms {
		breakdown = append(breakdown, models.SemesterGPA{
			Semester:  t.semester,
			Year:      t.year,
			GPAResult: ComputeSemesterGPA(records, t.semester, t.year),
		})
	}
	return breakdown
}
