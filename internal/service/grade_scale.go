package service

import "strings"

// gradeScale maps letter grades to grade points. Values are fixed for GPA compatibility.
var gradeScale = map[string]float64{
	"A+": 5.0,
	"A":  4.75,
	"B+": 4.5,
	"B":  4.0,
	"C+": 3.5,
	"C":  3.0,
	"D+": 2.5,
	"D":  2.0,
	"F":  0,
}

// PointsFor returns the grade-point value for a letter grade. Unknown or empty grades score 0.
func PointsFor(grade string) float64 {
	return gradeScale[normalizeGrade(grade)]
}

// IsKnownGrade reports whether the grade is on the scale.
func IsKnownGrade(grade string) bool {
	_, ok := gradeScale[normalizeGrade(grade)]
	return ok
}

func normalizeGrade(grade string) string {
	return strings.ToUpper(strings.TrimSpace(grade))
}
