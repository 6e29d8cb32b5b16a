package dto

// PostGradeRequest records the final letter grade of an enrollment.
type PostGradeRequest struct {
	Grade string `json:"grade" validate:"required,max=2"`
}
