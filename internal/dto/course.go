package dto

// CourseInput is the admin payload for creating or updating a catalog entry.
type CourseInput struct {
	Code          string   `json:"code" yaml:"code" validate:"required,max=20"`
	Name          string   `json:"name" yaml:"name" validate:"required"`
	NameLocal     string   `json:"name_local" yaml:"name_local"`
	Description   string   `json:"description" yaml:"description"`
	CreditHours   int      `json:"credit_hours" yaml:"credit_hours" validate:"required,min=1,max=6"`
	Level         int      `json:"level" yaml:"level" validate:"required,min=1,max=8"`
	Prerequisites []string `json:"prerequisites" yaml:"prerequisites" validate:"dive,required"`
	MaxStudents   int      `json:"max_students" yaml:"max_students" validate:"min=0"`
	Days          []string `json:"days" yaml:"days"`
	StartTime     string   `json:"start_time" yaml:"start_time"`
	EndTime       string   `json:"end_time" yaml:"end_time"`
	Room          string   `json:"room" yaml:"room"`
	Active        *bool    `json:"active" yaml:"active"`
}

// CourseCatalog is the document read by the catalog importer.
type CourseCatalog struct {
	Courses []CourseInput `yaml:"courses" validate:"required,min=1,dive"`
}

// ImportResult summarises a catalog import.
type ImportResult struct {
	Created int      `json:"created"`
	Updated int      `json:"updated"`
	Codes   []string `json:"codes"`
}
