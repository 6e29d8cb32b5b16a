package models

import "time"

// Keys stored in system_settings.
const (
	SettingRegistrationOpen      = "registration_open"
	SettingMaxCreditsPerSemester = "max_credits_per_semester"
	SettingMinCreditsPerSemester = "min_credits_per_semester"
	SettingDropDeadline          = "drop_deadline"
	SettingWithdrawDeadline      = "withdraw_deadline"
	SettingCurrentSemester       = "current_semester"
	SettingCurrentYear           = "current_year"
)

// SystemSetting is a persisted policy value.
type SystemSetting struct {
	Key       string    `db:"setting_key" json:"key"`
	Value     string    `db:"setting_value" json:"value"`
	UpdatedBy *string   `db:"updated_by" json:"updated_by,omitempty"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// RegistrationPolicy is the typed view of system_settings consumed by eligibility checks.
type RegistrationPolicy struct {
	RegistrationOpen   bool       `json:"registration_open"`
	MaxCredits         int        `json:"max_credits_per_semester"`
	MinCredits         int        `json:"min_credits_per_semester"`
	DropDeadline       *time.Time `json:"drop_deadline,omitempty"`
	WithdrawDeadline   *time.Time `json:"withdraw_deadline,omitempty"`
	CurrentSemester    string     `json:"current_semester"`
	CurrentYear        int        `json:"current_year"`
	EnforceCreditLimit bool       `json:"enforce_credit_limit"`
}
