package dto

// SettingItem represents a policy setting exposed via API.
type SettingItem struct {
	Key         string `json:"key"`
	Value       string `json:"value"`
	Type        string `json:"type"`
	Description string `json:"description"`
}

// UpdateSettingRequest describes payload for updating a single setting.
type UpdateSettingRequest struct {
	Value string `json:"value" validate:"required"`
}
