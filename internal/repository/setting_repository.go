package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/unireg-api/internal/models"
)

// SettingRepository persists system_settings policy values.
type SettingRepository struct {
	db *sqlx.DB
}

// NewSettingRepository constructs the repository.
func NewSettingRepository(db *sqlx.DB) *SettingRepository {
	return &SettingRepository{db: db}
}

// List returns all stored settings.
func (r *SettingRepository) List(ctx context.Context) ([]models.SystemSetting, error) {
	const query = `SELECT setting_key, setting_value, updated_by, updated_at FROM system_settings ORDER BY setting_key ASC`
	var settings []models.SystemSetting
	if err := r.db.SelectContext(ctx, &settings, query); err != nil {
		return nil, fmt.Errorf("list settings: %w", err)
	}
	return settings, nil
}

// Upsert inserts or updates a setting.
func (r *SettingRepository) Upsert(ctx context.Context, setting *models.SystemSetting) error {
	setting.UpdatedAt = time.Now().UTC()
	const query = `INSERT INTO system_settings (setting_key, setting_value, updated_by, updated_at)
VALUES (:setting_key, :setting_value, :updated_by, :updated_at)
ON CONFLICT (setting_key)
DO UPDATE SET setting_value = EXCLUDED.setting_value, updated_by = EXCLUDED.updated_by, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, setting); err != nil {
		return fmt.Errorf("upsert setting: %w", err)
	}
	return nil
}
