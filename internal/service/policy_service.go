package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/unireg-api/internal/dto"
	"github.com/noah-isme/unireg-api/internal/models"
	appErrors "github.com/noah-isme/unireg-api/pkg/errors"
)

// DeadlineLayout is the storage format of deadline settings.
const DeadlineLayout = "2006-01-02"

type settingStore interface {
	List(ctx context.Context) ([]models.SystemSetting, error)
	Upsert(ctx context.Context, setting *models.SystemSetting) error
}

type settingType string

const (
	settingBool   settingType = "BOOLEAN"
	settingInt    settingType = "INTEGER"
	settingDate   settingType = "DATE"
	settingString settingType = "STRING"
)

type allowedSetting struct {
	Key         string
	Type        settingType
	Description string
}

var allowedSettingKeys = []string{
	models.SettingRegistrationOpen,
	models.SettingMaxCreditsPerSemester,
	models.SettingMinCreditsPerSemester,
	models.SettingDropDeadline,
	models.SettingWithdrawDeadline,
	models.SettingCurrentSemester,
	models.SettingCurrentYear,
}

var allowedSettings = map[string]allowedSetting{
	models.SettingRegistrationOpen:      {Key: models.SettingRegistrationOpen, Type: settingBool, Description: "Accept new enroll requests"},
	models.SettingMaxCreditsPerSemester: {Key: models.SettingMaxCreditsPerSemester, Type: settingInt, Description: "Maximum credit hours per semester"},
	models.SettingMinCreditsPerSemester: {Key: models.SettingMinCreditsPerSemester, Type: settingInt, Description: "Minimum credit hours per semester"},
	models.SettingDropDeadline:          {Key: models.SettingDropDeadline, Type: settingDate, Description: "Last day drop requests are accepted (YYYY-MM-DD)"},
	models.SettingWithdrawDeadline:      {Key: models.SettingWithdrawDeadline, Type: settingDate, Description: "Last day withdraw requests are accepted (YYYY-MM-DD)"},
	models.SettingCurrentSemester:       {Key: models.SettingCurrentSemester, Type: settingString, Description: "Semester new enrollments belong to"},
	models.SettingCurrentYear:           {Key: models.SettingCurrentYear, Type: settingInt, Description: "Academic year new enrollments belong to"},
}

// PolicyService exposes registration policy stored in system_settings.
type PolicyService struct {
	repo     settingStore
	audit    auditLogger
	logger   *zap.Logger
	defaults models.RegistrationPolicy
}

// NewPolicyService constructs a PolicyService. defaults apply to keys with no stored row.
func NewPolicyService(repo settingStore, audit auditLogger, logger *zap.Logger, defaults models.RegistrationPolicy) *PolicyService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PolicyService{repo: repo, audit: audit, logger: logger, defaults: defaults}
}

// Policy returns the typed policy. Malformed stored values fall back to defaults.
func (s *PolicyService) Policy(ctx context.Context) (models.RegistrationPolicy, error) {
	policy := s.defaults
	rows, err := s.repo.List(ctx)
	if err != nil {
		return policy, appErrors.Internal(err, "failed to load registration policy")
	}
	for _, row := range rows {
		if err := applySetting(&policy, row.Key, row.Value); err != nil {
			s.logger.Warn("ignoring malformed setting", zap.String("key", row.Key), zap.Error(err))
		}
	}
	return policy, nil
}

// List returns every allowed setting with its effective value.
func (s *PolicyService) List(ctx context.Context) ([]dto.SettingItem, error) {
	rows, err := s.repo.List(ctx)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list settings")
	}
	stored := make(map[string]string, len(rows))
	for _, row := range rows {
		stored[row.Key] = row.Value
	}
	defaults := formatPolicy(s.defaults)
	items := make([]dto.SettingItem, 0, len(allowedSettingKeys))
	for _, key := range allowedSettingKeys {
		meta := allowedSettings[key]
		value, ok := stored[key]
		if !ok {
			value = defaults[key]
		}
		items = append(items, dto.SettingItem{Key: key, Value: value, Type: string(meta.Type), Description: meta.Description})
	}
	return items, nil
}

// Update validates and stores a single setting. Only admins may change policy.
func (s *PolicyService) Update(ctx context.Context, actor models.Actor, key, value string) (*dto.SettingItem, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	meta, ok := allowedSettings[key]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported setting key: %s", key))
	}
	value = strings.TrimSpace(value)
	candidate, err := s.Policy(ctx)
	if err != nil {
		return nil, err
	}
	if err := applySetting(&candidate, key, value); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, fmt.Sprintf("invalid value for %s", key))
	}
	if candidate.MinCredits > candidate.MaxCredits {
		return nil, appErrors.Clone(appErrors.ErrValidation,
			fmt.Sprintf("%s (%d) cannot exceed %s (%d)", models.SettingMinCreditsPerSemester, candidate.MinCredits,
				models.SettingMaxCreditsPerSemester, candidate.MaxCredits))
	}
	if meta.Type == settingBool {
		value = strconv.FormatBool(candidate.RegistrationOpen)
	}

	updatedBy := actor.UserID
	setting := &models.SystemSetting{Key: key, Value: value, UpdatedBy: &updatedBy}
	if err := s.repo.Upsert(ctx, setting); err != nil {
		return nil, appErrors.Internal(err, "failed to update setting")
	}
	if s.audit != nil {
		payload, _ := json.Marshal(map[string]string{"key": key, "value": value})
		if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
			UserID:     &updatedBy,
			Action:     models.AuditActionSettingUpdate,
			Resource:   "system_settings",
			ResourceID: &setting.Key,
			NewValues:  payload,
			IPAddress:  "system",
			UserAgent:  "policy-service",
		}); err != nil {
			s.logger.Warn("failed to persist audit log", zap.Error(err))
		}
	}
	return &dto.SettingItem{Key: key, Value: value, Type: string(meta.Type), Description: meta.Description}, nil
}

func applySetting(policy *models.RegistrationPolicy, key, value string) error {
	value = strings.TrimSpace(value)
	switch key {
	case models.SettingRegistrationOpen:
		open, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		policy.RegistrationOpen = open
	case models.SettingMaxCreditsPerSemester, models.SettingMinCreditsPerSemester, models.SettingCurrentYear:
		n, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		if n < 0 || (n == 0 && key != models.SettingMinCreditsPerSemester) {
			return fmt.Errorf("%s must be positive", key)
		}
		switch key {
		case models.SettingMaxCreditsPerSemester:
			policy.MaxCredits = n
		case models.SettingMinCreditsPerSemester:
			policy.MinCredits = n
		default:
			policy.CurrentYear = n
		}
	case models.SettingDropDeadline, models.SettingWithdrawDeadline:
		var deadline *time.Time
		if value != "" {
			parsed, err := time.Parse(DeadlineLayout, value)
			if err != nil {
				return err
			}
			deadline = &parsed
		}
		if key == models.SettingDropDeadline {
			policy.DropDeadline = deadline
		} else {
			policy.WithdrawDeadline = deadline
		}
	case models.SettingCurrentSemester:
		if value == "" {
			return fmt.Errorf("%s must not be empty", key)
		}
		policy.CurrentSemester = value
	default:
		return fmt.Errorf("unknown setting %s", key)
	}
	return nil
}

func formatPolicy(policy models.RegistrationPolicy) map[string]string {
	values := map[string]string{
		models.SettingRegistrationOpen:      strconv.FormatBool(policy.RegistrationOpen),
		models.SettingMaxCreditsPerSemester: strconv.Itoa(policy.MaxCredits),
		models.SettingMinCreditsPerSemester: strconv.Itoa(policy.MinCredits),
		models.SettingCurrentSemester:       policy.CurrentSemester,
		models.SettingCurrentYear:           strconv.Itoa(policy.CurrentYear),
		models.SettingDropDeadline:          "",
		models.SettingWithdrawDeadline:      "",
	}
	if policy.DropDeadline != nil {
		values[models.SettingDropDeadline] = policy.DropDeadline.Format(DeadlineLayout)
	}
	if policy.WithdrawDeadline != nil {
		values[models.SettingWithdrawDeadline] = policy.WithdrawDeadline.Format(DeadlineLayout)
	}
	return values
}

// withinDeadline reports whether now falls on or before the deadline's calendar day.
// A missing deadline never blocks.
func withinDeadline(now time.Time, deadline *time.Time) bool {
	if deadline == nil {
		return true
	}
	y, m, d := deadline.Date()
	endOfDay := time.Date(y, m, d, 0, 0, 0, 0, now.Location()).AddDate(0, 0, 1)
	return now.Before(endOfDay)
}
