package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/cyberkey/cyberkey-backend/internal/db"
	"github.com/cyberkey/cyberkey-backend/internal/models"
)

var (
	validThemes      = map[string]bool{"light": true, "dark": true, "system": true}
	validFrequencies = map[string]bool{"immediate": true, "daily": true, "weekly": true}
)

type settingsService struct {
	repo     db.SettingsRepository
	activity ActivityService
	logger   *zap.Logger
	now      func() time.Time
}

func NewSettingsService(repo db.SettingsRepository, activity ActivityService, logger *zap.Logger) SettingsService {
	return &settingsService{repo: repo, activity: activity, logger: logger, now: time.Now}
}

// Get returns the stored settings, saving the defaults on first access.
func (s *settingsService) Get(ctx context.Context, userID string) (*models.UserSettings, error) {
	settings, err := s.repo.Get(ctx, userID)
	if err == nil {
		settings.UserID = userID
		return settings, nil
	}
	if !errors.Is(err, db.ErrNotFound) {
		return nil, fmt.Errorf("failed to load settings for user '%s': %w", userID, err)
	}

	settings = models.DefaultUserSettings(userID)
	settings.UpdatedAt = s.now()
	if err := s.repo.Save(ctx, settings); err != nil {
		return nil, fmt.Errorf("failed to initialize settings for user '%s': %w", userID, err)
	}
	return settings, nil
}

func validateNotifications(n *models.NotificationPreferences) error {
	if n.DaysBeforeExpiration < 1 || n.DaysBeforeExpiration > 365 {
		return fmt.Errorf("%w: daysBeforeExpiration must be between 1 and 365", ErrValidation)
	}
	if n.LowBalanceThreshold < 0 {
		return fmt.Errorf("%w: lowBalanceThreshold cannot be negative", ErrValidation)
	}
	if n.NotificationFrequency != "" && !validFrequencies[n.NotificationFrequency] {
		return fmt.Errorf("%w: unknown notificationFrequency '%s'", ErrValidation, n.NotificationFrequency)
	}
	if n.SMTPSettings != nil {
		if err := toMailerSettings(*n.SMTPSettings).Validate(); err != nil {
			return fmt.Errorf("%w: %v", ErrValidation, err)
		}
	}
	return nil
}

func validatePreferences(p *models.Preferences) error {
	if p.Theme != "" && !validThemes[p.Theme] {
		return fmt.Errorf("%w: unknown theme '%s'", ErrValidation, p.Theme)
	}
	if p.Timezone != "" {
		if _, err := time.LoadLocation(p.Timezone); err != nil {
			return fmt.Errorf("%w: unknown timezone '%s'", ErrValidation, p.Timezone)
		}
	}
	if p.DefaultExpirationDays < 0 {
		return fmt.Errorf("%w: defaultExpirationDays cannot be negative", ErrValidation)
	}
	return nil
}

// Update replaces each section present in req and records SETTINGS_UPDATED.
func (s *settingsService) Update(ctx context.Context, userID string, req models.UpdateSettingsRequest) (*models.UserSettings, error) {
	if req.Notifications == nil && req.Preferences == nil {
		return nil, fmt.Errorf("%w: nothing to update", ErrValidation)
	}
	if req.Notifications != nil {
		if err := validateNotifications(req.Notifications); err != nil {
			return nil, err
		}
	}
	if req.Preferences != nil {
		if err := validatePreferences(req.Preferences); err != nil {
			return nil, err
		}
	}

	settings, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if req.Notifications != nil {
		settings.Notifications = *req.Notifications
	}
	if req.Preferences != nil {
		settings.Preferences = *req.Preferences
	}
	settings.UpdatedAt = s.now()

	if err := s.repo.Save(ctx, settings); err != nil {
		return nil, fmt.Errorf("failed to save settings for user '%s': %w", userID, err)
	}

	if s.activity != nil {
		sections := []string{}
		if req.Notifications != nil {
			sections = append(sections, "notifications")
		}
		if req.Preferences != nil {
			sections = append(sections, "preferences")
		}
		if _, err := s.activity.Log(ctx, userID, models.LogActivityRequest{
			Type:    models.ActivitySettingsUpdated,
			Details: map[string]interface{}{"sections": sections},
		}, "", nil); err != nil {
			s.logger.Warn("Failed to record settings update", zap.String("userID", userID), zap.Error(err))
		}
	}
	return settings, nil
}

// Reset overwrites the user's settings with the defaults.
func (s *settingsService) Reset(ctx context.Context, userID string) (*models.UserSettings, error) {
	settings := models.DefaultUserSettings(userID)
	settings.UpdatedAt = s.now()
	if err := s.repo.Save(ctx, settings); err != nil {
		return nil, fmt.Errorf("failed to reset settings for user '%s': %w", userID, err)
	}
	return settings, nil
}
