package memory

import (
	"context"
	"fmt"

	"github.com/cyberkey/cyberkey-backend/internal/db"
	"github.com/cyberkey/cyberkey-backend/internal/models"
)

type settingsRow struct{ settings models.UserSettings }

func cloneSettings(s *models.UserSettings) *models.UserSettings {
	c := *s
	if s.Notifications.SMTPSettings != nil {
		smtp := *s.Notifications.SMTPSettings
		c.Notifications.SMTPSettings = &smtp
	}
	return &c
}

type SettingsRepository struct{ s *Store }

func (r *SettingsRepository) Get(_ context.Context, userID string) (*models.UserSettings, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	row, ok := r.s.settings[userID]
	if !ok {
		return nil, fmt.Errorf("get user_settings '%s': %w", userID, db.ErrNotFound)
	}
	return cloneSettings(&row.settings), nil
}

func (r *SettingsRepository) Save(_ context.Context, settings *models.UserSettings) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	r.s.settings[settings.UserID] = settingsRow{settings: *cloneSettings(settings)}
	return nil
}
