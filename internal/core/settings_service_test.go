package core

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cyberkey/cyberkey-backend/internal/models"
)

func TestSettingsService_GetCreatesDefaults(t *testing.T) {
	repos := newRepos()
	svc := NewSettingsService(repos.Settings, nil, nopLogger)

	settings, err := svc.Get(context.Background(), "u1")
	require.NoError(t, err)
	assert.False(t, settings.Notifications.EmailEnabled)
	assert.Equal(t, 3, settings.Notifications.DaysBeforeExpiration)
	assert.Equal(t, float64(10), settings.Notifications.LowBalanceThreshold)
	assert.Equal(t, "daily", settings.Notifications.NotificationFrequency)
	assert.Equal(t, "system", settings.Preferences.Theme)
	assert.Equal(t, "UTC", settings.Preferences.Timezone)
	assert.Equal(t, 30, settings.Preferences.DefaultExpirationDays)

	stored, err := repos.Settings.Get(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, settings.Notifications, stored.Notifications)
}

func TestSettingsService_UpdateRecordsActivity(t *testing.T) {
	repos := newRepos()
	publisher := &fakePublisher{}
	svc := NewSettingsService(repos.Settings, NewActivityService(repos.ActivityLogs, publisher, nopLogger), nopLogger)

	notifications := models.DefaultUserSettings("u1").Notifications
	notifications.EmailEnabled = true
	notifications.DaysBeforeExpiration = 7
	notifications.SMTPSettings = &models.SMTPSettings{Host: "smtp.example.com", Port: 465, Secure: true, FromEmail: "me@example.com"}

	settings, err := svc.Update(context.Background(), "u1", models.UpdateSettingsRequest{Notifications: &notifications})
	require.NoError(t, err)
	assert.True(t, settings.Notifications.EmailEnabled)
	assert.Equal(t, "system", settings.Preferences.Theme)

	stored, err := repos.Settings.Get(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 7, stored.Notifications.DaysBeforeExpiration)
	require.NotNil(t, stored.Notifications.SMTPSettings)

	require.Len(t, publisher.events, 1)
	assert.Equal(t, models.ActivitySettingsUpdated, publisher.events[0].entry.Type)
}

func TestSettingsService_UpdateValidation(t *testing.T) {
	svc := NewSettingsService(newRepos().Settings, nil, nopLogger)

	badDays := models.DefaultUserSettings("u1").Notifications
	badDays.DaysBeforeExpiration = 0
	badSMTP := models.DefaultUserSettings("u1").Notifications
	badSMTP.SMTPSettings = &models.SMTPSettings{Port: 587}
	badTheme := models.DefaultUserSettings("u1").Preferences
	badTheme.Theme = "neon"
	badZone := models.DefaultUserSettings("u1").Preferences
	badZone.Timezone = "Mars/Olympus"

	for name, req := range map[string]models.UpdateSettingsRequest{
		"empty":     {},
		"days":      {Notifications: &badDays},
		"smtp":      {Notifications: &badSMTP},
		"theme":     {Preferences: &badTheme},
		"time zone": {Preferences: &badZone},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Update(context.Background(), "u1", req)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestSettingsService_Reset(t *testing.T) {
	repos := newRepos()
	svc := NewSettingsService(repos.Settings, nil, nopLogger)

	prefs := models.Preferences{Theme: "dark", Timezone: "UTC", DefaultExpirationDays: 7}
	_, err := svc.Update(context.Background(), "u1", models.UpdateSettingsRequest{Preferences: &prefs})
	require.NoError(t, err)

	settings, err := svc.Reset(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "system", settings.Preferences.Theme)
}
