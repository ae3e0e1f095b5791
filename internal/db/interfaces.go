package db

import (
	"context"
	"time"

	"github.com/cyberkey/cyberkey-backend/internal/models"
)

// APIKeyRepository stores api_keys documents.
type APIKeyRepository interface {
	Create(ctx context.Context, key *models.APIKey) (string, error) // Returns new key ID
	GetByID(ctx context.Context, keyID string) (*models.APIKey, error)
	// ListByUser returns the user's keys, newest first.
	ListByUser(ctx context.Context, userID string, limit int) ([]*models.APIKey, error)
	// ListExpiringBetween returns keys with after < expiresAt <= until.
	ListExpiringBetween(ctx context.Context, after, until time.Time) ([]*models.APIKey, error)
	// ListExpiredBefore returns keys with expiresAt <= at.
	ListExpiredBefore(ctx context.Context, at time.Time) ([]*models.APIKey, error)
	Update(ctx context.Context, key *models.APIKey) error
	Delete(ctx context.Context, keyID string) error
}

// ActivityLogRepository stores activity_logs documents.
type ActivityLogRepository interface {
	Create(ctx context.Context, entry *models.ActivityLog) (string, error)
	GetByID(ctx context.Context, logID string) (*models.ActivityLog, error)
	// ListByUserSince returns the user's entries with timestamp > since.
	ListByUserSince(ctx context.Context, userID string, since time.Time) ([]*models.ActivityLog, error)
	ListRecentByUser(ctx context.Context, userID string, limit int) ([]*models.ActivityLog, error)
	SetIPAddress(ctx context.Context, logID, ip string) error
	// DeleteOlderThan removes entries with timestamp < cutoff and returns how many were removed.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error)
}

// SecurityAlertRepository stores security_alerts documents. There is no delete.
type SecurityAlertRepository interface {
	Create(ctx context.Context, alert *models.SecurityAlert) (string, error)
	GetByID(ctx context.Context, alertID string) (*models.SecurityAlert, error)
	// ListByUser filters by status unless it is empty.
	ListByUser(ctx context.Context, userID string, status models.AlertStatus, limit int) ([]*models.SecurityAlert, error)
	UpdateStatus(ctx context.Context, alertID string, status models.AlertStatus) error
}

// DeviceTokenRepository stores device_tokens documents.
type DeviceTokenRepository interface {
	ListByUser(ctx context.Context, userID string) ([]*models.DeviceToken, error)
	// Register is idempotent per token. A token seen under another user moves to this one.
	Register(ctx context.Context, token *models.DeviceToken) error
	// DeleteByToken removes every record holding token. Deleting a missing token is not an error.
	DeleteByToken(ctx context.Context, token string) (int, error)
	DeleteByUserAndToken(ctx context.Context, userID, token string) (int, error)
}

// SettingsRepository stores user_settings documents keyed by user ID.
type SettingsRepository interface {
	Get(ctx context.Context, userID string) (*models.UserSettings, error)
	Save(ctx context.Context, settings *models.UserSettings) error
}
