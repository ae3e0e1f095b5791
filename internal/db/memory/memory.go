// Package memory holds map-backed repositories with the same semantics as the
// Firestore ones. It is test and local-wiring support: the service, handler
// and app tests pass it to app.Assemble in place of Firestore. app.New never
// selects it.
package memory

import (
	"sync"

	"github.com/google/uuid"

	"github.com/cyberkey/cyberkey-backend/internal/db"
)

// Store owns the collections shared by the repositories it hands out.
type Store struct {
	mu sync.RWMutex

	apiKeys      map[string]apiKeyRow
	activityLogs map[string]activityRow
	alerts       map[string]alertRow
	deviceTokens map[string]deviceRow
	settings     map[string]settingsRow
}

func NewStore() *Store {
	return &Store{
		apiKeys:      make(map[string]apiKeyRow),
		activityLogs: make(map[string]activityRow),
		alerts:       make(map[string]alertRow),
		deviceTokens: make(map[string]deviceRow),
		settings:     make(map[string]settingsRow),
	}
}

// Repositories exposes the store through the db interfaces.
func (s *Store) Repositories() *db.Repositories {
	return &db.Repositories{
		APIKeys:      &APIKeyRepository{s: s},
		ActivityLogs: &ActivityLogRepository{s: s},
		Alerts:       &SecurityAlertRepository{s: s},
		DeviceTokens: &DeviceTokenRepository{s: s},
		Settings:     &SettingsRepository{s: s},
	}
}

func newID() string {
	return uuid.NewString()
}
