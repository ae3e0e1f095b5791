package models

import "time"

// ActivityType enumerates the user actions recorded in activity_logs.
type ActivityType string

const (
	ActivityLogin           ActivityType = "LOGIN"
	ActivityLogout          ActivityType = "LOGOUT"
	ActivityAPIKeyCreated   ActivityType = "API_KEY_CREATED"
	ActivityAPIKeyUpdated   ActivityType = "API_KEY_UPDATED"
	ActivityAPIKeyDeleted   ActivityType = "API_KEY_DELETED"
	ActivitySettingsUpdated ActivityType = "SETTINGS_UPDATED"
	ActivitySessionExtended ActivityType = "SESSION_EXTENDED"
	ActivitySessionExpired  ActivityType = "SESSION_EXPIRED"
)

var activityTypes = map[ActivityType]struct{}{
	ActivityLogin:           {},
	ActivityLogout:          {},
	ActivityAPIKeyCreated:   {},
	ActivityAPIKeyUpdated:   {},
	ActivityAPIKeyDeleted:   {},
	ActivitySettingsUpdated: {},
	ActivitySessionExtended: {},
	ActivitySessionExpired:  {},
}

// Valid reports whether t is one of the known activity types.
func (t ActivityType) Valid() bool {
	_, ok := activityTypes[t]
	return ok
}

// ActivityLog is an append-only audit record. Only IPAddress is written after creation.
type ActivityLog struct {
	ID        string                 `json:"id" firestore:"-"`
	UserID    string                 `json:"userId" firestore:"userId"`
	Type      ActivityType           `json:"type" firestore:"type"`
	Timestamp time.Time              `json:"timestamp" firestore:"timestamp,serverTimestamp"`
	Details   map[string]interface{} `json:"details,omitempty" firestore:"details,omitempty"`
	IPAddress string                 `json:"ipAddress,omitempty" firestore:"ipAddress,omitempty"`
	UserAgent string                 `json:"userAgent,omitempty" firestore:"userAgent,omitempty"`
}
