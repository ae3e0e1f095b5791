package models

import "time"

// SMTPSettings is a user-supplied outgoing mail server.
type SMTPSettings struct {
	Host      string `json:"host" firestore:"host"`
	Port      int    `json:"port" firestore:"port"`
	Secure    bool   `json:"secure" firestore:"secure"`
	Username  string `json:"username" firestore:"username"`
	Password  string `json:"password" firestore:"password"`
	FromEmail string `json:"fromEmail" firestore:"fromEmail"`
}

// NotificationPreferences controls expiry and balance notifications.
type NotificationPreferences struct {
	EmailEnabled          bool          `json:"emailEnabled" firestore:"emailEnabled"`
	BrowserEnabled        bool          `json:"browserEnabled" firestore:"browserEnabled"`
	DaysBeforeExpiration  int           `json:"daysBeforeExpiration" firestore:"daysBeforeExpiration"`
	BalanceAlerts         bool          `json:"balanceAlerts" firestore:"balanceAlerts"`
	LowBalanceThreshold   float64       `json:"lowBalanceThreshold" firestore:"lowBalanceThreshold"`
	NotificationFrequency string        `json:"notificationFrequency" firestore:"notificationFrequency"`
	SMTPSettings          *SMTPSettings `json:"smtpSettings,omitempty" firestore:"smtpSettings,omitempty"`
	NotificationEmail     string        `json:"notificationEmail,omitempty" firestore:"notificationEmail,omitempty"`
}

type Preferences struct {
	Theme                 string `json:"theme" firestore:"theme"`
	Timezone              string `json:"timezone" firestore:"timezone"`
	DefaultExpirationDays int    `json:"defaultExpirationDays" firestore:"defaultExpirationDays"`
}

// UserSettings is stored in user_settings under the user's ID.
type UserSettings struct {
	UserID        string                  `json:"userId" firestore:"-"`
	Notifications NotificationPreferences `json:"notifications" firestore:"notifications"`
	Preferences   Preferences             `json:"preferences" firestore:"preferences"`
	UpdatedAt     time.Time               `json:"updatedAt" firestore:"updatedAt,serverTimestamp"`
}

// DefaultUserSettings returns the settings a user starts with.
func DefaultUserSettings(userID string) *UserSettings {
	return &UserSettings{
		UserID: userID,
		Notifications: NotificationPreferences{
			EmailEnabled:          false,
			BrowserEnabled:        false,
			DaysBeforeExpiration:  3,
			BalanceAlerts:         false,
			LowBalanceThreshold:   10,
			NotificationFrequency: "daily",
		},
		Preferences: Preferences{
			Theme:                 "system",
			Timezone:              "UTC",
			DefaultExpirationDays: 30,
		},
	}
}
