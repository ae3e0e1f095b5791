package models

import "time"

// CreateAPIKeyRequest is the body for storing a new third-party key.
type CreateAPIKeyRequest struct {
	Name           string     `json:"name" binding:"required"`
	Key            string     `json:"key" binding:"required"`
	ProviderName   string     `json:"providerName" binding:"required"`
	FundingLink    string     `json:"fundingLink,omitempty"`
	Balance        float64    `json:"balance,omitempty"`
	AllowedOrigins []string   `json:"allowedOrigins,omitempty"`
	RateLimit      *RateLimit `json:"rateLimit,omitempty"`
	ExpiresAt      *time.Time `json:"expiresAt,omitempty"`
}

// UpdateAPIKeyRequest carries optional changes. Nil fields are left alone.
// ClearExpiry removes the expiry; it wins over ExpiresAt.
type UpdateAPIKeyRequest struct {
	Name           *string    `json:"name,omitempty"`
	Key            *string    `json:"key,omitempty"`
	ProviderName   *string    `json:"providerName,omitempty"`
	FundingLink    *string    `json:"fundingLink,omitempty"`
	Balance        *float64   `json:"balance,omitempty"`
	Active         *bool      `json:"active,omitempty"`
	AllowedOrigins *[]string  `json:"allowedOrigins,omitempty"`
	RateLimit      *RateLimit `json:"rateLimit,omitempty"`
	ExpiresAt      *time.Time `json:"expiresAt,omitempty"`
	ClearExpiry    bool       `json:"clearExpiry,omitempty"`
}

// UpdateBalanceRequest records a balance fetched by the client.
type UpdateBalanceRequest struct {
	Balance float64 `json:"balance"`
}

// LogActivityRequest is the body for appending an activity record.
type LogActivityRequest struct {
	Type    ActivityType           `json:"type" binding:"required"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// UpdateSettingsRequest replaces the sections that are present.
type UpdateSettingsRequest struct {
	Notifications *NotificationPreferences `json:"notifications,omitempty"`
	Preferences   *Preferences             `json:"preferences,omitempty"`
}

// UpdateAlertStatusRequest acknowledges or resolves an alert.
type UpdateAlertStatusRequest struct {
	Status AlertStatus `json:"status" binding:"required"`
}

// RegisterDeviceRequest registers a push token.
type RegisterDeviceRequest struct {
	Token    string `json:"token" binding:"required"`
	Platform string `json:"platform,omitempty"`
}

// TestSMTPRequest is the body of POST /api/test-smtp.
type TestSMTPRequest struct {
	Settings *SMTPSettings `json:"settings"`
	To       string        `json:"to"`
}
