package core

import (
	"context"
	"net/http"

	"github.com/cyberkey/cyberkey-backend/internal/models"
	"github.com/cyberkey/cyberkey-backend/pkg/mailer"
)

// Notifier delivers a notification to every device registered by a user.
type Notifier interface {
	Dispatch(ctx context.Context, userID string, notification models.Notification) (*models.DispatchResult, error)
}

// PushMessage is the platform-neutral payload handed to a PushGateway.
type PushMessage struct {
	Title string
	Body  string
	Data  map[string]string
}

// PushSendResult is the gateway's verdict for one token.
type PushSendResult struct {
	Token   string
	Success bool
	// Invalid is set when the gateway reports the token unregistered or malformed.
	Invalid bool
	Err     error
}

type PushBatchResult struct {
	SuccessCount int
	FailureCount int
	Responses    []PushSendResult
}

// PushGateway sends one batched message to many device tokens.
type PushGateway interface {
	SendMulticast(ctx context.Context, msg PushMessage, tokens []string) (*PushBatchResult, error)
}

// EmailSender delivers one message through the given SMTP server.
type EmailSender interface {
	Send(ctx context.Context, settings mailer.SMTPSettings, msg mailer.Message) error
}

// EmailResolver finds the account email of a user.
type EmailResolver interface {
	EmailForUser(ctx context.Context, userID string) (string, error)
}

// ActivityPublisher announces a freshly stored activity record to the
// consumers that enrich it and evaluate alert patterns.
type ActivityPublisher interface {
	PublishActivityCreated(ctx context.Context, entry *models.ActivityLog, headers http.Header) error
}

// EncryptionService seals API key secrets before they are persisted.
type EncryptionService interface {
	Encrypt(plainText string) (string, error)
	Decrypt(cipherTextBase64 string) (string, error)
}

// ExpiringKeyScanner finds keys about to expire and notifies their owners.
type ExpiringKeyScanner interface {
	// Scan pushes notifications. It never fails; problems are reported in the result.
	Scan(ctx context.Context) ScanResult
	// ScanAndEmail sends expiry emails through each user's own SMTP server.
	ScanAndEmail(ctx context.Context) error
}

// ActivityMonitor evaluates detection patterns after an activity is stored.
type ActivityMonitor interface {
	Evaluate(ctx context.Context, entry models.ActivityLog) []*models.SecurityAlert
}

// RetentionService deletes records that have outlived their purpose.
type RetentionService interface {
	PurgeActivityLogs(ctx context.Context) (int, error)
	SweepExpiredKeys(ctx context.Context) (int, error)
}

// ActivityService records user activity.
type ActivityService interface {
	Log(ctx context.Context, userID string, req models.LogActivityRequest, userAgent string, headers http.Header) (*models.ActivityLog, error)
	Recent(ctx context.Context, userID string, limit int) ([]*models.ActivityLog, error)
	// EnrichIP stores the client IP taken from proxy headers. Failures are logged only.
	EnrichIP(ctx context.Context, logID string, headers http.Header)
}

// APIKeyService manages stored third-party keys.
type APIKeyService interface {
	Create(ctx context.Context, userID string, req models.CreateAPIKeyRequest) (*models.APIKey, error)
	// Get returns the record and its decrypted secret.
	Get(ctx context.Context, userID, keyID string) (*models.APIKey, string, error)
	List(ctx context.Context, userID string) ([]*models.APIKey, error)
	Update(ctx context.Context, userID, keyID string, req models.UpdateAPIKeyRequest) (*models.APIKey, error)
	UpdateBalance(ctx context.Context, userID, keyID string, balance float64) (*models.APIKey, error)
	Delete(ctx context.Context, userID, keyID string) error
	// VerifySecret reports whether candidate equals the stored secret.
	VerifySecret(ctx context.Context, userID, keyID, candidate string) (bool, error)
}

// SettingsService manages per-user notification settings and preferences.
type SettingsService interface {
	Get(ctx context.Context, userID string) (*models.UserSettings, error)
	Update(ctx context.Context, userID string, req models.UpdateSettingsRequest) (*models.UserSettings, error)
	Reset(ctx context.Context, userID string) (*models.UserSettings, error)
}

// AlertService is the user's security alert inbox.
type AlertService interface {
	List(ctx context.Context, userID string, status models.AlertStatus, limit int) ([]*models.SecurityAlert, error)
	UpdateStatus(ctx context.Context, userID, alertID string, status models.AlertStatus) (*models.SecurityAlert, error)
}

// DeviceService registers push targets.
type DeviceService interface {
	Register(ctx context.Context, userID string, req models.RegisterDeviceRequest) (*models.DeviceToken, error)
	Unregister(ctx context.Context, userID, token string) error
}

// MailService sends user-configured SMTP mail.
type MailService interface {
	SendTestEmail(ctx context.Context, settings models.SMTPSettings, to string) error
}

// BalanceService proxies balance lookups to the provider's usage API.
type BalanceService interface {
	// CheckOrganizationBalance requires apiKey and organizationId and reports balance_cents/100.
	CheckOrganizationBalance(ctx context.Context, req models.BalanceRequest) (*models.BalanceResponse, error)
	// CheckCreditBalance requires apiKey and reports available_credit.
	CheckCreditBalance(ctx context.Context, req models.BalanceRequest) (*models.BalanceResponse, error)
}
