package core

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/cyberkey/cyberkey-backend/internal/db"
	"github.com/cyberkey/cyberkey-backend/internal/metrics"
	"github.com/cyberkey/cyberkey-backend/internal/models"
)

// ExpiryLookahead is how far ahead the scanner looks for expiring keys.
const ExpiryLookahead = 3 * 24 * time.Hour

const (
	expiryNotificationTitle = "API Key Expiring Soon"
	expiryNotificationType  = "key_expiring"
	expiryEmailConcurrency  = 4
)

// ScanResult summarizes one run of the expiring-key scan.
type ScanResult struct {
	Found    int   `json:"found"`
	Notified int   `json:"notified"`
	Skipped  int   `json:"skipped"`
	Failed   int   `json:"failed"`
	Err      error `json:"-"`
}

// DaysUntil returns the whole days until expiresAt, rounded up.
func DaysUntil(expiresAt, now time.Time) int {
	return int(math.Ceil(expiresAt.Sub(now).Hours() / 24))
}

// ExpiryNotification builds the push sent for a key expiring in days.
func ExpiryNotification(key *models.APIKey, days int) models.Notification {
	return models.Notification{
		Title: expiryNotificationTitle,
		Body:  fmt.Sprintf(`Your API key "%s" will expire in %d days`, key.Name, days),
		Data: map[string]string{
			"type":     expiryNotificationType,
			"keyId":    key.ID,
			"daysLeft": strconv.Itoa(days),
			"keyName":  key.Name,
		},
	}
}

type expiringKeyScanner struct {
	keys     db.APIKeyRepository
	settings db.SettingsRepository
	notifier Notifier
	sender   EmailSender
	resolver EmailResolver
	logger   *zap.Logger
	now      func() time.Time
}

func NewExpiringKeyScanner(
	keys db.APIKeyRepository,
	settings db.SettingsRepository,
	notifier Notifier,
	sender EmailSender,
	resolver EmailResolver,
	logger *zap.Logger,
) ExpiringKeyScanner {
	return &expiringKeyScanner{
		keys:     keys,
		settings: settings,
		notifier: notifier,
		sender:   sender,
		resolver: resolver,
		logger:   logger,
		now:      time.Now,
	}
}

// loadSettings returns nil settings with a nil error when the user never saved any.
func (s *expiringKeyScanner) loadSettings(ctx context.Context, userID string) (*models.UserSettings, error) {
	settings, err := s.settings.Get(ctx, userID)
	if errors.Is(err, db.ErrNotFound) {
		return nil, nil
	}
	return settings, err
}

func (s *expiringKeyScanner) Scan(ctx context.Context) ScanResult {
	now := s.now()
	var result ScanResult

	keys, err := s.keys.ListExpiringBetween(ctx, now, now.Add(ExpiryLookahead))
	if err != nil {
		s.logger.Error("Error checking expiring keys", zap.Error(err))
		metrics.ExpiryScanRuns.WithLabelValues("error").Inc()
		result.Err = err
		return result
	}
	result.Found = len(keys)
	s.logger.Info("Found keys expiring soon", zap.Int("count", len(keys)))

	for _, key := range keys {
		if ctx.Err() != nil {
			result.Err = ctx.Err()
			break
		}
		switch s.notifyKey(ctx, key, now) {
		case scanNotified:
			result.Notified++
		case scanSkipped:
			result.Skipped++
		case scanFailed:
			result.Failed++
		}
	}

	metrics.ExpiryScanKeys.WithLabelValues("notified").Add(float64(result.Notified))
	metrics.ExpiryScanKeys.WithLabelValues("skipped").Add(float64(result.Skipped))
	metrics.ExpiryScanKeys.WithLabelValues("failed").Add(float64(result.Failed))
	metrics.ExpiryScanRuns.WithLabelValues("ok").Inc()
	return result
}

type scanOutcome int

const (
	scanSkipped scanOutcome = iota
	scanNotified
	scanFailed
)

func (s *expiringKeyScanner) notifyKey(ctx context.Context, key *models.APIKey, now time.Time) scanOutcome {
	log := s.logger.With(zap.String("keyID", key.ID), zap.String("userID", key.UserID))
	if key.ExpiresAt == nil {
		return scanSkipped
	}

	settings, err := s.loadSettings(ctx, key.UserID)
	if err != nil {
		log.Error("Failed to load notification settings", zap.Error(err))
		return scanFailed
	}
	if settings == nil || !settings.Notifications.EmailEnabled {
		log.Debug("Notifications disabled for user")
		return scanSkipped
	}

	days := DaysUntil(*key.ExpiresAt, now)
	if days > settings.Notifications.DaysBeforeExpiration {
		return scanSkipped
	}

	result, err := s.notifier.Dispatch(ctx, key.UserID, ExpiryNotification(key, days))
	if err != nil {
		log.Error("Failed to send expiration notification", zap.Error(err))
		return scanFailed
	}
	if result.NoDevices {
		return scanSkipped
	}
	log.Info("Sent expiration notification", zap.Int("daysLeft", days))
	return scanNotified
}

func (s *expiringKeyScanner) ScanAndEmail(ctx context.Context) error {
	now := s.now()
	keys, err := s.keys.ListExpiringBetween(ctx, now, now.Add(ExpiryLookahead))
	if err != nil {
		return fmt.Errorf("failed to query expiring keys: %w", err)
	}

	var (
		mu   sync.Mutex
		errs []error
	)
	var g errgroup.Group
	g.SetLimit(expiryEmailConcurrency)
	for _, key := range keys {
		key := key
		g.Go(func() error {
			if err := s.emailKey(ctx, key, now); err != nil {
				s.logger.Error("Failed to email expiration notice",
					zap.String("keyID", key.ID), zap.String("userID", key.UserID), zap.Error(err))
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}

func (s *expiringKeyScanner) emailKey(ctx context.Context, key *models.APIKey, now time.Time) error {
	if key.ExpiresAt == nil {
		return nil
	}
	settings, err := s.loadSettings(ctx, key.UserID)
	if err != nil {
		return fmt.Errorf("failed to load settings for user '%s': %w", key.UserID, err)
	}
	if settings == nil || !settings.Notifications.EmailEnabled || settings.Notifications.SMTPSettings == nil {
		return nil
	}

	days := DaysUntil(*key.ExpiresAt, now)
	if days > settings.Notifications.DaysBeforeExpiration {
		return nil
	}

	to := settings.Notifications.NotificationEmail
	if to == "" {
		to, err = s.resolver.EmailForUser(ctx, key.UserID)
		if err != nil {
			return fmt.Errorf("failed to resolve email for user '%s': %w", key.UserID, err)
		}
		if to == "" {
			return nil
		}
	}

	msg, err := expirationEmail(to, key, days)
	if err != nil {
		return err
	}
	if err := s.sender.Send(ctx, toMailerSettings(*settings.Notifications.SMTPSettings), msg); err != nil {
		return fmt.Errorf("failed to send expiration email for key '%s': %w", key.ID, err)
	}
	return nil
}
