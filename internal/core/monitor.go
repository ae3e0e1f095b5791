package core

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/cyberkey/cyberkey-backend/internal/db"
	"github.com/cyberkey/cyberkey-backend/internal/metrics"
	"github.com/cyberkey/cyberkey-backend/internal/models"
	"github.com/cyberkey/cyberkey-backend/pkg/mailer"
)

// AlertWindow is how far back activity is counted against pattern thresholds.
const AlertWindow = 5 * time.Minute

// AlertSenderName is the display name on security alert emails.
const AlertSenderName = "CyberKey Security"

// AlertPattern raises an alert when Threshold or more matching activities
// fall inside AlertWindow.
type AlertPattern struct {
	Type       string
	Activities []models.ActivityType
	Threshold  int
	Severity   models.AlertSeverity
}

func (p AlertPattern) matches(t models.ActivityType) bool {
	for _, a := range p.Activities {
		if a == t {
			return true
		}
	}
	return false
}

// DefaultPatterns are evaluated in order on every new activity record.
var DefaultPatterns = []AlertPattern{
	{
		Type:       "RAPID_API_KEY_CREATION",
		Activities: []models.ActivityType{models.ActivityAPIKeyCreated},
		Threshold:  5,
		Severity:   models.SeverityHigh,
	},
	{
		Type:       "MULTIPLE_LOGIN_ATTEMPTS",
		Activities: []models.ActivityType{models.ActivityLogin},
		Threshold:  10,
		Severity:   models.SeverityHigh,
	},
	{
		Type:       "RAPID_SETTING_CHANGES",
		Activities: []models.ActivityType{models.ActivitySettingsUpdated},
		Threshold:  8,
		Severity:   models.SeverityMedium,
	},
}

// MonitorConfig holds the outgoing mail setup for alert emails.
// A nil SMTP disables alert emails; alerts are still stored.
type MonitorConfig struct {
	SMTP   *mailer.SMTPSettings
	AppURL string
}

type activityMonitor struct {
	logs     db.ActivityLogRepository
	alerts   db.SecurityAlertRepository
	resolver EmailResolver
	sender   EmailSender
	cfg      MonitorConfig
	patterns []AlertPattern
	logger   *zap.Logger
	now      func() time.Time
}

func NewActivityMonitor(
	logs db.ActivityLogRepository,
	alerts db.SecurityAlertRepository,
	resolver EmailResolver,
	sender EmailSender,
	cfg MonitorConfig,
	logger *zap.Logger,
) ActivityMonitor {
	if cfg.SMTP != nil && cfg.SMTP.FromName == "" {
		smtp := *cfg.SMTP
		smtp.FromName = AlertSenderName
		cfg.SMTP = &smtp
	}
	return &activityMonitor{
		logs:     logs,
		alerts:   alerts,
		resolver: resolver,
		sender:   sender,
		cfg:      cfg,
		patterns: DefaultPatterns,
		logger:   logger,
		now:      time.Now,
	}
}

// Evaluate counts the user's recent activity against every pattern and
// returns the alerts it created. Nothing is deduplicated across calls.
func (m *activityMonitor) Evaluate(ctx context.Context, entry models.ActivityLog) []*models.SecurityAlert {
	now := m.now()
	log := m.logger.With(zap.String("userID", entry.UserID), zap.String("logID", entry.ID))

	recent, err := m.logs.ListByUserSince(ctx, entry.UserID, now.Add(-AlertWindow))
	if err != nil {
		log.Error("Error monitoring suspicious activity", zap.Error(err))
		return nil
	}

	var created []*models.SecurityAlert
	for _, pattern := range m.patterns {
		var matching []models.AlertActivity
		for _, r := range recent {
			if pattern.matches(r.Type) {
				matching = append(matching, models.AlertActivity{
					Type:      r.Type,
					Timestamp: r.Timestamp,
					IPAddress: r.IPAddress,
				})
			}
		}
		if len(matching) < pattern.Threshold {
			continue
		}

		alert := &models.SecurityAlert{
			UserID:        entry.UserID,
			Type:          pattern.Type,
			Severity:      pattern.Severity,
			Timestamp:     now,
			ActivityCount: len(matching),
			Status:        models.AlertStatusNew,
			Details:       models.AlertDetails{RecentActivities: matching},
		}
		id, err := m.alerts.Create(ctx, alert)
		if err != nil {
			log.Error("Failed to create security alert", zap.String("pattern", pattern.Type), zap.Error(err))
			continue
		}
		alert.ID = id
		metrics.SecurityAlertsCreated.WithLabelValues(pattern.Type, string(pattern.Severity)).Inc()
		log.Warn("Security alert raised",
			zap.String("alertID", id),
			zap.String("pattern", pattern.Type),
			zap.Int("activityCount", len(matching)))

		m.emailAlert(ctx, alert, log)
		created = append(created, alert)
	}
	return created
}

func (m *activityMonitor) emailAlert(ctx context.Context, alert *models.SecurityAlert, log *zap.Logger) {
	if m.cfg.SMTP == nil {
		metrics.AlertEmails.WithLabelValues("skipped").Inc()
		return
	}

	to, err := m.resolver.EmailForUser(ctx, alert.UserID)
	if err != nil {
		log.Error("Failed to resolve alert recipient", zap.Error(err))
		metrics.AlertEmails.WithLabelValues("failed").Inc()
		return
	}
	if to == "" {
		metrics.AlertEmails.WithLabelValues("skipped").Inc()
		return
	}

	msg, err := securityAlertEmail(to, alert, m.cfg.AppURL)
	if err != nil {
		log.Error("Failed to render security alert email", zap.Error(err))
		metrics.AlertEmails.WithLabelValues("failed").Inc()
		return
	}
	if err := m.sender.Send(ctx, *m.cfg.SMTP, msg); err != nil {
		log.Error("Failed to send security alert email", zap.String("alertID", alert.ID), zap.Error(err))
		metrics.AlertEmails.WithLabelValues("failed").Inc()
		return
	}
	metrics.AlertEmails.WithLabelValues("sent").Inc()
}
