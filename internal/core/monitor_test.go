package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cyberkey/cyberkey-backend/internal/db"
	"github.com/cyberkey/cyberkey-backend/internal/models"
	"github.com/cyberkey/cyberkey-backend/pkg/mailer"
)

var systemSMTP = &mailer.SMTPSettings{Host: "smtp.cyberkey.test", Port: 587, FromEmail: "security@cyberkey.test"}

func newTestMonitor(repos *db.Repositories, resolver EmailResolver, sender EmailSender, smtp *mailer.SMTPSettings) *activityMonitor {
	m := NewActivityMonitor(repos.ActivityLogs, repos.Alerts, resolver, sender,
		MonitorConfig{SMTP: smtp, AppURL: "https://app.cyberkey.test/"}, nopLogger).(*activityMonitor)
	m.now = fixedClock(testNow)
	return m
}

func seedActivity(t *testing.T, repos *db.Repositories, userID string, typ models.ActivityType, n int, age time.Duration) models.ActivityLog {
	t.Helper()
	var last models.ActivityLog
	for i := 0; i < n; i++ {
		entry := &models.ActivityLog{
			UserID:    userID,
			Type:      typ,
			Timestamp: testNow.Add(-age).Add(time.Duration(i) * time.Millisecond),
			IPAddress: "203.0.113.7",
		}
		_, err := repos.ActivityLogs.Create(context.Background(), entry)
		require.NoError(t, err)
		last = *entry
	}
	return last
}

func TestDefaultPatterns(t *testing.T) {
	require.Len(t, DefaultPatterns, 3)
	assert.Equal(t, "RAPID_API_KEY_CREATION", DefaultPatterns[0].Type)
	assert.Equal(t, 5, DefaultPatterns[0].Threshold)
	assert.Equal(t, models.SeverityHigh, DefaultPatterns[0].Severity)
	assert.Equal(t, "MULTIPLE_LOGIN_ATTEMPTS", DefaultPatterns[1].Type)
	assert.Equal(t, 10, DefaultPatterns[1].Threshold)
	assert.Equal(t, "RAPID_SETTING_CHANGES", DefaultPatterns[2].Type)
	assert.Equal(t, 8, DefaultPatterns[2].Threshold)
	assert.Equal(t, models.SeverityMedium, DefaultPatterns[2].Severity)
}

func TestEvaluate_RaisesAlertAtThreshold(t *testing.T) {
	repos := newRepos()
	sender := &fakeSender{}
	resolver := &fakeResolver{emails: map[string]string{"u1": "owner@example.com"}}
	monitor := newTestMonitor(repos, resolver, sender, systemSMTP)

	last := seedActivity(t, repos, "u1", models.ActivityAPIKeyCreated, 5, time.Minute)

	alerts := monitor.Evaluate(context.Background(), last)
	require.Len(t, alerts, 1)
	alert := alerts[0]
	assert.NotEmpty(t, alert.ID)
	assert.Equal(t, "RAPID_API_KEY_CREATION", alert.Type)
	assert.Equal(t, models.SeverityHigh, alert.Severity)
	assert.Equal(t, models.AlertStatusNew, alert.Status)
	assert.Equal(t, 5, alert.ActivityCount)
	require.Len(t, alert.Details.RecentActivities, 5)
	assert.Equal(t, "203.0.113.7", alert.Details.RecentActivities[0].IPAddress)

	stored, err := repos.Alerts.GetByID(context.Background(), alert.ID)
	require.NoError(t, err)
	assert.Equal(t, "u1", stored.UserID)

	require.Equal(t, 1, sender.count())
	mail := sender.sent[0]
	assert.Equal(t, "owner@example.com", mail.msg.To)
	assert.Equal(t, "CyberKey Security Alert: RAPID_API_KEY_CREATION", mail.msg.Subject)
	assert.Contains(t, mail.msg.HTML, "https://app.cyberkey.test/security")
	assert.Equal(t, AlertSenderName, mail.settings.FromName)
}

func TestEvaluate_BelowThresholdOrOutsideWindow(t *testing.T) {
	repos := newRepos()
	sender := &fakeSender{}
	monitor := newTestMonitor(repos, &fakeResolver{}, sender, systemSMTP)

	seedActivity(t, repos, "u1", models.ActivityAPIKeyCreated, 4, time.Minute)
	seedActivity(t, repos, "u1", models.ActivityAPIKeyCreated, 3, 10*time.Minute)
	last := seedActivity(t, repos, "u1", models.ActivityLogin, 9, 30*time.Second)
	seedActivity(t, repos, "u2", models.ActivityAPIKeyCreated, 6, time.Minute)

	assert.Empty(t, monitor.Evaluate(context.Background(), last))
	assert.Zero(t, sender.count())
}

func TestEvaluate_MultiplePatternsAndNoDeduplication(t *testing.T) {
	repos := newRepos()
	monitor := newTestMonitor(repos, &fakeResolver{}, &fakeSender{}, nil)

	seedActivity(t, repos, "u1", models.ActivityLogin, 10, time.Minute)
	last := seedActivity(t, repos, "u1", models.ActivitySettingsUpdated, 8, time.Minute)

	first := monitor.Evaluate(context.Background(), last)
	require.Len(t, first, 2)
	assert.Equal(t, "MULTIPLE_LOGIN_ATTEMPTS", first[0].Type)
	assert.Equal(t, "RAPID_SETTING_CHANGES", first[1].Type)
	assert.Equal(t, models.SeverityMedium, first[1].Severity)

	second := monitor.Evaluate(context.Background(), last)
	assert.Len(t, second, 2)

	all, err := repos.Alerts.ListByUser(context.Background(), "u1", "", 0)
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestEvaluate_EmailFailureKeepsAlert(t *testing.T) {
	repos := newRepos()
	monitor := newTestMonitor(repos, &fakeResolver{err: errors.New("user lookup failed")}, &fakeSender{}, systemSMTP)
	last := seedActivity(t, repos, "u1", models.ActivityAPIKeyCreated, 5, time.Minute)
	assert.Len(t, monitor.Evaluate(context.Background(), last), 1)

	repos2 := newRepos()
	monitor2 := newTestMonitor(repos2, &fakeResolver{emails: map[string]string{"u1": "a@b.test"}}, &fakeSender{err: errors.New("smtp down")}, systemSMTP)
	last2 := seedActivity(t, repos2, "u1", models.ActivityAPIKeyCreated, 5, time.Minute)
	alerts := monitor2.Evaluate(context.Background(), last2)
	require.Len(t, alerts, 1)

	stored, err := repos2.Alerts.GetByID(context.Background(), alerts[0].ID)
	require.NoError(t, err)
	assert.Equal(t, models.AlertStatusNew, stored.Status)
}
