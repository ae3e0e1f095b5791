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
)

func newTestScanner(repos *db.Repositories, notifier Notifier, sender EmailSender, resolver EmailResolver) *expiringKeyScanner {
	s := NewExpiringKeyScanner(repos.APIKeys, repos.Settings, notifier, sender, resolver, nopLogger).(*expiringKeyScanner)
	s.now = fixedClock(testNow)
	return s
}

func seedKey(t *testing.T, repos *db.Repositories, userID, name string, expiresAt *time.Time) *models.APIKey {
	t.Helper()
	key := &models.APIKey{UserID: userID, Name: name, ProviderName: "anthropic", Key: "blob", ExpiresAt: expiresAt, CreatedAt: testNow}
	_, err := repos.APIKeys.Create(context.Background(), key)
	require.NoError(t, err)
	return key
}

func seedSettings(t *testing.T, repos *db.Repositories, userID string, mutate func(*models.UserSettings)) {
	t.Helper()
	s := models.DefaultUserSettings(userID)
	if mutate != nil {
		mutate(s)
	}
	require.NoError(t, repos.Settings.Save(context.Background(), s))
}

func at(d time.Duration) *time.Time {
	t := testNow.Add(d)
	return &t
}

func enableEmail(s *models.UserSettings) { s.Notifications.EmailEnabled = true }

func TestDaysUntil(t *testing.T) {
	tests := []struct {
		name string
		in   time.Duration
		want int
	}{
		{"one hour", time.Hour, 1},
		{"exactly one day", 24 * time.Hour, 1},
		{"just over one day", 24*time.Hour + time.Second, 2},
		{"two and a half days", 60 * time.Hour, 3},
		{"exactly three days", 72 * time.Hour, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DaysUntil(testNow.Add(tt.in), testNow))
		})
	}
}

func TestExpiryNotification(t *testing.T) {
	n := ExpiryNotification(&models.APIKey{ID: "k1", Name: "prod"}, 2)
	assert.Equal(t, "API Key Expiring Soon", n.Title)
	assert.Equal(t, `Your API key "prod" will expire in 2 days`, n.Body)
	assert.Equal(t, map[string]string{
		"type":     "key_expiring",
		"keyId":    "k1",
		"daysLeft": "2",
		"keyName":  "prod",
	}, n.Data)
}

func TestScan_NotifiesInsideWindow(t *testing.T) {
	repos := newRepos()
	notifier := &fakeNotifier{}
	scanner := newTestScanner(repos, notifier, &fakeSender{}, &fakeResolver{})

	seedSettings(t, repos, "u1", enableEmail)
	key := seedKey(t, repos, "u1", "soon", at(36*time.Hour))
	seedKey(t, repos, "u1", "later", at(4*24*time.Hour))
	seedKey(t, repos, "u1", "gone", at(-time.Hour))
	seedKey(t, repos, "u1", "forever", nil)

	result := scanner.Scan(context.Background())
	require.NoError(t, result.Err)
	assert.Equal(t, 1, result.Found)
	assert.Equal(t, 1, result.Notified)

	require.Len(t, notifier.calls, 1)
	call := notifier.calls[0]
	assert.Equal(t, "u1", call.userID)
	assert.Equal(t, key.ID, call.notification.Data["keyId"])
	assert.Equal(t, "2", call.notification.Data["daysLeft"])
}

func TestScan_WindowBoundaries(t *testing.T) {
	repos := newRepos()
	notifier := &fakeNotifier{}
	scanner := newTestScanner(repos, notifier, &fakeSender{}, &fakeResolver{})

	seedSettings(t, repos, "u1", enableEmail)
	seedKey(t, repos, "u1", "now", at(0))
	seedKey(t, repos, "u1", "edge", at(ExpiryLookahead))
	seedKey(t, repos, "u1", "past-edge", at(ExpiryLookahead+time.Second))

	result := scanner.Scan(context.Background())
	assert.Equal(t, 1, result.Found)
	require.Len(t, notifier.calls, 1)
	assert.Equal(t, "edge", notifier.calls[0].notification.Data["keyName"])
	assert.Equal(t, "3", notifier.calls[0].notification.Data["daysLeft"])
}

func TestScan_SkipsUsersWithoutEnabledNotifications(t *testing.T) {
	repos := newRepos()
	notifier := &fakeNotifier{}
	scanner := newTestScanner(repos, notifier, &fakeSender{}, &fakeResolver{})

	seedSettings(t, repos, "disabled", nil)
	seedKey(t, repos, "disabled", "a", at(time.Hour))
	seedKey(t, repos, "no-settings", "b", at(time.Hour))

	result := scanner.Scan(context.Background())
	assert.Equal(t, 2, result.Found)
	assert.Equal(t, 2, result.Skipped)
	assert.Empty(t, notifier.calls)
}

func TestScan_RespectsDaysBeforeExpiration(t *testing.T) {
	repos := newRepos()
	notifier := &fakeNotifier{}
	scanner := newTestScanner(repos, notifier, &fakeSender{}, &fakeResolver{})

	seedSettings(t, repos, "u1", func(s *models.UserSettings) {
		s.Notifications.EmailEnabled = true
		s.Notifications.DaysBeforeExpiration = 1
	})
	seedKey(t, repos, "u1", "today", at(20*time.Hour))
	seedKey(t, repos, "u1", "two-days", at(30*time.Hour))

	result := scanner.Scan(context.Background())
	assert.Equal(t, 1, result.Notified)
	assert.Equal(t, 1, result.Skipped)
	require.Len(t, notifier.calls, 1)
	assert.Equal(t, "today", notifier.calls[0].notification.Data["keyName"])
}

func TestScan_DispatchFailureDoesNotAbort(t *testing.T) {
	repos := newRepos()
	notifier := &fakeNotifier{err: errors.New("gateway down")}
	scanner := newTestScanner(repos, notifier, &fakeSender{}, &fakeResolver{})

	seedSettings(t, repos, "u1", enableEmail)
	seedSettings(t, repos, "u2", enableEmail)
	seedKey(t, repos, "u1", "a", at(time.Hour))
	seedKey(t, repos, "u2", "b", at(2*time.Hour))

	result := scanner.Scan(context.Background())
	assert.NoError(t, result.Err)
	assert.Equal(t, 2, result.Failed)
	assert.Len(t, notifier.calls, 2)
}

func TestScan_NoDevicesCountsAsSkipped(t *testing.T) {
	repos := newRepos()
	notifier := &fakeNotifier{result: &models.DispatchResult{NoDevices: true, Error: "No devices registered"}}
	scanner := newTestScanner(repos, notifier, &fakeSender{}, &fakeResolver{})

	seedSettings(t, repos, "u1", enableEmail)
	seedKey(t, repos, "u1", "a", at(time.Hour))

	result := scanner.Scan(context.Background())
	assert.Equal(t, 1, result.Skipped)
	assert.Zero(t, result.Notified)
}

func TestScanAndEmail(t *testing.T) {
	repos := newRepos()
	sender := &fakeSender{}
	resolver := &fakeResolver{emails: map[string]string{"u2": "owner2@example.com"}}
	scanner := newTestScanner(repos, &fakeNotifier{}, sender, resolver)

	smtp := &models.SMTPSettings{Host: "smtp.example.com", Port: 587, FromEmail: "noreply@example.com"}
	seedSettings(t, repos, "u1", func(s *models.UserSettings) {
		s.Notifications.EmailEnabled = true
		s.Notifications.SMTPSettings = smtp
		s.Notifications.NotificationEmail = "alerts@example.com"
	})
	seedSettings(t, repos, "u2", func(s *models.UserSettings) {
		s.Notifications.EmailEnabled = true
		s.Notifications.SMTPSettings = smtp
	})
	seedSettings(t, repos, "u3", enableEmail)
	seedKey(t, repos, "u1", "one", at(time.Hour))
	seedKey(t, repos, "u2", "two", at(time.Hour))
	seedKey(t, repos, "u3", "three", at(time.Hour))

	require.NoError(t, scanner.ScanAndEmail(context.Background()))
	require.Equal(t, 2, sender.count())

	recipients := map[string]string{}
	for _, m := range sender.sent {
		recipients[m.msg.To] = m.msg.Subject
		assert.Equal(t, "smtp.example.com", m.settings.Host)
	}
	assert.Equal(t, `API Key "one" Expiring Soon`, recipients["alerts@example.com"])
	assert.Equal(t, `API Key "two" Expiring Soon`, recipients["owner2@example.com"])
}

func TestScanAndEmail_ReturnsSendErrors(t *testing.T) {
	repos := newRepos()
	sender := &fakeSender{err: errors.New("535 auth failed")}
	scanner := newTestScanner(repos, &fakeNotifier{}, sender, &fakeResolver{})

	seedSettings(t, repos, "u1", func(s *models.UserSettings) {
		s.Notifications.EmailEnabled = true
		s.Notifications.SMTPSettings = &models.SMTPSettings{Host: "h", Port: 25, FromEmail: "a@b.test"}
		s.Notifications.NotificationEmail = "x@y.test"
	})
	seedKey(t, repos, "u1", "one", at(time.Hour))

	err := scanner.ScanAndEmail(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "535 auth failed")
}
