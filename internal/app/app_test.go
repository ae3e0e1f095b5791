package app

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cyberkey/cyberkey-backend/internal/config"
	"github.com/cyberkey/cyberkey-backend/internal/core"
	"github.com/cyberkey/cyberkey-backend/internal/db/memory"
	"github.com/cyberkey/cyberkey-backend/internal/models"
	"github.com/cyberkey/cyberkey-backend/pkg/cache"
	"github.com/cyberkey/cyberkey-backend/pkg/messagequeue"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type noPush struct{}

func (noPush) SendMulticast(context.Context, core.PushMessage, []string) (*core.PushBatchResult, error) {
	return &core.PushBatchResult{}, nil
}

type noUsers struct{}

func (noUsers) EmailForUser(context.Context, string) (string, error) { return "", nil }

func testConfig() *config.Config {
	return &config.Config{
		ClientURL:                 "http://localhost:3000",
		EncryptionKey:             base64.StdEncoding.EncodeToString([]byte(strings.Repeat("a", 32))),
		SchedulerToken:            "tok",
		SchedulerEnabled:          true,
		ExpiryScanInterval:        time.Hour,
		ActivityRetentionInterval: time.Hour,
		ExpiredKeySweepInterval:   time.Hour,
		ActivityRetentionDays:     90,
		ActivityQueue:             "activity_logs.created",
		AnthropicAPIURL:           "http://127.0.0.1:1",
		RateLimitRPS:              100,
		RateLimitBurst:            100,
	}
}

// droppingQueue fails its first Consume the way a broker disconnect does.
type droppingQueue struct {
	messagequeue.MessageQueue
	consumes atomic.Int32
}

func (q *droppingQueue) Consume(ctx context.Context, queueName string, handler messagequeue.Handler) error {
	if q.consumes.Add(1) == 1 {
		return fmt.Errorf("%w: delivery channel for %s closed", messagequeue.ErrClosed, queueName)
	}
	return q.MessageQueue.Consume(ctx, queueName, handler)
}

func assemble(t *testing.T, cfg *config.Config) *App {
	t.Helper()
	return assembleWithQueue(t, cfg, messagequeue.NewMemoryQueue(16, zap.NewNop()))
}

func assembleWithQueue(t *testing.T, cfg *config.Config, q messagequeue.MessageQueue) *App {
	t.Helper()
	a, err := Assemble(cfg, zap.NewNop(), Backends{
		Repos: memory.NewStore().Repositories(),
		Push:  noPush{},
		Users: noUsers{},
		Cache: cache.NewMemoryCache(),
		Queue: q,
	})
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return a
}

func TestAssemble_RegistersJobs(t *testing.T) {
	a := assemble(t, testConfig())
	assert.Equal(t, []string{
		JobEmailExpiringKeys,
		JobPurgeActivityLogs,
		JobScanExpiringKeys,
		JobSweepExpiredKeys,
	}, a.Runner.Names())
}

func TestAssemble_RejectsBadEncryptionKey(t *testing.T) {
	cfg := testConfig()
	cfg.EncryptionKey = "short"
	_, err := Assemble(cfg, zap.NewNop(), Backends{Repos: memory.NewStore().Repositories()})
	require.Error(t, err)
}

func TestRouter_HealthAndJobs(t *testing.T) {
	a := assemble(t, testConfig())
	router := a.Router()

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	req := httptest.NewRequest(http.MethodPost, "/internal/jobs/"+JobSweepExpiredKeys, nil)
	req.Header.Set("X-Scheduler-Token", "tok")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestSweepJobDeletesExpiredKeys(t *testing.T) {
	a := assemble(t, testConfig())
	ctx := context.Background()

	past := time.Now().Add(-time.Hour)
	_, err := a.Backends.Repos.APIKeys.Create(ctx, &models.APIKey{UserID: "u1", Name: "old", ExpiresAt: &past})
	require.NoError(t, err)

	require.NoError(t, a.Runner.RunNow(ctx, JobSweepExpiredKeys))

	keys, err := a.Backends.Repos.APIKeys.ListByUser(ctx, "u1", 10)
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestStart_ConsumerRaisesAlerts(t *testing.T) {
	a := assemble(t, testConfig())
	ctx, cancel := context.WithCancel(context.Background())
	a.Start(ctx)
	defer func() {
		cancel()
		a.Wait()
	}()

	for i := 0; i < 10; i++ {
		_, err := a.Services.Activity.Log(ctx, "u1", models.LogActivityRequest{Type: models.ActivityLogin}, "test", nil)
		require.NoError(t, err)
	}

	assert.Eventually(t, loginAlertRaised(ctx, a, "u1"), 2*time.Second, 20*time.Millisecond)
}

func loginAlertRaised(ctx context.Context, a *App, userID string) func() bool {
	return func() bool {
		alerts, err := a.Backends.Repos.Alerts.ListByUser(ctx, userID, "", 10)
		if err != nil {
			return false
		}
		for _, al := range alerts {
			if al.Type == "MULTIPLE_LOGIN_ATTEMPTS" {
				return true
			}
		}
		return false
	}
}

func TestStart_RestartsConsumerAfterBrokerDrop(t *testing.T) {
	q := &droppingQueue{MessageQueue: messagequeue.NewMemoryQueue(16, zap.NewNop())}
	a := assembleWithQueue(t, testConfig(), q)
	a.restartDelay = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	a.Start(ctx)
	defer func() {
		cancel()
		a.Wait()
	}()

	for i := 0; i < 10; i++ {
		_, err := a.Services.Activity.Log(ctx, "u1", models.LogActivityRequest{Type: models.ActivityLogin}, "test", nil)
		require.NoError(t, err)
	}

	assert.Eventually(t, loginAlertRaised(ctx, a, "u1"), 2*time.Second, 20*time.Millisecond)
	assert.GreaterOrEqual(t, q.consumes.Load(), int32(2))
}

func TestStart_StopsWhenContextCancelled(t *testing.T) {
	q := &droppingQueue{MessageQueue: messagequeue.NewMemoryQueue(16, zap.NewNop())}
	a := assembleWithQueue(t, testConfig(), q)
	a.restartDelay = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	a.Start(ctx)
	assert.Eventually(t, func() bool { return q.consumes.Load() == 1 }, time.Second, 5*time.Millisecond)

	cancel()
	done := make(chan struct{})
	go func() {
		a.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("consumer did not stop after cancel")
	}
}
