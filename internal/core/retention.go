package core

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/cyberkey/cyberkey-backend/internal/db"
	"github.com/cyberkey/cyberkey-backend/internal/metrics"
)

// DefaultActivityRetention is how long activity logs are kept.
const DefaultActivityRetention = 90 * 24 * time.Hour

type retentionService struct {
	keys      db.APIKeyRepository
	logs      db.ActivityLogRepository
	retention time.Duration
	logger    *zap.Logger
	now       func() time.Time
}

// NewRetentionService returns the sweeps run by the scheduler. A non-positive
// retention falls back to DefaultActivityRetention.
func NewRetentionService(keys db.APIKeyRepository, logs db.ActivityLogRepository, retention time.Duration, logger *zap.Logger) RetentionService {
	if retention <= 0 {
		retention = DefaultActivityRetention
	}
	return &retentionService{keys: keys, logs: logs, retention: retention, logger: logger, now: time.Now}
}

func (s *retentionService) PurgeActivityLogs(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.retention)
	deleted, err := s.logs.DeleteOlderThan(ctx, cutoff)
	metrics.RetentionDeleted.WithLabelValues("activity_logs").Add(float64(deleted))
	if err != nil {
		return deleted, fmt.Errorf("failed to purge activity logs older than %s: %w", cutoff.Format(time.RFC3339), err)
	}
	s.logger.Info("Purged old activity logs", zap.Int("deleted", deleted), zap.Time("cutoff", cutoff))
	return deleted, nil
}

// SweepExpiredKeys deletes every key whose expiry has passed. It is the only
// place keys are removed for expiry outside the owner's own listing.
func (s *retentionService) SweepExpiredKeys(ctx context.Context) (int, error) {
	now := s.now()
	expired, err := s.keys.ListExpiredBefore(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("failed to list expired keys: %w", err)
	}

	deleted := 0
	for _, key := range expired {
		if err := s.keys.Delete(ctx, key.ID); err != nil {
			s.logger.Warn("Failed to delete expired key", zap.String("keyID", key.ID), zap.Error(err))
			continue
		}
		deleted++
	}
	metrics.RetentionDeleted.WithLabelValues("api_keys").Add(float64(deleted))
	s.logger.Info("Swept expired API keys", zap.Int("found", len(expired)), zap.Int("deleted", deleted))
	return deleted, nil
}
