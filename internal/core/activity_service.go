package core

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/cyberkey/cyberkey-backend/internal/db"
	"github.com/cyberkey/cyberkey-backend/internal/models"
)

// DefaultActivityLimit is the page size for recent activity.
const DefaultActivityLimit = 50

type activityService struct {
	logs      db.ActivityLogRepository
	publisher ActivityPublisher
	logger    *zap.Logger
}

// NewActivityService builds the activity service. publisher may be nil, in
// which case nothing downstream sees new entries.
func NewActivityService(logs db.ActivityLogRepository, publisher ActivityPublisher, logger *zap.Logger) ActivityService {
	return &activityService{logs: logs, publisher: publisher, logger: logger}
}

func (s *activityService) Log(ctx context.Context, userID string, req models.LogActivityRequest, userAgent string, headers http.Header) (*models.ActivityLog, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user ID is required", ErrValidation)
	}
	if !req.Type.Valid() {
		return nil, fmt.Errorf("%w: unknown activity type '%s'", ErrValidation, req.Type)
	}

	entry := &models.ActivityLog{
		UserID:    userID,
		Type:      req.Type,
		Details:   req.Details,
		UserAgent: userAgent,
	}
	id, err := s.logs.Create(ctx, entry)
	if err != nil {
		return nil, fmt.Errorf("failed to store activity log: %w", err)
	}
	entry.ID = id

	if s.publisher != nil {
		if err := s.publisher.PublishActivityCreated(ctx, entry, headers); err != nil {
			s.logger.Error("Failed to publish activity event", zap.String("logID", id), zap.Error(err))
		}
	}
	return entry, nil
}

func (s *activityService) Recent(ctx context.Context, userID string, limit int) ([]*models.ActivityLog, error) {
	if limit <= 0 || limit > DefaultActivityLimit {
		limit = DefaultActivityLimit
	}
	entries, err := s.logs.ListRecentByUser(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list activity for user '%s': %w", userID, err)
	}
	return entries, nil
}

// ClientIP returns the first x-forwarded-for hop, else x-real-ip.
func ClientIP(headers http.Header) string {
	raw := headers.Get("X-Forwarded-For")
	if raw == "" {
		raw = headers.Get("X-Real-Ip")
	}
	if raw == "" {
		return ""
	}
	first, _, _ := strings.Cut(raw, ",")
	return strings.TrimSpace(first)
}

func (s *activityService) EnrichIP(ctx context.Context, logID string, headers http.Header) {
	ip := ClientIP(headers)
	if ip == "" {
		return
	}
	if err := s.logs.SetIPAddress(ctx, logID, ip); err != nil {
		s.logger.Error("Error updating activity log IP", zap.String("logID", logID), zap.Error(err))
	}
}
