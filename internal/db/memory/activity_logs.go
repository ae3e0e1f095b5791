package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/cyberkey/cyberkey-backend/internal/db"
	"github.com/cyberkey/cyberkey-backend/internal/models"
)

type activityRow struct{ entry models.ActivityLog }

func cloneActivityLog(e *models.ActivityLog) *models.ActivityLog {
	c := *e
	if e.Details != nil {
		c.Details = make(map[string]interface{}, len(e.Details))
		for k, v := range e.Details {
			c.Details[k] = v
		}
	}
	return &c
}

type ActivityLogRepository struct{ s *Store }

// Create stamps the entry with the current time when Timestamp is zero,
// mirroring the server timestamp applied by Firestore.
func (r *ActivityLogRepository) Create(_ context.Context, entry *models.ActivityLog) (string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	entry.ID = newID()
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	r.s.activityLogs[entry.ID] = activityRow{entry: *cloneActivityLog(entry)}
	return entry.ID, nil
}

func (r *ActivityLogRepository) GetByID(_ context.Context, logID string) (*models.ActivityLog, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	row, ok := r.s.activityLogs[logID]
	if !ok {
		return nil, fmt.Errorf("get activity_logs '%s': %w", logID, db.ErrNotFound)
	}
	return cloneActivityLog(&row.entry), nil
}

func (r *ActivityLogRepository) byUser(userID string, match func(*models.ActivityLog) bool) []*models.ActivityLog {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []*models.ActivityLog
	for _, row := range r.s.activityLogs {
		if row.entry.UserID == userID && match(&row.entry) {
			out = append(out, cloneActivityLog(&row.entry))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out
}

func (r *ActivityLogRepository) ListByUserSince(_ context.Context, userID string, since time.Time) ([]*models.ActivityLog, error) {
	return r.byUser(userID, func(e *models.ActivityLog) bool { return e.Timestamp.After(since) }), nil
}

func (r *ActivityLogRepository) ListRecentByUser(_ context.Context, userID string, limit int) ([]*models.ActivityLog, error) {
	out := r.byUser(userID, func(*models.ActivityLog) bool { return true })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *ActivityLogRepository) SetIPAddress(_ context.Context, logID, ip string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	row, ok := r.s.activityLogs[logID]
	if !ok {
		return fmt.Errorf("update activity_logs '%s': %w", logID, db.ErrNotFound)
	}
	row.entry.IPAddress = ip
	r.s.activityLogs[logID] = row
	return nil
}

func (r *ActivityLogRepository) DeleteOlderThan(_ context.Context, cutoff time.Time) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	deleted := 0
	for id, row := range r.s.activityLogs {
		if row.entry.Timestamp.Before(cutoff) {
			delete(r.s.activityLogs, id)
			deleted++
		}
	}
	return deleted, nil
}
