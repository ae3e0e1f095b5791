package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/cyberkey/cyberkey-backend/internal/db"
	"github.com/cyberkey/cyberkey-backend/internal/models"
)

type alertRow struct{ alert models.SecurityAlert }

func cloneAlert(a *models.SecurityAlert) *models.SecurityAlert {
	c := *a
	c.Details.RecentActivities = append([]models.AlertActivity(nil), a.Details.RecentActivities...)
	return &c
}

type SecurityAlertRepository struct{ s *Store }

func (r *SecurityAlertRepository) Create(_ context.Context, alert *models.SecurityAlert) (string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	alert.ID = newID()
	if alert.Timestamp.IsZero() {
		alert.Timestamp = time.Now()
	}
	r.s.alerts[alert.ID] = alertRow{alert: *cloneAlert(alert)}
	return alert.ID, nil
}

func (r *SecurityAlertRepository) GetByID(_ context.Context, alertID string) (*models.SecurityAlert, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	row, ok := r.s.alerts[alertID]
	if !ok {
		return nil, fmt.Errorf("get security_alerts '%s': %w", alertID, db.ErrNotFound)
	}
	return cloneAlert(&row.alert), nil
}

func (r *SecurityAlertRepository) ListByUser(_ context.Context, userID string, status models.AlertStatus, limit int) ([]*models.SecurityAlert, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []*models.SecurityAlert
	for _, row := range r.s.alerts {
		if row.alert.UserID != userID {
			continue
		}
		if status != "" && row.alert.Status != status {
			continue
		}
		out = append(out, cloneAlert(&row.alert))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *SecurityAlertRepository) UpdateStatus(_ context.Context, alertID string, status models.AlertStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	row, ok := r.s.alerts[alertID]
	if !ok {
		return fmt.Errorf("update security_alerts '%s': %w", alertID, db.ErrNotFound)
	}
	row.alert.Status = status
	r.s.alerts[alertID] = row
	return nil
}
