package core

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/cyberkey/cyberkey-backend/internal/db"
	"github.com/cyberkey/cyberkey-backend/internal/models"
)

// DefaultAlertLimit caps the alert inbox page.
const DefaultAlertLimit = 50

type alertService struct {
	repo   db.SecurityAlertRepository
	logger *zap.Logger
}

func NewAlertService(repo db.SecurityAlertRepository, logger *zap.Logger) AlertService {
	return &alertService{repo: repo, logger: logger}
}

func (s *alertService) List(ctx context.Context, userID string, status models.AlertStatus, limit int) ([]*models.SecurityAlert, error) {
	if status != "" && !status.Valid() {
		return nil, fmt.Errorf("%w: unknown alert status '%s'", ErrValidation, status)
	}
	if limit <= 0 || limit > DefaultAlertLimit {
		limit = DefaultAlertLimit
	}
	alerts, err := s.repo.ListByUser(ctx, userID, status, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list alerts for user '%s': %w", userID, err)
	}
	return alerts, nil
}

func (s *alertService) UpdateStatus(ctx context.Context, userID, alertID string, status models.AlertStatus) (*models.SecurityAlert, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown alert status '%s'", ErrValidation, status)
	}
	alert, err := s.repo.GetByID(ctx, alertID)
	if err != nil {
		return nil, mapRepoError(err, ErrAlertNotFound)
	}
	if alert.UserID != userID {
		return nil, fmt.Errorf("%w: alert '%s' belongs to another user", ErrForbidden, alertID)
	}
	if alert.Status == status {
		return alert, nil
	}
	if err := s.repo.UpdateStatus(ctx, alertID, status); err != nil {
		return nil, mapRepoError(err, ErrAlertNotFound)
	}
	s.logger.Info("Security alert status changed",
		zap.String("alertID", alertID),
		zap.String("from", string(alert.Status)),
		zap.String("to", string(status)))
	alert.Status = status
	return alert, nil
}
