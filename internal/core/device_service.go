package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cyberkey/cyberkey-backend/internal/db"
	"github.com/cyberkey/cyberkey-backend/internal/models"
)

var validPlatforms = map[string]bool{"": true, "android": true, "ios": true, "web": true}

type deviceService struct {
	repo db.DeviceTokenRepository
	now  func() time.Time
}

func NewDeviceService(repo db.DeviceTokenRepository) DeviceService {
	return &deviceService{repo: repo, now: time.Now}
}

func (s *deviceService) Register(ctx context.Context, userID string, req models.RegisterDeviceRequest) (*models.DeviceToken, error) {
	token := strings.TrimSpace(req.Token)
	platform := strings.ToLower(strings.TrimSpace(req.Platform))
	if token == "" {
		return nil, fmt.Errorf("%w: token is required", ErrValidation)
	}
	if !validPlatforms[platform] {
		return nil, fmt.Errorf("%w: unknown platform '%s'", ErrValidation, req.Platform)
	}

	device := &models.DeviceToken{
		UserID:    userID,
		Token:     token,
		Platform:  platform,
		CreatedAt: s.now(),
	}
	if err := s.repo.Register(ctx, device); err != nil {
		return nil, fmt.Errorf("failed to register device token: %w", err)
	}
	return device, nil
}

func (s *deviceService) Unregister(ctx context.Context, userID, token string) error {
	if strings.TrimSpace(token) == "" {
		return fmt.Errorf("%w: token is required", ErrValidation)
	}
	if _, err := s.repo.DeleteByUserAndToken(ctx, userID, strings.TrimSpace(token)); err != nil {
		return fmt.Errorf("failed to unregister device token: %w", err)
	}
	return nil
}
