package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/cyberkey/cyberkey-backend/internal/crypto"
	"github.com/cyberkey/cyberkey-backend/internal/db"
	"github.com/cyberkey/cyberkey-backend/internal/models"
)

const maxListedKeys = 100

// DefaultRateLimit applies when a key is created without one.
var DefaultRateLimit = models.RateLimit{Requests: 100, Duration: 60}

type apiKeyService struct {
	repo       db.APIKeyRepository
	encryption EncryptionService
	activity   ActivityService
	logger     *zap.Logger
	now        func() time.Time
}

// NewAPIKeyService wires key management. activity may be nil to skip audit records.
func NewAPIKeyService(repo db.APIKeyRepository, encryption EncryptionService, activity ActivityService, logger *zap.Logger) APIKeyService {
	return &apiKeyService{
		repo:       repo,
		encryption: encryption,
		activity:   activity,
		logger:     logger,
		now:        time.Now,
	}
}

func (s *apiKeyService) record(ctx context.Context, userID string, t models.ActivityType, details map[string]interface{}) {
	if s.activity == nil {
		return
	}
	if _, err := s.activity.Log(ctx, userID, models.LogActivityRequest{Type: t, Details: details}, "", nil); err != nil {
		s.logger.Warn("Failed to record activity", zap.String("type", string(t)), zap.String("userID", userID), zap.Error(err))
	}
}

func validateRateLimit(rl models.RateLimit) error {
	if rl.Requests <= 0 || rl.Duration <= 0 {
		return fmt.Errorf("%w: rateLimit requests and duration must be positive", ErrValidation)
	}
	return nil
}

func (s *apiKeyService) Create(ctx context.Context, userID string, req models.CreateAPIKeyRequest) (*models.APIKey, error) {
	name := strings.TrimSpace(req.Name)
	provider := strings.TrimSpace(req.ProviderName)
	switch {
	case userID == "":
		return nil, fmt.Errorf("%w: user ID is required", ErrValidation)
	case name == "":
		return nil, fmt.Errorf("%w: name is required", ErrValidation)
	case req.Key == "":
		return nil, fmt.Errorf("%w: key is required", ErrValidation)
	case provider == "":
		return nil, fmt.Errorf("%w: providerName is required", ErrValidation)
	}

	now := s.now()
	if req.ExpiresAt != nil && !req.ExpiresAt.After(now) {
		return nil, fmt.Errorf("%w: expiresAt must be in the future", ErrValidation)
	}

	rateLimit := DefaultRateLimit
	if req.RateLimit != nil {
		if err := validateRateLimit(*req.RateLimit); err != nil {
			return nil, err
		}
		rateLimit = *req.RateLimit
	}

	sealed, err := s.encryption.Encrypt(req.Key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncryptFailed, err)
	}

	key := &models.APIKey{
		UserID:         userID,
		Name:           name,
		Key:            sealed,
		ProviderName:   provider,
		FundingLink:    req.FundingLink,
		Balance:        req.Balance,
		Active:         true,
		CreatedAt:      now,
		UpdatedAt:      now,
		ExpiresAt:      req.ExpiresAt,
		AllowedOrigins: req.AllowedOrigins,
		RateLimit:      rateLimit,
	}
	if key.AllowedOrigins == nil {
		key.AllowedOrigins = []string{}
	}

	id, err := s.repo.Create(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to store API key: %w", err)
	}
	key.ID = id

	s.record(ctx, userID, models.ActivityAPIKeyCreated, map[string]interface{}{
		"keyId":        id,
		"name":         name,
		"providerName": provider,
	})
	return key, nil
}

// getOwned loads keyID and checks that it belongs to userID.
func (s *apiKeyService) getOwned(ctx context.Context, userID, keyID string) (*models.APIKey, error) {
	if keyID == "" {
		return nil, fmt.Errorf("%w: key ID is required", ErrValidation)
	}
	key, err := s.repo.GetByID(ctx, keyID)
	if err != nil {
		return nil, mapRepoError(err, ErrAPIKeyNotFound)
	}
	if key.UserID != userID {
		return nil, fmt.Errorf("%w: key '%s' belongs to another user", ErrForbidden, keyID)
	}
	return key, nil
}

func mapRepoError(err, notFound error) error {
	switch {
	case errors.Is(err, db.ErrNotFound):
		return fmt.Errorf("%w: %v", notFound, err)
	case errors.Is(err, db.ErrPermissionDenied):
		return fmt.Errorf("%w: %v", ErrForbidden, err)
	}
	return err
}

func (s *apiKeyService) Get(ctx context.Context, userID, keyID string) (*models.APIKey, string, error) {
	key, err := s.getOwned(ctx, userID, keyID)
	if err != nil {
		return nil, "", err
	}
	secret, err := s.encryption.Decrypt(key.Key)
	if err != nil {
		s.logger.Error("Failed to decrypt API key", zap.String("keyID", keyID), zap.Error(err))
		return nil, "", fmt.Errorf("%w: %v", ErrDecryptFailed, err)
	}
	return key, secret, nil
}

// List returns the user's live keys, newest first. Expired keys are dropped
// from the result first and deleted afterwards; a failed delete is only logged.
func (s *apiKeyService) List(ctx context.Context, userID string) ([]*models.APIKey, error) {
	keys, err := s.repo.ListByUser(ctx, userID, maxListedKeys)
	if err != nil {
		return nil, fmt.Errorf("failed to list API keys for user '%s': %w", userID, err)
	}

	now := s.now()
	live := make([]*models.APIKey, 0, len(keys))
	var expired []string
	for _, key := range keys {
		if key.IsExpired(now) {
			expired = append(expired, key.ID)
			continue
		}
		live = append(live, key)
	}

	for _, id := range expired {
		if err := s.repo.Delete(ctx, id); err != nil && !errors.Is(err, db.ErrNotFound) {
			s.logger.Warn("Failed to delete expired key", zap.String("keyID", id), zap.Error(err))
		}
	}
	return live, nil
}

func (s *apiKeyService) Update(ctx context.Context, userID, keyID string, req models.UpdateAPIKeyRequest) (*models.APIKey, error) {
	key, err := s.getOwned(ctx, userID, keyID)
	if err != nil {
		return nil, err
	}
	now := s.now()

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: name cannot be empty", ErrValidation)
		}
		key.Name = name
	}
	if req.ProviderName != nil {
		provider := strings.TrimSpace(*req.ProviderName)
		if provider == "" {
			return nil, fmt.Errorf("%w: providerName cannot be empty", ErrValidation)
		}
		key.ProviderName = provider
	}
	if req.Key != nil {
		if *req.Key == "" {
			return nil, fmt.Errorf("%w: key cannot be empty", ErrValidation)
		}
		sealed, err := s.encryption.Encrypt(*req.Key)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrEncryptFailed, err)
		}
		key.Key = sealed
	}
	if req.FundingLink != nil {
		key.FundingLink = *req.FundingLink
	}
	if req.Balance != nil {
		key.Balance = *req.Balance
	}
	if req.Active != nil {
		key.Active = *req.Active
	}
	if req.AllowedOrigins != nil {
		key.AllowedOrigins = *req.AllowedOrigins
	}
	if req.RateLimit != nil {
		if err := validateRateLimit(*req.RateLimit); err != nil {
			return nil, err
		}
		key.RateLimit = *req.RateLimit
	}
	switch {
	case req.ClearExpiry:
		key.ExpiresAt = nil
	case req.ExpiresAt != nil:
		if !req.ExpiresAt.After(now) {
			return nil, fmt.Errorf("%w: expiresAt must be in the future", ErrValidation)
		}
		key.ExpiresAt = req.ExpiresAt
	}
	key.UpdatedAt = now

	if err := s.repo.Update(ctx, key); err != nil {
		return nil, mapRepoError(err, ErrAPIKeyNotFound)
	}
	s.record(ctx, userID, models.ActivityAPIKeyUpdated, map[string]interface{}{"keyId": keyID})
	return key, nil
}

func (s *apiKeyService) UpdateBalance(ctx context.Context, userID, keyID string, balance float64) (*models.APIKey, error) {
	key, err := s.getOwned(ctx, userID, keyID)
	if err != nil {
		return nil, err
	}
	key.Balance = balance
	key.UpdatedAt = s.now()
	if err := s.repo.Update(ctx, key); err != nil {
		return nil, mapRepoError(err, ErrAPIKeyNotFound)
	}
	return key, nil
}

func (s *apiKeyService) Delete(ctx context.Context, userID, keyID string) error {
	key, err := s.getOwned(ctx, userID, keyID)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, keyID); err != nil {
		return mapRepoError(err, ErrAPIKeyNotFound)
	}
	s.record(ctx, userID, models.ActivityAPIKeyDeleted, map[string]interface{}{
		"keyId": keyID,
		"name":  key.Name,
	})
	return nil
}

func (s *apiKeyService) VerifySecret(ctx context.Context, userID, keyID, candidate string) (bool, error) {
	_, secret, err := s.Get(ctx, userID, keyID)
	if err != nil {
		return false, err
	}
	return crypto.SafeCompare(secret, candidate), nil
}
