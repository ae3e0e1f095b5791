package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/cyberkey/cyberkey-backend/internal/db"
	"github.com/cyberkey/cyberkey-backend/internal/models"
)

type apiKeyRow struct{ key models.APIKey }

func cloneAPIKey(k *models.APIKey) *models.APIKey {
	c := *k
	if k.ExpiresAt != nil {
		t := *k.ExpiresAt
		c.ExpiresAt = &t
	}
	if k.LastUsedAt != nil {
		t := *k.LastUsedAt
		c.LastUsedAt = &t
	}
	c.AllowedOrigins = append([]string(nil), k.AllowedOrigins...)
	return &c
}

type APIKeyRepository struct{ s *Store }

func (r *APIKeyRepository) Create(_ context.Context, key *models.APIKey) (string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	key.ID = newID()
	r.s.apiKeys[key.ID] = apiKeyRow{key: *cloneAPIKey(key)}
	return key.ID, nil
}

func (r *APIKeyRepository) GetByID(_ context.Context, keyID string) (*models.APIKey, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	row, ok := r.s.apiKeys[keyID]
	if !ok {
		return nil, fmt.Errorf("get api_keys '%s': %w", keyID, db.ErrNotFound)
	}
	return cloneAPIKey(&row.key), nil
}

func (r *APIKeyRepository) filter(match func(*models.APIKey) bool) []*models.APIKey {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []*models.APIKey
	for _, row := range r.s.apiKeys {
		if match(&row.key) {
			out = append(out, cloneAPIKey(&row.key))
		}
	}
	return out
}

func (r *APIKeyRepository) ListByUser(_ context.Context, userID string, limit int) ([]*models.APIKey, error) {
	out := r.filter(func(k *models.APIKey) bool { return k.UserID == userID })
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *APIKeyRepository) ListExpiringBetween(_ context.Context, after, until time.Time) ([]*models.APIKey, error) {
	return r.filter(func(k *models.APIKey) bool {
		return k.ExpiresAt != nil && k.ExpiresAt.After(after) && !k.ExpiresAt.After(until)
	}), nil
}

func (r *APIKeyRepository) ListExpiredBefore(_ context.Context, at time.Time) ([]*models.APIKey, error) {
	return r.filter(func(k *models.APIKey) bool {
		return k.ExpiresAt != nil && !k.ExpiresAt.After(at)
	}), nil
}

func (r *APIKeyRepository) Update(_ context.Context, key *models.APIKey) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.apiKeys[key.ID]; !ok {
		return fmt.Errorf("update api_keys '%s': %w", key.ID, db.ErrNotFound)
	}
	r.s.apiKeys[key.ID] = apiKeyRow{key: *cloneAPIKey(key)}
	return nil
}

func (r *APIKeyRepository) Delete(_ context.Context, keyID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.apiKeys[keyID]; !ok {
		return fmt.Errorf("delete api_keys '%s': %w", keyID, db.ErrNotFound)
	}
	delete(r.s.apiKeys, keyID)
	return nil
}
