package memory

import (
	"context"
	"time"

	"github.com/cyberkey/cyberkey-backend/internal/models"
)

type deviceRow struct{ token models.DeviceToken }

type DeviceTokenRepository struct{ s *Store }

func (r *DeviceTokenRepository) ListByUser(_ context.Context, userID string) ([]*models.DeviceToken, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []*models.DeviceToken
	for _, row := range r.s.deviceTokens {
		if row.token.UserID == userID {
			t := row.token
			out = append(out, &t)
		}
	}
	return out, nil
}

func (r *DeviceTokenRepository) Register(_ context.Context, token *models.DeviceToken) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for id, row := range r.s.deviceTokens {
		if row.token.Token == token.Token {
			row.token.UserID = token.UserID
			row.token.Platform = token.Platform
			r.s.deviceTokens[id] = row
			token.ID = id
			return nil
		}
	}

	token.ID = newID()
	if token.CreatedAt.IsZero() {
		token.CreatedAt = time.Now()
	}
	r.s.deviceTokens[token.ID] = deviceRow{token: *token}
	return nil
}

func (r *DeviceTokenRepository) DeleteByToken(_ context.Context, token string) (int, error) {
	return r.deleteWhere(func(t *models.DeviceToken) bool { return t.Token == token }), nil
}

func (r *DeviceTokenRepository) DeleteByUserAndToken(_ context.Context, userID, token string) (int, error) {
	return r.deleteWhere(func(t *models.DeviceToken) bool { return t.UserID == userID && t.Token == token }), nil
}

func (r *DeviceTokenRepository) deleteWhere(match func(*models.DeviceToken) bool) int {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	deleted := 0
	for id, row := range r.s.deviceTokens {
		if match(&row.token) {
			delete(r.s.deviceTokens, id)
			deleted++
		}
	}
	return deleted
}
