package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"go.uber.org/zap"

	"github.com/cyberkey/cyberkey-backend/internal/models"
)

type firestoreAPIKeyRepository struct {
	client *firestore.Client
	logger *zap.Logger
}

func decodeAPIKey(doc *firestore.DocumentSnapshot) (*models.APIKey, error) {
	var key models.APIKey
	if err := doc.DataTo(&key); err != nil {
		return nil, err
	}
	key.ID = doc.Ref.ID
	return &key, nil
}

// Create adds a key with an auto-generated ID and sets key.ID.
func (r *firestoreAPIKeyRepository) Create(ctx context.Context, key *models.APIKey) (string, error) {
	docRef := r.client.Collection(apiKeysCollection).NewDoc()
	key.ID = docRef.ID
	if _, err := docRef.Create(ctx, key); err != nil {
		return "", wrapError(err, "create", apiKeysCollection, docRef.ID)
	}
	return docRef.ID, nil
}

func (r *firestoreAPIKeyRepository) GetByID(ctx context.Context, keyID string) (*models.APIKey, error) {
	if keyID == "" {
		return nil, errors.New("keyID cannot be empty for GetByID operation")
	}
	docSnap, err := r.client.Collection(apiKeysCollection).Doc(keyID).Get(ctx)
	if err != nil {
		return nil, wrapError(err, "get", apiKeysCollection, keyID)
	}
	key, err := decodeAPIKey(docSnap)
	if err != nil {
		return nil, fmt.Errorf("failed to decode api key '%s': %w", keyID, err)
	}
	return key, nil
}

func (r *firestoreAPIKeyRepository) ListByUser(ctx context.Context, userID string, limit int) ([]*models.APIKey, error) {
	query := r.client.Collection(apiKeysCollection).
		Where("userId", "==", userID).
		OrderBy("createdAt", firestore.Desc)
	if limit > 0 {
		query = query.Limit(limit)
	}
	return decodeAll(query.Documents(ctx), r.logger, apiKeysCollection, decodeAPIKey)
}

func (r *firestoreAPIKeyRepository) ListExpiringBetween(ctx context.Context, after, until time.Time) ([]*models.APIKey, error) {
	query := r.client.Collection(apiKeysCollection).
		Where("expiresAt", ">", after).
		Where("expiresAt", "<=", until)
	return decodeAll(query.Documents(ctx), r.logger, apiKeysCollection, decodeAPIKey)
}

func (r *firestoreAPIKeyRepository) ListExpiredBefore(ctx context.Context, at time.Time) ([]*models.APIKey, error) {
	query := r.client.Collection(apiKeysCollection).Where("expiresAt", "<=", at)
	return decodeAll(query.Documents(ctx), r.logger, apiKeysCollection, decodeAPIKey)
}

// Update overwrites the stored document with key.
func (r *firestoreAPIKeyRepository) Update(ctx context.Context, key *models.APIKey) error {
	if key.ID == "" {
		return errors.New("api key ID cannot be empty for Update operation")
	}
	if _, err := r.client.Collection(apiKeysCollection).Doc(key.ID).Set(ctx, key); err != nil {
		return wrapError(err, "update", apiKeysCollection, key.ID)
	}
	return nil
}

func (r *firestoreAPIKeyRepository) Delete(ctx context.Context, keyID string) error {
	if keyID == "" {
		return errors.New("keyID cannot be empty for Delete operation")
	}
	if _, err := r.client.Collection(apiKeysCollection).Doc(keyID).Delete(ctx); err != nil {
		return wrapError(err, "delete", apiKeysCollection, keyID)
	}
	return nil
}
