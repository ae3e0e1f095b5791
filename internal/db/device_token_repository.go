package db

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"go.uber.org/zap"

	"github.com/cyberkey/cyberkey-backend/internal/models"
)

type firestoreDeviceTokenRepository struct {
	client *firestore.Client
	logger *zap.Logger
}

func decodeDeviceToken(doc *firestore.DocumentSnapshot) (*models.DeviceToken, error) {
	var token models.DeviceToken
	if err := doc.DataTo(&token); err != nil {
		return nil, err
	}
	token.ID = doc.Ref.ID
	return &token, nil
}

func (r *firestoreDeviceTokenRepository) ListByUser(ctx context.Context, userID string) ([]*models.DeviceToken, error) {
	query := r.client.Collection(deviceTokensCollection).Where("userId", "==", userID)
	return decodeAll(query.Documents(ctx), r.logger, deviceTokensCollection, decodeDeviceToken)
}

func (r *firestoreDeviceTokenRepository) Register(ctx context.Context, token *models.DeviceToken) error {
	existing, err := decodeAll(
		r.client.Collection(deviceTokensCollection).Where("token", "==", token.Token).Limit(1).Documents(ctx),
		r.logger, deviceTokensCollection, decodeDeviceToken)
	if err != nil {
		return err
	}

	if len(existing) > 0 {
		token.ID = existing[0].ID
		if existing[0].UserID == token.UserID && existing[0].Platform == token.Platform {
			return nil
		}
		_, err := r.client.Collection(deviceTokensCollection).Doc(token.ID).Update(ctx, []firestore.Update{
			{Path: "userId", Value: token.UserID},
			{Path: "platform", Value: token.Platform},
		})
		if err != nil {
			return wrapError(err, "update", deviceTokensCollection, token.ID)
		}
		return nil
	}

	docRef := r.client.Collection(deviceTokensCollection).NewDoc()
	token.ID = docRef.ID
	if _, err := docRef.Create(ctx, token); err != nil {
		return wrapError(err, "create", deviceTokensCollection, docRef.ID)
	}
	return nil
}

func (r *firestoreDeviceTokenRepository) DeleteByToken(ctx context.Context, token string) (int, error) {
	query := r.client.Collection(deviceTokensCollection).Where("token", "==", token)
	n, err := deleteAll(ctx, r.client, query, deviceTokensCollection)
	if err != nil {
		return n, fmt.Errorf("failed to prune device token: %w", err)
	}
	return n, nil
}

func (r *firestoreDeviceTokenRepository) DeleteByUserAndToken(ctx context.Context, userID, token string) (int, error) {
	query := r.client.Collection(deviceTokensCollection).
		Where("userId", "==", userID).
		Where("token", "==", token)
	return deleteAll(ctx, r.client, query, deviceTokensCollection)
}
