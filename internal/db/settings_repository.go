package db

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"

	"github.com/cyberkey/cyberkey-backend/internal/models"
)

// firestoreSettingsRepository keeps one document per user, keyed by the user's ID.
type firestoreSettingsRepository struct {
	client *firestore.Client
}

func (r *firestoreSettingsRepository) Get(ctx context.Context, userID string) (*models.UserSettings, error) {
	if userID == "" {
		return nil, errors.New("userID cannot be empty for settings Get operation")
	}
	docSnap, err := r.client.Collection(userSettingsCollection).Doc(userID).Get(ctx)
	if err != nil {
		return nil, wrapError(err, "get", userSettingsCollection, userID)
	}
	var settings models.UserSettings
	if err := docSnap.DataTo(&settings); err != nil {
		return nil, fmt.Errorf("failed to decode settings for user '%s': %w", userID, err)
	}
	settings.UserID = docSnap.Ref.ID
	return &settings, nil
}

func (r *firestoreSettingsRepository) Save(ctx context.Context, settings *models.UserSettings) error {
	if settings.UserID == "" {
		return errors.New("userID cannot be empty for settings Save operation")
	}
	if _, err := r.client.Collection(userSettingsCollection).Doc(settings.UserID).Set(ctx, settings); err != nil {
		return wrapError(err, "save", userSettingsCollection, settings.UserID)
	}
	return nil
}
