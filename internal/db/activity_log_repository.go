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

type firestoreActivityLogRepository struct {
	client *firestore.Client
	logger *zap.Logger
}

func decodeActivityLog(doc *firestore.DocumentSnapshot) (*models.ActivityLog, error) {
	var entry models.ActivityLog
	if err := doc.DataTo(&entry); err != nil {
		return nil, err
	}
	entry.ID = doc.Ref.ID
	return &entry, nil
}

func (r *firestoreActivityLogRepository) Create(ctx context.Context, entry *models.ActivityLog) (string, error) {
	docRef := r.client.Collection(activityLogsCollection).NewDoc()
	entry.ID = docRef.ID
	if _, err := docRef.Create(ctx, entry); err != nil {
		return "", wrapError(err, "create", activityLogsCollection, docRef.ID)
	}
	return docRef.ID, nil
}

func (r *firestoreActivityLogRepository) GetByID(ctx context.Context, logID string) (*models.ActivityLog, error) {
	if logID == "" {
		return nil, errors.New("logID cannot be empty for GetByID operation")
	}
	docSnap, err := r.client.Collection(activityLogsCollection).Doc(logID).Get(ctx)
	if err != nil {
		return nil, wrapError(err, "get", activityLogsCollection, logID)
	}
	entry, err := decodeActivityLog(docSnap)
	if err != nil {
		return nil, fmt.Errorf("failed to decode activity log '%s': %w", logID, err)
	}
	return entry, nil
}

func (r *firestoreActivityLogRepository) ListByUserSince(ctx context.Context, userID string, since time.Time) ([]*models.ActivityLog, error) {
	query := r.client.Collection(activityLogsCollection).
		Where("userId", "==", userID).
		Where("timestamp", ">", since)
	return decodeAll(query.Documents(ctx), r.logger, activityLogsCollection, decodeActivityLog)
}

func (r *firestoreActivityLogRepository) ListRecentByUser(ctx context.Context, userID string, limit int) ([]*models.ActivityLog, error) {
	query := r.client.Collection(activityLogsCollection).
		Where("userId", "==", userID).
		OrderBy("timestamp", firestore.Desc)
	if limit > 0 {
		query = query.Limit(limit)
	}
	return decodeAll(query.Documents(ctx), r.logger, activityLogsCollection, decodeActivityLog)
}

// SetIPAddress is the only write allowed on an existing log entry.
func (r *firestoreActivityLogRepository) SetIPAddress(ctx context.Context, logID, ip string) error {
	_, err := r.client.Collection(activityLogsCollection).Doc(logID).Update(ctx, []firestore.Update{
		{Path: "ipAddress", Value: ip},
	})
	if err != nil {
		return wrapError(err, "update", activityLogsCollection, logID)
	}
	return nil
}

func (r *firestoreActivityLogRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	query := r.client.Collection(activityLogsCollection).Where("timestamp", "<", cutoff)
	return deleteAll(ctx, r.client, query, activityLogsCollection)
}
