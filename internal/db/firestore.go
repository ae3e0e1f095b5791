package db

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"
)

const (
	apiKeysCollection        = "api_keys"
	activityLogsCollection   = "activity_logs"
	securityAlertsCollection = "security_alerts"
	deviceTokensCollection   = "device_tokens"
	userSettingsCollection   = "user_settings"
)

// Repositories bundles the Firestore-backed repositories.
type Repositories struct {
	APIKeys      APIKeyRepository
	ActivityLogs ActivityLogRepository
	Alerts       SecurityAlertRepository
	DeviceTokens DeviceTokenRepository
	Settings     SettingsRepository
}

// NewFirestoreRepositories builds every repository on one client.
func NewFirestoreRepositories(client *firestore.Client, logger *zap.Logger) (*Repositories, error) {
	if client == nil {
		return nil, errors.New("firestore client is not initialized")
	}
	return &Repositories{
		APIKeys:      &firestoreAPIKeyRepository{client: client, logger: logger},
		ActivityLogs: &firestoreActivityLogRepository{client: client, logger: logger},
		Alerts:       &firestoreSecurityAlertRepository{client: client, logger: logger},
		DeviceTokens: &firestoreDeviceTokenRepository{client: client, logger: logger},
		Settings:     &firestoreSettingsRepository{client: client},
	}, nil
}

// decodeAll drains a query iterator, decoding each document with decode.
// Documents that fail to decode are logged and skipped.
func decodeAll[T any](iter *firestore.DocumentIterator, logger *zap.Logger, collection string, decode func(*firestore.DocumentSnapshot) (*T, error)) ([]*T, error) {
	defer iter.Stop()

	var out []*T
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to iterate %s: %w", collection, err)
		}
		item, err := decode(doc)
		if err != nil {
			logger.Warn("Skipping undecodable document",
				zap.String("collection", collection), zap.String("id", doc.Ref.ID), zap.Error(err))
			continue
		}
		out = append(out, item)
	}
	return out, nil
}

// deleteAll removes every document matched by query through a BulkWriter.
func deleteAll(ctx context.Context, client *firestore.Client, query firestore.Query, collection string) (int, error) {
	iter := query.Documents(ctx)
	defer iter.Stop()

	bw := client.BulkWriter(ctx)
	var jobs []*firestore.BulkWriterJob
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			bw.End()
			return 0, fmt.Errorf("failed to iterate %s for deletion: %w", collection, err)
		}
		job, err := bw.Delete(doc.Ref)
		if err != nil {
			bw.End()
			return 0, fmt.Errorf("failed to enqueue delete of %s '%s': %w", collection, doc.Ref.ID, err)
		}
		jobs = append(jobs, job)
	}
	bw.End()

	deleted := 0
	var errs []error
	for _, job := range jobs {
		if _, err := job.Results(); err != nil {
			errs = append(errs, err)
			continue
		}
		deleted++
	}
	if len(errs) > 0 {
		return deleted, fmt.Errorf("failed to delete %d %s documents: %w", len(errs), collection, errors.Join(errs...))
	}
	return deleted, nil
}
