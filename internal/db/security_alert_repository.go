package db

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"
	"go.uber.org/zap"

	"github.com/cyberkey/cyberkey-backend/internal/models"
)

type firestoreSecurityAlertRepository struct {
	client *firestore.Client
	logger *zap.Logger
}

func decodeSecurityAlert(doc *firestore.DocumentSnapshot) (*models.SecurityAlert, error) {
	var alert models.SecurityAlert
	if err := doc.DataTo(&alert); err != nil {
		return nil, err
	}
	alert.ID = doc.Ref.ID
	return &alert, nil
}

func (r *firestoreSecurityAlertRepository) Create(ctx context.Context, alert *models.SecurityAlert) (string, error) {
	docRef := r.client.Collection(securityAlertsCollection).NewDoc()
	alert.ID = docRef.ID
	if _, err := docRef.Create(ctx, alert); err != nil {
		return "", wrapError(err, "create", securityAlertsCollection, docRef.ID)
	}
	return docRef.ID, nil
}

func (r *firestoreSecurityAlertRepository) GetByID(ctx context.Context, alertID string) (*models.SecurityAlert, error) {
	if alertID == "" {
		return nil, errors.New("alertID cannot be empty for GetByID operation")
	}
	docSnap, err := r.client.Collection(securityAlertsCollection).Doc(alertID).Get(ctx)
	if err != nil {
		return nil, wrapError(err, "get", securityAlertsCollection, alertID)
	}
	alert, err := decodeSecurityAlert(docSnap)
	if err != nil {
		return nil, fmt.Errorf("failed to decode security alert '%s': %w", alertID, err)
	}
	return alert, nil
}

func (r *firestoreSecurityAlertRepository) ListByUser(ctx context.Context, userID string, status models.AlertStatus, limit int) ([]*models.SecurityAlert, error) {
	query := r.client.Collection(securityAlertsCollection).Where("userId", "==", userID)
	if status != "" {
		query = query.Where("status", "==", string(status))
	}
	query = query.OrderBy("timestamp", firestore.Desc)
	if limit > 0 {
		query = query.Limit(limit)
	}
	return decodeAll(query.Documents(ctx), r.logger, securityAlertsCollection, decodeSecurityAlert)
}

func (r *firestoreSecurityAlertRepository) UpdateStatus(ctx context.Context, alertID string, status models.AlertStatus) error {
	_, err := r.client.Collection(securityAlertsCollection).Doc(alertID).Update(ctx, []firestore.Update{
		{Path: "status", Value: string(status)},
	})
	if err != nil {
		return wrapError(err, "update", securityAlertsCollection, alertID)
	}
	return nil
}
