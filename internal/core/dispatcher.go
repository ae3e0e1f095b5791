package core

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/cyberkey/cyberkey-backend/internal/db"
	"github.com/cyberkey/cyberkey-backend/internal/metrics"
	"github.com/cyberkey/cyberkey-backend/internal/models"
)

const (
	noDevicesMessage = "No devices registered"
	pruneConcurrency = 8
)

// dispatcher implements Notifier over the device token store and a push gateway.
type dispatcher struct {
	tokens  db.DeviceTokenRepository
	gateway PushGateway
	logger  *zap.Logger
}

func NewDispatcher(tokens db.DeviceTokenRepository, gateway PushGateway, logger *zap.Logger) Notifier {
	return &dispatcher{tokens: tokens, gateway: gateway, logger: logger}
}

// Dispatch sends one batched push to all of the user's devices. A user with no
// devices gets a NoDevices result and a nil error. Tokens the gateway reports
// invalid are deleted; deletion failures are only logged.
func (d *dispatcher) Dispatch(ctx context.Context, userID string, notification models.Notification) (*models.DispatchResult, error) {
	devices, err := d.tokens.ListByUser(ctx, userID)
	if err != nil {
		metrics.PushDispatches.WithLabelValues("error").Inc()
		return &models.DispatchResult{Success: false, Error: "failed to load device tokens"},
			fmt.Errorf("failed to list device tokens for user '%s': %w", userID, err)
	}

	// One entry per stored record; a token registered twice is sent twice.
	tokens := make([]string, 0, len(devices))
	for _, device := range devices {
		if device.Token != "" {
			tokens = append(tokens, device.Token)
		}
	}

	if len(tokens) == 0 {
		d.logger.Info("No devices found for user", zap.String("userID", userID))
		metrics.PushDispatches.WithLabelValues("no_devices").Inc()
		return &models.DispatchResult{Success: false, NoDevices: true, Error: noDevicesMessage}, nil
	}

	data := make(map[string]string, len(notification.Data))
	for k, v := range notification.Data {
		data[k] = v
	}

	batch, err := d.gateway.SendMulticast(ctx, PushMessage{
		Title: notification.Title,
		Body:  notification.Body,
		Data:  data,
	}, tokens)
	if err != nil {
		d.logger.Error("Error sending notification", zap.String("userID", userID), zap.Error(err))
		metrics.PushDispatches.WithLabelValues("error").Inc()
		return &models.DispatchResult{Success: false, Error: err.Error()},
			fmt.Errorf("push gateway send failed: %w", err)
	}

	var invalid []string
	for _, resp := range batch.Responses {
		if resp.Invalid {
			invalid = append(invalid, resp.Token)
		}
	}
	if len(invalid) > 0 {
		d.pruneTokens(ctx, invalid)
	}

	metrics.PushDispatches.WithLabelValues("sent").Inc()
	metrics.PushMessages.WithLabelValues("success").Add(float64(batch.SuccessCount))
	metrics.PushMessages.WithLabelValues("failure").Add(float64(batch.FailureCount))

	return &models.DispatchResult{
		Success:      true,
		SuccessCount: batch.SuccessCount,
		FailureCount: batch.FailureCount,
	}, nil
}

// pruneTokens deletes invalid tokens concurrently. Deleting a token that is
// already gone is a no-op, so concurrent dispatches may race here safely.
func (d *dispatcher) pruneTokens(ctx context.Context, tokens []string) {
	var g errgroup.Group
	g.SetLimit(pruneConcurrency)

	for _, token := range tokens {
		token := token
		g.Go(func() error {
			n, err := d.tokens.DeleteByToken(ctx, token)
			if err != nil {
				d.logger.Warn("Failed to remove invalid device token", zap.Error(err))
				return err
			}
			metrics.PrunedDeviceTokens.Add(float64(n))
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		d.logger.Warn("Device token pruning finished with errors", zap.Int("tokens", len(tokens)), zap.Error(err))
	}
}
