package events

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/cyberkey/cyberkey-backend/internal/core"
	"github.com/cyberkey/cyberkey-backend/pkg/messagequeue"
)

// Consumer runs the post-create steps for each activity event: IP enrichment
// first, then alert pattern evaluation. Neither step can fail the message.
type Consumer struct {
	queue     messagequeue.MessageQueue
	queueName string
	activity  core.ActivityService
	monitor   core.ActivityMonitor
	logger    *zap.Logger
}

func NewConsumer(queue messagequeue.MessageQueue, queueName string, activity core.ActivityService, monitor core.ActivityMonitor, logger *zap.Logger) *Consumer {
	return &Consumer{
		queue:     queue,
		queueName: queueName,
		activity:  activity,
		monitor:   monitor,
		logger:    logger,
	}
}

// Run blocks until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	c.logger.Info("Activity consumer started", zap.String("queue", c.queueName))
	defer c.logger.Info("Activity consumer stopped", zap.String("queue", c.queueName))
	return c.queue.Consume(ctx, c.queueName, c.Handle)
}

// Handle processes one encoded ActivityCreated event.
func (c *Consumer) Handle(ctx context.Context, body []byte) error {
	var ev ActivityCreated
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("malformed activity event: %w", err)
	}
	if ev.LogID == "" || ev.UserID == "" {
		return fmt.Errorf("activity event is missing logId or userId")
	}

	c.activity.EnrichIP(ctx, ev.LogID, ev.HTTPHeader())

	alerts := c.monitor.Evaluate(ctx, ev.ActivityLog())
	if len(alerts) > 0 {
		c.logger.Info("Activity raised security alerts",
			zap.String("logID", ev.LogID),
			zap.String("userID", ev.UserID),
			zap.Int("alerts", len(alerts)))
	}
	return nil
}
