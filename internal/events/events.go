// Package events carries "activity created" notifications from the API to
// the background consumer that enriches records and evaluates alert patterns.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/cyberkey/cyberkey-backend/internal/core"
	"github.com/cyberkey/cyberkey-backend/internal/models"
	"github.com/cyberkey/cyberkey-backend/pkg/messagequeue"
)

// forwardedHeaders are the request headers kept with an event for IP enrichment.
var forwardedHeaders = []string{"X-Forwarded-For", "X-Real-Ip"}

// ActivityCreated is the JSON message published for every stored activity log.
type ActivityCreated struct {
	LogID     string              `json:"logId"`
	UserID    string              `json:"userId"`
	Type      models.ActivityType `json:"type"`
	Timestamp time.Time           `json:"timestamp"`
	Headers   map[string]string   `json:"headers,omitempty"`
}

// NewActivityCreated builds the event for entry, keeping only the proxy headers.
func NewActivityCreated(entry *models.ActivityLog, headers http.Header) ActivityCreated {
	ev := ActivityCreated{
		LogID:     entry.ID,
		UserID:    entry.UserID,
		Type:      entry.Type,
		Timestamp: entry.Timestamp,
	}
	for _, name := range forwardedHeaders {
		if v := headers.Get(name); v != "" {
			if ev.Headers == nil {
				ev.Headers = make(map[string]string, len(forwardedHeaders))
			}
			ev.Headers[name] = v
		}
	}
	return ev
}

// HTTPHeader rebuilds the forwarded headers.
func (e ActivityCreated) HTTPHeader() http.Header {
	h := make(http.Header, len(e.Headers))
	for k, v := range e.Headers {
		h.Set(k, v)
	}
	return h
}

// ActivityLog returns the fields of the stored record the event carries.
func (e ActivityCreated) ActivityLog() models.ActivityLog {
	return models.ActivityLog{ID: e.LogID, UserID: e.UserID, Type: e.Type, Timestamp: e.Timestamp}
}

// Publisher implements core.ActivityPublisher on a message queue.
type Publisher struct {
	queue     messagequeue.MessageQueue
	queueName string
}

var _ core.ActivityPublisher = (*Publisher)(nil)

func NewPublisher(queue messagequeue.MessageQueue, queueName string) *Publisher {
	return &Publisher{queue: queue, queueName: queueName}
}

func (p *Publisher) PublishActivityCreated(ctx context.Context, entry *models.ActivityLog, headers http.Header) error {
	body, err := json.Marshal(NewActivityCreated(entry, headers))
	if err != nil {
		return fmt.Errorf("failed to encode activity event: %w", err)
	}
	if err := p.queue.Publish(ctx, p.queueName, body); err != nil {
		return fmt.Errorf("failed to publish activity event to %s: %w", p.queueName, err)
	}
	return nil
}
