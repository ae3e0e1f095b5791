package messagequeue

import (
	"context"
	"errors"
)

var (
	ErrClosed    = errors.New("message queue is closed")
	ErrQueueFull = errors.New("message queue is full")
)

// Handler processes one message. A returned error is logged by the queue;
// the message is not redelivered.
type Handler func(ctx context.Context, body []byte) error

// MessageQueue defines the interface for message queue services.
type MessageQueue interface {
	Publish(ctx context.Context, queueName string, body []byte) error
	// Consume blocks, feeding messages to handler until ctx is done.
	Consume(ctx context.Context, queueName string, handler Handler) error
	Close() error
}
