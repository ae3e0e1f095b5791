package messagequeue

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/streadway/amqp"
	"go.uber.org/zap"
)

// RabbitMQService implements the MessageQueue interface using RabbitMQ.
// Publishing shares one channel; every consumer opens its own. A dropped
// connection or publishing channel is redialled on next use.
type RabbitMQService struct {
	url    string
	logger *zap.Logger

	mu        sync.Mutex
	conn      *amqp.Connection
	pubChan   *amqp.Channel
	pubClosed chan *amqp.Error
	closed    bool
}

// RabbitMQConfig contains options for creating a new RabbitMQService.
type RabbitMQConfig struct {
	URL string
}

// NewRabbitMQService dials the broker and opens the publishing channel.
func NewRabbitMQService(cfg RabbitMQConfig, logger *zap.Logger) (*RabbitMQService, error) {
	s := &RabbitMQService{url: cfg.URL, logger: logger}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.publishChannel(); err != nil {
		if s.conn != nil {
			s.conn.Close()
		}
		return nil, err
	}

	logger.Info("Connected to RabbitMQ")
	return s, nil
}

// connection returns the live connection, dialling again if the previous one
// was closed by the broker. s.mu must be held.
func (s *RabbitMQService) connection() (*amqp.Connection, error) {
	if s.closed {
		return nil, ErrClosed
	}
	if s.conn != nil && !s.conn.IsClosed() {
		return s.conn, nil
	}

	conn, err := amqp.Dial(s.url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	if s.conn != nil {
		s.logger.Info("Reconnected to RabbitMQ")
	}
	s.conn = conn
	s.pubChan = nil
	return conn, nil
}

// publishChannel returns the shared publishing channel, reopening it when the
// broker has closed it. s.mu must be held.
func (s *RabbitMQService) publishChannel() (*amqp.Channel, error) {
	conn, err := s.connection()
	if err != nil {
		return nil, err
	}
	if s.pubChan != nil {
		select {
		case <-s.pubClosed:
			s.pubChan = nil
		default:
			return s.pubChan, nil
		}
	}

	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open a RabbitMQ channel: %w", err)
	}
	s.pubChan = ch
	s.pubClosed = ch.NotifyClose(make(chan *amqp.Error, 1))
	return ch, nil
}

func declare(ch *amqp.Channel, queueName string) (amqp.Queue, error) {
	return ch.QueueDeclare(
		queueName, // name
		true,      // durable
		false,     // delete when unused
		false,     // exclusive
		false,     // no-wait
		nil,       // arguments
	)
}

// Publish sends a persistent JSON message to queueName.
func (s *RabbitMQService) Publish(_ context.Context, queueName string, body []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch, err := s.publishChannel()
	if err != nil {
		return err
	}

	q, err := declare(ch, queueName)
	if err != nil {
		s.pubChan = nil
		return fmt.Errorf("failed to declare queue %s: %w", queueName, err)
	}

	err = ch.Publish(
		"",     // exchange
		q.Name, // routing key (queue name)
		false,  // mandatory
		false,  // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
		})
	if err != nil {
		s.pubChan = nil
		return fmt.Errorf("failed to publish to queue %s: %w", queueName, err)
	}
	return nil
}

// Consume delivers messages to handler one at a time until ctx is done.
// Each message is acked after the handler returns, whatever the outcome.
func (s *RabbitMQService) Consume(ctx context.Context, queueName string, handler Handler) error {
	s.mu.Lock()
	conn, err := s.connection()
	s.mu.Unlock()
	if err != nil {
		return err
	}

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open consumer channel: %w", err)
	}
	defer ch.Close()

	q, err := declare(ch, queueName)
	if err != nil {
		return fmt.Errorf("failed to declare queue %s for consuming: %w", queueName, err)
	}
	if err := ch.Qos(1, 0, false); err != nil {
		return fmt.Errorf("failed to set prefetch on %s: %w", queueName, err)
	}

	tag := "cyberkey-" + uuid.NewString()
	msgs, err := ch.Consume(
		q.Name, // queue
		tag,    // consumer
		false,  // auto-ack
		false,  // exclusive
		false,  // no-local
		false,  // no-wait
		nil,    // args
	)
	if err != nil {
		return fmt.Errorf("failed to register a consumer for queue %s: %w", queueName, err)
	}

	s.logger.Info("Waiting for messages", zap.String("queue", q.Name))
	for {
		select {
		case <-ctx.Done():
			_ = ch.Cancel(tag, false)
			return nil
		case d, ok := <-msgs:
			if !ok {
				return fmt.Errorf("%w: delivery channel for %s closed", ErrClosed, queueName)
			}
			if err := handler(ctx, d.Body); err != nil {
				s.logger.Error("Message handler failed", zap.String("queue", queueName), zap.Error(err))
			}
			if err := d.Ack(false); err != nil {
				s.logger.Warn("Failed to ack message", zap.String("queue", queueName), zap.Error(err))
			}
		}
	}
}

// Close closes the publishing channel and the connection. Later calls return
// ErrClosed.
func (s *RabbitMQService) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true

	var lastErr error
	if s.pubChan != nil {
		if err := s.pubChan.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			s.logger.Warn("Error closing RabbitMQ channel", zap.Error(err))
			lastErr = err
		}
		s.pubChan = nil
	}
	if s.conn != nil && !s.conn.IsClosed() {
		if err := s.conn.Close(); err != nil {
			s.logger.Warn("Error closing RabbitMQ connection", zap.Error(err))
			lastErr = err
		}
	}
	return lastErr
}
