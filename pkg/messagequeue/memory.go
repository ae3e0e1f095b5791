package messagequeue

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// MemoryQueue is an in-process MessageQueue backed by buffered channels.
// Messages are lost on restart.
type MemoryQueue struct {
	logger   *zap.Logger
	capacity int

	mu     sync.Mutex
	queues map[string]chan []byte
	closed chan struct{}
	once   sync.Once
}

func NewMemoryQueue(capacity int, logger *zap.Logger) *MemoryQueue {
	if capacity <= 0 {
		capacity = 1024
	}
	return &MemoryQueue{
		logger:   logger,
		capacity: capacity,
		queues:   make(map[string]chan []byte),
		closed:   make(chan struct{}),
	}
}

func (m *MemoryQueue) queue(name string) chan []byte {
	m.mu.Lock()
	defer m.mu.Unlock()

	q, ok := m.queues[name]
	if !ok {
		q = make(chan []byte, m.capacity)
		m.queues[name] = q
	}
	return q
}

// Publish never blocks; a full queue returns ErrQueueFull.
func (m *MemoryQueue) Publish(_ context.Context, queueName string, body []byte) error {
	select {
	case <-m.closed:
		return ErrClosed
	default:
	}

	msg := append([]byte(nil), body...)
	select {
	case m.queue(queueName) <- msg:
		return nil
	default:
		return ErrQueueFull
	}
}

func (m *MemoryQueue) Consume(ctx context.Context, queueName string, handler Handler) error {
	q := m.queue(queueName)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-m.closed:
			return nil
		case body := <-q:
			if err := handler(ctx, body); err != nil {
				m.logger.Error("Message handler failed", zap.String("queue", queueName), zap.Error(err))
			}
		}
	}
}

func (m *MemoryQueue) Close() error {
	m.once.Do(func() { close(m.closed) })
	return nil
}
