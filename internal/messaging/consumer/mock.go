package consumer

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"simplehash/internal/models"
)

// ErrClosed is returned by MockConsumer after Close.
var ErrClosed = errors.New("consumer closed")

// MockConsumer serves requests from memory. A NACK puts the request back at the
// end of the queue, like an uncommitted Kafka offset being redelivered.
type MockConsumer struct {
	logger   *zap.SugaredLogger
	messages chan *models.AnchorRequest

	mu     sync.Mutex
	acks   map[string]int
	nacks  map[string]int
	closed bool
}

// NewMockConsumer returns a consumer preloaded with msgs.
func NewMockConsumer(logger *zap.SugaredLogger, msgs ...*models.AnchorRequest) *MockConsumer {
	m := &MockConsumer{
		logger:   logger,
		messages: make(chan *models.AnchorRequest, len(msgs)+16),
		acks:     make(map[string]int),
		nacks:    make(map[string]int),
	}
	for _, msg := range msgs {
		m.messages <- msg
	}
	return m
}

// Push enqueues another request. It reports false when the queue is full or closed.
func (m *MockConsumer) Push(msg *models.AnchorRequest) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return false
	}
	select {
	case m.messages <- msg:
		return true
	default:
		return false
	}
}

// Consume implements Consumer.
func (m *MockConsumer) Consume(ctx context.Context) (*models.AnchorRequest, func(bool), error) {
	select {
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	case msg, ok := <-m.messages:
		if !ok {
			return nil, nil, ErrClosed
		}
		return msg, func(success bool) { m.ack(msg, success) }, nil
	}
}

func (m *MockConsumer) ack(msg *models.AnchorRequest, success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if success {
		m.acks[msg.RequestID]++
		return
	}
	m.nacks[msg.RequestID]++
	if m.closed {
		return
	}
	select {
	case m.messages <- msg:
	default:
		m.logger.Warnf("Failed to re-queue request %s, queue full", msg.RequestID)
	}
}

// Acks returns how often id was acknowledged.
func (m *MockConsumer) Acks(id string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.acks[id]
}

// Nacks returns how often id was negatively acknowledged.
func (m *MockConsumer) Nacks(id string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.nacks[id]
}

// Close stops delivery.
func (m *MockConsumer) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.closed = true
		close(m.messages)
	}
	return nil
}

var _ Consumer = (*MockConsumer)(nil)
