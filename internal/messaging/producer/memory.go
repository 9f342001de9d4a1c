package producer

import (
	"context"
	"sync"

	"simplehash/internal/models"
)

// MemoryProducer records published messages. It backs local runs without a
// broker and tests.
type MemoryProducer struct {
	mu       sync.Mutex
	messages []models.Message
	// Err, when set, is returned by every publish.
	Err error
}

// Publish implements Producer.
func (p *MemoryProducer) Publish(ctx context.Context, msg models.Message) error {
	return p.PublishBatch(ctx, []models.Message{msg})
}

// PublishBatch implements Producer.
func (p *MemoryProducer) PublishBatch(ctx context.Context, msgs []models.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return p.Err
	}
	p.messages = append(p.messages, msgs...)
	return nil
}

// Messages returns a copy of everything published so far.
func (p *MemoryProducer) Messages() []models.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]models.Message(nil), p.messages...)
}

// Close implements Producer.
func (p *MemoryProducer) Close() error { return nil }

var _ Producer = (*MemoryProducer)(nil)
