package producer

import (
	"context"

	"simplehash/internal/models"
)

// Producer publishes messages to one topic.
type Producer interface {
	Publish(ctx context.Context, msg models.Message) error
	PublishBatch(ctx context.Context, msgs []models.Message) error
	Close() error
}
