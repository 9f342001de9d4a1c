package consumer

import (
	"context"

	"simplehash/internal/models"
)

// Consumer delivers anchor requests.
type Consumer interface {
	// Consume blocks until a request is received or ctx is cancelled.
	// ack(true) marks the request done; ack(false) leaves it for redelivery.
	Consume(ctx context.Context) (msg *models.AnchorRequest, ack func(success bool), err error)

	Close() error
}
