package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"simplehash/anchor"
	"simplehash/config"
	"simplehash/internal/messaging/producer"
	"simplehash/storage/store"
)

// ErrInvalidInput marks a request the caller has to fix.
var ErrInvalidInput = errors.New("invalid input")

// AnchorInput is a request to anchor the events of [WindowStart, WindowEnd).
// Both bounds are RFC3339 timestamps.
type AnchorInput struct {
	WindowStart string
	WindowEnd   string
}

// Accepted is returned once a request is queued.
type Accepted struct {
	RequestID         string
	WindowStart       time.Time
	WindowEnd         time.Time
	ReceivedTimestamp time.Time
}

// Service is the request intake used by the HTTP and gRPC front ends.
type Service struct {
	store          store.Store
	logger         *zap.SugaredLogger
	batchProcessor *BatchProcessor
}

// NewService starts the batch processor that persists and publishes accepted requests.
func NewService(s store.Store, p producer.Producer, l *zap.SugaredLogger, cfg config.BatchProcessorConfig) *Service {
	return &Service{
		store:          s,
		logger:         l,
		batchProcessor: NewBatchProcessor(cfg, s, p, l),
	}
}

// SubmitAnchor validates the window and queues the request. The request id is
// returned before the request is stored.
func (s *Service) SubmitAnchor(ctx context.Context, input *AnchorInput) (*Accepted, error) {
	// 1. Validate input
	start, err := parseTime("window_start", input.WindowStart)
	if err != nil {
		return nil, err
	}
	end, err := parseTime("window_end", input.WindowEnd)
	if err != nil {
		return nil, err
	}
	if err := (anchor.Window{Start: start, End: end}).Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	// 2. Assign an id and queue
	accepted := &Accepted{
		RequestID:         uuid.NewString(),
		WindowStart:       start,
		WindowEnd:         end,
		ReceivedTimestamp: time.Now().UTC(),
	}
	if err := s.batchProcessor.Submit(accepted); err != nil {
		return nil, err
	}
	return accepted, nil
}

// GetAnchor returns the stored state of a request. Requests still waiting in
// the batch buffer are reported as RECEIVED.
func (s *Service) GetAnchor(ctx context.Context, requestID string) (*store.AnchorStatus, error) {
	if _, err := uuid.Parse(requestID); err != nil {
		return nil, fmt.Errorf("%w: request id %q is not a UUID", ErrInvalidInput, requestID)
	}
	st, err := s.store.GetAnchorStatus(ctx, requestID)
	if errors.Is(err, store.ErrNotFound) {
		if pending, ok := s.batchProcessor.Pending(requestID); ok {
			return pending, nil
		}
	}
	return st, err
}

// Close flushes queued requests and stops the batch processor.
func (s *Service) Close() {
	s.batchProcessor.Close()
}

func parseTime(field, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("%w: %s is required", ErrInvalidInput, field)
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s must be RFC3339: %v", ErrInvalidInput, field, err)
	}
	return t.UTC(), nil
}
