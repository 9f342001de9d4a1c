// Package store persists anchor requests and their outcomes.
package store

import (
	"context"
	"errors"
	"time"
)

// Request lifecycle states.
const (
	StatusReceived   = "RECEIVED"
	StatusProcessing = "PROCESSING"
	StatusCompleted  = "COMPLETED"
	StatusFailed     = "FAILED"
)

// ErrNotFound is returned when no request has the given id.
var ErrNotFound = errors.New("anchor request not found")

// AnchorStatus is one row of anchor_requests.
type AnchorStatus struct {
	RequestID         string
	WindowStart       time.Time
	WindowEnd         time.Time
	Status            string
	Digest            string
	EventCount        int
	SchemaVersion     string
	RetryCount        int
	ErrorMessage      string
	TxHash            string
	BlockHeight       uint64
	ReceivedTimestamp time.Time
	UpdatedTimestamp  time.Time
}

// Terminal reports whether the request will not be processed again.
func (s *AnchorStatus) Terminal() bool {
	return s.Status == StatusCompleted || s.Status == StatusFailed
}

// CompletionRecord is what a successful computation writes back. Only complete
// windows are recorded; there is no partial digest.
type CompletionRecord struct {
	RequestID     string
	Digest        string
	EventCount    int
	SchemaVersion string
	TxHash        string
	BlockHeight   uint64
}

// FailureRecord marks a request permanently failed.
type FailureRecord struct {
	RequestID    string
	ErrorMessage string
}

// Store is the persistence contract shared by the gateway and the engine.
type Store interface {
	// InsertAnchorStatusBatch inserts new requests; existing ids are left untouched.
	InsertAnchorStatusBatch(ctx context.Context, statuses []*AnchorStatus) error
	GetAnchorStatus(ctx context.Context, requestID string) (*AnchorStatus, error)
	// MarkAsProcessing claims a request. Requests that already used up
	// maxRetries are moved to FAILED instead. Terminal rows come back unchanged.
	MarkAsProcessing(ctx context.Context, requestID string, maxRetries int) (*AnchorStatus, error)
	MarkAsCompleted(ctx context.Context, rec CompletionRecord) error
	MarkAsFailed(ctx context.Context, rec FailureRecord) error
	// MarkForRetry returns a request to RECEIVED and counts the attempt.
	MarkForRetry(ctx context.Context, requestID, errMsg string) error
	Close() error
}

// retriesExhausted is the error recorded when MarkAsProcessing gives up.
const retriesExhausted = "max retries exceeded"
