package models

import (
	"fmt"
	"time"
)

// Message is anything the producers can publish. Key selects the partition.
type Message interface {
	Key() string
}

// AnchorRequest asks the engine to compute the anchor of one time window.
// Used across the gateway, processing and messaging layers.
type AnchorRequest struct {
	RequestID         string    `json:"request_id"`
	WindowStart       time.Time `json:"window_start"`
	WindowEnd         time.Time `json:"window_end"`
	ReceivedTimestamp time.Time `json:"received_timestamp"`
}

// Key implements Message.
func (r *AnchorRequest) Key() string { return r.RequestID }

// Validate checks the request carries an id and a well-formed window.
func (r *AnchorRequest) Validate() error {
	if r.RequestID == "" {
		return fmt.Errorf("anchor request: request_id is required")
	}
	if r.WindowStart.IsZero() || r.WindowEnd.IsZero() {
		return fmt.Errorf("anchor request %s: window_start and window_end are required", r.RequestID)
	}
	return nil
}

// AnchorResult announces a finished request, successful or not.
type AnchorResult struct {
	RequestID     string    `json:"request_id"`
	Status        string    `json:"status"`
	Digest        string    `json:"digest,omitempty"`
	EventCount    int       `json:"event_count"`
	SchemaVersion string    `json:"schema_version,omitempty"`
	TxHash        string    `json:"tx_hash,omitempty"`
	BlockHeight   uint64    `json:"block_height,omitempty"`
	Error         string    `json:"error,omitempty"`
	CompletedAt   time.Time `json:"completed_at"`
}

// Key implements Message.
func (r *AnchorResult) Key() string { return r.RequestID }
