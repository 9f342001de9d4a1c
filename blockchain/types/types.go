package types

import (
	"strconv"
	"time"
)

// AnchorEntry is one finished anchor as recorded by the registry contract.
type AnchorEntry struct {
	Digest        string `json:"digest"`
	WindowStart   string `json:"window_start"` // RFC3339, fractional seconds kept
	WindowEnd     string `json:"window_end"`   // RFC3339, fractional seconds kept
	EventCount    int    `json:"event_count"`
	SchemaVersion string `json:"schema_version"`
}

// NewAnchorEntry formats an anchor for submission.
func NewAnchorEntry(digest string, start, end time.Time, eventCount int, schemaVersion string) AnchorEntry {
	return AnchorEntry{
		Digest:        digest,
		WindowStart:   start.UTC().Format(time.RFC3339Nano),
		WindowEnd:     end.UTC().Format(time.RFC3339Nano),
		EventCount:    eventCount,
		SchemaVersion: schemaVersion,
	}
}

// Fields returns the entry in contract event order.
func (e AnchorEntry) Fields() []string {
	return []string{e.Digest, e.WindowStart, e.WindowEnd, strconv.Itoa(e.EventCount), e.SchemaVersion}
}

// Proof is the on-chain credential returned after a successful submission.
type Proof struct {
	TransactionID string
	BlockHeight   uint64
	Digest        string
}

// AuditData is an anchor recovered from a transaction's contract event.
type AuditData struct {
	AnchorEntry
	TransactionID string
	BlockHeight   uint64
}
