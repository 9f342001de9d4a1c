package store

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is a Store kept in process memory, for single-node runs and tests.
type MemoryStore struct {
	mu   sync.Mutex
	rows map[string]AnchorStatus
	now  func() time.Time
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rows: make(map[string]AnchorStatus),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// InsertAnchorStatusBatch implements Store.
func (m *MemoryStore) InsertAnchorStatusBatch(ctx context.Context, statuses []*AnchorStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, st := range statuses {
		if _, exists := m.rows[st.RequestID]; exists {
			continue
		}
		row := *st
		if row.Status == "" {
			row.Status = StatusReceived
		}
		row.UpdatedTimestamp = row.ReceivedTimestamp
		m.rows[row.RequestID] = row
	}
	return nil
}

// GetAnchorStatus implements Store.
func (m *MemoryStore) GetAnchorStatus(ctx context.Context, requestID string) (*AnchorStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[requestID]
	if !ok {
		return nil, ErrNotFound
	}
	return &row, nil
}

// MarkAsProcessing implements Store.
func (m *MemoryStore) MarkAsProcessing(ctx context.Context, requestID string, maxRetries int) (*AnchorStatus, error) {
	var out *AnchorStatus
	err := m.modify(requestID, func(row *AnchorStatus) {
		if !row.Terminal() {
			if row.RetryCount >= maxRetries {
				row.Status, row.ErrorMessage = StatusFailed, retriesExhausted
			} else {
				row.Status = StatusProcessing
			}
			row.UpdatedTimestamp = m.now()
		}
		copied := *row
		out = &copied
	})
	return out, err
}

// MarkAsCompleted implements Store.
func (m *MemoryStore) MarkAsCompleted(ctx context.Context, rec CompletionRecord) error {
	return m.modify(rec.RequestID, func(row *AnchorStatus) {
		row.Status = StatusCompleted
		row.Digest = rec.Digest
		row.EventCount = rec.EventCount
		row.SchemaVersion = rec.SchemaVersion
		row.TxHash = rec.TxHash
		row.BlockHeight = rec.BlockHeight
		row.ErrorMessage = ""
		row.UpdatedTimestamp = m.now()
	})
}

// MarkAsFailed implements Store.
func (m *MemoryStore) MarkAsFailed(ctx context.Context, rec FailureRecord) error {
	return m.modify(rec.RequestID, func(row *AnchorStatus) {
		row.Status = StatusFailed
		row.ErrorMessage = rec.ErrorMessage
		row.UpdatedTimestamp = m.now()
	})
}

// MarkForRetry implements Store.
func (m *MemoryStore) MarkForRetry(ctx context.Context, requestID, errMsg string) error {
	return m.modify(requestID, func(row *AnchorStatus) {
		row.Status = StatusReceived
		row.RetryCount++
		row.ErrorMessage = errMsg
		row.UpdatedTimestamp = m.now()
	})
}

func (m *MemoryStore) modify(requestID string, fn func(*AnchorStatus)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[requestID]
	if !ok {
		return ErrNotFound
	}
	fn(&row)
	m.rows[requestID] = row
	return nil
}

// Close implements Store.
func (m *MemoryStore) Close() error { return nil }
