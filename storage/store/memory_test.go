package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	windowStart = time.Date(2022, 10, 7, 7, 0, 0, 0, time.UTC)
	windowEnd   = windowStart.Add(time.Hour)
)

func received(id string) *AnchorStatus {
	return &AnchorStatus{RequestID: id, WindowStart: windowStart, WindowEnd: windowEnd, ReceivedTimestamp: windowEnd}
}

func TestMemoryStore_Lifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.InsertAnchorStatusBatch(ctx, []*AnchorStatus{received("a")}))

	st, err := s.GetAnchorStatus(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, StatusReceived, st.Status)

	st, err = s.MarkAsProcessing(ctx, "a", 3)
	require.NoError(t, err)
	assert.Equal(t, StatusProcessing, st.Status)

	require.NoError(t, s.MarkAsCompleted(ctx, CompletionRecord{
		RequestID: "a", Digest: "abc", EventCount: 4, SchemaVersion: "V1", TxHash: "tx", BlockHeight: 9,
	}))
	st, err = s.GetAnchorStatus(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, st.Status)
	assert.Equal(t, "abc", st.Digest)
	assert.Equal(t, 4, st.EventCount)
	assert.EqualValues(t, 9, st.BlockHeight)

	// terminal rows are returned unchanged
	st, err = s.MarkAsProcessing(ctx, "a", 3)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, st.Status)
}

func TestMemoryStore_RetriesExhausted(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.InsertAnchorStatusBatch(ctx, []*AnchorStatus{received("a")}))

	for i := 0; i < 2; i++ {
		_, err := s.MarkAsProcessing(ctx, "a", 2)
		require.NoError(t, err)
		require.NoError(t, s.MarkForRetry(ctx, "a", "pending events"))
	}
	st, err := s.MarkAsProcessing(ctx, "a", 2)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, st.Status)
	assert.Equal(t, 2, st.RetryCount)
	assert.Equal(t, retriesExhausted, st.ErrorMessage)
}

func TestMemoryStore_InsertKeepsExisting(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.InsertAnchorStatusBatch(ctx, []*AnchorStatus{received("a")}))
	require.NoError(t, s.MarkAsFailed(ctx, FailureRecord{RequestID: "a", ErrorMessage: "boom"}))
	require.NoError(t, s.InsertAnchorStatusBatch(ctx, []*AnchorStatus{received("a")}))

	st, err := s.GetAnchorStatus(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, st.Status)
}

func TestMemoryStore_NotFound(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	_, err := s.GetAnchorStatus(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.MarkAsProcessing(ctx, "missing", 1)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.MarkForRetry(ctx, "missing", ""), ErrNotFound)
}
