package anchor

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"testing/quick"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestComputeAnchor_Golden(t *testing.T) {
	ctx := context.Background()

	single, err := ComputeAnchor(ctx, windowStart, windowEnd, Events(sampleEvent(1, StatusConfirmed)))
	require.NoError(t, err)
	assert.Equal(t, goldenSingle, single.String())

	pair, err := ComputeAnchor(ctx, windowStart, windowEnd,
		Events(sampleEvent(1, StatusConfirmed), sampleEvent(2, StatusFailed)))
	require.NoError(t, err)
	assert.Equal(t, goldenPair, pair.String())
}

func TestComputeAnchor_EmptyWindow(t *testing.T) {
	d, err := ComputeAnchor(context.Background(), windowStart, windowEnd, Events())
	require.NoError(t, err)
	assert.Equal(t, emptyDigest, d.String())

	d, err = ComputeAnchor(context.Background(), windowStart, windowStart, Events())
	require.NoError(t, err)
	assert.Equal(t, emptyDigest, d.String())
}

func TestComputeAnchor_InvertedWindow(t *testing.T) {
	lister := &countingLister{}
	_, err := ComputeAnchor(context.Background(), windowEnd, windowStart, lister)
	assert.ErrorIs(t, err, ErrInvalidWindow)
	assert.Zero(t, lister.pulls)
}

func TestComputeAnchor_OrderSensitive(t *testing.T) {
	a, b := sampleEvent(1, StatusConfirmed), sampleEvent(2, StatusFailed)

	forward, err := ComputeAnchor(context.Background(), windowStart, windowEnd, Events(a, b))
	require.NoError(t, err)
	reversed, err := ComputeAnchor(context.Background(), windowStart, windowEnd, Events(b, a))
	require.NoError(t, err)

	assert.NotEqual(t, forward, reversed)
	assert.Equal(t, goldenReversed, reversed.String())
}

func TestComputeAnchor_Idempotent(t *testing.T) {
	events := Events(sampleEvent(1, StatusConfirmed), sampleEvent(2, StatusConfirmed), sampleEvent(3, StatusFailed))
	first, err := ComputeAnchor(context.Background(), windowStart, windowEnd, events)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		again, err := ComputeAnchor(context.Background(), windowStart, windowEnd, events)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestComputeAnchor_ExtraFieldsIgnored(t *testing.T) {
	property := func(key, value string) bool {
		ev := sampleEvent(1, StatusConfirmed)
		if _, required := ev[key]; required {
			return true
		}
		ev[key] = value
		d, err := ComputeAnchor(context.Background(), windowStart, windowEnd, Events(ev))
		return err == nil && d.String() == goldenSingle
	}
	require.NoError(t, quick.Check(property, nil))
}

func TestComputeAnchor_MissingFieldAborts(t *testing.T) {
	bad := sampleEvent(2, StatusConfirmed)
	delete(bad, "timestamp_committed")
	lister := &countingLister{events: []RawEvent{sampleEvent(1, StatusConfirmed), bad, sampleEvent(3, StatusConfirmed)}}

	d, err := ComputeAnchor(context.Background(), windowStart, windowEnd, lister)
	require.Error(t, err)
	assert.Equal(t, Digest{}, d)

	var missing *FieldMissingError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "assets/aaaa/events/0002", missing.Identity)
	assert.Equal(t, []string{"timestamp_committed"}, missing.Missing)
	assert.Equal(t, 2, lister.pulls)
	assert.True(t, IsPermanent(err))
}

func TestComputeAnchor_PendingStopsPulling(t *testing.T) {
	lister := &countingLister{events: []RawEvent{
		sampleEvent(1, StatusConfirmed),
		sampleEvent(2, StatusPending),
		sampleEvent(3, StatusConfirmed),
	}}

	d, err := ComputeAnchor(context.Background(), windowStart, windowEnd, lister)
	var notTerminal *NotTerminalError
	require.ErrorAs(t, err, &notTerminal)
	assert.Equal(t, "PENDING", notTerminal.Status)
	assert.Equal(t, "assets/aaaa/events/0002", notTerminal.Identity)
	assert.Equal(t, Digest{}, d)
	assert.Equal(t, 2, lister.pulls)
	assert.False(t, IsPermanent(err))
}

func TestComputeAnchor_FloatIsSchemaViolation(t *testing.T) {
	ev := sampleEvent(1, StatusConfirmed)
	ev["event_attributes"] = map[string]any{"reading": json.Number("1.5")}

	_, err := ComputeAnchor(context.Background(), windowStart, windowEnd, Events(ev))
	var violation *SchemaViolationError
	require.ErrorAs(t, err, &violation)
	assert.Equal(t, "assets/aaaa/events/0001", violation.Identity)
	assert.True(t, IsPermanent(err))
}

func TestComputeAnchor_SourceErrorWrapped(t *testing.T) {
	boom := errors.New("connection reset")
	lister := &countingLister{events: []RawEvent{sampleEvent(1, StatusConfirmed)}, failAt: 1, err: boom}

	_, err := ComputeAnchor(context.Background(), windowStart, windowEnd, lister)
	var source *SourceError
	require.ErrorAs(t, err, &source)
	assert.ErrorIs(t, err, boom)
	assert.False(t, IsPermanent(err))
}

func TestComputeAnchor_SourceErrorNotDoubleWrapped(t *testing.T) {
	inner := &SourceError{Err: errors.New("bad page")}
	lister := &countingLister{failAt: 0, err: inner}

	_, err := ComputeAnchor(context.Background(), windowStart, windowEnd, lister)
	assert.Same(t, inner, err)
}

func TestComputeAnchor_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ComputeAnchor(ctx, windowStart, windowEnd, Events(sampleEvent(1, StatusConfirmed)))
	var source *SourceError
	require.ErrorAs(t, err, &source)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAnchorer_Result(t *testing.T) {
	a := NewAnchorer(WithLogger(zaptest.NewLogger(t).Sugar()))
	res, err := a.ComputeAnchor(context.Background(), windowStart, windowEnd,
		Events(sampleEvent(1, StatusConfirmed), sampleEvent(2, StatusFailed)))
	require.NoError(t, err)

	assert.Equal(t, goldenPair, res.Digest.String())
	assert.Equal(t, 2, res.EventCount)
	assert.Equal(t, "V1", res.SchemaVersion)
	assert.Equal(t, Window{Start: windowStart, End: windowEnd}, res.Window)
}
