package worker

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"simplehash/anchor"
	"simplehash/blockchain/types"
	"simplehash/config"
	"simplehash/internal/messaging/consumer"
	"simplehash/internal/messaging/producer"
	"simplehash/internal/models"
	"simplehash/storage/store"
)

var (
	windowStart = time.Date(2022, 10, 7, 7, 0, 0, 0, time.UTC)
	windowEnd   = windowStart.Add(time.Hour)
)

const emptyDigest = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"

func event(n int, status string) anchor.RawEvent {
	ev := anchor.RawEvent{}
	for _, f := range anchor.SchemaV1().Fields() {
		ev[f] = fmt.Sprintf("%s-%d", f, n)
	}
	ev["confirmation_status"] = status
	return ev
}

type fakeChain struct {
	submitted []types.AnchorEntry
	anchored  map[string]types.AuditData // by transaction id
	err       error
}

func (f *fakeChain) SubmitAnchor(ctx context.Context, entry types.AnchorEntry) (*types.Proof, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.submitted = append(f.submitted, entry)
	return &types.Proof{TransactionID: "tx-new", BlockHeight: 100, Digest: entry.Digest}, nil
}

func (f *fakeChain) FindAnchorByDigest(ctx context.Context, digest string) (string, error) {
	for tx, audit := range f.anchored {
		if audit.Digest == digest {
			return tx, nil
		}
	}
	return "", nil
}

func (f *fakeChain) GetAnchorByTxHash(ctx context.Context, txHash string) (*types.AuditData, error) {
	audit, ok := f.anchored[txHash]
	if !ok {
		return nil, errors.New("unknown tx")
	}
	return &audit, nil
}

func (f *fakeChain) seed(txID string, entry types.AnchorEntry) {
	f.anchored[txID] = types.AuditData{AnchorEntry: entry, TransactionID: txID, BlockHeight: 7}
}

func (f *fakeChain) Close() error { return nil }
func (f *fakeChain) Config() any  { return nil }

type harness struct {
	worker  *Worker
	store   *store.MemoryStore
	results *producer.MemoryProducer
	requeue *producer.MemoryProducer
	chain   *fakeChain
}

func newHarness(t *testing.T, lister anchor.EventLister, withChain bool) *harness {
	h := &harness{store: store.NewMemoryStore(), results: &producer.MemoryProducer{}}
	deps := Deps{Store: h.store, Lister: lister, Results: h.results}
	if withChain {
		h.chain = &fakeChain{anchored: map[string]types.AuditData{}}
		deps.Chain = h.chain
	}
	h.worker = New(config.WorkerConfig{Concurrency: 2, ConsumerRetryDelay: time.Millisecond}, 2, zaptest.NewLogger(t).Sugar(), deps)
	return h
}

func request(id string) *models.AnchorRequest {
	return &models.AnchorRequest{RequestID: id, WindowStart: windowStart, WindowEnd: windowEnd, ReceivedTimestamp: windowEnd}
}

func (h *harness) status(t *testing.T, id string) *store.AnchorStatus {
	st, err := h.store.GetAnchorStatus(context.Background(), id)
	require.NoError(t, err)
	return st
}

func TestHandle_Completes(t *testing.T) {
	h := newHarness(t, anchor.Events(event(1, "CONFIRMED"), event(2, "FAILED")), true)

	require.True(t, h.worker.Handle(context.Background(), request("r-1")))

	st := h.status(t, "r-1")
	assert.Equal(t, store.StatusCompleted, st.Status)
	assert.Equal(t, 2, st.EventCount)
	assert.Equal(t, "V1", st.SchemaVersion)
	assert.Len(t, st.Digest, 64)
	assert.Equal(t, "tx-new", st.TxHash)

	require.Len(t, h.chain.submitted, 1)
	assert.Equal(t, st.Digest, h.chain.submitted[0].Digest)
	assert.Equal(t, "2022-10-07T08:00:00Z", h.chain.submitted[0].WindowEnd)

	msgs := h.results.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, store.StatusCompleted, msgs[0].(*models.AnchorResult).Status)
}

func TestHandle_EmptyWindowWithoutChain(t *testing.T) {
	h := newHarness(t, anchor.Events(), false)
	require.True(t, h.worker.Handle(context.Background(), request("r-1")))

	st := h.status(t, "r-1")
	assert.Equal(t, emptyDigest, st.Digest)
	assert.Empty(t, st.TxHash)
}

func TestHandle_ReusesExistingChainAnchor(t *testing.T) {
	h := newHarness(t, anchor.Events(), true)
	h.chain.seed("tx-old", types.NewAnchorEntry(emptyDigest, windowStart, windowEnd, 0, "V1"))

	require.True(t, h.worker.Handle(context.Background(), request("r-1")))
	assert.Empty(t, h.chain.submitted)
	st := h.status(t, "r-1")
	assert.Equal(t, "tx-old", st.TxHash)
	assert.EqualValues(t, 7, st.BlockHeight)
}

func TestHandle_SameDigestOtherWindowIsAnchoredAgain(t *testing.T) {
	h := newHarness(t, anchor.Events(), true)
	dayBefore := -24 * time.Hour
	h.chain.seed("tx-old", types.NewAnchorEntry(emptyDigest, windowStart.Add(dayBefore), windowEnd.Add(dayBefore), 0, "V1"))

	require.True(t, h.worker.Handle(context.Background(), request("r-1")))

	require.Len(t, h.chain.submitted, 1)
	assert.Equal(t, emptyDigest, h.chain.submitted[0].Digest)
	assert.Equal(t, "2022-10-07T07:00:00Z", h.chain.submitted[0].WindowStart)
	assert.Equal(t, "2022-10-07T08:00:00Z", h.chain.submitted[0].WindowEnd)
	assert.Equal(t, "tx-new", h.status(t, "r-1").TxHash)
}

func TestHandle_PermanentFailure(t *testing.T) {
	bad := event(1, "CONFIRMED")
	delete(bad, "timestamp_committed")
	h := newHarness(t, anchor.Events(bad), true)

	require.True(t, h.worker.Handle(context.Background(), request("r-1")))

	st := h.status(t, "r-1")
	assert.Equal(t, store.StatusFailed, st.Status)
	assert.Contains(t, st.ErrorMessage, "timestamp_committed")
	assert.Empty(t, st.Digest)
	assert.Empty(t, h.chain.submitted)

	msgs := h.results.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, store.StatusFailed, msgs[0].(*models.AnchorResult).Status)
}

func TestHandle_PendingIsRetriedThenExhausted(t *testing.T) {
	h := newHarness(t, anchor.Events(event(1, "CONFIRMED"), event(2, "PENDING")), false)
	ctx := context.Background()

	for i := 1; i <= 2; i++ {
		require.False(t, h.worker.Handle(ctx, request("r-1")))
		st := h.status(t, "r-1")
		assert.Equal(t, store.StatusReceived, st.Status)
		assert.Equal(t, i, st.RetryCount)
		assert.Empty(t, st.Digest)
	}

	// max_task_retries is 2: the third delivery gives up and is acknowledged
	require.True(t, h.worker.Handle(ctx, request("r-1")))
	assert.Equal(t, store.StatusFailed, h.status(t, "r-1").Status)
	assert.Empty(t, h.results.Messages())
}

func TestHandle_ChainFailureRetries(t *testing.T) {
	h := newHarness(t, anchor.Events(event(1, "CONFIRMED")), true)
	h.chain.err = errors.New("node unavailable")

	require.False(t, h.worker.Handle(context.Background(), request("r-1")))
	st := h.status(t, "r-1")
	assert.Equal(t, store.StatusReceived, st.Status)
	assert.Equal(t, "node unavailable", st.ErrorMessage)
}

func TestHandle_RetryRequeuesRequest(t *testing.T) {
	h := newHarness(t, anchor.Events(event(1, "CONFIRMED"), event(2, "PENDING")), false)
	h.requeue = &producer.MemoryProducer{}
	h.worker.deps.Requeue = h.requeue
	ctx := context.Background()

	// Every delivery is acknowledged; the retry travels as a new message.
	delivery := request("r-1")
	for i := 1; i <= 2; i++ {
		require.True(t, h.worker.Handle(ctx, delivery))
		st := h.status(t, "r-1")
		assert.Equal(t, store.StatusReceived, st.Status)
		assert.Equal(t, i, st.RetryCount)

		msgs := h.requeue.Messages()
		require.Len(t, msgs, i)
		delivery = msgs[i-1].(*models.AnchorRequest)
		assert.Equal(t, "r-1", delivery.RequestID)
		assert.True(t, windowStart.Equal(delivery.WindowStart))
		assert.True(t, windowEnd.Equal(delivery.WindowEnd))
	}

	require.True(t, h.worker.Handle(ctx, delivery))
	assert.Equal(t, store.StatusFailed, h.status(t, "r-1").Status)
	assert.Len(t, h.requeue.Messages(), 2)
}

func TestHandle_RequeueFailureNacks(t *testing.T) {
	h := newHarness(t, anchor.Events(event(1, "PENDING")), false)
	h.worker.deps.Requeue = &producer.MemoryProducer{Err: errors.New("broker down")}

	require.False(t, h.worker.Handle(context.Background(), request("r-1")))
	assert.Equal(t, 1, h.status(t, "r-1").RetryCount)
}

func TestHandle_RequeueWaitStopsOnShutdown(t *testing.T) {
	h := newHarness(t, anchor.Events(event(1, "PENDING")), false)
	requeue := &producer.MemoryProducer{}
	h.worker.deps.Requeue = requeue
	h.worker.cfg.RetryDelay = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.False(t, h.worker.Handle(ctx, request("r-1")))
	assert.Empty(t, requeue.Messages())
	assert.Equal(t, store.StatusReceived, h.status(t, "r-1").Status)
}

func TestHandle_CompletedIsSkipped(t *testing.T) {
	h := newHarness(t, anchor.Events(), false)
	ctx := context.Background()
	require.True(t, h.worker.Handle(ctx, request("r-1")))
	require.True(t, h.worker.Handle(ctx, request("r-1")))
	assert.Len(t, h.results.Messages(), 1)
}

func TestRun_DrainsConsumer(t *testing.T) {
	h := newHarness(t, anchor.Events(event(1, "CONFIRMED")), false)
	mock := consumer.NewMockConsumer(zaptest.NewLogger(t).Sugar(), request("r-1"), request("r-2"))
	h.worker.deps.Consumer = mock

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		h.worker.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		return mock.Acks("r-1") == 1 && mock.Acks("r-2") == 1
	}, 2*time.Second, 10*time.Millisecond)
	cancel()
	<-done

	assert.Equal(t, store.StatusCompleted, h.status(t, "r-1").Status)
	assert.Equal(t, h.status(t, "r-1").Digest, h.status(t, "r-2").Digest)
}
