package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"simplehash/anchor"
	blockchain "simplehash/blockchain/client"
	"simplehash/blockchain/types"
	"simplehash/config"
	"simplehash/internal/messaging/consumer"
	"simplehash/internal/messaging/producer"
	"simplehash/internal/models"
	"simplehash/storage/store"
)

// Deps are the collaborators of a Worker. Chain, Results and Requeue are optional.
type Deps struct {
	Store    store.Store
	Consumer consumer.Consumer
	Lister   anchor.EventLister
	Anchorer *anchor.Anchorer
	Chain    blockchain.BlockchainClient
	Results  producer.Producer
	// Requeue writes retried requests back to the request topic. Without it a
	// retry is a NACK and redelivery is left to the consumer.
	Requeue producer.Producer
}

// Worker turns anchor requests into stored, optionally on-chain, digests.
type Worker struct {
	cfg            config.WorkerConfig
	maxTaskRetries int
	logger         *zap.SugaredLogger
	deps           Deps
}

// New creates a Worker. cfg is expected to have had SetDefaults applied.
func New(cfg config.WorkerConfig, maxTaskRetries int, logger *zap.SugaredLogger, deps Deps) *Worker {
	if deps.Anchorer == nil {
		deps.Anchorer = anchor.NewAnchorer(anchor.WithLogger(logger))
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.AnchorTimeout <= 0 {
		cfg.AnchorTimeout = 10 * time.Minute
	}
	if cfg.BlockchainTimeout <= 0 {
		cfg.BlockchainTimeout = 15 * time.Second
	}
	if cfg.RetryDelay < 0 {
		cfg.RetryDelay = 0
	}
	return &Worker{cfg: cfg, maxTaskRetries: maxTaskRetries, logger: logger, deps: deps}
}

// Run starts the worker pool and blocks until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	w.logger.Infof("Starting worker pool with concurrency: %d", w.cfg.Concurrency)
	var wg sync.WaitGroup
	for i := 0; i < w.cfg.Concurrency; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			w.loop(ctx, workerID)
		}(i + 1)
	}
	wg.Wait()
	w.logger.Info("Worker pool stopped.")
}

func (w *Worker) loop(ctx context.Context, workerID int) {
	for {
		msg, ack, err := w.deps.Consumer.Consume(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, consumer.ErrClosed) {
				return
			}
			if errors.Is(err, consumer.ErrMalformedMessage) {
				continue
			}
			w.logger.Errorf("Worker %d: consumer error: %v", workerID, err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(w.cfg.ConsumerRetryDelay):
			}
			continue
		}
		ack(w.Handle(ctx, msg))
	}
}

// Handle processes one request and reports whether it should be acknowledged.
// A false result leaves the request for redelivery. A retried request that was
// written back through Deps.Requeue is acknowledged.
func (w *Worker) Handle(ctx context.Context, req *models.AnchorRequest) bool {
	// Bookkeeping must land even when shutdown cancels the computation.
	bookCtx := context.WithoutCancel(ctx)
	start := time.Now()

	// 1. Claim the request
	task, err := w.claim(bookCtx, req)
	if err != nil {
		w.logger.Errorf("Request %s: claim failed: %v", req.RequestID, err)
		return false
	}
	if task.Terminal() {
		w.logger.Infof("Request %s is already %s, skipping", req.RequestID, task.Status)
		return true
	}

	// 2. Hash the whole window
	anchorCtx, cancel := context.WithTimeout(ctx, w.cfg.AnchorTimeout)
	result, err := w.deps.Anchorer.ComputeAnchor(anchorCtx, req.WindowStart, req.WindowEnd, w.deps.Lister)
	cancel()
	if err != nil {
		if anchor.IsPermanent(err) {
			w.fail(bookCtx, req.RequestID, err)
			return true
		}
		return w.retry(ctx, req, err)
	}

	// 3. Record on chain
	var proof *types.Proof
	if w.deps.Chain != nil {
		proof, err = w.submit(ctx, result)
		if err != nil {
			return w.retry(ctx, req, err)
		}
	}

	// 4. Store the result
	rec := store.CompletionRecord{
		RequestID:     req.RequestID,
		Digest:        result.Digest.String(),
		EventCount:    result.EventCount,
		SchemaVersion: result.SchemaVersion,
	}
	if proof != nil {
		rec.TxHash, rec.BlockHeight = proof.TransactionID, proof.BlockHeight
	}
	if err := w.deps.Store.MarkAsCompleted(bookCtx, rec); err != nil {
		w.logger.Errorf("Request %s: MarkAsCompleted failed: %v", req.RequestID, err)
		return false
	}

	// 5. Announce it
	w.publish(bookCtx, &models.AnchorResult{
		RequestID:     req.RequestID,
		Status:        store.StatusCompleted,
		Digest:        rec.Digest,
		EventCount:    rec.EventCount,
		SchemaVersion: rec.SchemaVersion,
		TxHash:        rec.TxHash,
		BlockHeight:   rec.BlockHeight,
		CompletedAt:   time.Now().UTC(),
	})

	w.logger.Infof("Request %s completed: events=%d digest=%s tx=%s total=%v",
		req.RequestID, rec.EventCount, rec.Digest, rec.TxHash, time.Since(start))
	return true
}

// claim marks the request PROCESSING. Requests published straight to the
// topic, without going through the gateway, are registered first.
func (w *Worker) claim(ctx context.Context, req *models.AnchorRequest) (*store.AnchorStatus, error) {
	task, err := w.deps.Store.MarkAsProcessing(ctx, req.RequestID, w.maxTaskRetries)
	if !errors.Is(err, store.ErrNotFound) {
		return task, err
	}
	received := req.ReceivedTimestamp
	if received.IsZero() {
		received = time.Now().UTC()
	}
	if err := w.deps.Store.InsertAnchorStatusBatch(ctx, []*store.AnchorStatus{{
		RequestID:         req.RequestID,
		WindowStart:       req.WindowStart,
		WindowEnd:         req.WindowEnd,
		Status:            store.StatusReceived,
		ReceivedTimestamp: received,
	}}); err != nil {
		return nil, err
	}
	return w.deps.Store.MarkAsProcessing(ctx, req.RequestID, w.maxTaskRetries)
}

// submit records the digest on chain. An earlier transaction is reused only
// when it anchored the same digest for the same window, so a retried request is
// not anchored twice while distinct windows that hash alike, such as empty
// ones, each get their own transaction.
func (w *Worker) submit(ctx context.Context, result anchor.Result) (*types.Proof, error) {
	ctx, cancel := context.WithTimeout(ctx, w.cfg.BlockchainTimeout)
	defer cancel()

	digest := result.Digest.String()
	entry := types.NewAnchorEntry(digest, result.Window.Start, result.Window.End, result.EventCount, result.SchemaVersion)
	if txID, err := w.deps.Chain.FindAnchorByDigest(ctx, digest); err == nil && txID != "" {
		audit, err := w.deps.Chain.GetAnchorByTxHash(ctx, txID)
		if err == nil && audit.Digest == digest &&
			audit.WindowStart == entry.WindowStart && audit.WindowEnd == entry.WindowEnd {
			return &types.Proof{TransactionID: txID, BlockHeight: audit.BlockHeight, Digest: digest}, nil
		}
	}
	return w.deps.Chain.SubmitAnchor(ctx, entry)
}

func (w *Worker) fail(ctx context.Context, requestID string, cause error) {
	w.logger.Warnf("Request %s failed permanently: %v", requestID, cause)
	if err := w.deps.Store.MarkAsFailed(ctx, store.FailureRecord{RequestID: requestID, ErrorMessage: cause.Error()}); err != nil {
		w.logger.Errorf("Request %s: MarkAsFailed failed: %v", requestID, err)
	}
	w.publish(ctx, &models.AnchorResult{
		RequestID:   requestID,
		Status:      store.StatusFailed,
		Error:       cause.Error(),
		CompletedAt: time.Now().UTC(),
	})
}

// retry puts the request back to RECEIVED and schedules another attempt. With a
// requeue producer the request is written back to the topic after RetryDelay
// and the current delivery is acknowledged; otherwise it is NACKed.
func (w *Worker) retry(ctx context.Context, req *models.AnchorRequest, cause error) bool {
	w.logger.Warnf("Request %s will be retried: %v", req.RequestID, cause)
	if err := w.deps.Store.MarkForRetry(context.WithoutCancel(ctx), req.RequestID, cause.Error()); err != nil {
		w.logger.Errorf("Request %s: MarkForRetry failed: %v", req.RequestID, err)
	}
	if w.deps.Requeue == nil {
		return false
	}

	if w.cfg.RetryDelay > 0 {
		timer := time.NewTimer(w.cfg.RetryDelay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return false
		case <-timer.C:
		}
	}
	if err := w.deps.Requeue.Publish(ctx, req); err != nil {
		w.logger.Errorf("Request %s: requeue failed, leaving it unacknowledged: %v", req.RequestID, err)
		return false
	}
	return true
}

func (w *Worker) publish(ctx context.Context, res *models.AnchorResult) {
	if w.deps.Results == nil {
		return
	}
	if err := w.deps.Results.Publish(ctx, res); err != nil {
		w.logger.Errorf("Request %s: publish result failed: %v", res.RequestID, err)
	}
}
