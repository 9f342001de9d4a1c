package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"simplehash/config"
	"simplehash/internal/messaging/producer"
	"simplehash/internal/models"
	"simplehash/storage/store"
)

// ErrBufferFull is returned when the gateway cannot queue more requests.
var ErrBufferFull = errors.New("request buffer full")

// BatchProcessor persists accepted requests as RECEIVED rows and publishes
// them to the engine in batches.
type BatchProcessor struct {
	cfg      config.BatchProcessorConfig
	logger   *zap.SugaredLogger
	store    store.Store
	producer producer.Producer

	mu      sync.Mutex
	buffer  []*Accepted
	pending map[string]*Accepted // buffered or being flushed

	flushChan chan []*Accepted
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// NewBatchProcessor starts the timer and flush goroutines.
func NewBatchProcessor(cfg config.BatchProcessorConfig, s store.Store, p producer.Producer, logger *zap.SugaredLogger) *BatchProcessor {
	cfg.SetDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	bp := &BatchProcessor{
		cfg:       cfg,
		logger:    logger,
		store:     s,
		producer:  p,
		buffer:    make([]*Accepted, 0, cfg.BatchSize),
		pending:   make(map[string]*Accepted),
		flushChan: make(chan []*Accepted, cfg.FlushChannelBuffer),
		ctx:       ctx,
		cancel:    cancel,
	}

	bp.wg.Add(2)
	go bp.batchTimer()
	go bp.flushLoop()
	return bp
}

// Submit queues a request. A full batch is handed to the flush goroutine right away.
func (bp *BatchProcessor) Submit(req *Accepted) error {
	bp.mu.Lock()
	if len(bp.pending) >= bp.cfg.MaxBufferSize {
		bp.mu.Unlock()
		return ErrBufferFull
	}
	bp.buffer = append(bp.buffer, req)
	bp.pending[req.RequestID] = req
	full := len(bp.buffer) >= bp.cfg.BatchSize
	bp.mu.Unlock()

	if full {
		bp.flush()
	}
	return nil
}

// Pending reports a request that has been accepted but not yet stored.
func (bp *BatchProcessor) Pending(requestID string) (*store.AnchorStatus, bool) {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	req, ok := bp.pending[requestID]
	if !ok {
		return nil, false
	}
	return toStatus(req), true
}

func (bp *BatchProcessor) batchTimer() {
	defer bp.wg.Done()
	ticker := time.NewTicker(bp.cfg.BatchTimeout)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			bp.flush()
		case <-bp.ctx.Done():
			return
		}
	}
}

func (bp *BatchProcessor) flushLoop() {
	defer bp.wg.Done()
	for {
		select {
		case batch := <-bp.flushChan:
			bp.processBatch(batch)
		case <-bp.ctx.Done():
			// drain what is already queued, then the buffer
			for {
				select {
				case batch := <-bp.flushChan:
					bp.processBatch(batch)
					continue
				default:
				}
				break
			}
			bp.processBatch(bp.takeBuffer())
			return
		}
	}
}

// flush hands the buffer to the flush goroutine. When the channel is full the
// entries stay buffered for the next tick.
func (bp *BatchProcessor) flush() {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	if len(bp.buffer) == 0 {
		return
	}
	batch := bp.buffer
	select {
	case bp.flushChan <- batch:
		bp.buffer = make([]*Accepted, 0, bp.cfg.BatchSize)
	default:
		bp.logger.Warn("Flush channel full, will flush on next tick")
	}
}

func (bp *BatchProcessor) takeBuffer() []*Accepted {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	batch := bp.buffer
	bp.buffer = nil
	return batch
}

func (bp *BatchProcessor) processBatch(batch []*Accepted) {
	if len(batch) == 0 {
		return
	}
	defer bp.release(batch)
	start := time.Now()

	statuses := make([]*store.AnchorStatus, len(batch))
	messages := make([]models.Message, len(batch))
	for i, req := range batch {
		statuses[i] = toStatus(req)
		messages[i] = &models.AnchorRequest{
			RequestID:         req.RequestID,
			WindowStart:       req.WindowStart,
			WindowEnd:         req.WindowEnd,
			ReceivedTimestamp: req.ReceivedTimestamp,
		}
	}

	ctx := context.Background()
	if err := bp.store.InsertAnchorStatusBatch(ctx, statuses); err != nil {
		bp.logger.Errorf("Batch database insert failed, dropping %d requests: %v", len(batch), err)
		return
	}
	dbDuration := time.Since(start)

	if err := bp.producer.PublishBatch(ctx, messages); err != nil {
		bp.logger.Errorf("Batch publish failed for %d requests: %v", len(batch), err)
		for _, req := range batch {
			if err := bp.store.MarkAsFailed(ctx, store.FailureRecord{RequestID: req.RequestID, ErrorMessage: "publish failed: " + err.Error()}); err != nil {
				bp.logger.Errorf("Request %s: MarkAsFailed failed: %v", req.RequestID, err)
			}
		}
		return
	}

	bp.logger.Infof("Batch processed: %d requests, DB: %v, total: %v", len(batch), dbDuration, time.Since(start))
}

func (bp *BatchProcessor) release(batch []*Accepted) {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	for _, req := range batch {
		delete(bp.pending, req.RequestID)
	}
}

// Close flushes everything still queued and stops the goroutines.
func (bp *BatchProcessor) Close() {
	bp.cancel()
	bp.wg.Wait()
}

func toStatus(req *Accepted) *store.AnchorStatus {
	return &store.AnchorStatus{
		RequestID:         req.RequestID,
		WindowStart:       req.WindowStart,
		WindowEnd:         req.WindowEnd,
		Status:            store.StatusReceived,
		ReceivedTimestamp: req.ReceivedTimestamp,
		UpdatedTimestamp:  req.ReceivedTimestamp,
	}
}
