package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/invoice-approval/internal/application/workflow"
	"github.com/garyjia/invoice-approval/internal/domain/entity"
)

const idlePollInterval = 10 * time.Millisecond

// ExtractionRunner performs one extraction
type ExtractionRunner interface {
	RunExtraction(ctx context.Context, invoiceID string) *workflow.ExtractionOutcome
}

// Stats is a snapshot of worker progress
type Stats struct {
	Running    bool      `json:"running"`
	Workers    int       `json:"workers"`
	QueueDepth int       `json:"queue_depth"`
	Processed  int       `json:"processed"`
	Failed     int       `json:"failed"`
	StartedAt  time.Time `json:"started_at"`
}

// ExtractionWorker drains the queue with a fixed number of goroutines
type ExtractionWorker struct {
	queue      *ExtractionQueue
	runner     ExtractionRunner
	concurrent int
	onComplete func(*workflow.ExtractionOutcome)
	logger     *zap.Logger

	mu        sync.RWMutex
	isRunning bool
	stop      chan struct{}
	wg        sync.WaitGroup
	processed int
	failed    int
	startTime time.Time
}

// ExtractionWorkerOption configures the worker
type ExtractionWorkerOption func(*ExtractionWorker)

// WithOnComplete registers a hook called after every finished job
func WithOnComplete(fn func(*workflow.ExtractionOutcome)) ExtractionWorkerOption {
	return func(w *ExtractionWorker) { w.onComplete = fn }
}

// NewExtractionWorker creates a worker; concurrency below 1 means 1
func NewExtractionWorker(queue *ExtractionQueue, runner ExtractionRunner, concurrency int, logger *zap.Logger, opts ...ExtractionWorkerOption) *ExtractionWorker {
	if concurrency < 1 {
		concurrency = 1
	}
	w := &ExtractionWorker{
		queue:      queue,
		runner:     runner,
		concurrent: concurrency,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start launches the worker goroutines
func (w *ExtractionWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.isRunning {
		return fmt.Errorf("extraction worker already running")
	}

	w.isRunning = true
	w.stop = make(chan struct{})
	w.startTime = time.Now()

	// In-flight jobs finish even when ctx ends; queued ones are recovered on the next start.
	jobCtx := context.WithoutCancel(ctx)
	for i := 0; i < w.concurrent; i++ {
		w.wg.Add(1)
		go w.loop(jobCtx, ctx.Done())
	}

	w.logger.Info("ExtractionWorker started", zap.Int("concurrency", w.concurrent))
	return nil
}

// Stop lets running jobs finish and waits for the goroutines to exit
func (w *ExtractionWorker) Stop() error {
	w.mu.Lock()
	if !w.isRunning {
		w.mu.Unlock()
		return nil
	}
	w.isRunning = false
	close(w.stop)
	w.mu.Unlock()

	w.wg.Wait()

	stats := w.Stats()
	w.logger.Info("ExtractionWorker stopped",
		zap.Int("processed_count", stats.Processed),
		zap.Int("failed_count", stats.Failed))
	return nil
}

// Name returns the worker name for identification
func (w *ExtractionWorker) Name() string {
	return "ExtractionWorker"
}

// Stats returns current counters
func (w *ExtractionWorker) Stats() Stats {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return Stats{
		Running:    w.isRunning,
		Workers:    w.concurrent,
		QueueDepth: w.queue.Depth(),
		Processed:  w.processed,
		Failed:     w.failed,
		StartedAt:  w.startTime,
	}
}

// WaitIdle blocks until nothing is queued or running, or ctx ends
func (w *ExtractionWorker) WaitIdle(ctx context.Context) error {
	ticker := time.NewTicker(idlePollInterval)
	defer ticker.Stop()
	for w.queue.Pending() > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}

func (w *ExtractionWorker) loop(ctx context.Context, cancelled <-chan struct{}) {
	defer w.wg.Done()
	for {
		select {
		case <-w.stop:
			return
		case <-cancelled:
			return
		case id, ok := <-w.queue.jobs:
			if !ok {
				return
			}
			w.process(ctx, id)
		}
	}
}

func (w *ExtractionWorker) process(ctx context.Context, invoiceID string) {
	defer w.queue.done()

	outcome := w.run(ctx, invoiceID)

	w.mu.Lock()
	switch {
	case outcome.Skipped:
	case outcome.Err != nil:
		w.failed++
	default:
		w.processed++
	}
	w.mu.Unlock()

	if outcome.Err != nil {
		w.logger.Warn("Extraction failed",
			zap.String("invoice_id", invoiceID),
			zap.Error(outcome.Err))
	}

	if w.onComplete != nil {
		w.onComplete(outcome)
	}
}

// run keeps a panicking extraction from taking the worker goroutine down with it
func (w *ExtractionWorker) run(ctx context.Context, invoiceID string) (outcome *workflow.ExtractionOutcome) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("Extraction panicked", zap.String("invoice_id", invoiceID), zap.Any("panic", r))
			outcome = &workflow.ExtractionOutcome{
				InvoiceID: invoiceID,
				Status:    entity.ExtractionFailed,
				Err:       fmt.Errorf("extraction panicked: %v", r),
			}
		}
	}()
	return w.runner.RunExtraction(ctx, invoiceID)
}
