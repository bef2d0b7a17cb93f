package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/invoice-approval/internal/application/port"
)

var (
	// ErrQueueFull is returned by Schedule when the buffer is exhausted.
	// The invoice stays PENDING and is picked up again by startup recovery.
	ErrQueueFull = errors.New("extraction queue is full")
	// ErrQueueClosed is returned once the queue no longer accepts jobs
	ErrQueueClosed = errors.New("extraction queue is closed")
)

const enqueueRetryInterval = 50 * time.Millisecond

// ExtractionQueue buffers invoice ids waiting for extraction
type ExtractionQueue struct {
	jobs   chan string
	logger *zap.Logger

	mu      sync.Mutex
	closed  bool
	pending int
}

// NewExtractionQueue creates a queue holding up to size ids
func NewExtractionQueue(size int, logger *zap.Logger) *ExtractionQueue {
	if size <= 0 {
		size = 100
	}
	return &ExtractionQueue{
		jobs:   make(chan string, size),
		logger: logger,
	}
}

// Schedule enqueues without blocking
func (q *ExtractionQueue) Schedule(ctx context.Context, invoiceID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrQueueClosed
	}

	select {
	case q.jobs <- invoiceID:
		q.pending++
		return nil
	default:
		q.logger.Warn("Extraction queue full, invoice left for recovery", zap.String("invoice_id", invoiceID))
		return ErrQueueFull
	}
}

// Enqueue waits for room in the queue or for ctx to end
func (q *ExtractionQueue) Enqueue(ctx context.Context, invoiceID string) error {
	for {
		err := q.Schedule(ctx, invoiceID)
		if !errors.Is(err, ErrQueueFull) {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(enqueueRetryInterval):
		}
	}
}

// Pending counts ids queued or being processed
func (q *ExtractionQueue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pending
}

// Depth counts ids waiting in the buffer
func (q *ExtractionQueue) Depth() int {
	return len(q.jobs)
}

// Close stops accepting ids. Buffered ids can still be received.
func (q *ExtractionQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		close(q.jobs)
	}
}

func (q *ExtractionQueue) done() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.pending > 0 {
		q.pending--
	}
}

var _ port.ExtractionScheduler = (*ExtractionQueue)(nil)
