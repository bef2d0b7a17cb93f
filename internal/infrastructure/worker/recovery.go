package worker

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/garyjia/invoice-approval/internal/application/port"
)

// Recovery requeues extractions interrupted by a previous shutdown.
// PROCESSING rows are reset to PENDING and every PENDING invoice is enqueued again.
type Recovery struct {
	invoiceRepo port.InvoiceRepository
	queue       *ExtractionQueue
	logger      *zap.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewRecovery(invoiceRepo port.InvoiceRepository, queue *ExtractionQueue, logger *zap.Logger) *Recovery {
	return &Recovery{
		invoiceRepo: invoiceRepo,
		queue:       queue,
		logger:      logger,
	}
}

// Start resets stale rows synchronously and enqueues in the background
func (r *Recovery) Start(ctx context.Context) error {
	ids, err := r.invoiceRepo.ResetStaleExtractions(ctx)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}

	r.logger.Info("Recovering pending extractions", zap.Int("count", len(ids)))

	ctx, r.cancel = context.WithCancel(ctx)
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		for _, id := range ids {
			if err := r.queue.Enqueue(ctx, id); err != nil {
				r.logger.Warn("Stopped requeueing extractions", zap.String("invoice_id", id), zap.Error(err))
				return
			}
		}
	}()
	return nil
}

// Stop abandons any remaining requeueing
func (r *Recovery) Stop() error {
	if r.cancel != nil {
		r.cancel()
	}
	r.wg.Wait()
	return nil
}

// Name returns the worker name for identification
func (r *Recovery) Name() string {
	return "ExtractionRecovery"
}
