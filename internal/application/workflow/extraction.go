package workflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/garyjia/invoice-approval/internal/domain/apperr"
	"github.com/garyjia/invoice-approval/internal/domain/entity"
	"github.com/garyjia/invoice-approval/internal/domain/event"
	domainwf "github.com/garyjia/invoice-approval/internal/domain/workflow"
	"github.com/garyjia/invoice-approval/pkg/utils"
)

const pdfMimeType = "application/pdf"

func (e *engineImpl) SubmitInvoice(ctx context.Context, req SubmitRequest) (*entity.Invoice, error) {
	if !req.Category.IsValid() {
		return nil, apperr.InvalidArgument("Valid category is required (VENDOR_PAYMENT or REIMBURSEMENT)")
	}
	if len(req.Content) == 0 {
		return nil, apperr.InvalidArgument("File is empty")
	}
	if e.inspector != nil {
		pages, err := e.inspector.PageCount(req.Content)
		if err != nil || pages == 0 {
			return nil, apperr.InvalidArgument(fmt.Sprintf("%s is not a readable PDF", req.Filename))
		}
	}

	now := time.Now().UTC()
	inv := &entity.Invoice{
		ID:               uuid.NewString(),
		SubmittedBy:      req.SubmitterID,
		Category:         req.Category,
		Status:           entity.StatusPendingReview,
		ExtractionStatus: entity.ExtractionPending,
		OriginalFilename: utils.SanitizeFilename(req.Filename),
		FileSize:         int64(len(req.Content)),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	inv.FileRef = inv.ID + ".pdf"
	if notes := strings.TrimSpace(req.Notes); notes != "" {
		inv.Notes = &notes
	}

	if err := e.storage.Save(ctx, inv.FileRef, req.Content); err != nil {
		return nil, fmt.Errorf("store invoice file: %w", err)
	}

	err := e.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := e.invoiceRepo.Create(txCtx, inv); err != nil {
			return err
		}
		_, err := e.audit.Record(txCtx, inv.ID, req.SubmitterID, entity.ActionSubmitted, "")
		return err
	})
	if err != nil {
		if delErr := e.storage.Delete(ctx, inv.FileRef); delErr != nil {
			e.logger.Error("Failed to remove orphaned file", "file_ref", inv.FileRef, "error", delErr)
		}
		return nil, fmt.Errorf("create invoice: %w", err)
	}

	e.logger.Info("Invoice submitted",
		"invoice_id", inv.ID,
		"submitted_by", inv.SubmittedBy,
		"category", inv.Category,
		"filename", inv.OriginalFilename,
	)
	e.publish(ctx, event.NewEvent(event.TypeInvoiceSubmitted, inv.ID, map[string]interface{}{
		event.KeyUserID: inv.SubmittedBy,
	}))

	if e.scheduler != nil {
		if err := e.scheduler.Schedule(ctx, inv.ID); err != nil {
			// The invoice stays PENDING and is picked up by the next recovery sweep.
			e.logger.Error("Failed to schedule extraction", "invoice_id", inv.ID, "error", err)
		}
	}

	return inv, nil
}

func (e *engineImpl) RunExtraction(ctx context.Context, invoiceID string) *ExtractionOutcome {
	out := &ExtractionOutcome{InvoiceID: invoiceID}

	claimed, err := e.invoiceRepo.ClaimExtraction(ctx, invoiceID)
	if err != nil {
		e.logger.Error("Failed to claim invoice for extraction", "invoice_id", invoiceID, "error", err)
		out.Skipped = true
		out.Err = err
		return out
	}
	if !claimed {
		out.Skipped = true
		return out
	}

	dup, err := e.safeExtract(ctx, invoiceID)
	if err != nil {
		e.markFailed(ctx, invoiceID, err)
		out.Status = entity.ExtractionFailed
		out.Err = err
		return out
	}
	out.Status = entity.ExtractionCompleted
	out.DuplicateOf = dup

	e.publish(ctx, event.NewEvent(event.TypeExtractionCompleted, invoiceID, nil))
	return out
}

// safeExtract turns a panic raised during extraction into an ExtractionFailure so the
// invoice still ends at FAILED instead of staying PROCESSING.
func (e *engineImpl) safeExtract(ctx context.Context, invoiceID string) (dup string, err error) {
	defer func() {
		if r := recover(); r != nil {
			dup, err = "", apperr.ExtractionFailure("Extraction panicked", fmt.Errorf("panic: %v", r))
		}
	}()
	return e.extract(ctx, invoiceID)
}

// extract calls the gateway and persists its result, then runs duplicate detection in the
// same transaction. Nothing is written before the call returns. Completions serialize on
// the write lock, so detection only sees invoices whose extraction committed earlier.
func (e *engineImpl) extract(ctx context.Context, invoiceID string) (string, error) {
	inv, err := e.invoiceRepo.GetByID(ctx, invoiceID)
	if err != nil {
		return "", fmt.Errorf("get invoice: %w", err)
	}
	if inv == nil {
		return "", apperr.NotFound("Invoice not found")
	}

	content, err := e.storage.Read(ctx, inv.FileRef)
	if err != nil {
		return "", fmt.Errorf("read invoice file: %w", err)
	}

	callCtx := ctx
	if e.extractionTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, e.extractionTimeout)
		defer cancel()
	}

	started := time.Now()
	result, err := e.gateway.Extract(callCtx, content, pdfMimeType)
	if err != nil {
		return "", apperr.ExtractionFailure("Extraction gateway failed", err)
	}
	if result == nil {
		return "", apperr.ExtractionFailure("Extraction gateway returned no result", nil)
	}

	data := result.ToExtractedData(invoiceID)
	now := time.Now().UTC()
	data.ID = uuid.NewString()
	data.CreatedAt, data.UpdatedAt = now, now
	assignLineItemIDs(data.LineItems)

	status, twoLevel := domainwf.InitialRoute(data.GrandTotalOrZero(), e.threshold)

	var dup string
	err = e.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := e.dataRepo.Save(txCtx, data); err != nil {
			return err
		}
		if err := e.invoiceRepo.CompleteExtraction(txCtx, invoiceID, status, twoLevel); err != nil {
			return err
		}
		var derr error
		if dup, derr = e.detector.Detect(txCtx, invoiceID); derr != nil {
			// detection never undoes a completed extraction
			e.logger.Error("Duplicate detection failed", "invoice_id", invoiceID, "error", derr)
			dup = ""
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("persist extraction: %w", err)
	}

	e.logger.Info("Extraction completed",
		"invoice_id", invoiceID,
		"grand_total", data.GrandTotalOrZero().String(),
		"requires_two_level", twoLevel,
		"initial_status", status,
		"line_items", len(data.LineItems),
		"duplicate_of", dup,
		"duration_ms", time.Since(started).Milliseconds(),
	)
	return dup, nil
}

// markFailed is best effort: its own failure is only logged.
func (e *engineImpl) markFailed(ctx context.Context, invoiceID string, cause error) {
	e.logger.Error("Extraction failed", "invoice_id", invoiceID, "error", cause)

	if err := e.invoiceRepo.SetExtractionStatus(context.WithoutCancel(ctx), invoiceID, entity.ExtractionFailed); err != nil {
		e.logger.Error("Failed to mark extraction as failed", "invoice_id", invoiceID, "error", err)
		return
	}
	e.publish(ctx, event.NewEvent(event.TypeExtractionFailed, invoiceID, map[string]interface{}{
		event.KeyError: cause.Error(),
	}))
}

func (e *engineImpl) ReprocessExtraction(ctx context.Context, invoiceID string) (*ExtractionOutcome, error) {
	inv, err := e.invoiceRepo.GetByID(ctx, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("get invoice: %w", err)
	}
	if inv == nil {
		return nil, apperr.NotFound("Invoice not found")
	}

	switch inv.ExtractionStatus {
	case entity.ExtractionCompleted:
		e.logger.Info("Extraction already completed, nothing to reprocess", "invoice_id", invoiceID)
		return &ExtractionOutcome{InvoiceID: invoiceID, Status: entity.ExtractionCompleted, Skipped: true}, nil
	case entity.ExtractionProcessing:
		return nil, apperr.Conflict("Extraction is already in progress")
	}

	out := e.RunExtraction(ctx, invoiceID)
	if out.Skipped && out.Err == nil {
		// lost the claim to a concurrent run
		return nil, apperr.Conflict("Extraction is already in progress")
	}
	return out, nil
}

func assignLineItemIDs(items []entity.LineItem) {
	for i := range items {
		if items[i].ID == "" {
			items[i].ID = uuid.NewString()
		}
	}
}
