package workflow

import (
	"context"

	"github.com/garyjia/invoice-approval/internal/domain/entity"
)

// Engine drives invoices through submission, extraction and approval.
// Every status change is applied with its audit and notification rows in one transaction.
type Engine interface {
	// SubmitInvoice stores the file, creates the invoice and schedules extraction.
	// Extraction failures never surface here.
	SubmitInvoice(ctx context.Context, req SubmitRequest) (*entity.Invoice, error)

	// RunExtraction processes one invoice. Failures are absorbed into the invoice's
	// extraction status and reported through the outcome only.
	RunExtraction(ctx context.Context, invoiceID string) *ExtractionOutcome

	// ReprocessExtraction is the manual retry entry point. It is a no-op for invoices
	// whose extraction already completed.
	ReprocessExtraction(ctx context.Context, invoiceID string) (*ExtractionOutcome, error)

	ChangeStatus(ctx context.Context, invoiceID string, actor entity.Principal, requested entity.InvoiceStatus, comment string) (*entity.Invoice, error)

	// BulkChangeStatus approves or rejects the invoices that are still PENDING_REVIEW and
	// skips the rest. It returns how many were updated.
	BulkChangeStatus(ctx context.Context, invoiceIDs []string, actor entity.Principal, requested entity.InvoiceStatus, comment string) (int, error)

	EditExtractedData(ctx context.Context, invoiceID string, actor entity.Principal, patch entity.ExtractedDataPatch) (*entity.ExtractedData, error)
}

// SubmitRequest carries one uploaded invoice file
type SubmitRequest struct {
	SubmitterID string
	Category    entity.Category
	Filename    string
	Content     []byte
	Notes       string
}

// ExtractionOutcome reports what a single extraction run did
type ExtractionOutcome struct {
	InvoiceID string
	// Status is COMPLETED or FAILED, empty when the run was skipped
	Status      entity.ExtractionStatus
	Skipped     bool
	DuplicateOf string
	Err         error
}
