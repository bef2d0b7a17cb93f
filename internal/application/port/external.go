package port

import (
	"context"
	"io"

	"github.com/garyjia/invoice-approval/internal/domain/entity"
)

// ExtractionGateway turns an invoice file into structured fields
type ExtractionGateway interface {
	Extract(ctx context.Context, file []byte, mimeType string) (*entity.ExtractionResult, error)
}

// ExtractionScheduler queues an invoice for background extraction.
// It must not block the caller.
type ExtractionScheduler interface {
	Schedule(ctx context.Context, invoiceID string) error
}

// MessageSender delivers a plain-text message to a chat user
type MessageSender interface {
	SendText(ctx context.Context, openID, text string) error
}

// PDFInspector validates uploaded PDFs
type PDFInspector interface {
	PageCount(data []byte) (int, error)
}

// Exporter renders invoice rows into a downloadable document
type Exporter interface {
	ContentType() string
	FileExtension() string
	Write(w io.Writer, rows []*entity.InvoiceSummary) error
}
