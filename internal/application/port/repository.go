package port

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/garyjia/invoice-approval/internal/domain/entity"
)

// InvoiceRepository defines persistence operations for Invoice.
// Getters return (nil, nil) when the row does not exist.
type InvoiceRepository interface {
	Create(ctx context.Context, inv *entity.Invoice) error
	GetByID(ctx context.Context, id string) (*entity.Invoice, error)

	// ClaimExtraction moves extraction PENDING|FAILED -> PROCESSING and reports whether it did
	ClaimExtraction(ctx context.Context, id string) (bool, error)
	SetExtractionStatus(ctx context.Context, id string, status entity.ExtractionStatus) error
	// CompleteExtraction records the routing decision. The workflow status is only
	// replaced while it still holds the PENDING_REVIEW placeholder.
	CompleteExtraction(ctx context.Context, id string, status entity.InvoiceStatus, requiresTwoLevel bool) error
	// ResetStaleExtractions moves PROCESSING back to PENDING and returns every PENDING id
	ResetStaleExtractions(ctx context.Context) ([]string, error)

	// TransitionStatus applies the change only if the invoice is still in change.From
	TransitionStatus(ctx context.Context, change entity.StatusChange) (bool, error)
	MarkDuplicate(ctx context.Context, id, duplicateOf string) error

	List(ctx context.Context, filter entity.InvoiceFilter) ([]*entity.InvoiceSummary, int, error)
	ListByExtractionStatus(ctx context.Context, statuses ...entity.ExtractionStatus) ([]*entity.Invoice, error)
}

// ExtractedDataRepository defines persistence operations for ExtractedData and its line items
type ExtractedDataRepository interface {
	// Save inserts or replaces the extracted data of an invoice, line items included
	Save(ctx context.Context, data *entity.ExtractedData) error
	GetByInvoiceID(ctx context.Context, invoiceID string) (*entity.ExtractedData, error)
	// Update writes the scalar fields only
	Update(ctx context.Context, data *entity.ExtractedData) error
	ReplaceLineItems(ctx context.Context, extractedDataID string, items []entity.LineItem) error

	// FindByNumberAndVendor returns the id of the earliest invoice submitted before invoiceID
	// with the same pair, or ""
	FindByNumberAndVendor(ctx context.Context, invoiceID, invoiceNumber, vendorName string) (string, error)
	// FindByVendorAndTotal matches vendor and grand total, and invoice date when one is given,
	// among invoices submitted before invoiceID
	FindByVendorAndTotal(ctx context.Context, invoiceID, vendorName string, grandTotal decimal.Decimal, invoiceDate *string) (string, error)
}

// ActionRepository defines persistence operations for the audit trail
type ActionRepository interface {
	Create(ctx context.Context, action *entity.InvoiceAction) error
	ListByInvoiceID(ctx context.Context, invoiceID string) ([]*entity.InvoiceAction, error)
}

// NotificationRepository defines persistence operations for Notification
type NotificationRepository interface {
	Create(ctx context.Context, n *entity.Notification) error
	GetByID(ctx context.Context, id string) (*entity.Notification, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]*entity.Notification, error)
	CountByUser(ctx context.Context, userID string, unreadOnly bool) (int, error)
	MarkRead(ctx context.Context, id string) error
	MarkAllRead(ctx context.Context, userID string) (int64, error)
}

// UserRepository defines persistence operations for User
type UserRepository interface {
	Create(ctx context.Context, user *entity.User) error
	GetByID(ctx context.Context, id string) (*entity.User, error)
	GetByUsername(ctx context.Context, username string) (*entity.User, error)
	ListByRole(ctx context.Context, role entity.Role) ([]*entity.User, error)
}

// AnalyticsRepository computes aggregate statistics
type AnalyticsRepository interface {
	Stats(ctx context.Context, filter entity.AnalyticsFilter) (*entity.AnalyticsStats, error)
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
