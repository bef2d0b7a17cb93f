package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/garyjia/invoice-approval/internal/application/port"
	"github.com/garyjia/invoice-approval/internal/domain/entity"
)

// DuplicateDetector flags an invoice that looks like an earlier submission of the same document
type DuplicateDetector interface {
	// Detect marks the invoice as a duplicate when a match exists and returns the
	// matched invoice id, or "" when there is none.
	Detect(ctx context.Context, invoiceID string) (string, error)
}

type duplicateDetectorImpl struct {
	invoiceRepo port.InvoiceRepository
	dataRepo    port.ExtractedDataRepository
	logger      Logger
}

func NewDuplicateDetector(
	invoiceRepo port.InvoiceRepository,
	dataRepo port.ExtractedDataRepository,
	logger Logger,
) DuplicateDetector {
	return &duplicateDetectorImpl{
		invoiceRepo: invoiceRepo,
		dataRepo:    dataRepo,
		logger:      orNop(logger),
	}
}

func present(s *string) bool {
	return s != nil && strings.TrimSpace(*s) != ""
}

func (d *duplicateDetectorImpl) Detect(ctx context.Context, invoiceID string) (string, error) {
	data, err := d.dataRepo.GetByInvoiceID(ctx, invoiceID)
	if err != nil {
		return "", fmt.Errorf("get extracted data: %w", err)
	}
	if data == nil {
		return "", nil
	}

	match, err := d.findMatch(ctx, invoiceID, data)
	if err != nil {
		return "", err
	}
	if match == "" || match == invoiceID {
		return "", nil
	}

	if err := d.invoiceRepo.MarkDuplicate(ctx, invoiceID, match); err != nil {
		return "", fmt.Errorf("mark duplicate: %w", err)
	}

	d.logger.Info("Possible duplicate invoice detected", "invoice_id", invoiceID, "duplicate_of", match)
	return match, nil
}

func (d *duplicateDetectorImpl) findMatch(ctx context.Context, invoiceID string, data *entity.ExtractedData) (string, error) {
	if present(data.InvoiceNumber) && present(data.VendorName) {
		match, err := d.dataRepo.FindByNumberAndVendor(ctx, invoiceID, *data.InvoiceNumber, *data.VendorName)
		if err != nil {
			return "", fmt.Errorf("match by invoice number: %w", err)
		}
		if match != "" {
			return match, nil
		}
	}

	if present(data.VendorName) && data.GrandTotal.Valid {
		var date *string
		if present(data.InvoiceDate) {
			date = data.InvoiceDate
		}
		match, err := d.dataRepo.FindByVendorAndTotal(ctx, invoiceID, *data.VendorName, data.GrandTotal.Decimal, date)
		if err != nil {
			return "", fmt.Errorf("match by vendor and total: %w", err)
		}
		return match, nil
	}

	return "", nil
}
