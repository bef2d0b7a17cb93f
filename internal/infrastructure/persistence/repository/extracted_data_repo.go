package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/garyjia/invoice-approval/internal/application/port"
	"github.com/garyjia/invoice-approval/internal/domain/entity"
)

// ExtractedDataRepository implements port.ExtractedDataRepository
type ExtractedDataRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewExtractedDataRepository creates a new extracted data repository
func NewExtractedDataRepository(db *sql.DB, logger *zap.Logger) port.ExtractedDataRepository {
	return &ExtractedDataRepository{
		db:     db,
		logger: logger,
	}
}

func marshalScores(scores map[string]float64) (string, error) {
	if scores == nil {
		scores = map[string]float64{}
	}
	b, err := json.Marshal(scores)
	if err != nil {
		return "", fmt.Errorf("failed to marshal confidence scores: %w", err)
	}
	return string(b), nil
}

// Save inserts the extracted data of an invoice, replacing any earlier record and its line items
func (r *ExtractedDataRepository) Save(ctx context.Context, data *entity.ExtractedData) error {
	scores, err := marshalScores(data.ConfidenceScores)
	if err != nil {
		return err
	}
	exec := conn(ctx, r.db)

	// line_items cascade with the replaced row
	if _, err := exec.ExecContext(ctx, `DELETE FROM extracted_data WHERE invoice_id = ?`, data.InvoiceID); err != nil {
		return fmt.Errorf("failed to clear previous extracted data: %w", err)
	}

	query := `
		INSERT INTO extracted_data (
			id, invoice_id, vendor_name, invoice_number, invoice_date, due_date,
			subtotal, tax, grand_total, payment_terms, bank_details, confidence_scores,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = exec.ExecContext(ctx, query,
		data.ID, data.InvoiceID, data.VendorName, data.InvoiceNumber, data.InvoiceDate, data.DueDate,
		decimalArg(data.Subtotal), decimalArg(data.Tax), decimalArg(data.GrandTotal),
		data.PaymentTerms, data.BankDetails, scores,
		data.CreatedAt, data.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to save extracted data", zap.String("invoice_id", data.InvoiceID), zap.Error(err))
		return fmt.Errorf("failed to save extracted data: %w", err)
	}

	return r.insertLineItems(ctx, exec, data.ID, data.LineItems)
}

func (r *ExtractedDataRepository) insertLineItems(ctx context.Context, exec executor, extractedDataID string, items []entity.LineItem) error {
	query := `
		INSERT INTO line_items (id, extracted_data_id, position, description, quantity, unit_price, total)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	for i, item := range items {
		_, err := exec.ExecContext(ctx, query,
			item.ID, extractedDataID, i, item.Description,
			decimalArg(item.Quantity), decimalArg(item.UnitPrice), decimalArg(item.Total),
		)
		if err != nil {
			return fmt.Errorf("failed to insert line item %d: %w", i, err)
		}
	}
	return nil
}

// GetByInvoiceID retrieves the extracted data of an invoice with its line items
func (r *ExtractedDataRepository) GetByInvoiceID(ctx context.Context, invoiceID string) (*entity.ExtractedData, error) {
	exec := conn(ctx, r.db)
	query := `
		SELECT id, invoice_id, vendor_name, invoice_number, invoice_date, due_date,
			subtotal, tax, grand_total, payment_terms, bank_details, confidence_scores,
			created_at, updated_at
		FROM extracted_data
		WHERE invoice_id = ?
	`

	var (
		data                                   entity.ExtractedData
		vendor, number, date, due, terms, bank sql.NullString
		subtotal, tax, grand                   sql.NullString
		scores                                 string
	)
	err := exec.QueryRowContext(ctx, query, invoiceID).Scan(
		&data.ID, &data.InvoiceID, &vendor, &number, &date, &due,
		&subtotal, &tax, &grand, &terms, &bank, &scores,
		&data.CreatedAt, &data.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get extracted data", zap.String("invoice_id", invoiceID), zap.Error(err))
		return nil, fmt.Errorf("failed to get extracted data: %w", err)
	}

	data.VendorName = stringPtr(vendor)
	data.InvoiceNumber = stringPtr(number)
	data.InvoiceDate = stringPtr(date)
	data.DueDate = stringPtr(due)
	data.PaymentTerms = stringPtr(terms)
	data.BankDetails = stringPtr(bank)
	if data.Subtotal, err = parseDecimal(subtotal); err != nil {
		return nil, err
	}
	if data.Tax, err = parseDecimal(tax); err != nil {
		return nil, err
	}
	if data.GrandTotal, err = parseDecimal(grand); err != nil {
		return nil, err
	}
	data.ConfidenceScores = map[string]float64{}
	if scores != "" {
		if err := json.Unmarshal([]byte(scores), &data.ConfidenceScores); err != nil {
			return nil, fmt.Errorf("failed to unmarshal confidence scores: %w", err)
		}
	}

	data.LineItems, err = r.listLineItems(ctx, exec, data.ID)
	if err != nil {
		return nil, err
	}
	return &data, nil
}

func (r *ExtractedDataRepository) listLineItems(ctx context.Context, exec executor, extractedDataID string) ([]entity.LineItem, error) {
	rows, err := exec.QueryContext(ctx, `
		SELECT id, description, quantity, unit_price, total
		FROM line_items
		WHERE extracted_data_id = ?
		ORDER BY position ASC
	`, extractedDataID)
	if err != nil {
		return nil, fmt.Errorf("failed to list line items: %w", err)
	}
	defer rows.Close()

	items := []entity.LineItem{}
	for rows.Next() {
		var (
			item                  entity.LineItem
			qty, unitPrice, total sql.NullString
		)
		if err := rows.Scan(&item.ID, &item.Description, &qty, &unitPrice, &total); err != nil {
			return nil, fmt.Errorf("failed to scan line item: %w", err)
		}
		if item.Quantity, err = parseDecimal(qty); err != nil {
			return nil, err
		}
		if item.UnitPrice, err = parseDecimal(unitPrice); err != nil {
			return nil, err
		}
		if item.Total, err = parseDecimal(total); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// Update writes the scalar fields of an existing record
func (r *ExtractedDataRepository) Update(ctx context.Context, data *entity.ExtractedData) error {
	scores, err := marshalScores(data.ConfidenceScores)
	if err != nil {
		return err
	}
	query := `
		UPDATE extracted_data SET
			vendor_name = ?, invoice_number = ?, invoice_date = ?, due_date = ?,
			subtotal = ?, tax = ?, grand_total = ?, payment_terms = ?, bank_details = ?,
			confidence_scores = ?, updated_at = ?
		WHERE id = ?
	`
	_, err = conn(ctx, r.db).ExecContext(ctx, query,
		data.VendorName, data.InvoiceNumber, data.InvoiceDate, data.DueDate,
		decimalArg(data.Subtotal), decimalArg(data.Tax), decimalArg(data.GrandTotal),
		data.PaymentTerms, data.BankDetails, scores, data.UpdatedAt,
		data.ID,
	)
	if err != nil {
		r.logger.Error("Failed to update extracted data", zap.String("id", data.ID), zap.Error(err))
		return fmt.Errorf("failed to update extracted data: %w", err)
	}
	return nil
}

// ReplaceLineItems deletes every line item of the record and inserts items in order
func (r *ExtractedDataRepository) ReplaceLineItems(ctx context.Context, extractedDataID string, items []entity.LineItem) error {
	exec := conn(ctx, r.db)
	if _, err := exec.ExecContext(ctx, `DELETE FROM line_items WHERE extracted_data_id = ?`, extractedDataID); err != nil {
		return fmt.Errorf("failed to delete line items: %w", err)
	}
	return r.insertLineItems(ctx, exec, extractedDataID, items)
}

func (r *ExtractedDataRepository) findFirst(ctx context.Context, query string, args ...interface{}) (string, error) {
	var id string
	err := conn(ctx, r.db).QueryRowContext(ctx, query, args...).Scan(&id)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to search duplicates: %w", err)
	}
	return id, nil
}

// earlierThanTarget keeps candidates submitted strictly before the target invoice,
// ordered by (created_at, id), so a later submission never flags an earlier one.
const earlierThanTarget = `
		JOIN invoices t ON t.id = ?
		WHERE (i.created_at < t.created_at OR (i.created_at = t.created_at AND i.id < t.id))`

// FindByNumberAndVendor returns the earliest invoice submitted before invoiceID with the
// same invoice number and vendor
func (r *ExtractedDataRepository) FindByNumberAndVendor(ctx context.Context, invoiceID, invoiceNumber, vendorName string) (string, error) {
	return r.findFirst(ctx, `
		SELECT ed.invoice_id
		FROM extracted_data ed
		JOIN invoices i ON i.id = ed.invoice_id`+earlierThanTarget+`
		  AND ed.invoice_number = ? AND ed.vendor_name = ?
		ORDER BY i.created_at ASC, i.id ASC
		LIMIT 1
	`, invoiceID, invoiceNumber, vendorName)
}

// FindByVendorAndTotal returns the earliest invoice submitted before invoiceID with the
// same vendor and grand total, also matching the invoice date when one is given
func (r *ExtractedDataRepository) FindByVendorAndTotal(ctx context.Context, invoiceID, vendorName string, grandTotal decimal.Decimal, invoiceDate *string) (string, error) {
	query := `
		SELECT ed.invoice_id
		FROM extracted_data ed
		JOIN invoices i ON i.id = ed.invoice_id` + earlierThanTarget + `
		  AND ed.vendor_name = ? AND ed.grand_total = ?`
	args := []interface{}{invoiceID, vendorName, grandTotal.String()}
	if invoiceDate != nil {
		query += ` AND ed.invoice_date = ?`
		args = append(args, *invoiceDate)
	}
	query += ` ORDER BY i.created_at ASC, i.id ASC LIMIT 1`
	return r.findFirst(ctx, query, args...)
}

var _ port.ExtractedDataRepository = (*ExtractedDataRepository)(nil)
