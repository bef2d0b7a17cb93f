package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/invoice-approval/internal/application/port"
	"github.com/garyjia/invoice-approval/internal/domain/entity"
)

// InvoiceRepository implements port.InvoiceRepository
type InvoiceRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewInvoiceRepository creates a new invoice repository
func NewInvoiceRepository(db *sql.DB, logger *zap.Logger) port.InvoiceRepository {
	return &InvoiceRepository{
		db:     db,
		logger: logger,
	}
}

const invoiceColumns = `
	i.id, i.submitted_by, i.category, i.status, i.extraction_status, i.requires_two_level,
	i.is_duplicate, i.duplicate_of, i.senior_approved_by, i.senior_approved_at, i.notes,
	i.file_ref, i.original_filename, i.file_size, i.created_at, i.updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func invoiceScanTargets(inv *entity.Invoice, duplicateOf, seniorBy, notes *sql.NullString, seniorAt *sql.NullTime) []interface{} {
	return []interface{}{
		&inv.ID, &inv.SubmittedBy, &inv.Category, &inv.Status, &inv.ExtractionStatus, &inv.RequiresTwoLevel,
		&inv.IsDuplicate, duplicateOf, seniorBy, seniorAt, notes,
		&inv.FileRef, &inv.OriginalFilename, &inv.FileSize, &inv.CreatedAt, &inv.UpdatedAt,
	}
}

func scanInvoice(row rowScanner, extra ...interface{}) (*entity.Invoice, error) {
	var (
		inv                          entity.Invoice
		duplicateOf, seniorBy, notes sql.NullString
		seniorAt                     sql.NullTime
	)
	targets := invoiceScanTargets(&inv, &duplicateOf, &seniorBy, &notes, &seniorAt)
	if err := row.Scan(append(targets, extra...)...); err != nil {
		return nil, err
	}
	inv.DuplicateOf = stringPtr(duplicateOf)
	inv.SeniorApprovedBy = stringPtr(seniorBy)
	inv.SeniorApprovedAt = timePtr(seniorAt)
	inv.Notes = stringPtr(notes)
	return &inv, nil
}

// Create inserts a new invoice
func (r *InvoiceRepository) Create(ctx context.Context, inv *entity.Invoice) error {
	query := `
		INSERT INTO invoices (
			id, submitted_by, category, status, extraction_status, requires_two_level,
			is_duplicate, duplicate_of, senior_approved_by, senior_approved_at, notes,
			file_ref, original_filename, file_size, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := conn(ctx, r.db).ExecContext(ctx, query,
		inv.ID, inv.SubmittedBy, inv.Category, inv.Status, inv.ExtractionStatus, boolToInt(inv.RequiresTwoLevel),
		boolToInt(inv.IsDuplicate), inv.DuplicateOf, inv.SeniorApprovedBy, inv.SeniorApprovedAt, inv.Notes,
		inv.FileRef, inv.OriginalFilename, inv.FileSize, inv.CreatedAt, inv.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create invoice", zap.String("id", inv.ID), zap.Error(err))
		return fmt.Errorf("failed to create invoice: %w", err)
	}
	return nil
}

// GetByID retrieves an invoice by ID
func (r *InvoiceRepository) GetByID(ctx context.Context, id string) (*entity.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices i WHERE i.id = ?`

	inv, err := scanInvoice(conn(ctx, r.db).QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get invoice by ID", zap.String("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get invoice: %w", err)
	}
	return inv, nil
}

// ClaimExtraction moves a PENDING or FAILED extraction to PROCESSING
func (r *InvoiceRepository) ClaimExtraction(ctx context.Context, id string) (bool, error) {
	query := `
		UPDATE invoices SET extraction_status = ?, updated_at = ?
		WHERE id = ? AND extraction_status IN (?, ?)
	`
	result, err := conn(ctx, r.db).ExecContext(ctx, query,
		entity.ExtractionProcessing, time.Now().UTC(), id,
		entity.ExtractionPending, entity.ExtractionFailed,
	)
	if err != nil {
		return false, fmt.Errorf("failed to claim extraction: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n == 1, nil
}

// SetExtractionStatus overwrites the extraction status
func (r *InvoiceRepository) SetExtractionStatus(ctx context.Context, id string, status entity.ExtractionStatus) error {
	query := `UPDATE invoices SET extraction_status = ?, updated_at = ? WHERE id = ?`
	if _, err := conn(ctx, r.db).ExecContext(ctx, query, status, time.Now().UTC(), id); err != nil {
		r.logger.Error("Failed to set extraction status", zap.String("id", id), zap.String("status", string(status)), zap.Error(err))
		return fmt.Errorf("failed to set extraction status: %w", err)
	}
	return nil
}

// CompleteExtraction marks extraction COMPLETED and applies the initial route while the
// invoice still holds its PENDING_REVIEW placeholder
func (r *InvoiceRepository) CompleteExtraction(ctx context.Context, id string, status entity.InvoiceStatus, requiresTwoLevel bool) error {
	query := `
		UPDATE invoices SET
			extraction_status = ?,
			requires_two_level = ?,
			status = CASE WHEN status = ? THEN ? ELSE status END,
			updated_at = ?
		WHERE id = ?
	`
	_, err := conn(ctx, r.db).ExecContext(ctx, query,
		entity.ExtractionCompleted, boolToInt(requiresTwoLevel),
		entity.StatusPendingReview, status,
		time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to complete extraction: %w", err)
	}
	return nil
}

// ResetStaleExtractions returns interrupted and queued extractions to PENDING and lists them
func (r *InvoiceRepository) ResetStaleExtractions(ctx context.Context) ([]string, error) {
	exec := conn(ctx, r.db)

	result, err := exec.ExecContext(ctx,
		`UPDATE invoices SET extraction_status = ? WHERE extraction_status = ?`,
		entity.ExtractionPending, entity.ExtractionProcessing,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to reset stale extractions: %w", err)
	}
	if n, _ := result.RowsAffected(); n > 0 {
		r.logger.Info("Reset interrupted extractions", zap.Int64("count", n))
	}

	rows, err := exec.QueryContext(ctx,
		`SELECT id FROM invoices WHERE extraction_status = ? ORDER BY created_at ASC`,
		entity.ExtractionPending,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending extractions: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan invoice id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// TransitionStatus is a compare-and-set on the workflow status
func (r *InvoiceRepository) TransitionStatus(ctx context.Context, change entity.StatusChange) (bool, error) {
	query := `
		UPDATE invoices SET
			status = ?,
			senior_approved_by = COALESCE(?, senior_approved_by),
			senior_approved_at = COALESCE(?, senior_approved_at),
			updated_at = ?
		WHERE id = ? AND status = ?
	`
	args := []interface{}{
		change.To, change.SeniorApprovedBy, change.SeniorApprovedAt, time.Now().UTC(),
		change.InvoiceID, change.From,
	}
	if change.RequireExtracted {
		query += ` AND extraction_status = ?`
		args = append(args, entity.ExtractionCompleted)
	}

	result, err := conn(ctx, r.db).ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to transition invoice status",
			zap.String("id", change.InvoiceID),
			zap.String("from", string(change.From)),
			zap.String("to", string(change.To)),
			zap.Error(err))
		return false, fmt.Errorf("failed to update invoice status: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n == 1, nil
}

// MarkDuplicate flags the invoice as a possible duplicate of another
func (r *InvoiceRepository) MarkDuplicate(ctx context.Context, id, duplicateOf string) error {
	query := `UPDATE invoices SET is_duplicate = 1, duplicate_of = ? WHERE id = ?`
	if _, err := conn(ctx, r.db).ExecContext(ctx, query, duplicateOf, id); err != nil {
		return fmt.Errorf("failed to mark duplicate: %w", err)
	}
	return nil
}

var sortColumns = map[string]string{
	entity.SortCreatedAt:  "i.created_at",
	entity.SortUpdatedAt:  "i.updated_at",
	entity.SortStatus:     "i.status",
	entity.SortCategory:   "i.category",
	entity.SortGrandTotal: "CAST(ed.grand_total AS REAL)",
	entity.SortVendorName: "ed.vendor_name",
}

func likePattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(s) + "%"
}

func buildInvoiceWhere(f entity.InvoiceFilter) (string, []interface{}) {
	var (
		conds []string
		args  []interface{}
	)

	if len(f.Statuses) > 0 {
		marks := make([]string, len(f.Statuses))
		for i, s := range f.Statuses {
			marks[i] = "?"
			args = append(args, s)
		}
		conds = append(conds, "i.status IN ("+strings.Join(marks, ", ")+")")
	}
	if f.Category != "" {
		conds = append(conds, "i.category = ?")
		args = append(args, f.Category)
	}
	if f.DateFrom != nil {
		conds = append(conds, "i.created_at >= ?")
		args = append(args, f.DateFrom.UTC())
	}
	if f.DateTo != nil {
		conds = append(conds, "i.created_at <= ?")
		args = append(args, f.DateTo.UTC())
	}
	if f.SubmittedBy != "" {
		conds = append(conds, "i.submitted_by = ?")
		args = append(args, f.SubmittedBy)
	}
	if f.AmountMin.Valid {
		conds = append(conds, "CAST(ed.grand_total AS REAL) >= ?")
		args = append(args, f.AmountMin.Decimal.InexactFloat64())
	}
	if f.AmountMax.Valid {
		conds = append(conds, "CAST(ed.grand_total AS REAL) <= ?")
		args = append(args, f.AmountMax.Decimal.InexactFloat64())
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		p := likePattern(s)
		conds = append(conds, `(i.original_filename LIKE ? ESCAPE '\' OR ed.vendor_name LIKE ? ESCAPE '\' OR ed.invoice_number LIKE ? ESCAPE '\')`)
		args = append(args, p, p, p)
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// List returns one page of invoice summaries and the total number of matches.
// A non-positive Limit returns every match.
func (r *InvoiceRepository) List(ctx context.Context, f entity.InvoiceFilter) ([]*entity.InvoiceSummary, int, error) {
	exec := conn(ctx, r.db)
	from := `
		FROM invoices i
		LEFT JOIN extracted_data ed ON ed.invoice_id = i.id
		LEFT JOIN users u ON u.id = i.submitted_by`
	where, args := buildInvoiceWhere(f)

	var total int
	if err := exec.QueryRowContext(ctx, "SELECT COUNT(*)"+from+where, args...).Scan(&total); err != nil {
		r.logger.Error("Failed to count invoices", zap.Error(err))
		return nil, 0, fmt.Errorf("failed to count invoices: %w", err)
	}

	col, ok := sortColumns[f.SortBy]
	if !ok {
		col = sortColumns[entity.SortCreatedAt]
	}
	dir := "DESC"
	if f.SortOrder == "asc" {
		dir = "ASC"
	}

	query := `SELECT ` + invoiceColumns + `,
			u.username, u.email, ed.vendor_name, ed.invoice_number, ed.invoice_date, ed.grand_total` +
		from + where + fmt.Sprintf(" ORDER BY %s %s, i.id %s", col, dir, dir)
	pageArgs := args
	if f.Limit > 0 {
		page := f.Page
		if page < 1 {
			page = 1
		}
		query += " LIMIT ? OFFSET ?"
		pageArgs = append(append([]interface{}{}, args...), f.Limit, (page-1)*f.Limit)
	}

	rows, err := exec.QueryContext(ctx, query, pageArgs...)
	if err != nil {
		r.logger.Error("Failed to list invoices", zap.Error(err))
		return nil, 0, fmt.Errorf("failed to list invoices: %w", err)
	}
	defer rows.Close()

	summaries := []*entity.InvoiceSummary{}
	for rows.Next() {
		var username, email, vendor, number, date, grandText sql.NullString
		inv, err := scanInvoice(rows, &username, &email, &vendor, &number, &date, &grandText)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan invoice: %w", err)
		}
		grand, err := parseDecimal(grandText)
		if err != nil {
			return nil, 0, err
		}
		summaries = append(summaries, &entity.InvoiceSummary{
			Invoice:        *inv,
			SubmitterName:  username.String,
			SubmitterEmail: email.String,
			VendorName:     stringPtr(vendor),
			InvoiceNumber:  stringPtr(number),
			InvoiceDate:    stringPtr(date),
			GrandTotal:     grand,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate invoices: %w", err)
	}
	return summaries, total, nil
}

// ListByExtractionStatus returns invoices in any of the given extraction states, newest first
func (r *InvoiceRepository) ListByExtractionStatus(ctx context.Context, statuses ...entity.ExtractionStatus) ([]*entity.Invoice, error) {
	if len(statuses) == 0 {
		return []*entity.Invoice{}, nil
	}
	marks := make([]string, len(statuses))
	args := make([]interface{}, len(statuses))
	for i, s := range statuses {
		marks[i] = "?"
		args[i] = s
	}
	query := `SELECT ` + invoiceColumns + ` FROM invoices i
		WHERE i.extraction_status IN (` + strings.Join(marks, ", ") + `)
		ORDER BY i.created_at DESC`

	rows, err := conn(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list invoices by extraction status: %w", err)
	}
	defer rows.Close()

	invoices := []*entity.Invoice{}
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan invoice: %w", err)
		}
		invoices = append(invoices, inv)
	}
	return invoices, rows.Err()
}

var _ port.InvoiceRepository = (*InvoiceRepository)(nil)
