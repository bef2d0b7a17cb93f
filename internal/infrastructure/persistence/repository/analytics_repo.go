package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/garyjia/invoice-approval/internal/application/port"
	"github.com/garyjia/invoice-approval/internal/domain/entity"
)

const (
	timelineDays   = 30
	recentInvoices = 5
)

// AnalyticsRepository implements port.AnalyticsRepository
type AnalyticsRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewAnalyticsRepository creates a new analytics repository
func NewAnalyticsRepository(db *sql.DB, logger *zap.Logger) port.AnalyticsRepository {
	return &AnalyticsRepository{
		db:     db,
		logger: logger,
	}
}

func analyticsWhere(f entity.AnalyticsFilter, extra ...string) (string, []interface{}) {
	conds := append([]string{}, extra...)
	var args []interface{}
	if f.StartDate != nil {
		conds = append(conds, "i.created_at >= ?")
		args = append(args, f.StartDate.UTC())
	}
	if f.EndDate != nil {
		conds = append(conds, "i.created_at <= ?")
		args = append(args, f.EndDate.UTC())
	}
	if f.Category != "" {
		conds = append(conds, "i.category = ?")
		args = append(args, f.Category)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// Stats computes the dashboard statistics for the filter window
func (r *AnalyticsRepository) Stats(ctx context.Context, f entity.AnalyticsFilter) (*entity.AnalyticsStats, error) {
	exec := conn(ctx, r.db)
	stats := &entity.AnalyticsStats{
		CategoryBreakdown: []entity.CategoryCount{},
		StatusTimeline:    []entity.DailyCount{},
		RecentInvoices:    []entity.RecentInvoice{},
	}

	if err := r.overview(ctx, exec, f, &stats.Overview); err != nil {
		return nil, err
	}
	if err := r.categoryBreakdown(ctx, exec, f, stats); err != nil {
		return nil, err
	}
	if err := r.timeline(ctx, exec, f, stats); err != nil {
		return nil, err
	}
	if err := r.recent(ctx, exec, f, stats); err != nil {
		return nil, err
	}
	return stats, nil
}

func (r *AnalyticsRepository) overview(ctx context.Context, exec executor, f entity.AnalyticsFilter, o *entity.AnalyticsOverview) error {
	where, args := analyticsWhere(f)
	query := `
		SELECT COUNT(*),
			COALESCE(SUM(CASE WHEN i.status IN (?, ?, ?) THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN i.status = ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN i.status = ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN i.status = ? THEN 1 ELSE 0 END), 0)
		FROM invoices i` + where
	countArgs := append([]interface{}{
		entity.StatusPendingReview, entity.StatusPendingSeniorApproval, entity.StatusPendingFinalApproval,
		entity.StatusApproved, entity.StatusRejected, entity.StatusPaid,
	}, args...)
	if err := exec.QueryRowContext(ctx, query, countArgs...).Scan(
		&o.TotalInvoices, &o.PendingCount, &o.ApprovedCount, &o.RejectedCount, &o.PaidCount,
	); err != nil {
		r.logger.Error("Failed to compute invoice counts", zap.Error(err))
		return fmt.Errorf("failed to count invoices: %w", err)
	}

	// summed in Go to keep decimal precision
	where, args = analyticsWhere(f, "ed.grand_total IS NOT NULL")
	rows, err := exec.QueryContext(ctx, `
		SELECT ed.grand_total
		FROM invoices i
		JOIN extracted_data ed ON ed.invoice_id = i.id`+where, args...)
	if err != nil {
		return fmt.Errorf("failed to load grand totals: %w", err)
	}
	defer rows.Close()
	total := decimal.Zero
	for rows.Next() {
		var s sql.NullString
		if err := rows.Scan(&s); err != nil {
			return fmt.Errorf("failed to scan grand total: %w", err)
		}
		d, err := parseDecimal(s)
		if err != nil {
			return err
		}
		if d.Valid {
			total = total.Add(d.Decimal)
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}
	o.TotalAmount = total

	where, args = analyticsWhere(f, "i.status IN (?, ?, ?)")
	avgArgs := append([]interface{}{entity.StatusApproved, entity.StatusRejected, entity.StatusPaid}, args...)
	var avg sql.NullFloat64
	if err := exec.QueryRowContext(ctx, `
		SELECT AVG((julianday(i.updated_at) - julianday(i.created_at)) * 86400000.0)
		FROM invoices i`+where, avgArgs...).Scan(&avg); err != nil {
		return fmt.Errorf("failed to compute processing time: %w", err)
	}
	if avg.Valid {
		o.AvgProcessingTimeMs = int64(avg.Float64)
	}
	return nil
}

func (r *AnalyticsRepository) categoryBreakdown(ctx context.Context, exec executor, f entity.AnalyticsFilter, stats *entity.AnalyticsStats) error {
	where, args := analyticsWhere(f)
	rows, err := exec.QueryContext(ctx, `
		SELECT i.category, COUNT(*)
		FROM invoices i`+where+`
		GROUP BY i.category
		ORDER BY i.category`, args...)
	if err != nil {
		return fmt.Errorf("failed to compute category breakdown: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var c entity.CategoryCount
		if err := rows.Scan(&c.Category, &c.Count); err != nil {
			return fmt.Errorf("failed to scan category count: %w", err)
		}
		stats.CategoryBreakdown = append(stats.CategoryBreakdown, c)
	}
	return rows.Err()
}

func (r *AnalyticsRepository) timeline(ctx context.Context, exec executor, f entity.AnalyticsFilter, stats *entity.AnalyticsStats) error {
	where, args := analyticsWhere(f)
	rows, err := exec.QueryContext(ctx, `
		SELECT date(i.created_at) AS day, COUNT(*)
		FROM invoices i`+where+`
		GROUP BY day
		ORDER BY day DESC
		LIMIT ?`, append(args, timelineDays)...)
	if err != nil {
		return fmt.Errorf("failed to compute timeline: %w", err)
	}
	defer rows.Close()

	var days []entity.DailyCount
	for rows.Next() {
		var d entity.DailyCount
		if err := rows.Scan(&d.Date, &d.Count); err != nil {
			return fmt.Errorf("failed to scan daily count: %w", err)
		}
		days = append(days, d)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	for i := len(days) - 1; i >= 0; i-- {
		stats.StatusTimeline = append(stats.StatusTimeline, days[i])
	}
	return nil
}

func (r *AnalyticsRepository) recent(ctx context.Context, exec executor, f entity.AnalyticsFilter, stats *entity.AnalyticsStats) error {
	where, args := analyticsWhere(f)
	rows, err := exec.QueryContext(ctx, `
		SELECT i.id, i.original_filename, i.status, ed.vendor_name, ed.grand_total, i.created_at
		FROM invoices i
		LEFT JOIN extracted_data ed ON ed.invoice_id = i.id`+where+`
		ORDER BY i.created_at DESC, i.id DESC
		LIMIT ?`, append(args, recentInvoices)...)
	if err != nil {
		return fmt.Errorf("failed to list recent invoices: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			ri            entity.RecentInvoice
			vendor, grand sql.NullString
		)
		if err := rows.Scan(&ri.ID, &ri.Filename, &ri.Status, &vendor, &grand, &ri.CreatedAt); err != nil {
			return fmt.Errorf("failed to scan recent invoice: %w", err)
		}
		ri.Vendor = vendor.String
		if ri.Amount, err = parseDecimal(grand); err != nil {
			return err
		}
		stats.RecentInvoices = append(stats.RecentInvoices, ri)
	}
	return rows.Err()
}

var _ port.AnalyticsRepository = (*AnalyticsRepository)(nil)
