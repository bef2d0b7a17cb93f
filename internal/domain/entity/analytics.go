package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// AnalyticsFilter restricts the statistics to a creation window and category
type AnalyticsFilter struct {
	StartDate *time.Time
	EndDate   *time.Time
	Category  Category
}

// AnalyticsOverview holds the headline counters
type AnalyticsOverview struct {
	TotalInvoices       int             `json:"total_invoices"`
	PendingCount        int             `json:"pending_count"`
	ApprovedCount       int             `json:"approved_count"`
	RejectedCount       int             `json:"rejected_count"`
	PaidCount           int             `json:"paid_count"`
	TotalAmount         decimal.Decimal `json:"total_amount"`
	AvgProcessingTimeMs int64           `json:"avg_processing_time_ms"`
}

type CategoryCount struct {
	Category Category `json:"category"`
	Count    int      `json:"count"`
}

type DailyCount struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

type RecentInvoice struct {
	ID        string              `json:"id"`
	Filename  string              `json:"filename"`
	Status    InvoiceStatus       `json:"status"`
	Vendor    string              `json:"vendor"`
	Amount    decimal.NullDecimal `json:"amount"`
	CreatedAt time.Time           `json:"created_at"`
}

// AnalyticsStats is the full analytics response
type AnalyticsStats struct {
	Overview          AnalyticsOverview `json:"overview"`
	CategoryBreakdown []CategoryCount   `json:"category_breakdown"`
	StatusTimeline    []DailyCount      `json:"status_timeline"`
	RecentInvoices    []RecentInvoice   `json:"recent_invoices"`
}
