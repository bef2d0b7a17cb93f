package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Sortable columns of the invoice list
const (
	SortCreatedAt  = "createdAt"
	SortUpdatedAt  = "updatedAt"
	SortStatus     = "status"
	SortCategory   = "category"
	SortGrandTotal = "grandTotal"
	SortVendorName = "vendorName"
)

const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

// InvoiceFilter narrows the invoice list and export.
// Zero values mean "no constraint".
type InvoiceFilter struct {
	Statuses    []InvoiceStatus
	Category    Category
	DateFrom    *time.Time
	DateTo      *time.Time
	SubmittedBy string
	AmountMin   decimal.NullDecimal
	AmountMax   decimal.NullDecimal
	Search      string

	SortBy    string
	SortOrder string

	Page  int
	Limit int // 0 disables pagination
}

// Normalize clamps paging and sorting to the accepted ranges
func (f *InvoiceFilter) Normalize() {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 {
		f.Limit = DefaultPageLimit
	}
	if f.Limit > MaxPageLimit {
		f.Limit = MaxPageLimit
	}
	switch f.SortBy {
	case SortCreatedAt, SortUpdatedAt, SortStatus, SortCategory, SortGrandTotal, SortVendorName:
	default:
		f.SortBy = SortCreatedAt
	}
	if f.SortOrder != "asc" {
		f.SortOrder = "desc"
	}
}

// InvoiceSummary is a row of the invoice list and export
type InvoiceSummary struct {
	Invoice
	SubmitterName  string              `json:"submitter_name"`
	SubmitterEmail string              `json:"submitter_email"`
	VendorName     *string             `json:"vendor_name"`
	InvoiceNumber  *string             `json:"invoice_number"`
	InvoiceDate    *string             `json:"invoice_date"`
	GrandTotal     decimal.NullDecimal `json:"grand_total"`
}

// InvoicePage is one page of the invoice list
type InvoicePage struct {
	Items      []*InvoiceSummary `json:"invoices"`
	Pagination Pagination        `json:"pagination"`
}
