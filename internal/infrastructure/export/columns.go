package export

import (
	"time"

	"github.com/garyjia/invoice-approval/internal/domain/entity"
)

var header = []string{
	"Invoice ID",
	"Submitted By",
	"Submitter Email",
	"Category",
	"Status",
	"Vendor Name",
	"Invoice Number",
	"Invoice Date",
	"Grand Total",
	"Filename",
	"Upload Date",
}

// record flattens one summary into the export columns
func record(row *entity.InvoiceSummary) []string {
	grandTotal := ""
	if row.GrandTotal.Valid {
		grandTotal = row.GrandTotal.Decimal.String()
	}
	return []string{
		row.ID,
		row.SubmitterName,
		row.SubmitterEmail,
		string(row.Category),
		string(row.Status),
		deref(row.VendorName),
		deref(row.InvoiceNumber),
		deref(row.InvoiceDate),
		grandTotal,
		row.OriginalFilename,
		row.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
