package entity

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// ExtractedData holds the structured fields parsed from an invoice file
type ExtractedData struct {
	ID               string              `json:"id"`
	InvoiceID        string              `json:"invoice_id"`
	VendorName       *string             `json:"vendor_name"`
	InvoiceNumber    *string             `json:"invoice_number"`
	InvoiceDate      *string             `json:"invoice_date"`
	DueDate          *string             `json:"due_date"`
	Subtotal         decimal.NullDecimal `json:"subtotal"`
	Tax              decimal.NullDecimal `json:"tax"`
	GrandTotal       decimal.NullDecimal `json:"grand_total"`
	PaymentTerms     *string             `json:"payment_terms"`
	BankDetails      *string             `json:"bank_details"`
	ConfidenceScores map[string]float64  `json:"confidence_scores"`
	LineItems        []LineItem          `json:"line_items"`
	CreatedAt        time.Time           `json:"created_at"`
	UpdatedAt        time.Time           `json:"updated_at"`
}

// LineItem is one row of an invoice
type LineItem struct {
	ID          string              `json:"id,omitempty"`
	Description string              `json:"description"`
	Quantity    decimal.NullDecimal `json:"quantity"`
	UnitPrice   decimal.NullDecimal `json:"unit_price"`
	Total       decimal.NullDecimal `json:"total"`
}

// ExtractionResult is what the extraction gateway returns for a file
type ExtractionResult struct {
	VendorName       *string
	InvoiceNumber    *string
	InvoiceDate      *string
	DueDate          *string
	LineItems        []LineItem
	Subtotal         decimal.NullDecimal
	Tax              decimal.NullDecimal
	GrandTotal       decimal.NullDecimal
	PaymentTerms     *string
	BankDetails      *string
	ConfidenceScores map[string]float64
}

// ToExtractedData converts a gateway result into a record for the given invoice
func (r *ExtractionResult) ToExtractedData(invoiceID string) *ExtractedData {
	scores := r.ConfidenceScores
	if scores == nil {
		scores = map[string]float64{}
	}
	items := r.LineItems
	if items == nil {
		items = []LineItem{}
	}
	return &ExtractedData{
		InvoiceID:        invoiceID,
		VendorName:       r.VendorName,
		InvoiceNumber:    r.InvoiceNumber,
		InvoiceDate:      r.InvoiceDate,
		DueDate:          r.DueDate,
		Subtotal:         r.Subtotal,
		Tax:              r.Tax,
		GrandTotal:       r.GrandTotal,
		PaymentTerms:     r.PaymentTerms,
		BankDetails:      r.BankDetails,
		ConfidenceScores: scores,
		LineItems:        items,
	}
}

// GrandTotalOrZero returns the grand total, treating a missing value as zero
func (d *ExtractedData) GrandTotalOrZero() decimal.Decimal {
	if d == nil || !d.GrandTotal.Valid {
		return decimal.Zero
	}
	return d.GrandTotal.Decimal
}

// Optional distinguishes a field that was not sent from one explicitly set to null.
type Optional[T any] struct {
	Set   bool
	Value *T
}

// UnmarshalJSON is only called when the key is present, including for a literal null.
func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	o.Set = true
	if string(data) == "null" {
		o.Value = nil
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	o.Value = &v
	return nil
}

// Some returns an Optional holding v
func Some[T any](v T) Optional[T] {
	return Optional[T]{Set: true, Value: &v}
}

// Null returns an Optional explicitly cleared to null
func Null[T any]() Optional[T] {
	return Optional[T]{Set: true}
}

// ExtractedDataPatch is a partial update of extracted fields.
// A nil LineItems leaves the items untouched; a non-nil one replaces them all.
type ExtractedDataPatch struct {
	VendorName    Optional[string]          `json:"vendor_name"`
	InvoiceNumber Optional[string]          `json:"invoice_number"`
	InvoiceDate   Optional[string]          `json:"invoice_date"`
	DueDate       Optional[string]          `json:"due_date"`
	Subtotal      Optional[decimal.Decimal] `json:"subtotal"`
	Tax           Optional[decimal.Decimal] `json:"tax"`
	GrandTotal    Optional[decimal.Decimal] `json:"grand_total"`
	PaymentTerms  Optional[string]          `json:"payment_terms"`
	BankDetails   Optional[string]          `json:"bank_details"`
	LineItems     *[]LineItem               `json:"line_items"`
}

// Apply copies every provided field of the patch onto d
func (p *ExtractedDataPatch) Apply(d *ExtractedData) {
	applyString(p.VendorName, &d.VendorName)
	applyString(p.InvoiceNumber, &d.InvoiceNumber)
	applyString(p.InvoiceDate, &d.InvoiceDate)
	applyString(p.DueDate, &d.DueDate)
	applyString(p.PaymentTerms, &d.PaymentTerms)
	applyString(p.BankDetails, &d.BankDetails)
	applyDecimal(p.Subtotal, &d.Subtotal)
	applyDecimal(p.Tax, &d.Tax)
	applyDecimal(p.GrandTotal, &d.GrandTotal)
	if p.LineItems != nil {
		d.LineItems = append([]LineItem{}, (*p.LineItems)...)
	}
}

func applyString(o Optional[string], dst **string) {
	if o.Set {
		*dst = o.Value
	}
}

func applyDecimal(o Optional[decimal.Decimal], dst *decimal.NullDecimal) {
	if !o.Set {
		return
	}
	if o.Value == nil {
		*dst = decimal.NullDecimal{}
		return
	}
	*dst = decimal.NewNullDecimal(*o.Value)
}

// Fields lists the JSON names of the fields the patch touches
func (p *ExtractedDataPatch) Fields() []string {
	var fields []string
	add := func(set bool, name string) {
		if set {
			fields = append(fields, name)
		}
	}
	add(p.VendorName.Set, "vendor_name")
	add(p.InvoiceNumber.Set, "invoice_number")
	add(p.InvoiceDate.Set, "invoice_date")
	add(p.DueDate.Set, "due_date")
	add(p.Subtotal.Set, "subtotal")
	add(p.Tax.Set, "tax")
	add(p.GrandTotal.Set, "grand_total")
	add(p.PaymentTerms.Set, "payment_terms")
	add(p.BankDetails.Set, "bank_details")
	add(p.LineItems != nil, "line_items")
	return fields
}
