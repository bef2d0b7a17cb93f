package entity

import (
	"time"
)

// Invoice is a submitted PDF going through extraction and approval
type Invoice struct {
	ID               string           `json:"id"`
	SubmittedBy      string           `json:"submitted_by"`
	Category         Category         `json:"category"`
	Status           InvoiceStatus    `json:"status"`
	ExtractionStatus ExtractionStatus `json:"extraction_status"`
	RequiresTwoLevel bool             `json:"requires_two_level"`
	IsDuplicate      bool             `json:"is_duplicate"`
	DuplicateOf      *string          `json:"duplicate_of,omitempty"`
	SeniorApprovedBy *string          `json:"senior_approved_by,omitempty"`
	SeniorApprovedAt *time.Time       `json:"senior_approved_at,omitempty"`
	Notes            *string          `json:"notes,omitempty"`
	FileRef          string           `json:"-"`
	OriginalFilename string           `json:"original_filename"`
	FileSize         int64            `json:"file_size"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

// InvoiceDetail is an invoice together with its extracted data and submitter
type InvoiceDetail struct {
	*Invoice
	ExtractedData *ExtractedData `json:"extracted_data"`
	Submitter     *User          `json:"submitter,omitempty"`
}

// StatusChange describes a conditional status update of a single invoice.
// The update only applies while the invoice is still in From.
type StatusChange struct {
	InvoiceID        string
	From             InvoiceStatus
	To               InvoiceStatus
	SeniorApprovedBy *string
	SeniorApprovedAt *time.Time
	// RequireExtracted additionally requires extraction_status = COMPLETED.
	RequireExtracted bool
}
