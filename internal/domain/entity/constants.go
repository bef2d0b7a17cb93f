package entity

// InvoiceStatus is the workflow status of an invoice
type InvoiceStatus string

const (
	StatusPendingReview         InvoiceStatus = "PENDING_REVIEW"
	StatusPendingSeniorApproval InvoiceStatus = "PENDING_SENIOR_APPROVAL"
	StatusPendingFinalApproval  InvoiceStatus = "PENDING_FINAL_APPROVAL"
	StatusApproved              InvoiceStatus = "APPROVED"
	StatusRejected              InvoiceStatus = "REJECTED"
	StatusPaid                  InvoiceStatus = "PAID"
)

// PendingStatuses are the statuses that still wait for an approver
var PendingStatuses = []InvoiceStatus{
	StatusPendingReview,
	StatusPendingSeniorApproval,
	StatusPendingFinalApproval,
}

// IsValid reports whether s is a known workflow status
func (s InvoiceStatus) IsValid() bool {
	switch s {
	case StatusPendingReview, StatusPendingSeniorApproval, StatusPendingFinalApproval,
		StatusApproved, StatusRejected, StatusPaid:
		return true
	}
	return false
}

// ExtractionStatus tracks the AI extraction of an invoice file
type ExtractionStatus string

const (
	ExtractionPending    ExtractionStatus = "PENDING"
	ExtractionProcessing ExtractionStatus = "PROCESSING"
	ExtractionCompleted  ExtractionStatus = "COMPLETED"
	ExtractionFailed     ExtractionStatus = "FAILED"
)

// Category of a submitted invoice
type Category string

const (
	CategoryVendorPayment Category = "VENDOR_PAYMENT"
	CategoryReimbursement Category = "REIMBURSEMENT"
)

// IsValid reports whether c is one of the two accepted categories
func (c Category) IsValid() bool {
	return c == CategoryVendorPayment || c == CategoryReimbursement
}

// Role of a user
type Role string

const (
	RoleEmployee       Role = "EMPLOYEE"
	RoleAccounts       Role = "ACCOUNTS"
	RoleSeniorAccounts Role = "SENIOR_ACCOUNTS"
)

// IsValid reports whether r is a known role
func (r Role) IsValid() bool {
	return r == RoleEmployee || r == RoleAccounts || r == RoleSeniorAccounts
}

// ActionType is the kind of an audit entry
type ActionType string

const (
	ActionSubmitted  ActionType = "SUBMITTED"
	ActionViewed     ActionType = "VIEWED"
	ActionEdited     ActionType = "EDITED"
	ActionApproved   ActionType = "APPROVED"
	ActionRejected   ActionType = "REJECTED"
	ActionMarkedPaid ActionType = "MARKED_PAID"
)
