package event

// Type identifies the type of domain event
type Type string

const (
	TypeInvoiceSubmitted    Type = "invoice.submitted"
	TypeStatusChanged       Type = "invoice.status_changed"
	TypeExtractionCompleted Type = "extraction.completed"
	TypeExtractionFailed    Type = "extraction.failed"
	TypeNotificationCreated Type = "notification.created"
)

func (t Type) String() string {
	return string(t)
}

// IsValid checks if the event type is one of the defined constants
func (t Type) IsValid() bool {
	switch t {
	case TypeInvoiceSubmitted,
		TypeStatusChanged,
		TypeExtractionCompleted,
		TypeExtractionFailed,
		TypeNotificationCreated:
		return true
	default:
		return false
	}
}
