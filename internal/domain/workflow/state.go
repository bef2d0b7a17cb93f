package workflow

import "github.com/garyjia/invoice-approval/internal/domain/entity"

// State is a node of the invoice approval lifecycle
type State string

const (
	StatePendingReview         = State(entity.StatusPendingReview)
	StatePendingSeniorApproval = State(entity.StatusPendingSeniorApproval)
	StatePendingFinalApproval  = State(entity.StatusPendingFinalApproval)
	StateApproved              = State(entity.StatusApproved)
	StateRejected              = State(entity.StatusRejected)
	StatePaid                  = State(entity.StatusPaid)
)

// IsTerminal returns true for states with no outgoing transitions
func (s State) IsTerminal() bool {
	return s == StateRejected || s == StatePaid
}

func (s State) String() string {
	return string(s)
}

// IsValid returns true if the state is one of the invoice statuses
func (s State) IsValid() bool {
	return entity.InvoiceStatus(s).IsValid()
}

// Status converts the state back into the stored invoice status
func (s State) Status() entity.InvoiceStatus {
	return entity.InvoiceStatus(s)
}
