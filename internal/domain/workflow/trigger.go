package workflow

import "github.com/garyjia/invoice-approval/internal/domain/entity"

// Trigger is an approver action that may move an invoice to another state
type Trigger string

const (
	TriggerApprove  Trigger = "APPROVE"
	TriggerReject   Trigger = "REJECT"
	TriggerMarkPaid Trigger = "MARK_PAID"
)

func (t Trigger) String() string {
	return string(t)
}

// TriggerForStatus maps a requested target status onto the action that reaches it.
// Approval of a two-level invoice is requested as APPROVED and routed by the machine.
func TriggerForStatus(requested entity.InvoiceStatus) (Trigger, bool) {
	switch requested {
	case entity.StatusApproved:
		return TriggerApprove, true
	case entity.StatusRejected:
		return TriggerReject, true
	case entity.StatusPaid:
		return TriggerMarkPaid, true
	}
	return "", false
}
