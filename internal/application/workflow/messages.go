package workflow

import (
	"fmt"

	domainwf "github.com/garyjia/invoice-approval/internal/domain/workflow"
)

const (
	commentSeniorApproval = "First-level approval (senior)"
	commentFinalApproval  = "Final approval"
)

// submitterMessage is the inbox text sent to the submitter after a decision
func submitterMessage(stage domainwf.Stage, filename string) string {
	switch stage {
	case domainwf.StageReject:
		return fmt.Sprintf("Your invoice %s has been rejected.", filename)
	case domainwf.StageMarkPaid:
		return fmt.Sprintf("Your invoice %s has been marked as paid.", filename)
	case domainwf.StageSeniorApproval:
		return fmt.Sprintf("Your invoice %s has received senior approval. Awaiting final approval.", filename)
	case domainwf.StageFinalApproval:
		return fmt.Sprintf("Your invoice %s has been fully approved.", filename)
	default:
		return fmt.Sprintf("Your invoice %s has been approved.", filename)
	}
}

func finalApprovalRequestMessage(filename string) string {
	return fmt.Sprintf("Invoice %s requires final approval.", filename)
}

func bulkMessage(filename string, approved bool) string {
	verb := "rejected"
	if approved {
		verb = "approved"
	}
	return fmt.Sprintf("Your invoice %s has been %s.", filename, verb)
}

// defaultComment fills the audit comment of approval steps that were given none
func defaultComment(stage domainwf.Stage, comment string) string {
	if comment != "" {
		return comment
	}
	switch stage {
	case domainwf.StageSeniorApproval:
		return commentSeniorApproval
	case domainwf.StageFinalApproval:
		return commentFinalApproval
	}
	return ""
}
