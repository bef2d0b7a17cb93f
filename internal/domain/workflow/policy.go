package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/garyjia/invoice-approval/internal/domain/apperr"
	"github.com/garyjia/invoice-approval/internal/domain/entity"
)

// Stage identifies which edge of the approval table a decision took
type Stage string

const (
	StageSingleApproval Stage = "SINGLE_APPROVAL"
	StageSeniorApproval Stage = "SENIOR_APPROVAL"
	StageFinalApproval  Stage = "FINAL_APPROVAL"
	StageReject         Stage = "REJECT"
	StageMarkPaid       Stage = "MARK_PAID"
)

// Request is everything the policy needs to judge a status change
type Request struct {
	Status           entity.InvoiceStatus
	ExtractionStatus entity.ExtractionStatus
	RequiresTwoLevel bool
	Role             entity.Role
	Trigger          Trigger
	Comment          string
}

// Decision is an allowed transition
type Decision struct {
	From  entity.InvoiceStatus
	To    entity.InvoiceStatus
	Stage Stage
}

// AuditAction returns the audit entry type written for the decision
func (d *Decision) AuditAction() entity.ActionType {
	switch d.Stage {
	case StageReject:
		return entity.ActionRejected
	case StageMarkPaid:
		return entity.ActionMarkedPaid
	default:
		return entity.ActionApproved
	}
}

const (
	msgSeniorOnly       = "Only senior accountants can give first-level approval for high-value invoices"
	msgAccountsOnly     = "Only accountants can give final approval for high-value invoices"
	msgInsufficientRole = "Insufficient permissions"
)

type actorKey struct{}

type actor struct {
	role             entity.Role
	requiresTwoLevel bool
}

func withActor(ctx context.Context, a actor) context.Context {
	return context.WithValue(ctx, actorKey{}, a)
}

func actorFrom(ctx context.Context) actor {
	a, _ := ctx.Value(actorKey{}).(actor)
	return a
}

func approverGuard(ctx context.Context) error {
	return RequireApprover(actorFrom(ctx).role)
}

func singleLevelGuard(ctx context.Context) error {
	a := actorFrom(ctx)
	if a.requiresTwoLevel {
		return apperr.Forbidden(msgSeniorOnly)
	}
	return RequireApprover(a.role)
}

func seniorGuard(ctx context.Context) error {
	if actorFrom(ctx).role != entity.RoleSeniorAccounts {
		return apperr.Forbidden(msgSeniorOnly)
	}
	return nil
}

func finalGuard(ctx context.Context) error {
	if actorFrom(ctx).role != entity.RoleAccounts {
		return apperr.Forbidden(msgAccountsOnly)
	}
	return nil
}

// NewInvoiceStateMachine returns the approval lifecycle positioned at initial
func NewInvoiceStateMachine(initial State) StateMachine {
	b := NewBuilder()

	b.Configure(StatePendingReview).
		PermitIf(TriggerApprove, StateApproved, singleLevelGuard).
		PermitIf(TriggerReject, StateRejected, approverGuard)

	b.Configure(StatePendingSeniorApproval).
		PermitIf(TriggerApprove, StatePendingFinalApproval, seniorGuard).
		PermitIf(TriggerReject, StateRejected, approverGuard)

	b.Configure(StatePendingFinalApproval).
		PermitIf(TriggerApprove, StateApproved, finalGuard).
		PermitIf(TriggerReject, StateRejected, approverGuard)

	b.Configure(StateApproved).
		PermitIf(TriggerMarkPaid, StatePaid, approverGuard).
		PermitIf(TriggerReject, StateRejected, approverGuard)

	// REJECTED and PAID are terminal

	return b.Build(initial)
}

// Decide applies the approval policy. Errors are classified: InvalidArgument for bad input,
// Forbidden for a role or stage mismatch, Conflict when the current state cannot take the action.
func Decide(ctx context.Context, req Request) (*Decision, error) {
	switch req.Trigger {
	case TriggerApprove, TriggerReject, TriggerMarkPaid:
	default:
		return nil, apperr.InvalidArgument(fmt.Sprintf("Invalid action: %s", req.Trigger))
	}

	if req.Trigger == TriggerReject && strings.TrimSpace(req.Comment) == "" {
		return nil, apperr.InvalidArgument("Comment is required when rejecting an invoice")
	}

	if err := RequireApprover(req.Role); err != nil {
		return nil, err
	}

	from := State(req.Status)
	if !from.IsValid() {
		return nil, fmt.Errorf("invoice has unknown status %q", req.Status)
	}

	if req.Trigger != TriggerReject && req.ExtractionStatus != entity.ExtractionCompleted {
		return nil, apperr.Conflict("Invoice extraction has not completed")
	}

	m := NewInvoiceStateMachine(from)
	ctx = withActor(ctx, actor{role: req.Role, requiresTwoLevel: req.RequiresTwoLevel})
	if err := m.Fire(ctx, req.Trigger); err != nil {
		return nil, classify(err, from, req.Trigger)
	}

	return &Decision{
		From:  req.Status,
		To:    m.State().Status(),
		Stage: stageOf(from, m.State(), req.Trigger),
	}, nil
}

func classify(err error, from State, trigger Trigger) error {
	if errors.Is(err, ErrGuardFailed) {
		var ae *apperr.Error
		if errors.As(err, &ae) {
			return ae
		}
		return apperr.Forbidden(msgInsufficientRole)
	}

	switch trigger {
	case TriggerMarkPaid:
		return apperr.Conflict("Only approved invoices can be marked as paid")
	case TriggerReject:
		return apperr.Conflict(fmt.Sprintf("Invoice is already %s", strings.ToLower(from.String())))
	default:
		return apperr.Conflict("Invoice is not pending approval")
	}
}

func stageOf(from, to State, trigger Trigger) Stage {
	switch {
	case trigger == TriggerReject:
		return StageReject
	case trigger == TriggerMarkPaid:
		return StageMarkPaid
	case from == StatePendingSeniorApproval:
		return StageSeniorApproval
	case from == StatePendingFinalApproval && to == StateApproved:
		return StageFinalApproval
	default:
		return StageSingleApproval
	}
}

// RequireApprover fails with Forbidden unless the role may act on invoices
func RequireApprover(role entity.Role) error {
	if role != entity.RoleAccounts && role != entity.RoleSeniorAccounts {
		return apperr.Forbidden(msgInsufficientRole)
	}
	return nil
}

// RequireInvoiceAccess lets approvers read any invoice and employees only their own
func RequireInvoiceAccess(p entity.Principal, inv *entity.Invoice) error {
	if p.Role == entity.RoleEmployee && inv.SubmittedBy != p.UserID {
		return apperr.Forbidden("You can only view your own invoices")
	}
	return nil
}

// SeesOnlyOwn reports whether list queries must be restricted to the caller's invoices
func SeesOnlyOwn(p entity.Principal) bool {
	return p.Role == entity.RoleEmployee
}

// InitialRoute decides the status of a freshly extracted invoice. Totals at or above
// the threshold need senior and then final approval.
func InitialRoute(grandTotal, threshold decimal.Decimal) (entity.InvoiceStatus, bool) {
	if grandTotal.GreaterThanOrEqual(threshold) {
		return entity.StatusPendingSeniorApproval, true
	}
	return entity.StatusPendingReview, false
}
