package workflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/garyjia/invoice-approval/internal/domain/apperr"
	"github.com/garyjia/invoice-approval/internal/domain/entity"
	"github.com/garyjia/invoice-approval/internal/domain/event"
	domainwf "github.com/garyjia/invoice-approval/internal/domain/workflow"
)

const msgConcurrentChange = "Invoice was changed by another request, reload and try again"

func triggerFor(requested entity.InvoiceStatus) (domainwf.Trigger, error) {
	trigger, ok := domainwf.TriggerForStatus(requested)
	if !ok {
		return "", apperr.InvalidArgument(fmt.Sprintf("Invalid status: %s", requested))
	}
	return trigger, nil
}

func (e *engineImpl) ChangeStatus(ctx context.Context, invoiceID string, actor entity.Principal, requested entity.InvoiceStatus, comment string) (*entity.Invoice, error) {
	trigger, err := triggerFor(requested)
	if err != nil {
		return nil, err
	}
	comment = strings.TrimSpace(comment)
	if trigger == domainwf.TriggerReject && comment == "" {
		return nil, apperr.InvalidArgument("Comment is required when rejecting an invoice")
	}

	var (
		updated  *entity.Invoice
		decision *domainwf.Decision
		notified []*entity.Notification
	)

	err = e.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		inv, err := e.invoiceRepo.GetByID(txCtx, invoiceID)
		if err != nil {
			return fmt.Errorf("get invoice: %w", err)
		}
		if inv == nil {
			return apperr.NotFound("Invoice not found")
		}

		decision, err = domainwf.Decide(txCtx, domainwf.Request{
			Status:           inv.Status,
			ExtractionStatus: inv.ExtractionStatus,
			RequiresTwoLevel: inv.RequiresTwoLevel,
			Role:             actor.Role,
			Trigger:          trigger,
			Comment:          comment,
		})
		if err != nil {
			return err
		}

		change := entity.StatusChange{
			InvoiceID:        invoiceID,
			From:             decision.From,
			To:               decision.To,
			RequireExtracted: trigger != domainwf.TriggerReject,
		}
		if decision.Stage == domainwf.StageSeniorApproval {
			now := time.Now().UTC()
			approver := actor.UserID
			change.SeniorApprovedBy = &approver
			change.SeniorApprovedAt = &now
		}

		applied, err := e.invoiceRepo.TransitionStatus(txCtx, change)
		if err != nil {
			return fmt.Errorf("update status: %w", err)
		}
		if !applied {
			return apperr.Conflict(msgConcurrentChange)
		}

		if _, err := e.audit.Record(txCtx, invoiceID, actor.UserID, decision.AuditAction(), defaultComment(decision.Stage, comment)); err != nil {
			return err
		}

		notified, err = e.notifyDecision(txCtx, inv, decision)
		if err != nil {
			return err
		}

		updated, err = e.invoiceRepo.GetByID(txCtx, invoiceID)
		if err != nil {
			return fmt.Errorf("reload invoice: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("Invoice status changed",
		"invoice_id", invoiceID,
		"from", decision.From,
		"to", decision.To,
		"stage", decision.Stage,
		"user_id", actor.UserID,
	)
	e.publishStatusChange(ctx, invoiceID, actor.UserID, decision.From, decision.To, notified)
	return updated, nil
}

func (e *engineImpl) notifyDecision(ctx context.Context, inv *entity.Invoice, d *domainwf.Decision) ([]*entity.Notification, error) {
	n, err := e.notification.Notify(ctx, inv.SubmittedBy, inv.ID, submitterMessage(d.Stage, inv.OriginalFilename))
	if err != nil {
		return nil, err
	}
	notified := []*entity.Notification{n}

	if d.Stage == domainwf.StageSeniorApproval {
		broadcast, err := e.notification.NotifyRole(ctx, entity.RoleAccounts, inv.ID, finalApprovalRequestMessage(inv.OriginalFilename))
		if err != nil {
			return nil, err
		}
		notified = append(notified, broadcast...)
	}
	return notified, nil
}

func (e *engineImpl) publishStatusChange(ctx context.Context, invoiceID, userID string, from, to entity.InvoiceStatus, notified []*entity.Notification) {
	events := make([]*event.Event, 0, len(notified)+1)
	events = append(events, event.NewEvent(event.TypeStatusChanged, invoiceID, map[string]interface{}{
		event.KeyUserID:     userID,
		event.KeyFromStatus: string(from),
		event.KeyToStatus:   string(to),
	}))
	for _, n := range notified {
		events = append(events, event.NewEvent(event.TypeNotificationCreated, invoiceID, map[string]interface{}{
			event.KeyUserID:         n.UserID,
			event.KeyNotificationID: n.ID,
			event.KeyMessage:        n.Message,
		}))
	}
	e.publish(ctx, events...)
}

func (e *engineImpl) BulkChangeStatus(ctx context.Context, invoiceIDs []string, actor entity.Principal, requested entity.InvoiceStatus, comment string) (int, error) {
	if requested != entity.StatusApproved && requested != entity.StatusRejected {
		return 0, apperr.InvalidArgument("Bulk action must be APPROVED or REJECTED")
	}
	if err := domainwf.RequireApprover(actor.Role); err != nil {
		return 0, err
	}
	comment = strings.TrimSpace(comment)
	if requested == entity.StatusRejected && comment == "" {
		return 0, apperr.InvalidArgument("Comment is required when rejecting an invoice")
	}
	ids := uniqueIDs(invoiceIDs)
	if len(ids) == 0 {
		return 0, apperr.InvalidArgument("At least one invoice id is required")
	}

	approve := requested == entity.StatusApproved
	trigger, _ := triggerFor(requested)

	type change struct {
		invoiceID string
		from      entity.InvoiceStatus
		notified  *entity.Notification
	}
	var changes []change

	err := e.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		changes = changes[:0]
		for _, id := range ids {
			inv, err := e.invoiceRepo.GetByID(txCtx, id)
			if err != nil {
				return fmt.Errorf("get invoice %s: %w", id, err)
			}
			if inv == nil || inv.Status != entity.StatusPendingReview {
				continue
			}

			decision, err := domainwf.Decide(txCtx, domainwf.Request{
				Status:           inv.Status,
				ExtractionStatus: inv.ExtractionStatus,
				RequiresTwoLevel: inv.RequiresTwoLevel,
				Role:             actor.Role,
				Trigger:          trigger,
				Comment:          comment,
			})
			if err != nil {
				continue
			}

			applied, err := e.invoiceRepo.TransitionStatus(txCtx, entity.StatusChange{
				InvoiceID:        id,
				From:             decision.From,
				To:               decision.To,
				RequireExtracted: approve,
			})
			if err != nil {
				return fmt.Errorf("update status of %s: %w", id, err)
			}
			if !applied {
				continue
			}

			if _, err := e.audit.Record(txCtx, id, actor.UserID, decision.AuditAction(), comment); err != nil {
				return err
			}
			n, err := e.notification.Notify(txCtx, inv.SubmittedBy, id, bulkMessage(inv.OriginalFilename, approve))
			if err != nil {
				return err
			}
			changes = append(changes, change{invoiceID: id, from: decision.From, notified: n})
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	e.logger.Info("Bulk status change applied",
		"requested", requested,
		"selected", len(ids),
		"updated", len(changes),
		"user_id", actor.UserID,
	)
	for _, c := range changes {
		e.publishStatusChange(ctx, c.invoiceID, actor.UserID, c.from, requested, []*entity.Notification{c.notified})
	}
	return len(changes), nil
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func (e *engineImpl) EditExtractedData(ctx context.Context, invoiceID string, actor entity.Principal, patch entity.ExtractedDataPatch) (*entity.ExtractedData, error) {
	if err := domainwf.RequireApprover(actor.Role); err != nil {
		return nil, err
	}
	if patch.LineItems != nil {
		for i, item := range *patch.LineItems {
			if strings.TrimSpace(item.Description) == "" {
				return nil, apperr.InvalidArgument(fmt.Sprintf("Line item %d needs a description", i+1))
			}
		}
	}

	var result *entity.ExtractedData
	err := e.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		inv, err := e.invoiceRepo.GetByID(txCtx, invoiceID)
		if err != nil {
			return fmt.Errorf("get invoice: %w", err)
		}
		if inv == nil {
			return apperr.NotFound("Invoice not found")
		}

		data, err := e.dataRepo.GetByInvoiceID(txCtx, invoiceID)
		if err != nil {
			return fmt.Errorf("get extracted data: %w", err)
		}
		if data == nil {
			return apperr.NotFound("No extracted data found for this invoice")
		}

		patch.Apply(data)
		data.UpdatedAt = time.Now().UTC()
		if err := e.dataRepo.Update(txCtx, data); err != nil {
			return fmt.Errorf("update extracted data: %w", err)
		}
		if patch.LineItems != nil {
			assignLineItemIDs(data.LineItems)
			if err := e.dataRepo.ReplaceLineItems(txCtx, data.ID, data.LineItems); err != nil {
				return fmt.Errorf("replace line items: %w", err)
			}
		}

		comment := "Edited fields: " + strings.Join(patch.Fields(), ", ")
		if len(patch.Fields()) == 0 {
			comment = "No fields changed"
		}
		if _, err := e.audit.Record(txCtx, invoiceID, actor.UserID, entity.ActionEdited, comment); err != nil {
			return err
		}

		result, err = e.dataRepo.GetByInvoiceID(txCtx, invoiceID)
		if err != nil {
			return fmt.Errorf("reload extracted data: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("Extracted data edited", "invoice_id", invoiceID, "user_id", actor.UserID, "fields", patch.Fields())
	return result, nil
}
