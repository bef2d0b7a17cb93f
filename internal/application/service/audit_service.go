package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/garyjia/invoice-approval/internal/application/port"
	"github.com/garyjia/invoice-approval/internal/domain/apperr"
	"github.com/garyjia/invoice-approval/internal/domain/entity"
	"github.com/garyjia/invoice-approval/internal/domain/workflow"
)

// AuditService writes and reads the invoice audit trail
type AuditService interface {
	// Record appends one action. Call it with the transaction context of the change it documents.
	Record(ctx context.Context, invoiceID, userID string, action entity.ActionType, comment string) (*entity.InvoiceAction, error)

	// GetAuditLog returns the actions of an invoice, oldest first
	GetAuditLog(ctx context.Context, invoiceID string, requester entity.Principal) ([]*entity.InvoiceAction, error)
}

type auditServiceImpl struct {
	invoiceRepo port.InvoiceRepository
	actionRepo  port.ActionRepository
	logger      Logger
}

func NewAuditService(
	invoiceRepo port.InvoiceRepository,
	actionRepo port.ActionRepository,
	logger Logger,
) AuditService {
	return &auditServiceImpl{
		invoiceRepo: invoiceRepo,
		actionRepo:  actionRepo,
		logger:      orNop(logger),
	}
}

func (s *auditServiceImpl) Record(ctx context.Context, invoiceID, userID string, action entity.ActionType, comment string) (*entity.InvoiceAction, error) {
	a := &entity.InvoiceAction{
		ID:        uuid.NewString(),
		InvoiceID: invoiceID,
		UserID:    userID,
		Action:    action,
		CreatedAt: time.Now().UTC(),
	}
	if comment != "" {
		a.Comment = &comment
	}

	if err := s.actionRepo.Create(ctx, a); err != nil {
		return nil, fmt.Errorf("record %s action: %w", action, err)
	}
	return a, nil
}

func (s *auditServiceImpl) GetAuditLog(ctx context.Context, invoiceID string, requester entity.Principal) ([]*entity.InvoiceAction, error) {
	inv, err := s.invoiceRepo.GetByID(ctx, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("get invoice: %w", err)
	}
	if inv == nil {
		return nil, apperr.NotFound("Invoice not found")
	}
	if err := workflow.RequireInvoiceAccess(requester, inv); err != nil {
		return nil, err
	}

	actions, err := s.actionRepo.ListByInvoiceID(ctx, invoiceID)
	if err != nil {
		s.logger.Error("Failed to list actions", "invoice_id", invoiceID, "error", err)
		return nil, fmt.Errorf("list actions: %w", err)
	}
	return actions, nil
}
