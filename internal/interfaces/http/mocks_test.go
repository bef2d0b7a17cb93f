package http

import (
	"context"
	"io"

	"github.com/garyjia/invoice-approval/internal/application/port"
	"github.com/garyjia/invoice-approval/internal/application/workflow"
	"github.com/garyjia/invoice-approval/internal/domain/apperr"
	"github.com/garyjia/invoice-approval/internal/domain/entity"
)

type mockEngine struct {
	submitFn    func(ctx context.Context, req workflow.SubmitRequest) (*entity.Invoice, error)
	reprocessFn func(ctx context.Context, invoiceID string) (*workflow.ExtractionOutcome, error)
	statusFn    func(ctx context.Context, invoiceID string, actor entity.Principal, requested entity.InvoiceStatus, comment string) (*entity.Invoice, error)
	bulkFn      func(ctx context.Context, ids []string, actor entity.Principal, requested entity.InvoiceStatus, comment string) (int, error)
	editFn      func(ctx context.Context, invoiceID string, actor entity.Principal, patch entity.ExtractedDataPatch) (*entity.ExtractedData, error)
}

func (m *mockEngine) SubmitInvoice(ctx context.Context, req workflow.SubmitRequest) (*entity.Invoice, error) {
	return m.submitFn(ctx, req)
}

func (m *mockEngine) RunExtraction(ctx context.Context, invoiceID string) *workflow.ExtractionOutcome {
	return &workflow.ExtractionOutcome{InvoiceID: invoiceID, Skipped: true}
}

func (m *mockEngine) ReprocessExtraction(ctx context.Context, invoiceID string) (*workflow.ExtractionOutcome, error) {
	return m.reprocessFn(ctx, invoiceID)
}

func (m *mockEngine) ChangeStatus(ctx context.Context, invoiceID string, actor entity.Principal, requested entity.InvoiceStatus, comment string) (*entity.Invoice, error) {
	return m.statusFn(ctx, invoiceID, actor, requested, comment)
}

func (m *mockEngine) BulkChangeStatus(ctx context.Context, ids []string, actor entity.Principal, requested entity.InvoiceStatus, comment string) (int, error) {
	return m.bulkFn(ctx, ids, actor, requested, comment)
}

func (m *mockEngine) EditExtractedData(ctx context.Context, invoiceID string, actor entity.Principal, patch entity.ExtractedDataPatch) (*entity.ExtractedData, error) {
	return m.editFn(ctx, invoiceID, actor, patch)
}

type mockQueryService struct {
	listFn     func(ctx context.Context, p entity.Principal, filter entity.InvoiceFilter) (*entity.InvoicePage, error)
	getFn      func(ctx context.Context, p entity.Principal, id string) (*entity.InvoiceDetail, error)
	exportFn   func(ctx context.Context, p entity.Principal, filter entity.InvoiceFilter, format string, w io.Writer) error
	exporterFn func(format string) (port.Exporter, error)
	openFn     func(ctx context.Context, p entity.Principal, id string) ([]byte, *entity.Invoice, error)
}

func (m *mockQueryService) List(ctx context.Context, p entity.Principal, filter entity.InvoiceFilter) (*entity.InvoicePage, error) {
	return m.listFn(ctx, p, filter)
}

func (m *mockQueryService) Get(ctx context.Context, p entity.Principal, id string) (*entity.InvoiceDetail, error) {
	return m.getFn(ctx, p, id)
}

func (m *mockQueryService) Export(ctx context.Context, p entity.Principal, filter entity.InvoiceFilter, format string, w io.Writer) error {
	return m.exportFn(ctx, p, filter, format, w)
}

func (m *mockQueryService) ExporterFor(format string) (port.Exporter, error) {
	return m.exporterFn(format)
}

func (m *mockQueryService) OpenFile(ctx context.Context, p entity.Principal, id string) ([]byte, *entity.Invoice, error) {
	return m.openFn(ctx, p, id)
}

type mockAuditService struct {
	logFn func(ctx context.Context, invoiceID string, requester entity.Principal) ([]*entity.InvoiceAction, error)
}

func (m *mockAuditService) Record(ctx context.Context, invoiceID, userID string, action entity.ActionType, comment string) (*entity.InvoiceAction, error) {
	return nil, nil
}

func (m *mockAuditService) GetAuditLog(ctx context.Context, invoiceID string, requester entity.Principal) ([]*entity.InvoiceAction, error) {
	return m.logFn(ctx, invoiceID, requester)
}

type mockNotificationService struct {
	listFn        func(ctx context.Context, userID string, page, limit int) (*entity.NotificationPage, error)
	markReadFn    func(ctx context.Context, notificationID, userID string) (*entity.Notification, error)
	markAllReadFn func(ctx context.Context, userID string) (int64, error)
}

func (m *mockNotificationService) Notify(ctx context.Context, userID, invoiceID, message string) (*entity.Notification, error) {
	return nil, nil
}

func (m *mockNotificationService) NotifyRole(ctx context.Context, role entity.Role, invoiceID, message string) ([]*entity.Notification, error) {
	return nil, nil
}

func (m *mockNotificationService) List(ctx context.Context, userID string, page, limit int) (*entity.NotificationPage, error) {
	return m.listFn(ctx, userID, page, limit)
}

func (m *mockNotificationService) MarkRead(ctx context.Context, notificationID, userID string) (*entity.Notification, error) {
	return m.markReadFn(ctx, notificationID, userID)
}

func (m *mockNotificationService) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	return m.markAllReadFn(ctx, userID)
}

type mockAnalyticsService struct {
	statsFn func(ctx context.Context, p entity.Principal, filter entity.AnalyticsFilter) (*entity.AnalyticsStats, error)
}

func (m *mockAnalyticsService) Stats(ctx context.Context, p entity.Principal, filter entity.AnalyticsFilter) (*entity.AnalyticsStats, error) {
	return m.statsFn(ctx, p, filter)
}

// mockUserService authenticates the ids in users
type mockUserService struct {
	users map[string]*entity.User
}

func (m *mockUserService) Authenticate(ctx context.Context, userID string) (*entity.User, error) {
	if u, ok := m.users[userID]; ok {
		return u, nil
	}
	return nil, apperr.NotFound("User not found")
}

func (m *mockUserService) Create(ctx context.Context, username, email string, role entity.Role, larkOpenID string) (*entity.User, error) {
	return nil, nil
}
