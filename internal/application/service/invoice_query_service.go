package service

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/garyjia/invoice-approval/internal/application/port"
	"github.com/garyjia/invoice-approval/internal/domain/apperr"
	"github.com/garyjia/invoice-approval/internal/domain/entity"
	"github.com/garyjia/invoice-approval/internal/domain/workflow"
)

// InvoiceQueryService serves the read side: list, detail, export and file download
type InvoiceQueryService interface {
	List(ctx context.Context, p entity.Principal, filter entity.InvoiceFilter) (*entity.InvoicePage, error)
	Get(ctx context.Context, p entity.Principal, invoiceID string) (*entity.InvoiceDetail, error)

	// Export writes every invoice matching the filter, unpaginated, in the requested format.
	// Accounts staff only.
	Export(ctx context.Context, p entity.Principal, filter entity.InvoiceFilter, format string, w io.Writer) error
	ExporterFor(format string) (port.Exporter, error)

	// OpenFile returns the stored PDF of an invoice
	OpenFile(ctx context.Context, p entity.Principal, invoiceID string) ([]byte, *entity.Invoice, error)
}

type invoiceQueryServiceImpl struct {
	invoiceRepo port.InvoiceRepository
	dataRepo    port.ExtractedDataRepository
	userRepo    port.UserRepository
	storage     port.FileStorage
	exporters   map[string]port.Exporter
	logger      Logger
}

func NewInvoiceQueryService(
	invoiceRepo port.InvoiceRepository,
	dataRepo port.ExtractedDataRepository,
	userRepo port.UserRepository,
	storage port.FileStorage,
	exporters map[string]port.Exporter,
	logger Logger,
) InvoiceQueryService {
	return &invoiceQueryServiceImpl{
		invoiceRepo: invoiceRepo,
		dataRepo:    dataRepo,
		userRepo:    userRepo,
		storage:     storage,
		exporters:   exporters,
		logger:      orNop(logger),
	}
}

func scopeFilter(p entity.Principal, filter *entity.InvoiceFilter) {
	if workflow.SeesOnlyOwn(p) {
		filter.SubmittedBy = p.UserID
	}
}

func (s *invoiceQueryServiceImpl) List(ctx context.Context, p entity.Principal, filter entity.InvoiceFilter) (*entity.InvoicePage, error) {
	scopeFilter(p, &filter)
	filter.Normalize()

	rows, total, err := s.invoiceRepo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}
	return &entity.InvoicePage{
		Items:      rows,
		Pagination: entity.NewPagination(filter.Page, filter.Limit, total),
	}, nil
}

func (s *invoiceQueryServiceImpl) loadVisible(ctx context.Context, p entity.Principal, invoiceID string) (*entity.Invoice, error) {
	inv, err := s.invoiceRepo.GetByID(ctx, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("get invoice: %w", err)
	}
	if inv == nil {
		return nil, apperr.NotFound("Invoice not found")
	}
	if err := workflow.RequireInvoiceAccess(p, inv); err != nil {
		return nil, err
	}
	return inv, nil
}

func (s *invoiceQueryServiceImpl) Get(ctx context.Context, p entity.Principal, invoiceID string) (*entity.InvoiceDetail, error) {
	inv, err := s.loadVisible(ctx, p, invoiceID)
	if err != nil {
		return nil, err
	}

	data, err := s.dataRepo.GetByInvoiceID(ctx, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("get extracted data: %w", err)
	}
	submitter, err := s.userRepo.GetByID(ctx, inv.SubmittedBy)
	if err != nil {
		return nil, fmt.Errorf("get submitter: %w", err)
	}

	return &entity.InvoiceDetail{Invoice: inv, ExtractedData: data, Submitter: submitter}, nil
}

func (s *invoiceQueryServiceImpl) ExporterFor(format string) (port.Exporter, error) {
	if format == "" {
		format = "csv"
	}
	exp, ok := s.exporters[strings.ToLower(format)]
	if !ok {
		return nil, apperr.InvalidArgument(fmt.Sprintf("Unsupported export format: %s", format))
	}
	return exp, nil
}

func (s *invoiceQueryServiceImpl) Export(ctx context.Context, p entity.Principal, filter entity.InvoiceFilter, format string, w io.Writer) error {
	if err := workflow.RequireApprover(p.Role); err != nil {
		return err
	}
	exp, err := s.ExporterFor(format)
	if err != nil {
		return err
	}

	scopeFilter(p, &filter)
	filter.Normalize()
	filter.Page, filter.Limit = 1, 0

	rows, _, err := s.invoiceRepo.List(ctx, filter)
	if err != nil {
		return fmt.Errorf("list invoices for export: %w", err)
	}

	if err := exp.Write(w, rows); err != nil {
		return fmt.Errorf("write %s export: %w", format, err)
	}
	s.logger.Info("Invoices exported", "user_id", p.UserID, "format", format, "rows", len(rows))
	return nil
}

func (s *invoiceQueryServiceImpl) OpenFile(ctx context.Context, p entity.Principal, invoiceID string) ([]byte, *entity.Invoice, error) {
	inv, err := s.loadVisible(ctx, p, invoiceID)
	if err != nil {
		return nil, nil, err
	}
	if !s.storage.Exists(ctx, inv.FileRef) {
		return nil, nil, apperr.NotFound("File not found")
	}
	data, err := s.storage.Read(ctx, inv.FileRef)
	if err != nil {
		return nil, nil, fmt.Errorf("read invoice file: %w", err)
	}
	return data, inv, nil
}
