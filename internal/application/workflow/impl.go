package workflow

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/garyjia/invoice-approval/internal/application/dispatcher"
	"github.com/garyjia/invoice-approval/internal/application/port"
	"github.com/garyjia/invoice-approval/internal/application/service"
	"github.com/garyjia/invoice-approval/internal/domain/event"
)

// DefaultTwoLevelThreshold is the grand total from which senior approval is required
var DefaultTwoLevelThreshold = decimal.NewFromInt(100000)

// Repositories groups the persistence ports the engine writes through
type Repositories struct {
	Invoices      port.InvoiceRepository
	ExtractedData port.ExtractedDataRepository
}

type engineImpl struct {
	invoiceRepo  port.InvoiceRepository
	dataRepo     port.ExtractedDataRepository
	txManager    port.TransactionManager
	storage      port.FileStorage
	gateway      port.ExtractionGateway
	audit        service.AuditService
	notification service.NotificationService
	detector     service.DuplicateDetector

	scheduler         port.ExtractionScheduler
	inspector         port.PDFInspector
	dispatcher        dispatcher.Dispatcher
	threshold         decimal.Decimal
	extractionTimeout time.Duration
	logger            service.Logger
}

// EngineOption configures the engine
type EngineOption func(*engineImpl)

// WithScheduler sets where new submissions are queued for extraction
func WithScheduler(s port.ExtractionScheduler) EngineOption {
	return func(e *engineImpl) { e.scheduler = s }
}

// WithDispatcher publishes committed changes as domain events
func WithDispatcher(d dispatcher.Dispatcher) EngineOption {
	return func(e *engineImpl) { e.dispatcher = d }
}

// WithPDFInspector rejects uploads that are not readable PDFs
func WithPDFInspector(i port.PDFInspector) EngineOption {
	return func(e *engineImpl) { e.inspector = i }
}

// WithTwoLevelThreshold overrides DefaultTwoLevelThreshold
func WithTwoLevelThreshold(t decimal.Decimal) EngineOption {
	return func(e *engineImpl) { e.threshold = t }
}

// WithExtractionTimeout bounds a single gateway call. Zero means no bound.
func WithExtractionTimeout(d time.Duration) EngineOption {
	return func(e *engineImpl) { e.extractionTimeout = d }
}

// WithLogger sets the engine logger
func WithLogger(l service.Logger) EngineOption {
	return func(e *engineImpl) { e.logger = l }
}

func NewEngine(
	repos Repositories,
	txManager port.TransactionManager,
	storage port.FileStorage,
	gateway port.ExtractionGateway,
	audit service.AuditService,
	notification service.NotificationService,
	detector service.DuplicateDetector,
	opts ...EngineOption,
) Engine {
	e := &engineImpl{
		invoiceRepo:  repos.Invoices,
		dataRepo:     repos.ExtractedData,
		txManager:    txManager,
		storage:      storage,
		gateway:      gateway,
		audit:        audit,
		notification: notification,
		detector:     detector,
		threshold:    DefaultTwoLevelThreshold,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = discardLogger{}
	}
	return e
}

type discardLogger struct{}

func (discardLogger) Info(string, ...interface{})  {}
func (discardLogger) Error(string, ...interface{}) {}

// publish hands committed events to the dispatcher. Handlers outlive the request.
func (e *engineImpl) publish(ctx context.Context, events ...*event.Event) {
	if e.dispatcher == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	for _, evt := range events {
		e.dispatcher.DispatchAsync(ctx, evt)
	}
}
