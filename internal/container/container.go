package container

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/garyjia/invoice-approval/internal/application/dispatcher"
	"github.com/garyjia/invoice-approval/internal/application/port"
	"github.com/garyjia/invoice-approval/internal/application/service"
	"github.com/garyjia/invoice-approval/internal/application/workflow"
	"github.com/garyjia/invoice-approval/internal/config"
	"github.com/garyjia/invoice-approval/internal/infrastructure/pdf"
	"github.com/garyjia/invoice-approval/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/invoice-approval/internal/infrastructure/worker"
	"github.com/garyjia/invoice-approval/pkg/database"
)

// Container manages all application dependencies and lifecycle.
// Components start in dependency order and are torn down in reverse.
type Container struct {
	config *config.Config
	logger *zap.Logger

	startWorkers bool

	db           *database.DB
	txManager    *sqlite.TxManager
	repositories *RepositoryBundle

	renderer  *pdf.Renderer
	gateway   port.ExtractionGateway
	messenger port.MessageSender

	fileStorage port.FileStorage

	dispatcher dispatcher.Dispatcher
	workflow   workflow.Engine
	services   *ServiceBundle

	queue   *worker.ExtractionQueue
	workers *worker.WorkerManager

	mu     sync.RWMutex
	ctx    context.Context
	cancel context.CancelFunc
	ready  atomic.Bool
	closed atomic.Bool
}

// RepositoryBundle groups all repositories for convenient access.
type RepositoryBundle struct {
	Invoice       port.InvoiceRepository
	ExtractedData port.ExtractedDataRepository
	Action        port.ActionRepository
	Notification  port.NotificationRepository
	User          port.UserRepository
	Analytics     port.AnalyticsRepository
}

// ServiceBundle groups all application services.
type ServiceBundle struct {
	Audit        service.AuditService
	Notification service.NotificationService
	Duplicates   service.DuplicateDetector
	Query        service.InvoiceQueryService
	Analytics    service.AnalyticsService
	User         service.UserService
}

// HealthStatus represents the health of all components.
type HealthStatus struct {
	Overall    bool                       `json:"overall"`
	Components map[string]ComponentHealth `json:"components"`
}

// ComponentHealth represents health of a single component.
type ComponentHealth struct {
	Healthy bool   `json:"healthy"`
	Message string `json:"message,omitempty"`
}

type stage struct {
	name string
	run  func() error
}

// Option configures the container
type Option func(*Container)

// WithoutWorkers skips the extraction worker and startup recovery. Command line
// tools use it to run extractions synchronously.
func WithoutWorkers() Option {
	return func(c *Container) { c.startWorkers = false }
}

// WithGateway replaces the configured extraction provider
func WithGateway(g port.ExtractionGateway) Option {
	return func(c *Container) { c.gateway = g }
}

// NewContainer creates a new container from configuration.
// It does not initialize components - call Start() to initialize.
func NewContainer(cfg *config.Config, logger *zap.Logger, opts ...Option) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	c := &Container{
		config:       cfg,
		logger:       logger,
		startWorkers: true,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Start builds every component in dependency order and, unless WithoutWorkers was
// given, starts the extraction workers and the startup recovery pass.
func (c *Container) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container has been closed")
	}
	if c.ready.Load() {
		return fmt.Errorf("container already started")
	}

	c.ctx, c.cancel = context.WithCancel(ctx)

	stages := []stage{
		{"database", c.initDatabase},
		{"external clients", c.initExternalClients},
		{"storage", c.initStorage},
		{"services", c.initServices},
		{"workflow", c.initDispatcherAndWorkflow},
	}
	if c.startWorkers {
		stages = append(stages, stage{"workers", c.initWorkers})
	}

	for _, st := range stages {
		if err := st.run(); err != nil {
			return fmt.Errorf("failed to initialize %s: %w", st.name, err)
		}
		c.logger.Debug("Container stage ready", zap.String("stage", st.name))
	}

	c.ready.Store(true)
	c.logger.Info("Container started",
		zap.Int("stages", len(stages)),
		zap.Bool("workers", c.startWorkers))
	return nil
}

// Close stops workers, then the dispatcher, then the database. In-flight
// extractions finish; queued ones stay PENDING for the next startup.
func (c *Container) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed.CompareAndSwap(false, true) {
		return fmt.Errorf("container already closed")
	}
	c.ready.Store(false)
	if c.cancel != nil {
		c.cancel()
	}

	var errs []error
	if c.workers != nil {
		if err := c.workers.StopAll(); err != nil {
			errs = append(errs, fmt.Errorf("stop workers: %w", err))
		}
	}
	if c.queue != nil {
		c.queue.Close()
	}
	if c.dispatcher != nil {
		if err := c.dispatcher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close dispatcher: %w", err))
		}
	}
	if c.db != nil {
		if err := c.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close database: %w", err))
		}
	}

	if err := errors.Join(errs...); err != nil {
		c.logger.Error("Container closed with errors", zap.Error(err))
		return err
	}
	c.logger.Info("Container closed")
	return nil
}

// Ready returns true when all components are initialized.
func (c *Container) Ready() bool {
	return c.ready.Load()
}

// Health reports the database, workers, dispatcher and extraction provider.
// The workers entry is absent for containers built WithoutWorkers.
func (c *Container) Health(ctx context.Context) *HealthStatus {
	status := &HealthStatus{Overall: true, Components: make(map[string]ComponentHealth)}
	report := func(name string, h ComponentHealth) {
		status.Components[name] = h
		status.Overall = status.Overall && h.Healthy
	}
	missing := ComponentHealth{Message: "not initialized"}

	switch {
	case c.db == nil:
		report("database", missing)
	case c.db.PingContext(ctx) != nil:
		report("database", ComponentHealth{Message: "ping failed"})
	default:
		report("database", ComponentHealth{Healthy: true})
	}

	if c.startWorkers {
		if c.workers == nil {
			report("workers", missing)
		} else {
			report("workers", ComponentHealth{
				Healthy: c.workers.IsRunning(),
				Message: fmt.Sprintf("worker count: %d, queued: %d", c.workers.GetWorkerCount(), c.queue.Depth()),
			})
		}
	}

	if c.dispatcher == nil {
		report("dispatcher", missing)
	} else {
		report("dispatcher", ComponentHealth{Healthy: true})
	}

	if c.gateway == nil {
		report("extraction", missing)
	} else {
		report("extraction", ComponentHealth{Healthy: true, Message: c.config.Extraction.Provider})
	}

	return status
}

func (c *Container) initDatabase() error {
	bundle, err := ProvideDatabase(c.ctx, &c.config.Database, c.logger)
	if err != nil {
		return err
	}
	c.db = bundle.Conn
	c.txManager = bundle.TxManager

	c.repositories, err = ProvideRepositories(c.db.DB, c.logger)
	return err
}

func (c *Container) initExternalClients() error {
	c.renderer = pdf.NewRenderer(renderDPI, c.logger)

	if c.gateway == nil {
		gateway, err := ProvideExtractionGateway(c.ctx, c.config, c.renderer, c.logger)
		if err != nil {
			return err
		}
		c.gateway = gateway
	}

	var err error
	c.messenger, err = ProvideMessenger(&c.config.Lark, c.logger)
	return err
}

func (c *Container) initStorage() (err error) {
	c.fileStorage, err = ProvideStorage(&c.config.Storage, c.logger)
	return err
}

func (c *Container) initServices() (err error) {
	c.services, err = ProvideServices(&ServiceDeps{
		Repos:     c.repositories,
		Storage:   c.fileStorage,
		Exporters: ProvideExporters(c.logger),
		Logger:    c.logger,
	})
	return err
}

func (c *Container) initDispatcherAndWorkflow() (err error) {
	c.dispatcher = ProvideDispatcher(c.repositories.User, c.messenger, c.logger)

	deps := &WorkflowDeps{
		Repos:      c.repositories,
		TxManager:  c.txManager,
		Storage:    c.fileStorage,
		Gateway:    c.gateway,
		Services:   c.services,
		Dispatcher: c.dispatcher,
		Inspector:  c.renderer,
		Config:     c.config,
		Logger:     c.logger,
	}
	if c.startWorkers {
		c.queue = worker.NewExtractionQueue(c.config.Extraction.QueueSize, c.logger)
		deps.Scheduler = c.queue
	}

	c.workflow, err = ProvideWorkflowEngine(deps)
	return err
}

func (c *Container) initWorkers() error {
	c.workers = ProvideWorkers(c.queue, c.workflow, c.repositories.Invoice, &c.config.Extraction, c.logger)
	return c.workers.StartAll(c.ctx)
}

// TxManager returns the transaction manager.
func (c *Container) TxManager() port.TransactionManager {
	return c.txManager
}

// Repositories returns all repositories.
func (c *Container) Repositories() *RepositoryBundle {
	return c.repositories
}

// FileStorage returns the file storage.
func (c *Container) FileStorage() port.FileStorage {
	return c.fileStorage
}

// Dispatcher returns the event dispatcher.
func (c *Container) Dispatcher() dispatcher.Dispatcher {
	return c.dispatcher
}

// WorkflowEngine returns the workflow engine.
func (c *Container) WorkflowEngine() workflow.Engine {
	return c.workflow
}

// Services returns all application services.
func (c *Container) Services() *ServiceBundle {
	return c.services
}

// Workers returns the worker manager, nil when built WithoutWorkers.
func (c *Container) Workers() *worker.WorkerManager {
	return c.workers
}

// Logger returns the container's logger.
func (c *Container) Logger() *zap.Logger {
	return c.logger
}

// Config returns the container's configuration.
func (c *Container) Config() *config.Config {
	return c.config
}

// zapLoggerAdapter adapts zap.Logger to the key-value Logger interfaces of the
// service, workflow and dispatcher packages.
type zapLoggerAdapter struct {
	logger *zap.Logger
}

func (a *zapLoggerAdapter) Info(msg string, keysAndValues ...interface{}) {
	a.logger.Info(msg, convertToZapFields(keysAndValues...)...)
}

func (a *zapLoggerAdapter) Error(msg string, keysAndValues ...interface{}) {
	a.logger.Error(msg, convertToZapFields(keysAndValues...)...)
}

// convertToZapFields converts key-value pairs to zap fields.
func convertToZapFields(keysAndValues ...interface{}) []zap.Field {
	fields := make([]zap.Field, 0, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			continue
		}
		if err, isErr := keysAndValues[i+1].(error); isErr {
			fields = append(fields, zap.NamedError(key, err))
			continue
		}
		fields = append(fields, zap.Any(key, keysAndValues[i+1]))
	}
	return fields
}
