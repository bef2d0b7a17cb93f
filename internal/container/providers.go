// Package container wires configuration into repositories, services, the
// workflow engine and background workers, and owns their lifecycle.
package container

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/garyjia/invoice-approval/internal/application/dispatcher"
	"github.com/garyjia/invoice-approval/internal/application/port"
	"github.com/garyjia/invoice-approval/internal/application/service"
	"github.com/garyjia/invoice-approval/internal/application/workflow"
	"github.com/garyjia/invoice-approval/internal/config"
	"github.com/garyjia/invoice-approval/internal/domain/event"
	"github.com/garyjia/invoice-approval/internal/infrastructure/export"
	"github.com/garyjia/invoice-approval/internal/infrastructure/external/extraction"
	"github.com/garyjia/invoice-approval/internal/infrastructure/external/gemini"
	infraLark "github.com/garyjia/invoice-approval/internal/infrastructure/external/lark"
	"github.com/garyjia/invoice-approval/internal/infrastructure/external/openai"
	"github.com/garyjia/invoice-approval/internal/infrastructure/pdf"
	"github.com/garyjia/invoice-approval/internal/infrastructure/persistence/repository"
	"github.com/garyjia/invoice-approval/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/invoice-approval/internal/infrastructure/storage"
	"github.com/garyjia/invoice-approval/internal/infrastructure/worker"
	"github.com/garyjia/invoice-approval/migrations"
	"github.com/garyjia/invoice-approval/pkg/database"
)

const renderDPI = 150

// DatabaseBundle holds database-related components.
type DatabaseBundle struct {
	Conn      *database.DB
	TxManager *sqlite.TxManager
}

// ProvideDatabase opens the database and applies pending migrations, from
// MigrationsDir when set and from the embedded set otherwise.
func ProvideDatabase(ctx context.Context, cfg *config.DatabaseConfig, logger *zap.Logger) (*DatabaseBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database config is required")
	}

	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	var fsys fs.FS = migrations.FS
	if cfg.MigrationsDir != "" {
		fsys = os.DirFS(cfg.MigrationsDir)
	}

	db, err := database.Open(ctx, database.Config{
		Path:            cfg.Path,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	}, fsys, logger)
	if err != nil {
		return nil, err
	}

	return &DatabaseBundle{
		Conn:      db,
		TxManager: sqlite.NewTxManager(db.DB, logger),
	}, nil
}

// ProvideRepositories creates all repositories from a database connection.
func ProvideRepositories(sqlDB *sql.DB, logger *zap.Logger) (*RepositoryBundle, error) {
	if sqlDB == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	return &RepositoryBundle{
		Invoice:       repository.NewInvoiceRepository(sqlDB, logger),
		ExtractedData: repository.NewExtractedDataRepository(sqlDB, logger),
		Action:        repository.NewActionRepository(sqlDB, logger),
		Notification:  repository.NewNotificationRepository(sqlDB, logger),
		User:          repository.NewUserRepository(sqlDB, logger),
		Analytics:     repository.NewAnalyticsRepository(sqlDB, logger),
	}, nil
}

// ProvideStorage creates the upload directory store.
func ProvideStorage(cfg *config.StorageConfig, logger *zap.Logger) (port.FileStorage, error) {
	return storage.NewLocalFileStorage(cfg.UploadDir, logger)
}

// ProvideExtractionGateway builds the gateway for the configured provider.
func ProvideExtractionGateway(ctx context.Context, cfg *config.Config, renderer *pdf.Renderer, logger *zap.Logger) (port.ExtractionGateway, error) {
	prompts, err := extraction.LoadPrompts(cfg.OpenAI.PromptsPath)
	if err != nil {
		return nil, err
	}

	switch cfg.Extraction.Provider {
	case config.ProviderGemini:
		return gemini.NewGateway(ctx, cfg.Gemini.APIKey, cfg.Gemini.Model, prompts, logger)
	case config.ProviderOpenAI:
		return openai.NewGateway(openai.Config{
			APIKey:   cfg.OpenAI.APIKey,
			Model:    cfg.OpenAI.Model,
			BaseURL:  cfg.OpenAI.BaseURL,
			MaxPages: cfg.OpenAI.MaxPages,
		}, renderer, prompts, logger)
	default:
		return nil, fmt.Errorf("unknown extraction provider: %s", cfg.Extraction.Provider)
	}
}

// ProvideMessenger returns the Lark chat sender, or nil when chat delivery is off.
func ProvideMessenger(cfg *config.LarkConfig, logger *zap.Logger) (port.MessageSender, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	client, err := infraLark.NewSDKClient(infraLark.Config{
		AppID:     cfg.AppID,
		AppSecret: cfg.AppSecret,
	})
	if err != nil {
		return nil, err
	}
	return infraLark.NewMessenger(client, logger), nil
}

// ProvideExporters returns the export formats keyed by file extension.
func ProvideExporters(logger *zap.Logger) map[string]port.Exporter {
	exporters := []port.Exporter{export.NewCSVWriter(), export.NewXLSXWriter(logger)}
	byExt := make(map[string]port.Exporter, len(exporters))
	for _, e := range exporters {
		byExt[e.FileExtension()] = e
	}
	return byExt
}

// ServiceDeps holds dependencies for creating services.
type ServiceDeps struct {
	Repos     *RepositoryBundle
	Storage   port.FileStorage
	Exporters map[string]port.Exporter
	Logger    *zap.Logger
}

// ProvideServices creates all application services.
func ProvideServices(deps *ServiceDeps) (*ServiceBundle, error) {
	if deps == nil || deps.Repos == nil {
		return nil, fmt.Errorf("repositories are required")
	}
	r := deps.Repos
	log := &zapLoggerAdapter{logger: deps.Logger}

	return &ServiceBundle{
		Audit:        service.NewAuditService(r.Invoice, r.Action, log),
		Notification: service.NewNotificationService(r.Notification, r.User, log),
		Duplicates:   service.NewDuplicateDetector(r.Invoice, r.ExtractedData, log),
		Query:        service.NewInvoiceQueryService(r.Invoice, r.ExtractedData, r.User, deps.Storage, deps.Exporters, log),
		Analytics:    service.NewAnalyticsService(r.Analytics),
		User:         service.NewUserService(r.User, log),
	}, nil
}

// ProvideDispatcher creates the event dispatcher and subscribes chat delivery when a
// messenger is configured.
func ProvideDispatcher(users port.UserRepository, messenger port.MessageSender, logger *zap.Logger) dispatcher.Dispatcher {
	log := &zapLoggerAdapter{logger: logger}
	d := dispatcher.NewDispatcher(dispatcher.WithLogger(log))
	if messenger != nil {
		d.SubscribeNamed(event.TypeNotificationCreated, "lark-chat-delivery",
			service.NewChatDeliveryHandler(users, messenger, log))
	}
	return d
}

// WorkflowDeps holds dependencies for creating the workflow engine.
type WorkflowDeps struct {
	Repos      *RepositoryBundle
	TxManager  port.TransactionManager
	Storage    port.FileStorage
	Gateway    port.ExtractionGateway
	Services   *ServiceBundle
	Dispatcher dispatcher.Dispatcher
	Scheduler  port.ExtractionScheduler
	Inspector  port.PDFInspector
	Config     *config.Config
	Logger     *zap.Logger
}

// ProvideWorkflowEngine creates the workflow engine.
func ProvideWorkflowEngine(deps *WorkflowDeps) (workflow.Engine, error) {
	threshold, err := deps.Config.TwoLevelThreshold()
	if err != nil {
		return nil, err
	}

	opts := []workflow.EngineOption{
		workflow.WithDispatcher(deps.Dispatcher),
		workflow.WithTwoLevelThreshold(threshold),
		workflow.WithExtractionTimeout(deps.Config.Extraction.Timeout),
		workflow.WithLogger(&zapLoggerAdapter{logger: deps.Logger}),
	}
	if deps.Scheduler != nil {
		opts = append(opts, workflow.WithScheduler(deps.Scheduler))
	}
	if deps.Inspector != nil {
		opts = append(opts, workflow.WithPDFInspector(deps.Inspector))
	}

	return workflow.NewEngine(
		workflow.Repositories{Invoices: deps.Repos.Invoice, ExtractedData: deps.Repos.ExtractedData},
		deps.TxManager,
		deps.Storage,
		deps.Gateway,
		deps.Services.Audit,
		deps.Services.Notification,
		deps.Services.Duplicates,
		opts...,
	), nil
}

// ProvideWorkers registers the extraction worker ahead of the startup recovery pass,
// so recovered ids are drained as soon as they are queued.
func ProvideWorkers(queue *worker.ExtractionQueue, engine workflow.Engine, invoices port.InvoiceRepository, cfg *config.ExtractionConfig, logger *zap.Logger) *worker.WorkerManager {
	manager := worker.NewWorkerManager(logger)
	manager.Register(worker.NewExtractionWorker(queue, engine, cfg.Workers, logger,
		worker.WithOnComplete(func(o *workflow.ExtractionOutcome) {
			if o.Err != nil {
				logger.Warn("Extraction finished with error",
					zap.String("invoice_id", o.InvoiceID),
					zap.String("status", string(o.Status)),
					zap.Error(o.Err))
			}
		})))
	manager.Register(worker.NewRecovery(invoices, queue, logger))
	return manager
}
