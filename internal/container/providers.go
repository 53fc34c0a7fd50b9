package container

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/rpma/ppf-workflow/internal/application/dispatcher"
	"github.com/rpma/ppf-workflow/internal/application/guard"
	"github.com/rpma/ppf-workflow/internal/application/port"
	"github.com/rpma/ppf-workflow/internal/application/service"
	"github.com/rpma/ppf-workflow/internal/application/workflow"
	"github.com/rpma/ppf-workflow/internal/infrastructure/persistence/repository"
	"github.com/rpma/ppf-workflow/internal/infrastructure/persistence/sqlite"
	httpapi "github.com/rpma/ppf-workflow/internal/interfaces/http"
	"github.com/rpma/ppf-workflow/internal/interfaces/websocket"
	"github.com/rpma/ppf-workflow/pkg/database"
)

// DatabaseBundle holds database-related components.
type DatabaseBundle struct {
	DB             *database.DB
	TransactionMgr *sqlite.DB
}

// ProvideDatabase opens the SQLite database, applies pending migrations and
// wraps the connection in a transaction manager.
func ProvideDatabase(cfg *DatabaseConfig, logger *zap.Logger) (*DatabaseBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	db, err := database.New(database.Config{
		Path:            cfg.Path,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	}, logger)
	if err != nil {
		return nil, err
	}

	if !cfg.SkipMigrations {
		if err := database.NewMigrator(db, logger).Run(); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	return &DatabaseBundle{
		DB:             db,
		TransactionMgr: sqlite.NewDB(db.DB, logger),
	}, nil
}

// ProvideRepositories creates all repositories from a database connection.
func ProvideRepositories(sqlDB *sql.DB, logger *zap.Logger) (*RepositoryBundle, error) {
	if sqlDB == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	return &RepositoryBundle{
		Task:         repository.NewTaskRepository(sqlDB, logger),
		Intervention: repository.NewInterventionRepository(sqlDB, logger),
		Step:         repository.NewStepRepository(sqlDB, logger),
		Audit:        repository.NewAuditRepository(sqlDB, logger),
	}, nil
}

// ProvideDispatcher creates the event dispatcher.
func ProvideDispatcher(logger *zap.Logger) (dispatcher.Dispatcher, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	return dispatcher.NewDispatcher(
		dispatcher.WithLogger(&zapLoggerAdapter{logger: logger.Named("dispatcher")}),
	), nil
}

// ProvideServices creates the application services and subscribes the audit
// trail to every intervention event.
func ProvideServices(repos *RepositoryBundle, d dispatcher.Dispatcher, logger *zap.Logger) (*ServiceBundle, error) {
	if repos == nil {
		return nil, fmt.Errorf("repositories are required")
	}
	if d == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	serviceLogger := &zapLoggerAdapter{logger: logger}

	audit := service.NewAuditService(repos.Audit, serviceLogger)
	audit.Register(d)

	return &ServiceBundle{
		Task:  service.NewTaskService(repos.Task, serviceLogger),
		Audit: audit,
	}, nil
}

// WorkflowDeps holds dependencies required for creating the workflow engine.
type WorkflowDeps struct {
	Repos     *RepositoryBundle
	TxManager port.TransactionManager
	Publisher port.EventPublisher
	Config    WorkflowConfig
	Logger    *zap.Logger
}

// ProvideWorkflowEngine creates the guard and the workflow engine.
func ProvideWorkflowEngine(deps *WorkflowDeps) (workflow.WorkflowEngine, error) {
	if deps == nil || deps.Repos == nil {
		return nil, fmt.Errorf("workflow dependencies are required")
	}
	if deps.TxManager == nil {
		return nil, fmt.Errorf("transaction manager is required")
	}
	if deps.Publisher == nil {
		return nil, fmt.Errorf("event publisher is required")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	engineLogger := &zapLoggerAdapter{logger: deps.Logger.Named("workflow")}

	g := guard.New(deps.Repos.Intervention,
		guard.WithStaleAfter(deps.Config.StaleAfter),
		guard.WithLogger(engineLogger),
	)

	return workflow.NewEngine(
		deps.Repos.Task,
		deps.Repos.Intervention,
		deps.Repos.Step,
		deps.TxManager,
		g,
		workflow.WithPublisher(deps.Publisher),
		workflow.WithLogger(engineLogger),
		workflow.WithEnforcePhotoMinimum(deps.Config.EnforcePhotoMinimum),
		workflow.WithPerZoneInstallation(deps.Config.PerZoneInstallation),
	), nil
}

// ProvideRealtimeHub creates the websocket hub, or nil when realtime is disabled.
func ProvideRealtimeHub(cfg *RealtimeConfig, d dispatcher.Dispatcher, logger *zap.Logger) *websocket.Hub {
	if cfg == nil || !cfg.Enabled {
		return nil
	}

	hubCfg := websocket.DefaultHubConfig()
	hubCfg.AllowedOrigins = cfg.AllowedOrigins
	if cfg.SendBuffer > 0 {
		hubCfg.SendBuffer = cfg.SendBuffer
	}
	return websocket.NewHub(hubCfg, d, logger.Named("realtime"))
}

// HTTPDeps holds dependencies required for creating the HTTP server.
type HTTPDeps struct {
	Config   ServerConfig
	Engine   workflow.WorkflowEngine
	Services *ServiceBundle
	DB       *database.DB
	Hub      *websocket.Hub
	HubPath  string
	Logger   *zap.Logger
}

// ProvideHTTPServer creates the API server.
func ProvideHTTPServer(deps *HTTPDeps) (*httpapi.Server, error) {
	if deps == nil || deps.Engine == nil || deps.Services == nil {
		return nil, fmt.Errorf("http dependencies are required")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	opts := []httpapi.ServerOption{}
	if deps.DB != nil {
		db := deps.DB
		opts = append(opts, httpapi.WithHealthCheck(func(ctx context.Context) error {
			return db.PingContext(ctx)
		}))
	}
	if deps.Hub != nil {
		opts = append(opts, httpapi.WithRealtime(deps.HubPath, deps.Hub))
	}

	return httpapi.NewServer(
		httpapi.ServerConfig{
			Host:            deps.Config.Host,
			Port:            deps.Config.Port,
			ReadTimeout:     deps.Config.ReadTimeout,
			WriteTimeout:    deps.Config.WriteTimeout,
			ShutdownTimeout: deps.Config.ShutdownTimeout,
		},
		deps.Engine,
		deps.Services.Task,
		deps.Services.Audit,
		&zapLoggerAdapter{logger: deps.Logger.Named("http")},
		opts...,
	), nil
}
