package container

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/rpma/ppf-workflow/internal/application/dispatcher"
	"github.com/rpma/ppf-workflow/internal/application/port"
	"github.com/rpma/ppf-workflow/internal/application/service"
	"github.com/rpma/ppf-workflow/internal/application/workflow"
	"github.com/rpma/ppf-workflow/internal/infrastructure/persistence/sqlite"
	httpapi "github.com/rpma/ppf-workflow/internal/interfaces/http"
	"github.com/rpma/ppf-workflow/internal/interfaces/websocket"
	"github.com/rpma/ppf-workflow/pkg/database"
)

// Container manages all application dependencies and lifecycle.
// Components are initialized in dependency order and torn down in reverse.
type Container struct {
	config *Config
	logger *zap.Logger

	// Infrastructure - Data
	database     *database.DB
	db           *sqlite.DB
	repositories *RepositoryBundle

	// Application
	dispatcher dispatcher.Dispatcher
	services   *ServiceBundle
	workflow   workflow.WorkflowEngine

	// Interfaces
	hub    *websocket.Hub
	server *httpapi.Server

	// Lifecycle
	mu     sync.RWMutex
	ready  atomic.Bool
	closed atomic.Bool
}

// RepositoryBundle groups all repositories for convenient access.
type RepositoryBundle struct {
	Task         port.TaskRepository
	Intervention port.InterventionRepository
	Step         port.StepRepository
	Audit        port.AuditRepository
}

// ServiceBundle groups all application services.
type ServiceBundle struct {
	Task  service.TaskService
	Audit service.AuditService
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

// NewContainer creates a new container from configuration.
// It does not initialize components - call Start() to initialize.
func NewContainer(cfg *Config, logger *zap.Logger) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Container{
		config: cfg,
		logger: logger,
	}, nil
}

// Start initializes all components:
// 1. Database and repositories
// 2. Event dispatcher
// 3. Application services (audit trail subscribes here)
// 4. Workflow engine
// 5. Realtime hub and HTTP server
//
// Start does not listen; call Server().Start to serve requests.
func (c *Container) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container has been closed")
	}
	if c.ready.Load() {
		return fmt.Errorf("container already started")
	}

	c.logger.Info("Starting container initialization")

	if err := c.initDatabase(); err != nil {
		c.teardown()
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	c.logger.Info("Database initialized", zap.String("path", c.database.Path()))

	if err := c.initDispatcher(); err != nil {
		c.teardown()
		return fmt.Errorf("failed to initialize dispatcher: %w", err)
	}

	if err := c.initServices(); err != nil {
		c.teardown()
		return fmt.Errorf("failed to initialize services: %w", err)
	}
	c.logger.Info("Application services initialized")

	if err := c.initWorkflow(); err != nil {
		c.teardown()
		return fmt.Errorf("failed to initialize workflow engine: %w", err)
	}
	c.logger.Info("Workflow engine initialized",
		zap.Duration("stale_after", c.config.Workflow.StaleAfter),
		zap.Bool("enforce_photo_minimum", c.config.Workflow.EnforcePhotoMinimum),
		zap.Bool("per_zone_installation", c.config.Workflow.PerZoneInstallation))

	if err := c.initInterfaces(); err != nil {
		c.teardown()
		return fmt.Errorf("failed to initialize interfaces: %w", err)
	}
	c.logger.Info("Interfaces initialized", zap.Bool("realtime", c.hub != nil))

	c.ready.Store(true)
	c.logger.Info("Container started successfully")

	return nil
}

// Close gracefully shuts down all components in reverse order.
func (c *Container) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container already closed")
	}

	c.logger.Info("Closing container")

	errs := c.teardown()

	c.closed.Store(true)
	c.ready.Store(false)

	if len(errs) > 0 {
		c.logger.Error("Container closed with errors", zap.Int("error_count", len(errs)))
		return fmt.Errorf("container closed with %d errors: %w", len(errs), errs[0])
	}

	c.logger.Info("Container closed successfully")
	return nil
}

// teardown releases whatever has been initialized so far. Callers hold c.mu.
func (c *Container) teardown() []error {
	var errs []error

	// Realtime clients go first so nothing is mid-write when the dispatcher stops
	if c.hub != nil {
		if err := c.hub.Close(); err != nil {
			c.logger.Error("Failed to close realtime hub", zap.Error(err))
			errs = append(errs, fmt.Errorf("close hub: %w", err))
		} else {
			c.logger.Info("Realtime hub closed")
		}
		c.hub = nil
	}

	if c.dispatcher != nil {
		if err := c.dispatcher.Close(); err != nil {
			c.logger.Error("Failed to close dispatcher", zap.Error(err))
			errs = append(errs, fmt.Errorf("close dispatcher: %w", err))
		} else {
			c.logger.Info("Dispatcher closed")
		}
		c.dispatcher = nil
	}

	if c.database != nil {
		if err := c.database.Close(); err != nil {
			c.logger.Error("Failed to close database", zap.Error(err))
			errs = append(errs, fmt.Errorf("close database: %w", err))
		} else {
			c.logger.Info("Database closed")
		}
		c.database = nil
	}

	return errs
}

// Ready returns true when all components are initialized.
func (c *Container) Ready() bool {
	return c.ready.Load()
}

// Health returns health status of all components.
func (c *Container) Health(ctx context.Context) *HealthStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()

	status := &HealthStatus{
		Overall:    true,
		Components: make(map[string]ComponentHealth),
	}

	if c.database != nil {
		if err := c.database.PingContext(ctx); err != nil {
			status.Components["database"] = ComponentHealth{
				Healthy: false,
				Message: fmt.Sprintf("ping failed: %v", err),
			}
			status.Overall = false
		} else {
			status.Components["database"] = ComponentHealth{Healthy: true}
		}
	} else {
		status.Components["database"] = ComponentHealth{Healthy: false, Message: "not initialized"}
		status.Overall = false
	}

	if c.dispatcher != nil {
		status.Components["dispatcher"] = ComponentHealth{Healthy: true}
	} else {
		status.Components["dispatcher"] = ComponentHealth{Healthy: false, Message: "not initialized"}
		status.Overall = false
	}

	if c.workflow != nil {
		status.Components["workflow"] = ComponentHealth{Healthy: true}
	} else {
		status.Components["workflow"] = ComponentHealth{Healthy: false, Message: "not initialized"}
		status.Overall = false
	}

	// The hub is optional, so a disabled hub is still healthy
	if c.hub != nil {
		status.Components["realtime"] = ComponentHealth{
			Healthy: true,
			Message: fmt.Sprintf("clients: %d", c.hub.ClientCount()),
		}
	} else {
		status.Components["realtime"] = ComponentHealth{Healthy: true, Message: "disabled"}
	}

	return status
}

func (c *Container) initDatabase() error {
	dbBundle, err := ProvideDatabase(&c.config.Database, c.logger)
	if err != nil {
		return err
	}

	c.database = dbBundle.DB
	c.db = dbBundle.TransactionMgr

	repos, err := ProvideRepositories(c.database.DB, c.logger)
	if err != nil {
		return err
	}

	c.repositories = repos
	return nil
}

func (c *Container) initDispatcher() error {
	disp, err := ProvideDispatcher(c.logger)
	if err != nil {
		return err
	}
	c.dispatcher = disp
	return nil
}

func (c *Container) initServices() error {
	services, err := ProvideServices(c.repositories, c.dispatcher, c.logger.Named("service"))
	if err != nil {
		return err
	}
	c.services = services
	return nil
}

func (c *Container) initWorkflow() error {
	engine, err := ProvideWorkflowEngine(&WorkflowDeps{
		Repos:     c.repositories,
		TxManager: c.db,
		Publisher: c.dispatcher,
		Config:    c.config.Workflow,
		Logger:    c.logger,
	})
	if err != nil {
		return err
	}
	c.workflow = engine
	return nil
}

func (c *Container) initInterfaces() error {
	c.hub = ProvideRealtimeHub(&c.config.Realtime, c.dispatcher, c.logger)

	server, err := ProvideHTTPServer(&HTTPDeps{
		Config:   c.config.Server,
		Engine:   c.workflow,
		Services: c.services,
		DB:       c.database,
		Hub:      c.hub,
		HubPath:  c.config.Realtime.Path,
		Logger:   c.logger,
	})
	if err != nil {
		return err
	}
	c.server = server
	return nil
}

// Getters for accessing container components

// DB returns the transaction manager.
func (c *Container) DB() port.TransactionManager {
	return c.db
}

// Repositories returns all repositories.
func (c *Container) Repositories() *RepositoryBundle {
	return c.repositories
}

// Dispatcher returns the event dispatcher.
func (c *Container) Dispatcher() dispatcher.Dispatcher {
	return c.dispatcher
}

// WorkflowEngine returns the workflow engine.
func (c *Container) WorkflowEngine() workflow.WorkflowEngine {
	return c.workflow
}

// Services returns all application services.
func (c *Container) Services() *ServiceBundle {
	return c.services
}

// Hub returns the realtime hub, nil when realtime is disabled.
func (c *Container) Hub() *websocket.Hub {
	return c.hub
}

// Server returns the HTTP server.
func (c *Container) Server() *httpapi.Server {
	return c.server
}

// Logger returns the container's logger.
func (c *Container) Logger() *zap.Logger {
	return c.logger
}

// Config returns the container's configuration.
func (c *Container) Config() *Config {
	return c.config
}

// zapLoggerAdapter adapts zap.Logger to the key-value Logger interfaces the
// application and interface layers declare.
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
