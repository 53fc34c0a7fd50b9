// Package http exposes the intervention workflow over a JSON API.
// It only translates requests and errors; every rule lives in the application layer.
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rpma/ppf-workflow/internal/application/service"
	"github.com/rpma/ppf-workflow/internal/application/workflow"
)

// Logger interface for logging operations
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// HealthChecker reports whether the backing stores are reachable
type HealthChecker func(ctx context.Context) error

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:            "0.0.0.0",
		Port:            8080,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    30 * time.Second,
		ShutdownTimeout: 10 * time.Second,
	}
}

// Server is the HTTP server adapter
type Server struct {
	config     ServerConfig
	httpServer *http.Server
	router     *gin.Engine

	engine       workflow.WorkflowEngine
	taskService  service.TaskService
	auditService service.AuditService
	logger       Logger

	health       HealthChecker
	realtimePath string
	realtime     http.Handler
}

// ServerOption configures optional server features
type ServerOption func(*Server)

// WithHealthCheck makes /health report storage reachability
func WithHealthCheck(check HealthChecker) ServerOption {
	return func(s *Server) {
		s.health = check
	}
}

// WithRealtime mounts the event stream handler at path
func WithRealtime(path string, handler http.Handler) ServerOption {
	return func(s *Server) {
		s.realtimePath = path
		s.realtime = handler
	}
}

// NewServer creates a new HTTP server over the workflow engine and services
func NewServer(
	config ServerConfig,
	engine workflow.WorkflowEngine,
	taskService service.TaskService,
	auditService service.AuditService,
	logger Logger,
	opts ...ServerOption,
) *Server {
	gin.SetMode(gin.ReleaseMode)

	server := &Server{
		config:       config,
		router:       gin.New(),
		engine:       engine,
		taskService:  taskService,
		auditService: auditService,
		logger:       logger,
	}
	for _, opt := range opts {
		opt(server)
	}

	server.setupMiddleware()
	server.setupRoutes()

	return server
}

func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())
	s.router.Use(s.loggingMiddleware())
}

func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		s.logger.Info("HTTP request",
			"method", method,
			"path", path,
			"status", c.Writer.Status(),
			"latency", time.Since(start).String(),
			"client_ip", c.ClientIP(),
			"actor_id", c.GetHeader(ActorHeader),
		)
	}
}

func (s *Server) setupRoutes() {
	h := NewHandlers(s.engine, s.taskService, s.auditService, s.health, s.logger)

	s.router.GET("/health", h.HealthCheck)

	if s.realtime != nil {
		s.router.GET(s.realtimePath, gin.WrapH(s.realtime))
	}

	api := s.router.Group("/api")
	{
		tasks := api.Group("/tasks")
		tasks.POST("", h.CreateTask)
		tasks.GET("", h.ListTasks)
		tasks.GET("/:id", h.GetTask)
		tasks.GET("/:id/interventions", h.ListTaskInterventions)
		tasks.GET("/:id/interventions/active", h.GetActiveIntervention)
		tasks.POST("/:id/interventions", h.StartIntervention)

		interventions := api.Group("/interventions")
		interventions.GET("/:id", h.GetIntervention)
		interventions.GET("/:id/progress", h.GetProgress)
		interventions.GET("/:id/audit", h.GetAuditTrail)
		interventions.POST("/:id/steps/:stepId/advance", h.AdvanceStep)
		interventions.POST("/:id/complete", h.CompleteIntervention)
		interventions.POST("/:id/cancel", h.CancelIntervention)
	}
}

// Start runs the server until ctx is cancelled or listening fails
func (s *Server) Start(ctx context.Context) error {
	addr := s.Address()

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.logger.Info("Starting HTTP server", "address", addr)

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("HTTP server shutdown requested")
		return s.Stop()
	case err := <-errCh:
		s.logger.Error("HTTP server error", "error", err)
		return err
	}
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}

	timeout := s.config.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
		return err
	}

	s.logger.Info("HTTP server stopped")
	return nil
}

// Router returns the underlying gin router (for testing)
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Address returns the server address
func (s *Server) Address() string {
	return fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
}
