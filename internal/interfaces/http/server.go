// Package http provides HTTP server adapter for the application layer.
// This is a thin adapter layer that translates HTTP requests to application service calls.
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/garyjia/tripflow/internal/application/service"
)

// Logger interface for logging operations
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host           string
	Port           int
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	AllowedOrigins []string
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:           "0.0.0.0",
		Port:           8080,
		ReadTimeout:    30 * time.Second,
		WriteTimeout:   30 * time.Second,
		AllowedOrigins: []string{"*"},
	}
}

// Services are the application services exposed over HTTP
type Services struct {
	Trip         service.TripService
	Approval     service.ApprovalService
	AdminRequest service.AdminRequestService
	Ledger       service.LedgerService
	Audit        service.AuditService
	Org          service.OrgService

	// Ready reports overall readiness for the health endpoint; nil means always ready
	Ready func() bool
}

// Server is the HTTP server adapter
type Server struct {
	config     ServerConfig
	httpServer *http.Server
	router     *gin.Engine
	services   Services
	logger     Logger
}

// NewServer creates a new HTTP server with the given services
func NewServer(config ServerConfig, services Services, logger Logger) *Server {
	// Set gin mode based on environment
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	server := &Server{
		config:   config,
		router:   router,
		services: services,
		logger:   logger,
	}

	// Setup middleware
	server.setupMiddleware()

	// Setup routes
	server.setupRoutes()

	return server
}

// setupMiddleware configures middleware for the router
func (s *Server) setupMiddleware() {
	// Recovery middleware
	s.router.Use(gin.Recovery())

	s.router.Use(requestIDMiddleware())
	s.router.Use(s.corsMiddleware())

	// Logging middleware
	s.router.Use(s.loggingMiddleware())
}

func (s *Server) corsMiddleware() gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", headerActorID, headerActorRole, headerRequestID},
		ExposeHeaders: []string{headerRequestID, "Content-Disposition"},
		MaxAge:        12 * time.Hour,
	}

	origins := s.config.AllowedOrigins
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}

	return cors.New(cfg)
}

// loggingMiddleware creates a logging middleware
func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		// Process request
		c.Next()

		// Log request details
		latency := time.Since(start)
		status := c.Writer.Status()

		s.logger.Info("HTTP request",
			"request_id", c.GetString(contextRequestID),
			"method", method,
			"path", path,
			"status", status,
			"latency", latency.String(),
			"client_ip", c.ClientIP(),
		)
	}
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	handlers := NewHandlers(s.services, s.logger)

	// Health check
	s.router.GET("/health", handlers.HealthCheck)

	api := s.router.Group("/api")
	api.Use(actorMiddleware())
	{
		// Trip requests
		api.POST("/trips", requireActor(), handlers.CreateTrip)
		api.POST("/trips/decisions", requireActor(), handlers.BulkDecide)
		api.GET("/trips/:id", handlers.GetTrip)
		api.GET("/trips/:id/steps", handlers.GetWorkflowSteps)
		api.GET("/trips/:id/history", handlers.GetStatusHistory)
		api.POST("/trips/:id/decision", requireActor(), handlers.Decide)
		api.POST("/trips/:id/pay", requireActor(), handlers.MarkTripPaid)
		api.POST("/trips/:id/cancel", requireActor(), handlers.CancelTrip)

		// Budget ledger
		api.GET("/budget/:kind/:id/check", handlers.CheckBudget)
		api.GET("/budget/:kind/:id/history", handlers.GetLedger)
		api.GET("/budget/:kind/:id/export", handlers.ExportLedger)
		api.POST("/budget/bonus-reset", requireActor(), handlers.ResetBonuses)

		// Administrative requests
		api.POST("/admin-requests", requireActor(), handlers.CreateAdminRequest)
		api.GET("/admin-requests/:id", handlers.GetAdminRequest)
		api.POST("/admin-requests/:id/decision", requireActor(), handlers.DecideAdminRequest)
		api.POST("/admin-requests/:id/pay", requireActor(), handlers.MarkAdminRequestPaid)

		// Audit
		api.GET("/audit", handlers.GetAuditTrail)

		// Organization
		api.POST("/users", handlers.CreateUser)
		api.GET("/users/:id", handlers.GetUser)
		api.POST("/departments", requireActor(), handlers.CreateDepartment)
		api.GET("/departments/:id", handlers.GetDepartment)
		api.POST("/departments/:id/bonus", requireActor(), handlers.GrantBonus)
		api.POST("/projects", requireActor(), handlers.CreateProject)
		api.GET("/projects/:id", handlers.GetProject)
		api.POST("/projects/:id/activate", requireActor(), handlers.ActivateProject)
		api.POST("/rates", requireActor(), handlers.CreateRate)
		api.GET("/rates/:id/trips", handlers.ListTripsByRate)
		api.POST("/delegations", requireActor(), handlers.CreateDelegation)
	}
}

// Start starts the HTTP server
func (s *Server) Start(ctx context.Context) error {
	addr := s.Address()

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.logger.Info("Starting HTTP server", "address", addr)

	// Start server in goroutine
	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Wait for context cancellation or error
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

	s.logger.Info("Stopping HTTP server")

	// Create shutdown context with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
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
