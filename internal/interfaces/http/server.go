// Package http provides the HTTP adapter for the leave service.
// Handlers translate requests into service calls and service errors into the response envelope.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/leave-approval/internal/application/port"
	"github.com/garyjia/leave-approval/internal/application/service"
)

// Logger interface for logging operations
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	Version         string
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:            "0.0.0.0",
		Port:            3001,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    30 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		Version:         "1.0.0",
	}
}

// Server is the HTTP server adapter
type Server struct {
	config       ServerConfig
	httpServer   *http.Server
	router       *gin.Engine
	leaveService service.LeaveService
	db           port.Pinger
	logger       Logger
}

// NewServer creates a new HTTP server; db is pinged by the health endpoints and may be nil
func NewServer(config ServerConfig, leaveService service.LeaveService, db port.Pinger, logger Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	RegisterTagNames()

	server := &Server{
		config:       config,
		router:       gin.New(),
		leaveService: leaveService,
		db:           db,
		logger:       logger,
	}

	server.setupMiddleware()
	server.setupRoutes()

	return server
}

func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())
	s.router.Use(s.loggingMiddleware())
	s.router.Use(corsMiddleware())
}

// corsMiddleware allows browser clients from any origin
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
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
		)
	}
}

func (s *Server) setupRoutes() {
	handlers := NewHandlers(s.leaveService, s.db, s.config.Version, s.logger)

	s.router.GET("/health", handlers.HealthCheck)

	api := s.router.Group("/api")
	{
		api.GET("/health", handlers.HealthCheck)

		requests := api.Group("/requests")
		requests.POST("", handlers.Submit)
		requests.GET("", handlers.ListRequests)
		requests.GET("/:id", handlers.GetRequest)
		requests.GET("/:id/history", handlers.GetHistory)
		requests.GET("/:id/notifications", handlers.GetNotifications)
		requests.POST("/:id/actions", handlers.Act)
		requests.POST("/:id/approve", handlers.Approve)
		requests.POST("/:id/reject", handlers.Reject)
	}
}

// Start serves until ctx is cancelled or the listener fails
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
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
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

	s.logger.Info("Stopping HTTP server")

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

// Router returns the underlying gin router
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Address returns the server address
func (s *Server) Address() string {
	return fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
}
