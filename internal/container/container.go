package container

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/garyjia/leave-approval/internal/application/dispatcher"
	"github.com/garyjia/leave-approval/internal/application/port"
	"github.com/garyjia/leave-approval/internal/application/service"
	"github.com/garyjia/leave-approval/internal/application/workflow"
	"github.com/garyjia/leave-approval/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/leave-approval/internal/infrastructure/worker"
	"github.com/garyjia/leave-approval/pkg/database"
)

// Container manages all application dependencies and lifecycle.
// Components start in dependency order and stop in reverse.
type Container struct {
	config *Config
	logger *zap.Logger

	// Infrastructure - Data
	conn         *database.DB
	db           *sqlite.DB
	repositories *RepositoryBundle

	// Infrastructure - Delivery
	sender port.NotificationSender

	// Application
	dispatcher dispatcher.Dispatcher
	workflow   workflow.WorkflowEngine
	services   *ServiceBundle

	// Workers
	workers *worker.Manager

	mu     sync.Mutex
	ready  atomic.Bool
	closed atomic.Bool
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
// 1. Database, migrations and repositories
// 2. Notification sender and event dispatcher
// 3. Workflow engine and application services
// 4. Workers
// On failure everything already opened is closed again.
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

	steps := []struct {
		name string
		run  func(context.Context) error
	}{
		{"database", c.initDatabase},
		{"delivery", c.initDelivery},
		{"application", c.initApplication},
		{"workers", c.initWorkers},
	}
	for _, step := range steps {
		if err := step.run(ctx); err != nil {
			c.teardown()
			return fmt.Errorf("failed to initialize %s: %w", step.name, err)
		}
		c.logger.Info("Initialized", zap.String("component", step.name))
	}

	c.ready.Store(true)
	c.logger.Info("Container started successfully",
		zap.String("channel", c.sender.Channel()),
		zap.Bool("async_notifications", c.config.Notification.Async))
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

// teardown stops workers, drains the dispatcher and closes the database
func (c *Container) teardown() []error {
	var errs []error

	if c.workers != nil {
		if err := c.workers.StopAll(); err != nil {
			c.logger.Error("Failed to stop workers", zap.Error(err))
			errs = append(errs, fmt.Errorf("stop workers: %w", err))
		}
		c.workers = nil
	}

	// queued notifications are delivered before the database goes away
	if c.dispatcher != nil {
		if err := c.dispatcher.Close(); err != nil {
			c.logger.Error("Failed to close dispatcher", zap.Error(err))
			errs = append(errs, fmt.Errorf("close dispatcher: %w", err))
		}
		c.dispatcher = nil
	}

	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			c.logger.Error("Failed to close database", zap.Error(err))
			errs = append(errs, fmt.Errorf("close database: %w", err))
		}
		c.conn = nil
	}

	return errs
}

// Ready returns true when all components are initialized.
func (c *Container) Ready() bool {
	return c.ready.Load()
}

// Health returns health status of all components.
func (c *Container) Health(ctx context.Context) *HealthStatus {
	status := &HealthStatus{
		Overall:    true,
		Components: make(map[string]ComponentHealth),
	}
	set := func(name string, healthy bool, msg string) {
		status.Components[name] = ComponentHealth{Healthy: healthy, Message: msg}
		if !healthy {
			status.Overall = false
		}
	}

	switch {
	case c.db == nil:
		set("database", false, "not initialized")
	default:
		if err := c.db.PingContext(ctx); err != nil {
			set("database", false, fmt.Sprintf("ping failed: %v", err))
		} else {
			set("database", true, "")
		}
	}

	if c.sender != nil {
		set("notifications", true, "channel: "+c.sender.Channel())
	} else {
		set("notifications", false, "not initialized")
	}

	if c.workers != nil {
		healthy := c.workers.Count() == 0 || c.workers.IsRunning()
		set("workers", healthy, fmt.Sprintf("worker count: %d", c.workers.Count()))
	} else {
		set("workers", false, "not initialized")
	}

	return status
}

func (c *Container) initDatabase(ctx context.Context) error {
	bundle, err := ProvideDatabase(ctx, &c.config.Database, c.logger)
	if err != nil {
		return err
	}
	c.conn = bundle.Conn
	c.db = bundle.TransactionMgr

	repos, err := ProvideRepositories(c.conn, c.logger)
	if err != nil {
		return err
	}
	c.repositories = repos
	return nil
}

func (c *Container) initDelivery(ctx context.Context) error {
	sender, err := ProvideSender(c.config, c.logger)
	if err != nil {
		return err
	}
	c.sender = sender
	c.dispatcher = ProvideDispatcher(&c.config.Notification, c.logger)
	return nil
}

func (c *Container) initApplication(ctx context.Context) error {
	notifier, err := ProvideNotificationService(&NotificationDeps{
		Repos:      c.repositories,
		Sender:     c.sender,
		Dispatcher: c.dispatcher,
		Config:     &c.config.Notification,
		Logger:     c.logger,
	})
	if err != nil {
		return err
	}

	engine, err := ProvideWorkflowEngine(&WorkflowDeps{
		Repos:      c.repositories,
		TxManager:  c.db,
		Dispatcher: c.dispatcher,
		Config:     &c.config.Workflow,
		Logger:     c.logger,
	})
	if err != nil {
		return err
	}
	c.workflow = engine

	c.services = &ServiceBundle{
		Leave:        ProvideLeaveService(engine, notifier, c.dispatcher, c.config, c.logger),
		Notification: notifier,
	}
	return nil
}

func (c *Container) initWorkers(ctx context.Context) error {
	c.workers = ProvideWorkers(&c.config.Notification.Retry, c.services.Notification, c.logger)
	// workers outlive the start call; they stop through Close
	return c.workers.StartAll(context.WithoutCancel(ctx))
}

// DB returns the transaction manager, which also answers health pings.
func (c *Container) DB() *sqlite.DB {
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

// LeaveService returns the leave use-case facade.
func (c *Container) LeaveService() service.LeaveService {
	return c.services.Leave
}

// Workers returns the worker manager.
func (c *Container) Workers() *worker.Manager {
	return c.workers
}

// Logger returns the container's logger.
func (c *Container) Logger() *zap.Logger {
	return c.logger
}

// Config returns the container's configuration.
func (c *Container) Config() *Config {
	return c.config
}
