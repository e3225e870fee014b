package container

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/leave-approval/internal/application/dispatcher"
	"github.com/garyjia/leave-approval/internal/application/port"
	"github.com/garyjia/leave-approval/internal/application/service"
	"github.com/garyjia/leave-approval/internal/application/workflow"
	"github.com/garyjia/leave-approval/internal/domain/event"
	"github.com/garyjia/leave-approval/internal/email"
	infraLark "github.com/garyjia/leave-approval/internal/infrastructure/external/lark"
	"github.com/garyjia/leave-approval/internal/infrastructure/persistence/repository"
	"github.com/garyjia/leave-approval/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/leave-approval/internal/infrastructure/worker"
	"github.com/garyjia/leave-approval/pkg/database"
	"github.com/garyjia/leave-approval/pkg/utils"
)

// DatabaseBundle holds database-related components.
type DatabaseBundle struct {
	Conn           *database.DB
	TransactionMgr *sqlite.DB
}

// RepositoryBundle groups all repositories.
type RepositoryBundle struct {
	LeaveRequest port.LeaveRequestRepository
	History      port.HistoryRepository
	Notification port.NotificationRepository
}

// ServiceBundle groups the application services.
type ServiceBundle struct {
	Leave        service.LeaveService
	Notification service.NotificationService
}

// ProvideDatabase opens the database and applies the embedded migrations.
func ProvideDatabase(ctx context.Context, cfg *DatabaseConfig, logger *zap.Logger) (*DatabaseBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	conn, err := database.New(database.Config{
		Path:            cfg.Path,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		BusyTimeout:     cfg.BusyTimeout,
	}, logger)
	if err != nil {
		return nil, err
	}

	applied, err := database.NewMigrator(conn, logger).Run(ctx, database.Migrations, database.MigrationsDir)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	logger.Info("Migrations applied", zap.Int("count", applied))

	return &DatabaseBundle{
		Conn:           conn,
		TransactionMgr: sqlite.NewDB(conn.DB, logger),
	}, nil
}

// ProvideRepositories creates all repositories from a database connection.
func ProvideRepositories(conn *database.DB, logger *zap.Logger) (*RepositoryBundle, error) {
	if conn == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	return &RepositoryBundle{
		LeaveRequest: repository.NewLeaveRequestRepository(conn.DB, logger),
		History:      repository.NewHistoryRepository(conn.DB, logger),
		Notification: repository.NewNotificationRepository(conn.DB, logger),
	}, nil
}

// ProvideSender creates the notification sender for the configured channel.
func ProvideSender(cfg *Config, logger *zap.Logger) (port.NotificationSender, error) {
	switch cfg.Notification.Channel {
	case ChannelLog, "":
		return email.NewLogSender(logger), nil
	case ChannelSMTP:
		return email.NewSMTPSender(email.SMTPConfig{
			Host:       cfg.SMTP.Host,
			Port:       cfg.SMTP.Port,
			Username:   cfg.SMTP.Username,
			Password:   cfg.SMTP.Password,
			From:       cfg.SMTP.From,
			FromName:   cfg.SMTP.FromName,
			TLSEnabled: cfg.SMTP.TLSEnabled,
		}, logger), nil
	case ChannelLark:
		return infraLark.NewMessenger(infraLark.Config{
			AppID:     cfg.Lark.AppID,
			AppSecret: cfg.Lark.AppSecret,
		}, logger), nil
	default:
		return nil, fmt.Errorf("unknown notification channel %q", cfg.Notification.Channel)
	}
}

// ProvideDispatcher creates the event dispatcher.
func ProvideDispatcher(cfg *NotificationConfig, logger *zap.Logger) dispatcher.Dispatcher {
	return dispatcher.NewDispatcher(
		dispatcher.WithLogger(utils.NewSugaredAdapter(logger)),
		dispatcher.WithWorkers(cfg.DispatcherWorkers),
		dispatcher.WithQueueSize(cfg.QueueSize),
	)
}

// NotificationDeps holds dependencies required for the notification service.
type NotificationDeps struct {
	Repos      *RepositoryBundle
	Sender     port.NotificationSender
	Dispatcher dispatcher.Dispatcher
	Config     *NotificationConfig
	Logger     *zap.Logger
}

// ProvideNotificationService creates the notifier and, in async mode,
// subscribes it to notification.requested events.
func ProvideNotificationService(deps *NotificationDeps) (service.NotificationService, error) {
	if deps == nil || deps.Repos == nil || deps.Sender == nil || deps.Dispatcher == nil || deps.Config == nil {
		return nil, fmt.Errorf("notification dependencies are incomplete")
	}

	notifier := service.NewNotificationService(
		email.NewRenderer(),
		deps.Sender,
		deps.Repos.Notification,
		utils.NewSugaredAdapter(deps.Logger),
		service.WithEventDispatcher(deps.Dispatcher),
		service.WithSendTimeout(deps.Config.SendTimeout),
		service.WithRetryPolicy(deps.Config.Retry.MaxAttempts, deps.Config.Retry.BatchSize),
	)

	if deps.Config.Async {
		deps.Dispatcher.SubscribeNamed(event.TypeNotificationRequested, "notifier", notifier.HandleNotificationRequested)
	}
	return notifier, nil
}

// WorkflowDeps holds dependencies required for creating the workflow engine.
type WorkflowDeps struct {
	Repos      *RepositoryBundle
	TxManager  port.TransactionManager
	Dispatcher dispatcher.Dispatcher
	Config     *WorkflowConfig
	Logger     *zap.Logger
}

// ProvideWorkflowEngine creates the workflow engine and subscribes the
// audit logger to the events it emits.
func ProvideWorkflowEngine(deps *WorkflowDeps) (workflow.WorkflowEngine, error) {
	if deps == nil {
		return nil, fmt.Errorf("workflow dependencies are required")
	}
	if deps.Repos == nil {
		return nil, fmt.Errorf("repositories are required")
	}
	if deps.TxManager == nil {
		return nil, fmt.Errorf("transaction manager is required")
	}
	if deps.Dispatcher == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}

	engine := workflow.NewEngine(
		deps.Repos.LeaveRequest,
		deps.Repos.History,
		deps.TxManager,
		workflow.WithDispatcher(deps.Dispatcher),
		workflow.WithLogger(utils.NewSugaredAdapter(deps.Logger)),
		workflow.WithLockTimeout(deps.Config.LockTimeout),
	)

	audit := auditLogHandler(deps.Logger)
	for _, t := range []event.Type{
		event.TypeLeaveSubmitted,
		event.TypeLeaveTransitioned,
		event.TypeNotificationDelivered,
		event.TypeNotificationFailed,
	} {
		deps.Dispatcher.SubscribeNamed(t, "audit_log", audit)
	}

	return engine, nil
}

// ProvideLeaveService creates the leave use-case facade.
func ProvideLeaveService(engine workflow.WorkflowEngine, notifier service.NotificationService, disp dispatcher.Dispatcher, cfg *Config, logger *zap.Logger) service.LeaveService {
	opts := []service.LeaveOption{
		service.WithPastStartRejected(cfg.Workflow.RejectPastStart),
	}
	if cfg.Notification.Async {
		opts = append(opts, service.WithAsyncNotifications(disp))
	}
	return service.NewLeaveService(engine, notifier, utils.NewSugaredAdapter(logger), opts...)
}

// ProvideWorkers creates the worker manager and registers the retry worker when enabled.
// Workers are registered but not started.
func ProvideWorkers(cfg *RetryConfig, notifier service.NotificationService, logger *zap.Logger) *worker.Manager {
	manager := worker.NewManager(logger)
	if cfg.Enabled {
		manager.Register(worker.NewNotificationRetryWorker(worker.RetryWorkerConfig{
			Interval: cfg.Interval,
		}, notifier, logger))
	}
	return manager
}

func auditLogHandler(logger *zap.Logger) dispatcher.Handler {
	return func(ctx context.Context, evt *event.Event) error {
		fields := []zap.Field{
			zap.String("event_id", evt.ID),
			zap.String("event_type", evt.Type.String()),
			zap.String("request_id", evt.RequestID),
			zap.String("correlation_id", evt.CorrelationID),
		}
		for _, key := range []string{event.KeyFrom, event.KeyTo, event.KeyAction, event.KeyStage, event.KeyMessageID, event.KeyError} {
			if v, ok := evt.Payload[key]; ok {
				fields = append(fields, zap.Any(key, v))
			}
		}
		logger.Info("Domain event", fields...)
		return nil
	}
}
