// Package container wires the leave approval service together and owns the
// start and shutdown order of its components.
package container

import (
	"fmt"
	"time"
)

// Notification channels
const (
	ChannelLog  = "log"
	ChannelSMTP = "smtp"
	ChannelLark = "lark"
)

// Config holds all configuration for the Container.
type Config struct {
	Database     DatabaseConfig
	Notification NotificationConfig
	SMTP         SMTPConfig
	Lark         LarkConfig
	Workflow     WorkflowConfig
	Server       ServerConfig
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// Path to the SQLite database file, or ":memory:"
	Path string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	BusyTimeout     time.Duration
}

// NotificationConfig selects the delivery channel and mode.
type NotificationConfig struct {
	// Channel is one of log, smtp or lark
	Channel string

	// Async delivers through the event dispatcher instead of inline
	Async bool

	// SendTimeout bounds one transport call
	SendTimeout time.Duration

	DispatcherWorkers int
	QueueSize         int

	Retry RetryConfig
}

// RetryConfig controls the failed-notification retry worker.
type RetryConfig struct {
	Enabled     bool
	Interval    time.Duration
	MaxAttempts int
	BatchSize   int
}

// SMTPConfig holds SMTP relay settings.
type SMTPConfig struct {
	Host       string
	Port       int
	Username   string
	Password   string
	From       string
	FromName   string
	TLSEnabled bool
}

// LarkConfig holds Lark app credentials.
type LarkConfig struct {
	AppID     string
	AppSecret string
}

// WorkflowConfig holds workflow engine settings.
type WorkflowConfig struct {
	// LockTimeout bounds the wait for a per-request lock
	LockTimeout time.Duration

	// RejectPastStart refuses drafts starting before today
	RejectPastStart bool
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	Version         string
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:            "data/leave.db",
			MaxOpenConns:    4,
			MaxIdleConns:    2,
			ConnMaxLifetime: 30 * time.Minute,
			BusyTimeout:     5 * time.Second,
		},
		Notification: NotificationConfig{
			Channel:           ChannelLog,
			SendTimeout:       30 * time.Second,
			DispatcherWorkers: 2,
			QueueSize:         100,
			Retry: RetryConfig{
				Interval:    time.Minute,
				MaxAttempts: 3,
				BatchSize:   20,
			},
		},
		SMTP: SMTPConfig{
			Port:     587,
			FromName: "Leave Approval",
		},
		Workflow: WorkflowConfig{
			LockTimeout: 10 * time.Second,
		},
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            3001,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			Version:         "1.0.0",
		},
	}
}

// Validate checks that required configuration values are present.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	switch c.Notification.Channel {
	case ChannelLog:
	case ChannelSMTP:
		if c.SMTP.Host == "" {
			return fmt.Errorf("smtp.host is required for the smtp channel")
		}
		if c.SMTP.Port <= 0 {
			return fmt.Errorf("smtp.port must be positive")
		}
	case ChannelLark:
		if c.Lark.AppID == "" || c.Lark.AppSecret == "" {
			return fmt.Errorf("lark.app_id and lark.app_secret are required for the lark channel")
		}
	default:
		return fmt.Errorf("notification.channel must be one of log, smtp, lark; got %q", c.Notification.Channel)
	}

	if c.Notification.Retry.Enabled {
		if c.Notification.Retry.Interval <= 0 {
			return fmt.Errorf("notification.retry.interval must be positive")
		}
		if c.Notification.Retry.MaxAttempts < 2 {
			return fmt.Errorf("notification.retry.max_attempts must be at least 2 when retry is enabled")
		}
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}

	return nil
}
