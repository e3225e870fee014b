package config

import (
	"github.com/garyjia/leave-approval/internal/container"
)

// Version is reported by the health endpoints
var Version = "1.0.0"

// ToContainerConfig converts the application Config to a container.Config.
func (c *Config) ToContainerConfig() *container.Config {
	return &container.Config{
		Database: container.DatabaseConfig{
			Path:            c.Database.Path,
			MaxOpenConns:    c.Database.MaxOpenConns,
			MaxIdleConns:    c.Database.MaxIdleConns,
			ConnMaxLifetime: c.Database.ConnMaxLifetime,
			BusyTimeout:     c.Database.BusyTimeout,
		},
		Notification: container.NotificationConfig{
			Channel:           c.Notification.Channel,
			Async:             c.Notification.Async,
			SendTimeout:       c.Notification.Timeout,
			DispatcherWorkers: c.Notification.DispatcherWorkers,
			QueueSize:         c.Notification.QueueSize,
			Retry: container.RetryConfig{
				Enabled:     c.Notification.Retry.Enabled,
				Interval:    c.Notification.Retry.Interval,
				MaxAttempts: c.Notification.Retry.MaxAttempts,
				BatchSize:   c.Notification.Retry.BatchSize,
			},
		},
		SMTP: container.SMTPConfig{
			Host:       c.SMTP.Host,
			Port:       c.SMTP.Port,
			Username:   c.SMTP.Username,
			Password:   c.SMTP.Password,
			From:       c.SMTP.From,
			FromName:   c.SMTP.FromName,
			TLSEnabled: c.SMTP.TLSEnabled,
		},
		Lark: container.LarkConfig{
			AppID:     c.Lark.AppID,
			AppSecret: c.Lark.AppSecret,
		},
		Workflow: container.WorkflowConfig{
			LockTimeout:     c.Workflow.LockTimeout,
			RejectPastStart: c.Workflow.RejectPastStart,
		},
		Server: container.ServerConfig{
			Host:            c.Server.Host,
			Port:            c.Server.Port,
			ReadTimeout:     c.Server.ReadTimeout,
			WriteTimeout:    c.Server.WriteTimeout,
			ShutdownTimeout: c.Server.ShutdownTimeout,
			Version:         Version,
		},
	}
}
