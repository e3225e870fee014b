package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 3001, cfg.Server.Port)
	assert.Equal(t, "data/leave.db", cfg.Database.Path)
	assert.Equal(t, "log", cfg.Notification.Channel)
	assert.False(t, cfg.Notification.Async)
	assert.Equal(t, 30*time.Second, cfg.Notification.Timeout)
	assert.Equal(t, 3, cfg.Notification.Retry.MaxAttempts)
	assert.Equal(t, 10*time.Second, cfg.Workflow.LockTimeout)
	assert.Equal(t, "leave-approval", cfg.Tracing.ServiceName)
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 8081
notification:
  channel: smtp
  async: true
  timeout: 5s
  retry:
    enabled: true
    interval: 30s
smtp:
  host: smtp.corp.io
  port: 465
  tls_enabled: true
workflow:
  reject_past_start: true
`)
	t.Setenv("SMTP_PASSWORD", "from-env")
	t.Setenv("PORT", "9090")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port, "env wins over file")
	assert.Equal(t, "smtp", cfg.Notification.Channel)
	assert.True(t, cfg.Notification.Async)
	assert.Equal(t, 5*time.Second, cfg.Notification.Timeout)
	assert.True(t, cfg.Notification.Retry.Enabled)
	assert.Equal(t, 30*time.Second, cfg.Notification.Retry.Interval)
	assert.Equal(t, "smtp.corp.io", cfg.SMTP.Host)
	assert.Equal(t, 465, cfg.SMTP.Port)
	assert.True(t, cfg.SMTP.TLSEnabled)
	assert.Equal(t, "from-env", cfg.SMTP.Password)
	assert.True(t, cfg.Workflow.RejectPastStart)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{"smtp without host", "notification:\n  channel: smtp\n", "smtp.host"},
		{"unknown channel", "notification:\n  channel: fax\n", "notification.channel"},
		{"bad log format", "logger:\n  format: xml\n", "logger.format"},
		{"zero lock timeout", "workflow:\n  lock_timeout: 0s\n", "workflow.lock_timeout"},
		{"broken yaml", "server: [\n", "failed to read config file"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestToContainerConfig(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	cfg.Lark.AppID = "cli_x"
	cfg.Notification.Retry.BatchSize = 7

	cc := cfg.ToContainerConfig()

	assert.Equal(t, cfg.Database.Path, cc.Database.Path)
	assert.Equal(t, cfg.Notification.Timeout, cc.Notification.SendTimeout)
	assert.Equal(t, 7, cc.Notification.Retry.BatchSize)
	assert.Equal(t, "cli_x", cc.Lark.AppID)
	assert.Equal(t, Version, cc.Server.Version)
	assert.NoError(t, cc.Validate())
}
