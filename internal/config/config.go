package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

// Config holds all application configuration
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Logger       LoggerConfig       `mapstructure:"logger"`
	Notification NotificationConfig `mapstructure:"notification"`
	SMTP         SMTPConfig         `mapstructure:"smtp"`
	Lark         LarkConfig         `mapstructure:"lark"`
	Tracing      TracingConfig      `mapstructure:"tracing"`
	Workflow     WorkflowConfig     `mapstructure:"workflow"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	BusyTimeout     time.Duration `mapstructure:"busy_timeout"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// NotificationConfig holds delivery configuration
type NotificationConfig struct {
	Channel           string        `mapstructure:"channel"` // log, smtp or lark
	Async             bool          `mapstructure:"async"`
	Timeout           time.Duration `mapstructure:"timeout"`
	DispatcherWorkers int           `mapstructure:"dispatcher_workers"`
	QueueSize         int           `mapstructure:"queue_size"`
	Retry             RetryConfig   `mapstructure:"retry"`
}

// RetryConfig holds retry worker configuration
type RetryConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	Interval    time.Duration `mapstructure:"interval"`
	MaxAttempts int           `mapstructure:"max_attempts"`
	BatchSize   int           `mapstructure:"batch_size"`
}

// SMTPConfig holds SMTP relay configuration
type SMTPConfig struct {
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	Username   string `mapstructure:"username"`
	Password   string `mapstructure:"password"`
	From       string `mapstructure:"from"`
	FromName   string `mapstructure:"from_name"`
	TLSEnabled bool   `mapstructure:"tls_enabled"`
}

// LarkConfig holds Lark app credentials
type LarkConfig struct {
	AppID     string `mapstructure:"app_id"`
	AppSecret string `mapstructure:"app_secret"`
}

// TracingConfig holds OpenTelemetry configuration
type TracingConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	ServiceName string `mapstructure:"service_name"`
}

// WorkflowConfig holds workflow engine configuration
type WorkflowConfig struct {
	LockTimeout     time.Duration `mapstructure:"lock_timeout"`
	RejectPastStart bool          `mapstructure:"reject_past_start"`
}

// Load reads .env (if present), the YAML file at configPath (if present) and
// the environment, in increasing precedence
func Load(configPath string) (*Config, error) {
	if err := gotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	bindEnvVars(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 3001)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	// Database defaults
	v.SetDefault("database.path", "data/leave.db")
	v.SetDefault("database.max_open_conns", 4)
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.conn_max_lifetime", 30*time.Minute)
	v.SetDefault("database.busy_timeout", 5*time.Second)

	// Logger defaults
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.output_path", "stdout")
	v.SetDefault("logger.format", "json")

	// Notification defaults
	v.SetDefault("notification.channel", "log")
	v.SetDefault("notification.async", false)
	v.SetDefault("notification.timeout", 30*time.Second)
	v.SetDefault("notification.dispatcher_workers", 2)
	v.SetDefault("notification.queue_size", 100)
	v.SetDefault("notification.retry.enabled", false)
	v.SetDefault("notification.retry.interval", time.Minute)
	v.SetDefault("notification.retry.max_attempts", 3)
	v.SetDefault("notification.retry.batch_size", 20)

	// SMTP defaults
	v.SetDefault("smtp.port", 587)
	v.SetDefault("smtp.from_name", "Leave Approval")
	v.SetDefault("smtp.tls_enabled", false)

	// Tracing defaults
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.service_name", "leave-approval")

	// Workflow defaults
	v.SetDefault("workflow.lock_timeout", 10*time.Second)
	v.SetDefault("workflow.reject_past_start", false)
}

// bindEnvVars binds the conventional variable names of the deployment
func bindEnvVars(v *viper.Viper) {
	_ = v.BindEnv("server.port", "PORT")
	_ = v.BindEnv("database.path", "DATABASE_PATH")
	_ = v.BindEnv("notification.channel", "NOTIFICATION_CHANNEL")

	// Sensitive credentials from environment
	_ = v.BindEnv("smtp.host", "SMTP_HOST")
	_ = v.BindEnv("smtp.port", "SMTP_PORT")
	_ = v.BindEnv("smtp.username", "SMTP_USER")
	_ = v.BindEnv("smtp.password", "SMTP_PASSWORD")
	_ = v.BindEnv("smtp.from", "SMTP_FROM")
	_ = v.BindEnv("lark.app_id", "LARK_APP_ID")
	_ = v.BindEnv("lark.app_secret", "LARK_APP_SECRET")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	switch c.Logger.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logger.format must be json or console")
	}
	if c.Notification.Timeout <= 0 {
		return fmt.Errorf("notification.timeout must be positive")
	}
	if c.Workflow.LockTimeout <= 0 {
		return fmt.Errorf("workflow.lock_timeout must be positive")
	}
	if c.Tracing.Enabled && c.Tracing.ServiceName == "" {
		return fmt.Errorf("tracing.service_name is required when tracing is enabled")
	}

	// channel-specific checks live with the container config
	return c.ToContainerConfig().Validate()
}
