package utils

import (
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string // debug, info, warn, error
	OutputPath string // stdout, stderr, or file path
	Format     string // json or console
	Service    string // attached to every entry when set
}

// NewLogger creates a structured logger; unknown levels fall back to info
func NewLogger(cfg LoggerConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	sink, err := openSink(cfg.OutputPath)
	if err != nil {
		return nil, err
	}

	core := zapcore.NewCore(newEncoder(cfg.Format), sink, level)

	opts := []zap.Option{zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel)}
	if cfg.Service != "" {
		opts = append(opts, zap.Fields(zap.String("service", cfg.Service)))
	}
	return zap.New(core, opts...), nil
}

func newEncoder(format string) zapcore.Encoder {
	if format == "json" {
		ec := zap.NewProductionEncoderConfig()
		ec.TimeKey = "timestamp"
		ec.EncodeTime = zapcore.ISO8601TimeEncoder
		return zapcore.NewJSONEncoder(ec)
	}

	ec := zap.NewDevelopmentEncoderConfig()
	ec.TimeKey = "timestamp"
	ec.EncodeTime = zapcore.ISO8601TimeEncoder
	ec.EncodeLevel = zapcore.CapitalColorLevelEncoder
	return zapcore.NewConsoleEncoder(ec)
}

// openSink resolves stdout/stderr or appends to a file, creating its directory
func openSink(path string) (zapcore.WriteSyncer, error) {
	switch path {
	case "stdout", "":
		return zapcore.Lock(os.Stdout), nil
	case "stderr":
		return zapcore.Lock(os.Stderr), nil
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	return zapcore.AddSync(file), nil
}

// NewDevelopmentLogger creates a console logger at debug level
func NewDevelopmentLogger() (*zap.Logger, error) {
	return NewLogger(LoggerConfig{
		Level:      "debug",
		OutputPath: "stdout",
		Format:     "console",
	})
}

// SugaredAdapter exposes a zap logger through the Info/Error key-value
// interface the application layer depends on
type SugaredAdapter struct {
	sugar *zap.SugaredLogger
}

// NewSugaredAdapter wraps logger
func NewSugaredAdapter(logger *zap.Logger) *SugaredAdapter {
	return &SugaredAdapter{sugar: logger.WithOptions(zap.AddCallerSkip(1)).Sugar()}
}

// Info logs msg with alternating keys and values
func (a *SugaredAdapter) Info(msg string, keysAndValues ...interface{}) {
	a.sugar.Infow(msg, keysAndValues...)
}

// Error logs msg with alternating keys and values
func (a *SugaredAdapter) Error(msg string, keysAndValues ...interface{}) {
	a.sugar.Errorw(msg, keysAndValues...)
}
