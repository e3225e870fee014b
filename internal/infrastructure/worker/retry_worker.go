package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Retrier re-delivers failed notifications and reports how many went through
type Retrier interface {
	RetryFailed(ctx context.Context) (int, error)
}

// RetryWorkerConfig holds configuration for the notification retry worker
type RetryWorkerConfig struct {
	Interval   time.Duration
	RunTimeout time.Duration
}

// DefaultRetryWorkerConfig returns default configuration
func DefaultRetryWorkerConfig() RetryWorkerConfig {
	return RetryWorkerConfig{
		Interval:   time.Minute,
		RunTimeout: 2 * time.Minute,
	}
}

// RetryStats is a snapshot of the worker's counters
type RetryStats struct {
	Runs      int       `json:"runs"`
	Delivered int       `json:"delivered"`
	LastRun   time.Time `json:"last_run"`
	LastError string    `json:"last_error,omitempty"`
}

// NotificationRetryWorker periodically re-delivers failed notifications
type NotificationRetryWorker struct {
	config  RetryWorkerConfig
	retrier Retrier
	logger  *zap.Logger

	mu      sync.RWMutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
	stats   RetryStats
}

// NewNotificationRetryWorker creates a retry worker
func NewNotificationRetryWorker(config RetryWorkerConfig, retrier Retrier, logger *zap.Logger) *NotificationRetryWorker {
	defaults := DefaultRetryWorkerConfig()
	if config.Interval <= 0 {
		config.Interval = defaults.Interval
	}
	if config.RunTimeout <= 0 {
		config.RunTimeout = defaults.RunTimeout
	}
	return &NotificationRetryWorker{
		config:  config,
		retrier: retrier,
		logger:  logger,
	}
}

// Start begins the polling loop in the background
func (w *NotificationRetryWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return fmt.Errorf("notification retry worker already running")
	}

	loopCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.done = make(chan struct{})
	w.running = true

	w.logger.Info("NotificationRetryWorker started",
		zap.Duration("interval", w.config.Interval))

	go w.pollLoop(loopCtx, w.done)
	return nil
}

// Stop cancels the loop and waits for an in-flight run to finish
func (w *NotificationRetryWorker) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false
	cancel, done := w.cancel, w.done
	w.mu.Unlock()

	cancel()
	<-done

	stats := w.Stats()
	w.logger.Info("NotificationRetryWorker stopped",
		zap.Int("runs", stats.Runs),
		zap.Int("delivered", stats.Delivered))
	return nil
}

// Name returns the worker name for identification
func (w *NotificationRetryWorker) Name() string {
	return "NotificationRetryWorker"
}

// Stats returns a copy of the counters
func (w *NotificationRetryWorker) Stats() RetryStats {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.stats
}

func (w *NotificationRetryWorker) pollLoop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

func (w *NotificationRetryWorker) runOnce(ctx context.Context) {
	runCtx, cancel := context.WithTimeout(ctx, w.config.RunTimeout)
	defer cancel()

	delivered, err := w.retrier.RetryFailed(runCtx)

	w.mu.Lock()
	w.stats.Runs++
	w.stats.Delivered += delivered
	w.stats.LastRun = time.Now()
	w.stats.LastError = ""
	if err != nil {
		w.stats.LastError = err.Error()
	}
	w.mu.Unlock()

	if err != nil {
		w.logger.Error("Failed to retry notifications", zap.Error(err))
		return
	}
	if delivered > 0 {
		w.logger.Info("Retried notifications delivered", zap.Int("delivered", delivered))
	}
}
