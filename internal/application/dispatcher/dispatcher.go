package dispatcher

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/garyjia/leave-approval/internal/domain/event"
)

// Dispatcher routes events to registered handlers
type Dispatcher interface {
	// Subscribe registers a handler for an event type
	Subscribe(eventType event.Type, handler Handler)

	// SubscribeNamed registers a handler with a name used in logs
	SubscribeNamed(eventType event.Type, name string, handler Handler)

	// Dispatch runs all handlers in registration order and stops at the first error
	Dispatch(ctx context.Context, evt *event.Event) error

	// DispatchAsync queues the event for the worker pool. Handlers of one
	// event run in registration order on a single worker; errors are logged.
	// Called from inside an async handler it never waits for queue space:
	// when the queue is full the event is handled inline on that worker.
	DispatchAsync(ctx context.Context, evt *event.Event)

	// ListHandlers returns registered handlers for an event type
	ListHandlers(eventType event.Type) []HandlerInfo

	// Close stops accepting events and drains the queue
	Close() error
}

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

type job struct {
	ctx context.Context
	evt *event.Event
}

// workerKey marks contexts handed to async handlers by a given dispatcher
type workerKey struct{}

// eventDispatcher is the concrete implementation of Dispatcher
type eventDispatcher struct {
	mu       sync.RWMutex
	handlers map[event.Type][]HandlerInfo
	logger   Logger

	workers   int
	queueSize int
	queue     chan job

	// sendMu guards queue against being closed while a sender is blocked on it
	sendMu sync.RWMutex
	wg     sync.WaitGroup
	closed atomic.Bool
}

// Option configures the dispatcher
type Option func(*eventDispatcher)

// WithLogger sets a logger for the dispatcher
func WithLogger(logger Logger) Option {
	return func(d *eventDispatcher) {
		d.logger = logger
	}
}

// WithWorkers sets the number of goroutines serving DispatchAsync
func WithWorkers(n int) Option {
	return func(d *eventDispatcher) {
		if n > 0 {
			d.workers = n
		}
	}
}

// WithQueueSize sets how many async events may wait before DispatchAsync blocks
func WithQueueSize(n int) Option {
	return func(d *eventDispatcher) {
		if n >= 0 {
			d.queueSize = n
		}
	}
}

// NewDispatcher creates a dispatcher and starts its workers
func NewDispatcher(opts ...Option) Dispatcher {
	d := &eventDispatcher{
		handlers:  make(map[event.Type][]HandlerInfo),
		workers:   4,
		queueSize: 256,
	}

	for _, opt := range opts {
		opt(d)
	}

	d.queue = make(chan job, d.queueSize)
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.work()
	}

	return d
}

// Subscribe registers a handler for an event type with an auto-generated name
func (d *eventDispatcher) Subscribe(eventType event.Type, handler Handler) {
	d.mu.RLock()
	name := fmt.Sprintf("%s-handler-%d", eventType, len(d.handlers[eventType]))
	d.mu.RUnlock()
	d.SubscribeNamed(eventType, name, handler)
}

// SubscribeNamed registers a handler with a specific name
func (d *eventDispatcher) SubscribeNamed(eventType event.Type, name string, handler Handler) {
	d.mu.Lock()
	d.handlers[eventType] = append(d.handlers[eventType], HandlerInfo{
		Name:      name,
		EventType: eventType,
		Handler:   handler,
	})
	d.mu.Unlock()

	d.logInfo("Handler registered", "event_type", eventType, "handler_name", name)
}

// Dispatch runs handlers synchronously
func (d *eventDispatcher) Dispatch(ctx context.Context, evt *event.Event) error {
	if d.closed.Load() {
		return fmt.Errorf("dispatcher is closed")
	}

	for _, info := range d.snapshot(evt.Type) {
		if err := d.safeExecute(ctx, evt, info); err != nil {
			d.logError("Handler error",
				"event_type", evt.Type,
				"event_id", evt.ID,
				"handler_name", info.Name,
				"error", err,
			)
			return fmt.Errorf("handler %s failed: %w", info.Name, err)
		}
	}

	return nil
}

// DispatchAsync queues the event; outside of handlers it blocks only while the queue is full
func (d *eventDispatcher) DispatchAsync(ctx context.Context, evt *event.Event) {
	if d.onWorker(ctx) {
		d.dispatchFromWorker(ctx, evt)
		return
	}

	d.sendMu.RLock()
	defer d.sendMu.RUnlock()

	if d.closed.Load() {
		d.logError("Cannot dispatch async event, dispatcher is closed",
			"event_type", evt.Type,
			"event_id", evt.ID,
		)
		return
	}

	select {
	case d.queue <- job{ctx: ctx, evt: evt}:
	case <-ctx.Done():
		d.logError("Async event dropped, context done before queueing",
			"event_type", evt.Type,
			"event_id", evt.ID,
			"error", ctx.Err(),
		)
	}
}

// dispatchFromWorker enqueues without waiting. Workers are the only consumers
// of the queue, so a worker blocked on a full queue could never be released.
// TryRLock fails while Close is pending; the worker is draining then anyway.
func (d *eventDispatcher) dispatchFromWorker(ctx context.Context, evt *event.Event) {
	if d.sendMu.TryRLock() {
		queued := false
		if !d.closed.Load() {
			select {
			case d.queue <- job{ctx: ctx, evt: evt}:
				queued = true
			default:
			}
		}
		d.sendMu.RUnlock()
		if queued {
			return
		}
	}

	d.logInfo("Queue unavailable, handling event inline",
		"event_type", evt.Type,
		"event_id", evt.ID,
	)
	d.run(ctx, evt)
}

func (d *eventDispatcher) onWorker(ctx context.Context) bool {
	owner, _ := ctx.Value(workerKey{}).(*eventDispatcher)
	return owner == d
}

// ListHandlers returns registered handlers for an event type
func (d *eventDispatcher) ListHandlers(eventType event.Type) []HandlerInfo {
	handlers := d.snapshot(eventType)
	for i := range handlers {
		handlers[i].Handler = nil
	}
	return handlers
}

// Close stops accepting events and waits until queued events are handled
func (d *eventDispatcher) Close() error {
	d.sendMu.Lock()
	if !d.closed.CompareAndSwap(false, true) {
		d.sendMu.Unlock()
		return fmt.Errorf("dispatcher already closed")
	}
	close(d.queue)
	d.sendMu.Unlock()

	d.logInfo("Closing dispatcher, draining queue")
	d.wg.Wait()
	d.logInfo("Dispatcher closed")

	return nil
}

func (d *eventDispatcher) work() {
	defer d.wg.Done()

	for j := range d.queue {
		d.run(context.WithValue(j.ctx, workerKey{}, d), j.evt)
	}
}

// run executes every handler of evt and logs failures
func (d *eventDispatcher) run(ctx context.Context, evt *event.Event) {
	for _, info := range d.snapshot(evt.Type) {
		if err := d.safeExecute(ctx, evt, info); err != nil {
			d.logError("Async handler error",
				"event_type", evt.Type,
				"event_id", evt.ID,
				"handler_name", info.Name,
				"error", err,
			)
		}
	}
}

func (d *eventDispatcher) snapshot(eventType event.Type) []HandlerInfo {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]HandlerInfo(nil), d.handlers[eventType]...)
}

// safeExecute runs a handler with panic recovery
func (d *eventDispatcher) safeExecute(ctx context.Context, evt *event.Event, info HandlerInfo) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
			d.logError("Handler panic recovered",
				"event_type", evt.Type,
				"event_id", evt.ID,
				"handler_name", info.Name,
				"panic", r,
			)
		}
	}()

	return info.Handler(ctx, evt)
}

func (d *eventDispatcher) logInfo(msg string, kv ...interface{}) {
	if d.logger != nil {
		d.logger.Info(msg, kv...)
	}
}

func (d *eventDispatcher) logError(msg string, kv ...interface{}) {
	if d.logger != nil {
		d.logger.Error(msg, kv...)
	}
}
