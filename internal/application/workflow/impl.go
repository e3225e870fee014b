package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/garyjia/leave-approval/internal/application/dispatcher"
	"github.com/garyjia/leave-approval/internal/application/port"
	"github.com/garyjia/leave-approval/internal/domain/entity"
	"github.com/garyjia/leave-approval/internal/domain/event"
	domainwf "github.com/garyjia/leave-approval/internal/domain/workflow"
)

const tracerName = "github.com/garyjia/leave-approval/internal/application/workflow"

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// engineImpl is the concrete implementation of WorkflowEngine
type engineImpl struct {
	requestRepo port.LeaveRequestRepository
	historyRepo port.HistoryRepository
	txManager   port.TransactionManager
	machine     domainwf.StateMachine
	dispatcher  dispatcher.Dispatcher
	logger      Logger
	tracer      trace.Tracer

	locks       *keyedLocker
	lockTimeout time.Duration
	clock       func() time.Time
	newID       func() string
}

// EngineOption configures the workflow engine
type EngineOption func(*engineImpl)

// WithDispatcher sets the event dispatcher for emitting events
func WithDispatcher(d dispatcher.Dispatcher) EngineOption {
	return func(e *engineImpl) {
		e.dispatcher = d
	}
}

// WithLogger sets a logger for the engine
func WithLogger(l Logger) EngineOption {
	return func(e *engineImpl) {
		e.logger = l
	}
}

// WithMachine replaces the default leave transition table
func WithMachine(m domainwf.StateMachine) EngineOption {
	return func(e *engineImpl) {
		e.machine = m
	}
}

// WithClock overrides time.Now
func WithClock(clock func() time.Time) EngineOption {
	return func(e *engineImpl) {
		e.clock = clock
	}
}

// WithIDGenerator overrides uuid generation for new requests
func WithIDGenerator(gen func() string) EngineOption {
	return func(e *engineImpl) {
		e.newID = gen
	}
}

// WithLockTimeout bounds how long Act waits for another action on the same request
func WithLockTimeout(d time.Duration) EngineOption {
	return func(e *engineImpl) {
		e.lockTimeout = d
	}
}

// WithTracer sets the tracer used for engine spans
func WithTracer(t trace.Tracer) EngineOption {
	return func(e *engineImpl) {
		e.tracer = t
	}
}

// NewEngine creates a new workflow engine
func NewEngine(
	requestRepo port.LeaveRequestRepository,
	historyRepo port.HistoryRepository,
	txManager port.TransactionManager,
	opts ...EngineOption,
) WorkflowEngine {
	e := &engineImpl{
		requestRepo: requestRepo,
		historyRepo: historyRepo,
		txManager:   txManager,
		machine:     domainwf.LeaveStateMachine(),
		locks:       newKeyedLocker(),
		lockTimeout: 10 * time.Second,
		clock:       time.Now,
		newID:       uuid.NewString,
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.tracer == nil {
		e.tracer = otel.Tracer(tracerName)
	}

	return e
}

// Submit validates a draft and stores a new request awaiting the manager
func (e *engineImpl) Submit(ctx context.Context, draft entity.LeaveDraft) (*Result, error) {
	ctx, span := e.tracer.Start(ctx, "leave.submit")
	defer span.End()

	req, intent, err := domainwf.Submit(e.machine, draft, e.newID(), e.clock().UTC())
	if err != nil {
		span.SetStatus(codes.Error, "validation failed")
		return nil, err
	}
	span.SetAttributes(attribute.String("leave.request_id", req.ID))

	err = e.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := e.requestRepo.Create(txCtx, req); err != nil {
			return fmt.Errorf("failed to create leave request: %w", err)
		}
		if err := e.historyRepo.Append(txCtx, req.ID, req.History[0]); err != nil {
			return fmt.Errorf("failed to record submission: %w", err)
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	e.logInfo("Leave request submitted",
		"request_id", req.ID,
		"employee_email", req.EmployeeEmail,
		"manager_email", req.ManagerEmail,
	)

	e.emit(ctx, event.NewEvent(event.TypeLeaveSubmitted, req.ID, map[string]interface{}{
		event.KeyTo: domainwf.StateOf(req).String(),
	}))

	return &Result{Request: req.Clone(), Intent: intent}, nil
}

// Act applies the approver's action at stage to the request
func (e *engineImpl) Act(ctx context.Context, requestID string, stage entity.Stage, action entity.Action) (*Result, error) {
	ctx, span := e.tracer.Start(ctx, "leave.act", trace.WithAttributes(
		attribute.String("leave.request_id", requestID),
		attribute.String("leave.stage", stage.String()),
		attribute.String("leave.action", action.String()),
	))
	defer span.End()

	lockCtx, cancel := context.WithTimeout(ctx, e.lockTimeout)
	release, err := e.locks.Acquire(lockCtx, requestID)
	cancel()
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("request %s: %w: %w", requestID, ErrBusy, err)
	}
	defer release()

	var (
		previous domainwf.State
		next     *entity.LeaveRequest
		intent   entity.NotificationIntent
	)

	err = e.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		current, err := e.requestRepo.GetByID(txCtx, requestID)
		if err != nil {
			return err
		}
		previous = domainwf.StateOf(current)

		next, intent, err = domainwf.Apply(e.machine, current, stage, action, e.clock().UTC())
		if err != nil {
			return err
		}

		if err := e.requestRepo.Update(txCtx, next, current.Version); err != nil {
			return fmt.Errorf("failed to update leave request: %w", err)
		}
		if err := e.historyRepo.Append(txCtx, requestID, next.History[len(next.History)-1]); err != nil {
			return fmt.Errorf("failed to append history: %w", err)
		}
		return nil
	})
	if errors.Is(err, port.ErrConcurrentUpdate) {
		err = fmt.Errorf("%w: %w", ErrBusy, err)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if !isDomainError(err) {
			e.logError("Leave transition failed", "request_id", requestID, "error", err)
		}
		return nil, err
	}

	e.logInfo("Leave request transitioned",
		"request_id", requestID,
		"stage", stage,
		"action", action,
		"from", previous.String(),
		"to", domainwf.StateOf(next).String(),
	)

	e.emit(ctx, event.NewEvent(event.TypeLeaveTransitioned, requestID, map[string]interface{}{
		event.KeyFrom:   previous.String(),
		event.KeyTo:     domainwf.StateOf(next).String(),
		event.KeyStage:  stage,
		event.KeyAction: action,
	}))

	return &Result{Request: next.Clone(), Intent: intent}, nil
}

// Get returns the current snapshot of a request
func (e *engineImpl) Get(ctx context.Context, requestID string) (*entity.LeaveRequest, error) {
	return e.requestRepo.GetByID(ctx, requestID)
}

// List returns snapshots matching the filter
func (e *engineImpl) List(ctx context.Context, filter entity.ListFilter) ([]*entity.LeaveRequest, error) {
	if filter.Limit <= 0 {
		filter.Limit = 50
	}
	return e.requestRepo.List(ctx, filter)
}

func (e *engineImpl) Machine() domainwf.StateMachine {
	return e.machine
}

// emit publishes after commit; events never influence the committed state
func (e *engineImpl) emit(ctx context.Context, evt *event.Event) {
	if e.dispatcher == nil {
		return
	}
	e.dispatcher.DispatchAsync(context.WithoutCancel(ctx), evt)
}

func isDomainError(err error) bool {
	var (
		notFound *entity.NotFoundError
		invalid  *domainwf.InvalidTransitionError
	)
	return errors.As(err, &notFound) || errors.As(err, &invalid) || errors.Is(err, ErrBusy)
}

func (e *engineImpl) logInfo(msg string, kv ...interface{}) {
	if e.logger != nil {
		e.logger.Info(msg, kv...)
	}
}

func (e *engineImpl) logError(msg string, kv ...interface{}) {
	if e.logger != nil {
		e.logger.Error(msg, kv...)
	}
}
