package service

import (
	"context"
	"errors"
	"time"

	"github.com/garyjia/leave-approval/internal/application/dispatcher"
	"github.com/garyjia/leave-approval/internal/application/workflow"
	"github.com/garyjia/leave-approval/internal/domain/entity"
	"github.com/garyjia/leave-approval/internal/domain/event"
	domainwf "github.com/garyjia/leave-approval/internal/domain/workflow"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// ActionResult is a committed state change plus what happened to its notification.
// Warning is set when delivery failed; the change itself stands.
type ActionResult struct {
	Request  *entity.LeaveRequest      `json:"request"`
	Intent   entity.NotificationIntent `json:"intent"`
	Delivery *entity.DeliveryResult    `json:"delivery,omitempty"`
	Queued   bool                      `json:"queued,omitempty"`
	Warning  string                    `json:"warning,omitempty"`
}

// LeaveService is the use-case facade over the workflow engine and the notifier
type LeaveService interface {
	Submit(ctx context.Context, draft entity.LeaveDraft) (*ActionResult, error)
	Act(ctx context.Context, requestID string, stage entity.Stage, action entity.Action) (*ActionResult, error)
	Approve(ctx context.Context, requestID string, stage entity.Stage) (*ActionResult, error)
	Reject(ctx context.Context, requestID string, stage entity.Stage) (*ActionResult, error)
	Get(ctx context.Context, requestID string) (*entity.LeaveRequest, error)
	List(ctx context.Context, filter entity.ListFilter) ([]*entity.LeaveRequest, error)
	History(ctx context.Context, requestID string) ([]entity.HistoryEntry, error)
	Notifications(ctx context.Context, requestID string) ([]*entity.NotificationRecord, error)
}

type leaveServiceImpl struct {
	engine   workflow.WorkflowEngine
	notifier NotificationService
	logger   Logger

	// async is set when intents go through the dispatcher instead of Deliver
	async           dispatcher.Dispatcher
	rejectPastStart bool
	clock           func() time.Time
}

// LeaveOption configures the leave service
type LeaveOption func(*leaveServiceImpl)

// WithAsyncNotifications publishes notification.requested events instead of delivering inline
func WithAsyncNotifications(d dispatcher.Dispatcher) LeaveOption {
	return func(s *leaveServiceImpl) {
		s.async = d
	}
}

// WithPastStartRejected refuses drafts whose start date lies before today
func WithPastStartRejected(reject bool) LeaveOption {
	return func(s *leaveServiceImpl) {
		s.rejectPastStart = reject
	}
}

// WithLeaveClock overrides time.Now for the past-start check
func WithLeaveClock(clock func() time.Time) LeaveOption {
	return func(s *leaveServiceImpl) {
		s.clock = clock
	}
}

// NewLeaveService creates a new LeaveService
func NewLeaveService(
	engine workflow.WorkflowEngine,
	notifier NotificationService,
	logger Logger,
	opts ...LeaveOption,
) LeaveService {
	s := &leaveServiceImpl{
		engine:   engine,
		notifier: notifier,
		logger:   logger,
		clock:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit creates a request and notifies the manager
func (s *leaveServiceImpl) Submit(ctx context.Context, draft entity.LeaveDraft) (*ActionResult, error) {
	if s.rejectPastStart && !draft.StartDate.IsZero() {
		today := entity.DateOf(s.clock())
		if draft.StartDate.Before(today) {
			verr := &entity.ValidationError{}
			if err := draft.Validate(); err != nil {
				errors.As(err, &verr)
			}
			verr.Add("start_date", "must not be in the past")
			return nil, verr
		}
	}

	res, err := s.engine.Submit(ctx, draft)
	if err != nil {
		return nil, err
	}
	return s.notify(ctx, res), nil
}

// Act applies an approver decision and notifies the next participant
func (s *leaveServiceImpl) Act(ctx context.Context, requestID string, stage entity.Stage, action entity.Action) (*ActionResult, error) {
	res, err := s.engine.Act(ctx, requestID, stage, action)
	if err != nil {
		if !isExpected(err) {
			s.logger.Error("Failed to act on leave request", "error", err, "request_id", requestID, "stage", stage, "action", action)
		}
		return nil, err
	}
	return s.notify(ctx, res), nil
}

// Approve is Act with the approve action
func (s *leaveServiceImpl) Approve(ctx context.Context, requestID string, stage entity.Stage) (*ActionResult, error) {
	return s.Act(ctx, requestID, stage, entity.ActionApprove)
}

// Reject is Act with the reject action
func (s *leaveServiceImpl) Reject(ctx context.Context, requestID string, stage entity.Stage) (*ActionResult, error) {
	return s.Act(ctx, requestID, stage, entity.ActionReject)
}

// Get retrieves a request with its history
func (s *leaveServiceImpl) Get(ctx context.Context, requestID string) (*entity.LeaveRequest, error) {
	req, err := s.engine.Get(ctx, requestID)
	if err != nil {
		if !isExpected(err) {
			s.logger.Error("Failed to get leave request", "error", err, "request_id", requestID)
		}
		return nil, err
	}
	return req, nil
}

// List retrieves a page of requests
func (s *leaveServiceImpl) List(ctx context.Context, filter entity.ListFilter) ([]*entity.LeaveRequest, error) {
	reqs, err := s.engine.List(ctx, filter)
	if err != nil {
		s.logger.Error("Failed to list leave requests", "error", err, "status", filter.Status, "stage", filter.Stage)
		return nil, err
	}
	return reqs, nil
}

// History returns the audit trail of a request
func (s *leaveServiceImpl) History(ctx context.Context, requestID string) ([]entity.HistoryEntry, error) {
	req, err := s.Get(ctx, requestID)
	if err != nil {
		return nil, err
	}
	return req.History, nil
}

// Notifications returns the delivery log of a request
func (s *leaveServiceImpl) Notifications(ctx context.Context, requestID string) ([]*entity.NotificationRecord, error) {
	if _, err := s.Get(ctx, requestID); err != nil {
		return nil, err
	}
	return s.notifier.ListByRequest(ctx, requestID)
}

func (s *leaveServiceImpl) notify(ctx context.Context, res *workflow.Result) *ActionResult {
	out := &ActionResult{Request: res.Request, Intent: res.Intent}

	if s.async != nil {
		s.async.DispatchAsync(context.WithoutCancel(ctx), event.NewNotificationRequested(res.Intent, res.Request.ID))
		out.Queued = true
		return out
	}

	delivery, err := s.notifier.Deliver(ctx, res.Intent)
	if err != nil {
		out.Warning = err.Error()
		return out
	}
	out.Delivery = delivery
	return out
}

func isExpected(err error) bool {
	var verr *entity.ValidationError
	return errors.Is(err, entity.ErrNotFound) ||
		errors.Is(err, domainwf.ErrInvalidTransition) ||
		errors.Is(err, workflow.ErrBusy) ||
		errors.As(err, &verr)
}
