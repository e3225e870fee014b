package workflow

import (
	"context"
	"errors"

	"github.com/garyjia/leave-approval/internal/domain/entity"
	domainwf "github.com/garyjia/leave-approval/internal/domain/workflow"
)

// ErrBusy is returned by Act when the request is locked by another action
// or was changed by another writer between read and update
var ErrBusy = errors.New("leave request is busy")

// Result is the committed snapshot of a request plus the one notification it triggers
type Result struct {
	Request *entity.LeaveRequest
	Intent  entity.NotificationIntent
}

// WorkflowEngine owns the leave request lifecycle
type WorkflowEngine interface {
	// Submit validates a draft and stores a new request awaiting the manager
	Submit(ctx context.Context, draft entity.LeaveDraft) (*Result, error)

	// Act applies the approver's action at stage to the request
	Act(ctx context.Context, requestID string, stage entity.Stage, action entity.Action) (*Result, error)

	// Get returns the current snapshot of a request
	Get(ctx context.Context, requestID string) (*entity.LeaveRequest, error)

	// List returns snapshots matching the filter
	List(ctx context.Context, filter entity.ListFilter) ([]*entity.LeaveRequest, error)

	// Machine exposes the transition table, e.g. to report permitted actions
	Machine() domainwf.StateMachine
}
