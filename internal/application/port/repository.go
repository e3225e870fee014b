package port

import (
	"context"
	"errors"

	"github.com/garyjia/leave-approval/internal/domain/entity"
)

// ErrConcurrentUpdate is returned by LeaveRequestRepository.Update when the
// stored version moved since the request was read
var ErrConcurrentUpdate = errors.New("leave request was modified concurrently")

// LeaveRequestRepository defines persistence operations for LeaveRequest.
// Requests returned by GetByID and List carry their full history.
type LeaveRequestRepository interface {
	// Create stores a new request row; history is written through HistoryRepository
	Create(ctx context.Context, req *entity.LeaveRequest) error

	// GetByID returns the request or an *entity.NotFoundError
	GetByID(ctx context.Context, id string) (*entity.LeaveRequest, error)

	// Update persists status, stage and version of req if the stored version
	// still equals expectedVersion
	Update(ctx context.Context, req *entity.LeaveRequest, expectedVersion int) error

	// List returns requests matching the filter, newest first
	List(ctx context.Context, filter entity.ListFilter) ([]*entity.LeaveRequest, error)
}

// HistoryRepository defines persistence operations for the append-only audit trail
type HistoryRepository interface {
	Append(ctx context.Context, requestID string, entry entity.HistoryEntry) error
	ListByRequestID(ctx context.Context, requestID string) ([]entity.HistoryEntry, error)
}

// NotificationRepository defines persistence operations for the notification log
type NotificationRepository interface {
	Create(ctx context.Context, record *entity.NotificationRecord) error
	UpdateResult(ctx context.Context, record *entity.NotificationRecord) error
	ListByRequestID(ctx context.Context, requestID string) ([]*entity.NotificationRecord, error)
	ListFailed(ctx context.Context, maxAttempts, limit int) ([]*entity.NotificationRecord, error)
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// Pinger reports store liveness for health checks
type Pinger interface {
	PingContext(ctx context.Context) error
}
