package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/garyjia/leave-approval/internal/application/port"
	"github.com/garyjia/leave-approval/internal/domain/entity"
	"github.com/garyjia/leave-approval/internal/infrastructure/persistence/sqlite"
)

// ErrConcurrentUpdate is returned when the stored version moved since the request was read
var ErrConcurrentUpdate = port.ErrConcurrentUpdate

const leaveColumns = `
	id, employee_name, employee_email, manager_email, director_email,
	start_date, end_date, reason, status, current_stage, version,
	submitted_at, updated_at
`

// LeaveRequestRepository implements port.LeaveRequestRepository
type LeaveRequestRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewLeaveRequestRepository creates a new leave request repository
func NewLeaveRequestRepository(db *sql.DB, logger *zap.Logger) *LeaveRequestRepository {
	return &LeaveRequestRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts the request row
func (r *LeaveRequestRepository) Create(ctx context.Context, req *entity.LeaveRequest) error {
	query := `
		INSERT INTO leave_requests (` + leaveColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query,
		req.ID,
		req.EmployeeName,
		req.EmployeeEmail,
		req.ManagerEmail,
		req.DirectorEmail,
		req.StartDate,
		req.EndDate,
		req.Reason,
		req.Status,
		req.CurrentStage,
		req.Version,
		req.SubmittedAt.UTC(),
		req.UpdatedAt.UTC(),
	)
	if err != nil {
		r.logger.Error("Failed to create leave request", zap.String("id", req.ID), zap.Error(err))
		return fmt.Errorf("failed to create leave request: %w", err)
	}

	return nil
}

// GetByID retrieves a request with its history
func (r *LeaveRequestRepository) GetByID(ctx context.Context, id string) (*entity.LeaveRequest, error) {
	exec := sqlite.ExecutorFrom(ctx, r.db)
	query := `SELECT ` + leaveColumns + ` FROM leave_requests WHERE id = ?`

	req, err := scanLeaveRequest(exec.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &entity.NotFoundError{ID: id}
	}
	if err != nil {
		r.logger.Error("Failed to get leave request", zap.String("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get leave request: %w", err)
	}

	history, err := loadHistory(ctx, exec, id)
	if err != nil {
		return nil, err
	}
	req.History = history[id]

	return req, nil
}

// Update writes status, stage, version and updated_at if the stored version is expectedVersion
func (r *LeaveRequestRepository) Update(ctx context.Context, req *entity.LeaveRequest, expectedVersion int) error {
	query := `
		UPDATE leave_requests
		SET status = ?, current_stage = ?, version = ?, updated_at = ?
		WHERE id = ? AND version = ?
	`

	result, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query,
		req.Status,
		req.CurrentStage,
		req.Version,
		req.UpdatedAt.UTC(),
		req.ID,
		expectedVersion,
	)
	if err != nil {
		r.logger.Error("Failed to update leave request", zap.String("id", req.ID), zap.Error(err))
		return fmt.Errorf("failed to update leave request: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: id=%s version=%d", ErrConcurrentUpdate, req.ID, expectedVersion)
	}

	return nil
}

// List returns requests matching the filter, newest first
func (r *LeaveRequestRepository) List(ctx context.Context, filter entity.ListFilter) ([]*entity.LeaveRequest, error) {
	var (
		where []string
		args  []interface{}
	)
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, filter.Status)
	}
	if filter.Stage != "" {
		where = append(where, "current_stage = ?")
		args = append(args, filter.Stage)
	}

	query := `SELECT ` + leaveColumns + ` FROM leave_requests`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY submitted_at DESC, id DESC LIMIT ? OFFSET ?`
	args = append(args, filter.Limit, filter.Offset)

	exec := sqlite.ExecutorFrom(ctx, r.db)
	rows, err := exec.QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list leave requests", zap.Error(err))
		return nil, fmt.Errorf("failed to list leave requests: %w", err)
	}

	var (
		requests []*entity.LeaveRequest
		ids      []string
	)
	for rows.Next() {
		req, err := scanLeaveRequest(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan leave request: %w", err)
		}
		requests = append(requests, req)
		ids = append(ids, req.ID)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	history, err := loadHistory(ctx, exec, ids...)
	if err != nil {
		return nil, err
	}
	for _, req := range requests {
		req.History = history[req.ID]
	}

	return requests, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanLeaveRequest(row rowScanner) (*entity.LeaveRequest, error) {
	var req entity.LeaveRequest
	err := row.Scan(
		&req.ID,
		&req.EmployeeName,
		&req.EmployeeEmail,
		&req.ManagerEmail,
		&req.DirectorEmail,
		&req.StartDate,
		&req.EndDate,
		&req.Reason,
		&req.Status,
		&req.CurrentStage,
		&req.Version,
		&req.SubmittedAt,
		&req.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &req, nil
}

// Verify interface compliance
var _ port.LeaveRequestRepository = (*LeaveRequestRepository)(nil)
