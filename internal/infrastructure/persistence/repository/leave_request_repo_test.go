package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/leave-approval/internal/domain/entity"
)

var (
	repoNow     = time.Date(2026, time.October, 1, 9, 0, 0, 0, time.UTC)
	leaveFields = []string{
		"id", "employee_name", "employee_email", "manager_email", "director_email",
		"start_date", "end_date", "reason", "status", "current_stage", "version",
		"submitted_at", "updated_at",
	}
	historyFields = []string{"request_id", "seq", "stage", "outcome", "note", "timestamp"}
)

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func sampleRequest() *entity.LeaveRequest {
	return &entity.LeaveRequest{
		ID:            "req-1",
		EmployeeName:  "Employee",
		EmployeeEmail: "e@corp.io",
		ManagerEmail:  "m@corp.io",
		DirectorEmail: "d@corp.io",
		StartDate:     entity.NewDate(2026, time.October, 20),
		EndDate:       entity.NewDate(2026, time.October, 24),
		Reason:        "holiday",
		Status:        entity.StatusPending,
		CurrentStage:  entity.StageManager,
		Version:       1,
		SubmittedAt:   repoNow,
		UpdatedAt:     repoNow,
	}
}

func leaveRow(rows *sqlmock.Rows, id string, status, stage string, version int) *sqlmock.Rows {
	return rows.AddRow(id, "Employee", "e@corp.io", "m@corp.io", "d@corp.io",
		"2026-10-20", "2026-10-24", "holiday", status, stage, version, repoNow, repoNow)
}

func TestLeaveRequestRepository_Create(t *testing.T) {
	db, mock := newMock(t)
	repo := NewLeaveRequestRepository(db, zap.NewNop())
	req := sampleRequest()

	mock.ExpectExec("INSERT INTO leave_requests").
		WithArgs("req-1", "Employee", "e@corp.io", "m@corp.io", "d@corp.io",
			"2026-10-20", "2026-10-24", "holiday", "pending", "manager", 1,
			sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Create(context.Background(), req))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLeaveRequestRepository_CreateError(t *testing.T) {
	db, mock := newMock(t)
	repo := NewLeaveRequestRepository(db, zap.NewNop())

	mock.ExpectExec("INSERT INTO leave_requests").WillReturnError(errors.New("UNIQUE constraint failed"))

	err := repo.Create(context.Background(), sampleRequest())
	assert.ErrorContains(t, err, "failed to create leave request")
}

func TestLeaveRequestRepository_GetByID(t *testing.T) {
	db, mock := newMock(t)
	repo := NewLeaveRequestRepository(db, zap.NewNop())

	mock.ExpectQuery(regexp.QuoteMeta("FROM leave_requests WHERE id = ?")).
		WithArgs("req-1").
		WillReturnRows(leaveRow(sqlmock.NewRows(leaveFields), "req-1", "pending", "director", 2))
	mock.ExpectQuery("FROM leave_history").
		WithArgs("req-1").
		WillReturnRows(sqlmock.NewRows(historyFields).
			AddRow("req-1", 0, "submitted", "completed", "request submitted", repoNow).
			AddRow("req-1", 1, "manager", "approved", "Manager approved", repoNow))

	req, err := repo.GetByID(context.Background(), "req-1")

	require.NoError(t, err)
	assert.Equal(t, entity.StatusPending, req.Status)
	assert.Equal(t, entity.StageDirector, req.CurrentStage)
	assert.Equal(t, 2, req.Version)
	assert.True(t, req.StartDate.Equal(entity.NewDate(2026, time.October, 20)))
	require.Len(t, req.History, 2)
	assert.Equal(t, entity.OutcomeApproved, req.History[1].Outcome)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLeaveRequestRepository_GetByIDNotFound(t *testing.T) {
	db, mock := newMock(t)
	repo := NewLeaveRequestRepository(db, zap.NewNop())

	mock.ExpectQuery("FROM leave_requests").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(leaveFields))

	_, err := repo.GetByID(context.Background(), "missing")

	assert.ErrorIs(t, err, entity.ErrNotFound)
	var nf *entity.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "missing", nf.ID)
}

func TestLeaveRequestRepository_Update(t *testing.T) {
	tests := []struct {
		name     string
		affected int64
		execErr  error
		wantErr  error
	}{
		{"version matches", 1, nil, nil},
		{"version moved", 0, nil, ErrConcurrentUpdate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newMock(t)
			repo := NewLeaveRequestRepository(db, zap.NewNop())

			req := sampleRequest()
			req.CurrentStage = entity.StageDirector
			req.Version = 2

			mock.ExpectExec(regexp.QuoteMeta("WHERE id = ? AND version = ?")).
				WithArgs("pending", "director", 2, sqlmock.AnyArg(), "req-1", 1).
				WillReturnResult(sqlmock.NewResult(0, tt.affected))

			err := repo.Update(context.Background(), req, 1)
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestLeaveRequestRepository_List(t *testing.T) {
	db, mock := newMock(t)
	repo := NewLeaveRequestRepository(db, zap.NewNop())

	rows := sqlmock.NewRows(leaveFields)
	leaveRow(rows, "req-2", "pending", "manager", 1)
	leaveRow(rows, "req-1", "pending", "manager", 1)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE status = ? AND current_stage = ? ORDER BY submitted_at DESC, id DESC LIMIT ? OFFSET ?")).
		WithArgs("pending", "manager", 10, 5).
		WillReturnRows(rows)
	mock.ExpectQuery("FROM leave_history").
		WithArgs("req-2", "req-1").
		WillReturnRows(sqlmock.NewRows(historyFields).
			AddRow("req-1", 0, "submitted", "completed", "request submitted", repoNow).
			AddRow("req-2", 0, "submitted", "completed", "request submitted", repoNow))

	reqs, err := repo.List(context.Background(), entity.ListFilter{
		Status: entity.StatusPending,
		Stage:  entity.StageManager,
		Limit:  10,
		Offset: 5,
	})

	require.NoError(t, err)
	require.Len(t, reqs, 2)
	assert.Equal(t, "req-2", reqs[0].ID)
	assert.Len(t, reqs[0].History, 1)
	assert.Len(t, reqs[1].History, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLeaveRequestRepository_ListEmptySkipsHistory(t *testing.T) {
	db, mock := newMock(t)
	repo := NewLeaveRequestRepository(db, zap.NewNop())

	mock.ExpectQuery("FROM leave_requests").
		WithArgs(50, 0).
		WillReturnRows(sqlmock.NewRows(leaveFields))

	reqs, err := repo.List(context.Background(), entity.ListFilter{Limit: 50})

	require.NoError(t, err)
	assert.Empty(t, reqs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHistoryRepository_Append(t *testing.T) {
	db, mock := newMock(t)
	repo := NewHistoryRepository(db, zap.NewNop())

	mock.ExpectExec("INSERT INTO leave_history").
		WithArgs("req-1", 1, "manager", "approved", "Manager approved", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(2, 1))

	err := repo.Append(context.Background(), "req-1", entity.HistoryEntry{
		Sequence:  1,
		Stage:     entity.StageManager,
		Outcome:   entity.OutcomeApproved,
		Note:      "Manager approved",
		Timestamp: repoNow,
	})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHistoryRepository_AppendDuplicateSeq(t *testing.T) {
	db, mock := newMock(t)
	repo := NewHistoryRepository(db, zap.NewNop())

	mock.ExpectExec("INSERT INTO leave_history").
		WillReturnError(errors.New("UNIQUE constraint failed: leave_history.request_id, leave_history.seq"))

	err := repo.Append(context.Background(), "req-1", entity.HistoryEntry{Sequence: 0})
	assert.ErrorContains(t, err, "failed to append history")
}
