package repository

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/leave-approval/internal/domain/entity"
)

var notificationFields = []string{
	"id", "request_id", "kind", "recipient", "channel", "status", "message_id",
	"error_message", "attempts", "intent", "created_at", "updated_at",
}

func TestNotificationRepository_Create(t *testing.T) {
	db, mock := newMock(t)
	repo := NewNotificationRepository(db, zap.NewNop())

	record := &entity.NotificationRecord{
		ID:        "n-1",
		RequestID: "req-1",
		Kind:      entity.KindInitialRequest,
		Recipient: "m@corp.io",
		Channel:   "log",
		Status:    entity.NotificationStatusSent,
		MessageID: "demo-1",
		Attempts:  1,
		Intent:    "{}",
	}

	mock.ExpectExec("INSERT INTO notification_log").
		WithArgs("n-1", "req-1", "initial-request", "m@corp.io", "log", "SENT", "demo-1", "", 1, "{}",
			sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Create(context.Background(), record))
	assert.False(t, record.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNotificationRepository_UpdateResult(t *testing.T) {
	db, mock := newMock(t)
	repo := NewNotificationRepository(db, zap.NewNop())

	record := &entity.NotificationRecord{
		ID:        "n-1",
		Status:    entity.NotificationStatusSent,
		MessageID: "m-2",
		Attempts:  2,
		UpdatedAt: repoNow,
	}

	mock.ExpectExec("UPDATE notification_log").
		WithArgs("SENT", "m-2", "", 2, sqlmock.AnyArg(), "n-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE notification_log").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.UpdateResult(context.Background(), record))
	assert.ErrorContains(t, repo.UpdateResult(context.Background(), record), "notification not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNotificationRepository_ListFailed(t *testing.T) {
	db, mock := newMock(t)
	repo := NewNotificationRepository(db, zap.NewNop())

	mock.ExpectQuery("WHERE status = \\? AND attempts < \\?").
		WithArgs("FAILED", 3, 20).
		WillReturnRows(sqlmock.NewRows(notificationFields).
			AddRow("n-1", "req-1", "final-approved", "e@corp.io", "smtp", "FAILED", "", "timeout", 1, "{}", repoNow, repoNow))

	records, err := repo.ListFailed(context.Background(), 3, 20)

	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, entity.KindFinalApproved, records[0].Kind)
	assert.Equal(t, "timeout", records[0].ErrorMessage)
	assert.Equal(t, 1, records[0].Attempts)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNotificationRepository_ListByRequestID(t *testing.T) {
	db, mock := newMock(t)
	repo := NewNotificationRepository(db, zap.NewNop())

	mock.ExpectQuery("WHERE request_id = \\?").
		WithArgs("req-1").
		WillReturnRows(sqlmock.NewRows(notificationFields).
			AddRow("n-1", "req-1", "initial-request", "m@corp.io", "log", "SENT", "demo-1", "", 1, "{}", repoNow, repoNow).
			AddRow("n-2", "req-1", "approval-forwarded", "d@corp.io", "log", "SENT", "demo-2", "", 1, "{}", repoNow, repoNow))

	records, err := repo.ListByRequestID(context.Background(), "req-1")

	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "d@corp.io", records[1].Recipient)
	assert.NoError(t, mock.ExpectationsWereMet())
}
