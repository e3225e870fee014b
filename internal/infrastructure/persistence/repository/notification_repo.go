package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/leave-approval/internal/application/port"
	"github.com/garyjia/leave-approval/internal/domain/entity"
	"github.com/garyjia/leave-approval/internal/infrastructure/persistence/sqlite"
)

const notificationColumns = `
	id, request_id, kind, recipient, channel, status, message_id,
	error_message, attempts, intent, created_at, updated_at
`

// NotificationRepository implements port.NotificationRepository
type NotificationRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewNotificationRepository creates a new notification repository
func NewNotificationRepository(db *sql.DB, logger *zap.Logger) *NotificationRepository {
	return &NotificationRepository{
		db:     db,
		logger: logger,
	}
}

// Create records a delivery attempt
func (r *NotificationRepository) Create(ctx context.Context, record *entity.NotificationRecord) error {
	query := `
		INSERT INTO notification_log (` + notificationColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	now := time.Now().UTC()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	if record.UpdatedAt.IsZero() {
		record.UpdatedAt = now
	}

	_, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query,
		record.ID,
		record.RequestID,
		record.Kind,
		record.Recipient,
		record.Channel,
		record.Status,
		record.MessageID,
		record.ErrorMessage,
		record.Attempts,
		record.Intent,
		record.CreatedAt.UTC(),
		record.UpdatedAt.UTC(),
	)
	if err != nil {
		r.logger.Error("Failed to create notification record",
			zap.String("request_id", record.RequestID),
			zap.Error(err))
		return fmt.Errorf("failed to create notification: %w", err)
	}

	return nil
}

// UpdateResult stores the outcome of a retry
func (r *NotificationRepository) UpdateResult(ctx context.Context, record *entity.NotificationRecord) error {
	query := `
		UPDATE notification_log
		SET status = ?, message_id = ?, error_message = ?, attempts = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query,
		record.Status,
		record.MessageID,
		record.ErrorMessage,
		record.Attempts,
		record.UpdatedAt.UTC(),
		record.ID,
	)
	if err != nil {
		r.logger.Error("Failed to update notification record", zap.String("id", record.ID), zap.Error(err))
		return fmt.Errorf("failed to update notification: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("notification not found: %s", record.ID)
	}

	return nil
}

// ListByRequestID returns every attempt for a request, oldest first
func (r *NotificationRepository) ListByRequestID(ctx context.Context, requestID string) ([]*entity.NotificationRecord, error) {
	query := `SELECT ` + notificationColumns + `
		FROM notification_log
		WHERE request_id = ?
		ORDER BY created_at ASC, id ASC
	`
	return r.query(ctx, query, requestID)
}

// ListFailed returns failed records that may still be retried
func (r *NotificationRepository) ListFailed(ctx context.Context, maxAttempts, limit int) ([]*entity.NotificationRecord, error) {
	query := `SELECT ` + notificationColumns + `
		FROM notification_log
		WHERE status = ? AND attempts < ?
		ORDER BY updated_at ASC
		LIMIT ?
	`
	return r.query(ctx, query, entity.NotificationStatusFailed, maxAttempts, limit)
}

func (r *NotificationRepository) query(ctx context.Context, query string, args ...interface{}) ([]*entity.NotificationRecord, error) {
	rows, err := sqlite.ExecutorFrom(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to query notifications", zap.Error(err))
		return nil, fmt.Errorf("failed to query notifications: %w", err)
	}
	defer rows.Close()

	var records []*entity.NotificationRecord
	for rows.Next() {
		var rec entity.NotificationRecord
		if err := rows.Scan(
			&rec.ID,
			&rec.RequestID,
			&rec.Kind,
			&rec.Recipient,
			&rec.Channel,
			&rec.Status,
			&rec.MessageID,
			&rec.ErrorMessage,
			&rec.Attempts,
			&rec.Intent,
			&rec.CreatedAt,
			&rec.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		records = append(records, &rec)
	}

	return records, rows.Err()
}

// Verify interface compliance
var _ port.NotificationRepository = (*NotificationRepository)(nil)
