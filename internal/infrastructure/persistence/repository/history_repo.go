package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/garyjia/leave-approval/internal/application/port"
	"github.com/garyjia/leave-approval/internal/domain/entity"
	"github.com/garyjia/leave-approval/internal/infrastructure/persistence/sqlite"
)

// HistoryRepository implements port.HistoryRepository
type HistoryRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewHistoryRepository creates a new history repository
func NewHistoryRepository(db *sql.DB, logger *zap.Logger) *HistoryRepository {
	return &HistoryRepository{
		db:     db,
		logger: logger,
	}
}

// Append adds one entry; (request_id, seq) is unique so a replayed entry fails
func (r *HistoryRepository) Append(ctx context.Context, requestID string, entry entity.HistoryEntry) error {
	query := `
		INSERT INTO leave_history (request_id, seq, stage, outcome, note, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query,
		requestID,
		entry.Sequence,
		entry.Stage,
		entry.Outcome,
		entry.Note,
		entry.Timestamp.UTC(),
	)
	if err != nil {
		r.logger.Error("Failed to append history entry",
			zap.String("request_id", requestID),
			zap.Int("seq", entry.Sequence),
			zap.Error(err))
		return fmt.Errorf("failed to append history: %w", err)
	}

	return nil
}

// ListByRequestID returns the trail of a request in sequence order
func (r *HistoryRepository) ListByRequestID(ctx context.Context, requestID string) ([]entity.HistoryEntry, error) {
	byRequest, err := loadHistory(ctx, sqlite.ExecutorFrom(ctx, r.db), requestID)
	if err != nil {
		r.logger.Error("Failed to list history", zap.String("request_id", requestID), zap.Error(err))
		return nil, err
	}
	return byRequest[requestID], nil
}

// loadHistory fetches the trails of all given requests with one query
func loadHistory(ctx context.Context, exec sqlite.Executor, requestIDs ...string) (map[string][]entity.HistoryEntry, error) {
	out := make(map[string][]entity.HistoryEntry, len(requestIDs))
	if len(requestIDs) == 0 {
		return out, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(requestIDs)), ",")
	query := `
		SELECT request_id, seq, stage, outcome, note, timestamp
		FROM leave_history
		WHERE request_id IN (` + placeholders + `)
		ORDER BY request_id, seq ASC
	`

	args := make([]interface{}, len(requestIDs))
	for i, id := range requestIDs {
		args[i] = id
	}

	rows, err := exec.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get history: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			requestID string
			entry     entity.HistoryEntry
		)
		if err := rows.Scan(
			&requestID,
			&entry.Sequence,
			&entry.Stage,
			&entry.Outcome,
			&entry.Note,
			&entry.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("failed to scan history entry: %w", err)
		}
		out[requestID] = append(out[requestID], entry)
	}

	return out, rows.Err()
}

// Verify interface compliance
var _ port.HistoryRepository = (*HistoryRepository)(nil)
