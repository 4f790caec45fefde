package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/garyjia/tripflow/internal/application/port"
	"github.com/garyjia/tripflow/internal/domain/entity"
	"github.com/garyjia/tripflow/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

// StatusHistoryRepository implements port.StatusHistoryRepository
type StatusHistoryRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewStatusHistoryRepository creates a new status history repository
func NewStatusHistoryRepository(db *sql.DB, logger *zap.Logger) port.StatusHistoryRepository {
	return &StatusHistoryRepository{
		db:     db,
		logger: logger,
	}
}

// Append creates a new history record
func (r *StatusHistoryRepository) Append(ctx context.Context, entry *entity.StatusHistoryEntry) error {
	query := `
		INSERT INTO status_history (
			request_kind, request_id, from_status, to_status, actor_id, reason, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	result, err := conn(ctx, r.db).ExecContext(ctx, query,
		string(entry.RequestKind),
		entry.RequestID,
		entry.FromStatus,
		entry.ToStatus,
		entry.ActorID,
		entry.Reason,
		entry.CreatedAt.UTC(),
	)
	if err != nil {
		r.logger.Error("Failed to create history record", zap.Error(err))
		return sqlite.TranslateError("status_history", fmt.Errorf("failed to create history: %w", err))
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	entry.ID = id
	return nil
}

// ListByRequest retrieves all history records for a request in insertion order
func (r *StatusHistoryRepository) ListByRequest(ctx context.Context, kind entity.RequestKind, requestID int64) ([]*entity.StatusHistoryEntry, error) {
	query := `
		SELECT id, request_kind, request_id, from_status, to_status, actor_id, reason, created_at
		FROM status_history
		WHERE request_kind = ? AND request_id = ?
		ORDER BY id ASC
	`

	rows, err := conn(ctx, r.db).QueryContext(ctx, query, string(kind), requestID)
	if err != nil {
		r.logger.Error("Failed to get history by request",
			zap.String("kind", string(kind)),
			zap.Int64("request_id", requestID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get history: %w", err)
	}
	defer rows.Close()

	var records []*entity.StatusHistoryEntry
	for rows.Next() {
		var record entity.StatusHistoryEntry
		var requestKind string
		err := rows.Scan(
			&record.ID,
			&requestKind,
			&record.RequestID,
			&record.FromStatus,
			&record.ToStatus,
			&record.ActorID,
			&record.Reason,
			&record.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan history record: %w", err)
		}
		record.RequestKind = entity.RequestKind(requestKind)
		records = append(records, &record)
	}

	return records, rows.Err()
}

// Verify interface compliance
var _ port.StatusHistoryRepository = (*StatusHistoryRepository)(nil)
