package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/garyjia/tripflow/internal/application/port"
	"github.com/garyjia/tripflow/internal/domain/entity"
	"github.com/garyjia/tripflow/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

// AuditRepository implements port.AuditRepository
type AuditRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewAuditRepository creates a new audit log repository
func NewAuditRepository(db *sql.DB, logger *zap.Logger) port.AuditRepository {
	return &AuditRepository{
		db:     db,
		logger: logger,
	}
}

// Append writes one audit entry; details are stored as JSON
func (r *AuditRepository) Append(ctx context.Context, entry *entity.AuditLogEntry) error {
	details := entry.Details
	if details == nil {
		details = map[string]interface{}{}
	}
	payload, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("failed to marshal audit details: %w", err)
	}

	query := `
		INSERT INTO audit_logs (actor_id, action, entity_type, entity_id, details, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	result, err := conn(ctx, r.db).ExecContext(ctx, query,
		entry.ActorID,
		entry.Action,
		entry.EntityType,
		entry.EntityID,
		string(payload),
		entry.CreatedAt.UTC(),
	)
	if err != nil {
		r.logger.Error("Failed to append audit entry",
			zap.String("action", entry.Action),
			zap.Int64("entity_id", entry.EntityID),
			zap.Error(err))
		return sqlite.TranslateError("audit_logs", fmt.Errorf("failed to append audit entry: %w", err))
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	entry.ID = id
	return nil
}

// List returns entries newest first
func (r *AuditRepository) List(ctx context.Context, actorID *int64, limit int) ([]*entity.AuditLogEntry, error) {
	query := `SELECT id, actor_id, action, entity_type, entity_id, details, created_at FROM audit_logs`
	args := []interface{}{}
	if actorID != nil {
		query += ` WHERE actor_id = ?`
		args = append(args, *actorID)
	}
	query += ` ORDER BY id DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := conn(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list audit entries", zap.Error(err))
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	defer rows.Close()

	var entries []*entity.AuditLogEntry
	for rows.Next() {
		var entry entity.AuditLogEntry
		var payload string

		err := rows.Scan(
			&entry.ID,
			&entry.ActorID,
			&entry.Action,
			&entry.EntityType,
			&entry.EntityID,
			&payload,
			&entry.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}

		if payload != "" {
			if err := json.Unmarshal([]byte(payload), &entry.Details); err != nil {
				r.logger.Warn("Failed to decode audit details", zap.Int64("audit_id", entry.ID), zap.Error(err))
			}
		}
		entries = append(entries, &entry)
	}

	return entries, rows.Err()
}

// Verify interface compliance
var _ port.AuditRepository = (*AuditRepository)(nil)
