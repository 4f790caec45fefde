package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/garyjia/tripflow/internal/application/port"
	"github.com/garyjia/tripflow/internal/domain/entity"
	"github.com/garyjia/tripflow/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

// AdminRequestRepository implements port.AdminRequestRepository
type AdminRequestRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewAdminRequestRepository creates a new administrative request repository
func NewAdminRequestRepository(db *sql.DB, logger *zap.Logger) port.AdminRequestRepository {
	return &AdminRequestRepository{
		db:     db,
		logger: logger,
	}
}

// Create creates a new administrative request at version 1
func (r *AdminRequestRepository) Create(ctx context.Context, req *entity.AdministrativeRequest) error {
	query := `
		INSERT INTO admin_requests (
			requester_id, kind, subject, description, trip_request_id, project_id, amount,
			status, is_paid, version, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, 1, ?, ?)
	`

	result, err := conn(ctx, r.db).ExecContext(ctx, query,
		req.RequesterID,
		string(req.Kind),
		req.Subject,
		req.Description,
		nullInt64(req.TripRequestID),
		nullInt64(req.ProjectID),
		req.Amount,
		req.Status,
		req.CreatedAt.UTC(),
		req.UpdatedAt.UTC(),
	)
	if err != nil {
		r.logger.Error("Failed to create admin request", zap.Int64("requester_id", req.RequesterID), zap.Error(err))
		return sqlite.TranslateError("admin_requests", fmt.Errorf("failed to create admin request: %w", err))
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	req.ID = id
	req.Version = 1
	return nil
}

// GetByID retrieves an administrative request by ID
func (r *AdminRequestRepository) GetByID(ctx context.Context, id int64) (*entity.AdministrativeRequest, error) {
	query := `
		SELECT id, requester_id, kind, subject, description, trip_request_id, project_id, amount,
			status, decided_by, decided_at, reason, is_paid, paid_by, paid_at,
			version, created_at, updated_at
		FROM admin_requests
		WHERE id = ?
	`

	var req entity.AdministrativeRequest
	var kind string
	var tripID, projectID, decidedBy, paidBy sql.NullInt64
	var decidedAt, paidAt sql.NullTime

	err := conn(ctx, r.db).QueryRowContext(ctx, query, id).Scan(
		&req.ID,
		&req.RequesterID,
		&kind,
		&req.Subject,
		&req.Description,
		&tripID,
		&projectID,
		&req.Amount,
		&req.Status,
		&decidedBy,
		&decidedAt,
		&req.Reason,
		&req.IsPaid,
		&paidBy,
		&paidAt,
		&req.Version,
		&req.CreatedAt,
		&req.UpdatedAt,
	)
	if err != nil {
		return nil, notFoundOr(err, "admin_request", id)
	}

	req.Kind = entity.AdminRequestKind(kind)
	req.TripRequestID = int64Ptr(tripID)
	req.ProjectID = int64Ptr(projectID)
	req.DecidedBy = int64Ptr(decidedBy)
	req.DecidedAt = timePtr(decidedAt)
	req.PaidBy = int64Ptr(paidBy)
	req.PaidAt = timePtr(paidAt)
	return &req, nil
}

// Update writes decision and payment fields when the stored version still matches
func (r *AdminRequestRepository) Update(ctx context.Context, req *entity.AdministrativeRequest) error {
	query := `
		UPDATE admin_requests
		SET status = ?, decided_by = ?, decided_at = ?, reason = ?,
			is_paid = ?, paid_by = ?, paid_at = ?,
			version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?
	`

	now := time.Now().UTC()
	result, err := conn(ctx, r.db).ExecContext(ctx, query,
		req.Status,
		nullInt64(req.DecidedBy),
		nullTime(req.DecidedAt),
		req.Reason,
		req.IsPaid,
		nullInt64(req.PaidBy),
		nullTime(req.PaidAt),
		now,
		req.ID,
		req.Version,
	)
	if err != nil {
		r.logger.Error("Failed to update admin request", zap.Int64("admin_request_id", req.ID), zap.Error(err))
		return sqlite.TranslateError("admin_request", fmt.Errorf("failed to update admin request: %w", err))
	}

	if err := requireAffected(result, "admin_request"); err != nil {
		return err
	}

	req.Version++
	req.UpdatedAt = now
	return nil
}

// Verify interface compliance
var _ port.AdminRequestRepository = (*AdminRequestRepository)(nil)
