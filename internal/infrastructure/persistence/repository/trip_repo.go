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

// TripRepository implements port.TripRepository
type TripRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewTripRepository creates a new trip request repository
func NewTripRepository(db *sql.DB, logger *zap.Logger) port.TripRepository {
	return &TripRepository{
		db:     db,
		logger: logger,
	}
}

const tripColumns = `id, requester_id, department_id, project_id, trip_date, origin, destination,
	purpose, cost_method, kilometers, rate_id, rate_value, cost, status, is_urgent,
	reserved_amount, reserved_owner_kind, reserved_owner_id, is_paid, paid_by, paid_at,
	cancelled_at, version, created_at, updated_at`

// Create creates a new trip request at version 1
func (r *TripRepository) Create(ctx context.Context, trip *entity.TripRequest) error {
	query := `
		INSERT INTO trip_requests (
			requester_id, department_id, project_id, trip_date, origin, destination, purpose,
			cost_method, kilometers, rate_id, rate_value, cost, status, is_urgent,
			reserved_amount, reserved_owner_kind, reserved_owner_id,
			is_paid, version, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)
	`

	result, err := conn(ctx, r.db).ExecContext(ctx, query,
		trip.RequesterID,
		nullInt64(trip.DepartmentID),
		nullInt64(trip.ProjectID),
		trip.TripDate.UTC(),
		trip.Origin,
		trip.Destination,
		trip.Purpose,
		string(trip.CostMethod),
		trip.Kilometers,
		nullInt64(trip.RateID),
		trip.RateValue,
		trip.Cost,
		trip.Status,
		trip.IsUrgent,
		trip.ReservedAmount,
		nullString(string(trip.ReservedOwnerKind)),
		nullInt64(trip.ReservedOwnerID),
		trip.IsPaid,
		trip.CreatedAt.UTC(),
		trip.UpdatedAt.UTC(),
	)
	if err != nil {
		r.logger.Error("Failed to create trip request",
			zap.Int64("requester_id", trip.RequesterID),
			zap.Error(err))
		return sqlite.TranslateError("trip_requests", fmt.Errorf("failed to create trip request: %w", err))
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	trip.ID = id
	trip.Version = 1
	return nil
}

// GetByID retrieves a trip request by ID
func (r *TripRepository) GetByID(ctx context.Context, id int64) (*entity.TripRequest, error) {
	row := conn(ctx, r.db).QueryRowContext(ctx,
		`SELECT `+tripColumns+` FROM trip_requests WHERE id = ?`, id)

	trip, err := scanTrip(row)
	if err != nil {
		return nil, notFoundOr(err, "trip_request", id)
	}
	return trip, nil
}

// Update writes the mutable fields when the stored version still matches
func (r *TripRepository) Update(ctx context.Context, trip *entity.TripRequest) error {
	query := `
		UPDATE trip_requests
		SET status = ?, reserved_amount = ?, reserved_owner_kind = ?, reserved_owner_id = ?,
			is_paid = ?, paid_by = ?, paid_at = ?, cancelled_at = ?,
			version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?
	`

	now := time.Now().UTC()
	result, err := conn(ctx, r.db).ExecContext(ctx, query,
		trip.Status,
		trip.ReservedAmount,
		nullString(string(trip.ReservedOwnerKind)),
		nullInt64(trip.ReservedOwnerID),
		trip.IsPaid,
		nullInt64(trip.PaidBy),
		nullTime(trip.PaidAt),
		nullTime(trip.CancelledAt),
		now,
		trip.ID,
		trip.Version,
	)
	if err != nil {
		r.logger.Error("Failed to update trip request", zap.Int64("trip_id", trip.ID), zap.Error(err))
		return sqlite.TranslateError("trip_request", fmt.Errorf("failed to update trip request: %w", err))
	}

	if err := requireAffected(result, "trip_request"); err != nil {
		r.logger.Warn("Trip request version mismatch",
			zap.Int64("trip_id", trip.ID),
			zap.Int64("version", trip.Version))
		return err
	}

	trip.Version++
	trip.UpdatedAt = now
	return nil
}

// ListByRate returns trips priced with the given kilometer rate
func (r *TripRepository) ListByRate(ctx context.Context, rateID int64) ([]*entity.TripRequest, error) {
	rows, err := conn(ctx, r.db).QueryContext(ctx,
		`SELECT `+tripColumns+` FROM trip_requests WHERE rate_id = ? ORDER BY id`, rateID)
	if err != nil {
		r.logger.Error("Failed to list trips by rate", zap.Int64("rate_id", rateID), zap.Error(err))
		return nil, fmt.Errorf("failed to list trips by rate: %w", err)
	}
	defer rows.Close()

	var trips []*entity.TripRequest
	for rows.Next() {
		trip, err := scanTrip(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trip request: %w", err)
		}
		trips = append(trips, trip)
	}

	return trips, rows.Err()
}

func scanTrip(row rowScanner) (*entity.TripRequest, error) {
	var trip entity.TripRequest
	var departmentID, projectID, rateID, reservedOwnerID, paidBy sql.NullInt64
	var reservedOwnerKind sql.NullString
	var costMethod string
	var paidAt, cancelledAt sql.NullTime

	err := row.Scan(
		&trip.ID,
		&trip.RequesterID,
		&departmentID,
		&projectID,
		&trip.TripDate,
		&trip.Origin,
		&trip.Destination,
		&trip.Purpose,
		&costMethod,
		&trip.Kilometers,
		&rateID,
		&trip.RateValue,
		&trip.Cost,
		&trip.Status,
		&trip.IsUrgent,
		&trip.ReservedAmount,
		&reservedOwnerKind,
		&reservedOwnerID,
		&trip.IsPaid,
		&paidBy,
		&paidAt,
		&cancelledAt,
		&trip.Version,
		&trip.CreatedAt,
		&trip.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	trip.TripDate = trip.TripDate.UTC()
	trip.DepartmentID = int64Ptr(departmentID)
	trip.ProjectID = int64Ptr(projectID)
	trip.CostMethod = entity.CostMethod(costMethod)
	trip.RateID = int64Ptr(rateID)
	trip.ReservedOwnerKind = entity.OwnerKind(reservedOwnerKind.String)
	trip.ReservedOwnerID = int64Ptr(reservedOwnerID)
	trip.PaidBy = int64Ptr(paidBy)
	trip.PaidAt = timePtr(paidAt)
	trip.CancelledAt = timePtr(cancelledAt)
	return &trip, nil
}

// Verify interface compliance
var _ port.TripRepository = (*TripRepository)(nil)
