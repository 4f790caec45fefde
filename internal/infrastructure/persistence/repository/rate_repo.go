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

// RateRepository implements port.RateRepository
type RateRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewRateRepository creates a new kilometer rate repository
func NewRateRepository(db *sql.DB, logger *zap.Logger) port.RateRepository {
	return &RateRepository{
		db:     db,
		logger: logger,
	}
}

// Create creates a new kilometer rate
func (r *RateRepository) Create(ctx context.Context, rate *entity.KilometerRate) error {
	result, err := conn(ctx, r.db).ExecContext(ctx,
		`INSERT INTO kilometer_rates (rate, effective_from, effective_to, created_at) VALUES (?, ?, ?, ?)`,
		rate.Rate,
		rate.EffectiveFrom.UTC(),
		nullTime(rate.EffectiveTo),
		rate.CreatedAt.UTC(),
	)
	if err != nil {
		r.logger.Error("Failed to create kilometer rate", zap.Error(err))
		return sqlite.TranslateError("kilometer_rates", fmt.Errorf("failed to create kilometer rate: %w", err))
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	rate.ID = id
	return nil
}

// GetByID retrieves a kilometer rate by ID
func (r *RateRepository) GetByID(ctx context.Context, id int64) (*entity.KilometerRate, error) {
	row := conn(ctx, r.db).QueryRowContext(ctx,
		`SELECT id, rate, effective_from, effective_to, created_at FROM kilometer_rates WHERE id = ?`, id)

	rate, err := scanRate(row)
	if err != nil {
		return nil, notFoundOr(err, "kilometer_rate", id)
	}
	return rate, nil
}

// ListCovering returns every rate whose window contains date.
// Windows are compared in Go; the table stays small.
func (r *RateRepository) ListCovering(ctx context.Context, date time.Time) ([]*entity.KilometerRate, error) {
	rows, err := conn(ctx, r.db).QueryContext(ctx,
		`SELECT id, rate, effective_from, effective_to, created_at FROM kilometer_rates ORDER BY effective_from, id`)
	if err != nil {
		r.logger.Error("Failed to list kilometer rates", zap.Error(err))
		return nil, fmt.Errorf("failed to list kilometer rates: %w", err)
	}
	defer rows.Close()

	var rates []*entity.KilometerRate
	for rows.Next() {
		rate, err := scanRate(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan kilometer rate: %w", err)
		}
		if rate.Covers(date) {
			rates = append(rates, rate)
		}
	}

	return rates, rows.Err()
}

func scanRate(row rowScanner) (*entity.KilometerRate, error) {
	var rate entity.KilometerRate
	var effectiveTo sql.NullTime

	if err := row.Scan(&rate.ID, &rate.Rate, &rate.EffectiveFrom, &effectiveTo, &rate.CreatedAt); err != nil {
		return nil, err
	}

	rate.EffectiveFrom = rate.EffectiveFrom.UTC()
	rate.EffectiveTo = timePtr(effectiveTo)
	return &rate, nil
}

// Verify interface compliance
var _ port.RateRepository = (*RateRepository)(nil)
