package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/garyjia/tripflow/internal/application/port"
	"github.com/garyjia/tripflow/internal/domain/entity"
	"github.com/garyjia/tripflow/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

// DelegationRepository implements port.DelegationRepository
type DelegationRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewDelegationRepository creates a new delegation repository
func NewDelegationRepository(db *sql.DB, logger *zap.Logger) port.DelegationRepository {
	return &DelegationRepository{
		db:     db,
		logger: logger,
	}
}

// Create creates a new delegation; capabilities are stored comma separated
func (r *DelegationRepository) Create(ctx context.Context, d *entity.Delegation) error {
	caps := make([]string, 0, len(d.Capabilities))
	for _, c := range d.Capabilities {
		caps = append(caps, string(c))
	}

	result, err := conn(ctx, r.db).ExecContext(ctx, `
		INSERT INTO delegations (delegator_id, delegate_id, capabilities, valid_from, valid_to, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		d.DelegatorID,
		d.DelegateID,
		strings.Join(caps, ","),
		d.ValidFrom.UTC(),
		d.ValidTo.UTC(),
		d.CreatedAt.UTC(),
	)
	if err != nil {
		r.logger.Error("Failed to create delegation",
			zap.Int64("delegator_id", d.DelegatorID),
			zap.Int64("delegate_id", d.DelegateID),
			zap.Error(err))
		return sqlite.TranslateError("delegations", fmt.Errorf("failed to create delegation: %w", err))
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	d.ID = id
	return nil
}

// ListActiveForDelegate returns the delegations granted to delegateID that are valid at the given time
func (r *DelegationRepository) ListActiveForDelegate(ctx context.Context, delegateID int64, at time.Time) ([]*entity.Delegation, error) {
	rows, err := conn(ctx, r.db).QueryContext(ctx, `
		SELECT id, delegator_id, delegate_id, capabilities, valid_from, valid_to, created_at
		FROM delegations
		WHERE delegate_id = ?
		ORDER BY id`, delegateID)
	if err != nil {
		r.logger.Error("Failed to list delegations", zap.Int64("delegate_id", delegateID), zap.Error(err))
		return nil, fmt.Errorf("failed to list delegations: %w", err)
	}
	defer rows.Close()

	var out []*entity.Delegation
	for rows.Next() {
		var d entity.Delegation
		var caps string
		if err := rows.Scan(&d.ID, &d.DelegatorID, &d.DelegateID, &caps, &d.ValidFrom, &d.ValidTo, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan delegation: %w", err)
		}
		for _, c := range strings.Split(caps, ",") {
			if c = strings.TrimSpace(c); c != "" {
				d.Capabilities = append(d.Capabilities, entity.StepType(c))
			}
		}
		if at.Before(d.ValidFrom) || !at.Before(d.ValidTo) {
			continue
		}
		out = append(out, &d)
	}

	return out, rows.Err()
}

// Verify interface compliance
var _ port.DelegationRepository = (*DelegationRepository)(nil)
