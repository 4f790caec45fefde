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

// WorkflowStepRepository implements port.WorkflowStepRepository
type WorkflowStepRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewWorkflowStepRepository creates a new workflow step repository
func NewWorkflowStepRepository(db *sql.DB, logger *zap.Logger) port.WorkflowStepRepository {
	return &WorkflowStepRepository{
		db:     db,
		logger: logger,
	}
}

// CreateBatch inserts all steps of a trip request
func (r *WorkflowStepRepository) CreateBatch(ctx context.Context, steps []*entity.WorkflowStep) error {
	query := `
		INSERT INTO workflow_steps (
			trip_request_id, step_order, step_type, approver_id, status,
			is_required, reserves_budget, reason, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	exec := conn(ctx, r.db)
	for _, step := range steps {
		result, err := exec.ExecContext(ctx, query,
			step.TripRequestID,
			step.StepOrder,
			string(step.StepType),
			nullInt64(step.ApproverID),
			string(step.Status),
			step.IsRequired,
			step.ReservesBudget,
			step.Reason,
			step.CreatedAt.UTC(),
		)
		if err != nil {
			r.logger.Error("Failed to create workflow step",
				zap.Int64("trip_id", step.TripRequestID),
				zap.Int("step_order", step.StepOrder),
				zap.Error(err))
			return sqlite.TranslateError("workflow_steps", fmt.Errorf("failed to create workflow step: %w", err))
		}

		id, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get last insert id: %w", err)
		}
		step.ID = id
	}

	return nil
}

// GetByTripID returns the steps of a trip request ordered by step_order
func (r *WorkflowStepRepository) GetByTripID(ctx context.Context, tripID int64) ([]*entity.WorkflowStep, error) {
	query := `
		SELECT id, trip_request_id, step_order, step_type, approver_id, status,
			is_required, reserves_budget, decided_by, decided_at, reason, created_at
		FROM workflow_steps
		WHERE trip_request_id = ?
		ORDER BY step_order ASC
	`

	rows, err := conn(ctx, r.db).QueryContext(ctx, query, tripID)
	if err != nil {
		r.logger.Error("Failed to get workflow steps", zap.Int64("trip_id", tripID), zap.Error(err))
		return nil, fmt.Errorf("failed to get workflow steps: %w", err)
	}
	defer rows.Close()

	var steps []*entity.WorkflowStep
	for rows.Next() {
		var step entity.WorkflowStep
		var stepType, status string
		var approverID, decidedBy sql.NullInt64
		var decidedAt sql.NullTime

		err := rows.Scan(
			&step.ID,
			&step.TripRequestID,
			&step.StepOrder,
			&stepType,
			&approverID,
			&status,
			&step.IsRequired,
			&step.ReservesBudget,
			&decidedBy,
			&decidedAt,
			&step.Reason,
			&step.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan workflow step: %w", err)
		}

		step.StepType = entity.StepType(stepType)
		step.Status = entity.StepStatus(status)
		step.ApproverID = int64Ptr(approverID)
		step.DecidedBy = int64Ptr(decidedBy)
		step.DecidedAt = timePtr(decidedAt)
		steps = append(steps, &step)
	}

	return steps, rows.Err()
}

// Decide records the step's decision only while it is still PENDING
func (r *WorkflowStepRepository) Decide(ctx context.Context, step *entity.WorkflowStep) error {
	query := `
		UPDATE workflow_steps
		SET status = ?, decided_by = ?, decided_at = ?, reason = ?
		WHERE id = ? AND status = ?
	`

	result, err := conn(ctx, r.db).ExecContext(ctx, query,
		string(step.Status),
		nullInt64(step.DecidedBy),
		nullTime(step.DecidedAt),
		step.Reason,
		step.ID,
		string(entity.StepStatusPending),
	)
	if err != nil {
		r.logger.Error("Failed to decide workflow step", zap.Int64("step_id", step.ID), zap.Error(err))
		return sqlite.TranslateError("workflow_step", fmt.Errorf("failed to decide workflow step: %w", err))
	}

	return requireAffected(result, "workflow_step")
}

// Verify interface compliance
var _ port.WorkflowStepRepository = (*WorkflowStepRepository)(nil)
