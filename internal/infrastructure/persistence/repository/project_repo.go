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

// ProjectRepository implements port.ProjectRepository
type ProjectRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewProjectRepository creates a new project repository
func NewProjectRepository(db *sql.DB, logger *zap.Logger) port.ProjectRepository {
	return &ProjectRepository{
		db:     db,
		logger: logger,
	}
}

// Create creates a new project
func (r *ProjectRepository) Create(ctx context.Context, project *entity.Project) error {
	query := `
		INSERT INTO projects (
			name, department_id, manager_id, second_manager_id,
			original_budget, budget, budget_adjustments, spent_budget, available_budget,
			is_active, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := conn(ctx, r.db).ExecContext(ctx, query,
		project.Name,
		project.DepartmentID,
		nullInt64(project.ManagerID),
		nullInt64(project.SecondManagerID),
		project.OriginalBudget,
		project.Budget,
		project.BudgetAdjustments,
		project.SpentBudget,
		project.AvailableBudget,
		project.IsActive,
		project.CreatedAt.UTC(),
		project.UpdatedAt.UTC(),
	)
	if err != nil {
		r.logger.Error("Failed to create project", zap.String("name", project.Name), zap.Error(err))
		return sqlite.TranslateError("projects", fmt.Errorf("failed to create project: %w", err))
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	project.ID = id
	return nil
}

// GetByID retrieves a project by ID
func (r *ProjectRepository) GetByID(ctx context.Context, id int64) (*entity.Project, error) {
	query := `
		SELECT id, name, department_id, manager_id, second_manager_id,
			original_budget, budget, budget_adjustments, spent_budget, available_budget,
			is_active, created_at, updated_at
		FROM projects
		WHERE id = ?
	`

	var project entity.Project
	var managerID, secondID sql.NullInt64

	err := conn(ctx, r.db).QueryRowContext(ctx, query, id).Scan(
		&project.ID,
		&project.Name,
		&project.DepartmentID,
		&managerID,
		&secondID,
		&project.OriginalBudget,
		&project.Budget,
		&project.BudgetAdjustments,
		&project.SpentBudget,
		&project.AvailableBudget,
		&project.IsActive,
		&project.CreatedAt,
		&project.UpdatedAt,
	)
	if err != nil {
		return nil, notFoundOr(err, "project", id)
	}

	project.ManagerID = int64Ptr(managerID)
	project.SecondManagerID = int64Ptr(secondID)
	return &project, nil
}

// UpdateBudgetState writes budget, adjustments, spent and available. original_budget is never touched.
func (r *ProjectRepository) UpdateBudgetState(ctx context.Context, project *entity.Project) error {
	query := `
		UPDATE projects
		SET budget = ?, budget_adjustments = ?, spent_budget = ?, available_budget = ?, updated_at = ?
		WHERE id = ?
	`

	project.UpdatedAt = time.Now().UTC()
	result, err := conn(ctx, r.db).ExecContext(ctx, query,
		project.Budget,
		project.BudgetAdjustments,
		project.SpentBudget,
		project.AvailableBudget,
		project.UpdatedAt,
		project.ID,
	)
	if err != nil {
		r.logger.Error("Failed to update project budget", zap.Int64("project_id", project.ID), zap.Error(err))
		return sqlite.TranslateError("projects", fmt.Errorf("failed to update project budget: %w", err))
	}

	return requireAffected(result, "project")
}

// SetActive toggles the project's active flag
func (r *ProjectRepository) SetActive(ctx context.Context, id int64, active bool) error {
	result, err := conn(ctx, r.db).ExecContext(ctx,
		`UPDATE projects SET is_active = ?, updated_at = ? WHERE id = ?`,
		active, time.Now().UTC(), id,
	)
	if err != nil {
		r.logger.Error("Failed to set project active flag", zap.Int64("project_id", id), zap.Error(err))
		return sqlite.TranslateError("projects", fmt.Errorf("failed to set project active: %w", err))
	}

	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFoundOr(sql.ErrNoRows, "project", id)
	}
	return nil
}

// Verify interface compliance
var _ port.ProjectRepository = (*ProjectRepository)(nil)
