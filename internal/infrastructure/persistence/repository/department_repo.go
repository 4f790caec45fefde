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

// DepartmentRepository implements port.DepartmentRepository
type DepartmentRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewDepartmentRepository creates a new department repository
func NewDepartmentRepository(db *sql.DB, logger *zap.Logger) port.DepartmentRepository {
	return &DepartmentRepository{
		db:     db,
		logger: logger,
	}
}

const departmentColumns = `id, name, manager_id, second_manager_id, third_manager_id,
	third_manager_required, budget, monthly_budget_bonus, bonus_expires_at, bonus_reset_at,
	spent_budget, available_budget, created_at, updated_at`

// Create creates a new department
func (r *DepartmentRepository) Create(ctx context.Context, dept *entity.Department) error {
	query := `
		INSERT INTO departments (
			name, manager_id, second_manager_id, third_manager_id, third_manager_required,
			budget, monthly_budget_bonus, bonus_expires_at, bonus_reset_at,
			spent_budget, available_budget, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := conn(ctx, r.db).ExecContext(ctx, query,
		dept.Name,
		nullInt64(dept.ManagerID),
		nullInt64(dept.SecondManagerID),
		nullInt64(dept.ThirdManagerID),
		dept.ThirdManagerRequired,
		dept.Budget,
		dept.MonthlyBudgetBonus,
		nullTime(dept.BonusExpiresAt),
		nullTime(dept.BonusResetAt),
		dept.SpentBudget,
		dept.AvailableBudget,
		dept.CreatedAt.UTC(),
		dept.UpdatedAt.UTC(),
	)
	if err != nil {
		r.logger.Error("Failed to create department", zap.String("name", dept.Name), zap.Error(err))
		return sqlite.TranslateError("departments", fmt.Errorf("failed to create department: %w", err))
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	dept.ID = id
	return nil
}

// GetByID retrieves a department by ID
func (r *DepartmentRepository) GetByID(ctx context.Context, id int64) (*entity.Department, error) {
	row := conn(ctx, r.db).QueryRowContext(ctx,
		`SELECT `+departmentColumns+` FROM departments WHERE id = ?`, id)

	dept, err := scanDepartment(row)
	if err != nil {
		return nil, notFoundOr(err, "department", id)
	}
	return dept, nil
}

// UpdateBudgetState writes the mutable budget fields
func (r *DepartmentRepository) UpdateBudgetState(ctx context.Context, dept *entity.Department) error {
	query := `
		UPDATE departments
		SET budget = ?, monthly_budget_bonus = ?, bonus_expires_at = ?, bonus_reset_at = ?,
			spent_budget = ?, available_budget = ?, updated_at = ?
		WHERE id = ?
	`

	dept.UpdatedAt = time.Now().UTC()
	result, err := conn(ctx, r.db).ExecContext(ctx, query,
		dept.Budget,
		dept.MonthlyBudgetBonus,
		nullTime(dept.BonusExpiresAt),
		nullTime(dept.BonusResetAt),
		dept.SpentBudget,
		dept.AvailableBudget,
		dept.UpdatedAt,
		dept.ID,
	)
	if err != nil {
		r.logger.Error("Failed to update department budget", zap.Int64("department_id", dept.ID), zap.Error(err))
		return sqlite.TranslateError("departments", fmt.Errorf("failed to update department budget: %w", err))
	}

	return requireAffected(result, "department")
}

// ListWithActiveBonus returns departments carrying a non-zero bonus
func (r *DepartmentRepository) ListWithActiveBonus(ctx context.Context, departmentID *int64) ([]*entity.Department, error) {
	query := `SELECT ` + departmentColumns + ` FROM departments WHERE monthly_budget_bonus NOT IN ('0', '')`
	args := []interface{}{}
	if departmentID != nil {
		query += ` AND id = ?`
		args = append(args, *departmentID)
	}
	query += ` ORDER BY id`

	rows, err := conn(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list departments with bonus", zap.Error(err))
		return nil, fmt.Errorf("failed to list departments: %w", err)
	}
	defer rows.Close()

	var depts []*entity.Department
	for rows.Next() {
		dept, err := scanDepartment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan department: %w", err)
		}
		// decimal text may be "0.00" after arithmetic
		if dept.MonthlyBudgetBonus.IsZero() {
			continue
		}
		depts = append(depts, dept)
	}

	return depts, rows.Err()
}

func scanDepartment(row rowScanner) (*entity.Department, error) {
	var dept entity.Department
	var managerID, secondID, thirdID sql.NullInt64
	var expiresAt, resetAt sql.NullTime

	err := row.Scan(
		&dept.ID,
		&dept.Name,
		&managerID,
		&secondID,
		&thirdID,
		&dept.ThirdManagerRequired,
		&dept.Budget,
		&dept.MonthlyBudgetBonus,
		&expiresAt,
		&resetAt,
		&dept.SpentBudget,
		&dept.AvailableBudget,
		&dept.CreatedAt,
		&dept.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	dept.ManagerID = int64Ptr(managerID)
	dept.SecondManagerID = int64Ptr(secondID)
	dept.ThirdManagerID = int64Ptr(thirdID)
	dept.BonusExpiresAt = timePtr(expiresAt)
	dept.BonusResetAt = timePtr(resetAt)
	return &dept, nil
}

// Verify interface compliance
var _ port.DepartmentRepository = (*DepartmentRepository)(nil)
