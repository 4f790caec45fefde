package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/garyjia/tripflow/internal/application/port"
	"github.com/garyjia/tripflow/internal/domain/apperror"
	"github.com/garyjia/tripflow/internal/domain/entity"
	"github.com/garyjia/tripflow/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

// BudgetHistoryRepository implements port.BudgetHistoryRepository over the
// project_budget_history and department_budget_history tables
type BudgetHistoryRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewBudgetHistoryRepository creates a new budget history repository
func NewBudgetHistoryRepository(db *sql.DB, logger *zap.Logger) port.BudgetHistoryRepository {
	return &BudgetHistoryRepository{
		db:     db,
		logger: logger,
	}
}

// ledgerTable resolves the table and owner column for an owner kind
func ledgerTable(kind entity.OwnerKind) (table, ownerColumn string, err error) {
	switch kind {
	case entity.OwnerProject:
		return "project_budget_history", "project_id", nil
	case entity.OwnerDepartment:
		return "department_budget_history", "department_id", nil
	default:
		return "", "", apperror.Validation("owner_kind", fmt.Sprintf("unknown owner kind %q", kind))
	}
}

// Append writes one ledger row
func (r *BudgetHistoryRepository) Append(ctx context.Context, entry *entity.BudgetHistoryEntry) error {
	table, ownerColumn, err := ledgerTable(entry.OwnerKind)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (
			%s, transaction_type, amount, running_balance,
			trip_request_id, admin_request_id, note, created_by, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, table, ownerColumn)

	result, err := conn(ctx, r.db).ExecContext(ctx, query,
		entry.OwnerID,
		string(entry.TransactionType),
		entry.Amount,
		entry.RunningBalance,
		nullInt64(entry.TripRequestID),
		nullInt64(entry.AdminRequestID),
		entry.Note,
		entry.CreatedBy,
		entry.CreatedAt.UTC(),
	)
	if err != nil {
		r.logger.Error("Failed to append ledger entry",
			zap.String("owner_kind", string(entry.OwnerKind)),
			zap.Int64("owner_id", entry.OwnerID),
			zap.String("type", string(entry.TransactionType)),
			zap.Error(err))
		return sqlite.TranslateError(table, fmt.Errorf("failed to append ledger entry: %w", err))
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	entry.ID = id
	return nil
}

// ListByOwner returns an owner's ledger oldest first
func (r *BudgetHistoryRepository) ListByOwner(ctx context.Context, kind entity.OwnerKind, ownerID int64) ([]*entity.BudgetHistoryEntry, error) {
	table, ownerColumn, err := ledgerTable(kind)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		SELECT id, %s, transaction_type, amount, running_balance,
			trip_request_id, admin_request_id, note, created_by, created_at
		FROM %s
		WHERE %s = ?
		ORDER BY id ASC
	`, ownerColumn, table, ownerColumn)

	rows, err := conn(ctx, r.db).QueryContext(ctx, query, ownerID)
	if err != nil {
		r.logger.Error("Failed to list ledger",
			zap.String("owner_kind", string(kind)),
			zap.Int64("owner_id", ownerID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to list ledger: %w", err)
	}
	defer rows.Close()

	var entries []*entity.BudgetHistoryEntry
	for rows.Next() {
		entry := entity.BudgetHistoryEntry{OwnerKind: kind}
		var txType string
		var tripID, adminID sql.NullInt64

		err := rows.Scan(
			&entry.ID,
			&entry.OwnerID,
			&txType,
			&entry.Amount,
			&entry.RunningBalance,
			&tripID,
			&adminID,
			&entry.Note,
			&entry.CreatedBy,
			&entry.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}

		entry.TransactionType = entity.TransactionType(txType)
		entry.TripRequestID = int64Ptr(tripID)
		entry.AdminRequestID = int64Ptr(adminID)
		entries = append(entries, &entry)
	}

	return entries, rows.Err()
}

// Verify interface compliance
var _ port.BudgetHistoryRepository = (*BudgetHistoryRepository)(nil)
