package service

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/garyjia/tripflow/internal/application/port"
	"github.com/garyjia/tripflow/internal/domain/apperror"
	"github.com/garyjia/tripflow/internal/domain/budget"
	"github.com/garyjia/tripflow/internal/domain/entity"
	"github.com/shopspring/decimal"
)

// LedgerRef links a ledger row to whatever caused it
type LedgerRef struct {
	ActorID        int64
	TripRequestID  *int64
	AdminRequestID *int64
	Note           string
}

// LedgerService keeps the append-only budget ledgers and the materialized balances
// of departments and projects in step.
type LedgerService interface {
	// Reserve deducts amount. allowNegative is the urgent override.
	Reserve(ctx context.Context, kind entity.OwnerKind, ownerID int64, amount decimal.Decimal, ref LedgerRef, allowNegative bool) (*entity.BudgetHistoryEntry, error)
	Restore(ctx context.Context, kind entity.OwnerKind, ownerID int64, amount decimal.Decimal, ref LedgerRef) (*entity.BudgetHistoryEntry, error)

	// RecordInitial writes the opening row of a freshly created owner
	RecordInitial(ctx context.Context, kind entity.OwnerKind, ownerID int64, ref LedgerRef) (*entity.BudgetHistoryEntry, error)

	CheckBudget(ctx context.Context, kind entity.OwnerKind, ownerID int64, amount decimal.Decimal) (*budget.CheckResult, error)
	CheckForTrip(ctx context.Context, tripID int64) (*budget.CheckResult, error)

	AdjustProject(ctx context.Context, projectID int64, delta decimal.Decimal, ref LedgerRef) (*entity.BudgetHistoryEntry, error)
	GrantBonus(ctx context.Context, departmentID int64, amount decimal.Decimal, expiresAt *time.Time, actorID int64) (*entity.Department, error)
	ResetMonthlyBonus(ctx context.Context, departmentID *int64, actorID int64) (int, error)

	History(ctx context.Context, kind entity.OwnerKind, ownerID int64) ([]*entity.BudgetHistoryEntry, error)
	ExportHistory(ctx context.Context, kind entity.OwnerKind, ownerID int64, w io.Writer) error
}

type ledgerServiceImpl struct {
	deptRepo    port.DepartmentRepository
	projectRepo port.ProjectRepository
	tripRepo    port.TripRepository
	historyRepo port.BudgetHistoryRepository
	audit       AuditService
	exporter    port.LedgerExporter
	txManager   port.TransactionManager
	clock       Clock
	logger      Logger
}

// NewLedgerService creates a new LedgerService. exporter may be nil when export is not offered.
func NewLedgerService(
	deptRepo port.DepartmentRepository,
	projectRepo port.ProjectRepository,
	tripRepo port.TripRepository,
	historyRepo port.BudgetHistoryRepository,
	audit AuditService,
	exporter port.LedgerExporter,
	txManager port.TransactionManager,
	clock Clock,
	logger Logger,
) LedgerService {
	return &ledgerServiceImpl{
		deptRepo:    deptRepo,
		projectRepo: projectRepo,
		tripRepo:    tripRepo,
		historyRepo: historyRepo,
		audit:       audit,
		exporter:    exporter,
		txManager:   txManager,
		clock:       nowOr(clock),
		logger:      logger,
	}
}

// owner is one loaded budget owner of either kind
type owner struct {
	dept    *entity.Department
	project *entity.Project
}

func (o *owner) kind() entity.OwnerKind {
	if o.project != nil {
		return entity.OwnerProject
	}
	return entity.OwnerDepartment
}

func (o *owner) id() int64 {
	if o.project != nil {
		return o.project.ID
	}
	return o.dept.ID
}

func (o *owner) name() string {
	if o.project != nil {
		return o.project.Name
	}
	return o.dept.Name
}

func (o *owner) snapshot(now time.Time) budget.Snapshot {
	if o.project != nil {
		return budget.FromProject(o.project)
	}
	return budget.FromDepartment(o.dept, now)
}

// apply copies a post-movement snapshot back onto the entity
func (o *owner) apply(s budget.Snapshot) {
	if o.project != nil {
		o.project.SpentBudget = s.Spent
		o.project.BudgetAdjustments = s.Adjustments
		o.project.AvailableBudget = s.Available()
		return
	}
	o.dept.SpentBudget = s.Spent
	o.dept.AvailableBudget = s.Available()
}

func (s *ledgerServiceImpl) load(ctx context.Context, kind entity.OwnerKind, ownerID int64) (*owner, error) {
	switch kind {
	case entity.OwnerProject:
		p, err := s.projectRepo.GetByID(ctx, ownerID)
		if err != nil {
			return nil, err
		}
		return &owner{project: p}, nil
	case entity.OwnerDepartment:
		d, err := s.deptRepo.GetByID(ctx, ownerID)
		if err != nil {
			return nil, err
		}
		return &owner{dept: d}, nil
	default:
		return nil, apperror.Validation("owner_kind", fmt.Sprintf("unknown owner kind %q", kind))
	}
}

// loadSettled loads an owner and writes off a lapsed department bonus first, so the
// movement that follows starts from a ledger whose running balance matches the formula.
func (s *ledgerServiceImpl) loadSettled(ctx context.Context, kind entity.OwnerKind, ownerID int64, actorID int64, now time.Time) (*owner, error) {
	o, err := s.load(ctx, kind, ownerID)
	if err != nil {
		return nil, err
	}
	if o.dept == nil || !budget.BonusExpired(o.dept, now) {
		return o, nil
	}

	lapsed := o.dept.MonthlyBudgetBonus
	o.dept.MonthlyBudgetBonus = decimal.Zero
	o.dept.BonusExpiresAt = nil
	o.dept.BonusResetAt = &now
	snap := o.snapshot(now)
	o.apply(snap)

	if _, err := s.appendRow(ctx, o, entity.TxAdjustment, lapsed.Neg(), snap.Available(), LedgerRef{
		ActorID: actorID,
		Note:    "monthly bonus expired",
	}, now); err != nil {
		return nil, err
	}
	return o, nil
}

func (s *ledgerServiceImpl) persist(ctx context.Context, o *owner) error {
	if o.project != nil {
		return s.projectRepo.UpdateBudgetState(ctx, o.project)
	}
	return s.deptRepo.UpdateBudgetState(ctx, o.dept)
}

// appendRow persists the owner and writes the matching ledger row
func (s *ledgerServiceImpl) appendRow(ctx context.Context, o *owner, txType entity.TransactionType, amount, balance decimal.Decimal, ref LedgerRef, now time.Time) (*entity.BudgetHistoryEntry, error) {
	if err := s.persist(ctx, o); err != nil {
		return nil, fmt.Errorf("update %s budget: %w", o.kind(), err)
	}

	entry := &entity.BudgetHistoryEntry{
		OwnerKind:       o.kind(),
		OwnerID:         o.id(),
		TransactionType: txType,
		Amount:          amount,
		RunningBalance:  balance,
		TripRequestID:   ref.TripRequestID,
		AdminRequestID:  ref.AdminRequestID,
		Note:            ref.Note,
		CreatedBy:       ref.ActorID,
		CreatedAt:       now,
	}
	if err := s.historyRepo.Append(ctx, entry); err != nil {
		return nil, fmt.Errorf("append ledger row: %w", err)
	}
	return entry, nil
}

// Reserve deducts amount from the owner and appends an allocation row
func (s *ledgerServiceImpl) Reserve(ctx context.Context, kind entity.OwnerKind, ownerID int64, amount decimal.Decimal, ref LedgerRef, allowNegative bool) (*entity.BudgetHistoryEntry, error) {
	var entry *entity.BudgetHistoryEntry

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		now := s.clock()
		o, err := s.loadSettled(txCtx, kind, ownerID, ref.ActorID, now)
		if err != nil {
			return err
		}

		move, err := budget.Allocate(o.snapshot(now), amount, allowNegative)
		if err != nil {
			return err
		}
		o.apply(move.Snapshot)

		entry, err = s.appendRow(txCtx, o, entity.TxAllocation, move.Amount, move.RunningBalance, ref, now)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Budget reserved",
		"owner_kind", kind,
		"owner_id", ownerID,
		"amount", amount.StringFixed(2),
		"balance", entry.RunningBalance.StringFixed(2),
		"override", allowNegative)
	return entry, nil
}

// Restore returns amount to the owner and appends a deallocation row
func (s *ledgerServiceImpl) Restore(ctx context.Context, kind entity.OwnerKind, ownerID int64, amount decimal.Decimal, ref LedgerRef) (*entity.BudgetHistoryEntry, error) {
	var entry *entity.BudgetHistoryEntry

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		now := s.clock()
		o, err := s.loadSettled(txCtx, kind, ownerID, ref.ActorID, now)
		if err != nil {
			return err
		}

		move, err := budget.Deallocate(o.snapshot(now), amount)
		if err != nil {
			return err
		}
		o.apply(move.Snapshot)

		entry, err = s.appendRow(txCtx, o, entity.TxDeallocation, move.Amount, move.RunningBalance, ref, now)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Budget restored",
		"owner_kind", kind,
		"owner_id", ownerID,
		"amount", amount.StringFixed(2),
		"balance", entry.RunningBalance.StringFixed(2))
	return entry, nil
}

// RecordInitial writes the opening row with the owner's base budget
func (s *ledgerServiceImpl) RecordInitial(ctx context.Context, kind entity.OwnerKind, ownerID int64, ref LedgerRef) (*entity.BudgetHistoryEntry, error) {
	var entry *entity.BudgetHistoryEntry

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		o, err := s.load(txCtx, kind, ownerID)
		if err != nil {
			return err
		}

		now := s.clock()
		snap := o.snapshot(now)
		o.apply(snap)

		entry, err = s.appendRow(txCtx, o, entity.TxInitial, snap.Base, snap.Available(), ref, now)
		return err
	})
	return entry, err
}

// CheckBudget is the read-only probe; it shares the formula with Reserve
func (s *ledgerServiceImpl) CheckBudget(ctx context.Context, kind entity.OwnerKind, ownerID int64, amount decimal.Decimal) (*budget.CheckResult, error) {
	if amount.IsNegative() {
		return nil, apperror.Validation("cost", "must not be negative")
	}

	o, err := s.load(ctx, kind, ownerID)
	if err != nil {
		return nil, err
	}

	result := budget.Check(o.snapshot(s.clock()), amount)
	return &result, nil
}

// CheckForTrip probes the trip's owning budget with the trip's cost
func (s *ledgerServiceImpl) CheckForTrip(ctx context.Context, tripID int64) (*budget.CheckResult, error) {
	trip, err := s.tripRepo.GetByID(ctx, tripID)
	if err != nil {
		return nil, err
	}
	kind, ownerID := ReservationOwner(trip)
	return s.CheckBudget(ctx, kind, ownerID, trip.Cost)
}

// AdjustProject applies a manual delta to a project's budget adjustments
func (s *ledgerServiceImpl) AdjustProject(ctx context.Context, projectID int64, delta decimal.Decimal, ref LedgerRef) (*entity.BudgetHistoryEntry, error) {
	if delta.IsZero() {
		return nil, apperror.Validation("amount", "adjustment must not be zero")
	}

	var entry *entity.BudgetHistoryEntry
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		o, err := s.load(txCtx, entity.OwnerProject, projectID)
		if err != nil {
			return err
		}

		now := s.clock()
		snap := o.snapshot(now)
		snap.Adjustments = snap.Adjustments.Add(delta)
		o.apply(snap)

		entry, err = s.appendRow(txCtx, o, entity.TxAdjustment, delta, snap.Available(), ref, now)
		if err != nil {
			return err
		}

		return s.audit.Record(txCtx, ref.ActorID, entity.ActionBudgetAdjusted, entity.EntityProject, projectID, map[string]interface{}{
			"delta":            delta.StringFixed(2),
			"available_budget": snap.Available().StringFixed(2),
			"admin_request_id": ref.AdminRequestID,
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Project budget adjusted", "project_id", projectID, "delta", delta.StringFixed(2))
	return entry, nil
}

// GrantBonus sets a department's monthly bonus. The ledger row carries the change in effective bonus.
func (s *ledgerServiceImpl) GrantBonus(ctx context.Context, departmentID int64, amount decimal.Decimal, expiresAt *time.Time, actorID int64) (*entity.Department, error) {
	if !amount.IsPositive() {
		return nil, apperror.Validation("amount", "bonus must be positive")
	}

	var dept *entity.Department
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		now := s.clock()
		if expiresAt != nil && !expiresAt.After(now) {
			return apperror.Validation("expires_at", "must be in the future")
		}

		o, err := s.loadSettled(txCtx, entity.OwnerDepartment, departmentID, actorID, now)
		if err != nil {
			return err
		}

		previous := o.dept.MonthlyBudgetBonus
		o.dept.MonthlyBudgetBonus = amount
		o.dept.BonusExpiresAt = expiresAt
		snap := o.snapshot(now)
		o.apply(snap)

		delta := amount.Sub(previous)
		if _, err := s.appendRow(txCtx, o, entity.TxAdjustment, delta, snap.Available(), LedgerRef{
			ActorID: actorID,
			Note:    "monthly bonus granted",
		}, now); err != nil {
			return err
		}

		dept = o.dept
		return s.audit.Record(txCtx, actorID, entity.ActionBonusGranted, entity.EntityDepartment, departmentID, map[string]interface{}{
			"bonus":    amount.StringFixed(2),
			"previous": previous.StringFixed(2),
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Monthly bonus granted", "department_id", departmentID, "amount", amount.StringFixed(2))
	return dept, nil
}

// ResetMonthlyBonus zeroes every bonus still on the books, expired or not, one
// transaction per department. It returns how many departments were reset.
func (s *ledgerServiceImpl) ResetMonthlyBonus(ctx context.Context, departmentID *int64, actorID int64) (int, error) {
	depts, err := s.deptRepo.ListWithActiveBonus(ctx, departmentID)
	if err != nil {
		s.logger.Error("Failed to list departments for bonus reset", "error", err)
		return 0, fmt.Errorf("list departments: %w", err)
	}

	count := 0
	for _, candidate := range depts {
		if candidate.MonthlyBudgetBonus.IsZero() {
			continue
		}

		reset := false
		err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
			reset = false
			o, err := s.load(txCtx, entity.OwnerDepartment, candidate.ID)
			if err != nil {
				return err
			}

			now := s.clock()
			bonus := o.dept.MonthlyBudgetBonus
			if bonus.IsZero() {
				return nil
			}

			o.dept.MonthlyBudgetBonus = decimal.Zero
			o.dept.BonusExpiresAt = nil
			o.dept.BonusResetAt = &now
			snap := o.snapshot(now)
			o.apply(snap)

			if _, err := s.appendRow(txCtx, o, entity.TxAdjustment, bonus.Neg(), snap.Available(), LedgerRef{
				ActorID: actorID,
				Note:    "monthly bonus reset",
			}, now); err != nil {
				return err
			}

			reset = true
			return s.audit.Record(txCtx, actorID, entity.ActionBonusReset, entity.EntityDepartment, o.dept.ID, map[string]interface{}{
				"bonus": bonus.StringFixed(2),
			})
		})
		if err != nil {
			s.logger.Error("Failed to reset monthly bonus", "error", err, "department_id", candidate.ID)
			return count, fmt.Errorf("reset bonus of department %d: %w", candidate.ID, err)
		}
		if reset {
			count++
		}
	}

	s.logger.Info("Monthly bonus reset completed", "departments", count)
	return count, nil
}

// History returns an owner's ledger oldest first
func (s *ledgerServiceImpl) History(ctx context.Context, kind entity.OwnerKind, ownerID int64) ([]*entity.BudgetHistoryEntry, error) {
	if _, err := s.load(ctx, kind, ownerID); err != nil {
		return nil, err
	}
	return s.historyRepo.ListByOwner(ctx, kind, ownerID)
}

// ExportHistory renders an owner's ledger through the configured exporter
func (s *ledgerServiceImpl) ExportHistory(ctx context.Context, kind entity.OwnerKind, ownerID int64, w io.Writer) error {
	if s.exporter == nil {
		return fmt.Errorf("ledger export is not configured")
	}

	o, err := s.load(ctx, kind, ownerID)
	if err != nil {
		return err
	}

	entries, err := s.historyRepo.ListByOwner(ctx, kind, ownerID)
	if err != nil {
		return fmt.Errorf("list ledger: %w", err)
	}

	if err := s.exporter.Export(ctx, port.LedgerOwner{Kind: kind, ID: ownerID, Name: o.name()}, entries, w); err != nil {
		s.logger.Error("Failed to export ledger", "error", err, "owner_kind", kind, "owner_id", ownerID)
		return fmt.Errorf("export ledger: %w", err)
	}
	return nil
}

// ReservationOwner names the budget a trip draws on: its project when project-routed, else its department
func ReservationOwner(trip *entity.TripRequest) (entity.OwnerKind, int64) {
	if trip.ProjectID != nil {
		return entity.OwnerProject, *trip.ProjectID
	}
	if trip.DepartmentID != nil {
		return entity.OwnerDepartment, *trip.DepartmentID
	}
	return entity.OwnerDepartment, 0
}
