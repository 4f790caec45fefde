package port

import (
	"context"
	"time"

	"github.com/garyjia/tripflow/internal/domain/entity"
)

// UserRepository defines persistence operations for User
type UserRepository interface {
	Create(ctx context.Context, user *entity.User) error
	GetByID(ctx context.Context, id int64) (*entity.User, error)
}

// DepartmentRepository defines persistence operations for Department
type DepartmentRepository interface {
	Create(ctx context.Context, dept *entity.Department) error
	GetByID(ctx context.Context, id int64) (*entity.Department, error)

	// UpdateBudgetState writes spent, bonus fields and the materialized available budget
	UpdateBudgetState(ctx context.Context, dept *entity.Department) error

	// ListWithActiveBonus returns departments whose bonus is non-zero, optionally only one
	ListWithActiveBonus(ctx context.Context, departmentID *int64) ([]*entity.Department, error)
}

// ProjectRepository defines persistence operations for Project
type ProjectRepository interface {
	Create(ctx context.Context, project *entity.Project) error
	GetByID(ctx context.Context, id int64) (*entity.Project, error)

	// UpdateBudgetState writes spent, adjustments and the materialized available budget
	UpdateBudgetState(ctx context.Context, project *entity.Project) error
	SetActive(ctx context.Context, id int64, active bool) error
}

// TripRepository defines persistence operations for TripRequest
type TripRepository interface {
	Create(ctx context.Context, trip *entity.TripRequest) error
	GetByID(ctx context.Context, id int64) (*entity.TripRequest, error)

	// Update writes status, reservation, pay and cancel fields. It succeeds only when the
	// stored version equals trip.Version and bumps it; otherwise ConcurrencyConflictError.
	Update(ctx context.Context, trip *entity.TripRequest) error

	// ListByRate returns trips whose cost was derived from the given kilometer rate
	ListByRate(ctx context.Context, rateID int64) ([]*entity.TripRequest, error)
}

// AdminRequestRepository defines persistence operations for AdministrativeRequest
type AdminRequestRepository interface {
	Create(ctx context.Context, req *entity.AdministrativeRequest) error
	GetByID(ctx context.Context, id int64) (*entity.AdministrativeRequest, error)
	Update(ctx context.Context, req *entity.AdministrativeRequest) error
}

// WorkflowStepRepository defines persistence operations for WorkflowStep
type WorkflowStepRepository interface {
	// CreateBatch inserts all steps of one request
	CreateBatch(ctx context.Context, steps []*entity.WorkflowStep) error

	// GetByTripID returns steps ordered by step_order
	GetByTripID(ctx context.Context, tripID int64) ([]*entity.WorkflowStep, error)

	// Decide moves a PENDING step to its new status; a step that is no longer
	// pending yields ConcurrencyConflictError
	Decide(ctx context.Context, step *entity.WorkflowStep) error
}

// StatusHistoryRepository is the append-only status log of requests
type StatusHistoryRepository interface {
	Append(ctx context.Context, entry *entity.StatusHistoryEntry) error
	ListByRequest(ctx context.Context, kind entity.RequestKind, requestID int64) ([]*entity.StatusHistoryEntry, error)
}

// BudgetHistoryRepository is the append-only ledger of both owner kinds
type BudgetHistoryRepository interface {
	Append(ctx context.Context, entry *entity.BudgetHistoryEntry) error
	ListByOwner(ctx context.Context, kind entity.OwnerKind, ownerID int64) ([]*entity.BudgetHistoryEntry, error)
}

// AuditRepository is the append-only audit log
type AuditRepository interface {
	Append(ctx context.Context, entry *entity.AuditLogEntry) error

	// List returns entries newest first, filtered by actor when actorID is set
	List(ctx context.Context, actorID *int64, limit int) ([]*entity.AuditLogEntry, error)
}

// RateRepository defines persistence operations for KilometerRate
type RateRepository interface {
	Create(ctx context.Context, rate *entity.KilometerRate) error
	GetByID(ctx context.Context, id int64) (*entity.KilometerRate, error)

	// ListCovering returns every rate whose window contains date
	ListCovering(ctx context.Context, date time.Time) ([]*entity.KilometerRate, error)
}

// DelegationRepository defines persistence operations for Delegation
type DelegationRepository interface {
	Create(ctx context.Context, d *entity.Delegation) error

	// ListActiveForDelegate returns delegations to delegateID valid at t
	ListActiveForDelegate(ctx context.Context, delegateID int64, at time.Time) ([]*entity.Delegation, error)
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
