package service

import (
	"context"
	"fmt"
	"time"

	"github.com/garyjia/tripflow/internal/application/port"
	"github.com/garyjia/tripflow/internal/domain/apperror"
	"github.com/garyjia/tripflow/internal/domain/cost"
	"github.com/garyjia/tripflow/internal/domain/entity"
	"github.com/garyjia/tripflow/internal/domain/event"
	"github.com/garyjia/tripflow/internal/domain/workflow"
	"github.com/garyjia/tripflow/pkg/utils"
	"github.com/shopspring/decimal"
)

// CreateTripInput is the validated payload of a new trip request
type CreateTripInput struct {
	DepartmentID *int64            `json:"department_id"`
	ProjectID    *int64            `json:"project_id"`
	TripDate     time.Time         `json:"trip_date"`
	Origin       string            `json:"origin"`
	Destination  string            `json:"destination"`
	Purpose      string            `json:"purpose"`
	CostMethod   entity.CostMethod `json:"cost_method"`
	Kilometers   decimal.Decimal   `json:"kilometers"`
	Amount       decimal.Decimal   `json:"amount"`
	IsUrgent     bool              `json:"is_urgent"`
}

// TripService manages trip requests outside of approval decisions
type TripService interface {
	CreateTripRequest(ctx context.Context, actor entity.Actor, in CreateTripInput) (*entity.TripRequest, error)
	CancelTrip(ctx context.Context, actor entity.Actor, tripID int64, reason string) (*entity.TripRequest, error)
	GetTrip(ctx context.Context, tripID int64) (*entity.TripRequest, error)
	GetWorkflowSteps(ctx context.Context, tripID int64) ([]*entity.WorkflowStep, error)
	GetStatusHistory(ctx context.Context, tripID int64) ([]*entity.StatusHistoryEntry, error)
	ListTripsByRate(ctx context.Context, rateID int64) ([]*entity.TripRequest, error)
}

type tripServiceImpl struct {
	flow        *tripFlow
	deptRepo    port.DepartmentRepository
	projectRepo port.ProjectRepository
	rateRepo    port.RateRepository
	distance    port.DistanceResolver
	audit       AuditService
	txManager   port.TransactionManager
	options     workflow.GeneratorOptions
	clock       Clock
	logger      Logger
}

// TripRepositories groups the repositories the trip and approval services share
type TripRepositories struct {
	Users       port.UserRepository
	Departments port.DepartmentRepository
	Projects    port.ProjectRepository
	Trips       port.TripRepository
	Steps       port.WorkflowStepRepository
	Statuses    port.StatusHistoryRepository
	Rates       port.RateRepository
	Delegations port.DelegationRepository

	// Events receives committed status changes; nil drops them
	Events port.EventPublisher
}

// NewTripService creates a new TripService. distance may be nil; destination pricing is then refused.
func NewTripService(
	repos TripRepositories,
	ledger LedgerService,
	audit AuditService,
	distance port.DistanceResolver,
	txManager port.TransactionManager,
	options workflow.GeneratorOptions,
	clock Clock,
	logger Logger,
) TripService {
	return &tripServiceImpl{
		flow: &tripFlow{
			userRepo:   repos.Users,
			tripRepo:   repos.Trips,
			stepRepo:   repos.Steps,
			statusRepo: repos.Statuses,
			ledger:     ledger,
			events:     repos.Events,
		},
		deptRepo:    repos.Departments,
		projectRepo: repos.Projects,
		rateRepo:    repos.Rates,
		distance:    distance,
		audit:       audit,
		txManager:   txManager,
		options:     options,
		clock:       nowOr(clock),
		logger:      logger,
	}
}

// CreateTripRequest validates the routing context, prices the trip, generates its
// approval chain and persists request, steps, history and audit atomically
func (s *tripServiceImpl) CreateTripRequest(ctx context.Context, actor entity.Actor, in CreateTripInput) (*entity.TripRequest, error) {
	in.Origin = utils.SanitizeString(in.Origin)
	in.Destination = utils.SanitizeString(in.Destination)
	in.Purpose = utils.SanitizeString(in.Purpose)
	if err := validateTripInput(in); err != nil {
		return nil, err
	}

	var trip *entity.TripRequest
	box := &outbox{}
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		txCtx = box.begin(txCtx)
		requester, err := s.flow.loadActor(txCtx, actor)
		if err != nil {
			return err
		}
		if requester == nil {
			return &apperror.NotAuthorizedError{ActorID: actor.UserID, Reason: "unknown requester"}
		}

		org, err := s.routing(txCtx, &in)
		if err != nil {
			return err
		}

		priced, err := s.price(txCtx, in)
		if err != nil {
			return err
		}

		now := s.clock()
		candidate := &entity.TripRequest{
			RequesterID:  actor.UserID,
			DepartmentID: in.DepartmentID,
			ProjectID:    in.ProjectID,
			TripDate:     in.TripDate.UTC(),
			Origin:       in.Origin,
			Destination:  in.Destination,
			Purpose:      in.Purpose,
			CostMethod:   priced.Method,
			Kilometers:   priced.Kilometers,
			RateID:       priced.RateID,
			RateValue:    priced.RateValue,
			Cost:         priced.Cost,
			IsUrgent:     in.IsUrgent,
			CreatedAt:    now,
			UpdatedAt:    now,
		}

		steps, err := workflow.GenerateSteps(candidate, org, s.options)
		if err != nil {
			return err
		}

		status, err := workflow.ProjectStatus(steps, false, false)
		if err != nil {
			return err
		}
		candidate.Status = string(status)

		if err := s.flow.tripRepo.Create(txCtx, candidate); err != nil {
			return fmt.Errorf("create trip request: %w", err)
		}
		for _, step := range steps {
			step.TripRequestID = candidate.ID
			step.CreatedAt = now
		}
		if err := s.flow.stepRepo.CreateBatch(txCtx, steps); err != nil {
			return fmt.Errorf("create workflow steps: %w", err)
		}

		entry := &entity.StatusHistoryEntry{
			RequestKind: entity.RequestKindTrip,
			RequestID:   candidate.ID,
			ToStatus:    candidate.Status,
			ActorID:     actor.UserID,
			CreatedAt:   now,
		}
		if err := s.flow.statusRepo.Append(txCtx, entry); err != nil {
			return fmt.Errorf("append status history: %w", err)
		}
		candidate.StatusHistory = []*entity.StatusHistoryEntry{entry}
		raise(txCtx, event.StatusChanged(event.TypeTripStatusChanged, candidate.ID, actor.UserID, "", candidate.Status, "", now))

		if err := s.audit.Record(txCtx, actor.UserID, entity.ActionTripCreated, entity.EntityTripRequest, candidate.ID, map[string]interface{}{
			"status":      candidate.Status,
			"cost":        candidate.Cost.StringFixed(2),
			"cost_method": string(candidate.CostMethod),
			"steps":       len(steps),
			"is_urgent":   candidate.IsUrgent,
		}); err != nil {
			return err
		}

		trip = candidate
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to create trip request", "error", err, "requester_id", actor.UserID)
		return nil, err
	}
	box.flush(ctx, s.flow.events)

	s.logger.Info("Trip request created", "id", trip.ID, "status", trip.Status, "cost", trip.Cost.StringFixed(2))
	return trip, nil
}

func validateTripInput(in CreateTripInput) error {
	switch {
	case in.DepartmentID == nil && in.ProjectID == nil:
		return apperror.Validation("department_id", "a department or a project is required")
	case in.TripDate.IsZero():
		return apperror.Validation("trip_date", "is required")
	case in.Origin == "":
		return apperror.Validation("origin", "is required")
	case in.Destination == "":
		return apperror.Validation("destination", "is required")
	case in.Purpose == "":
		return apperror.Validation("purpose", "is required")
	}

	switch in.CostMethod {
	case entity.CostDirect:
		if err := utils.ValidateAmount(in.Amount); err != nil {
			return apperror.Validation("amount", err.Error())
		}
	case entity.CostKilometers:
		if err := utils.ValidatePositive(in.Kilometers); err != nil {
			return apperror.Validation("kilometers", err.Error())
		}
	case entity.CostDestination:
	default:
		return apperror.Validation("cost_method", fmt.Sprintf("unsupported method %q", in.CostMethod))
	}
	return nil
}

// routing loads the organization context. Project-routed trips inherit the project's department.
func (s *tripServiceImpl) routing(ctx context.Context, in *CreateTripInput) (workflow.RoutingContext, error) {
	var org workflow.RoutingContext

	if in.ProjectID != nil {
		project, err := s.projectRepo.GetByID(ctx, *in.ProjectID)
		if err != nil {
			return org, err
		}
		if !project.IsActive {
			return org, apperror.Validation("project_id", "project is not active")
		}
		if in.DepartmentID != nil && *in.DepartmentID != project.DepartmentID {
			return org, apperror.Validation("department_id", "does not match the project's department")
		}
		in.DepartmentID = int64Ref(project.DepartmentID)
		org.Project = project
	}

	dept, err := s.deptRepo.GetByID(ctx, *in.DepartmentID)
	if err != nil {
		return org, err
	}
	org.Department = dept
	return org, nil
}

// price resolves the trip's cost. Destination trips ask the distance collaborator first.
func (s *tripServiceImpl) price(ctx context.Context, in CreateTripInput) (*cost.Result, error) {
	input := cost.Input{
		Method:        in.CostMethod,
		DistanceKm:    in.Kilometers,
		DirectAmount:  in.Amount,
		EffectiveDate: in.TripDate.UTC(),
	}

	if in.CostMethod == entity.CostDirect {
		return cost.Resolve(input, nil)
	}

	if in.CostMethod == entity.CostDestination {
		if s.distance == nil {
			return nil, apperror.Validation("cost_method", "destination pricing is not available")
		}
		km, err := s.distance.DistanceKm(ctx, in.Origin, in.Destination)
		if err != nil {
			return nil, fmt.Errorf("resolve distance: %w", err)
		}
		input.DistanceKm = km
	}

	rates, err := s.rateRepo.ListCovering(ctx, input.EffectiveDate)
	if err != nil {
		return nil, fmt.Errorf("list kilometer rates: %w", err)
	}
	return cost.Resolve(input, rates)
}

// CancelTrip withdraws a non-terminal trip. Only the requester or an acting admin may cancel.
func (s *tripServiceImpl) CancelTrip(ctx context.Context, actor entity.Actor, tripID int64, reason string) (*entity.TripRequest, error) {
	var trip *entity.TripRequest
	box := &outbox{}

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		txCtx = box.begin(txCtx)
		current, err := s.flow.tripRepo.GetByID(txCtx, tripID)
		if err != nil {
			return err
		}

		if current.RequesterID != actor.UserID {
			if _, err := s.flow.requireRole(txCtx, actor, entity.RoleAdmin); err != nil {
				return err
			}
		}

		if current.IsTerminal() {
			return &apperror.InvalidTransitionError{
				From:  current.Status,
				To:    entity.StatusCancelled,
				Cause: workflow.ErrInvalidTransition,
			}
		}

		steps, err := s.flow.stepRepo.GetByTripID(txCtx, tripID)
		if err != nil {
			return fmt.Errorf("load workflow steps: %w", err)
		}

		now := s.clock()
		if err := s.flow.skipRemaining(txCtx, steps, actor.UserID, "request cancelled", now); err != nil {
			return err
		}
		if err := s.flow.releaseReservation(txCtx, current, actor.UserID, "trip cancelled"); err != nil {
			return err
		}

		current.CancelledAt = &now
		if err := s.flow.commitStatus(txCtx, current, steps, actor.UserID, reason, now); err != nil {
			return err
		}

		if err := s.audit.Record(txCtx, actor.UserID, entity.ActionTripCancelled, entity.EntityTripRequest, tripID, map[string]interface{}{
			"reason": reason,
		}); err != nil {
			return err
		}

		trip = current
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to cancel trip request", "error", err, "id", tripID)
		return nil, err
	}
	box.flush(ctx, s.flow.events)

	s.logger.Info("Trip request cancelled", "id", tripID, "actor_id", actor.UserID)
	return trip, nil
}

// GetTrip retrieves a trip request with its status history
func (s *tripServiceImpl) GetTrip(ctx context.Context, tripID int64) (*entity.TripRequest, error) {
	trip, err := s.flow.tripRepo.GetByID(ctx, tripID)
	if err != nil {
		return nil, err
	}

	history, err := s.flow.statusRepo.ListByRequest(ctx, entity.RequestKindTrip, tripID)
	if err != nil {
		s.logger.Error("Failed to load status history", "error", err, "id", tripID)
		return nil, fmt.Errorf("load status history: %w", err)
	}
	trip.StatusHistory = history
	return trip, nil
}

// GetWorkflowSteps returns the trip's steps in order
func (s *tripServiceImpl) GetWorkflowSteps(ctx context.Context, tripID int64) ([]*entity.WorkflowStep, error) {
	if _, err := s.flow.tripRepo.GetByID(ctx, tripID); err != nil {
		return nil, err
	}
	return s.flow.stepRepo.GetByTripID(ctx, tripID)
}

// GetStatusHistory returns the trip's status changes oldest first
func (s *tripServiceImpl) GetStatusHistory(ctx context.Context, tripID int64) ([]*entity.StatusHistoryEntry, error) {
	if _, err := s.flow.tripRepo.GetByID(ctx, tripID); err != nil {
		return nil, err
	}
	return s.flow.statusRepo.ListByRequest(ctx, entity.RequestKindTrip, tripID)
}

// ListTripsByRate returns every trip priced with a kilometer rate
func (s *tripServiceImpl) ListTripsByRate(ctx context.Context, rateID int64) ([]*entity.TripRequest, error) {
	if _, err := s.rateRepo.GetByID(ctx, rateID); err != nil {
		return nil, err
	}
	return s.flow.tripRepo.ListByRate(ctx, rateID)
}
