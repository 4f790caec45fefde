package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/garyjia/tripflow/internal/application/port"
	"github.com/garyjia/tripflow/internal/domain/apperror"
	"github.com/garyjia/tripflow/internal/domain/entity"
	"github.com/garyjia/tripflow/internal/domain/event"
	"github.com/garyjia/tripflow/internal/domain/workflow"
)

// DecisionInput is one approve/reject action on a trip request
type DecisionInput struct {
	TripID  int64  `json:"trip_id"`
	Approve bool   `json:"approve"`
	Reason  string `json:"reason"`
}

// DecisionResult is the per-item outcome of a bulk decision
type DecisionResult struct {
	TripID  int64                  `json:"trip_id"`
	Success bool                   `json:"success"`
	Trip    *entity.TripRequest    `json:"trip,omitempty"`
	Code    apperror.Code          `json:"code,omitempty"`
	Message string                 `json:"error,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
	Err     error                  `json:"-"`
}

// ApprovalService drives the approval state machine of trip requests
type ApprovalService interface {
	// Decide acts on the head-of-line step of a trip request
	Decide(ctx context.Context, actor entity.Actor, in DecisionInput) (*entity.TripRequest, error)

	// BulkDecide runs every item in its own transaction and reports each outcome
	BulkDecide(ctx context.Context, actor entity.Actor, items []DecisionInput) []DecisionResult

	MarkPaid(ctx context.Context, actor entity.Actor, tripID int64) (*entity.TripRequest, error)
}

type approvalServiceImpl struct {
	flow           *tripFlow
	delegationRepo port.DelegationRepository
	audit          AuditService
	txManager      port.TransactionManager
	clock          Clock
	logger         Logger
}

// NewApprovalService creates a new ApprovalService
func NewApprovalService(
	repos TripRepositories,
	ledger LedgerService,
	audit AuditService,
	txManager port.TransactionManager,
	clock Clock,
	logger Logger,
) ApprovalService {
	return &approvalServiceImpl{
		flow: &tripFlow{
			userRepo:   repos.Users,
			tripRepo:   repos.Trips,
			stepRepo:   repos.Steps,
			statusRepo: repos.Statuses,
			ledger:     ledger,
			events:     repos.Events,
		},
		delegationRepo: repos.Delegations,
		audit:          audit,
		txManager:      txManager,
		clock:          nowOr(clock),
		logger:         logger,
	}
}

// Decide approves or rejects the head-of-line step. Step, ledger, status, history and
// audit writes commit together or not at all.
func (s *approvalServiceImpl) Decide(ctx context.Context, actor entity.Actor, in DecisionInput) (*entity.TripRequest, error) {
	var trip *entity.TripRequest
	box := &outbox{}

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		txCtx = box.begin(txCtx)
		current, err := s.flow.tripRepo.GetByID(txCtx, in.TripID)
		if err != nil {
			return err
		}

		steps, err := s.flow.stepRepo.GetByTripID(txCtx, in.TripID)
		if err != nil {
			return fmt.Errorf("load workflow steps: %w", err)
		}

		head := workflow.HeadStep(steps)
		if head == nil || current.IsTerminal() {
			return &apperror.NoPendingStepError{RequestID: in.TripID}
		}

		now := s.clock()
		if err := s.authorize(txCtx, actor, head, now); err != nil {
			return err
		}

		head.DecidedBy = int64Ref(actor.UserID)
		head.DecidedAt = &now
		head.Reason = in.Reason

		action := entity.ActionStepApproved
		if in.Approve {
			if err := s.reserveIfDue(txCtx, actor, current, head); err != nil {
				return err
			}
			head.Status = entity.StepStatusApproved
			if err := s.flow.stepRepo.Decide(txCtx, head); err != nil {
				return fmt.Errorf("approve step %d: %w", head.StepOrder, err)
			}
		} else {
			action = entity.ActionStepRejected
			head.Status = entity.StepStatusRejected
			if err := s.flow.stepRepo.Decide(txCtx, head); err != nil {
				return fmt.Errorf("reject step %d: %w", head.StepOrder, err)
			}
			if err := s.flow.skipRemaining(txCtx, steps, actor.UserID, "request rejected", now); err != nil {
				return err
			}
			if err := s.flow.releaseReservation(txCtx, current, actor.UserID, "trip rejected"); err != nil {
				return err
			}
		}

		from := current.Status
		if err := s.flow.commitStatus(txCtx, current, steps, actor.UserID, in.Reason, now); err != nil {
			return err
		}

		if err := s.audit.Record(txCtx, actor.UserID, action, entity.EntityTripRequest, current.ID, map[string]interface{}{
			"step_id":     head.ID,
			"step_order":  head.StepOrder,
			"step_type":   string(head.StepType),
			"acting_role": string(actor.Role),
			"from_status": from,
			"to_status":   current.Status,
			"reason":      in.Reason,
		}); err != nil {
			return err
		}

		trip = current
		return nil
	})
	if err != nil {
		s.logger.Error("Decision failed", "error", err, "trip_id", in.TripID, "actor_id", actor.UserID, "approve", in.Approve)
		return nil, err
	}
	box.flush(ctx, s.flow.events)

	s.logger.Info("Decision recorded", "trip_id", trip.ID, "actor_id", actor.UserID, "approve", in.Approve, "status", trip.Status)
	return trip, nil
}

func (s *approvalServiceImpl) authorize(ctx context.Context, actor entity.Actor, step *entity.WorkflowStep, now time.Time) error {
	user, err := s.flow.loadActor(ctx, actor)
	if err != nil {
		return err
	}

	var delegations []*entity.Delegation
	if step.ApproverID != nil && *step.ApproverID != actor.UserID {
		delegations, err = s.delegationRepo.ListActiveForDelegate(ctx, actor.UserID, now)
		if err != nil {
			return fmt.Errorf("load delegations: %w", err)
		}
	}

	return workflow.Authorize(actor, user, step, delegations, now)
}

// reserveIfDue reserves the trip's cost when the step is the reservation point.
// Urgent trips pass allowNegative, so the reservation is always ledgered.
func (s *approvalServiceImpl) reserveIfDue(ctx context.Context, actor entity.Actor, trip *entity.TripRequest, step *entity.WorkflowStep) error {
	if !step.ReservesBudget || trip.HasReservation() || !trip.Cost.IsPositive() {
		return nil
	}

	kind, ownerID := ReservationOwner(trip)
	entry, err := s.flow.ledger.Reserve(ctx, kind, ownerID, trip.Cost, LedgerRef{
		ActorID:       actor.UserID,
		TripRequestID: int64Ref(trip.ID),
		Note:          fmt.Sprintf("reserved at %s", step.StepType),
	}, trip.IsUrgent)
	if err != nil {
		return err
	}

	trip.ReservedAmount = trip.Cost
	trip.ReservedOwnerKind = kind
	trip.ReservedOwnerID = int64Ref(ownerID)

	if entry.RunningBalance.IsNegative() {
		raise(ctx, event.NewEvent(event.TypeBudgetOverridden, trip.ID, actor.UserID, entry.CreatedAt, map[string]interface{}{
			"owner_kind": string(kind),
			"owner_id":   ownerID,
			"amount":     trip.Cost.StringFixed(2),
			"balance":    entry.RunningBalance.StringFixed(2),
		}))
	}
	return nil
}

// BulkDecide applies each decision independently
func (s *approvalServiceImpl) BulkDecide(ctx context.Context, actor entity.Actor, items []DecisionInput) []DecisionResult {
	results := make([]DecisionResult, 0, len(items))

	for _, item := range items {
		result := DecisionResult{TripID: item.TripID}

		trip, err := s.Decide(ctx, actor, item)
		if err != nil {
			result.Err = err
			result.Message = err.Error()
			result.Code = apperror.CodeOf(err)
			var coded apperror.Coded
			if errors.As(err, &coded) {
				result.Details = coded.Details()
			}
		} else {
			result.Success = true
			result.Trip = trip
		}

		results = append(results, result)
	}

	return results
}

// MarkPaid settles an approved trip. Only an acting finance user may pay.
func (s *approvalServiceImpl) MarkPaid(ctx context.Context, actor entity.Actor, tripID int64) (*entity.TripRequest, error) {
	var trip *entity.TripRequest
	box := &outbox{}

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		txCtx = box.begin(txCtx)
		if _, err := s.flow.requireRole(txCtx, actor, entity.RoleFinance); err != nil {
			return err
		}

		current, err := s.flow.tripRepo.GetByID(txCtx, tripID)
		if err != nil {
			return err
		}
		if current.Status != entity.StatusApproved {
			return &apperror.InvalidTransitionError{
				From:  current.Status,
				To:    entity.StatusPaid,
				Cause: workflow.ErrInvalidTransition,
			}
		}

		steps, err := s.flow.stepRepo.GetByTripID(txCtx, tripID)
		if err != nil {
			return fmt.Errorf("load workflow steps: %w", err)
		}

		now := s.clock()
		current.IsPaid = true
		current.PaidBy = int64Ref(actor.UserID)
		current.PaidAt = &now

		if err := s.flow.commitStatus(txCtx, current, steps, actor.UserID, "", now); err != nil {
			return err
		}

		if err := s.audit.Record(txCtx, actor.UserID, entity.ActionTripPaid, entity.EntityTripRequest, tripID, map[string]interface{}{
			"cost": current.Cost.StringFixed(2),
		}); err != nil {
			return err
		}

		trip = current
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to mark trip paid", "error", err, "id", tripID)
		return nil, err
	}
	box.flush(ctx, s.flow.events)

	s.logger.Info("Trip request paid", "id", tripID, "paid_by", actor.UserID)
	return trip, nil
}
