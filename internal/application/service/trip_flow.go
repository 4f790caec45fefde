package service

import (
	"context"
	"fmt"
	"time"

	"github.com/garyjia/tripflow/internal/application/port"
	"github.com/garyjia/tripflow/internal/domain/apperror"
	"github.com/garyjia/tripflow/internal/domain/entity"
	"github.com/garyjia/tripflow/internal/domain/event"
	"github.com/garyjia/tripflow/internal/domain/workflow"
	"github.com/shopspring/decimal"
)

// tripFlow holds the write steps shared by decisions, payment and cancellation.
// Every method expects to run inside the caller's transaction.
type tripFlow struct {
	userRepo   port.UserRepository
	tripRepo   port.TripRepository
	stepRepo   port.WorkflowStepRepository
	statusRepo port.StatusHistoryRepository
	ledger     LedgerService
	events     port.EventPublisher
}

// requireRole checks that the actor claims role and actually holds it
func (f *tripFlow) requireRole(ctx context.Context, actor entity.Actor, role entity.Role) (*entity.User, error) {
	deny := func(reason string) error {
		return &apperror.NotAuthorizedError{ActorID: actor.UserID, RequiredRole: string(role), Reason: reason}
	}

	if actor.Role != role {
		return nil, deny(fmt.Sprintf("acting role %q, need %q", actor.Role, role))
	}
	user, err := f.loadActor(ctx, actor)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, deny("unknown actor")
	}
	if !user.HasRole(role) {
		return nil, deny(fmt.Sprintf("user does not hold role %q", role))
	}
	return user, nil
}

// loadActor returns nil, nil for an actor with no user record
func (f *tripFlow) loadActor(ctx context.Context, actor entity.Actor) (*entity.User, error) {
	user, err := f.userRepo.GetByID(ctx, actor.UserID)
	if err != nil {
		if apperror.CodeOf(err) == apperror.CodeNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("load actor: %w", err)
	}
	return user, nil
}

// skipRemaining marks every still-pending step SKIPPED once the request is terminal
func (f *tripFlow) skipRemaining(ctx context.Context, steps []*entity.WorkflowStep, actorID int64, reason string, now time.Time) error {
	for _, step := range steps {
		if !step.IsPending() {
			continue
		}
		step.Status = entity.StepStatusSkipped
		step.DecidedBy = int64Ref(actorID)
		step.DecidedAt = &now
		step.Reason = reason
		if err := f.stepRepo.Decide(ctx, step); err != nil {
			return fmt.Errorf("skip step %d: %w", step.StepOrder, err)
		}
	}
	return nil
}

// releaseReservation restores the full reserved amount, if any, and clears it on the trip
func (f *tripFlow) releaseReservation(ctx context.Context, trip *entity.TripRequest, actorID int64, note string) error {
	if !trip.HasReservation() {
		return nil
	}

	_, err := f.ledger.Restore(ctx, trip.ReservedOwnerKind, *trip.ReservedOwnerID, trip.ReservedAmount, LedgerRef{
		ActorID:       actorID,
		TripRequestID: int64Ref(trip.ID),
		Note:          note,
	})
	if err != nil {
		return fmt.Errorf("restore reservation: %w", err)
	}

	trip.ReservedAmount = decimal.Zero
	trip.ReservedOwnerKind = ""
	trip.ReservedOwnerID = nil
	return nil
}

// commitStatus recomputes the status from the steps, checks the transition against the
// lifecycle, writes the trip and appends one history row
func (f *tripFlow) commitStatus(ctx context.Context, trip *entity.TripRequest, steps []*entity.WorkflowStep, actorID int64, reason string, now time.Time) error {
	from := trip.Status
	next, err := workflow.ProjectStatus(steps, trip.IsPaid, trip.CancelledAt != nil)
	if err != nil {
		return fmt.Errorf("project status: %w", err)
	}

	if err := workflow.Transition(ctx, workflow.State(from), next); err != nil {
		return &apperror.InvalidTransitionError{From: from, To: string(next), Cause: err}
	}

	trip.Status = string(next)
	if err := f.tripRepo.Update(ctx, trip); err != nil {
		return fmt.Errorf("update trip request: %w", err)
	}

	entry := &entity.StatusHistoryEntry{
		RequestKind: entity.RequestKindTrip,
		RequestID:   trip.ID,
		FromStatus:  from,
		ToStatus:    trip.Status,
		ActorID:     actorID,
		Reason:      reason,
		CreatedAt:   now,
	}
	if err := f.statusRepo.Append(ctx, entry); err != nil {
		return fmt.Errorf("append status history: %w", err)
	}
	trip.StatusHistory = append(trip.StatusHistory, entry)

	if from != trip.Status {
		raise(ctx, event.StatusChanged(event.TypeTripStatusChanged, trip.ID, actorID, from, trip.Status, reason, now))
	}
	return nil
}
