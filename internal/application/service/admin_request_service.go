package service

import (
	"context"
	"fmt"

	"github.com/garyjia/tripflow/internal/application/port"
	"github.com/garyjia/tripflow/internal/domain/apperror"
	"github.com/garyjia/tripflow/internal/domain/entity"
	"github.com/garyjia/tripflow/internal/domain/event"
	"github.com/garyjia/tripflow/internal/domain/workflow"
	"github.com/garyjia/tripflow/pkg/utils"
	"github.com/shopspring/decimal"
)

// CreateAdminRequestInput is the payload of an administrative request
type CreateAdminRequestInput struct {
	Kind          entity.AdminRequestKind `json:"kind"`
	Subject       string                  `json:"subject"`
	Description   string                  `json:"description"`
	TripRequestID *int64                  `json:"trip_request_id"`
	ProjectID     *int64                  `json:"project_id"`
	Amount        decimal.Decimal         `json:"amount"`
}

// AdminRequestService handles administrative requests. They skip the step
// generator and wait on a single Finance decision.
type AdminRequestService interface {
	Create(ctx context.Context, actor entity.Actor, in CreateAdminRequestInput) (*entity.AdministrativeRequest, error)
	Get(ctx context.Context, id int64) (*entity.AdministrativeRequest, error)
	Decide(ctx context.Context, actor entity.Actor, id int64, approve bool, reason string) (*entity.AdministrativeRequest, error)
	MarkPaid(ctx context.Context, actor entity.Actor, id int64) (*entity.AdministrativeRequest, error)
}

type adminRequestServiceImpl struct {
	flow        *tripFlow
	adminRepo   port.AdminRequestRepository
	projectRepo port.ProjectRepository
	ledger      LedgerService
	audit       AuditService
	txManager   port.TransactionManager
	clock       Clock
	logger      Logger
}

// NewAdminRequestService creates a new AdminRequestService
func NewAdminRequestService(
	repos TripRepositories,
	adminRepo port.AdminRequestRepository,
	ledger LedgerService,
	audit AuditService,
	txManager port.TransactionManager,
	clock Clock,
	logger Logger,
) AdminRequestService {
	return &adminRequestServiceImpl{
		flow: &tripFlow{
			userRepo:   repos.Users,
			tripRepo:   repos.Trips,
			stepRepo:   repos.Steps,
			statusRepo: repos.Statuses,
			ledger:     ledger,
			events:     repos.Events,
		},
		adminRepo:   adminRepo,
		projectRepo: repos.Projects,
		ledger:      ledger,
		audit:       audit,
		txManager:   txManager,
		clock:       nowOr(clock),
		logger:      logger,
	}
}

// Create files a new administrative request pending Finance
func (s *adminRequestServiceImpl) Create(ctx context.Context, actor entity.Actor, in CreateAdminRequestInput) (*entity.AdministrativeRequest, error) {
	in.Subject = utils.SanitizeString(in.Subject)
	in.Description = utils.SanitizeString(in.Description)
	if in.Kind == "" {
		in.Kind = entity.AdminKindGeneral
	}

	var req *entity.AdministrativeRequest
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

		if err := s.validate(txCtx, in); err != nil {
			return err
		}

		now := s.clock()
		candidate := &entity.AdministrativeRequest{
			RequesterID:   actor.UserID,
			Kind:          in.Kind,
			Subject:       in.Subject,
			Description:   in.Description,
			TripRequestID: in.TripRequestID,
			ProjectID:     in.ProjectID,
			Amount:        in.Amount,
			Status:        entity.StatusPendingFinanceApproval,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := s.adminRepo.Create(txCtx, candidate); err != nil {
			return fmt.Errorf("create admin request: %w", err)
		}

		if err := s.appendHistory(txCtx, candidate, "", actor.UserID, ""); err != nil {
			return err
		}

		if err := s.audit.Record(txCtx, actor.UserID, entity.ActionAdminCreated, entity.EntityAdminRequest, candidate.ID, map[string]interface{}{
			"kind":    string(candidate.Kind),
			"subject": candidate.Subject,
			"amount":  candidate.Amount.StringFixed(2),
		}); err != nil {
			return err
		}

		req = candidate
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to create admin request", "error", err, "requester_id", actor.UserID)
		return nil, err
	}
	box.flush(ctx, s.flow.events)

	s.logger.Info("Admin request created", "id", req.ID, "kind", req.Kind)
	return req, nil
}

func (s *adminRequestServiceImpl) validate(ctx context.Context, in CreateAdminRequestInput) error {
	if in.Subject == "" {
		return apperror.Validation("subject", "is required")
	}

	switch in.Kind {
	case entity.AdminKindGeneral:
		return nil

	case entity.AdminKindCostAdjustment:
		if in.TripRequestID == nil {
			return apperror.Validation("trip_request_id", "is required for cost adjustments")
		}
		_, err := s.flow.tripRepo.GetByID(ctx, *in.TripRequestID)
		return err

	case entity.AdminKindBudgetIncrease:
		if in.ProjectID == nil {
			return apperror.Validation("project_id", "is required for budget increases")
		}
		if err := utils.ValidatePositive(in.Amount); err != nil {
			return apperror.Validation("amount", err.Error())
		}
		_, err := s.projectRepo.GetByID(ctx, *in.ProjectID)
		return err

	default:
		return apperror.Validation("kind", fmt.Sprintf("unsupported kind %q", in.Kind))
	}
}

// Get retrieves an administrative request with its status history
func (s *adminRequestServiceImpl) Get(ctx context.Context, id int64) (*entity.AdministrativeRequest, error) {
	req, err := s.adminRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	history, err := s.flow.statusRepo.ListByRequest(ctx, entity.RequestKindAdmin, id)
	if err != nil {
		return nil, fmt.Errorf("load status history: %w", err)
	}
	req.StatusHistory = history
	return req, nil
}

// Decide records the Finance decision. An approved budget increase raises the project's adjustments.
// Finance may reject but never approve its own request.
func (s *adminRequestServiceImpl) Decide(ctx context.Context, actor entity.Actor, id int64, approve bool, reason string) (*entity.AdministrativeRequest, error) {
	var req *entity.AdministrativeRequest
	box := &outbox{}

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		txCtx = box.begin(txCtx)
		if _, err := s.flow.requireRole(txCtx, actor, entity.RoleFinance); err != nil {
			return err
		}

		current, err := s.adminRepo.GetByID(txCtx, id)
		if err != nil {
			return err
		}
		if current.Status != entity.StatusPendingFinanceApproval {
			return &apperror.NoPendingStepError{RequestID: id}
		}
		if approve && current.RequesterID == actor.UserID {
			return &apperror.SelfApprovalError{UserID: actor.UserID, StepType: string(entity.StepFinanceApproval)}
		}

		target := workflow.StateRejected
		action := entity.ActionAdminRejected
		if approve {
			target = workflow.StateApproved
			action = entity.ActionAdminApproved
		}

		from := current.Status
		if err := workflow.Transition(txCtx, workflow.State(from), target); err != nil {
			return &apperror.InvalidTransitionError{From: from, To: string(target), Cause: err}
		}

		now := s.clock()
		current.Status = string(target)
		current.DecidedBy = int64Ref(actor.UserID)
		current.DecidedAt = &now
		current.Reason = reason
		if err := s.adminRepo.Update(txCtx, current); err != nil {
			return fmt.Errorf("update admin request: %w", err)
		}

		if err := s.appendHistory(txCtx, current, from, actor.UserID, reason); err != nil {
			return err
		}

		if approve && current.Kind == entity.AdminKindBudgetIncrease && current.ProjectID != nil {
			if _, err := s.ledger.AdjustProject(txCtx, *current.ProjectID, current.Amount, LedgerRef{
				ActorID:        actor.UserID,
				AdminRequestID: int64Ref(current.ID),
				Note:           current.Subject,
			}); err != nil {
				return err
			}
		}

		if err := s.audit.Record(txCtx, actor.UserID, action, entity.EntityAdminRequest, id, map[string]interface{}{
			"from_status": from,
			"to_status":   current.Status,
			"reason":      reason,
		}); err != nil {
			return err
		}

		req = current
		return nil
	})
	if err != nil {
		s.logger.Error("Admin request decision failed", "error", err, "id", id)
		return nil, err
	}
	box.flush(ctx, s.flow.events)

	s.logger.Info("Admin request decided", "id", id, "status", req.Status)
	return req, nil
}

// MarkPaid settles an approved administrative request
func (s *adminRequestServiceImpl) MarkPaid(ctx context.Context, actor entity.Actor, id int64) (*entity.AdministrativeRequest, error) {
	var req *entity.AdministrativeRequest
	box := &outbox{}

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		txCtx = box.begin(txCtx)
		if _, err := s.flow.requireRole(txCtx, actor, entity.RoleFinance); err != nil {
			return err
		}

		current, err := s.adminRepo.GetByID(txCtx, id)
		if err != nil {
			return err
		}

		from := current.Status
		if err := workflow.Transition(txCtx, workflow.State(from), workflow.StatePaid); err != nil {
			return &apperror.InvalidTransitionError{From: from, To: entity.StatusPaid, Cause: err}
		}

		now := s.clock()
		current.Status = entity.StatusPaid
		current.IsPaid = true
		current.PaidBy = int64Ref(actor.UserID)
		current.PaidAt = &now
		if err := s.adminRepo.Update(txCtx, current); err != nil {
			return fmt.Errorf("update admin request: %w", err)
		}

		if err := s.appendHistory(txCtx, current, from, actor.UserID, ""); err != nil {
			return err
		}

		if err := s.audit.Record(txCtx, actor.UserID, entity.ActionAdminPaid, entity.EntityAdminRequest, id, nil); err != nil {
			return err
		}

		req = current
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to mark admin request paid", "error", err, "id", id)
		return nil, err
	}
	box.flush(ctx, s.flow.events)

	s.logger.Info("Admin request paid", "id", id)
	return req, nil
}

func (s *adminRequestServiceImpl) appendHistory(ctx context.Context, req *entity.AdministrativeRequest, from string, actorID int64, reason string) error {
	entry := &entity.StatusHistoryEntry{
		RequestKind: entity.RequestKindAdmin,
		RequestID:   req.ID,
		FromStatus:  from,
		ToStatus:    req.Status,
		ActorID:     actorID,
		Reason:      reason,
		CreatedAt:   s.clock(),
	}
	if err := s.flow.statusRepo.Append(ctx, entry); err != nil {
		return fmt.Errorf("append status history: %w", err)
	}
	req.StatusHistory = append(req.StatusHistory, entry)
	raise(ctx, event.StatusChanged(event.TypeAdminStatusChanged, req.ID, actorID, from, req.Status, reason, entry.CreatedAt))
	return nil
}
