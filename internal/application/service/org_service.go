package service

import (
	"context"
	"fmt"
	"time"

	"github.com/garyjia/tripflow/internal/application/port"
	"github.com/garyjia/tripflow/internal/domain/apperror"
	"github.com/garyjia/tripflow/internal/domain/budget"
	"github.com/garyjia/tripflow/internal/domain/entity"
	"github.com/garyjia/tripflow/pkg/utils"
	"github.com/shopspring/decimal"
)

// NewUserInput describes a user mirrored from the identity provider
type NewUserInput struct {
	Name  string        `json:"name"`
	Email string        `json:"email"`
	Roles []entity.Role `json:"roles"`
}

// NewDepartmentInput describes a department and its approval chain
type NewDepartmentInput struct {
	Name                 string          `json:"name"`
	ManagerID            *int64          `json:"manager_id"`
	SecondManagerID      *int64          `json:"second_manager_id"`
	ThirdManagerID       *int64          `json:"third_manager_id"`
	ThirdManagerRequired bool            `json:"third_manager_required"`
	Budget               decimal.Decimal `json:"budget"`
}

// NewProjectInput describes a project; it starts inactive
type NewProjectInput struct {
	Name            string          `json:"name"`
	DepartmentID    int64           `json:"department_id"`
	ManagerID       *int64          `json:"manager_id"`
	SecondManagerID *int64          `json:"second_manager_id"`
	Budget          decimal.Decimal `json:"budget"`
}

// NewRateInput describes a kilometer rate window
type NewRateInput struct {
	Rate          decimal.Decimal `json:"rate"`
	EffectiveFrom time.Time       `json:"effective_from"`
	EffectiveTo   *time.Time      `json:"effective_to"`
}

// NewDelegationInput describes a time-bounded delegation
type NewDelegationInput struct {
	DelegatorID  int64             `json:"delegator_id"`
	DelegateID   int64             `json:"delegate_id"`
	Capabilities []entity.StepType `json:"capabilities"`
	ValidFrom    time.Time         `json:"valid_from"`
	ValidTo      time.Time         `json:"valid_to"`
}

// OrgService maintains users, budget owners, kilometer rates and delegations
type OrgService interface {
	CreateUser(ctx context.Context, in NewUserInput) (*entity.User, error)
	GetUser(ctx context.Context, id int64) (*entity.User, error)

	CreateDepartment(ctx context.Context, actor entity.Actor, in NewDepartmentInput) (*entity.Department, error)
	GetDepartment(ctx context.Context, id int64) (*entity.Department, error)

	CreateProject(ctx context.Context, actor entity.Actor, in NewProjectInput) (*entity.Project, error)
	GetProject(ctx context.Context, id int64) (*entity.Project, error)

	// ActivateProject refuses projects whose available budget is not positive
	ActivateProject(ctx context.Context, actor entity.Actor, id int64) (*entity.Project, error)

	// GrantBonus sets a department's monthly bonus; ResetBonuses clears it for one or all departments
	GrantBonus(ctx context.Context, actor entity.Actor, departmentID int64, amount decimal.Decimal, expiresAt *time.Time) (*entity.Department, error)
	ResetBonuses(ctx context.Context, actor entity.Actor, departmentID *int64) (int, error)

	CreateRate(ctx context.Context, actor entity.Actor, in NewRateInput) (*entity.KilometerRate, error)
	CreateDelegation(ctx context.Context, actor entity.Actor, in NewDelegationInput) (*entity.Delegation, error)
}

type orgServiceImpl struct {
	flow           *tripFlow
	deptRepo       port.DepartmentRepository
	projectRepo    port.ProjectRepository
	rateRepo       port.RateRepository
	delegationRepo port.DelegationRepository
	ledger         LedgerService
	audit          AuditService
	txManager      port.TransactionManager
	clock          Clock
	logger         Logger
}

// NewOrgService creates a new OrgService
func NewOrgService(
	repos TripRepositories,
	ledger LedgerService,
	audit AuditService,
	txManager port.TransactionManager,
	clock Clock,
	logger Logger,
) OrgService {
	return &orgServiceImpl{
		flow: &tripFlow{
			userRepo:   repos.Users,
			tripRepo:   repos.Trips,
			stepRepo:   repos.Steps,
			statusRepo: repos.Statuses,
			ledger:     ledger,
		},
		deptRepo:       repos.Departments,
		projectRepo:    repos.Projects,
		rateRepo:       repos.Rates,
		delegationRepo: repos.Delegations,
		ledger:         ledger,
		audit:          audit,
		txManager:      txManager,
		clock:          nowOr(clock),
		logger:         logger,
	}
}

var knownRoles = map[entity.Role]bool{
	entity.RoleEmployee: true,
	entity.RoleManager:  true,
	entity.RoleFinance:  true,
	entity.RoleAdmin:    true,
}

// CreateUser registers a user. The user is its own audit actor.
func (s *orgServiceImpl) CreateUser(ctx context.Context, in NewUserInput) (*entity.User, error) {
	in.Name = utils.SanitizeString(in.Name)
	if in.Name == "" {
		return nil, apperror.Validation("name", "is required")
	}
	if err := utils.ValidateEmail(in.Email); err != nil {
		return nil, apperror.Validation("email", err.Error())
	}
	if len(in.Roles) == 0 {
		in.Roles = []entity.Role{entity.RoleEmployee}
	}
	for _, role := range in.Roles {
		if !knownRoles[role] {
			return nil, apperror.Validation("roles", fmt.Sprintf("unknown role %q", role))
		}
	}

	user := &entity.User{Name: in.Name, Email: in.Email, Roles: in.Roles, CreatedAt: s.clock()}
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.flow.userRepo.Create(txCtx, user); err != nil {
			return fmt.Errorf("create user: %w", err)
		}
		return s.audit.Record(txCtx, user.ID, entity.ActionUserCreated, entity.EntityUser, user.ID, map[string]interface{}{
			"roles": user.Roles,
		})
	})
	if err != nil {
		s.logger.Error("Failed to create user", "error", err, "email", in.Email)
		return nil, err
	}

	s.logger.Info("User created", "id", user.ID)
	return user, nil
}

// GetUser retrieves a user with roles
func (s *orgServiceImpl) GetUser(ctx context.Context, id int64) (*entity.User, error) {
	return s.flow.userRepo.GetByID(ctx, id)
}

// CreateDepartment creates a department and opens its ledger
func (s *orgServiceImpl) CreateDepartment(ctx context.Context, actor entity.Actor, in NewDepartmentInput) (*entity.Department, error) {
	in.Name = utils.SanitizeString(in.Name)
	if in.Name == "" {
		return nil, apperror.Validation("name", "is required")
	}
	if err := utils.ValidateAmount(in.Budget); err != nil {
		return nil, apperror.Validation("budget", err.Error())
	}

	var dept *entity.Department
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if _, err := s.flow.requireRole(txCtx, actor, entity.RoleAdmin); err != nil {
			return err
		}
		for field, id := range map[string]*int64{
			"manager_id":        in.ManagerID,
			"second_manager_id": in.SecondManagerID,
			"third_manager_id":  in.ThirdManagerID,
		} {
			if err := s.requireManager(txCtx, field, id); err != nil {
				return err
			}
		}

		now := s.clock()
		candidate := &entity.Department{
			Name:                 in.Name,
			ManagerID:            in.ManagerID,
			SecondManagerID:      in.SecondManagerID,
			ThirdManagerID:       in.ThirdManagerID,
			ThirdManagerRequired: in.ThirdManagerRequired,
			Budget:               in.Budget,
			MonthlyBudgetBonus:   decimal.Zero,
			SpentBudget:          decimal.Zero,
			CreatedAt:            now,
			UpdatedAt:            now,
		}
		candidate.AvailableBudget = budget.FromDepartment(candidate, now).Available()

		if err := s.deptRepo.Create(txCtx, candidate); err != nil {
			return fmt.Errorf("create department: %w", err)
		}
		if _, err := s.ledger.RecordInitial(txCtx, entity.OwnerDepartment, candidate.ID, LedgerRef{ActorID: actor.UserID, Note: "initial budget"}); err != nil {
			return err
		}
		if err := s.audit.Record(txCtx, actor.UserID, entity.ActionDepartmentCreated, entity.EntityDepartment, candidate.ID, map[string]interface{}{
			"name":   candidate.Name,
			"budget": candidate.Budget.StringFixed(2),
		}); err != nil {
			return err
		}

		dept = candidate
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to create department", "error", err, "name", in.Name)
		return nil, err
	}

	s.logger.Info("Department created", "id", dept.ID, "name", dept.Name)
	return dept, nil
}

// GetDepartment retrieves a department. A lapsed bonus is written off by the next ledger
// movement; until then the reported available budget already leaves it out.
func (s *orgServiceImpl) GetDepartment(ctx context.Context, id int64) (*entity.Department, error) {
	dept, err := s.deptRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	dept.AvailableBudget = budget.FromDepartment(dept, s.clock()).Available()
	return dept, nil
}

// CreateProject creates an inactive project and opens its ledger with an initial row
func (s *orgServiceImpl) CreateProject(ctx context.Context, actor entity.Actor, in NewProjectInput) (*entity.Project, error) {
	in.Name = utils.SanitizeString(in.Name)
	if in.Name == "" {
		return nil, apperror.Validation("name", "is required")
	}
	if err := utils.ValidateAmount(in.Budget); err != nil {
		return nil, apperror.Validation("budget", err.Error())
	}

	var project *entity.Project
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if _, err := s.flow.requireRole(txCtx, actor, entity.RoleAdmin); err != nil {
			return err
		}
		if _, err := s.deptRepo.GetByID(txCtx, in.DepartmentID); err != nil {
			return err
		}
		if err := s.requireManager(txCtx, "manager_id", in.ManagerID); err != nil {
			return err
		}
		if err := s.requireManager(txCtx, "second_manager_id", in.SecondManagerID); err != nil {
			return err
		}

		now := s.clock()
		candidate := &entity.Project{
			Name:              in.Name,
			DepartmentID:      in.DepartmentID,
			ManagerID:         in.ManagerID,
			SecondManagerID:   in.SecondManagerID,
			OriginalBudget:    in.Budget,
			Budget:            in.Budget,
			BudgetAdjustments: decimal.Zero,
			SpentBudget:       decimal.Zero,
			AvailableBudget:   in.Budget,
			CreatedAt:         now,
			UpdatedAt:         now,
		}

		if err := s.projectRepo.Create(txCtx, candidate); err != nil {
			return fmt.Errorf("create project: %w", err)
		}
		if _, err := s.ledger.RecordInitial(txCtx, entity.OwnerProject, candidate.ID, LedgerRef{ActorID: actor.UserID, Note: "initial budget"}); err != nil {
			return err
		}
		if err := s.audit.Record(txCtx, actor.UserID, entity.ActionProjectCreated, entity.EntityProject, candidate.ID, map[string]interface{}{
			"name":            candidate.Name,
			"department_id":   candidate.DepartmentID,
			"original_budget": candidate.OriginalBudget.StringFixed(2),
		}); err != nil {
			return err
		}

		project = candidate
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to create project", "error", err, "name", in.Name)
		return nil, err
	}

	s.logger.Info("Project created", "id", project.ID, "name", project.Name)
	return project, nil
}

// GetProject retrieves a project
func (s *orgServiceImpl) GetProject(ctx context.Context, id int64) (*entity.Project, error) {
	return s.projectRepo.GetByID(ctx, id)
}

// ActivateProject marks a project active when it still has budget available
func (s *orgServiceImpl) ActivateProject(ctx context.Context, actor entity.Actor, id int64) (*entity.Project, error) {
	var project *entity.Project

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if _, err := s.flow.requireRole(txCtx, actor, entity.RoleAdmin); err != nil {
			return err
		}

		current, err := s.projectRepo.GetByID(txCtx, id)
		if err != nil {
			return err
		}

		available := budget.FromProject(current).Available()
		if !available.IsPositive() {
			return apperror.Validation("available_budget", fmt.Sprintf("project has no available budget (%s)", available.StringFixed(2)))
		}

		if !current.IsActive {
			if err := s.projectRepo.SetActive(txCtx, id, true); err != nil {
				return fmt.Errorf("activate project: %w", err)
			}
			current.IsActive = true
			if err := s.audit.Record(txCtx, actor.UserID, entity.ActionProjectActivated, entity.EntityProject, id, map[string]interface{}{
				"available_budget": available.StringFixed(2),
			}); err != nil {
				return err
			}
		}

		project = current
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to activate project", "error", err, "id", id)
		return nil, err
	}
	return project, nil
}

// GrantBonus is restricted to finance and admin users
func (s *orgServiceImpl) GrantBonus(ctx context.Context, actor entity.Actor, departmentID int64, amount decimal.Decimal, expiresAt *time.Time) (*entity.Department, error) {
	if err := utils.ValidatePositive(amount); err != nil {
		return nil, apperror.Validation("amount", err.Error())
	}
	if expiresAt != nil && !expiresAt.After(s.clock()) {
		return nil, apperror.Validation("expires_at", "must be in the future")
	}

	var dept *entity.Department
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.requireBudgetRole(txCtx, actor); err != nil {
			return err
		}
		updated, err := s.ledger.GrantBonus(txCtx, departmentID, amount, expiresAt, actor.UserID)
		if err != nil {
			return err
		}
		dept = updated
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to grant bonus", "error", err, "department_id", departmentID)
		return nil, err
	}
	return dept, nil
}

// ResetBonuses runs the monthly reset on demand
func (s *orgServiceImpl) ResetBonuses(ctx context.Context, actor entity.Actor, departmentID *int64) (int, error) {
	if err := s.requireBudgetRole(ctx, actor); err != nil {
		return 0, err
	}
	return s.ledger.ResetMonthlyBonus(ctx, departmentID, actor.UserID)
}

func (s *orgServiceImpl) requireBudgetRole(ctx context.Context, actor entity.Actor) error {
	role := entity.RoleAdmin
	if actor.Role == entity.RoleFinance {
		role = entity.RoleFinance
	}
	_, err := s.flow.requireRole(ctx, actor, role)
	return err
}

// CreateRate adds a kilometer rate window
func (s *orgServiceImpl) CreateRate(ctx context.Context, actor entity.Actor, in NewRateInput) (*entity.KilometerRate, error) {
	if err := utils.ValidatePositive(in.Rate); err != nil {
		return nil, apperror.Validation("rate", err.Error())
	}
	if in.EffectiveFrom.IsZero() {
		return nil, apperror.Validation("effective_from", "is required")
	}
	if in.EffectiveTo != nil && !in.EffectiveTo.After(in.EffectiveFrom) {
		return nil, apperror.Validation("effective_to", "must be after effective_from")
	}

	var rate *entity.KilometerRate
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if _, err := s.flow.requireRole(txCtx, actor, entity.RoleAdmin); err != nil {
			return err
		}

		candidate := &entity.KilometerRate{
			Rate:          in.Rate,
			EffectiveFrom: in.EffectiveFrom.UTC(),
			EffectiveTo:   in.EffectiveTo,
			CreatedAt:     s.clock(),
		}
		if err := s.rateRepo.Create(txCtx, candidate); err != nil {
			return fmt.Errorf("create kilometer rate: %w", err)
		}

		rate = candidate
		return s.audit.Record(txCtx, actor.UserID, entity.ActionRateCreated, entity.EntityRate, candidate.ID, map[string]interface{}{
			"rate":           candidate.Rate.String(),
			"effective_from": candidate.EffectiveFrom.Format("2006-01-02"),
		})
	})
	if err != nil {
		s.logger.Error("Failed to create kilometer rate", "error", err)
		return nil, err
	}
	return rate, nil
}

// CreateDelegation lets a delegate act for the delegator. Only the delegator or an admin may grant it.
func (s *orgServiceImpl) CreateDelegation(ctx context.Context, actor entity.Actor, in NewDelegationInput) (*entity.Delegation, error) {
	if in.DelegatorID == in.DelegateID {
		return nil, apperror.Validation("delegate_id", "cannot delegate to oneself")
	}
	if len(in.Capabilities) == 0 {
		return nil, apperror.Validation("capabilities", "at least one step type is required")
	}
	for _, c := range in.Capabilities {
		if c == entity.StepFinanceApproval {
			return nil, apperror.Validation("capabilities", "finance approval is decided by the finance pool")
		}
		if !delegableSteps[c] {
			return nil, apperror.Validation("capabilities", fmt.Sprintf("unknown step type %q", c))
		}
	}
	if !in.ValidTo.After(in.ValidFrom) {
		return nil, apperror.Validation("valid_to", "must be after valid_from")
	}

	var delegation *entity.Delegation
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if actor.UserID != in.DelegatorID {
			if _, err := s.flow.requireRole(txCtx, actor, entity.RoleAdmin); err != nil {
				return err
			}
		}
		if _, err := s.flow.userRepo.GetByID(txCtx, in.DelegatorID); err != nil {
			return err
		}
		if _, err := s.flow.userRepo.GetByID(txCtx, in.DelegateID); err != nil {
			return err
		}

		candidate := &entity.Delegation{
			DelegatorID:  in.DelegatorID,
			DelegateID:   in.DelegateID,
			Capabilities: in.Capabilities,
			ValidFrom:    in.ValidFrom.UTC(),
			ValidTo:      in.ValidTo.UTC(),
			CreatedAt:    s.clock(),
		}
		if err := s.delegationRepo.Create(txCtx, candidate); err != nil {
			return fmt.Errorf("create delegation: %w", err)
		}

		delegation = candidate
		return s.audit.Record(txCtx, actor.UserID, entity.ActionDelegationCreated, entity.EntityDelegation, candidate.ID, map[string]interface{}{
			"delegator_id": candidate.DelegatorID,
			"delegate_id":  candidate.DelegateID,
			"capabilities": candidate.Capabilities,
		})
	})
	if err != nil {
		s.logger.Error("Failed to create delegation", "error", err)
		return nil, err
	}
	return delegation, nil
}

var delegableSteps = map[entity.StepType]bool{
	entity.StepDepartmentManager:         true,
	entity.StepSecondDepartmentManager:   true,
	entity.StepTertiaryDepartmentManager: true,
	entity.StepProjectManager:            true,
	entity.StepSecondProjectManager:      true,
	entity.StepAdminReview:               true,
}

// requireManager checks that an optional approver exists and holds the manager role
func (s *orgServiceImpl) requireManager(ctx context.Context, field string, id *int64) error {
	if id == nil {
		return nil
	}
	user, err := s.flow.userRepo.GetByID(ctx, *id)
	if err != nil {
		return err
	}
	if !user.HasRole(entity.RoleManager) {
		return apperror.Validation(field, fmt.Sprintf("user %d does not hold the manager role", *id))
	}
	return nil
}
