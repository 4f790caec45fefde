package workflow

import (
	"fmt"
	"time"

	"github.com/garyjia/tripflow/internal/domain/apperror"
	"github.com/garyjia/tripflow/internal/domain/entity"
)

// RequiredRole is the acting role a step type demands
func RequiredRole(stepType entity.StepType) entity.Role {
	switch stepType {
	case entity.StepFinanceApproval:
		return entity.RoleFinance
	case entity.StepAdminReview:
		return entity.RoleAdmin
	default:
		return entity.RoleManager
	}
}

// Authorize decides whether actor may decide step. It is a pure function of its inputs:
// the acting role must match the step, the user must hold that role, and a step with a
// designated approver accepts only that approver or one of their active delegates.
func Authorize(actor entity.Actor, user *entity.User, step *entity.WorkflowStep, delegations []*entity.Delegation, now time.Time) error {
	required := RequiredRole(step.StepType)

	deny := func(reason string) error {
		return &apperror.NotAuthorizedError{ActorID: actor.UserID, RequiredRole: string(required), Reason: reason}
	}

	if actor.Role != required {
		return deny(fmt.Sprintf("acting role %q cannot decide %s", actor.Role, step.StepType))
	}
	if user == nil || user.ID != actor.UserID {
		return deny("unknown actor")
	}
	if !user.HasRole(actor.Role) {
		return deny(fmt.Sprintf("user does not hold role %q", actor.Role))
	}

	if step.ApproverID == nil || *step.ApproverID == actor.UserID {
		return nil
	}

	for _, d := range delegations {
		if d.DelegatorID == *step.ApproverID && d.DelegateID == actor.UserID && d.Covers(step.StepType, now) {
			return nil
		}
	}

	return deny(fmt.Sprintf("step %d is assigned to user %d", step.StepOrder, *step.ApproverID))
}
