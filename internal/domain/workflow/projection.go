package workflow

import (
	"sort"

	"github.com/garyjia/tripflow/internal/domain/entity"
)

// StepCategory maps a step type to the pending status it projects to
func StepCategory(stepType entity.StepType) State {
	switch stepType {
	case entity.StepDepartmentManager, entity.StepSecondDepartmentManager, entity.StepTertiaryDepartmentManager:
		return StatePendingDepartment
	case entity.StepProjectManager, entity.StepSecondProjectManager:
		return StatePendingProject
	case entity.StepAdminReview:
		return StatePendingAdmin
	default:
		return StatePendingFinance
	}
}

// SortSteps orders steps by StepOrder in place
func SortSteps(steps []*entity.WorkflowStep) {
	sort.Slice(steps, func(i, j int) bool { return steps[i].StepOrder < steps[j].StepOrder })
}

// HeadStep returns the lowest-order pending step, or nil
func HeadStep(steps []*entity.WorkflowStep) *entity.WorkflowStep {
	var head *entity.WorkflowStep
	for _, s := range steps {
		if !s.IsPending() {
			continue
		}
		if head == nil || s.StepOrder < head.StepOrder {
			head = s
		}
	}
	return head
}

// ProjectStatus derives the request status from its steps.
// Cancelled and paid are overlays set only through cancel and pay.
func ProjectStatus(steps []*entity.WorkflowStep, paid, cancelled bool) (State, error) {
	if cancelled {
		return StateCancelled, nil
	}
	if len(steps) == 0 {
		return "", ErrNoSteps
	}

	for _, s := range steps {
		if s.Status == entity.StepStatusRejected {
			return StateRejected, nil
		}
	}

	if head := HeadStep(steps); head != nil {
		return StepCategory(head.StepType), nil
	}

	for _, s := range steps {
		if s.IsRequired && s.Status != entity.StepStatusApproved {
			// every step decided but a required one was skipped
			return StateRejected, nil
		}
	}

	if paid {
		return StatePaid, nil
	}
	return StateApproved, nil
}
