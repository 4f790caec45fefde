package workflow

import (
	"testing"

	"github.com/garyjia/tripflow/internal/domain/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func step(order int, stepType entity.StepType, status entity.StepStatus) *entity.WorkflowStep {
	return &entity.WorkflowStep{StepOrder: order, StepType: stepType, Status: status, IsRequired: true}
}

func TestHeadStep(t *testing.T) {
	steps := []*entity.WorkflowStep{
		step(3, entity.StepFinanceApproval, entity.StepStatusPending),
		step(1, entity.StepDepartmentManager, entity.StepStatusApproved),
		step(2, entity.StepSecondDepartmentManager, entity.StepStatusPending),
	}

	head := HeadStep(steps)
	require.NotNil(t, head)
	assert.Equal(t, 2, head.StepOrder)

	steps[2].Status = entity.StepStatusApproved
	steps[0].Status = entity.StepStatusApproved
	assert.Nil(t, HeadStep(steps))
}

func TestSortSteps(t *testing.T) {
	steps := []*entity.WorkflowStep{
		step(2, entity.StepFinanceApproval, entity.StepStatusPending),
		step(1, entity.StepProjectManager, entity.StepStatusPending),
	}
	SortSteps(steps)
	assert.Equal(t, 1, steps[0].StepOrder)
	assert.Equal(t, 2, steps[1].StepOrder)
}

func TestStepCategory(t *testing.T) {
	tests := map[entity.StepType]State{
		entity.StepDepartmentManager:         StatePendingDepartment,
		entity.StepSecondDepartmentManager:   StatePendingDepartment,
		entity.StepTertiaryDepartmentManager: StatePendingDepartment,
		entity.StepProjectManager:            StatePendingProject,
		entity.StepSecondProjectManager:      StatePendingProject,
		entity.StepFinanceApproval:           StatePendingFinance,
		entity.StepAdminReview:               StatePendingAdmin,
	}
	for stepType, expected := range tests {
		assert.Equal(t, expected, StepCategory(stepType), stepType)
	}
}

func TestProjectStatus(t *testing.T) {
	tests := []struct {
		name      string
		steps     []*entity.WorkflowStep
		paid      bool
		cancelled bool
		expected  State
	}{
		{
			name: "first step pending",
			steps: []*entity.WorkflowStep{
				step(1, entity.StepDepartmentManager, entity.StepStatusPending),
				step(2, entity.StepFinanceApproval, entity.StepStatusPending),
			},
			expected: StatePendingDepartment,
		},
		{
			name: "advanced to finance",
			steps: []*entity.WorkflowStep{
				step(1, entity.StepProjectManager, entity.StepStatusApproved),
				step(2, entity.StepFinanceApproval, entity.StepStatusPending),
			},
			expected: StatePendingFinance,
		},
		{
			name: "admin review after finance",
			steps: []*entity.WorkflowStep{
				step(1, entity.StepDepartmentManager, entity.StepStatusApproved),
				step(2, entity.StepFinanceApproval, entity.StepStatusApproved),
				step(3, entity.StepAdminReview, entity.StepStatusPending),
			},
			expected: StatePendingAdmin,
		},
		{
			name: "all approved",
			steps: []*entity.WorkflowStep{
				step(1, entity.StepDepartmentManager, entity.StepStatusApproved),
				step(2, entity.StepFinanceApproval, entity.StepStatusApproved),
			},
			expected: StateApproved,
		},
		{
			name: "all approved and paid",
			steps: []*entity.WorkflowStep{
				step(1, entity.StepDepartmentManager, entity.StepStatusApproved),
				step(2, entity.StepFinanceApproval, entity.StepStatusApproved),
			},
			paid:     true,
			expected: StatePaid,
		},
		{
			name: "rejected with skipped tail",
			steps: []*entity.WorkflowStep{
				step(1, entity.StepDepartmentManager, entity.StepStatusRejected),
				step(2, entity.StepFinanceApproval, entity.StepStatusSkipped),
			},
			expected: StateRejected,
		},
		{
			name: "required step skipped",
			steps: []*entity.WorkflowStep{
				step(1, entity.StepDepartmentManager, entity.StepStatusApproved),
				step(2, entity.StepFinanceApproval, entity.StepStatusSkipped),
			},
			expected: StateRejected,
		},
		{
			name: "cancelled overlay wins",
			steps: []*entity.WorkflowStep{
				step(1, entity.StepDepartmentManager, entity.StepStatusSkipped),
				step(2, entity.StepFinanceApproval, entity.StepStatusSkipped),
			},
			cancelled: true,
			expected:  StateCancelled,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ProjectStatus(tt.steps, tt.paid, tt.cancelled)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestProjectStatus_NoSteps(t *testing.T) {
	_, err := ProjectStatus(nil, false, false)
	assert.ErrorIs(t, err, ErrNoSteps)
}
