package workflow

import (
	"github.com/garyjia/tripflow/internal/domain/apperror"
	"github.com/garyjia/tripflow/internal/domain/entity"
)

// RoutingContext is the organization a trip is routed through.
// Project is nil for department-routed trips.
type RoutingContext struct {
	Department *entity.Department
	Project    *entity.Project
}

// GeneratorOptions carries deployment-level routing switches
type GeneratorOptions struct {
	// UrgentAdminReview appends an ADMIN_REVIEW step to urgent trips
	UrgentAdminReview bool
	AdminReviewerID   *int64
}

type stepSpec struct {
	stepType       entity.StepType
	approverID     *int64
	reservesBudget bool
}

// GenerateSteps builds the ordered approval chain for a trip.
// Steps whose optional approver is not configured are never materialized, and
// orders are assigned densely from 1 over the steps that are.
func GenerateSteps(trip *entity.TripRequest, org RoutingContext, opts GeneratorOptions) ([]*entity.WorkflowStep, error) {
	var specs []stepSpec
	var err error

	if trip.IsProjectRouted() {
		specs, err = projectChain(trip, org.Project)
	} else {
		specs, err = departmentChain(org.Department)
	}
	if err != nil {
		return nil, err
	}

	if trip.IsUrgent && opts.UrgentAdminReview {
		if opts.AdminReviewerID == nil {
			return nil, &apperror.NoApproverConfiguredError{StepType: string(entity.StepAdminReview)}
		}
		specs = append(specs, stepSpec{stepType: entity.StepAdminReview, approverID: opts.AdminReviewerID})
	}

	steps := make([]*entity.WorkflowStep, 0, len(specs))
	for i, spec := range specs {
		steps = append(steps, &entity.WorkflowStep{
			TripRequestID:  trip.ID,
			StepOrder:      i + 1,
			StepType:       spec.stepType,
			ApproverID:     spec.approverID,
			Status:         entity.StepStatusPending,
			IsRequired:     true,
			ReservesBudget: spec.reservesBudget,
		})
	}

	return steps, nil
}

// projectChain: PM (reserves budget), optional second PM, Finance
func projectChain(trip *entity.TripRequest, project *entity.Project) ([]stepSpec, error) {
	if project == nil {
		return nil, apperror.Validation("project_id", "project not found")
	}
	if project.ManagerID == nil {
		return nil, &apperror.NoApproverConfiguredError{StepType: string(entity.StepProjectManager)}
	}
	if *project.ManagerID == trip.RequesterID {
		return nil, &apperror.SelfApprovalError{UserID: trip.RequesterID, StepType: string(entity.StepProjectManager)}
	}

	specs := []stepSpec{{stepType: entity.StepProjectManager, approverID: project.ManagerID, reservesBudget: true}}
	if project.SecondManagerID != nil {
		specs = append(specs, stepSpec{stepType: entity.StepSecondProjectManager, approverID: project.SecondManagerID})
	}
	specs = append(specs, stepSpec{stepType: entity.StepFinanceApproval})

	return specs, nil
}

// departmentChain: manager, optional second, tertiary when required, Finance (reserves budget)
func departmentChain(dept *entity.Department) ([]stepSpec, error) {
	if dept == nil {
		return nil, apperror.Validation("department_id", "department not found")
	}
	if dept.ManagerID == nil {
		return nil, &apperror.NoApproverConfiguredError{StepType: string(entity.StepDepartmentManager)}
	}

	specs := []stepSpec{{stepType: entity.StepDepartmentManager, approverID: dept.ManagerID}}
	if dept.SecondManagerID != nil {
		specs = append(specs, stepSpec{stepType: entity.StepSecondDepartmentManager, approverID: dept.SecondManagerID})
	}
	if dept.ThirdManagerRequired {
		if dept.ThirdManagerID == nil {
			return nil, &apperror.NoApproverConfiguredError{StepType: string(entity.StepTertiaryDepartmentManager)}
		}
		specs = append(specs, stepSpec{stepType: entity.StepTertiaryDepartmentManager, approverID: dept.ThirdManagerID})
	}
	specs = append(specs, stepSpec{stepType: entity.StepFinanceApproval, reservesBudget: true})

	return specs, nil
}
