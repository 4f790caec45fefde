package service_test

import (
	"testing"
	"time"

	"github.com/garyjia/tripflow/internal/application/service"
	"github.com/garyjia/tripflow/internal/domain/apperror"
	"github.com/garyjia/tripflow/internal/domain/entity"
	"github.com/garyjia/tripflow/internal/domain/event"
	"github.com/garyjia/tripflow/internal/domain/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApproval_DepartmentTripReservesAtFinance(t *testing.T) {
	h := newHarness(t)
	dept := h.newDepartment("200")

	trip, err := h.trips.CreateTripRequest(h.ctx, h.employee, service.CreateTripInput{
		DepartmentID: &dept.ID,
		TripDate:     h.clock.now,
		Origin:       "Berlin",
		Destination:  "Leipzig",
		Purpose:      "workshop",
		CostMethod:   entity.CostDirect,
		Amount:       dec("50"),
	})
	require.NoError(t, err)
	assert.Equal(t, entity.StatusPendingDepartmentApproval, trip.Status)

	trip = h.mustDecide(h.manager, trip.ID, true)
	assert.Equal(t, entity.StatusPendingFinanceApproval, trip.Status)
	assert.Equal(t, "200.00", h.available(entity.OwnerDepartment, dept.ID).StringFixed(2), "nothing reserved before finance")

	trip = h.mustDecide(h.finance, trip.ID, true)
	assert.Equal(t, entity.StatusApproved, trip.Status)
	assert.Equal(t, "150.00", h.available(entity.OwnerDepartment, dept.ID).StringFixed(2))
	assert.Equal(t, "50.00", trip.ReservedAmount.StringFixed(2))

	rows := h.ledgerRows(entity.OwnerDepartment, dept.ID)
	require.Len(t, rows, 2)
	assert.Equal(t, entity.TxAllocation, rows[1].TransactionType)
	assert.Equal(t, "-50.00", rows[1].Amount.StringFixed(2))
	assert.Equal(t, "150.00", rows[1].RunningBalance.StringFixed(2))
	require.NotNil(t, rows[1].TripRequestID)
	assert.Equal(t, trip.ID, *rows[1].TripRequestID)

	stored, err := h.ledger.CheckBudget(h.ctx, entity.OwnerDepartment, dept.ID, dec("0"))
	require.NoError(t, err)
	assert.Equal(t, "50.00", stored.Info.Spent.StringFixed(2))
}

func TestApproval_ProjectBudgetExceeded(t *testing.T) {
	h := newHarness(t)
	project := h.newProject("200")

	trip, err := h.trips.CreateTripRequest(h.ctx, h.employee, service.CreateTripInput{
		ProjectID:   &project.ID,
		TripDate:    h.clock.now,
		Origin:      "Munich",
		Destination: "Zurich",
		Purpose:     "audit",
		CostMethod:  entity.CostDirect,
		Amount:      dec("300"),
	})
	require.NoError(t, err)
	assert.Equal(t, entity.StatusPendingProjectApproval, trip.Status)

	_, err = h.decide(h.projectMgr, trip.ID, true)
	require.Error(t, err)
	var exceeded *apperror.BudgetExceededError
	require.ErrorAs(t, err, &exceeded)
	assert.Equal(t, "100.00", exceeded.Excess.StringFixed(2))

	reloaded, err := h.trips.GetTrip(h.ctx, trip.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusPendingProjectApproval, reloaded.Status)
	assert.Len(t, reloaded.StatusHistory, 1)

	steps, err := h.trips.GetWorkflowSteps(h.ctx, trip.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.StepStatusPending, steps[0].Status, "failed decision leaves the step pending")

	assert.Len(t, h.ledgerRows(entity.OwnerProject, project.ID), 1, "only the opening row")
	assert.Equal(t, "200.00", h.available(entity.OwnerProject, project.ID).StringFixed(2))
}

func TestApproval_UrgentProjectTripOverridesBudget(t *testing.T) {
	h := newHarness(t)
	project := h.newProject("200")

	check, err := h.ledger.CheckBudget(h.ctx, entity.OwnerProject, project.ID, dec("300"))
	require.NoError(t, err)
	assert.False(t, check.CanApprove)

	trip, err := h.trips.CreateTripRequest(h.ctx, h.employee, service.CreateTripInput{
		ProjectID:   &project.ID,
		TripDate:    h.clock.now,
		Origin:      "Munich",
		Destination: "Zurich",
		Purpose:     "outage response",
		CostMethod:  entity.CostDirect,
		Amount:      dec("300"),
		IsUrgent:    true,
	})
	require.NoError(t, err)

	trip = h.mustDecide(h.projectMgr, trip.ID, true)
	assert.Equal(t, entity.StatusPendingFinanceApproval, trip.Status)
	assert.Equal(t, "-100.00", h.available(entity.OwnerProject, project.ID).StringFixed(2))

	rows := h.ledgerRows(entity.OwnerProject, project.ID)
	require.Len(t, rows, 2)
	assert.Equal(t, "-300.00", rows[1].Amount.StringFixed(2))
	assert.Equal(t, "-100.00", rows[1].RunningBalance.StringFixed(2))

	t.Run("already negative budget still accepts urgent trips", func(t *testing.T) {
		second, err := h.trips.CreateTripRequest(h.ctx, h.employee, service.CreateTripInput{
			ProjectID:   &project.ID,
			TripDate:    h.clock.now,
			Origin:      "Munich",
			Destination: "Bern",
			Purpose:     "outage follow-up",
			CostMethod:  entity.CostDirect,
			Amount:      dec("25"),
			IsUrgent:    true,
		})
		require.NoError(t, err)
		h.mustDecide(h.projectMgr, second.ID, true)
		assert.Equal(t, "-125.00", h.available(entity.OwnerProject, project.ID).StringFixed(2))
	})

	t.Run("non-urgent trips are refused on a negative budget", func(t *testing.T) {
		third, err := h.trips.CreateTripRequest(h.ctx, h.employee, service.CreateTripInput{
			ProjectID:   &project.ID,
			TripDate:    h.clock.now,
			Origin:      "Munich",
			Destination: "Linz",
			Purpose:     "training",
			CostMethod:  entity.CostDirect,
			Amount:      dec("1"),
		})
		require.NoError(t, err)
		_, err = h.decide(h.projectMgr, third.ID, true)
		assert.Equal(t, apperror.CodeBudgetExceeded, apperror.CodeOf(err))
	})
}

func TestApproval_FinanceRejectRestoresReservation(t *testing.T) {
	h := newHarness(t)
	before := h.available(entity.OwnerProject, h.project.ID)

	trip := h.projectTrip(h.employee, "120.40", false)
	h.mustDecide(h.projectMgr, trip.ID, true)
	assert.Equal(t, before.Sub(dec("120.40")).StringFixed(2), h.available(entity.OwnerProject, h.project.ID).StringFixed(2))

	trip, err := h.approval.Decide(h.ctx, h.finance, service.DecisionInput{TripID: trip.ID, Approve: false, Reason: "duplicate"})
	require.NoError(t, err)
	assert.Equal(t, entity.StatusRejected, trip.Status)
	assert.False(t, trip.HasReservation())
	assert.True(t, h.available(entity.OwnerProject, h.project.ID).Equal(before))

	rows := h.ledgerRows(entity.OwnerProject, h.project.ID)
	require.Len(t, rows, 3)
	assert.Equal(t, entity.TxAllocation, rows[1].TransactionType)
	assert.Equal(t, entity.TxDeallocation, rows[2].TransactionType)
	assert.True(t, rows[1].Amount.Add(rows[2].Amount).IsZero())
	assert.True(t, rows[2].RunningBalance.Equal(before))

	history, err := h.trips.GetStatusHistory(h.ctx, trip.ID)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, entity.StatusPendingFinanceApproval, history[2].FromStatus)
	assert.Equal(t, entity.StatusRejected, history[2].ToStatus)
	assert.Equal(t, "duplicate", history[2].Reason)
}

func TestApproval_HeadOfLine(t *testing.T) {
	h := newHarness(t)
	dept, err := h.org.CreateDepartment(h.ctx, h.adminUser, service.NewDepartmentInput{
		Name:            "Operations",
		ManagerID:       &h.manager.UserID,
		SecondManagerID: &h.manager2.UserID,
		Budget:          dec("800"),
	})
	require.NoError(t, err)

	trip, err := h.trips.CreateTripRequest(h.ctx, h.employee, service.CreateTripInput{
		DepartmentID: &dept.ID,
		TripDate:     h.clock.now,
		Origin:       "Cologne",
		Destination:  "Bonn",
		Purpose:      "vendor meeting",
		CostMethod:   entity.CostDirect,
		Amount:       dec("40"),
	})
	require.NoError(t, err)

	// decided steps always form a prefix; the head is the first step after it
	assertHead := func(expectedOrder int) {
		t.Helper()
		steps, err := h.trips.GetWorkflowSteps(h.ctx, trip.ID)
		require.NoError(t, err)
		for i, s := range steps {
			assert.Equal(t, i+1, s.StepOrder)
			if expectedOrder == 0 || s.StepOrder < expectedOrder {
				assert.False(t, s.IsPending(), "step %d", s.StepOrder)
			} else {
				assert.True(t, s.IsPending(), "step %d", s.StepOrder)
			}
		}
	}

	assertHead(1)

	_, err = h.decide(h.manager2, trip.ID, true)
	assert.Equal(t, apperror.CodeNotAuthorized, apperror.CodeOf(err), "second manager cannot skip ahead")

	_, err = h.decide(h.finance, trip.ID, true)
	assert.Equal(t, apperror.CodeNotAuthorized, apperror.CodeOf(err))

	trip = h.mustDecide(h.manager, trip.ID, true)
	assert.Equal(t, entity.StatusPendingDepartmentApproval, trip.Status, "second department step keeps the category")
	assertHead(2)

	h.mustDecide(h.manager2, trip.ID, true)
	assertHead(3)

	trip = h.mustDecide(h.finance, trip.ID, true)
	assert.Equal(t, entity.StatusApproved, trip.Status)
	assertHead(0)

	_, err = h.decide(h.finance, trip.ID, true)
	assert.Equal(t, apperror.CodeNoPendingStep, apperror.CodeOf(err))
}

func TestApproval_RejectSkipsRemainingSteps(t *testing.T) {
	h := newHarness(t)
	trip := h.departmentTrip(h.employee, "75", false)

	trip = h.mustDecide(h.manager, trip.ID, false)
	assert.Equal(t, entity.StatusRejected, trip.Status)

	steps, err := h.trips.GetWorkflowSteps(h.ctx, trip.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.StepStatusRejected, steps[0].Status)
	assert.Equal(t, entity.StepStatusSkipped, steps[1].Status)

	assert.Len(t, h.ledgerRows(entity.OwnerDepartment, h.dept.ID), 1, "nothing was reserved")

	_, err = h.decide(h.finance, trip.ID, true)
	assert.Equal(t, apperror.CodeNoPendingStep, apperror.CodeOf(err))
}

func TestApproval_Delegation(t *testing.T) {
	h := newHarness(t)
	trip := h.departmentTrip(h.employee, "10", false)

	_, err := h.decide(h.manager2, trip.ID, true)
	require.Equal(t, apperror.CodeNotAuthorized, apperror.CodeOf(err))

	_, err = h.org.CreateDelegation(h.ctx, h.manager, service.NewDelegationInput{
		DelegatorID:  h.manager.UserID,
		DelegateID:   h.manager2.UserID,
		Capabilities: []entity.StepType{entity.StepDepartmentManager},
		ValidFrom:    h.clock.now.Add(-time.Hour),
		ValidTo:      h.clock.now.AddDate(0, 0, 7),
	})
	require.NoError(t, err)

	trip = h.mustDecide(h.manager2, trip.ID, true)
	assert.Equal(t, entity.StatusPendingFinanceApproval, trip.Status)

	steps, err := h.trips.GetWorkflowSteps(h.ctx, trip.ID)
	require.NoError(t, err)
	require.NotNil(t, steps[0].DecidedBy)
	assert.Equal(t, h.manager2.UserID, *steps[0].DecidedBy)
	assert.Equal(t, h.manager.UserID, *steps[0].ApproverID, "approver is never rewritten")
}

func TestApproval_WrongActingRole(t *testing.T) {
	h := newHarness(t)
	trip := h.departmentTrip(h.employee, "10", false)

	asEmployee := h.manager
	asEmployee.Role = entity.RoleEmployee
	_, err := h.decide(asEmployee, trip.ID, true)
	assert.Equal(t, apperror.CodeNotAuthorized, apperror.CodeOf(err))
}

func TestApproval_BulkDecideIsolatesItems(t *testing.T) {
	h := newHarness(t)
	project := h.newProject("100")

	small, err := h.trips.CreateTripRequest(h.ctx, h.employee, service.CreateTripInput{
		ProjectID: &project.ID, TripDate: h.clock.now, Origin: "A", Destination: "B",
		Purpose: "small", CostMethod: entity.CostDirect, Amount: dec("60"),
	})
	require.NoError(t, err)
	large, err := h.trips.CreateTripRequest(h.ctx, h.employee, service.CreateTripInput{
		ProjectID: &project.ID, TripDate: h.clock.now, Origin: "A", Destination: "C",
		Purpose: "large", CostMethod: entity.CostDirect, Amount: dec("60"),
	})
	require.NoError(t, err)

	results := h.approval.BulkDecide(h.ctx, h.projectMgr, []service.DecisionInput{
		{TripID: small.ID, Approve: true},
		{TripID: large.ID, Approve: true},
		{TripID: 999999, Approve: true},
	})
	require.Len(t, results, 3)

	assert.True(t, results[0].Success)
	assert.Equal(t, entity.StatusPendingFinanceApproval, results[0].Trip.Status)

	assert.False(t, results[1].Success)
	assert.Equal(t, apperror.CodeBudgetExceeded, results[1].Code)
	assert.Equal(t, "20.00", results[1].Details["excess"])

	assert.False(t, results[2].Success)
	assert.Equal(t, apperror.CodeNotFound, results[2].Code)

	assert.Equal(t, "40.00", h.available(entity.OwnerProject, project.ID).StringFixed(2))
}

func TestApproval_MarkPaid(t *testing.T) {
	h := newHarness(t)
	trip := h.departmentTrip(h.employee, "30", false)

	_, err := h.approval.MarkPaid(h.ctx, h.finance, trip.ID)
	assert.Equal(t, apperror.CodeInvalidStateTransition, apperror.CodeOf(err), "pending trips cannot be paid")

	h.mustDecide(h.manager, trip.ID, true)
	h.mustDecide(h.finance, trip.ID, true)

	_, err = h.approval.MarkPaid(h.ctx, h.manager, trip.ID)
	assert.Equal(t, apperror.CodeNotAuthorized, apperror.CodeOf(err))

	paid, err := h.approval.MarkPaid(h.ctx, h.finance, trip.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusPaid, paid.Status)
	assert.True(t, paid.IsPaid)
	require.NotNil(t, paid.PaidBy)
	assert.Equal(t, h.finance.UserID, *paid.PaidBy)

	_, err = h.approval.MarkPaid(h.ctx, h.finance, trip.ID)
	assert.Equal(t, apperror.CodeInvalidStateTransition, apperror.CodeOf(err))

	trail, err := h.audit.GetAuditTrail(h.ctx, &h.finance.UserID, 10)
	require.NoError(t, err)
	require.NotEmpty(t, trail)
	assert.Equal(t, entity.ActionTripPaid, trail[0].Action)
}

func TestApproval_UrgentAdminReview(t *testing.T) {
	// the reviewer only exists after seeding, so the option points at a slot filled in below
	reviewerID := new(int64)
	h := newHarnessWith(t, harnessOptions{workflow: workflow.GeneratorOptions{
		UrgentAdminReview: true,
		AdminReviewerID:   reviewerID,
	}})
	*reviewerID = h.reviewer.UserID

	routine := h.departmentTrip(h.employee, "20", false)
	steps, err := h.trips.GetWorkflowSteps(h.ctx, routine.ID)
	require.NoError(t, err)
	assert.Len(t, steps, 2, "non-urgent trips skip admin review")

	trip := h.departmentTrip(h.employee, "20", true)
	h.mustDecide(h.manager, trip.ID, true)
	trip = h.mustDecide(h.finance, trip.ID, true)
	assert.Equal(t, entity.StatusPendingAdminReview, trip.Status)
	assert.Equal(t, "20.00", trip.ReservedAmount.StringFixed(2), "finance already reserved")

	_, err = h.decide(h.adminUser, trip.ID, true)
	assert.Equal(t, apperror.CodeNotAuthorized, apperror.CodeOf(err), "only the configured reviewer")

	trip = h.mustDecide(h.reviewer, trip.ID, true)
	assert.Equal(t, entity.StatusApproved, trip.Status)
	assert.Len(t, h.ledgerRows(entity.OwnerDepartment, h.dept.ID), 2, "reserved exactly once")
}

func TestApproval_PublishesCommittedEvents(t *testing.T) {
	h := newHarness(t)

	trip := h.projectTrip(h.employee, "120", false)
	h.mustDecide(h.projectMgr, trip.ID, true)

	changes := h.events.ofType(event.TypeTripStatusChanged)
	require.Len(t, changes, 2)
	assert.Equal(t, "", changes[0].GetPayloadString("from_status"))
	assert.Equal(t, entity.StatusPendingProjectApproval, changes[0].GetPayloadString("to_status"))
	assert.Equal(t, entity.StatusPendingProjectApproval, changes[1].GetPayloadString("from_status"))
	assert.Equal(t, entity.StatusPendingFinanceApproval, changes[1].GetPayloadString("to_status"))
	assert.Equal(t, h.projectMgr.UserID, changes[1].ActorID)

	h.events.reset()
	big := h.projectTrip(h.employee, "900", false)
	h.events.reset()
	_, err := h.decide(h.projectMgr, big.ID, true)
	require.Error(t, err)
	assert.Empty(t, h.events.events, "a rolled back decision publishes nothing")

	urgent := h.projectTrip(h.employee, "900", true)
	h.mustDecide(h.projectMgr, urgent.ID, true)

	overrides := h.events.ofType(event.TypeBudgetOverridden)
	require.Len(t, overrides, 1)
	assert.Equal(t, urgent.ID, overrides[0].RequestID)
	assert.Equal(t, "-520.00", overrides[0].GetPayloadString("balance"))
}

func TestApproval_ConcurrentApproversOnOneTrip(t *testing.T) {
	h := newHarness(t)
	trip := h.projectTrip(h.employee, "120", false)

	errs := concurrently(8, func(int) error {
		_, err := h.decide(h.projectMgr, trip.ID, true)
		return err
	})

	assert.Equal(t, 1, succeeded(errs), "only one decision may win the head step")

	steps, err := h.trips.GetWorkflowSteps(h.ctx, trip.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.StepStatusApproved, steps[0].Status)
	assert.Equal(t, entity.StepStatusPending, steps[1].Status)

	rows := h.ledgerRows(entity.OwnerProject, h.project.ID)
	require.Len(t, rows, 2, "the reservation is written once")
	assert.Equal(t, entity.TxAllocation, rows[1].TransactionType)
	assert.Equal(t, "380.00", h.available(entity.OwnerProject, h.project.ID).StringFixed(2))

	reloaded, err := h.trips.GetTrip(h.ctx, trip.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusPendingFinanceApproval, reloaded.Status)
}

func TestApproval_ConcurrentTripsRaceForOneBudget(t *testing.T) {
	h := newHarness(t)

	trips := make([]*entity.TripRequest, 6)
	for i := range trips {
		trips[i] = h.projectTrip(h.employee, "300", false)
	}

	errs := concurrently(len(trips), func(i int) error {
		_, err := h.decide(h.projectMgr, trips[i].ID, true)
		return err
	})

	assert.Equal(t, 1, succeeded(errs), "500 covers a single 300 reservation")
	for _, err := range errs {
		if err != nil {
			assert.Equal(t, apperror.CodeBudgetExceeded, apperror.CodeOf(err))
		}
	}

	available := h.available(entity.OwnerProject, h.project.ID)
	assert.Equal(t, "200.00", available.StringFixed(2))

	rows := h.ledgerRows(entity.OwnerProject, h.project.ID)
	require.Len(t, rows, 2)
	for _, row := range rows {
		assert.False(t, row.RunningBalance.IsNegative(), "a non-urgent reservation never overdraws")
	}
	assertLedgerReconciles(t, rows)
}
