package service_test

import (
	"testing"

	"github.com/garyjia/tripflow/internal/application/service"
	"github.com/garyjia/tripflow/internal/domain/apperror"
	"github.com/garyjia/tripflow/internal/domain/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdminRequest_BudgetIncrease(t *testing.T) {
	h := newHarness(t)

	req, err := h.admin.Create(h.ctx, h.projectMgr, service.CreateAdminRequestInput{
		Kind:      entity.AdminKindBudgetIncrease,
		Subject:   "extra site visits",
		ProjectID: &h.project.ID,
		Amount:    dec("250"),
	})
	require.NoError(t, err)
	assert.Equal(t, entity.StatusPendingFinanceApproval, req.Status)

	_, err = h.admin.Decide(h.ctx, h.manager, req.ID, true, "")
	assert.Equal(t, apperror.CodeNotAuthorized, apperror.CodeOf(err))

	decided, err := h.admin.Decide(h.ctx, h.finance, req.ID, true, "")
	require.NoError(t, err)
	assert.Equal(t, entity.StatusApproved, decided.Status)
	require.NotNil(t, decided.DecidedBy)
	assert.Equal(t, h.finance.UserID, *decided.DecidedBy)

	project, err := h.org.GetProject(h.ctx, h.project.ID)
	require.NoError(t, err)
	assert.Equal(t, "250.00", project.BudgetAdjustments.StringFixed(2))
	assert.Equal(t, "750.00", project.AvailableBudget.StringFixed(2))
	assert.Equal(t, "500.00", project.OriginalBudget.StringFixed(2), "the original budget is immutable")

	rows := h.ledgerRows(entity.OwnerProject, h.project.ID)
	last := rows[len(rows)-1]
	assert.Equal(t, entity.TxAdjustment, last.TransactionType)
	require.NotNil(t, last.AdminRequestID)
	assert.Equal(t, req.ID, *last.AdminRequestID)

	_, err = h.admin.Decide(h.ctx, h.finance, req.ID, false, "late")
	assert.Equal(t, apperror.CodeNoPendingStep, apperror.CodeOf(err))

	paid, err := h.admin.MarkPaid(h.ctx, h.finance, req.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusPaid, paid.Status)
	assert.True(t, paid.IsPaid)

	loaded, err := h.admin.Get(h.ctx, req.ID)
	require.NoError(t, err)
	require.Len(t, loaded.StatusHistory, 3)
	assert.Equal(t, "", loaded.StatusHistory[0].FromStatus)
	assert.Equal(t, entity.StatusApproved, loaded.StatusHistory[1].ToStatus)
	assert.Equal(t, entity.StatusPaid, loaded.StatusHistory[2].ToStatus)
}

func TestAdminRequest_RejectLeavesBudget(t *testing.T) {
	h := newHarness(t)

	req, err := h.admin.Create(h.ctx, h.projectMgr, service.CreateAdminRequestInput{
		Kind:      entity.AdminKindBudgetIncrease,
		Subject:   "bigger budget",
		ProjectID: &h.project.ID,
		Amount:    dec("100"),
	})
	require.NoError(t, err)

	rejected, err := h.admin.Decide(h.ctx, h.finance, req.ID, false, "not this quarter")
	require.NoError(t, err)
	assert.Equal(t, entity.StatusRejected, rejected.Status)
	assert.Equal(t, "not this quarter", rejected.Reason)

	assert.Equal(t, "500.00", h.available(entity.OwnerProject, h.project.ID).StringFixed(2))
	assert.Len(t, h.ledgerRows(entity.OwnerProject, h.project.ID), 1)

	_, err = h.admin.MarkPaid(h.ctx, h.finance, req.ID)
	assert.Equal(t, apperror.CodeInvalidStateTransition, apperror.CodeOf(err))
}

func TestAdminRequest_GeneralAndCostAdjustment(t *testing.T) {
	h := newHarness(t)

	general, err := h.admin.Create(h.ctx, h.employee, service.CreateAdminRequestInput{Subject: "new laptop bag"})
	require.NoError(t, err)
	assert.Equal(t, entity.AdminKindGeneral, general.Kind)

	trip := h.departmentTrip(h.employee, "80", false)
	adjust, err := h.admin.Create(h.ctx, h.employee, service.CreateAdminRequestInput{
		Kind:          entity.AdminKindCostAdjustment,
		Subject:       "parking fee missing",
		TripRequestID: &trip.ID,
		Amount:        dec("12"),
	})
	require.NoError(t, err)

	approved, err := h.admin.Decide(h.ctx, h.finance, adjust.ID, true, "")
	require.NoError(t, err)
	assert.Equal(t, entity.StatusApproved, approved.Status)
	assert.Equal(t, "1000.00", h.available(entity.OwnerDepartment, h.dept.ID).StringFixed(2), "only budget increases touch the ledger")
}

func TestAdminRequest_FinanceCannotApproveOwnRequest(t *testing.T) {
	h := newHarness(t)
	colleague := h.user("finance2", entity.RoleFinance)

	req, err := h.admin.Create(h.ctx, h.finance, service.CreateAdminRequestInput{
		Kind:      entity.AdminKindBudgetIncrease,
		Subject:   "audit travel",
		ProjectID: &h.project.ID,
		Amount:    dec("100"),
	})
	require.NoError(t, err)

	_, err = h.admin.Decide(h.ctx, h.finance, req.ID, true, "")
	assert.Equal(t, apperror.CodeSelfApproval, apperror.CodeOf(err))

	unchanged, err := h.admin.Get(h.ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusPendingFinanceApproval, unchanged.Status)
	assert.Equal(t, "500.00", h.available(entity.OwnerProject, h.project.ID).StringFixed(2))

	decided, err := h.admin.Decide(h.ctx, colleague, req.ID, true, "")
	require.NoError(t, err)
	assert.Equal(t, entity.StatusApproved, decided.Status)
	assert.Equal(t, "600.00", h.available(entity.OwnerProject, h.project.ID).StringFixed(2))
}

func TestAdminRequest_FinanceMayWithdrawOwnRequest(t *testing.T) {
	h := newHarness(t)

	req, err := h.admin.Create(h.ctx, h.finance, service.CreateAdminRequestInput{
		Kind:    entity.AdminKindGeneral,
		Subject: "conference badge",
	})
	require.NoError(t, err)

	decided, err := h.admin.Decide(h.ctx, h.finance, req.ID, false, "filed by mistake")
	require.NoError(t, err)
	assert.Equal(t, entity.StatusRejected, decided.Status)
}

func TestAdminRequest_CreateRejections(t *testing.T) {
	h := newHarness(t)
	missing := int64(8080)

	tests := []struct {
		name  string
		actor entity.Actor
		in    service.CreateAdminRequestInput
		code  apperror.Code
	}{
		{"blank subject", h.employee, service.CreateAdminRequestInput{Subject: " "}, apperror.CodeValidation},
		{"unknown kind", h.employee, service.CreateAdminRequestInput{Kind: "refund", Subject: "x"}, apperror.CodeValidation},
		{"cost adjustment without trip", h.employee, service.CreateAdminRequestInput{
			Kind: entity.AdminKindCostAdjustment, Subject: "x",
		}, apperror.CodeValidation},
		{"cost adjustment unknown trip", h.employee, service.CreateAdminRequestInput{
			Kind: entity.AdminKindCostAdjustment, Subject: "x", TripRequestID: &missing,
		}, apperror.CodeNotFound},
		{"increase without project", h.projectMgr, service.CreateAdminRequestInput{
			Kind: entity.AdminKindBudgetIncrease, Subject: "x", Amount: dec("1"),
		}, apperror.CodeValidation},
		{"increase not positive", h.projectMgr, service.CreateAdminRequestInput{
			Kind: entity.AdminKindBudgetIncrease, Subject: "x", ProjectID: &h.project.ID, Amount: dec("0"),
		}, apperror.CodeValidation},
		{"unknown requester", entity.Actor{UserID: 5150, Role: entity.RoleEmployee}, service.CreateAdminRequestInput{
			Subject: "x",
		}, apperror.CodeNotAuthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.admin.Create(h.ctx, tt.actor, tt.in)
			assert.Equal(t, tt.code, apperror.CodeOf(err))
		})
	}

	_, err := h.admin.Get(h.ctx, missing)
	assert.Equal(t, apperror.CodeNotFound, apperror.CodeOf(err))
}
