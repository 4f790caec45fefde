package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/tripflow/internal/application/service"
	"github.com/garyjia/tripflow/internal/domain/apperror"
	"github.com/garyjia/tripflow/internal/domain/budget"
	"github.com/garyjia/tripflow/internal/domain/entity"
)

type nopLogger struct{}

func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}

// stubTrips overrides only the calls a test needs; anything else panics on the nil interface
type stubTrips struct {
	service.TripService
	created service.CreateTripInput
	actor   entity.Actor
	getErr  error
}

func (s *stubTrips) CreateTripRequest(_ context.Context, actor entity.Actor, in service.CreateTripInput) (*entity.TripRequest, error) {
	s.actor = actor
	s.created = in
	return &entity.TripRequest{ID: 7, RequesterID: actor.UserID, Status: entity.StatusPendingDepartmentApproval}, nil
}

func (s *stubTrips) GetTrip(_ context.Context, id int64) (*entity.TripRequest, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	return &entity.TripRequest{ID: id}, nil
}

type stubApprovals struct {
	service.ApprovalService
	decideErr error
	bulk      []service.DecisionResult
}

func (s *stubApprovals) Decide(_ context.Context, _ entity.Actor, in service.DecisionInput) (*entity.TripRequest, error) {
	if s.decideErr != nil {
		return nil, s.decideErr
	}
	return &entity.TripRequest{ID: in.TripID, Status: entity.StatusApproved}, nil
}

func (s *stubApprovals) BulkDecide(_ context.Context, _ entity.Actor, items []service.DecisionInput) []service.DecisionResult {
	return s.bulk
}

type stubLedger struct {
	service.LedgerService
	kind      entity.OwnerKind
	ownerID   int64
	cost      decimal.Decimal
	exportErr error
}

func (s *stubLedger) CheckBudget(_ context.Context, kind entity.OwnerKind, ownerID int64, amount decimal.Decimal) (*budget.CheckResult, error) {
	s.kind, s.ownerID, s.cost = kind, ownerID, amount
	return &budget.CheckResult{CanApprove: true}, nil
}

func (s *stubLedger) ExportHistory(_ context.Context, _ entity.OwnerKind, _ int64, w io.Writer) error {
	if s.exportErr != nil {
		return s.exportErr
	}
	_, err := w.Write([]byte("xlsx"))
	return err
}

type fixture struct {
	trips     *stubTrips
	approvals *stubApprovals
	ledger    *stubLedger
	ready     bool
	router    *gin.Engine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		trips:     &stubTrips{},
		approvals: &stubApprovals{},
		ledger:    &stubLedger{},
		ready:     true,
	}
	server := NewServer(DefaultServerConfig(), Services{
		Trip:     f.trips,
		Approval: f.approvals,
		Ledger:   f.ledger,
		Ready:    func() bool { return f.ready },
	}, nopLogger{})
	f.router = server.Router()
	return f
}

func (f *fixture) do(method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) Response {
	t.Helper()
	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

var employee = map[string]string{headerActorID: "3", headerActorRole: "Employee"}

func TestHealthCheck(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode(t, rec).Success)

	f.ready = false
	rec = f.do(http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRequestID(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodGet, "/health", nil, map[string]string{headerRequestID: "req-123"})
	assert.Equal(t, "req-123", rec.Header().Get(headerRequestID))

	rec = f.do(http.MethodGet, "/health", nil, nil)
	assert.NotEmpty(t, rec.Header().Get(headerRequestID))
}

func TestActorHeaders(t *testing.T) {
	f := newFixture(t)
	body := CreateTripRequest{TripDate: "2024-05-10", CostMethod: entity.CostDirect, Amount: decimal.NewFromInt(10)}

	rec := f.do(http.MethodPost, "/api/trips", body, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(http.MethodPost, "/api/trips", body, map[string]string{headerActorID: "abc"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(http.MethodPost, "/api/trips", body, map[string]string{headerActorID: "-4"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(http.MethodPost, "/api/trips", body, map[string]string{headerActorID: "9"})
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, entity.Actor{UserID: 9, Role: entity.RoleEmployee}, f.trips.actor, "role defaults to employee")
}

func TestCreateTrip(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodPost, "/api/trips", map[string]interface{}{
		"project_id":  11,
		"trip_date":   "2024-05-10T08:30:00+02:00",
		"origin":      "Munich",
		"destination": "Vienna",
		"purpose":     "audit",
		"cost_method": "km",
		"kilometers":  "123.4",
		"is_urgent":   true,
	}, employee)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	assert.Equal(t, entity.Actor{UserID: 3, Role: entity.RoleEmployee}, f.trips.actor)
	in := f.trips.created
	require.NotNil(t, in.ProjectID)
	assert.Equal(t, int64(11), *in.ProjectID)
	assert.Equal(t, time.Date(2024, 5, 10, 6, 30, 0, 0, time.UTC), in.TripDate)
	assert.Equal(t, entity.CostKilometers, in.CostMethod)
	assert.Equal(t, "123.4", in.Kilometers.String())
	assert.True(t, in.IsUrgent)

	tests := []struct {
		name string
		body interface{}
	}{
		{"bad date", map[string]interface{}{"trip_date": "10/05/2024", "cost_method": "direct"}},
		{"missing cost method", map[string]interface{}{"trip_date": "2024-05-10"}},
		{"malformed json", "{"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(http.MethodPost, "/api/trips", tt.body, employee)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, apperror.CodeValidation, decode(t, rec).Code)
		})
	}
}

func TestDecide(t *testing.T) {
	f := newFixture(t)
	manager := map[string]string{headerActorID: "2", headerActorRole: "manager"}

	rec := f.do(http.MethodPost, "/api/trips/5/decision", map[string]interface{}{"reason": "ok"}, manager)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "approve is required")

	rec = f.do(http.MethodPost, "/api/trips/x/decision", map[string]interface{}{"approve": true}, manager)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(http.MethodPost, "/api/trips/5/decision", map[string]interface{}{"approve": true}, manager)
	assert.Equal(t, http.StatusOK, rec.Code)

	f.approvals.decideErr = &apperror.BudgetExceededError{
		OwnerKind: "project",
		OwnerID:   4,
		Available: decimal.NewFromInt(50),
		Requested: decimal.NewFromInt(80),
		Excess:    decimal.NewFromInt(30),
	}
	rec = f.do(http.MethodPost, "/api/trips/5/decision", map[string]interface{}{"approve": true}, manager)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	resp := decode(t, rec)
	assert.Equal(t, apperror.CodeBudgetExceeded, resp.Code)
	assert.Equal(t, "30.00", resp.Details["excess"])
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{apperror.Validation("cost", "bad"), http.StatusBadRequest},
		{apperror.NotFound("trip_request", 1), http.StatusNotFound},
		{&apperror.NotAuthorizedError{ActorID: 1}, http.StatusForbidden},
		{&apperror.NoPendingStepError{RequestID: 1}, http.StatusConflict},
		{&apperror.InvalidTransitionError{From: "APPROVED", To: "CANCELLED"}, http.StatusConflict},
		{&apperror.BudgetExceededError{}, http.StatusUnprocessableEntity},
	}

	for _, tt := range tests {
		t.Run(string(apperror.CodeOf(tt.err)), func(t *testing.T) {
			f := newFixture(t)
			f.trips.getErr = tt.err
			rec := f.do(http.MethodGet, "/api/trips/1", nil, nil)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, apperror.CodeOf(tt.err), decode(t, rec).Code)
		})
	}

	t.Run("uncoded errors are hidden", func(t *testing.T) {
		f := newFixture(t)
		f.trips.getErr = errors.New("disk I/O error")
		rec := f.do(http.MethodGet, "/api/trips/1", nil, nil)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		resp := decode(t, rec)
		assert.Equal(t, "internal error", resp.Error)
		assert.Equal(t, apperror.Code("INTERNAL_ERROR"), resp.Code)
	})
}

func TestBulkDecide(t *testing.T) {
	f := newFixture(t)
	f.approvals.bulk = []service.DecisionResult{
		{TripID: 1, Success: true},
		{TripID: 2, Code: apperror.CodeBudgetExceeded, Message: "budget exceeded"},
		{TripID: 3, Code: apperror.CodeNotFound, Message: "not found"},
	}
	finance := map[string]string{headerActorID: "5", headerActorRole: "finance"}

	rec := f.do(http.MethodPost, "/api/trips/decisions", map[string]interface{}{"items": []interface{}{}}, finance)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "at least one item")

	rec = f.do(http.MethodPost, "/api/trips/decisions", map[string]interface{}{
		"items": []map[string]interface{}{
			{"trip_id": 1, "approve": true},
			{"trip_id": 2, "approve": true},
			{"trip_id": 3, "approve": false},
		},
	}, finance)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data BulkDecisionResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Data.Succeeded)
	assert.Equal(t, 2, resp.Data.Failed)
	assert.Len(t, resp.Data.Results, 3)
}

func TestCheckBudget(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodGet, "/api/budget/project/4/check?cost=12.50", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, entity.OwnerProject, f.ledger.kind)
	assert.Equal(t, int64(4), f.ledger.ownerID)
	assert.Equal(t, "12.5", f.ledger.cost.String())

	rec = f.do(http.MethodGet, "/api/budget/team/4/check?cost=1", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(http.MethodGet, "/api/budget/department/4/check?cost=lots", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExportLedger(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodGet, "/api/budget/department/2/export", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, xlsxContentType, rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="department-2-ledger.xlsx"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "xlsx", rec.Body.String())

	f.ledger.exportErr = apperror.NotFound("department", 2)
	rec = f.do(http.MethodGet, "/api/budget/department/2/export", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, apperror.CodeNotFound, decode(t, rec).Code)
}

func TestParseDate(t *testing.T) {
	got, err := parseDate("2024-02-29")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), got)

	_, err = parseDate("yesterday")
	assert.Error(t, err)

	empty := ""
	opt, err := parseOptionalDate(&empty)
	require.NoError(t, err)
	assert.Nil(t, opt)
}
