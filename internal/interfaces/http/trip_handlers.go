package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/garyjia/tripflow/internal/application/service"
	"github.com/garyjia/tripflow/internal/domain/entity"
)

// CreateTripRequest is the body of POST /api/trips
type CreateTripRequest struct {
	DepartmentID *int64            `json:"department_id"`
	ProjectID    *int64            `json:"project_id"`
	TripDate     string            `json:"trip_date" binding:"required"`
	Origin       string            `json:"origin"`
	Destination  string            `json:"destination"`
	Purpose      string            `json:"purpose"`
	CostMethod   entity.CostMethod `json:"cost_method" binding:"required"`
	Kilometers   decimal.Decimal   `json:"kilometers"`
	Amount       decimal.Decimal   `json:"amount"`
	IsUrgent     bool              `json:"is_urgent"`
}

// DecisionRequest is the body of POST /api/trips/:id/decision
type DecisionRequest struct {
	Approve *bool  `json:"approve" binding:"required"`
	Reason  string `json:"reason"`
}

// BulkDecisionRequest is the body of POST /api/trips/decisions
type BulkDecisionRequest struct {
	Items []service.DecisionInput `json:"items" binding:"required,min=1,max=200"`
}

// BulkDecisionResponse reports per-item outcomes
type BulkDecisionResponse struct {
	Succeeded int                      `json:"succeeded"`
	Failed    int                      `json:"failed"`
	Results   []service.DecisionResult `json:"results"`
}

// CancelRequest is the body of POST /api/trips/:id/cancel
type CancelRequest struct {
	Reason string `json:"reason"`
}

// CreateTrip handles POST /api/trips
func (h *Handlers) CreateTrip(c *gin.Context) {
	var req CreateTripRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}

	tripDate, err := parseDate(req.TripDate)
	if err != nil {
		badRequest(c, "invalid trip_date")
		return
	}

	actor, _ := actorFrom(c)
	trip, err := h.services.Trip.CreateTripRequest(c.Request.Context(), actor, service.CreateTripInput{
		DepartmentID: req.DepartmentID,
		ProjectID:    req.ProjectID,
		TripDate:     tripDate,
		Origin:       req.Origin,
		Destination:  req.Destination,
		Purpose:      req.Purpose,
		CostMethod:   req.CostMethod,
		Kilometers:   req.Kilometers,
		Amount:       req.Amount,
		IsUrgent:     req.IsUrgent,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	respondOK(c, http.StatusCreated, trip)
}

// GetTrip handles GET /api/trips/:id
func (h *Handlers) GetTrip(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	trip, err := h.services.Trip.GetTrip(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}

	respondOK(c, http.StatusOK, trip)
}

// GetWorkflowSteps handles GET /api/trips/:id/steps
func (h *Handlers) GetWorkflowSteps(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	steps, err := h.services.Trip.GetWorkflowSteps(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}

	respondOK(c, http.StatusOK, steps)
}

// GetStatusHistory handles GET /api/trips/:id/history
func (h *Handlers) GetStatusHistory(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	history, err := h.services.Trip.GetStatusHistory(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}

	respondOK(c, http.StatusOK, history)
}

// Decide handles POST /api/trips/:id/decision
func (h *Handlers) Decide(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req DecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}

	actor, _ := actorFrom(c)
	trip, err := h.services.Approval.Decide(c.Request.Context(), actor, service.DecisionInput{
		TripID:  id,
		Approve: *req.Approve,
		Reason:  req.Reason,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	respondOK(c, http.StatusOK, trip)
}

// BulkDecide handles POST /api/trips/decisions. It answers 200 even when items fail;
// each result carries its own outcome.
func (h *Handlers) BulkDecide(c *gin.Context) {
	var req BulkDecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}

	actor, _ := actorFrom(c)
	results := h.services.Approval.BulkDecide(c.Request.Context(), actor, req.Items)

	resp := BulkDecisionResponse{Results: results}
	for _, r := range results {
		if r.Success {
			resp.Succeeded++
		} else {
			resp.Failed++
		}
	}

	respondOK(c, http.StatusOK, resp)
}

// MarkTripPaid handles POST /api/trips/:id/pay
func (h *Handlers) MarkTripPaid(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	actor, _ := actorFrom(c)
	trip, err := h.services.Approval.MarkPaid(c.Request.Context(), actor, id)
	if err != nil {
		h.respondError(c, err)
		return
	}

	respondOK(c, http.StatusOK, trip)
}

// CancelTrip handles POST /api/trips/:id/cancel
func (h *Handlers) CancelTrip(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req CancelRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid request body: "+err.Error())
			return
		}
	}

	actor, _ := actorFrom(c)
	trip, err := h.services.Trip.CancelTrip(c.Request.Context(), actor, id, req.Reason)
	if err != nil {
		h.respondError(c, err)
		return
	}

	respondOK(c, http.StatusOK, trip)
}

// ListTripsByRate handles GET /api/rates/:id/trips
func (h *Handlers) ListTripsByRate(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	trips, err := h.services.Trip.ListTripsByRate(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}

	respondOK(c, http.StatusOK, trips)
}
