package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/garyjia/tripflow/internal/application/service"
	"github.com/garyjia/tripflow/internal/domain/entity"
)

// CreateAdminRequestRequest is the body of POST /api/admin-requests
type CreateAdminRequestRequest struct {
	Kind          entity.AdminRequestKind `json:"kind"`
	Subject       string                  `json:"subject" binding:"required"`
	Description   string                  `json:"description"`
	TripRequestID *int64                  `json:"trip_request_id"`
	ProjectID     *int64                  `json:"project_id"`
	Amount        decimal.Decimal         `json:"amount"`
}

// CreateAdminRequest handles POST /api/admin-requests
func (h *Handlers) CreateAdminRequest(c *gin.Context) {
	var req CreateAdminRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}

	actor, _ := actorFrom(c)
	created, err := h.services.AdminRequest.Create(c.Request.Context(), actor, service.CreateAdminRequestInput{
		Kind:          req.Kind,
		Subject:       req.Subject,
		Description:   req.Description,
		TripRequestID: req.TripRequestID,
		ProjectID:     req.ProjectID,
		Amount:        req.Amount,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	respondOK(c, http.StatusCreated, created)
}

// GetAdminRequest handles GET /api/admin-requests/:id
func (h *Handlers) GetAdminRequest(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	req, err := h.services.AdminRequest.Get(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}

	respondOK(c, http.StatusOK, req)
}

// DecideAdminRequest handles POST /api/admin-requests/:id/decision
func (h *Handlers) DecideAdminRequest(c *gin.Context) {
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
	decided, err := h.services.AdminRequest.Decide(c.Request.Context(), actor, id, *req.Approve, req.Reason)
	if err != nil {
		h.respondError(c, err)
		return
	}

	respondOK(c, http.StatusOK, decided)
}

// MarkAdminRequestPaid handles POST /api/admin-requests/:id/pay
func (h *Handlers) MarkAdminRequestPaid(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	actor, _ := actorFrom(c)
	paid, err := h.services.AdminRequest.MarkPaid(c.Request.Context(), actor, id)
	if err != nil {
		h.respondError(c, err)
		return
	}

	respondOK(c, http.StatusOK, paid)
}

// GetAuditTrail handles GET /api/audit?actor_id=&limit=
func (h *Handlers) GetAuditTrail(c *gin.Context) {
	var actorID *int64
	if raw := c.Query("actor_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			badRequest(c, "invalid actor_id")
			return
		}
		actorID = &id
	}

	limit := service.DefaultAuditLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			badRequest(c, "invalid limit")
			return
		}
		limit = n
	}

	entries, err := h.services.Audit.GetAuditTrail(c.Request.Context(), actorID, limit)
	if err != nil {
		h.respondError(c, err)
		return
	}

	respondOK(c, http.StatusOK, entries)
}
