package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/garyjia/tripflow/internal/application/service"
	"github.com/garyjia/tripflow/internal/domain/entity"
)

// CreateRateRequest is the body of POST /api/rates
type CreateRateRequest struct {
	Rate          decimal.Decimal `json:"rate"`
	EffectiveFrom string          `json:"effective_from" binding:"required"`
	EffectiveTo   *string         `json:"effective_to"`
}

// CreateDelegationRequest is the body of POST /api/delegations
type CreateDelegationRequest struct {
	DelegatorID  int64             `json:"delegator_id" binding:"required"`
	DelegateID   int64             `json:"delegate_id" binding:"required"`
	Capabilities []entity.StepType `json:"capabilities" binding:"required,min=1"`
	ValidFrom    string            `json:"valid_from" binding:"required"`
	ValidTo      string            `json:"valid_to" binding:"required"`
}

// CreateUser handles POST /api/users. Users are mirrored from the identity provider,
// so no acting user is required.
func (h *Handlers) CreateUser(c *gin.Context) {
	var req service.NewUserInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}

	user, err := h.services.Org.CreateUser(c.Request.Context(), req)
	if err != nil {
		h.respondError(c, err)
		return
	}

	respondOK(c, http.StatusCreated, user)
}

// GetUser handles GET /api/users/:id
func (h *Handlers) GetUser(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	user, err := h.services.Org.GetUser(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}

	respondOK(c, http.StatusOK, user)
}

// CreateDepartment handles POST /api/departments
func (h *Handlers) CreateDepartment(c *gin.Context) {
	var req service.NewDepartmentInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}

	actor, _ := actorFrom(c)
	dept, err := h.services.Org.CreateDepartment(c.Request.Context(), actor, req)
	if err != nil {
		h.respondError(c, err)
		return
	}

	respondOK(c, http.StatusCreated, dept)
}

// GetDepartment handles GET /api/departments/:id
func (h *Handlers) GetDepartment(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	dept, err := h.services.Org.GetDepartment(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}

	respondOK(c, http.StatusOK, dept)
}

// CreateProject handles POST /api/projects
func (h *Handlers) CreateProject(c *gin.Context) {
	var req service.NewProjectInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}

	actor, _ := actorFrom(c)
	project, err := h.services.Org.CreateProject(c.Request.Context(), actor, req)
	if err != nil {
		h.respondError(c, err)
		return
	}

	respondOK(c, http.StatusCreated, project)
}

// GetProject handles GET /api/projects/:id
func (h *Handlers) GetProject(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	project, err := h.services.Org.GetProject(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}

	respondOK(c, http.StatusOK, project)
}

// ActivateProject handles POST /api/projects/:id/activate
func (h *Handlers) ActivateProject(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	actor, _ := actorFrom(c)
	project, err := h.services.Org.ActivateProject(c.Request.Context(), actor, id)
	if err != nil {
		h.respondError(c, err)
		return
	}

	respondOK(c, http.StatusOK, project)
}

// CreateRate handles POST /api/rates
func (h *Handlers) CreateRate(c *gin.Context) {
	var req CreateRateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}

	from, err := parseDate(req.EffectiveFrom)
	if err != nil {
		badRequest(c, "invalid effective_from")
		return
	}
	to, err := parseOptionalDate(req.EffectiveTo)
	if err != nil {
		badRequest(c, "invalid effective_to")
		return
	}

	actor, _ := actorFrom(c)
	rate, err := h.services.Org.CreateRate(c.Request.Context(), actor, service.NewRateInput{
		Rate:          req.Rate,
		EffectiveFrom: from,
		EffectiveTo:   to,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	respondOK(c, http.StatusCreated, rate)
}

// CreateDelegation handles POST /api/delegations
func (h *Handlers) CreateDelegation(c *gin.Context) {
	var req CreateDelegationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}

	from, err := parseDate(req.ValidFrom)
	if err != nil {
		badRequest(c, "invalid valid_from")
		return
	}
	to, err := parseDate(req.ValidTo)
	if err != nil {
		badRequest(c, "invalid valid_to")
		return
	}

	actor, _ := actorFrom(c)
	delegation, err := h.services.Org.CreateDelegation(c.Request.Context(), actor, service.NewDelegationInput{
		DelegatorID:  req.DelegatorID,
		DelegateID:   req.DelegateID,
		Capabilities: req.Capabilities,
		ValidFrom:    from,
		ValidTo:      to,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	respondOK(c, http.StatusCreated, delegation)
}
