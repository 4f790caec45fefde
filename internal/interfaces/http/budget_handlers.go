package http

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/garyjia/tripflow/internal/domain/entity"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// GrantBonusRequest is the body of POST /api/departments/:id/bonus
type GrantBonusRequest struct {
	Amount    decimal.Decimal `json:"amount"`
	ExpiresAt *string         `json:"expires_at"`
}

// ResetBonusRequest is the body of POST /api/budget/bonus-reset
type ResetBonusRequest struct {
	DepartmentID *int64 `json:"department_id"`
}

// ResetBonusResponse reports how many departments were reset
type ResetBonusResponse struct {
	Reset int `json:"reset"`
}

// ownerParams parses the :kind/:id pair of budget routes
func ownerParams(c *gin.Context) (entity.OwnerKind, int64, bool) {
	kind := entity.OwnerKind(c.Param("kind"))
	if kind != entity.OwnerDepartment && kind != entity.OwnerProject {
		badRequest(c, "kind must be department or project")
		return "", 0, false
	}
	id, ok := pathID(c, "id")
	return kind, id, ok
}

// CheckBudget handles GET /api/budget/:kind/:id/check?cost=
func (h *Handlers) CheckBudget(c *gin.Context) {
	kind, id, ok := ownerParams(c)
	if !ok {
		return
	}

	cost, err := decimal.NewFromString(c.Query("cost"))
	if err != nil {
		badRequest(c, "invalid cost")
		return
	}

	result, err := h.services.Ledger.CheckBudget(c.Request.Context(), kind, id, cost)
	if err != nil {
		h.respondError(c, err)
		return
	}

	respondOK(c, http.StatusOK, result)
}

// GetLedger handles GET /api/budget/:kind/:id/history
func (h *Handlers) GetLedger(c *gin.Context) {
	kind, id, ok := ownerParams(c)
	if !ok {
		return
	}

	entries, err := h.services.Ledger.History(c.Request.Context(), kind, id)
	if err != nil {
		h.respondError(c, err)
		return
	}

	respondOK(c, http.StatusOK, entries)
}

// ExportLedger handles GET /api/budget/:kind/:id/export
func (h *Handlers) ExportLedger(c *gin.Context) {
	kind, id, ok := ownerParams(c)
	if !ok {
		return
	}

	// buffered so a failed export still produces a JSON error
	var buf bytes.Buffer
	if err := h.services.Ledger.ExportHistory(c.Request.Context(), kind, id, &buf); err != nil {
		h.respondError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s-%d-ledger.xlsx"`, kind, id))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

// GrantBonus handles POST /api/departments/:id/bonus
func (h *Handlers) GrantBonus(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req GrantBonusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}

	expiresAt, err := parseOptionalDate(req.ExpiresAt)
	if err != nil {
		badRequest(c, "invalid expires_at")
		return
	}

	actor, _ := actorFrom(c)
	dept, err := h.services.Org.GrantBonus(c.Request.Context(), actor, id, req.Amount, expiresAt)
	if err != nil {
		h.respondError(c, err)
		return
	}

	respondOK(c, http.StatusOK, dept)
}

// ResetBonuses handles POST /api/budget/bonus-reset
func (h *Handlers) ResetBonuses(c *gin.Context) {
	var req ResetBonusRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid request body: "+err.Error())
			return
		}
	}

	actor, _ := actorFrom(c)
	count, err := h.services.Org.ResetBonuses(c.Request.Context(), actor, req.DepartmentID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	respondOK(c, http.StatusOK, ResetBonusResponse{Reset: count})
}
