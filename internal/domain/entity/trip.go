package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// TripRequest is a trip-expense request routed through a department or a project
type TripRequest struct {
	ID           int64  `json:"id"`
	RequesterID  int64  `json:"requester_id"`
	DepartmentID *int64 `json:"department_id,omitempty"`
	ProjectID    *int64 `json:"project_id,omitempty"`

	TripDate    time.Time `json:"trip_date"`
	Origin      string    `json:"origin"`
	Destination string    `json:"destination"`
	Purpose     string    `json:"purpose"`

	// Cost is the source of truth; Kilometers and the rate only explain how it was derived
	CostMethod CostMethod      `json:"cost_method"`
	Kilometers decimal.Decimal `json:"kilometers"`
	RateID     *int64          `json:"rate_id,omitempty"`
	RateValue  decimal.Decimal `json:"rate_value"`
	Cost       decimal.Decimal `json:"cost"`

	Status   string `json:"status"`
	IsUrgent bool   `json:"is_urgent"`

	// Reservation held against the owning budget, zero when nothing is reserved
	ReservedAmount    decimal.Decimal `json:"reserved_amount"`
	ReservedOwnerKind OwnerKind       `json:"reserved_owner_kind,omitempty"`
	ReservedOwnerID   *int64          `json:"reserved_owner_id,omitempty"`

	IsPaid      bool       `json:"is_paid"`
	PaidBy      *int64     `json:"paid_by,omitempty"`
	PaidAt      *time.Time `json:"paid_at,omitempty"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty"`

	StatusHistory []*StatusHistoryEntry `json:"status_history,omitempty"`

	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsProjectRouted reports whether approvals run through the project chain
func (t *TripRequest) IsProjectRouted() bool {
	return t.ProjectID != nil
}

// HasReservation reports whether budget is currently held for this trip
func (t *TripRequest) HasReservation() bool {
	return t.ReservedOwnerID != nil && t.ReservedAmount.IsPositive()
}

// IsTerminal reports whether the request accepts no further workflow decisions
func (t *TripRequest) IsTerminal() bool {
	switch t.Status {
	case StatusApproved, StatusRejected, StatusPaid, StatusCancelled:
		return true
	}
	return false
}
