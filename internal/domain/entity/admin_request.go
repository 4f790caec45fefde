package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// AdministrativeRequest goes straight to a single Finance decision
type AdministrativeRequest struct {
	ID            int64            `json:"id"`
	RequesterID   int64            `json:"requester_id"`
	Kind          AdminRequestKind `json:"kind"`
	Subject       string           `json:"subject"`
	Description   string           `json:"description"`
	TripRequestID *int64           `json:"trip_request_id,omitempty"`
	ProjectID     *int64           `json:"project_id,omitempty"`
	Amount        decimal.Decimal  `json:"amount"`

	Status    string     `json:"status"`
	DecidedBy *int64     `json:"decided_by,omitempty"`
	DecidedAt *time.Time `json:"decided_at,omitempty"`
	Reason    string     `json:"reason,omitempty"`
	IsPaid    bool       `json:"is_paid"`
	PaidBy    *int64     `json:"paid_by,omitempty"`
	PaidAt    *time.Time `json:"paid_at,omitempty"`

	StatusHistory []*StatusHistoryEntry `json:"status_history,omitempty"`

	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
