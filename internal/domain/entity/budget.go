package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// BudgetHistoryEntry is one immutable ledger row for a department or project
type BudgetHistoryEntry struct {
	ID              int64           `json:"id"`
	OwnerKind       OwnerKind       `json:"owner_kind"`
	OwnerID         int64           `json:"owner_id"`
	TransactionType TransactionType `json:"transaction_type"`
	Amount          decimal.Decimal `json:"amount"`
	RunningBalance  decimal.Decimal `json:"running_balance"`
	TripRequestID   *int64          `json:"trip_request_id,omitempty"`
	AdminRequestID  *int64          `json:"admin_request_id,omitempty"`
	Note            string          `json:"note,omitempty"`
	CreatedBy       int64           `json:"created_by"`
	CreatedAt       time.Time       `json:"created_at"`
}

// KilometerRate is a per-km reimbursement rate valid on [EffectiveFrom, EffectiveTo)
type KilometerRate struct {
	ID            int64           `json:"id"`
	Rate          decimal.Decimal `json:"rate"`
	EffectiveFrom time.Time       `json:"effective_from"`
	EffectiveTo   *time.Time      `json:"effective_to,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// Covers reports whether the rate applies on date
func (r *KilometerRate) Covers(date time.Time) bool {
	if date.Before(r.EffectiveFrom) {
		return false
	}
	return r.EffectiveTo == nil || date.Before(*r.EffectiveTo)
}
