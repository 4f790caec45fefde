package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Actor is an authenticated user together with the role claimed for one call
type Actor struct {
	UserID int64 `json:"user_id"`
	Role   Role  `json:"role"`
}

// User is a person who can request or approve
type User struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Roles     []Role    `json:"roles"`
	CreatedAt time.Time `json:"created_at"`
}

// HasRole reports whether the user holds role
func (u *User) HasRole(role Role) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Department owns a base budget plus a monthly bonus
type Department struct {
	ID                   int64  `json:"id"`
	Name                 string `json:"name"`
	ManagerID            *int64 `json:"manager_id,omitempty"`
	SecondManagerID      *int64 `json:"second_manager_id,omitempty"`
	ThirdManagerID       *int64 `json:"third_manager_id,omitempty"`
	ThirdManagerRequired bool   `json:"third_manager_required"`

	Budget             decimal.Decimal `json:"budget"`
	MonthlyBudgetBonus decimal.Decimal `json:"monthly_budget_bonus"`
	BonusExpiresAt     *time.Time      `json:"bonus_expires_at,omitempty"`
	BonusResetAt       *time.Time      `json:"bonus_reset_at,omitempty"`
	SpentBudget        decimal.Decimal `json:"spent_budget"`
	AvailableBudget    decimal.Decimal `json:"available_budget"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Project owns its own budget and inherits its department for routing context
type Project struct {
	ID              int64  `json:"id"`
	Name            string `json:"name"`
	DepartmentID    int64  `json:"department_id"`
	ManagerID       *int64 `json:"manager_id,omitempty"`
	SecondManagerID *int64 `json:"second_manager_id,omitempty"`

	// OriginalBudget is written once at creation
	OriginalBudget    decimal.Decimal `json:"original_budget"`
	Budget            decimal.Decimal `json:"budget"`
	BudgetAdjustments decimal.Decimal `json:"budget_adjustments"`
	SpentBudget       decimal.Decimal `json:"spent_budget"`
	AvailableBudget   decimal.Decimal `json:"available_budget"`
	IsActive          bool            `json:"is_active"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Delegation lets DelegateID act for DelegatorID on the listed step types inside a time window
type Delegation struct {
	ID           int64      `json:"id"`
	DelegatorID  int64      `json:"delegator_id"`
	DelegateID   int64      `json:"delegate_id"`
	Capabilities []StepType `json:"capabilities"`
	ValidFrom    time.Time  `json:"valid_from"`
	ValidTo      time.Time  `json:"valid_to"`
	CreatedAt    time.Time  `json:"created_at"`
}

// Covers reports whether the delegation is active at t for stepType
func (d *Delegation) Covers(stepType StepType, t time.Time) bool {
	if t.Before(d.ValidFrom) || !t.Before(d.ValidTo) {
		return false
	}
	for _, c := range d.Capabilities {
		if c == stepType {
			return true
		}
	}
	return false
}
