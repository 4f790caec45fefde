// Package budget holds the single balance formula used by both the preview and
// the commit paths of the ledger:
//
//	available = base + adjustments + unexpired bonus - spent
//
// Departments and projects are separate owner kinds. Only departments carry a bonus
// and only projects carry adjustments; each has its own snapshot constructor.
package budget

import (
	"time"

	"github.com/garyjia/tripflow/internal/domain/apperror"
	"github.com/garyjia/tripflow/internal/domain/entity"
	"github.com/shopspring/decimal"
)

// Snapshot is the balance-relevant state of one owner at one instant
type Snapshot struct {
	Kind        entity.OwnerKind
	OwnerID     int64
	Base        decimal.Decimal
	Adjustments decimal.Decimal
	Bonus       decimal.Decimal
	Spent       decimal.Decimal
}

// Available applies the balance formula
func (s Snapshot) Available() decimal.Decimal {
	return s.Base.Add(s.Adjustments).Add(s.Bonus).Sub(s.Spent)
}

// BonusExpired reports whether the department still carries a bonus whose expiry has passed.
// Such a bonus no longer counts but has not yet been written off in the ledger.
func BonusExpired(d *entity.Department, now time.Time) bool {
	return !d.MonthlyBudgetBonus.IsZero() && d.BonusExpiresAt != nil && !now.Before(*d.BonusExpiresAt)
}

// ActiveBonus returns the department bonus if it has not expired at now
func ActiveBonus(d *entity.Department, now time.Time) decimal.Decimal {
	if BonusExpired(d, now) {
		return decimal.Zero
	}
	return d.MonthlyBudgetBonus
}

// FromDepartment builds a department snapshot
func FromDepartment(d *entity.Department, now time.Time) Snapshot {
	return Snapshot{
		Kind:        entity.OwnerDepartment,
		OwnerID:     d.ID,
		Base:        d.Budget,
		Adjustments: decimal.Zero,
		Bonus:       ActiveBonus(d, now),
		Spent:       d.SpentBudget,
	}
}

// FromProject builds a project snapshot
func FromProject(p *entity.Project) Snapshot {
	return Snapshot{
		Kind:        entity.OwnerProject,
		OwnerID:     p.ID,
		Base:        p.Budget,
		Adjustments: p.BudgetAdjustments,
		Bonus:       decimal.Zero,
		Spent:       p.SpentBudget,
	}
}

// Info is the breakdown returned by a budget probe
type Info struct {
	OwnerKind    entity.OwnerKind `json:"owner_kind"`
	OwnerID      int64            `json:"owner_id"`
	Base         decimal.Decimal  `json:"base"`
	Adjustments  decimal.Decimal  `json:"adjustments"`
	Bonus        decimal.Decimal  `json:"bonus"`
	Spent        decimal.Decimal  `json:"spent"`
	Available    decimal.Decimal  `json:"available"`
	Requested    decimal.Decimal  `json:"requested"`
	BalanceAfter decimal.Decimal  `json:"balance_after"`
}

// CheckResult answers whether amount fits the owner's budget
type CheckResult struct {
	CanApprove bool            `json:"can_approve"`
	Excess     decimal.Decimal `json:"excess"`
	Info       Info            `json:"info"`
}

// Check is the read-only probe. Allocate uses it, so both paths always agree.
func Check(s Snapshot, amount decimal.Decimal) CheckResult {
	available := s.Available()
	after := available.Sub(amount)

	result := CheckResult{
		CanApprove: !after.IsNegative(),
		Excess:     decimal.Zero,
		Info: Info{
			OwnerKind:    s.Kind,
			OwnerID:      s.OwnerID,
			Base:         s.Base,
			Adjustments:  s.Adjustments,
			Bonus:        s.Bonus,
			Spent:        s.Spent,
			Available:    available,
			Requested:    amount,
			BalanceAfter: after,
		},
	}
	if !result.CanApprove {
		result.Excess = after.Neg()
	}
	return result
}

// Movement is the outcome of applying one ledger delta to a snapshot
type Movement struct {
	Snapshot       Snapshot
	Amount         decimal.Decimal
	RunningBalance decimal.Decimal
}

// Allocate reserves amount. It fails with BudgetExceededError when the balance would go
// negative, unless allowNegative is set (urgent override).
func Allocate(s Snapshot, amount decimal.Decimal, allowNegative bool) (Movement, error) {
	if amount.IsNegative() {
		return Movement{}, apperror.Validation("amount", "allocation must not be negative")
	}
	check := Check(s, amount)
	if !check.CanApprove && !allowNegative {
		return Movement{}, &apperror.BudgetExceededError{
			OwnerKind: string(s.Kind),
			OwnerID:   s.OwnerID,
			Available: check.Info.Available,
			Requested: amount,
			Excess:    check.Excess,
		}
	}
	s.Spent = s.Spent.Add(amount)
	return Movement{Snapshot: s, Amount: amount.Neg(), RunningBalance: s.Available()}, nil
}

// Deallocate returns amount to the owner
func Deallocate(s Snapshot, amount decimal.Decimal) (Movement, error) {
	if amount.IsNegative() {
		return Movement{}, apperror.Validation("amount", "deallocation must not be negative")
	}
	s.Spent = s.Spent.Sub(amount)
	return Movement{Snapshot: s, Amount: amount, RunningBalance: s.Available()}, nil
}
