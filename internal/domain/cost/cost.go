// Package cost resolves kilometer rates and trip costs.
package cost

import (
	"time"

	"github.com/garyjia/tripflow/internal/domain/apperror"
	"github.com/garyjia/tripflow/internal/domain/entity"
	"github.com/shopspring/decimal"
)

// CurrencyPlaces is the rounding precision of every monetary amount
const CurrencyPlaces int32 = 2

// Input is what the requester submitted about the trip's cost
type Input struct {
	Method        entity.CostMethod
	DistanceKm    decimal.Decimal
	DirectAmount  decimal.Decimal
	EffectiveDate time.Time
}

// Result is a resolved cost plus the rate that produced it
type Result struct {
	Method     entity.CostMethod
	Cost       decimal.Decimal
	Kilometers decimal.Decimal
	RateID     *int64
	RateValue  decimal.Decimal
}

// SelectRate picks the rate whose [EffectiveFrom, EffectiveTo) window contains date.
// When windows overlap the most recent EffectiveFrom wins.
func SelectRate(rates []*entity.KilometerRate, date time.Time) (*entity.KilometerRate, error) {
	var best *entity.KilometerRate
	for _, r := range rates {
		if !r.Covers(date) {
			continue
		}
		if best == nil || r.EffectiveFrom.After(best.EffectiveFrom) ||
			(r.EffectiveFrom.Equal(best.EffectiveFrom) && r.ID > best.ID) {
			best = r
		}
	}
	if best == nil {
		return nil, &apperror.RateNotFoundError{Date: date.Format("2006-01-02")}
	}
	return best, nil
}

// Round rounds an amount to currency precision, half away from zero
func Round(amount decimal.Decimal) decimal.Decimal {
	return amount.Round(CurrencyPlaces)
}

// Resolve computes the cost for a direct or kilometer input.
// Destination inputs must be converted to kilometers by the caller first.
func Resolve(in Input, rates []*entity.KilometerRate) (*Result, error) {
	switch in.Method {
	case entity.CostDirect:
		if in.DirectAmount.IsNegative() {
			return nil, apperror.Validation("amount", "must not be negative")
		}
		return &Result{Method: entity.CostDirect, Cost: in.DirectAmount, Kilometers: decimal.Zero}, nil

	case entity.CostKilometers, entity.CostDestination:
		if !in.DistanceKm.IsPositive() {
			return nil, apperror.Validation("kilometers", "must be positive")
		}
		rate, err := SelectRate(rates, in.EffectiveDate)
		if err != nil {
			return nil, err
		}
		id := rate.ID
		return &Result{
			Method:     in.Method,
			Cost:       Round(in.DistanceKm.Mul(rate.Rate)),
			Kilometers: in.DistanceKm,
			RateID:     &id,
			RateValue:  rate.Rate,
		}, nil

	default:
		return nil, apperror.Validation("cost_method", "unknown cost method "+string(in.Method))
	}
}
