// Package discount computes bulk discount tiers for group orders.
//
// Amounts are rounded half away from zero to two decimal places.
package discount

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// MinItems is the smallest group size that earns a discount.
const MinItems = 3

// EstimateItemAmount is the placeholder price per garment used before items are priced.
var EstimateItemAmount = decimal.NewFromInt(200)

// ErrInvalidInput is returned when the item count and amounts do not describe a valid order.
var ErrInvalidInput = errors.New("invalid discount input")

var hundred = decimal.NewFromInt(100)

// Tier is a contiguous item-count band with a fixed percentage.
// Max == 0 means the band is open-ended.
type Tier struct {
	Level      int             `json:"level"`
	Min        int             `json:"min"`
	Max        int             `json:"max"`
	Percentage decimal.Decimal `json:"percentage"`
}

// Contains reports whether count falls inside the tier's inclusive bounds.
func (t Tier) Contains(count int) bool {
	if count < t.Min {
		return false
	}
	return t.Max == 0 || count <= t.Max
}

var tiers = []Tier{
	{Level: 1, Min: 3, Max: 5, Percentage: decimal.NewFromInt(15)},
	{Level: 2, Min: 6, Max: 9, Percentage: decimal.NewFromInt(20)},
	{Level: 3, Min: 10, Max: 0, Percentage: decimal.NewFromInt(25)},
}

// Tiers returns a copy of the discount bands in ascending order.
func Tiers() []Tier {
	out := make([]Tier, len(tiers))
	copy(out, tiers)
	return out
}

// TierFor returns the band matching count. Counts below MinItems return the
// zero tier (level 0, 0%).
func TierFor(count int) Tier {
	for _, t := range tiers {
		if t.Contains(count) {
			return t
		}
	}
	return Tier{Percentage: decimal.Zero}
}

// Result is the derived discount for a set of garments.
type Result struct {
	Tier            int             `json:"tier"`
	Percentage      decimal.Decimal `json:"percentage"`
	ItemCount       int             `json:"item_count"`
	OriginalTotal   decimal.Decimal `json:"original_total"`
	DiscountedTotal decimal.Decimal `json:"discounted_total"`
	Savings         decimal.Decimal `json:"savings"`
	Estimated       bool            `json:"estimated"`
}

// Compute returns the bulk discount for itemCount garments priced at amounts.
func Compute(itemCount int, amounts []decimal.Decimal) (Result, error) {
	if itemCount < 0 {
		return Result{}, fmt.Errorf("%w: item count %d is negative", ErrInvalidInput, itemCount)
	}
	if itemCount != len(amounts) {
		return Result{}, fmt.Errorf("%w: item count %d does not match %d amounts", ErrInvalidInput, itemCount, len(amounts))
	}

	original := decimal.Zero
	for i, a := range amounts {
		if a.IsNegative() {
			return Result{}, fmt.Errorf("%w: amount[%d] %s is negative", ErrInvalidInput, i, a.StringFixed(2))
		}
		original = original.Add(a)
	}
	original = original.Round(2)

	tier := TierFor(itemCount)
	factor := hundred.Sub(tier.Percentage).Div(hundred)
	discounted := original.Mul(factor).Round(2)

	return Result{
		Tier:            tier.Level,
		Percentage:      tier.Percentage,
		ItemCount:       itemCount,
		OriginalTotal:   original,
		DiscountedTotal: discounted,
		Savings:         original.Sub(discounted),
	}, nil
}

// Estimate returns the discount a group of itemCount garments would get at the
// placeholder price. It is for display before pricing and is flagged Estimated.
func Estimate(itemCount int) (Result, error) {
	if itemCount < 0 {
		return Result{}, fmt.Errorf("%w: item count %d is negative", ErrInvalidInput, itemCount)
	}
	amounts := make([]decimal.Decimal, itemCount)
	for i := range amounts {
		amounts[i] = EstimateItemAmount
	}
	r, err := Compute(itemCount, amounts)
	if err != nil {
		return Result{}, err
	}
	r.Estimated = true
	return r, nil
}
