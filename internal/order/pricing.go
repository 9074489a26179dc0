package order

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tailorly/api/internal/discount"
	"github.com/tailorly/api/internal/enum"
)

// NewItem is the validated input for one garment of a new group order.
type NewItem struct {
	GarmentType       string
	BaseAmount        decimal.Decimal
	DeliveryPriority  int
	EstimatedDelivery *time.Time
}

// Price validates the garments, computes the group's bulk discount and
// spreads it over the items. Each item gets its own percentage share rounded
// to cents; the rounding remainder is spread a cent at a time starting with
// the item with the largest base amount (lowest priority wins ties) so the
// final amounts add up to the discounted total exactly.
func Price(groupOrderID uuid.UUID, in []NewItem) ([]Item, discount.Result, error) {
	if len(in) == 0 {
		return nil, discount.Result{}, ErrEmptyItems
	}

	seen := make(map[int]bool, len(in))
	amounts := make([]decimal.Decimal, len(in))
	for i, ni := range in {
		if ni.GarmentType == "" {
			return nil, discount.Result{}, fmt.Errorf("item[%d]: %w", i, ErrMissingGarment)
		}
		if ni.BaseAmount.IsNegative() || !ni.BaseAmount.Equal(ni.BaseAmount.Round(2)) {
			return nil, discount.Result{}, fmt.Errorf("item[%d]: %w", i, ErrInvalidAmount)
		}
		if ni.DeliveryPriority < 1 {
			return nil, discount.Result{}, fmt.Errorf("item[%d]: %w", i, ErrInvalidPriority)
		}
		if seen[ni.DeliveryPriority] {
			return nil, discount.Result{}, fmt.Errorf("item[%d]: priority %d: %w", i, ni.DeliveryPriority, ErrDuplicatePriority)
		}
		seen[ni.DeliveryPriority] = true
		amounts[i] = ni.BaseAmount
	}

	result, err := discount.Compute(len(in), amounts)
	if err != nil {
		return nil, discount.Result{}, err
	}

	hundred := decimal.NewFromInt(100)
	gid := groupOrderID
	items := make([]Item, len(in))
	allocated := decimal.Zero
	for i, ni := range in {
		itemDiscount := ni.BaseAmount.Mul(result.Percentage).Div(hundred).Round(2)
		items[i] = Item{
			ID:                uuid.New(),
			GroupOrderID:      &gid,
			GarmentType:       ni.GarmentType,
			BaseAmount:        ni.BaseAmount,
			DiscountAmount:    itemDiscount,
			FinalAmount:       ni.BaseAmount.Sub(itemDiscount),
			DeliveryPriority:  ni.DeliveryPriority,
			Status:            enum.ItemStatusPending,
			EstimatedDelivery: ni.EstimatedDelivery,
		}
		allocated = allocated.Add(items[i].FinalAmount)
	}

	spreadRemainder(items, result.DiscountedTotal.Sub(allocated))
	return items, result, nil
}

// spreadRemainder moves diff onto the items one cent at a time, largest base
// amount first, never taking an item below zero.
func spreadRemainder(items []Item, diff decimal.Decimal) {
	if diff.IsZero() {
		return
	}
	order := make([]int, len(items))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		ia, ib := items[order[a]], items[order[b]]
		if !ia.BaseAmount.Equal(ib.BaseAmount) {
			return ia.BaseAmount.GreaterThan(ib.BaseAmount)
		}
		return ia.DeliveryPriority < ib.DeliveryPriority
	})

	cent := decimal.New(1, -2)
	if diff.IsNegative() {
		cent = cent.Neg()
	}
	for !diff.IsZero() {
		moved := false
		for _, idx := range order {
			if diff.IsZero() {
				break
			}
			next := items[idx].FinalAmount.Add(cent)
			if next.IsNegative() || next.GreaterThan(items[idx].BaseAmount) {
				continue
			}
			items[idx].FinalAmount = next
			items[idx].DiscountAmount = items[idx].DiscountAmount.Sub(cent)
			diff = diff.Sub(cent)
			moved = true
		}
		if !moved {
			return
		}
	}
}
