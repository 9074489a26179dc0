// Package order models garments and the group orders that bundle them.
package order

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tailorly/api/internal/enum"
)

// Errors returned by the order package.
var (
	ErrInvalidTransition = errors.New("invalid item status transition")
	ErrInvalidStatus     = errors.New("invalid item status")
	ErrDuplicatePriority = errors.New("delivery priority must be unique within a group order")
	ErrInvalidPriority   = errors.New("delivery priority must be >= 1")
	ErrInvalidAmount     = errors.New("base amount must be non-negative with at most 2 decimal places")
	ErrEmptyItems        = errors.New("items are required")
	ErrMissingGarment    = errors.New("garment_type is required")
)

// Item is one garment within a group order (or a standalone order when
// GroupOrderID is nil).
type Item struct {
	ID                uuid.UUID
	GroupOrderID      *uuid.UUID
	GarmentType       string
	BaseAmount        decimal.Decimal
	DiscountAmount    decimal.Decimal
	FinalAmount       decimal.Decimal
	DeliveryPriority  int
	Status            enum.ItemStatus
	EstimatedDelivery *time.Time
	ActualDelivery    *time.Time
	Version           int64
}

// GroupOrder is the header shared by all garments of one coordinated purchase.
type GroupOrder struct {
	ID               uuid.UUID
	Name             string
	PaymentMode      enum.PaymentMode
	DeliveryStrategy enum.DeliveryStrategy
	PrimaryPayerID   uuid.UUID
	CreatedAt        time.Time
	Version          int64
}

var transitions = map[enum.ItemStatus][]enum.ItemStatus{
	enum.ItemStatusPending:          {enum.ItemStatusDepositPaid},
	enum.ItemStatusDepositPaid:      {enum.ItemStatusInProduction},
	enum.ItemStatusInProduction:     {enum.ItemStatusFittingReady},
	enum.ItemStatusFittingReady:     {enum.ItemStatusFittingApproved, enum.ItemStatusInProduction},
	enum.ItemStatusFittingApproved:  {enum.ItemStatusReadyForDelivery},
	enum.ItemStatusReadyForDelivery: {enum.ItemStatusDelivered},
	enum.ItemStatusDelivered:        {enum.ItemStatusCompleted},
	enum.ItemStatusDisputed:         {enum.ItemStatusInProduction, enum.ItemStatusReadyForDelivery},
}

// CanTransition reports whether an item may move from one status to another.
// CANCELLED and DISPUTED are reachable from every non-terminal status.
func CanTransition(from, to enum.ItemStatus) bool {
	if from.Terminal() || from == to {
		return false
	}
	if to == enum.ItemStatusCancelled {
		return true
	}
	if to == enum.ItemStatusDisputed {
		return from != enum.ItemStatusDisputed
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// TransitionTo changes the item's status if the move is allowed.
func (it *Item) TransitionTo(to enum.ItemStatus) error {
	if !to.Valid() {
		return fmt.Errorf("item %s: %w: %q", it.ID, ErrInvalidStatus, to)
	}
	if !CanTransition(it.Status, to) {
		return fmt.Errorf("item %s: %w: %s -> %s", it.ID, ErrInvalidTransition, it.Status, to)
	}
	it.Status = to
	return nil
}

// Clone returns a copy safe to mutate.
func (it Item) Clone() Item {
	c := it
	if it.GroupOrderID != nil {
		g := *it.GroupOrderID
		c.GroupOrderID = &g
	}
	if it.EstimatedDelivery != nil {
		e := *it.EstimatedDelivery
		c.EstimatedDelivery = &e
	}
	if it.ActualDelivery != nil {
		a := *it.ActualDelivery
		c.ActualDelivery = &a
	}
	return c
}
