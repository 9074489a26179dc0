package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tailorly/api/internal/enum"
	"github.com/tailorly/api/internal/events"
	"github.com/tailorly/api/internal/order"
	"github.com/tailorly/api/internal/payment"
)

// CreateGroupOrderRequest is the validated input for creating a group order.
type CreateGroupOrderRequest struct {
	Name             string
	PaymentMode      enum.PaymentMode
	DeliveryStrategy enum.DeliveryStrategy
	PrimaryPayerID   uuid.UUID
	PrimaryPayerName string
	DueDate          *time.Time // SINGLE mode only
	Items            []order.NewItem
	Payers           []PayerRequest // SPLIT mode only
	CreatedBy        string
}

// PayerRequest assigns items to a payer. Items are referenced by delivery
// priority because their ids do not exist yet.
type PayerRequest struct {
	PayerID        uuid.UUID
	Name           string
	ItemPriorities []int
	DueDate        *time.Time
}

// CreateGroupOrder prices the items with the bulk discount, attaches a
// DEPOSIT-stage ledger to each and stores the payer assignment.
func (s *GroupOrderService) CreateGroupOrder(ctx context.Context, req CreateGroupOrderRequest) (*Snapshot, error) {
	if req.Name == "" {
		return nil, ErrMissingName
	}
	if !req.PaymentMode.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPaymentMode, req.PaymentMode)
	}
	if !req.DeliveryStrategy.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDeliveryStrategy, req.DeliveryStrategy)
	}
	if req.PrimaryPayerID == uuid.Nil {
		return nil, payment.ErrPrimaryPayerRequired
	}

	g := order.GroupOrder{
		ID:               uuid.New(),
		Name:             req.Name,
		PaymentMode:      req.PaymentMode,
		DeliveryStrategy: req.DeliveryStrategy,
		PrimaryPayerID:   req.PrimaryPayerID,
		CreatedAt:        s.now(),
	}

	items, _, err := order.Price(g.ID, req.Items)
	if err != nil {
		return nil, err
	}

	payers, err := buildPayers(req, items)
	if err != nil {
		return nil, err
	}

	coord := payment.NewCoordinator(g.ID, g.PaymentMode, g.PrimaryPayerID, nil, payers)
	ledgers, err := coord.Attach(items)
	if err != nil {
		return nil, err
	}

	err = s.inTx(ctx, func(ctx context.Context, st Store) error {
		if err := st.CreateGroupOrder(ctx, &g); err != nil {
			return err
		}
		if err := st.CreateOrderItems(ctx, items); err != nil {
			return err
		}
		if err := st.CreateLedgers(ctx, ledgers); err != nil {
			return err
		}
		return st.CreateResponsibilities(ctx, g.ID, payers)
	})
	if err != nil {
		return nil, err
	}

	snap, err := s.buildSnapshot(&aggregate{group: g, items: items, ledgers: ledgers, payers: payers})
	if err != nil {
		return nil, err
	}
	s.committed(ctx, g.ID, events.New(events.GroupOrderCreated, g.ID, req.CreatedBy, map[string]any{
		"name":             g.Name,
		"item_count":       len(items),
		"discount_tier":    snap.Discount.Tier,
		"discounted_total": snap.Discount.DiscountedTotal.StringFixed(2),
	}))
	return snap, nil
}

// buildPayers resolves the payer assignment against the priced items. A
// SINGLE group order gets one responsibility: the primary payer owns everything.
func buildPayers(req CreateGroupOrderRequest, items []order.Item) ([]payment.Responsibility, error) {
	ids := itemIDs(items)

	if req.PaymentMode == enum.PaymentModeSingle {
		if len(req.Payers) > 0 {
			return nil, ErrPayersNotAllowed
		}
		if req.PrimaryPayerName == "" {
			return nil, payment.ErrMissingPayerName
		}
		return []payment.Responsibility{{
			PayerID: req.PrimaryPayerID,
			Name:    req.PrimaryPayerName,
			ItemIDs: ids,
			DueDate: req.DueDate,
		}}, nil
	}

	byPriority := make(map[int]uuid.UUID, len(items))
	for _, it := range items {
		byPriority[it.DeliveryPriority] = it.ID
	}
	payers := make([]payment.Responsibility, len(req.Payers))
	for i, p := range req.Payers {
		owned := make([]uuid.UUID, 0, len(p.ItemPriorities))
		for _, prio := range p.ItemPriorities {
			id, ok := byPriority[prio]
			if !ok {
				return nil, fmt.Errorf("payer[%d] priority %d: %w", i, prio, ErrUnknownPriority)
			}
			owned = append(owned, id)
		}
		payers[i] = payment.Responsibility{
			PayerID: p.PayerID,
			Name:    p.Name,
			ItemIDs: owned,
			DueDate: p.DueDate,
		}
	}
	if err := payment.ValidateResponsibilities(ids, payers); err != nil {
		return nil, err
	}
	return payers, nil
}
