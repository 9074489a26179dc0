package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/tailorly/api/internal/delivery"
	"github.com/tailorly/api/internal/enum"
	"github.com/tailorly/api/internal/escrow"
	"github.com/tailorly/api/internal/events"
	"github.com/tailorly/api/internal/order"
)

// AdvanceStage moves an item's ledger to its next stage once the current
// share is fully paid.
func (s *GroupOrderService) AdvanceStage(ctx context.Context, groupOrderID, itemID uuid.UUID, actor string) (*escrow.Ledger, error) {
	l, err := s.mutateLedger(ctx, groupOrderID, itemID, func(l *escrow.Ledger) error {
		return l.AdvanceStage(actor, s.now())
	})
	if err != nil {
		return nil, err
	}
	s.committed(ctx, groupOrderID, events.New(events.StageAdvanced, groupOrderID, actor, map[string]any{
		"item_id": itemID,
		"stage":   l.Stage,
	}))
	return l, nil
}

// MarkDisputed flags an item's ledger. Payments continue; stage advance is
// blocked until the same actor clears it.
func (s *GroupOrderService) MarkDisputed(ctx context.Context, groupOrderID, itemID uuid.UUID, actor string) (*escrow.Ledger, error) {
	l, err := s.mutateLedger(ctx, groupOrderID, itemID, func(l *escrow.Ledger) error {
		return l.MarkDisputed(actor)
	})
	if err != nil {
		return nil, err
	}
	s.committed(ctx, groupOrderID, events.New(events.LedgerDisputed, groupOrderID, actor, map[string]any{
		"item_id": itemID,
	}))
	return l, nil
}

func (s *GroupOrderService) ClearDispute(ctx context.Context, groupOrderID, itemID uuid.UUID, actor string) (*escrow.Ledger, error) {
	l, err := s.mutateLedger(ctx, groupOrderID, itemID, func(l *escrow.Ledger) error {
		return l.ClearDispute(actor)
	})
	if err != nil {
		return nil, err
	}
	s.committed(ctx, groupOrderID, events.New(events.LedgerDisputeCleared, groupOrderID, actor, map[string]any{
		"item_id": itemID,
	}))
	return l, nil
}

func (s *GroupOrderService) mutateLedger(ctx context.Context, groupOrderID, itemID uuid.UUID, fn func(*escrow.Ledger) error) (*escrow.Ledger, error) {
	var out *escrow.Ledger
	err := s.inTx(ctx, func(ctx context.Context, st Store) error {
		if _, err := st.LockGroupOrder(ctx, groupOrderID); err != nil {
			return err
		}
		ledgers, err := st.LoadLedgers(ctx, groupOrderID)
		if err != nil {
			return err
		}
		l, err := findLedger(ledgers, itemID)
		if err != nil {
			return err
		}
		if err := fn(l); err != nil {
			return err
		}
		if err := st.SaveLedgers(ctx, []*escrow.Ledger{l}); err != nil {
			return err
		}
		out = l
		return nil
	})
	return out, err
}

// UpdateItemStatus moves one garment through its lifecycle. An item held by
// an open delivery schedule cannot be cancelled or disputed until that
// schedule is failed.
func (s *GroupOrderService) UpdateItemStatus(ctx context.Context, groupOrderID, itemID uuid.UUID, status enum.ItemStatus, actor string) (order.Item, error) {
	var out order.Item
	err := s.inTx(ctx, func(ctx context.Context, st Store) error {
		g, err := st.LockGroupOrder(ctx, groupOrderID)
		if err != nil {
			return err
		}
		items, err := st.LoadOrderItems(ctx, groupOrderID)
		if err != nil {
			return err
		}
		i, err := findItem(items, itemID)
		if err != nil {
			return err
		}
		if status == enum.ItemStatusCancelled || status == enum.ItemStatusDisputed {
			schedules, err := st.LoadSchedules(ctx, groupOrderID)
			if err != nil {
				return err
			}
			rec := delivery.NewReconciler(g.ID, g.DeliveryStrategy, items, schedules)
			if held, ok := rec.Holding(itemID); ok {
				return &delivery.ItemAlreadyScheduledError{ItemID: itemID, ScheduleID: held.ID}
			}
		}
		if err := items[i].TransitionTo(status); err != nil {
			return err
		}
		changed := items[i : i+1]
		if err := st.SaveOrderItems(ctx, changed); err != nil {
			return err
		}
		out = changed[0]
		return nil
	})
	if err != nil {
		return order.Item{}, err
	}
	s.committed(ctx, groupOrderID, itemStatusEvent(groupOrderID, actor, out))
	return out, nil
}
