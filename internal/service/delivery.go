package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/tailorly/api/internal/delivery"
	"github.com/tailorly/api/internal/enum"
	"github.com/tailorly/api/internal/events"
	"github.com/tailorly/api/internal/order"
)

// ProposeSchedule groups deliverable items into a new SCHEDULED delivery.
func (s *GroupOrderService) ProposeSchedule(ctx context.Context, groupOrderID uuid.UUID, ids []uuid.UUID, date time.Time, notes, actor string) (*delivery.Schedule, error) {
	return s.propose(ctx, groupOrderID, actor, func(r *delivery.Reconciler) (*delivery.Schedule, error) {
		return r.ProposeSchedule(ids, date, notes)
	})
}

// ProposeDefaultSchedule applies the group order's delivery strategy.
func (s *GroupOrderService) ProposeDefaultSchedule(ctx context.Context, groupOrderID uuid.UUID, date time.Time, notes, actor string) (*delivery.Schedule, error) {
	return s.propose(ctx, groupOrderID, actor, func(r *delivery.Reconciler) (*delivery.Schedule, error) {
		return r.ProposeDefault(date, notes)
	})
}

func (s *GroupOrderService) propose(ctx context.Context, groupOrderID uuid.UUID, actor string,
	fn func(*delivery.Reconciler) (*delivery.Schedule, error)) (*delivery.Schedule, error) {
	var out *delivery.Schedule
	err := s.inTx(ctx, func(ctx context.Context, st Store) error {
		a, err := lockAll(ctx, st, groupOrderID)
		if err != nil {
			return err
		}
		sched, err := fn(a.reconciler(s.deliveryGate))
		if err != nil {
			return err
		}
		if err := st.CreateSchedule(ctx, sched); err != nil {
			return err
		}
		out = sched
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.committed(ctx, groupOrderID, events.New(events.ScheduleProposed, groupOrderID, actor, map[string]any{
		"schedule_id":    out.ID,
		"scheduled_date": out.ScheduledDate,
		"item_ids":       out.ItemIDs,
	}))
	return out, nil
}

// MarkDelivered records delivery times for items of a schedule. The schedule
// itself becomes DELIVERED once every one of its items is.
func (s *GroupOrderService) MarkDelivered(ctx context.Context, groupOrderID, scheduleID uuid.UUID,
	delivered map[uuid.UUID]time.Time, actor string) (*delivery.Schedule, []order.Item, error) {
	var (
		sched *delivery.Schedule
		items []order.Item
	)
	err := s.inTx(ctx, func(ctx context.Context, st Store) error {
		a, err := lockAll(ctx, st, groupOrderID)
		if err != nil {
			return err
		}
		sched, items, err = a.reconciler(s.deliveryGate).MarkDelivered(scheduleID, delivered)
		if err != nil {
			return err
		}
		if err := st.SaveOrderItems(ctx, items); err != nil {
			return err
		}
		return st.SaveSchedule(ctx, sched)
	})
	if err != nil {
		return nil, nil, err
	}

	evts := make([]events.Event, 0, len(items)+1)
	for _, it := range items {
		evts = append(evts, itemStatusEvent(groupOrderID, actor, it))
	}
	if sched.Status == enum.ScheduleStatusDelivered {
		evts = append(evts, events.New(events.ScheduleDelivered, groupOrderID, actor, map[string]any{
			"schedule_id": sched.ID,
		}))
	}
	s.committed(ctx, groupOrderID, evts...)
	return sched, items, nil
}

// UpdateScheduleStatus moves a schedule forward or fails it. A failed
// schedule releases its items for rescheduling.
func (s *GroupOrderService) UpdateScheduleStatus(ctx context.Context, groupOrderID, scheduleID uuid.UUID,
	status enum.ScheduleStatus, actor string) (*delivery.Schedule, error) {
	var out *delivery.Schedule
	err := s.inTx(ctx, func(ctx context.Context, st Store) error {
		a, err := lockAll(ctx, st, groupOrderID)
		if err != nil {
			return err
		}
		sched, err := a.reconciler(s.deliveryGate).UpdateStatus(scheduleID, status)
		if err != nil {
			return err
		}
		if err := st.SaveSchedule(ctx, sched); err != nil {
			return err
		}
		out = sched
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.committed(ctx, groupOrderID, events.New(events.ScheduleStatusChange, groupOrderID, actor, map[string]any{
		"schedule_id": out.ID,
		"status":      out.Status,
	}))
	return out, nil
}
