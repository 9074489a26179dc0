package service

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tailorly/api/internal/auth"
	"github.com/tailorly/api/internal/delivery"
	"github.com/tailorly/api/internal/discount"
	"github.com/tailorly/api/internal/enum"
	"github.com/tailorly/api/internal/escrow"
	"github.com/tailorly/api/internal/order"
	"github.com/tailorly/api/internal/payment"
	"golang.org/x/sync/errgroup"
)

// Snapshot is the full read model of one group order.
type Snapshot struct {
	GroupOrder order.GroupOrder
	Items      []order.Item
	Discount   discount.Result
	Payments   payment.Summary
	Ledgers    []*escrow.Ledger
	Payers     []payment.Responsibility
	Schedules  []delivery.Schedule
}

// aggregate is everything persisted for one group order.
type aggregate struct {
	group     order.GroupOrder
	items     []order.Item
	ledgers   []*escrow.Ledger
	payers    []payment.Responsibility
	schedules []delivery.Schedule
}

func (a *aggregate) coordinator() *payment.Coordinator {
	c := payment.NewCoordinator(a.group.ID, a.group.PaymentMode, a.group.PrimaryPayerID, a.ledgers, a.payers)
	c.ExcludeCancelled(cancelledItems(a.items)...)
	return c
}

func cancelledItems(items []order.Item) []uuid.UUID {
	var ids []uuid.UUID
	for _, it := range items {
		if it.Status == enum.ItemStatusCancelled {
			ids = append(ids, it.ID)
		}
	}
	return ids
}

func (a *aggregate) reconciler(gate bool) *delivery.Reconciler {
	var opts []delivery.Option
	if gate {
		opts = append(opts, delivery.WithPaymentGate(a.ledgers))
	}
	return delivery.NewReconciler(a.group.ID, a.group.DeliveryStrategy, a.items, a.schedules, opts...)
}

// loadAll reads the aggregate through the pool, one query per table in parallel.
func (s *GroupOrderService) loadAll(ctx context.Context, groupOrderID uuid.UUID) (*aggregate, error) {
	var a aggregate
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		a.group, err = s.store.LoadGroupOrder(gctx, groupOrderID)
		return err
	})
	g.Go(func() (err error) {
		a.items, err = s.store.LoadOrderItems(gctx, groupOrderID)
		return err
	})
	g.Go(func() (err error) {
		a.ledgers, err = s.store.LoadLedgers(gctx, groupOrderID)
		return err
	})
	g.Go(func() (err error) {
		a.payers, err = s.store.LoadResponsibilities(gctx, groupOrderID)
		return err
	})
	g.Go(func() (err error) {
		a.schedules, err = s.store.LoadSchedules(gctx, groupOrderID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &a, nil
}

// lockAll reads the aggregate inside a transaction after locking the group
// order row, so concurrent writers of the same group order queue up.
func lockAll(ctx context.Context, st Store, groupOrderID uuid.UUID) (*aggregate, error) {
	var (
		a   aggregate
		err error
	)
	if a.group, err = st.LockGroupOrder(ctx, groupOrderID); err != nil {
		return nil, err
	}
	if a.items, err = st.LoadOrderItems(ctx, groupOrderID); err != nil {
		return nil, err
	}
	if a.ledgers, err = st.LoadLedgers(ctx, groupOrderID); err != nil {
		return nil, err
	}
	if a.payers, err = st.LoadResponsibilities(ctx, groupOrderID); err != nil {
		return nil, err
	}
	if a.schedules, err = st.LoadSchedules(ctx, groupOrderID); err != nil {
		return nil, err
	}
	return &a, nil
}

// Snapshot returns the group order with its final discount, payment summary,
// ledgers, payer summaries and schedules. A cached snapshot still gets its
// payer statuses recomputed, since OVERDUE depends on the clock.
func (s *GroupOrderService) Snapshot(ctx context.Context, groupOrderID uuid.UUID) (*Snapshot, error) {
	var cached Snapshot
	if ok, err := s.cache.GetSnapshot(ctx, groupOrderID, &cached); err != nil {
		log.Printf("ERROR: read cached snapshot %s: %v", groupOrderID, err)
	} else if ok {
		a := aggregate{
			group:     cached.GroupOrder,
			items:     cached.Items,
			ledgers:   cached.Ledgers,
			payers:    cached.Payers,
			schedules: cached.Schedules,
		}
		cached.Payers = a.coordinator().PayerSummaries(s.now())
		return &cached, nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	a, err := s.loadAll(ctx, groupOrderID)
	if err != nil {
		return nil, fmt.Errorf("load group order %s: %w", groupOrderID, err)
	}
	snap, err := s.buildSnapshot(a)
	if err != nil {
		return nil, err
	}
	if err := s.cache.SetSnapshot(ctx, groupOrderID, snap); err != nil {
		log.Printf("ERROR: cache snapshot %s: %v", groupOrderID, err)
	}
	return snap, nil
}

func (s *GroupOrderService) buildSnapshot(a *aggregate) (*Snapshot, error) {
	amounts := make([]decimal.Decimal, len(a.items))
	for i, it := range a.items {
		amounts[i] = it.BaseAmount
	}
	disc, err := discount.Compute(len(a.items), amounts)
	if err != nil {
		return nil, fmt.Errorf("group order %s: %w", a.group.ID, err)
	}

	coord := a.coordinator()
	return &Snapshot{
		GroupOrder: a.group,
		Items:      a.items,
		Discount:   disc,
		Payments:   coord.Summary(),
		Ledgers:    coord.Ledgers(),
		Payers:     coord.PayerSummaries(s.now()),
		Schedules:  a.schedules,
	}, nil
}

// PayerSummary recomputes one payer's responsibility from the current ledgers.
func (s *GroupOrderService) PayerSummary(ctx context.Context, groupOrderID, payerID uuid.UUID) (payment.Responsibility, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	a, err := s.loadAll(ctx, groupOrderID)
	if err != nil {
		return payment.Responsibility{}, fmt.Errorf("load group order %s: %w", groupOrderID, err)
	}
	return a.coordinator().PayerSummary(payerID, s.now())
}

// Payments returns the payment audit trail, oldest first.
func (s *GroupOrderService) Payments(ctx context.Context, groupOrderID uuid.UUID) ([]payment.Record, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if _, err := s.store.LoadGroupOrder(ctx, groupOrderID); err != nil {
		return nil, err
	}
	return s.store.ListPaymentRecords(ctx, groupOrderID)
}

// CanView reports whether the caller may read the group order. Staff and
// moderators see everything; a customer must be one of its payers.
func (s *GroupOrderService) CanView(ctx context.Context, groupOrderID uuid.UUID, claims *auth.Claims) (bool, error) {
	if claims == nil {
		return false, nil
	}
	if claims.Role == enum.RoleStaff || claims.Role == enum.RoleModerator {
		return true, nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	g, err := s.store.LoadGroupOrder(ctx, groupOrderID)
	if err != nil {
		return false, err
	}
	if g.PrimaryPayerID == claims.UserID {
		return true, nil
	}
	payers, err := s.store.LoadResponsibilities(ctx, groupOrderID)
	if err != nil {
		return false, err
	}
	for _, p := range payers {
		if p.PayerID == claims.UserID {
			return true, nil
		}
	}
	return false, nil
}
