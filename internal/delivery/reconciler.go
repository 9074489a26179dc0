// Package delivery decides which garments of a group order may go out
// together and tracks each delivery event.
package delivery

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tailorly/api/internal/enum"
	"github.com/tailorly/api/internal/escrow"
	"github.com/tailorly/api/internal/order"
)

// Schedule is one delivery event.
type Schedule struct {
	ID            uuid.UUID
	GroupOrderID  uuid.UUID
	ScheduledDate time.Time
	ItemIDs       []uuid.UUID
	Notes         string
	Status        enum.ScheduleStatus
	Version       int64
}

// Clone returns a copy safe to mutate.
func (s Schedule) Clone() Schedule {
	s.ItemIDs = append([]uuid.UUID(nil), s.ItemIDs...)
	return s
}

// Active reports whether the schedule still claims its items.
func (s Schedule) Active() bool { return s.Status != enum.ScheduleStatusFailed }

var transitions = map[enum.ScheduleStatus][]enum.ScheduleStatus{
	enum.ScheduleStatusScheduled: {enum.ScheduleStatusReady, enum.ScheduleStatusFailed},
	enum.ScheduleStatusReady:     {enum.ScheduleStatusInTransit, enum.ScheduleStatusFailed},
	enum.ScheduleStatusInTransit: {enum.ScheduleStatusFailed},
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithPaymentGate only lets an item into a schedule once its escrow ledger
// has reached the FINAL stage.
func WithPaymentGate(ledgers []*escrow.Ledger) Option {
	return func(r *Reconciler) {
		r.gate = make(map[uuid.UUID]enum.EscrowStage, len(ledgers))
		for _, l := range ledgers {
			r.gate[l.ItemID] = l.Stage
		}
	}
}

// Reconciler enforces the per-item delivery rules for one group order:
// only deliverable items are scheduled, and an item is claimed by at most
// one schedule that has not failed.
type Reconciler struct {
	mu           sync.Mutex
	groupOrderID uuid.UUID
	strategy     enum.DeliveryStrategy
	items        map[uuid.UUID]*order.Item
	schedules    []*Schedule
	gate         map[uuid.UUID]enum.EscrowStage
}

// NewReconciler builds a reconciler over the group order's current items and schedules.
func NewReconciler(groupOrderID uuid.UUID, strategy enum.DeliveryStrategy,
	items []order.Item, schedules []Schedule, opts ...Option) *Reconciler {
	r := &Reconciler{
		groupOrderID: groupOrderID,
		strategy:     strategy,
		items:        make(map[uuid.UUID]*order.Item, len(items)),
	}
	for _, it := range items {
		c := it.Clone()
		r.items[c.ID] = &c
	}
	for _, s := range schedules {
		c := s.Clone()
		r.schedules = append(r.schedules, &c)
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Schedules returns copies of every schedule, oldest first.
func (r *Reconciler) Schedules() []Schedule {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Schedule, len(r.schedules))
	for i, s := range r.schedules {
		out[i] = s.Clone()
	}
	return out
}

// ProposeSchedule creates a SCHEDULED delivery for itemIDs.
func (r *Reconciler) ProposeSchedule(itemIDs []uuid.UUID, date time.Time, notes string) (*Schedule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.propose(itemIDs, date, notes)
}

func (r *Reconciler) propose(itemIDs []uuid.UUID, date time.Time, notes string) (*Schedule, error) {
	if len(itemIDs) == 0 {
		return nil, ErrNoItems
	}
	if date.IsZero() {
		return nil, ErrInvalidDate
	}

	seen := make(map[uuid.UUID]bool, len(itemIDs))
	for i, id := range itemIDs {
		if seen[id] {
			return nil, fmt.Errorf("item[%d] %s: %w", i, id, ErrDuplicateItem)
		}
		seen[id] = true

		it, ok := r.items[id]
		if !ok {
			return nil, fmt.Errorf("item[%d] %s: %w", i, id, ErrUnknownItem)
		}
		if err := r.checkDeliverable(it); err != nil {
			return nil, err
		}
		if s := r.claimedBy(id); s != nil {
			return nil, &ItemAlreadyScheduledError{ItemID: id, ScheduleID: s.ID}
		}
	}

	s := &Schedule{
		ID:            uuid.New(),
		GroupOrderID:  r.groupOrderID,
		ScheduledDate: date,
		ItemIDs:       append([]uuid.UUID(nil), itemIDs...),
		Notes:         notes,
		Status:        enum.ScheduleStatusScheduled,
	}
	r.schedules = append(r.schedules, s)
	out := s.Clone()
	return &out, nil
}

func (r *Reconciler) checkDeliverable(it *order.Item) error {
	if !it.Status.Deliverable() {
		return &ItemNotDeliverableError{ItemID: it.ID, Status: it.Status}
	}
	if r.gate != nil {
		stage, ok := r.gate[it.ID]
		if !ok {
			stage = enum.StageDeposit
		}
		if stage.Index() < enum.StageFinal.Index() {
			return &ItemNotDeliverableError{ItemID: it.ID, Status: it.Status, Stage: stage}
		}
	}
	return nil
}

// Holding returns the open schedule that claims itemID. A schedule is open
// until it is delivered or failed.
func (r *Reconciler) Holding(itemID uuid.UUID) (Schedule, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := r.claimedBy(itemID)
	if s == nil || s.Status == enum.ScheduleStatusDelivered {
		return Schedule{}, false
	}
	return s.Clone(), true
}

func (r *Reconciler) claimedBy(itemID uuid.UUID) *Schedule {
	for _, s := range r.schedules {
		if !s.Active() {
			continue
		}
		for _, id := range s.ItemIDs {
			if id == itemID {
				return s
			}
		}
	}
	return nil
}

// ProposeDefault proposes the schedule the group's delivery strategy
// suggests. ALL_TOGETHER covers every non-cancelled item and waits until all
// of them are deliverable; STAGGERED takes whatever is deliverable and not
// yet scheduled.
func (r *Reconciler) ProposeDefault(date time.Time, notes string) (*Schedule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var ids []uuid.UUID
	for _, it := range r.byPriority() {
		if it.Status == enum.ItemStatusCancelled {
			continue
		}
		switch r.strategy {
		case enum.DeliveryAllTogether:
			if err := r.checkDeliverable(it); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrNotAllDeliverable, err)
			}
			ids = append(ids, it.ID)
		default:
			if r.checkDeliverable(it) == nil && r.claimedBy(it.ID) == nil {
				ids = append(ids, it.ID)
			}
		}
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("group order %s: %w", r.groupOrderID, ErrNothingToSchedule)
	}
	return r.propose(ids, date, notes)
}

func (r *Reconciler) byPriority() []*order.Item {
	out := make([]*order.Item, 0, len(r.items))
	for _, it := range r.items {
		out = append(out, it)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DeliveryPriority < out[j].DeliveryPriority })
	return out
}

func (r *Reconciler) schedule(id uuid.UUID) (*Schedule, error) {
	for _, s := range r.schedules {
		if s.ID == id {
			return s, nil
		}
	}
	return nil, fmt.Errorf("schedule %s: %w", id, ErrUnknownSchedule)
}

// MarkDelivered records actual delivery times for items of a schedule. Each
// listed item moves to DELIVERED; the schedule follows once every item in it
// has been delivered. It returns the schedule and the items that changed.
func (r *Reconciler) MarkDelivered(scheduleID uuid.UUID, delivered map[uuid.UUID]time.Time) (*Schedule, []order.Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, err := r.schedule(scheduleID)
	if err != nil {
		return nil, nil, err
	}
	if s.Status.Closed() {
		return nil, nil, fmt.Errorf("schedule %s: %w", s.ID, ErrScheduleClosed)
	}
	if len(delivered) == 0 {
		return nil, nil, fmt.Errorf("schedule %s: %w", s.ID, ErrNoDeliveryTimes)
	}

	member := make(map[uuid.UUID]bool, len(s.ItemIDs))
	for _, id := range s.ItemIDs {
		member[id] = true
	}

	changed := make([]order.Item, 0, len(delivered))
	for _, id := range s.ItemIDs {
		at, ok := delivered[id]
		if !ok {
			continue
		}
		it := r.items[id].Clone()
		if it.Status != enum.ItemStatusDelivered && it.Status != enum.ItemStatusCompleted {
			if err := it.TransitionTo(enum.ItemStatusDelivered); err != nil {
				return nil, nil, fmt.Errorf("schedule %s: %w", s.ID, err)
			}
		}
		t := at
		it.ActualDelivery = &t
		changed = append(changed, it)
	}
	for id := range delivered {
		if !member[id] {
			return nil, nil, fmt.Errorf("schedule %s, item %s: %w", s.ID, id, ErrItemNotInSchedule)
		}
	}

	for i := range changed {
		it := changed[i]
		r.items[it.ID] = &it
	}
	if r.allDelivered(s) {
		s.Status = enum.ScheduleStatusDelivered
	}
	out := s.Clone()
	return &out, changed, nil
}

func (r *Reconciler) allDelivered(s *Schedule) bool {
	for _, id := range s.ItemIDs {
		it, ok := r.items[id]
		if !ok || it.ActualDelivery == nil {
			return false
		}
		if it.Status != enum.ItemStatusDelivered && it.Status != enum.ItemStatusCompleted {
			return false
		}
	}
	return true
}

// UpdateStatus moves a schedule along SCHEDULED → READY → IN_TRANSIT, or to
// FAILED from any open status. A FAILED schedule releases its items.
// DELIVERED is only reached through MarkDelivered.
func (r *Reconciler) UpdateStatus(scheduleID uuid.UUID, status enum.ScheduleStatus) (*Schedule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !status.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	s, err := r.schedule(scheduleID)
	if err != nil {
		return nil, err
	}
	allowed := false
	for _, next := range transitions[s.Status] {
		if next == status {
			allowed = true
			break
		}
	}
	if !allowed {
		return nil, fmt.Errorf("schedule %s: %w: %s -> %s", s.ID, ErrInvalidTransition, s.Status, status)
	}
	s.Status = status
	out := s.Clone()
	return &out, nil
}
