// Package payment aggregates the escrow ledgers of one group order and
// tracks which payer owes what.
package payment

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tailorly/api/internal/enum"
	"github.com/tailorly/api/internal/escrow"
	"github.com/tailorly/api/internal/order"
)

var hundred = decimal.NewFromInt(100)

// Line is one item's part of a group payment.
type Line struct {
	ItemID uuid.UUID       `json:"item_id"`
	Amount decimal.Decimal `json:"amount"`
}

// Summary is the aggregate payment state of a group order. Cancelled items
// are left out of the totals; their payments add up in RefundableAmount.
type Summary struct {
	TotalAmount        decimal.Decimal
	PaidAmount         decimal.Decimal
	OutstandingAmount  decimal.Decimal
	RefundableAmount   decimal.Decimal
	ProgressPercentage decimal.Decimal
}

// Coordinator holds the ledgers of one group order. It serializes every
// mutation and applies multi-item payments all-or-nothing.
type Coordinator struct {
	mu           sync.Mutex
	groupOrderID uuid.UUID
	mode         enum.PaymentMode
	primaryPayer uuid.UUID
	ledgers      map[uuid.UUID]*escrow.Ledger
	itemOrder    []uuid.UUID
	payers       []Responsibility
	cancelled    map[uuid.UUID]bool
}

// NewCoordinator wraps already-attached ledgers, as loaded from storage.
func NewCoordinator(groupOrderID uuid.UUID, mode enum.PaymentMode, primaryPayer uuid.UUID,
	ledgers []*escrow.Ledger, payers []Responsibility) *Coordinator {
	c := &Coordinator{
		groupOrderID: groupOrderID,
		mode:         mode,
		primaryPayer: primaryPayer,
		ledgers:      make(map[uuid.UUID]*escrow.Ledger, len(ledgers)),
		payers:       append([]Responsibility(nil), payers...),
		cancelled:    make(map[uuid.UUID]bool),
	}
	for _, l := range ledgers {
		if _, ok := c.ledgers[l.ItemID]; ok {
			continue
		}
		c.ledgers[l.ItemID] = l
		c.itemOrder = append(c.itemOrder, l.ItemID)
	}
	return c
}

// ExcludeCancelled takes the given items out of every owed amount. Their
// ledgers stay attached and readable.
func (c *Coordinator) ExcludeCancelled(itemIDs ...uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range itemIDs {
		c.cancelled[id] = true
	}
}

// GroupOrderID returns the group order the coordinator serves.
func (c *Coordinator) GroupOrderID() uuid.UUID { return c.groupOrderID }

// Attach creates a DEPOSIT-stage ledger for every item, using the item's
// final amount as the total payable. If any item is rejected nothing is attached.
func (c *Coordinator) Attach(items []order.Item) ([]*escrow.Ledger, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	created := make([]*escrow.Ledger, 0, len(items))
	seen := make(map[uuid.UUID]bool, len(items))
	for i, it := range items {
		if _, ok := c.ledgers[it.ID]; ok || seen[it.ID] {
			return nil, fmt.Errorf("item[%d] %s: %w", i, it.ID, ErrAlreadyAttached)
		}
		if it.GroupOrderID != nil && *it.GroupOrderID != c.groupOrderID {
			return nil, fmt.Errorf("item[%d] %s: %w", i, it.ID, ErrForeignItem)
		}
		seen[it.ID] = true

		l, err := escrow.New(it.ID, it.FinalAmount)
		if err != nil {
			return nil, fmt.Errorf("item[%d]: %w", i, err)
		}
		created = append(created, l)
	}

	out := make([]*escrow.Ledger, len(created))
	for i, l := range created {
		c.ledgers[l.ItemID] = l
		c.itemOrder = append(c.itemOrder, l.ItemID)
		out[i] = l.Clone()
	}
	return out, nil
}

// Ledger returns a copy of the ledger for itemID.
func (c *Coordinator) Ledger(itemID uuid.UUID) (*escrow.Ledger, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	l, ok := c.ledgers[itemID]
	if !ok {
		return nil, fmt.Errorf("item %s: %w", itemID, ErrUnknownItem)
	}
	return l.Clone(), nil
}

// Ledgers returns copies of all ledgers in attach order.
func (c *Coordinator) Ledgers() []*escrow.Ledger {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]*escrow.Ledger, 0, len(c.itemOrder))
	for _, id := range c.itemOrder {
		out = append(out, c.ledgers[id].Clone())
	}
	return out
}

// Breakdown returns what each selected item owes at stage: its own remaining
// share, never an even split across the selection.
func (c *Coordinator) Breakdown(itemIDs []uuid.UUID, stage enum.EscrowStage) ([]Line, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.breakdown(itemIDs, stage)
}

// Quote returns the exact amount a group payment for itemIDs at stage must carry.
func (c *Coordinator) Quote(itemIDs []uuid.UUID, stage enum.EscrowStage) (decimal.Decimal, error) {
	lines, err := c.Breakdown(itemIDs, stage)
	if err != nil {
		return decimal.Zero, err
	}
	return sumLines(lines), nil
}

func (c *Coordinator) breakdown(itemIDs []uuid.UUID, stage enum.EscrowStage) ([]Line, error) {
	if len(itemIDs) == 0 {
		return nil, ErrNoItems
	}
	seen := make(map[uuid.UUID]bool, len(itemIDs))
	lines := make([]Line, 0, len(itemIDs))
	due := decimal.Zero
	for i, id := range itemIDs {
		if seen[id] {
			return nil, fmt.Errorf("item[%d] %s: %w", i, id, ErrDuplicateItem)
		}
		seen[id] = true

		l, ok := c.ledgers[id]
		if !ok {
			return nil, fmt.Errorf("item[%d] %s: %w", i, id, ErrUnknownItem)
		}
		if l.Stage != stage || l.Released() {
			return nil, &escrow.InvalidStageError{ItemID: id, Op: "quote", Target: stage, Current: l.Stage}
		}
		r := l.Remaining(stage)
		lines = append(lines, Line{ItemID: id, Amount: r})
		due = due.Add(r)
	}
	if !due.IsPositive() {
		return nil, fmt.Errorf("group order %s: %w", c.groupOrderID, ErrNothingDue)
	}
	return lines, nil
}

// RecordGroupPayment applies one payment across the selected items at stage.
// amount must equal Quote(itemIDs, stage) exactly. Each item's ledger gets its
// own remaining share; if any ledger rejects its part none are changed.
func (c *Coordinator) RecordGroupPayment(itemIDs []uuid.UUID, amount decimal.Decimal,
	stage enum.EscrowStage, payerID uuid.UUID) ([]*escrow.Ledger, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.checkPayer(payerID, itemIDs); err != nil {
		return nil, err
	}
	lines, err := c.breakdown(itemIDs, stage)
	if err != nil {
		return nil, err
	}
	expected := sumLines(lines)
	if !amount.Equal(expected) {
		return nil, &PaymentMismatchError{
			GroupOrderID: c.groupOrderID,
			Stage:        stage,
			Expected:     expected,
			Actual:       amount,
		}
	}

	updated := make([]*escrow.Ledger, 0, len(lines))
	for _, ln := range lines {
		l := c.ledgers[ln.ItemID].Clone()
		if ln.Amount.IsPositive() {
			if err := l.RecordPayment(stage, ln.Amount); err != nil {
				return nil, err
			}
		}
		updated = append(updated, l)
	}

	out := make([]*escrow.Ledger, len(updated))
	for i, l := range updated {
		c.ledgers[l.ItemID] = l
		out[i] = l.Clone()
	}
	return out, nil
}

func (c *Coordinator) checkPayer(payerID uuid.UUID, itemIDs []uuid.UUID) error {
	r, ok := c.responsibility(payerID)
	if !ok {
		return fmt.Errorf("payer %s: %w", payerID, ErrUnknownPayer)
	}
	owned := make(map[uuid.UUID]bool, len(r.ItemIDs))
	for _, id := range r.ItemIDs {
		owned[id] = true
	}
	for _, id := range itemIDs {
		if !owned[id] {
			return fmt.Errorf("payer %s, item %s: %w", payerID, id, ErrPayerNotResponsible)
		}
	}
	return nil
}

// responsibility finds the stored record for payerID. In SINGLE mode the
// primary payer is responsible for every item.
func (c *Coordinator) responsibility(payerID uuid.UUID) (Responsibility, bool) {
	if c.mode == enum.PaymentModeSingle {
		if payerID != c.primaryPayer {
			return Responsibility{}, false
		}
		r := Responsibility{PayerID: payerID, ItemIDs: append([]uuid.UUID(nil), c.itemOrder...)}
		for _, p := range c.payers {
			if p.PayerID == payerID {
				r.Name = p.Name
				r.DueDate = p.DueDate
			}
		}
		return r, true
	}
	for _, p := range c.payers {
		if p.PayerID == payerID {
			return p, true
		}
	}
	return Responsibility{}, false
}

// Summary aggregates every attached ledger.
func (c *Coordinator) Summary() Summary {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Summary{
		TotalAmount:        decimal.Zero,
		PaidAmount:         decimal.Zero,
		RefundableAmount:   decimal.Zero,
		ProgressPercentage: decimal.Zero,
	}
	for _, id := range c.itemOrder {
		l := c.ledgers[id]
		if c.cancelled[id] {
			s.RefundableAmount = s.RefundableAmount.Add(l.TotalPaid())
			continue
		}
		s.TotalAmount = s.TotalAmount.Add(l.Total)
		s.PaidAmount = s.PaidAmount.Add(l.TotalPaid())
	}
	s.OutstandingAmount = s.TotalAmount.Sub(s.PaidAmount)
	if s.TotalAmount.IsPositive() {
		s.ProgressPercentage = s.PaidAmount.Mul(hundred).Div(s.TotalAmount).Round(2)
	}
	return s
}

// PayerSummary recomputes payerID's responsibility from the current ledgers.
func (c *Coordinator) PayerSummary(payerID uuid.UUID, now time.Time) (Responsibility, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	r, ok := c.responsibility(payerID)
	if !ok {
		return Responsibility{}, fmt.Errorf("payer %s: %w", payerID, ErrUnknownPayer)
	}
	return c.derive(r, now), nil
}

// PayerSummaries returns every payer's recomputed responsibility.
func (c *Coordinator) PayerSummaries(now time.Time) []Responsibility {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.mode == enum.PaymentModeSingle {
		r, _ := c.responsibility(c.primaryPayer)
		return []Responsibility{c.derive(r, now)}
	}
	out := make([]Responsibility, 0, len(c.payers))
	for _, p := range c.payers {
		out = append(out, c.derive(p, now))
	}
	return out
}

func (c *Coordinator) derive(r Responsibility, now time.Time) Responsibility {
	r.ItemIDs = append([]uuid.UUID(nil), r.ItemIDs...)
	r.ResponsibleAmount = decimal.Zero
	r.PaidAmount = decimal.Zero
	r.RefundableAmount = decimal.Zero
	for _, id := range r.ItemIDs {
		l, ok := c.ledgers[id]
		if !ok {
			continue
		}
		if c.cancelled[id] {
			r.RefundableAmount = r.RefundableAmount.Add(l.TotalPaid())
			continue
		}
		r.ResponsibleAmount = r.ResponsibleAmount.Add(l.Total)
		r.PaidAmount = r.PaidAmount.Add(l.TotalPaid())
	}
	r.OutstandingAmount = r.ResponsibleAmount.Sub(r.PaidAmount)
	r.Status = statusFor(r, now)
	return r
}

func statusFor(r Responsibility, now time.Time) enum.PayerStatus {
	switch {
	case !r.OutstandingAmount.IsPositive():
		return enum.PayerStatusCompleted
	case r.DueDate != nil && now.After(*r.DueDate):
		return enum.PayerStatusOverdue
	case r.PaidAmount.IsPositive():
		return enum.PayerStatusPartial
	}
	return enum.PayerStatusPending
}

func sumLines(lines []Line) decimal.Decimal {
	total := decimal.Zero
	for _, ln := range lines {
		total = total.Add(ln.Amount)
	}
	return total
}
