// Package escrow tracks the staged release of an order item's funds.
//
// Every item is paid in three fixed shares: 25% deposit, 50% at fitting and
// the remaining 25% as the final payment. A ledger moves DEPOSIT → FITTING →
// FINAL → RELEASED and never goes back. Once RELEASED it is immutable.
package escrow

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tailorly/api/internal/enum"
)

// Errors returned by ledger operations.
var (
	ErrInvalidAmount        = errors.New("amount must be positive with at most 2 decimal places")
	ErrInvalidTotal         = errors.New("total payable must be non-negative with at most 2 decimal places")
	ErrDisputed             = errors.New("ledger is disputed")
	ErrNotDisputed          = errors.New("ledger is not disputed")
	ErrDisputeActorMismatch = errors.New("dispute can only be cleared by the actor that raised it")
)

var (
	hundred = decimal.NewFromInt(100)

	weights = map[enum.EscrowStage]decimal.Decimal{
		enum.StageDeposit: decimal.NewFromInt(25),
		enum.StageFitting: decimal.NewFromInt(50),
		enum.StageFinal:   decimal.NewFromInt(25),
	}
)

// Weight returns the percentage of the total due at stage. RELEASED carries no weight.
func Weight(stage enum.EscrowStage) decimal.Decimal {
	if w, ok := weights[stage]; ok {
		return w
	}
	return decimal.Zero
}

// Transition is one entry of a ledger's stage history.
type Transition struct {
	Stage enum.EscrowStage `json:"stage"`
	At    time.Time        `json:"at"`
	Actor string           `json:"actor"`
}

// Ledger is the escrow state of one order item.
type Ledger struct {
	ItemID      uuid.UUID
	Total       decimal.Decimal
	DepositPaid decimal.Decimal
	FittingPaid decimal.Decimal
	FinalPaid   decimal.Decimal
	Stage       enum.EscrowStage
	Disputed    bool
	DisputedBy  string
	History     []Transition
	Version     int64
}

// New creates a ledger in the DEPOSIT stage for an item with the given
// post-discount total.
func New(itemID uuid.UUID, total decimal.Decimal) (*Ledger, error) {
	if total.IsNegative() || !isCents(total) {
		return nil, fmt.Errorf("item %s: %w", itemID, ErrInvalidTotal)
	}
	return &Ledger{
		ItemID:      itemID,
		Total:       total,
		DepositPaid: decimal.Zero,
		FittingPaid: decimal.Zero,
		FinalPaid:   decimal.Zero,
		Stage:       enum.StageDeposit,
	}, nil
}

// Required returns the share of the total that must be paid at stage.
// The final share absorbs rounding so the three shares always sum to Total.
func (l *Ledger) Required(stage enum.EscrowStage) decimal.Decimal {
	deposit := l.Total.Mul(Weight(enum.StageDeposit)).Div(hundred).Round(2)
	fitting := l.Total.Mul(Weight(enum.StageFitting)).Div(hundred).Round(2)
	switch stage {
	case enum.StageDeposit:
		return deposit
	case enum.StageFitting:
		return fitting
	case enum.StageFinal:
		return l.Total.Sub(deposit).Sub(fitting)
	}
	return decimal.Zero
}

// PaidAt returns the amount recorded against stage.
func (l *Ledger) PaidAt(stage enum.EscrowStage) decimal.Decimal {
	switch stage {
	case enum.StageDeposit:
		return l.DepositPaid
	case enum.StageFitting:
		return l.FittingPaid
	case enum.StageFinal:
		return l.FinalPaid
	}
	return decimal.Zero
}

// Remaining returns what is still owed at stage.
func (l *Ledger) Remaining(stage enum.EscrowStage) decimal.Decimal {
	r := l.Required(stage).Sub(l.PaidAt(stage))
	if r.IsNegative() {
		return decimal.Zero
	}
	return r
}

// TotalPaid is the sum of all stage payments.
func (l *Ledger) TotalPaid() decimal.Decimal {
	return l.DepositPaid.Add(l.FittingPaid).Add(l.FinalPaid)
}

// Outstanding is the part of Total not yet paid.
func (l *Ledger) Outstanding() decimal.Decimal {
	return l.Total.Sub(l.TotalPaid())
}

// StageComplete reports whether the current stage's share is paid in full.
func (l *Ledger) StageComplete() bool {
	if l.Stage == enum.StageReleased {
		return true
	}
	return l.PaidAt(l.Stage).Equal(l.Required(l.Stage))
}

// Released reports whether the ledger reached its terminal stage.
func (l *Ledger) Released() bool { return l.Stage == enum.StageReleased }

// RecordPayment adds amount to the current stage. Payments against any other
// stage, and payments that would exceed the stage share, are rejected and
// leave the ledger unchanged.
func (l *Ledger) RecordPayment(stage enum.EscrowStage, amount decimal.Decimal) error {
	if !amount.IsPositive() || !isCents(amount) {
		return fmt.Errorf("item %s: %w", l.ItemID, ErrInvalidAmount)
	}
	if stage != l.Stage || l.Stage == enum.StageReleased {
		return &InvalidStageError{ItemID: l.ItemID, Op: "record payment for", Target: stage, Current: l.Stage}
	}

	required := l.Required(stage)
	paid := l.PaidAt(stage)
	if paid.Add(amount).GreaterThan(required) {
		return &OverpaymentError{
			ItemID:    l.ItemID,
			Stage:     stage,
			Required:  required,
			Paid:      paid,
			Attempted: amount,
		}
	}

	switch stage {
	case enum.StageDeposit:
		l.DepositPaid = paid.Add(amount)
	case enum.StageFitting:
		l.FittingPaid = paid.Add(amount)
	case enum.StageFinal:
		l.FinalPaid = paid.Add(amount)
	}
	return nil
}

// AdvanceStage moves the ledger to the next stage once the current share is
// fully paid, recording who did it and when.
func (l *Ledger) AdvanceStage(actor string, at time.Time) error {
	next, ok := l.Stage.Next()
	if !ok {
		return &InvalidStageError{ItemID: l.ItemID, Op: "advance", Target: l.Stage, Current: l.Stage}
	}
	if l.Disputed {
		return fmt.Errorf("item %s: %w", l.ItemID, ErrDisputed)
	}
	if !l.StageComplete() {
		return &StageNotReadyError{
			ItemID:   l.ItemID,
			Stage:    l.Stage,
			Required: l.Required(l.Stage),
			Paid:     l.PaidAt(l.Stage),
		}
	}

	l.Stage = next
	l.History = append(l.History, Transition{Stage: next, At: at, Actor: actor})
	return nil
}

// MarkDisputed raises the dispute flag. Payments remain possible but the
// stage cannot advance until the same actor clears it.
func (l *Ledger) MarkDisputed(actor string) error {
	if l.Released() {
		return &InvalidStageError{ItemID: l.ItemID, Op: "dispute", Target: l.Stage, Current: l.Stage}
	}
	if l.Disputed {
		return fmt.Errorf("item %s: %w", l.ItemID, ErrDisputed)
	}
	l.Disputed = true
	l.DisputedBy = actor
	return nil
}

// ClearDispute lowers the dispute flag.
func (l *Ledger) ClearDispute(actor string) error {
	if !l.Disputed {
		return fmt.Errorf("item %s: %w", l.ItemID, ErrNotDisputed)
	}
	if l.DisputedBy != actor {
		return fmt.Errorf("item %s: %w", l.ItemID, ErrDisputeActorMismatch)
	}
	l.Disputed = false
	l.DisputedBy = ""
	return nil
}

// ProgressPercentage is the share of the escrow lifecycle completed, with
// partial credit for the current stage. It is 100 once RELEASED.
func (l *Ledger) ProgressPercentage() decimal.Decimal {
	if l.Stage == enum.StageReleased {
		return hundred
	}

	progress := decimal.Zero
	for _, st := range enum.EscrowStages {
		if st == l.Stage {
			break
		}
		progress = progress.Add(Weight(st))
	}

	required := l.Required(l.Stage)
	if required.IsZero() {
		progress = progress.Add(Weight(l.Stage))
	} else {
		progress = progress.Add(Weight(l.Stage).Mul(l.PaidAt(l.Stage)).Div(required))
	}
	return progress.Round(2)
}

// Clone returns a deep copy, used to apply multi-ledger changes all-or-nothing.
func (l *Ledger) Clone() *Ledger {
	c := *l
	c.History = append([]Transition(nil), l.History...)
	return &c
}

func isCents(d decimal.Decimal) bool {
	return d.Equal(d.Round(2))
}
