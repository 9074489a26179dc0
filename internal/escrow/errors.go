package escrow

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tailorly/api/internal/enum"
)

// InvalidStageError is returned when an operation targets a stage other than
// the one the ledger is in, or when the ledger is already RELEASED.
type InvalidStageError struct {
	ItemID  uuid.UUID
	Op      string
	Target  enum.EscrowStage
	Current enum.EscrowStage
}

func (e *InvalidStageError) Error() string {
	if e.Current == enum.StageReleased {
		return fmt.Sprintf("item %s: cannot %s ledger: escrow already released", e.ItemID, e.Op)
	}
	return fmt.Sprintf("item %s: cannot %s stage %s: ledger is at %s", e.ItemID, e.Op, e.Target, e.Current)
}

// OverpaymentError is returned when a payment would push a stage past its share.
type OverpaymentError struct {
	ItemID    uuid.UUID
	Stage     enum.EscrowStage
	Required  decimal.Decimal
	Paid      decimal.Decimal
	Attempted decimal.Decimal
}

func (e *OverpaymentError) Error() string {
	return fmt.Sprintf("item %s: payment of %s at %s exceeds share: required %s, already paid %s, remaining %s",
		e.ItemID, e.Attempted.StringFixed(2), e.Stage, e.Required.StringFixed(2),
		e.Paid.StringFixed(2), e.Required.Sub(e.Paid).StringFixed(2))
}

// StageNotReadyError is returned when advancing a stage whose share is not fully paid.
type StageNotReadyError struct {
	ItemID   uuid.UUID
	Stage    enum.EscrowStage
	Required decimal.Decimal
	Paid     decimal.Decimal
}

func (e *StageNotReadyError) Error() string {
	return fmt.Sprintf("item %s: stage %s not fully paid: required %s, paid %s",
		e.ItemID, e.Stage, e.Required.StringFixed(2), e.Paid.StringFixed(2))
}
