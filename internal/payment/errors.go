package payment

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tailorly/api/internal/enum"
)

// Errors returned by the coordinator.
var (
	ErrAlreadyAttached      = errors.New("item already has an escrow ledger")
	ErrForeignItem          = errors.New("item belongs to another group order")
	ErrUnknownItem          = errors.New("item is not attached to this group order")
	ErrDuplicateItem        = errors.New("item listed more than once")
	ErrNoItems              = errors.New("at least one item is required")
	ErrNothingDue           = errors.New("nothing is due for the selected items at this stage")
	ErrPayerNotResponsible  = errors.New("payer is not responsible for the item")
	ErrUnknownPayer         = errors.New("payer is not part of this group order")
	ErrNoPayers             = errors.New("split payment requires at least one payer")
	ErrDuplicatePayer       = errors.New("payer listed more than once")
	ErrUnassignedItem       = errors.New("item has no responsible payer")
	ErrItemAssignedTwice    = errors.New("item is assigned to more than one payer")
	ErrMissingPayerName     = errors.New("payer name is required")
	ErrPrimaryPayerRequired = errors.New("primary payer is required")
)

// PaymentMismatchError is returned when a group payment does not reconcile
// to the penny with what the selected items owe at the stage.
type PaymentMismatchError struct {
	GroupOrderID uuid.UUID
	Stage        enum.EscrowStage
	Expected     decimal.Decimal
	Actual       decimal.Decimal
}

func (e *PaymentMismatchError) Error() string {
	return fmt.Sprintf("group order %s: payment of %s at %s does not match amount due %s",
		e.GroupOrderID, e.Actual.StringFixed(2), e.Stage, e.Expected.StringFixed(2))
}
