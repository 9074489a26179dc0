// Package gateway reaches the external payment processor. The service only
// knows the abstract contract: attempt a charge, get back success and a
// reference, or a failure.
package gateway

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ErrUnavailable wraps transport failures and unexpected gateway responses.
var ErrUnavailable = errors.New("payment gateway unavailable")

// ChargeResult is the outcome of a successful charge.
type ChargeResult struct {
	Reference string
}

// Charger attempts a single charge against a payer.
type Charger interface {
	AttemptCharge(ctx context.Context, payerID uuid.UUID, amount decimal.Decimal, method string) (ChargeResult, error)
}

// DeclinedError is returned when the gateway answered but refused the charge.
type DeclinedError struct {
	PayerID   uuid.UUID
	Amount    decimal.Decimal
	Reason    string
	Reference string
}

func (e *DeclinedError) Error() string {
	msg := fmt.Sprintf("charge of %s for payer %s declined", e.Amount.StringFixed(2), e.PayerID)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

// Simulator approves every charge. Used when no gateway URL is configured.
type Simulator struct{}

var _ Charger = Simulator{}

func (Simulator) AttemptCharge(ctx context.Context, payerID uuid.UUID, amount decimal.Decimal, method string) (ChargeResult, error) {
	if err := ctx.Err(); err != nil {
		return ChargeResult{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return ChargeResult{Reference: "sim_" + uuid.NewString()}, nil
}
