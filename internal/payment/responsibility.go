package payment

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tailorly/api/internal/enum"
)

// Responsibility maps a payer to the items they pay for. Only PayerID, Name,
// ItemIDs and DueDate are stored; the amounts and Status are derived from
// the ledgers every time. Cancelled items owe nothing: what was paid on them
// is reported as RefundableAmount instead of PaidAmount.
type Responsibility struct {
	PayerID           uuid.UUID
	Name              string
	ItemIDs           []uuid.UUID
	DueDate           *time.Time
	ResponsibleAmount decimal.Decimal
	PaidAmount        decimal.Decimal
	OutstandingAmount decimal.Decimal
	RefundableAmount  decimal.Decimal
	Status            enum.PayerStatus
}

// ValidateResponsibilities checks a SPLIT group order's payer assignment:
// every item belongs to exactly one payer and every listed item exists.
func ValidateResponsibilities(itemIDs []uuid.UUID, payers []Responsibility) error {
	if len(payers) == 0 {
		return ErrNoPayers
	}
	known := make(map[uuid.UUID]bool, len(itemIDs))
	for _, id := range itemIDs {
		known[id] = true
	}

	owner := make(map[uuid.UUID]uuid.UUID, len(itemIDs))
	listed := make(map[uuid.UUID]bool, len(payers))
	for i, p := range payers {
		if p.PayerID == uuid.Nil {
			return fmt.Errorf("payer[%d]: %w", i, ErrUnknownPayer)
		}
		if listed[p.PayerID] {
			return fmt.Errorf("payer[%d] %s: %w", i, p.PayerID, ErrDuplicatePayer)
		}
		listed[p.PayerID] = true
		if p.Name == "" {
			return fmt.Errorf("payer[%d]: %w", i, ErrMissingPayerName)
		}
		for _, id := range p.ItemIDs {
			if !known[id] {
				return fmt.Errorf("payer[%d] item %s: %w", i, id, ErrUnknownItem)
			}
			if _, taken := owner[id]; taken {
				return fmt.Errorf("payer[%d] item %s: %w", i, id, ErrItemAssignedTwice)
			}
			owner[id] = p.PayerID
		}
	}
	for _, id := range itemIDs {
		if _, ok := owner[id]; !ok {
			return fmt.Errorf("item %s: %w", id, ErrUnassignedItem)
		}
	}
	return nil
}

// Record is the audit row written for each item a payment touched.
type Record struct {
	ID           uuid.UUID
	PaymentID    uuid.UUID
	GroupOrderID uuid.UUID
	ItemID       uuid.UUID
	PayerID      uuid.UUID
	Stage        enum.EscrowStage
	Amount       decimal.Decimal
	Method       string
	Reference    string
	RecordedAt   time.Time
}

// NewRecords expands one payment into per-item audit rows. Zero lines are skipped.
func NewRecords(paymentID, groupOrderID, payerID uuid.UUID, stage enum.EscrowStage,
	method, reference string, at time.Time, lines []Line) []Record {
	out := make([]Record, 0, len(lines))
	for _, ln := range lines {
		if !ln.Amount.IsPositive() {
			continue
		}
		out = append(out, Record{
			ID:           uuid.New(),
			PaymentID:    paymentID,
			GroupOrderID: groupOrderID,
			ItemID:       ln.ItemID,
			PayerID:      payerID,
			Stage:        stage,
			Amount:       ln.Amount,
			Method:       method,
			Reference:    reference,
			RecordedAt:   at,
		})
	}
	return out
}
