package service

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tailorly/api/internal/enum"
	"github.com/tailorly/api/internal/escrow"
	"github.com/tailorly/api/internal/events"
	"github.com/tailorly/api/internal/gateway"
	"github.com/tailorly/api/internal/order"
	"github.com/tailorly/api/internal/payment"
)

// RecordPaymentRequest is one payer paying the current stage of several items.
type RecordPaymentRequest struct {
	GroupOrderID   uuid.UUID
	ItemIDs        []uuid.UUID
	Amount         decimal.Decimal
	Stage          enum.EscrowStage
	PayerID        uuid.UUID
	Method         string
	IdempotencyKey string
	Actor          string
}

// PaymentResult is what a recorded payment changed.
type PaymentResult struct {
	PaymentID uuid.UUID
	Reference string
	Lines     []payment.Line
	Ledgers   []*escrow.Ledger
	Promoted  []uuid.UUID
	Summary   payment.Summary
}

// Quote returns what each selected item owes at stage and their sum, the
// exact amount RecordPayment will accept.
func (s *GroupOrderService) Quote(ctx context.Context, groupOrderID uuid.UUID, ids []uuid.UUID, stage enum.EscrowStage) ([]payment.Line, decimal.Decimal, error) {
	if !stage.Valid() {
		return nil, decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidStage, stage)
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	a, err := s.loadAll(ctx, groupOrderID)
	if err != nil {
		return nil, decimal.Zero, fmt.Errorf("load group order %s: %w", groupOrderID, err)
	}
	lines, err := a.coordinator().Breakdown(ids, stage)
	if err != nil {
		return nil, decimal.Zero, err
	}
	total := decimal.Zero
	for _, ln := range lines {
		total = total.Add(ln.Amount)
	}
	return lines, total, nil
}

// RecordPayment charges the payer and applies the payment to every selected
// item's ledger at once. The amount must equal the quote to the cent.
//
// The idempotency key is reserved before anything else and only released when
// no money moved: validation failures and declines. Once the gateway has been
// asked to charge, the key stays taken.
func (s *GroupOrderService) RecordPayment(ctx context.Context, req RecordPaymentRequest) (*PaymentResult, error) {
	if req.IdempotencyKey == "" {
		return nil, ErrIdempotencyKeyRequired
	}
	if !enum.ValidPaymentMethod(req.Method) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidMethod, req.Method)
	}
	if !req.Stage.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStage, req.Stage)
	}

	ok, err := s.cache.ReservePayment(ctx, req.GroupOrderID, req.IdempotencyKey)
	if err != nil {
		return nil, fmt.Errorf("reserve idempotency key: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("key %q: %w", req.IdempotencyKey, ErrDuplicatePayment)
	}
	release := func() {
		if err := s.cache.ReleasePayment(ctx, req.GroupOrderID, req.IdempotencyKey); err != nil {
			log.Printf("ERROR: release idempotency key %q: %v", req.IdempotencyKey, err)
		}
	}

	// Dry run against the current state so nothing is charged for a
	// payment the ledgers would refuse.
	lines, err := s.checkPayment(ctx, req)
	if err != nil {
		release()
		return nil, err
	}

	charge, err := s.charger.AttemptCharge(ctx, req.PayerID, req.Amount, req.Method)
	if err != nil {
		var declined *gateway.DeclinedError
		if errors.As(err, &declined) {
			release()
		}
		return nil, err
	}

	result := &PaymentResult{PaymentID: uuid.New(), Reference: charge.Reference, Lines: lines}
	var promoted []order.Item
	err = s.inTx(ctx, func(ctx context.Context, st Store) error {
		a, err := lockAll(ctx, st, req.GroupOrderID)
		if err != nil {
			return err
		}
		if err := checkNotCancelled(a.items, req.ItemIDs); err != nil {
			return err
		}
		coord := a.coordinator()
		if result.Lines, err = coord.Breakdown(req.ItemIDs, req.Stage); err != nil {
			return err
		}
		updated, err := coord.RecordGroupPayment(req.ItemIDs, req.Amount, req.Stage, req.PayerID)
		if err != nil {
			return err
		}
		if err := st.SaveLedgers(ctx, updated); err != nil {
			return err
		}
		records := payment.NewRecords(result.PaymentID, req.GroupOrderID, req.PayerID, req.Stage,
			req.Method, charge.Reference, s.now(), result.Lines)
		if err := st.InsertPaymentRecords(ctx, records); err != nil {
			return err
		}

		promoted = promoteDeposits(a.items, updated)
		if len(promoted) > 0 {
			if err := st.SaveOrderItems(ctx, promoted); err != nil {
				return err
			}
		}
		result.Ledgers = updated
		result.Summary = coord.Summary()
		return nil
	})
	if err != nil {
		log.Printf("ERROR: payment %s (gateway ref %s) for group order %s charged but not applied: %v",
			result.PaymentID, charge.Reference, req.GroupOrderID, err)
		return nil, fmt.Errorf("%w: reference %s: %w", ErrPaymentNotApplied, charge.Reference, err)
	}

	evts := []events.Event{events.New(events.PaymentRecorded, req.GroupOrderID, req.Actor, map[string]any{
		"payment_id": result.PaymentID,
		"payer_id":   req.PayerID,
		"stage":      req.Stage,
		"amount":     req.Amount.StringFixed(2),
		"reference":  charge.Reference,
		"lines":      result.Lines,
	})}
	for _, it := range promoted {
		result.Promoted = append(result.Promoted, it.ID)
		evts = append(evts, itemStatusEvent(req.GroupOrderID, req.Actor, it))
	}
	s.committed(ctx, req.GroupOrderID, evts...)
	return result, nil
}

// checkPayment validates req against freshly loaded state without writing.
func (s *GroupOrderService) checkPayment(ctx context.Context, req RecordPaymentRequest) ([]payment.Line, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	a, err := s.loadAll(ctx, req.GroupOrderID)
	if err != nil {
		return nil, fmt.Errorf("load group order %s: %w", req.GroupOrderID, err)
	}
	if err := checkNotCancelled(a.items, req.ItemIDs); err != nil {
		return nil, err
	}
	coord := a.coordinator()
	lines, err := coord.Breakdown(req.ItemIDs, req.Stage)
	if err != nil {
		return nil, err
	}
	if _, err := coord.RecordGroupPayment(req.ItemIDs, req.Amount, req.Stage, req.PayerID); err != nil {
		return nil, err
	}
	return lines, nil
}

func checkNotCancelled(items []order.Item, ids []uuid.UUID) error {
	for _, id := range ids {
		i, err := findItem(items, id)
		if err != nil {
			continue // the coordinator reports unknown items
		}
		if items[i].Status == enum.ItemStatusCancelled {
			return fmt.Errorf("item %s: %w", id, ErrItemCancelled)
		}
	}
	return nil
}

// promoteDeposits moves PENDING items whose deposit is now fully paid to
// DEPOSIT_PAID and returns the changed items.
func promoteDeposits(items []order.Item, ledgers []*escrow.Ledger) []order.Item {
	var out []order.Item
	for _, l := range ledgers {
		if l.Stage != enum.StageDeposit || !l.StageComplete() {
			continue
		}
		i, err := findItem(items, l.ItemID)
		if err != nil || items[i].Status != enum.ItemStatusPending {
			continue
		}
		it := items[i].Clone()
		if err := it.TransitionTo(enum.ItemStatusDepositPaid); err != nil {
			continue
		}
		out = append(out, it)
	}
	return out
}

func itemStatusEvent(groupOrderID uuid.UUID, actor string, it order.Item) events.Event {
	return events.New(events.ItemStatusChanged, groupOrderID, actor, map[string]any{
		"item_id": it.ID,
		"status":  it.Status,
	})
}
