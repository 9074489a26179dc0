// Package events publishes group order domain events after a mutation has
// been committed. Delivery is best effort: callers log failures and move on.
package events

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Event types, also used as routing keys.
const (
	GroupOrderCreated    = "group_order.created"
	PaymentRecorded      = "payment.recorded"
	StageAdvanced        = "stage.advanced"
	LedgerDisputed       = "ledger.disputed"
	LedgerDisputeCleared = "ledger.dispute_cleared"
	ItemStatusChanged    = "item.status_changed"
	ScheduleProposed     = "schedule.proposed"
	ScheduleStatusChange = "schedule.status_changed"
	ScheduleDelivered    = "schedule.delivered"
)

// Event is the envelope sent to RabbitMQ and WebSocket subscribers.
type Event struct {
	Type         string    `json:"type"`
	GroupOrderID uuid.UUID `json:"group_order_id"`
	Actor        string    `json:"actor,omitempty"`
	OccurredAt   time.Time `json:"occurred_at"`
	Data         any       `json:"data,omitempty"`
}

// New stamps an event with the current time.
func New(typ string, groupOrderID uuid.UUID, actor string, data any) Event {
	return Event{
		Type:         typ,
		GroupOrderID: groupOrderID,
		Actor:        actor,
		OccurredAt:   time.Now().UTC(),
		Data:         data,
	}
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Multi fans an event out to every publisher, returning the joined errors.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, e Event) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Discard drops every event.
type Discard struct{}

func (Discard) Publish(context.Context, Event) error { return nil }
