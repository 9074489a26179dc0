// Package service composes discount, escrow, payment and delivery rules into
// group order operations and persists every mutation through the store.
package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/tailorly/api/internal/cache"
	"github.com/tailorly/api/internal/delivery"
	"github.com/tailorly/api/internal/escrow"
	"github.com/tailorly/api/internal/events"
	"github.com/tailorly/api/internal/gateway"
	"github.com/tailorly/api/internal/order"
	"github.com/tailorly/api/internal/payment"
	"github.com/tailorly/api/internal/store"
)

const defaultTimeout = 5 * time.Second

// Errors returned by the group order service.
var (
	ErrMissingName             = errors.New("name is required")
	ErrInvalidPaymentMode      = errors.New("invalid payment_mode")
	ErrInvalidDeliveryStrategy = errors.New("invalid delivery_strategy")
	ErrUnknownPriority         = errors.New("payer references an unknown delivery priority")
	ErrPayersNotAllowed        = errors.New("payers can only be listed for SPLIT group orders")
	ErrItemNotFound            = errors.New("item not found in group order")
	ErrItemCancelled           = errors.New("item is cancelled")
	ErrInvalidStage            = errors.New("invalid stage")
	ErrInvalidMethod           = errors.New("invalid payment method")
	ErrIdempotencyKeyRequired  = errors.New("idempotency key is required")
	ErrDuplicatePayment        = errors.New("payment with this idempotency key was already submitted")
	ErrPaymentNotApplied       = errors.New("charge succeeded but the payment could not be applied")
)

// TxBeginner starts a new database transaction.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Store defines the persistence methods the service needs.
// Satisfied by *store.Queries.
type Store interface {
	CreateGroupOrder(ctx context.Context, g *order.GroupOrder) error
	LoadGroupOrder(ctx context.Context, id uuid.UUID) (order.GroupOrder, error)
	LockGroupOrder(ctx context.Context, id uuid.UUID) (order.GroupOrder, error)

	CreateOrderItems(ctx context.Context, items []order.Item) error
	LoadOrderItems(ctx context.Context, groupOrderID uuid.UUID) ([]order.Item, error)
	SaveOrderItems(ctx context.Context, items []order.Item) error

	CreateLedgers(ctx context.Context, ledgers []*escrow.Ledger) error
	LoadLedger(ctx context.Context, itemID uuid.UUID) (*escrow.Ledger, error)
	LoadLedgers(ctx context.Context, groupOrderID uuid.UUID) ([]*escrow.Ledger, error)
	SaveLedgers(ctx context.Context, ledgers []*escrow.Ledger) error

	CreateResponsibilities(ctx context.Context, groupOrderID uuid.UUID, payers []payment.Responsibility) error
	LoadResponsibilities(ctx context.Context, groupOrderID uuid.UUID) ([]payment.Responsibility, error)
	InsertPaymentRecords(ctx context.Context, records []payment.Record) error
	ListPaymentRecords(ctx context.Context, groupOrderID uuid.UUID) ([]payment.Record, error)

	CreateSchedule(ctx context.Context, s *delivery.Schedule) error
	LoadSchedules(ctx context.Context, groupOrderID uuid.UUID) ([]delivery.Schedule, error)
	SaveSchedule(ctx context.Context, s *delivery.Schedule) error
}

// NewStore creates a Store from a DBTX (pool or tx).
type NewStore func(db store.DBTX) Store

// Cache holds snapshots and payment idempotency keys.
// Satisfied by *cache.Client and *cache.Memory.
type Cache interface {
	GetSnapshot(ctx context.Context, groupOrderID uuid.UUID, dst any) (bool, error)
	SetSnapshot(ctx context.Context, groupOrderID uuid.UUID, v any) error
	InvalidateSnapshot(ctx context.Context, groupOrderID uuid.UUID) error
	ReservePayment(ctx context.Context, groupOrderID uuid.UUID, key string) (bool, error)
	ReleasePayment(ctx context.Context, groupOrderID uuid.UUID, key string) error
}

// GroupOrderService is stateless: every call loads what it needs, delegates
// to the domain packages and writes back inside one transaction.
type GroupOrderService struct {
	store        Store
	pool         TxBeginner
	newStore     NewStore
	charger      gateway.Charger
	cache        Cache
	publisher    events.Publisher
	timeout      time.Duration
	deliveryGate bool
	now          func() time.Time
}

// Option configures a GroupOrderService.
type Option func(*GroupOrderService)

func WithCache(c Cache) Option { return func(s *GroupOrderService) { s.cache = c } }

func WithPublisher(p events.Publisher) Option {
	return func(s *GroupOrderService) { s.publisher = p }
}

// WithTimeout bounds every unit of database work.
func WithTimeout(d time.Duration) Option {
	return func(s *GroupOrderService) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithDeliveryGate keeps items out of delivery schedules until their escrow
// reached FINAL. On by default.
func WithDeliveryGate(on bool) Option {
	return func(s *GroupOrderService) { s.deliveryGate = on }
}

func WithClock(now func() time.Time) Option { return func(s *GroupOrderService) { s.now = now } }

// NewGroupOrderService creates a GroupOrderService. store serves reads
// outside transactions; newStore wraps each transaction.
func NewGroupOrderService(st Store, pool TxBeginner, newStore NewStore, charger gateway.Charger, opts ...Option) *GroupOrderService {
	s := &GroupOrderService{
		store:        st,
		pool:         pool,
		newStore:     newStore,
		charger:      charger,
		cache:        cache.NewMemory(),
		publisher:    events.Discard{},
		timeout:      defaultTimeout,
		deliveryGate: true,
		now:          func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// inTx runs fn against a store bound to a fresh transaction and commits
// when fn succeeds.
func (s *GroupOrderService) inTx(ctx context.Context, fn func(ctx context.Context, st Store) error) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(ctx, s.newStore(tx)); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// committed drops the cached snapshot and publishes evts. Both are best
// effort: the mutation is already durable.
func (s *GroupOrderService) committed(ctx context.Context, groupOrderID uuid.UUID, evts ...events.Event) {
	if err := s.cache.InvalidateSnapshot(ctx, groupOrderID); err != nil {
		log.Printf("ERROR: invalidate snapshot %s: %v", groupOrderID, err)
	}
	for _, e := range evts {
		if err := s.publisher.Publish(ctx, e); err != nil {
			log.Printf("ERROR: publish %s for %s: %v", e.Type, groupOrderID, err)
		}
	}
}

func findItem(items []order.Item, itemID uuid.UUID) (int, error) {
	for i := range items {
		if items[i].ID == itemID {
			return i, nil
		}
	}
	return -1, fmt.Errorf("item %s: %w", itemID, ErrItemNotFound)
}

func findLedger(ledgers []*escrow.Ledger, itemID uuid.UUID) (*escrow.Ledger, error) {
	for _, l := range ledgers {
		if l.ItemID == itemID {
			return l, nil
		}
	}
	return nil, fmt.Errorf("item %s: %w", itemID, ErrItemNotFound)
}

func itemIDs(items []order.Item) []uuid.UUID {
	ids := make([]uuid.UUID, len(items))
	for i, it := range items {
		ids[i] = it.ID
	}
	return ids
}
