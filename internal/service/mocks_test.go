package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/tailorly/api/internal/cache"
	"github.com/tailorly/api/internal/delivery"
	"github.com/tailorly/api/internal/escrow"
	"github.com/tailorly/api/internal/events"
	"github.com/tailorly/api/internal/gateway"
	"github.com/tailorly/api/internal/order"
	"github.com/tailorly/api/internal/payment"
	"github.com/tailorly/api/internal/store"
)

// --- Mock implementations ---

// mockTx implements pgx.Tx with only the methods we need.
// The unused methods panic so we catch accidental calls.
type mockTx struct {
	mu          sync.Mutex
	commitErr   error
	rollbackErr error
	commits     int
}

func (m *mockTx) Begin(ctx context.Context) (pgx.Tx, error) { panic("not implemented") }
func (m *mockTx) Commit(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.commitErr == nil {
		m.commits++
	}
	return m.commitErr
}
func (m *mockTx) Rollback(ctx context.Context) error { return m.rollbackErr }
func (m *mockTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	panic("not implemented")
}
func (m *mockTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults {
	panic("not implemented")
}
func (m *mockTx) LargeObjects() pgx.LargeObjects { panic("not implemented") }
func (m *mockTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	panic("not implemented")
}
func (m *mockTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	panic("not implemented")
}
func (m *mockTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	panic("not implemented")
}
func (m *mockTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	panic("not implemented")
}
func (m *mockTx) Conn() *pgx.Conn { panic("not implemented") }

// mockTxBeginner implements TxBeginner.
type mockTxBeginner struct {
	tx  pgx.Tx
	err error
}

func (m *mockTxBeginner) Begin(ctx context.Context) (pgx.Tx, error) {
	return m.tx, m.err
}

// mockStore implements Store in memory with the same version checks as the
// real store. Loads hand out copies; only saves change what is stored.
type mockStore struct {
	mu        sync.Mutex
	groups    map[uuid.UUID]order.GroupOrder
	items     map[uuid.UUID][]order.Item
	ledgers   map[uuid.UUID]*escrow.Ledger
	payers    map[uuid.UUID][]payment.Responsibility
	records   []payment.Record
	schedules map[uuid.UUID][]delivery.Schedule

	saveLedgersErr error
	loadItemsErr   error
}

func newMockStore() *mockStore {
	return &mockStore{
		groups:    make(map[uuid.UUID]order.GroupOrder),
		items:     make(map[uuid.UUID][]order.Item),
		ledgers:   make(map[uuid.UUID]*escrow.Ledger),
		payers:    make(map[uuid.UUID][]payment.Responsibility),
		schedules: make(map[uuid.UUID][]delivery.Schedule),
	}
}

func (m *mockStore) CreateGroupOrder(_ context.Context, g *order.GroupOrder) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	g.Version = 1
	m.groups[g.ID] = *g
	return nil
}

func (m *mockStore) LoadGroupOrder(_ context.Context, id uuid.UUID) (order.GroupOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.groups[id]
	if !ok {
		return order.GroupOrder{}, fmt.Errorf("group order %s: %w", id, store.ErrNotFound)
	}
	return g, nil
}

func (m *mockStore) LockGroupOrder(ctx context.Context, id uuid.UUID) (order.GroupOrder, error) {
	return m.LoadGroupOrder(ctx, id)
}

func (m *mockStore) CreateOrderItems(_ context.Context, items []order.Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range items {
		items[i].Version = 1
		gid := *items[i].GroupOrderID
		m.items[gid] = append(m.items[gid], items[i].Clone())
	}
	return nil
}

func (m *mockStore) LoadOrderItems(_ context.Context, groupOrderID uuid.UUID) ([]order.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadItemsErr != nil {
		return nil, m.loadItemsErr
	}
	var out []order.Item
	for _, it := range m.items[groupOrderID] {
		out = append(out, it.Clone())
	}
	return out, nil
}

func (m *mockStore) SaveOrderItems(_ context.Context, items []order.Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range items {
		stored := m.items[*items[i].GroupOrderID]
		found := false
		for j := range stored {
			if stored[j].ID != items[i].ID {
				continue
			}
			if stored[j].Version != items[i].Version {
				return fmt.Errorf("item %s: %w", items[i].ID, store.ErrConcurrentModification)
			}
			items[i].Version++
			stored[j] = items[i].Clone()
			found = true
		}
		if !found {
			return fmt.Errorf("item %s: %w", items[i].ID, store.ErrConcurrentModification)
		}
	}
	return nil
}

func (m *mockStore) CreateLedgers(_ context.Context, ledgers []*escrow.Ledger) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range ledgers {
		l.Version = 1
		m.ledgers[l.ItemID] = l.Clone()
	}
	return nil
}

func (m *mockStore) LoadLedger(_ context.Context, itemID uuid.UUID) (*escrow.Ledger, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.ledgers[itemID]
	if !ok {
		return nil, fmt.Errorf("ledger %s: %w", itemID, store.ErrNotFound)
	}
	return l.Clone(), nil
}

func (m *mockStore) LoadLedgers(_ context.Context, groupOrderID uuid.UUID) ([]*escrow.Ledger, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*escrow.Ledger
	for _, it := range m.items[groupOrderID] {
		if l, ok := m.ledgers[it.ID]; ok {
			out = append(out, l.Clone())
		}
	}
	return out, nil
}

func (m *mockStore) SaveLedgers(_ context.Context, ledgers []*escrow.Ledger) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveLedgersErr != nil {
		return m.saveLedgersErr
	}
	for _, l := range ledgers {
		stored, ok := m.ledgers[l.ItemID]
		if !ok || stored.Version != l.Version {
			return fmt.Errorf("ledger %s: %w", l.ItemID, store.ErrConcurrentModification)
		}
	}
	for _, l := range ledgers {
		l.Version++
		m.ledgers[l.ItemID] = l.Clone()
	}
	return nil
}

func (m *mockStore) CreateResponsibilities(_ context.Context, groupOrderID uuid.UUID, payers []payment.Responsibility) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.payers[groupOrderID] = append(m.payers[groupOrderID], payers...)
	return nil
}

func (m *mockStore) LoadResponsibilities(_ context.Context, groupOrderID uuid.UUID) ([]payment.Responsibility, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]payment.Responsibility(nil), m.payers[groupOrderID]...), nil
}

func (m *mockStore) InsertPaymentRecords(_ context.Context, records []payment.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, records...)
	return nil
}

func (m *mockStore) ListPaymentRecords(_ context.Context, groupOrderID uuid.UUID) ([]payment.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []payment.Record
	for _, r := range m.records {
		if r.GroupOrderID == groupOrderID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *mockStore) CreateSchedule(_ context.Context, s *delivery.Schedule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.Version = 1
	m.schedules[s.GroupOrderID] = append(m.schedules[s.GroupOrderID], s.Clone())
	return nil
}

func (m *mockStore) LoadSchedules(_ context.Context, groupOrderID uuid.UUID) ([]delivery.Schedule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []delivery.Schedule
	for _, s := range m.schedules[groupOrderID] {
		out = append(out, s.Clone())
	}
	return out, nil
}

func (m *mockStore) SaveSchedule(_ context.Context, s *delivery.Schedule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := m.schedules[s.GroupOrderID]
	for i := range stored {
		if stored[i].ID != s.ID {
			continue
		}
		if stored[i].Version != s.Version {
			return fmt.Errorf("schedule %s: %w", s.ID, store.ErrConcurrentModification)
		}
		s.Version++
		stored[i] = s.Clone()
		return nil
	}
	return fmt.Errorf("schedule %s: %w", s.ID, store.ErrNotFound)
}

// setItem overwrites a stored item's status, as if staff had moved it along.
func (m *mockStore) setItem(groupOrderID, itemID uuid.UUID, fn func(*order.Item)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.items[groupOrderID] {
		if m.items[groupOrderID][i].ID == itemID {
			fn(&m.items[groupOrderID][i])
		}
	}
}

// setDueDate changes a stored payer's due date.
func (m *mockStore) setDueDate(groupOrderID, payerID uuid.UUID, due time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.payers[groupOrderID] {
		if m.payers[groupOrderID][i].PayerID == payerID {
			m.payers[groupOrderID][i].DueDate = &due
		}
	}
}

func (m *mockStore) ledger(itemID uuid.UUID) *escrow.Ledger {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ledgers[itemID].Clone()
}

func (m *mockStore) setLedger(itemID uuid.UUID, fn func(*escrow.Ledger)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn(m.ledgers[itemID])
}

// mockCharger implements gateway.Charger.
type mockCharger struct {
	mu     sync.Mutex
	calls  int
	charge func(payerID uuid.UUID, amount decimal.Decimal) (gateway.ChargeResult, error)
}

func (m *mockCharger) AttemptCharge(_ context.Context, payerID uuid.UUID, amount decimal.Decimal, _ string) (gateway.ChargeResult, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.charge != nil {
		return m.charge(payerID, amount)
	}
	return gateway.ChargeResult{Reference: "ref-" + amount.StringFixed(2)}, nil
}

// mockCache keeps idempotency keys in memory and snapshots as JSON, like Redis.
type mockCache struct {
	*cache.Memory
	mu          sync.Mutex
	snapshots   map[uuid.UUID][]byte
	invalidated int
}

func newMockCache() *mockCache {
	return &mockCache{Memory: cache.NewMemory(), snapshots: make(map[uuid.UUID][]byte)}
}

func (c *mockCache) GetSnapshot(_ context.Context, groupOrderID uuid.UUID, dst any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.snapshots[groupOrderID]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(b, dst)
}

func (c *mockCache) SetSnapshot(_ context.Context, groupOrderID uuid.UUID, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snapshots[groupOrderID] = b
	return nil
}

func (c *mockCache) InvalidateSnapshot(_ context.Context, groupOrderID uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.snapshots, groupOrderID)
	c.invalidated++
	return nil
}

// mockPublisher records published events.
type mockPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (m *mockPublisher) Publish(_ context.Context, e events.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e)
	return nil
}

func (m *mockPublisher) types() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.events))
	for i, e := range m.events {
		out[i] = e.Type
	}
	return out
}

// --- Fixture ---

var testNow = time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC)

type fixture struct {
	svc     *GroupOrderService
	store   *mockStore
	tx      *mockTx
	pool    *mockTxBeginner
	charger *mockCharger
	cache   *mockCache
	pub     *mockPublisher
}

func newFixture(opts ...Option) *fixture {
	f := &fixture{
		store:   newMockStore(),
		tx:      &mockTx{},
		charger: &mockCharger{},
		cache:   newMockCache(),
		pub:     &mockPublisher{},
	}
	f.pool = &mockTxBeginner{tx: f.tx}
	newStore := func(db store.DBTX) Store { return f.store }
	all := append([]Option{
		WithCache(f.cache),
		WithPublisher(f.pub),
		WithClock(func() time.Time { return testNow }),
	}, opts...)
	f.svc = NewGroupOrderService(f.store, f.pool, newStore, f.charger, all...)
	return f
}
