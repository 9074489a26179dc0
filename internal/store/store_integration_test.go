//go:build integration

package store_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/tailorly/api/internal/delivery"
	"github.com/tailorly/api/internal/enum"
	"github.com/tailorly/api/internal/escrow"
	"github.com/tailorly/api/internal/order"
	"github.com/tailorly/api/internal/payment"
	"github.com/tailorly/api/internal/store"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupPostgres(t *testing.T, ctx context.Context) *pgxpool.Pool {
	t.Helper()

	pgContainer, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("tailorly_test"),
		tcpostgres.WithUsername("tailorly"),
		tcpostgres.WithPassword("tailorly"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Fatalf("start postgres container: %v", err)
	}
	t.Cleanup(func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("terminate container: %v", err)
		}
	})

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("get connection string: %v", err)
	}

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		t.Fatalf("open db for migrations: %v", err)
	}
	defer db.Close()

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		t.Fatalf("create migrate driver: %v", err)
	}
	m, err := migrate.NewWithDatabaseInstance("file://../../migrations", "postgres", driver)
	if err != nil {
		t.Fatalf("create migrate instance: %v", err)
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		t.Fatalf("run migrations: %v", err)
	}

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		t.Fatalf("create pool: %v", err)
	}
	t.Cleanup(pool.Close)
	return pool
}

// seedGroupOrder inserts a priced three-item group order with ledgers and two payers.
func seedGroupOrder(t *testing.T, ctx context.Context, q *store.Queries) (order.GroupOrder, []order.Item) {
	t.Helper()

	alice, bob := uuid.New(), uuid.New()
	g := order.GroupOrder{
		ID:               uuid.New(),
		Name:             "Wedding party",
		PaymentMode:      enum.PaymentModeSplit,
		DeliveryStrategy: enum.DeliveryStaggered,
		PrimaryPayerID:   alice,
		CreatedAt:        time.Now().UTC().Truncate(time.Microsecond),
	}
	if err := q.CreateGroupOrder(ctx, &g); err != nil {
		t.Fatalf("create group order: %v", err)
	}

	items, _, err := order.Price(g.ID, []order.NewItem{
		{GarmentType: "agbada", BaseAmount: decimal.RequireFromString("200"), DeliveryPriority: 1},
		{GarmentType: "kaftan", BaseAmount: decimal.RequireFromString("200"), DeliveryPriority: 2},
		{GarmentType: "gele", BaseAmount: decimal.RequireFromString("200"), DeliveryPriority: 3},
	})
	if err != nil {
		t.Fatalf("price: %v", err)
	}
	if err := q.CreateOrderItems(ctx, items); err != nil {
		t.Fatalf("create items: %v", err)
	}

	coord := payment.NewCoordinator(g.ID, g.PaymentMode, alice, nil, nil)
	ledgers, err := coord.Attach(items)
	if err != nil {
		t.Fatalf("attach: %v", err)
	}
	if err := q.CreateLedgers(ctx, ledgers); err != nil {
		t.Fatalf("create ledgers: %v", err)
	}

	payers := []payment.Responsibility{
		{PayerID: alice, Name: "Alice", ItemIDs: []uuid.UUID{items[0].ID, items[1].ID}},
		{PayerID: bob, Name: "Bob", ItemIDs: []uuid.UUID{items[2].ID}},
	}
	if err := q.CreateResponsibilities(ctx, g.ID, payers); err != nil {
		t.Fatalf("create payers: %v", err)
	}
	return g, items
}

func TestStore_GroupOrderRoundTrip(t *testing.T) {
	ctx := context.Background()
	pool := setupPostgres(t, ctx)
	q := store.New(pool)

	g, items := seedGroupOrder(t, ctx, q)

	got, err := q.LoadGroupOrder(ctx, g.ID)
	if err != nil {
		t.Fatalf("load group order: %v", err)
	}
	if got.Name != g.Name || got.PaymentMode != enum.PaymentModeSplit || got.Version != 1 {
		t.Fatalf("group order: got %+v", got)
	}

	loaded, err := q.LoadOrderItems(ctx, g.ID)
	if err != nil {
		t.Fatalf("load items: %v", err)
	}
	if len(loaded) != 3 {
		t.Fatalf("items: got %d, want 3", len(loaded))
	}
	for i, it := range loaded {
		if it.ID != items[i].ID {
			t.Fatalf("item[%d] order: got %s, want %s", i, it.ID, items[i].ID)
		}
		if it.FinalAmount.StringFixed(2) != "170.00" {
			t.Fatalf("item[%d] final: got %s, want 170.00", i, it.FinalAmount.StringFixed(2))
		}
		if it.Status != enum.ItemStatusPending {
			t.Fatalf("item[%d] status: got %s", i, it.Status)
		}
	}

	ledgers, err := q.LoadLedgers(ctx, g.ID)
	if err != nil {
		t.Fatalf("load ledgers: %v", err)
	}
	if len(ledgers) != 3 || ledgers[0].Stage != enum.StageDeposit || !ledgers[0].Total.Equal(decimal.NewFromInt(170)) {
		t.Fatalf("ledgers: got %+v", ledgers)
	}

	payers, err := q.LoadResponsibilities(ctx, g.ID)
	if err != nil {
		t.Fatalf("load payers: %v", err)
	}
	if len(payers) != 2 || payers[0].Name != "Alice" || len(payers[0].ItemIDs) != 2 {
		t.Fatalf("payers: got %+v", payers)
	}

	if _, err := q.LoadGroupOrder(ctx, uuid.New()); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("missing group order: got %v, want ErrNotFound", err)
	}
}

func TestStore_SaveLedgersDetectsStaleVersion(t *testing.T) {
	ctx := context.Background()
	pool := setupPostgres(t, ctx)
	q := store.New(pool)

	_, items := seedGroupOrder(t, ctx, q)

	first, err := q.LoadLedger(ctx, items[0].ID)
	if err != nil {
		t.Fatalf("load ledger: %v", err)
	}
	second := first.Clone()

	if err := first.RecordPayment(enum.StageDeposit, decimal.RequireFromString("42.50")); err != nil {
		t.Fatalf("record payment: %v", err)
	}
	if err := first.AdvanceStage("staff-1", time.Now().UTC()); err != nil {
		t.Fatalf("advance: %v", err)
	}
	if err := q.SaveLedgers(ctx, []*escrow.Ledger{first}); err != nil {
		t.Fatalf("save ledger: %v", err)
	}
	if first.Version != 2 {
		t.Fatalf("version: got %d, want 2", first.Version)
	}

	if err := second.MarkDisputed("mod-1"); err != nil {
		t.Fatalf("dispute: %v", err)
	}
	if err := q.SaveLedgers(ctx, []*escrow.Ledger{second}); !errors.Is(err, store.ErrConcurrentModification) {
		t.Fatalf("stale save: got %v, want ErrConcurrentModification", err)
	}

	reloaded, err := q.LoadLedger(ctx, items[0].ID)
	if err != nil {
		t.Fatalf("reload ledger: %v", err)
	}
	if reloaded.Stage != enum.StageFitting || reloaded.Disputed {
		t.Fatalf("reloaded: got stage %s disputed %v", reloaded.Stage, reloaded.Disputed)
	}
	if len(reloaded.History) != 1 || reloaded.History[0].Actor != "staff-1" {
		t.Fatalf("history: got %+v", reloaded.History)
	}
}

func TestStore_SchedulesAndPaymentRecords(t *testing.T) {
	ctx := context.Background()
	pool := setupPostgres(t, ctx)
	q := store.New(pool)

	g, items := seedGroupOrder(t, ctx, q)

	s := &delivery.Schedule{
		ID:            uuid.New(),
		GroupOrderID:  g.ID,
		ScheduledDate: time.Date(2026, 11, 2, 9, 0, 0, 0, time.UTC),
		ItemIDs:       []uuid.UUID{items[0].ID, items[1].ID},
		Notes:         "front desk",
		Status:        enum.ScheduleStatusScheduled,
	}
	if err := q.CreateSchedule(ctx, s); err != nil {
		t.Fatalf("create schedule: %v", err)
	}

	s.Status = enum.ScheduleStatusReady
	if err := q.SaveSchedule(ctx, s); err != nil {
		t.Fatalf("save schedule: %v", err)
	}
	stale := *s
	stale.Version = 1
	if err := q.SaveSchedule(ctx, &stale); !errors.Is(err, store.ErrConcurrentModification) {
		t.Fatalf("stale schedule: got %v, want ErrConcurrentModification", err)
	}

	schedules, err := q.LoadSchedules(ctx, g.ID)
	if err != nil {
		t.Fatalf("load schedules: %v", err)
	}
	if len(schedules) != 1 || schedules[0].Status != enum.ScheduleStatusReady || len(schedules[0].ItemIDs) != 2 {
		t.Fatalf("schedules: got %+v", schedules)
	}

	lines := []payment.Line{
		{ItemID: items[0].ID, Amount: decimal.RequireFromString("42.50")},
		{ItemID: items[1].ID, Amount: decimal.RequireFromString("42.50")},
	}
	records := payment.NewRecords(uuid.New(), g.ID, g.PrimaryPayerID, enum.StageDeposit,
		"CARD", "sim_1", time.Now().UTC(), lines)
	if err := q.InsertPaymentRecords(ctx, records); err != nil {
		t.Fatalf("insert records: %v", err)
	}
	got, err := q.ListPaymentRecords(ctx, g.ID)
	if err != nil {
		t.Fatalf("list records: %v", err)
	}
	if len(got) != 2 || got[0].Amount.StringFixed(2) != "42.50" || got[0].Reference != "sim_1" {
		t.Fatalf("records: got %+v", got)
	}

	items[2].Status = enum.ItemStatusDepositPaid
	if err := q.SaveOrderItems(ctx, items[2:]); err != nil {
		t.Fatalf("save items: %v", err)
	}
	if items[2].Version != 2 {
		t.Fatalf("item version: got %d, want 2", items[2].Version)
	}
}
