//go:build integration

package handler_test

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"
	"github.com/tailorly/api/internal/auth"
	"github.com/tailorly/api/internal/config"
	"github.com/tailorly/api/internal/enum"
	"github.com/tailorly/api/internal/gateway"
	"github.com/tailorly/api/internal/router"
	"github.com/tailorly/api/internal/service"
	"github.com/tailorly/api/internal/store"
	"github.com/tailorly/api/internal/ws"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

const integrationSecret = "integration-test-secret"

// TestIntegrationFlow drives a group order through creation, deposit payment
// and stage advancement against a real PostgreSQL database.
func TestIntegrationFlow(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	connStr, cleanup := setupPostgresContainer(t, ctx)
	defer cleanup()

	runMigrations(t, connStr)

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		t.Fatalf("create pool: %v", err)
	}
	defer pool.Close()

	cfg := &config.Config{
		JWTSecret:      integrationSecret,
		RateLimitRPS:   100,
		RateLimitBurst: 100,
		AllowedOrigins: []string{"*"},
	}
	svc := service.NewGroupOrderService(
		store.New(pool),
		pool,
		func(db store.DBTX) service.Store { return store.New(db) },
		gateway.Simulator{},
	)
	hub := ws.NewHub()
	go hub.Run(ctx)

	server := httptest.NewServer(router.New(cfg, svc, hub))
	defer server.Close()

	customerID := uuid.New()
	customer := integrationToken(t, customerID, enum.RoleCustomer)
	staff := integrationToken(t, uuid.New(), enum.RoleStaff)

	// --- 1. Create a SINGLE group order of three garments ---
	created := apiCall(t, server, "POST", "/group-orders", customer, nil, map[string]interface{}{
		"name":               "Okafor Wedding",
		"payment_mode":       "SINGLE",
		"delivery_strategy":  "ALL_TOGETHER",
		"primary_payer_name": "Chidi Okafor",
		"items": []map[string]interface{}{
			{"garment_type": "agbada", "base_amount": "200.00", "delivery_priority": 1},
			{"garment_type": "kaftan", "base_amount": "200.00", "delivery_priority": 2},
			{"garment_type": "gown", "base_amount": "200.00", "delivery_priority": 3},
		},
	}, http.StatusCreated)

	gid := created["id"].(string)
	discount := created["discount"].(map[string]interface{})
	if discount["discounted_total"] != "510.00" {
		t.Fatalf("discounted_total: got %v, want 510.00", discount["discounted_total"])
	}
	items := created["items"].([]interface{})
	if len(items) != 3 {
		t.Fatalf("items: got %d, want 3", len(items))
	}
	itemIDs := make([]string, len(items))
	for i, raw := range items {
		it := raw.(map[string]interface{})
		itemIDs[i] = it["id"].(string)
		if it["final_amount"] != "170.00" {
			t.Errorf("item %d final_amount: got %v, want 170.00", i, it["final_amount"])
		}
	}

	// --- 2. Fetch it back as the payer ---
	fetched := apiCall(t, server, "GET", "/group-orders/"+gid, customer, nil, nil, http.StatusOK)
	if fetched["name"] != "Okafor Wedding" {
		t.Errorf("name: got %v", fetched["name"])
	}

	// A stranger cannot see it.
	stranger := integrationToken(t, uuid.New(), enum.RoleCustomer)
	apiCall(t, server, "GET", "/group-orders/"+gid, stranger, nil, nil, http.StatusForbidden)

	// --- 3. Quote the deposit ---
	quote := apiCall(t, server, "POST", "/group-orders/"+gid+"/payments/quote", customer, nil, map[string]interface{}{
		"item_ids": itemIDs,
		"stage":    "DEPOSIT",
	}, http.StatusOK)
	if quote["total"] != "127.50" {
		t.Fatalf("quote total: got %v, want 127.50", quote["total"])
	}

	// --- 4. Pay the deposit ---
	payBody := map[string]interface{}{
		"item_ids": itemIDs,
		"amount":   "127.50",
		"stage":    "DEPOSIT",
		"method":   "MOBILE_MONEY",
	}
	keyHeader := map[string]string{"Idempotency-Key": "deposit-1"}
	paid := apiCall(t, server, "POST", "/group-orders/"+gid+"/payments", customer, keyHeader, payBody, http.StatusCreated)
	if paid["reference"] == "" {
		t.Error("payment reference should be set")
	}
	summary := paid["payments"].(map[string]interface{})
	if summary["paid_amount"] != "127.50" || summary["outstanding_amount"] != "382.50" {
		t.Errorf("summary: got %v", summary)
	}

	// --- 5. Replaying the key is rejected ---
	apiCall(t, server, "POST", "/group-orders/"+gid+"/payments", customer, keyHeader, payBody, http.StatusConflict)

	records := apiList(t, server, "/group-orders/"+gid+"/payments", customer)
	if len(records) != 3 {
		t.Errorf("payment records: got %d, want 3", len(records))
	}

	// --- 6. Staff advances the first item to FITTING ---
	apiCall(t, server, "POST", "/group-orders/"+gid+"/items/"+itemIDs[0]+"/advance", customer, nil, nil, http.StatusForbidden)
	ledger := apiCall(t, server, "POST", "/group-orders/"+gid+"/items/"+itemIDs[0]+"/advance", staff, nil, nil, http.StatusOK)
	if ledger["stage"] != "FITTING" {
		t.Fatalf("stage after advance: got %v, want FITTING", ledger["stage"])
	}
	if ledger["fitting_required"] != "85.00" {
		t.Errorf("fitting_required: got %v, want 85.00", ledger["fitting_required"])
	}

	// --- 7. The payer summary reflects the deposit ---
	payer := apiCall(t, server, "GET", "/group-orders/"+gid+"/payers/"+customerID.String(), customer, nil, nil, http.StatusOK)
	if payer["paid_amount"] != "127.50" || payer["status"] != "PARTIAL" {
		t.Errorf("payer: got paid %v status %v", payer["paid_amount"], payer["status"])
	}
}

// --- Helpers ---

func setupPostgresContainer(t *testing.T, ctx context.Context) (string, func()) {
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

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("get connection string: %v", err)
	}

	cleanup := func() {
		if err := pgContainer.Terminate(context.Background()); err != nil {
			t.Logf("terminate container: %v", err)
		}
	}
	return connStr, cleanup
}

func runMigrations(t *testing.T, connStr string) {
	t.Helper()

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		t.Fatalf("open db for migrations: %v", err)
	}
	defer db.Close()

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		t.Fatalf("create migrate driver: %v", err)
	}

	// Go test runs with the package directory as cwd.
	m, err := migrate.NewWithDatabaseInstance("file://../../migrations", "postgres", driver)
	if err != nil {
		t.Fatalf("create migrate instance: %v", err)
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		t.Fatalf("run migrations: %v", err)
	}
}

func integrationToken(t *testing.T, userID uuid.UUID, role string) string {
	t.Helper()
	token, err := auth.GenerateToken(integrationSecret, userID, role, time.Hour)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	return token
}

func sendAPI(t *testing.T, server *httptest.Server, method, path, token string, headers map[string]string, body interface{}) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, server.URL+path, &buf)
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	return resp
}

func apiCall(t *testing.T, server *httptest.Server, method, path, token string, headers map[string]string, body interface{}, wantStatus int) map[string]interface{} {
	t.Helper()

	resp := sendAPI(t, server, method, path, token, headers, body)
	defer resp.Body.Close()

	var out map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("%s %s: decode response: %v", method, path, err)
	}
	if resp.StatusCode != wantStatus {
		t.Fatalf("%s %s: status got %d, want %d; body: %v", method, path, resp.StatusCode, wantStatus, out)
	}
	return out
}

func apiList(t *testing.T, server *httptest.Server, path, token string) []map[string]interface{} {
	t.Helper()

	resp := sendAPI(t, server, "GET", path, token, nil, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET %s: status got %d, want %d", path, resp.StatusCode, http.StatusOK)
	}

	var out []map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("GET %s: decode response: %v", path, err)
	}
	return out
}
