package router_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/tailorly/api/internal/auth"
	"github.com/tailorly/api/internal/config"
	"github.com/tailorly/api/internal/enum"
	"github.com/tailorly/api/internal/handler"
	"github.com/tailorly/api/internal/router"
	"github.com/tailorly/api/internal/ws"
)

const testSecret = "router-test-secret"

// denyService rejects every membership check. Routes that reach any other
// method panic, which the recoverer turns into a 500.
type denyService struct {
	handler.GroupOrderServicer
}

func (denyService) CanView(context.Context, uuid.UUID, *auth.Claims) (bool, error) {
	return false, nil
}

func newTestRouter() http.Handler {
	cfg := &config.Config{
		JWTSecret:      testSecret,
		RateLimitRPS:   100,
		RateLimitBurst: 100,
		AllowedOrigins: []string{"http://localhost:5173"},
	}
	return router.New(cfg, denyService{}, ws.NewHub())
}

func serve(h http.Handler, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestHealth(t *testing.T) {
	rr := serve(newTestRouter(), "GET", "/health", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusOK)
	}
	if !strings.Contains(rr.Body.String(), `"status":"ok"`) {
		t.Errorf("body: got %s", rr.Body.String())
	}
}

func TestDiscountsArePublic(t *testing.T) {
	rr := serve(newTestRouter(), "GET", "/discounts/tiers", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
}

func TestGroupOrdersRequireAuth(t *testing.T) {
	r := newTestRouter()

	rr := serve(r, "GET", "/group-orders/"+uuid.NewString(), "")
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("no token: got %d, want %d", rr.Code, http.StatusUnauthorized)
	}

	token, err := auth.GenerateToken(testSecret, uuid.New(), enum.RoleCustomer, time.Hour)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	rr = serve(r, "GET", "/group-orders/"+uuid.NewString(), token)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("non-member: got %d, want %d; body: %s", rr.Code, http.StatusForbidden, rr.Body.String())
	}
}

func TestWebSocketAuth(t *testing.T) {
	r := newTestRouter()
	path := "/ws/group-orders/" + uuid.NewString()

	if rr := serve(r, "GET", path, ""); rr.Code != http.StatusUnauthorized {
		t.Errorf("missing token: got %d, want %d", rr.Code, http.StatusUnauthorized)
	}
	if rr := serve(r, "GET", path+"?token=garbage", ""); rr.Code != http.StatusUnauthorized {
		t.Errorf("invalid token: got %d, want %d", rr.Code, http.StatusUnauthorized)
	}

	token, err := auth.GenerateToken(testSecret, uuid.New(), enum.RoleCustomer, time.Hour)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	if rr := serve(r, "GET", path+"?token="+token, ""); rr.Code != http.StatusForbidden {
		t.Errorf("non-member: got %d, want %d", rr.Code, http.StatusForbidden)
	}
}
