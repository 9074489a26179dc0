package handler_test

import (
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/tailorly/api/internal/handler"
)

func setupDiscountRouter() *chi.Mux {
	r := chi.NewRouter()
	r.Route("/discounts", handler.NewDiscountHandler().RegisterRoutes)
	return r
}

func TestDiscountEstimate(t *testing.T) {
	router := setupDiscountRouter()

	tests := []struct {
		count     string
		wantTier  float64
		wantTotal string
	}{
		{"2", 0, "400.00"},
		{"3", 1, "510.00"},
		{"6", 2, "960.00"},
		{"10", 3, "1500.00"},
	}
	for _, tt := range tests {
		rr := doRequest(t, router, "GET", "/discounts/estimate?count="+tt.count, nil, nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("count %s: status got %d, want %d", tt.count, rr.Code, http.StatusOK)
		}
		resp := decodeResponse(t, rr)
		if resp["tier"] != tt.wantTier {
			t.Errorf("count %s: tier got %v, want %v", tt.count, resp["tier"], tt.wantTier)
		}
		if resp["discounted_total"] != tt.wantTotal {
			t.Errorf("count %s: discounted_total got %v, want %s", tt.count, resp["discounted_total"], tt.wantTotal)
		}
		if resp["estimated"] != true {
			t.Errorf("count %s: estimated got %v, want true", tt.count, resp["estimated"])
		}
	}

	for _, bad := range []string{"", "-1", "three"} {
		rr := doRequest(t, router, "GET", "/discounts/estimate?count="+bad, nil, nil)
		if rr.Code != http.StatusBadRequest {
			t.Errorf("count %q: status got %d, want %d", bad, rr.Code, http.StatusBadRequest)
		}
	}
}

func TestDiscountQuote(t *testing.T) {
	router := setupDiscountRouter()

	rr := doRequest(t, router, "POST", "/discounts/quote", map[string]interface{}{
		"amounts": []string{"150.00", "200.00", "275.50"},
	}, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	resp := decodeResponse(t, rr)
	if resp["original_total"] != "625.50" || resp["discounted_total"] != "531.68" || resp["savings"] != "93.82" {
		t.Errorf("quote: got %v", resp)
	}
	if resp["estimated"] != false {
		t.Errorf("estimated: got %v, want false", resp["estimated"])
	}

	rr = doRequest(t, router, "POST", "/discounts/quote", map[string]interface{}{"amounts": []string{"10", "-1", "5"}}, nil)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("negative amount: got %d, want %d", rr.Code, http.StatusBadRequest)
	}

	rr = doRequest(t, router, "POST", "/discounts/quote", map[string]interface{}{"amounts": []string{"ten"}}, nil)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("unparseable amount: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestDiscountTiers(t *testing.T) {
	rr := doRequest(t, setupDiscountRouter(), "GET", "/discounts/tiers", nil, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusOK)
	}
	tiers := decodeListResponse(t, rr)
	if len(tiers) != 3 {
		t.Fatalf("tiers: got %d, want 3", len(tiers))
	}
	if tiers[0]["percentage"] != "15.00" || tiers[0]["max"] != float64(5) {
		t.Errorf("tier 1: got %v", tiers[0])
	}
	if tiers[2]["max"] != nil {
		t.Errorf("tier 3 max: got %v, want null", tiers[2]["max"])
	}
}
