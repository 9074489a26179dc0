package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/tailorly/api/internal/discount"
)

// DiscountHandler serves the bulk discount calculator. It holds no state.
type DiscountHandler struct{}

// NewDiscountHandler creates a new DiscountHandler.
func NewDiscountHandler() *DiscountHandler {
	return &DiscountHandler{}
}

// RegisterRoutes registers discount endpoints on the given Chi router.
// Expected to be mounted at /discounts
func (h *DiscountHandler) RegisterRoutes(r chi.Router) {
	r.Get("/tiers", h.Tiers)
	r.Get("/estimate", h.Estimate)
	r.Post("/quote", h.Quote)
}

// --- Request / Response types ---

type discountQuoteRequest struct {
	Amounts []string `json:"amounts"`
}

type tierResponse struct {
	Level      int    `json:"level"`
	Min        int    `json:"min"`
	Max        *int   `json:"max"`
	Percentage string `json:"percentage"`
}

// --- Handlers ---

// Tiers handles GET /discounts/tiers.
func (h *DiscountHandler) Tiers(w http.ResponseWriter, r *http.Request) {
	tiers := discount.Tiers()
	resp := make([]tierResponse, len(tiers))
	for i, t := range tiers {
		resp[i] = tierResponse{Level: t.Level, Min: t.Min, Percentage: t.Percentage.StringFixed(2)}
		if t.Max > 0 {
			max := t.Max
			resp[i].Max = &max
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// Estimate handles GET /discounts/estimate?count=N.
func (h *DiscountHandler) Estimate(w http.ResponseWriter, r *http.Request) {
	count, err := strconv.Atoi(r.URL.Query().Get("count"))
	if err != nil || count < 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "count must be a non-negative integer"})
		return
	}

	result, err := discount.Estimate(count)
	if err != nil {
		writeServiceError(w, "estimate discount", err)
		return
	}

	writeJSON(w, http.StatusOK, toDiscountResponse(result))
}

// Quote handles POST /discounts/quote with the actual garment prices.
func (h *DiscountHandler) Quote(w http.ResponseWriter, r *http.Request) {
	var req discountQuoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	amounts := make([]decimal.Decimal, len(req.Amounts))
	for i, a := range req.Amounts {
		d, err := decimal.NewFromString(a)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": fmt.Sprintf("amounts[%d]: invalid amount", i)})
			return
		}
		amounts[i] = d
	}

	result, err := discount.Compute(len(amounts), amounts)
	if err != nil {
		writeServiceError(w, "quote discount", err)
		return
	}

	writeJSON(w, http.StatusOK, toDiscountResponse(result))
}
