package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tailorly/api/internal/enum"
	"github.com/tailorly/api/internal/middleware"
	"github.com/tailorly/api/internal/service"
)

// IdempotencyKeyHeader carries the client-chosen key that makes a payment
// submission safe to retry.
const IdempotencyKeyHeader = "Idempotency-Key"

// --- Request / Response types ---

type recordPaymentRequest struct {
	ItemIDs []string `json:"item_ids"`
	Amount  string   `json:"amount"`
	Stage   string   `json:"stage"`
	PayerID string   `json:"payer_id"`
	Method  string   `json:"method"`
}

type quoteRequest struct {
	ItemIDs []string `json:"item_ids"`
	Stage   string   `json:"stage"`
}

// --- Handlers ---

// RecordPayment handles POST /group-orders/{gid}/payments.
func (h *GroupOrderHandler) RecordPayment(w http.ResponseWriter, r *http.Request) {
	gid := middleware.GroupOrderIDFromContext(r.Context())
	claims := middleware.ClaimsFromContext(r.Context())

	key := strings.TrimSpace(r.Header.Get(IdempotencyKeyHeader))
	if key == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": IdempotencyKeyHeader + " header is required"})
		return
	}

	var req recordPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if req.Amount == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "amount is required"})
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil || !amount.IsPositive() {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "amount must be positive"})
		return
	}

	ids, err := parseUUIDs(req.ItemIDs)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid item_ids"})
		return
	}

	// Customers always pay as themselves; staff may record for any payer.
	payerID := claims.UserID
	if req.PayerID != "" {
		payerID, err = uuid.Parse(req.PayerID)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payer_id"})
			return
		}
	}
	if claims.Role == enum.RoleCustomer && payerID != claims.UserID {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "customers can only pay for themselves"})
		return
	}

	result, err := h.svc.RecordPayment(r.Context(), service.RecordPaymentRequest{
		GroupOrderID:   gid,
		ItemIDs:        ids,
		Amount:         amount,
		Stage:          enum.EscrowStage(req.Stage),
		PayerID:        payerID,
		Method:         req.Method,
		IdempotencyKey: key,
		Actor:          claims.Actor(),
	})
	if err != nil {
		writeServiceError(w, "record payment", err)
		return
	}

	writeJSON(w, http.StatusCreated, toPaymentResultResponse(result))
}

// Quote handles POST /group-orders/{gid}/payments/quote.
func (h *GroupOrderHandler) Quote(w http.ResponseWriter, r *http.Request) {
	gid := middleware.GroupOrderIDFromContext(r.Context())

	var req quoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	ids, err := parseUUIDs(req.ItemIDs)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid item_ids"})
		return
	}

	stage := enum.EscrowStage(req.Stage)
	lines, total, err := h.svc.Quote(r.Context(), gid, ids, stage)
	if err != nil {
		writeServiceError(w, "quote payment", err)
		return
	}

	writeJSON(w, http.StatusOK, quoteResponse{
		Stage: stage,
		Lines: toLineResponses(lines),
		Total: total.StringFixed(2),
	})
}

// ListPayments handles GET /group-orders/{gid}/payments.
func (h *GroupOrderHandler) ListPayments(w http.ResponseWriter, r *http.Request) {
	gid := middleware.GroupOrderIDFromContext(r.Context())

	records, err := h.svc.Payments(r.Context(), gid)
	if err != nil {
		writeServiceError(w, "list payments", err)
		return
	}

	resp := make([]paymentRecordResponse, len(records))
	for i, rec := range records {
		resp[i] = toPaymentRecordResponse(rec)
	}
	writeJSON(w, http.StatusOK, resp)
}
