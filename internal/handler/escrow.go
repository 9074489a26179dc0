package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/tailorly/api/internal/enum"
	"github.com/tailorly/api/internal/escrow"
	"github.com/tailorly/api/internal/middleware"
)

type updateItemStatusRequest struct {
	Status string `json:"status"`
}

// AdvanceStage handles POST /group-orders/{gid}/items/{iid}/advance.
func (h *GroupOrderHandler) AdvanceStage(w http.ResponseWriter, r *http.Request) {
	h.ledgerAction(w, r, "advance stage", h.svc.AdvanceStage)
}

// MarkDisputed handles POST /group-orders/{gid}/items/{iid}/dispute.
func (h *GroupOrderHandler) MarkDisputed(w http.ResponseWriter, r *http.Request) {
	h.ledgerAction(w, r, "mark disputed", h.svc.MarkDisputed)
}

// ClearDispute handles DELETE /group-orders/{gid}/items/{iid}/dispute.
func (h *GroupOrderHandler) ClearDispute(w http.ResponseWriter, r *http.Request) {
	h.ledgerAction(w, r, "clear dispute", h.svc.ClearDispute)
}

type ledgerFunc func(ctx context.Context, groupOrderID, itemID uuid.UUID, actor string) (*escrow.Ledger, error)

func (h *GroupOrderHandler) ledgerAction(w http.ResponseWriter, r *http.Request, op string, fn ledgerFunc) {
	gid := middleware.GroupOrderIDFromContext(r.Context())
	iid, ok := urlUUID(w, r, "iid", "item")
	if !ok {
		return
	}
	claims := middleware.ClaimsFromContext(r.Context())

	l, err := fn(r.Context(), gid, iid, claims.Actor())
	if err != nil {
		writeServiceError(w, op, err)
		return
	}

	writeJSON(w, http.StatusOK, toLedgerResponse(l))
}

// UpdateItemStatus handles PATCH /group-orders/{gid}/items/{iid}/status.
func (h *GroupOrderHandler) UpdateItemStatus(w http.ResponseWriter, r *http.Request) {
	gid := middleware.GroupOrderIDFromContext(r.Context())
	iid, ok := urlUUID(w, r, "iid", "item")
	if !ok {
		return
	}
	claims := middleware.ClaimsFromContext(r.Context())

	var req updateItemStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Status == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "status is required"})
		return
	}

	it, err := h.svc.UpdateItemStatus(r.Context(), gid, iid, enum.ItemStatus(req.Status), claims.Actor())
	if err != nil {
		writeServiceError(w, "update item status", err)
		return
	}

	writeJSON(w, http.StatusOK, toItemResponse(it, nil))
}
