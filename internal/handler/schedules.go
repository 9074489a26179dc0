package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/tailorly/api/internal/enum"
	"github.com/tailorly/api/internal/middleware"
)

// --- Request / Response types ---

type proposeScheduleRequest struct {
	ItemIDs       []string  `json:"item_ids"`
	ScheduledDate time.Time `json:"scheduled_date"`
	Notes         string    `json:"notes"`
}

type updateScheduleStatusRequest struct {
	Status string `json:"status"`
}

type deliveryRequest struct {
	ItemID      string     `json:"item_id"`
	DeliveredAt *time.Time `json:"delivered_at"`
}

type markDeliveredRequest struct {
	Deliveries []deliveryRequest `json:"deliveries"`
}

type markDeliveredResponse struct {
	Schedule scheduleResponse `json:"schedule"`
	Items    []itemResponse   `json:"items"`
}

// --- Handlers ---

// ProposeSchedule handles POST /group-orders/{gid}/schedules.
func (h *GroupOrderHandler) ProposeSchedule(w http.ResponseWriter, r *http.Request) {
	gid := middleware.GroupOrderIDFromContext(r.Context())
	claims := middleware.ClaimsFromContext(r.Context())

	var req proposeScheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	ids, err := parseUUIDs(req.ItemIDs)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid item_ids"})
		return
	}

	sched, err := h.svc.ProposeSchedule(r.Context(), gid, ids, req.ScheduledDate, req.Notes, claims.Actor())
	if err != nil {
		writeServiceError(w, "propose schedule", err)
		return
	}

	writeJSON(w, http.StatusCreated, toScheduleResponse(*sched))
}

// ProposeDefaultSchedule handles POST /group-orders/{gid}/schedules/default.
// Item selection follows the group order's delivery strategy.
func (h *GroupOrderHandler) ProposeDefaultSchedule(w http.ResponseWriter, r *http.Request) {
	gid := middleware.GroupOrderIDFromContext(r.Context())
	claims := middleware.ClaimsFromContext(r.Context())

	var req proposeScheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	sched, err := h.svc.ProposeDefaultSchedule(r.Context(), gid, req.ScheduledDate, req.Notes, claims.Actor())
	if err != nil {
		writeServiceError(w, "propose default schedule", err)
		return
	}

	writeJSON(w, http.StatusCreated, toScheduleResponse(*sched))
}

// UpdateScheduleStatus handles PATCH /group-orders/{gid}/schedules/{sid}/status.
func (h *GroupOrderHandler) UpdateScheduleStatus(w http.ResponseWriter, r *http.Request) {
	gid := middleware.GroupOrderIDFromContext(r.Context())
	sid, ok := urlUUID(w, r, "sid", "schedule")
	if !ok {
		return
	}
	claims := middleware.ClaimsFromContext(r.Context())

	var req updateScheduleStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Status == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "status is required"})
		return
	}

	sched, err := h.svc.UpdateScheduleStatus(r.Context(), gid, sid, enum.ScheduleStatus(req.Status), claims.Actor())
	if err != nil {
		writeServiceError(w, "update schedule status", err)
		return
	}

	writeJSON(w, http.StatusOK, toScheduleResponse(*sched))
}

// MarkDelivered handles POST /group-orders/{gid}/schedules/{sid}/delivered.
// A delivery without delivered_at is stamped with the current time.
func (h *GroupOrderHandler) MarkDelivered(w http.ResponseWriter, r *http.Request) {
	gid := middleware.GroupOrderIDFromContext(r.Context())
	sid, ok := urlUUID(w, r, "sid", "schedule")
	if !ok {
		return
	}
	claims := middleware.ClaimsFromContext(r.Context())

	var req markDeliveredRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	delivered := make(map[uuid.UUID]time.Time, len(req.Deliveries))
	for i, d := range req.Deliveries {
		id, err := uuid.Parse(d.ItemID)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": fmt.Sprintf("deliveries[%d]: invalid item_id", i)})
			return
		}
		at := h.now().UTC()
		if d.DeliveredAt != nil {
			at = *d.DeliveredAt
		}
		delivered[id] = at
	}

	sched, items, err := h.svc.MarkDelivered(r.Context(), gid, sid, delivered, claims.Actor())
	if err != nil {
		writeServiceError(w, "mark delivered", err)
		return
	}

	resp := markDeliveredResponse{
		Schedule: toScheduleResponse(*sched),
		Items:    make([]itemResponse, len(items)),
	}
	for i, it := range items {
		resp.Items[i] = toItemResponse(it, nil)
	}
	writeJSON(w, http.StatusOK, resp)
}
