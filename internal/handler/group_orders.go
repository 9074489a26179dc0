package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tailorly/api/internal/auth"
	"github.com/tailorly/api/internal/delivery"
	"github.com/tailorly/api/internal/enum"
	"github.com/tailorly/api/internal/escrow"
	"github.com/tailorly/api/internal/middleware"
	"github.com/tailorly/api/internal/order"
	"github.com/tailorly/api/internal/payment"
	"github.com/tailorly/api/internal/service"
)

// GroupOrderServicer defines the service methods the group order endpoints need.
// Satisfied by *service.GroupOrderService; narrow interface for testability.
type GroupOrderServicer interface {
	CreateGroupOrder(ctx context.Context, req service.CreateGroupOrderRequest) (*service.Snapshot, error)
	Snapshot(ctx context.Context, groupOrderID uuid.UUID) (*service.Snapshot, error)
	PayerSummary(ctx context.Context, groupOrderID, payerID uuid.UUID) (payment.Responsibility, error)
	CanView(ctx context.Context, groupOrderID uuid.UUID, claims *auth.Claims) (bool, error)

	Quote(ctx context.Context, groupOrderID uuid.UUID, ids []uuid.UUID, stage enum.EscrowStage) ([]payment.Line, decimal.Decimal, error)
	RecordPayment(ctx context.Context, req service.RecordPaymentRequest) (*service.PaymentResult, error)
	Payments(ctx context.Context, groupOrderID uuid.UUID) ([]payment.Record, error)

	AdvanceStage(ctx context.Context, groupOrderID, itemID uuid.UUID, actor string) (*escrow.Ledger, error)
	MarkDisputed(ctx context.Context, groupOrderID, itemID uuid.UUID, actor string) (*escrow.Ledger, error)
	ClearDispute(ctx context.Context, groupOrderID, itemID uuid.UUID, actor string) (*escrow.Ledger, error)
	UpdateItemStatus(ctx context.Context, groupOrderID, itemID uuid.UUID, status enum.ItemStatus, actor string) (order.Item, error)

	ProposeSchedule(ctx context.Context, groupOrderID uuid.UUID, ids []uuid.UUID, date time.Time, notes, actor string) (*delivery.Schedule, error)
	ProposeDefaultSchedule(ctx context.Context, groupOrderID uuid.UUID, date time.Time, notes, actor string) (*delivery.Schedule, error)
	MarkDelivered(ctx context.Context, groupOrderID, scheduleID uuid.UUID, delivered map[uuid.UUID]time.Time, actor string) (*delivery.Schedule, []order.Item, error)
	UpdateScheduleStatus(ctx context.Context, groupOrderID, scheduleID uuid.UUID, status enum.ScheduleStatus, actor string) (*delivery.Schedule, error)
}

// GroupOrderHandler handles group order endpoints.
type GroupOrderHandler struct {
	svc          GroupOrderServicer
	paymentLimit func(http.Handler) http.Handler
	now          func() time.Time
}

// NewGroupOrderHandler creates a new GroupOrderHandler. paymentLimit wraps the
// payment endpoint (typically a rate limiter) and may be nil.
func NewGroupOrderHandler(svc GroupOrderServicer, paymentLimit func(http.Handler) http.Handler) *GroupOrderHandler {
	if paymentLimit == nil {
		paymentLimit = func(next http.Handler) http.Handler { return next }
	}
	return &GroupOrderHandler{svc: svc, paymentLimit: paymentLimit, now: time.Now}
}

// RegisterRoutes registers group order endpoints on the given Chi router.
// Expected to be mounted at /group-orders behind Authenticate.
func (h *GroupOrderHandler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.Create)
	r.Route("/{gid}", func(r chi.Router) {
		r.Use(middleware.RequireGroupOrderAccess(h.svc))

		r.Get("/", h.Get)
		r.Get("/payers/{pid}", h.PayerSummary)

		r.Get("/payments", h.ListPayments)
		r.Post("/payments/quote", h.Quote)
		r.With(h.paymentLimit).Post("/payments", h.RecordPayment)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole(enum.RoleStaff))
			r.Post("/items/{iid}/advance", h.AdvanceStage)
			r.Patch("/items/{iid}/status", h.UpdateItemStatus)
			r.Post("/schedules", h.ProposeSchedule)
			r.Post("/schedules/default", h.ProposeDefaultSchedule)
			r.Patch("/schedules/{sid}/status", h.UpdateScheduleStatus)
			r.Post("/schedules/{sid}/delivered", h.MarkDelivered)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole(enum.RoleModerator))
			r.Post("/items/{iid}/dispute", h.MarkDisputed)
			r.Delete("/items/{iid}/dispute", h.ClearDispute)
		})
	})
}

// --- Request / Response types ---

type createItemRequest struct {
	GarmentType       string     `json:"garment_type"`
	BaseAmount        string     `json:"base_amount"`
	DeliveryPriority  int        `json:"delivery_priority"`
	EstimatedDelivery *time.Time `json:"estimated_delivery"`
}

type createPayerRequest struct {
	PayerID        string     `json:"payer_id"`
	Name           string     `json:"name"`
	ItemPriorities []int      `json:"item_priorities"`
	DueDate        *time.Time `json:"due_date"`
}

type createGroupOrderRequest struct {
	Name             string               `json:"name"`
	PaymentMode      string               `json:"payment_mode"`
	DeliveryStrategy string               `json:"delivery_strategy"`
	PrimaryPayerID   string               `json:"primary_payer_id"`
	PrimaryPayerName string               `json:"primary_payer_name"`
	DueDate          *time.Time           `json:"due_date"`
	Items            []createItemRequest  `json:"items"`
	Payers           []createPayerRequest `json:"payers"`
}

// --- Handlers ---

// Create handles POST /group-orders.
func (h *GroupOrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	var req createGroupOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	// The caller pays for the order unless someone else is named.
	primary := claims.UserID
	if req.PrimaryPayerID != "" {
		id, err := uuid.Parse(req.PrimaryPayerID)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid primary_payer_id"})
			return
		}
		primary = id
	}
	if claims.Role == enum.RoleCustomer && primary != claims.UserID {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "customers can only create group orders they pay for"})
		return
	}

	items := make([]order.NewItem, len(req.Items))
	for i, it := range req.Items {
		amount, err := decimal.NewFromString(it.BaseAmount)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": formatItemError(i, "invalid base_amount")})
			return
		}
		items[i] = order.NewItem{
			GarmentType:       it.GarmentType,
			BaseAmount:        amount,
			DeliveryPriority:  it.DeliveryPriority,
			EstimatedDelivery: it.EstimatedDelivery,
		}
	}

	payers := make([]service.PayerRequest, len(req.Payers))
	for i, p := range req.Payers {
		id, err := uuid.Parse(p.PayerID)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": fmt.Sprintf("payers[%d]: invalid payer_id", i)})
			return
		}
		payers[i] = service.PayerRequest{
			PayerID:        id,
			Name:           p.Name,
			ItemPriorities: p.ItemPriorities,
			DueDate:        p.DueDate,
		}
	}

	snap, err := h.svc.CreateGroupOrder(r.Context(), service.CreateGroupOrderRequest{
		Name:             req.Name,
		PaymentMode:      enum.PaymentMode(req.PaymentMode),
		DeliveryStrategy: enum.DeliveryStrategy(req.DeliveryStrategy),
		PrimaryPayerID:   primary,
		PrimaryPayerName: req.PrimaryPayerName,
		DueDate:          req.DueDate,
		Items:            items,
		Payers:           payers,
		CreatedBy:        claims.Actor(),
	})
	if err != nil {
		writeServiceError(w, "create group order", err)
		return
	}

	writeJSON(w, http.StatusCreated, toGroupOrderResponse(snap))
}

// Get handles GET /group-orders/{gid}.
func (h *GroupOrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	gid := middleware.GroupOrderIDFromContext(r.Context())

	snap, err := h.svc.Snapshot(r.Context(), gid)
	if err != nil {
		writeServiceError(w, "get group order", err)
		return
	}

	writeJSON(w, http.StatusOK, toGroupOrderResponse(snap))
}

// PayerSummary handles GET /group-orders/{gid}/payers/{pid}.
func (h *GroupOrderHandler) PayerSummary(w http.ResponseWriter, r *http.Request) {
	gid := middleware.GroupOrderIDFromContext(r.Context())
	pid, ok := urlUUID(w, r, "pid", "payer")
	if !ok {
		return
	}

	summary, err := h.svc.PayerSummary(r.Context(), gid, pid)
	if err != nil {
		writeServiceError(w, "payer summary", err)
		return
	}

	writeJSON(w, http.StatusOK, toPayerResponse(summary))
}

// --- Helpers ---

func formatItemError(index int, msg string) string {
	return fmt.Sprintf("items[%d]: %s", index, msg)
}
