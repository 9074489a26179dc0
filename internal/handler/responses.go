package handler

import (
	"time"

	"github.com/google/uuid"
	"github.com/tailorly/api/internal/delivery"
	"github.com/tailorly/api/internal/discount"
	"github.com/tailorly/api/internal/enum"
	"github.com/tailorly/api/internal/escrow"
	"github.com/tailorly/api/internal/order"
	"github.com/tailorly/api/internal/payment"
	"github.com/tailorly/api/internal/service"
)

// Money is rendered with StringFixed(2) everywhere below.

type discountResponse struct {
	Tier            int    `json:"tier"`
	Percentage      string `json:"percentage"`
	ItemCount       int    `json:"item_count"`
	OriginalTotal   string `json:"original_total"`
	DiscountedTotal string `json:"discounted_total"`
	Savings         string `json:"savings"`
	Estimated       bool   `json:"estimated"`
}

type transitionResponse struct {
	Stage enum.EscrowStage `json:"stage"`
	At    time.Time        `json:"at"`
	Actor string           `json:"actor"`
}

type ledgerResponse struct {
	ItemID             uuid.UUID            `json:"item_id"`
	Total              string               `json:"total"`
	Stage              enum.EscrowStage     `json:"stage"`
	StageDisplay       enum.Display         `json:"stage_display"`
	DepositRequired    string               `json:"deposit_required"`
	DepositPaid        string               `json:"deposit_paid"`
	FittingRequired    string               `json:"fitting_required"`
	FittingPaid        string               `json:"fitting_paid"`
	FinalRequired      string               `json:"final_required"`
	FinalPaid          string               `json:"final_paid"`
	TotalPaid          string               `json:"total_paid"`
	Outstanding        string               `json:"outstanding"`
	ProgressPercentage string               `json:"progress_percentage"`
	Disputed           bool                 `json:"disputed"`
	DisputedBy         string               `json:"disputed_by,omitempty"`
	History            []transitionResponse `json:"history"`
	Version            int64                `json:"version"`
}

type itemResponse struct {
	ID                uuid.UUID       `json:"id"`
	GarmentType       string          `json:"garment_type"`
	BaseAmount        string          `json:"base_amount"`
	DiscountAmount    string          `json:"discount_amount"`
	FinalAmount       string          `json:"final_amount"`
	DeliveryPriority  int             `json:"delivery_priority"`
	Status            enum.ItemStatus `json:"status"`
	StatusDisplay     enum.Display    `json:"status_display"`
	EstimatedDelivery *time.Time      `json:"estimated_delivery"`
	ActualDelivery    *time.Time      `json:"actual_delivery"`
	Version           int64           `json:"version"`
	Escrow            *ledgerResponse `json:"escrow,omitempty"`
}

type payerResponse struct {
	PayerID           uuid.UUID        `json:"payer_id"`
	Name              string           `json:"name"`
	ItemIDs           []uuid.UUID      `json:"item_ids"`
	DueDate           *time.Time       `json:"due_date"`
	ResponsibleAmount string           `json:"responsible_amount"`
	PaidAmount        string           `json:"paid_amount"`
	OutstandingAmount string           `json:"outstanding_amount"`
	RefundableAmount  string           `json:"refundable_amount"`
	Status            enum.PayerStatus `json:"status"`
	StatusDisplay     enum.Display     `json:"status_display"`
}

type scheduleResponse struct {
	ID            uuid.UUID           `json:"id"`
	ScheduledDate time.Time           `json:"scheduled_date"`
	ItemIDs       []uuid.UUID         `json:"item_ids"`
	Notes         string              `json:"notes"`
	Status        enum.ScheduleStatus `json:"status"`
	Version       int64               `json:"version"`
}

type summaryResponse struct {
	TotalAmount        string `json:"total_amount"`
	PaidAmount         string `json:"paid_amount"`
	OutstandingAmount  string `json:"outstanding_amount"`
	RefundableAmount   string `json:"refundable_amount"`
	ProgressPercentage string `json:"progress_percentage"`
}

type groupOrderResponse struct {
	ID               uuid.UUID             `json:"id"`
	Name             string                `json:"name"`
	PaymentMode      enum.PaymentMode      `json:"payment_mode"`
	DeliveryStrategy enum.DeliveryStrategy `json:"delivery_strategy"`
	PrimaryPayerID   uuid.UUID             `json:"primary_payer_id"`
	CreatedAt        time.Time             `json:"created_at"`
	Version          int64                 `json:"version"`
	Discount         discountResponse      `json:"discount"`
	Payments         summaryResponse       `json:"payments"`
	Items            []itemResponse        `json:"items"`
	Payers           []payerResponse       `json:"payers"`
	Schedules        []scheduleResponse    `json:"schedules"`
}

type lineResponse struct {
	ItemID uuid.UUID `json:"item_id"`
	Amount string    `json:"amount"`
}

type paymentResultResponse struct {
	PaymentID       uuid.UUID        `json:"payment_id"`
	Reference       string           `json:"reference"`
	Lines           []lineResponse   `json:"lines"`
	Ledgers         []ledgerResponse `json:"ledgers"`
	PromotedItemIDs []uuid.UUID      `json:"promoted_item_ids"`
	Payments        summaryResponse  `json:"payments"`
}

type paymentRecordResponse struct {
	ID         uuid.UUID        `json:"id"`
	PaymentID  uuid.UUID        `json:"payment_id"`
	ItemID     uuid.UUID        `json:"item_id"`
	PayerID    uuid.UUID        `json:"payer_id"`
	Stage      enum.EscrowStage `json:"stage"`
	Amount     string           `json:"amount"`
	Method     string           `json:"method"`
	Reference  string           `json:"reference"`
	RecordedAt time.Time        `json:"recorded_at"`
}

type quoteResponse struct {
	Stage enum.EscrowStage `json:"stage"`
	Lines []lineResponse   `json:"lines"`
	Total string           `json:"total"`
}

// --- Converters ---

func toDiscountResponse(r discount.Result) discountResponse {
	return discountResponse{
		Tier:            r.Tier,
		Percentage:      r.Percentage.StringFixed(2),
		ItemCount:       r.ItemCount,
		OriginalTotal:   r.OriginalTotal.StringFixed(2),
		DiscountedTotal: r.DiscountedTotal.StringFixed(2),
		Savings:         r.Savings.StringFixed(2),
		Estimated:       r.Estimated,
	}
}

func toLedgerResponse(l *escrow.Ledger) ledgerResponse {
	history := make([]transitionResponse, len(l.History))
	for i, t := range l.History {
		history[i] = transitionResponse{Stage: t.Stage, At: t.At, Actor: t.Actor}
	}
	return ledgerResponse{
		ItemID:             l.ItemID,
		Total:              l.Total.StringFixed(2),
		Stage:              l.Stage,
		StageDisplay:       enum.StageDisplay(l.Stage),
		DepositRequired:    l.Required(enum.StageDeposit).StringFixed(2),
		DepositPaid:        l.DepositPaid.StringFixed(2),
		FittingRequired:    l.Required(enum.StageFitting).StringFixed(2),
		FittingPaid:        l.FittingPaid.StringFixed(2),
		FinalRequired:      l.Required(enum.StageFinal).StringFixed(2),
		FinalPaid:          l.FinalPaid.StringFixed(2),
		TotalPaid:          l.TotalPaid().StringFixed(2),
		Outstanding:        l.Outstanding().StringFixed(2),
		ProgressPercentage: l.ProgressPercentage().StringFixed(2),
		Disputed:           l.Disputed,
		DisputedBy:         l.DisputedBy,
		History:            history,
		Version:            l.Version,
	}
}

func toLedgerResponses(ls []*escrow.Ledger) []ledgerResponse {
	out := make([]ledgerResponse, len(ls))
	for i, l := range ls {
		out[i] = toLedgerResponse(l)
	}
	return out
}

func toItemResponse(it order.Item, l *escrow.Ledger) itemResponse {
	resp := itemResponse{
		ID:                it.ID,
		GarmentType:       it.GarmentType,
		BaseAmount:        it.BaseAmount.StringFixed(2),
		DiscountAmount:    it.DiscountAmount.StringFixed(2),
		FinalAmount:       it.FinalAmount.StringFixed(2),
		DeliveryPriority:  it.DeliveryPriority,
		Status:            it.Status,
		StatusDisplay:     enum.ItemStatusDisplay(it.Status),
		EstimatedDelivery: it.EstimatedDelivery,
		ActualDelivery:    it.ActualDelivery,
		Version:           it.Version,
	}
	if l != nil {
		lr := toLedgerResponse(l)
		resp.Escrow = &lr
	}
	return resp
}

func toPayerResponse(p payment.Responsibility) payerResponse {
	ids := p.ItemIDs
	if ids == nil {
		ids = []uuid.UUID{}
	}
	return payerResponse{
		PayerID:           p.PayerID,
		Name:              p.Name,
		ItemIDs:           ids,
		DueDate:           p.DueDate,
		ResponsibleAmount: p.ResponsibleAmount.StringFixed(2),
		PaidAmount:        p.PaidAmount.StringFixed(2),
		OutstandingAmount: p.OutstandingAmount.StringFixed(2),
		RefundableAmount:  p.RefundableAmount.StringFixed(2),
		Status:            p.Status,
		StatusDisplay:     enum.PayerStatusDisplay(p.Status),
	}
}

func toScheduleResponse(s delivery.Schedule) scheduleResponse {
	return scheduleResponse{
		ID:            s.ID,
		ScheduledDate: s.ScheduledDate,
		ItemIDs:       s.ItemIDs,
		Notes:         s.Notes,
		Status:        s.Status,
		Version:       s.Version,
	}
}

func toSummaryResponse(s payment.Summary) summaryResponse {
	return summaryResponse{
		TotalAmount:        s.TotalAmount.StringFixed(2),
		PaidAmount:         s.PaidAmount.StringFixed(2),
		OutstandingAmount:  s.OutstandingAmount.StringFixed(2),
		RefundableAmount:   s.RefundableAmount.StringFixed(2),
		ProgressPercentage: s.ProgressPercentage.StringFixed(2),
	}
}

func toLineResponses(lines []payment.Line) []lineResponse {
	out := make([]lineResponse, len(lines))
	for i, ln := range lines {
		out[i] = lineResponse{ItemID: ln.ItemID, Amount: ln.Amount.StringFixed(2)}
	}
	return out
}

func toGroupOrderResponse(s *service.Snapshot) groupOrderResponse {
	ledgers := make(map[uuid.UUID]*escrow.Ledger, len(s.Ledgers))
	for _, l := range s.Ledgers {
		ledgers[l.ItemID] = l
	}

	items := make([]itemResponse, len(s.Items))
	for i, it := range s.Items {
		items[i] = toItemResponse(it, ledgers[it.ID])
	}
	payers := make([]payerResponse, len(s.Payers))
	for i, p := range s.Payers {
		payers[i] = toPayerResponse(p)
	}
	schedules := make([]scheduleResponse, len(s.Schedules))
	for i, sc := range s.Schedules {
		schedules[i] = toScheduleResponse(sc)
	}

	g := s.GroupOrder
	return groupOrderResponse{
		ID:               g.ID,
		Name:             g.Name,
		PaymentMode:      g.PaymentMode,
		DeliveryStrategy: g.DeliveryStrategy,
		PrimaryPayerID:   g.PrimaryPayerID,
		CreatedAt:        g.CreatedAt,
		Version:          g.Version,
		Discount:         toDiscountResponse(s.Discount),
		Payments:         toSummaryResponse(s.Payments),
		Items:            items,
		Payers:           payers,
		Schedules:        schedules,
	}
}

func toPaymentResultResponse(res *service.PaymentResult) paymentResultResponse {
	promoted := res.Promoted
	if promoted == nil {
		promoted = []uuid.UUID{}
	}
	return paymentResultResponse{
		PaymentID:       res.PaymentID,
		Reference:       res.Reference,
		Lines:           toLineResponses(res.Lines),
		Ledgers:         toLedgerResponses(res.Ledgers),
		PromotedItemIDs: promoted,
		Payments:        toSummaryResponse(res.Summary),
	}
}

func toPaymentRecordResponse(rec payment.Record) paymentRecordResponse {
	return paymentRecordResponse{
		ID:         rec.ID,
		PaymentID:  rec.PaymentID,
		ItemID:     rec.ItemID,
		PayerID:    rec.PayerID,
		Stage:      rec.Stage,
		Amount:     rec.Amount.StringFixed(2),
		Method:     rec.Method,
		Reference:  rec.Reference,
		RecordedAt: rec.RecordedAt,
	}
}
