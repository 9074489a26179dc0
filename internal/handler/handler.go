// Package handler exposes the group order service over HTTP.
package handler

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/tailorly/api/internal/delivery"
	"github.com/tailorly/api/internal/discount"
	"github.com/tailorly/api/internal/escrow"
	"github.com/tailorly/api/internal/gateway"
	"github.com/tailorly/api/internal/order"
	"github.com/tailorly/api/internal/payment"
	"github.com/tailorly/api/internal/service"
	"github.com/tailorly/api/internal/store"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("ERROR: failed to encode JSON response: %v", err)
	}
}

// urlUUID parses a chi URL parameter. On failure it writes a 400 naming the
// parameter and returns false.
func urlUUID(w http.ResponseWriter, r *http.Request, param, what string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid " + what + " ID"})
		return uuid.Nil, false
	}
	return id, true
}

func parseUUIDs(raw []string) ([]uuid.UUID, error) {
	out := make([]uuid.UUID, len(raw))
	for i, s := range raw {
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, err
		}
		out[i] = id
	}
	return out, nil
}

// writeServiceError maps a service error to its HTTP status. Anything not
// recognised is logged and reported as 500.
func writeServiceError(w http.ResponseWriter, op string, err error) {
	var declined *gateway.DeclinedError
	switch {
	case errors.Is(err, service.ErrPaymentNotApplied):
		// The message carries the gateway reference support needs to reconcile.
		log.Printf("ERROR: %s: %v", op, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
	case isValidationError(err):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case isNotFound(err):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case isConflict(err):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	case errors.As(err, &declined):
		writeJSON(w, http.StatusPaymentRequired, map[string]string{"error": err.Error()})
	case errors.Is(err, gateway.ErrUnavailable):
		log.Printf("WARN: %s: %v", op, err)
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "payment gateway unavailable"})
	default:
		log.Printf("ERROR: %s: %v", op, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}

func isValidationError(err error) bool {
	return errors.Is(err, service.ErrMissingName) ||
		errors.Is(err, service.ErrInvalidPaymentMode) ||
		errors.Is(err, service.ErrInvalidDeliveryStrategy) ||
		errors.Is(err, service.ErrUnknownPriority) ||
		errors.Is(err, service.ErrPayersNotAllowed) ||
		errors.Is(err, service.ErrInvalidStage) ||
		errors.Is(err, service.ErrInvalidMethod) ||
		errors.Is(err, service.ErrIdempotencyKeyRequired) ||
		errors.Is(err, order.ErrEmptyItems) ||
		errors.Is(err, order.ErrMissingGarment) ||
		errors.Is(err, order.ErrInvalidAmount) ||
		errors.Is(err, order.ErrInvalidPriority) ||
		errors.Is(err, order.ErrDuplicatePriority) ||
		errors.Is(err, order.ErrInvalidStatus) ||
		errors.Is(err, escrow.ErrInvalidAmount) ||
		errors.Is(err, escrow.ErrInvalidTotal) ||
		errors.Is(err, payment.ErrNoItems) ||
		errors.Is(err, payment.ErrDuplicateItem) ||
		errors.Is(err, payment.ErrUnknownItem) ||
		errors.Is(err, payment.ErrNoPayers) ||
		errors.Is(err, payment.ErrDuplicatePayer) ||
		errors.Is(err, payment.ErrUnassignedItem) ||
		errors.Is(err, payment.ErrItemAssignedTwice) ||
		errors.Is(err, payment.ErrMissingPayerName) ||
		errors.Is(err, payment.ErrPrimaryPayerRequired) ||
		errors.Is(err, delivery.ErrNoItems) ||
		errors.Is(err, delivery.ErrDuplicateItem) ||
		errors.Is(err, delivery.ErrUnknownItem) ||
		errors.Is(err, delivery.ErrInvalidDate) ||
		errors.Is(err, delivery.ErrInvalidStatus) ||
		errors.Is(err, delivery.ErrNoDeliveryTimes) ||
		errors.Is(err, discount.ErrInvalidInput)
}

func isNotFound(err error) bool {
	return errors.Is(err, store.ErrNotFound) ||
		errors.Is(err, service.ErrItemNotFound) ||
		errors.Is(err, payment.ErrUnknownPayer) ||
		errors.Is(err, delivery.ErrUnknownSchedule)
}

func isConflict(err error) bool {
	var (
		stageErr      *escrow.InvalidStageError
		overErr       *escrow.OverpaymentError
		notReadyErr   *escrow.StageNotReadyError
		mismatchErr   *payment.PaymentMismatchError
		notDeliverErr *delivery.ItemNotDeliverableError
		scheduledErr  *delivery.ItemAlreadyScheduledError
	)
	return errors.Is(err, store.ErrConcurrentModification) ||
		errors.Is(err, service.ErrDuplicatePayment) ||
		errors.Is(err, service.ErrItemCancelled) ||
		errors.Is(err, order.ErrInvalidTransition) ||
		errors.Is(err, escrow.ErrDisputed) ||
		errors.Is(err, escrow.ErrNotDisputed) ||
		errors.Is(err, escrow.ErrDisputeActorMismatch) ||
		errors.Is(err, payment.ErrAlreadyAttached) ||
		errors.Is(err, payment.ErrForeignItem) ||
		errors.Is(err, payment.ErrNothingDue) ||
		errors.Is(err, payment.ErrPayerNotResponsible) ||
		errors.Is(err, delivery.ErrScheduleClosed) ||
		errors.Is(err, delivery.ErrItemNotInSchedule) ||
		errors.Is(err, delivery.ErrInvalidTransition) ||
		errors.Is(err, delivery.ErrNotAllDeliverable) ||
		errors.Is(err, delivery.ErrNothingToSchedule) ||
		errors.As(err, &stageErr) ||
		errors.As(err, &overErr) ||
		errors.As(err, &notReadyErr) ||
		errors.As(err, &mismatchErr) ||
		errors.As(err, &notDeliverErr) ||
		errors.As(err, &scheduledErr)
}
