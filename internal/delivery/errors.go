package delivery

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/tailorly/api/internal/enum"
)

var (
	ErrNoItems           = errors.New("at least one item is required")
	ErrDuplicateItem     = errors.New("item listed more than once")
	ErrUnknownItem       = errors.New("item does not belong to this group order")
	ErrInvalidDate       = errors.New("scheduled date is required")
	ErrUnknownSchedule   = errors.New("schedule does not belong to this group order")
	ErrScheduleClosed    = errors.New("schedule is already delivered or failed")
	ErrItemNotInSchedule = errors.New("item is not part of the schedule")
	ErrInvalidTransition = errors.New("invalid schedule status transition")
	ErrInvalidStatus     = errors.New("invalid schedule status")
	ErrNotAllDeliverable = errors.New("all items must be deliverable before a single delivery is proposed")
	ErrNothingToSchedule = errors.New("no deliverable unscheduled items")
	ErrNoDeliveryTimes   = errors.New("at least one delivery time is required")
)

// ItemNotDeliverableError is returned when an item's status (or, with the
// payment gate on, its escrow stage) keeps it out of delivery.
type ItemNotDeliverableError struct {
	ItemID uuid.UUID
	Status enum.ItemStatus
	Stage  enum.EscrowStage
}

func (e *ItemNotDeliverableError) Error() string {
	if e.Status.Deliverable() {
		return fmt.Sprintf("item %s: not deliverable: escrow at %s, final stage required", e.ItemID, e.Stage)
	}
	return fmt.Sprintf("item %s: not deliverable in status %s", e.ItemID, e.Status)
}

// ItemAlreadyScheduledError is returned when an item is claimed by another
// schedule that has not failed.
type ItemAlreadyScheduledError struct {
	ItemID     uuid.UUID
	ScheduleID uuid.UUID
}

func (e *ItemAlreadyScheduledError) Error() string {
	return fmt.Sprintf("item %s: already in schedule %s", e.ItemID, e.ScheduleID)
}
