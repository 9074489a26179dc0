package enum

// ── Group A: State machines (CHECK constrained in DB) ──

// EscrowStage is the payment phase an order item's escrow ledger is in.
type EscrowStage string

const (
	StageDeposit  EscrowStage = "DEPOSIT"
	StageFitting  EscrowStage = "FITTING"
	StageFinal    EscrowStage = "FINAL"
	StageReleased EscrowStage = "RELEASED"
)

// EscrowStages lists the stages in the only order they may be visited.
var EscrowStages = []EscrowStage{StageDeposit, StageFitting, StageFinal, StageReleased}

// Index returns the position of s in EscrowStages, or -1.
func (s EscrowStage) Index() int {
	for i, st := range EscrowStages {
		if st == s {
			return i
		}
	}
	return -1
}

// Valid reports whether s is a known stage.
func (s EscrowStage) Valid() bool { return s.Index() >= 0 }

// Next returns the stage after s. RELEASED has no successor.
func (s EscrowStage) Next() (EscrowStage, bool) {
	i := s.Index()
	if i < 0 || i == len(EscrowStages)-1 {
		return "", false
	}
	return EscrowStages[i+1], true
}

// ItemStatus is the lifecycle status of a single garment.
type ItemStatus string

const (
	ItemStatusPending          ItemStatus = "PENDING"
	ItemStatusDepositPaid      ItemStatus = "DEPOSIT_PAID"
	ItemStatusInProduction     ItemStatus = "IN_PRODUCTION"
	ItemStatusFittingReady     ItemStatus = "FITTING_READY"
	ItemStatusFittingApproved  ItemStatus = "FITTING_APPROVED"
	ItemStatusReadyForDelivery ItemStatus = "READY_FOR_DELIVERY"
	ItemStatusDelivered        ItemStatus = "DELIVERED"
	ItemStatusCompleted        ItemStatus = "COMPLETED"
	ItemStatusCancelled        ItemStatus = "CANCELLED"
	ItemStatusDisputed         ItemStatus = "DISPUTED"
)

// Valid reports whether s is a known item status.
func (s ItemStatus) Valid() bool {
	switch s {
	case ItemStatusPending, ItemStatusDepositPaid, ItemStatusInProduction,
		ItemStatusFittingReady, ItemStatusFittingApproved, ItemStatusReadyForDelivery,
		ItemStatusDelivered, ItemStatusCompleted, ItemStatusCancelled, ItemStatusDisputed:
		return true
	}
	return false
}

// Deliverable reports whether an item in status s may join a delivery schedule.
func (s ItemStatus) Deliverable() bool {
	return s == ItemStatusReadyForDelivery || s == ItemStatusCompleted
}

// Terminal reports whether no further transition is allowed from s.
func (s ItemStatus) Terminal() bool {
	return s == ItemStatusCompleted || s == ItemStatusCancelled
}

// ScheduleStatus is the status of a delivery event.
type ScheduleStatus string

const (
	ScheduleStatusScheduled ScheduleStatus = "SCHEDULED"
	ScheduleStatusReady     ScheduleStatus = "READY"
	ScheduleStatusInTransit ScheduleStatus = "IN_TRANSIT"
	ScheduleStatusDelivered ScheduleStatus = "DELIVERED"
	ScheduleStatusFailed    ScheduleStatus = "FAILED"
)

// Valid reports whether s is a known schedule status.
func (s ScheduleStatus) Valid() bool {
	switch s {
	case ScheduleStatusScheduled, ScheduleStatusReady, ScheduleStatusInTransit,
		ScheduleStatusDelivered, ScheduleStatusFailed:
		return true
	}
	return false
}

// Closed reports whether the schedule no longer accepts changes.
func (s ScheduleStatus) Closed() bool {
	return s == ScheduleStatusDelivered || s == ScheduleStatusFailed
}

// PayerStatus summarizes how far a payer is through their share.
type PayerStatus string

const (
	PayerStatusPending   PayerStatus = "PENDING"
	PayerStatusPartial   PayerStatus = "PARTIAL"
	PayerStatusCompleted PayerStatus = "COMPLETED"
	PayerStatusOverdue   PayerStatus = "OVERDUE"
)

// ── Group C: Borderline (CHECK constrained in DB) ──

// PaymentMode decides whether one payer or several carry the group order.
type PaymentMode string

const (
	PaymentModeSingle PaymentMode = "SINGLE"
	PaymentModeSplit  PaymentMode = "SPLIT"
)

// Valid reports whether m is a known payment mode.
func (m PaymentMode) Valid() bool {
	return m == PaymentModeSingle || m == PaymentModeSplit
}

// DeliveryStrategy is the default grouping hint for delivery schedules.
type DeliveryStrategy string

const (
	DeliveryAllTogether DeliveryStrategy = "ALL_TOGETHER"
	DeliveryStaggered   DeliveryStrategy = "STAGGERED"
)

// Valid reports whether d is a known strategy.
func (d DeliveryStrategy) Valid() bool {
	return d == DeliveryAllTogether || d == DeliveryStaggered
}

const (
	RoleCustomer  = "CUSTOMER"
	RoleStaff     = "STAFF"
	RoleModerator = "MODERATOR"
)

// ── Group B: Configurable labels (no DB constraint) ──

const (
	PaymentMethodMobileMoney = "MOBILE_MONEY"
	PaymentMethodCard        = "CARD"
	PaymentMethodTransfer    = "TRANSFER"
)

// ValidPaymentMethod reports whether m is an accepted payment method.
func ValidPaymentMethod(m string) bool {
	switch m {
	case PaymentMethodMobileMoney, PaymentMethodCard, PaymentMethodTransfer:
		return true
	}
	return false
}
