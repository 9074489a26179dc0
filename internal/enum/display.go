package enum

// Display is the presentation metadata attached to a variant.
type Display struct {
	Label string `json:"label"`
	Color string `json:"color"`
}

var stageDisplay = map[EscrowStage]Display{
	StageDeposit:  {Label: "Deposit", Color: "amber"},
	StageFitting:  {Label: "Fitting", Color: "blue"},
	StageFinal:    {Label: "Final payment", Color: "purple"},
	StageReleased: {Label: "Released", Color: "green"},
}

var itemStatusDisplay = map[ItemStatus]Display{
	ItemStatusPending:          {Label: "Awaiting deposit", Color: "gray"},
	ItemStatusDepositPaid:      {Label: "Deposit paid", Color: "amber"},
	ItemStatusInProduction:     {Label: "In production", Color: "blue"},
	ItemStatusFittingReady:     {Label: "Ready for fitting", Color: "indigo"},
	ItemStatusFittingApproved:  {Label: "Fitting approved", Color: "purple"},
	ItemStatusReadyForDelivery: {Label: "Ready for delivery", Color: "teal"},
	ItemStatusDelivered:        {Label: "Delivered", Color: "green"},
	ItemStatusCompleted:        {Label: "Completed", Color: "green"},
	ItemStatusCancelled:        {Label: "Cancelled", Color: "red"},
	ItemStatusDisputed:         {Label: "Disputed", Color: "orange"},
}

var payerStatusDisplay = map[PayerStatus]Display{
	PayerStatusPending:   {Label: "Not started", Color: "gray"},
	PayerStatusPartial:   {Label: "Partially paid", Color: "amber"},
	PayerStatusCompleted: {Label: "Paid", Color: "green"},
	PayerStatusOverdue:   {Label: "Overdue", Color: "red"},
}

// StageDisplay returns the label and colour for an escrow stage.
func StageDisplay(s EscrowStage) Display {
	if d, ok := stageDisplay[s]; ok {
		return d
	}
	return Display{Label: string(s), Color: "gray"}
}

// ItemStatusDisplay returns the label and colour for an item status.
func ItemStatusDisplay(s ItemStatus) Display {
	if d, ok := itemStatusDisplay[s]; ok {
		return d
	}
	return Display{Label: string(s), Color: "gray"}
}

// PayerStatusDisplay returns the label and colour for a payer status.
func PayerStatusDisplay(s PayerStatus) Display {
	if d, ok := payerStatusDisplay[s]; ok {
		return d
	}
	return Display{Label: string(s), Color: "gray"}
}
