package events

import "time"

// Deposited is published after a successful deposit-class operation.
// Amount is the decimal string form of the credited value.
type Deposited struct {
	Principal  string    `json:"principal"`
	Amount     string    `json:"amount"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Withdrawn is published after a withdrawal completes, outbound transfer
// included.
type Withdrawn struct {
	Principal  string    `json:"principal"`
	Amount     string    `json:"amount"`
	OccurredAt time.Time `json:"occurred_at"`
}
