// Package billing holds the purchase crediting and job debit domain model.
package billing

import (
	"github.com/shopspring/decimal"
)

// GrantRequest credits purchased tokens to a user. The payment gateway
// has already authenticated and settled the payment; this service only
// records it. OrderID/TxnID are the gateway's references and drive
// duplicate-delivery detection.
type GrantRequest struct {
	UserID   int64           `json:"user_id" validate:"required,gt=0"`
	Tokens   int64           `json:"tokens" validate:"required,gt=0"`
	Provider string          `json:"provider" validate:"required"`
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
	OrderID  string          `json:"order_id"`
	TxnID    string          `json:"txn_id"`
}

// GrantResult reports the outcome of a credit. A redelivered payment is a
// success with AlreadyProcessed set and no balance change.
type GrantResult struct {
	AlreadyProcessed bool  `json:"already_processed"`
	TokensAdded      int64 `json:"tokens_added"`
	Balance          int64 `json:"balance"`
}

// JobDebit describes a processing job to charge for: one token per file.
type JobDebit struct {
	Files       int64  `json:"files" validate:"required,gt=0"`
	Orientation string `json:"orientation"`
	Scale       int64  `json:"scale"`
}

// DebitResult reports the balance after a successful job debit.
type DebitResult struct {
	Charged   int64 `json:"charged"`
	Remaining int64 `json:"remaining"`
}

// Scale bounds for processing jobs. Out-of-range requests are clamped,
// not rejected.
const (
	MinScale = 1
	MaxScale = 5
)

// Orientations accepted for processing jobs. Anything unrecognized falls
// back to portrait.
const (
	OrientationPortrait  = "portrait"
	OrientationLandscape = "landscape"
)

// Normalize clamps the scale into bounds and canonicalizes orientation.
func (j *JobDebit) Normalize() {
	if j.Scale < MinScale {
		j.Scale = MinScale
	}
	if j.Scale > MaxScale {
		j.Scale = MaxScale
	}
	if j.Orientation != OrientationLandscape {
		j.Orientation = OrientationPortrait
	}
}
