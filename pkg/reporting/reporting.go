// Package reporting assembles read models over the event log: the user
// profile, the admin user listing and the platform activity series. It
// never mutates balances.
package reporting

import (
	"time"

	"github.com/picturescaler/server/pkg/identity"
	"github.com/picturescaler/server/pkg/ledger"
	"github.com/picturescaler/server/pkg/ledgerstore"
	"github.com/picturescaler/server/pkg/rewards"
)

// Profile is the authenticated user's account overview.
type Profile struct {
	User          *identity.User       `json:"user"`
	Balance       int64                `json:"balance"`
	Totals        ledger.UserTotals    `json:"totals"`
	FreeAllowance int64                `json:"free_allowance"`
	SpendLimit    int64                `json:"spend_limit"`
	Tiers         []rewards.TierStatus `json:"tiers"`
}

// Activity is one log entry rendered for the admin detail view.
type Activity struct {
	ID        int64     `json:"id"`
	Kind      string    `json:"kind"`
	Detail    string    `json:"detail"`
	CreatedAt time.Time `json:"created_at"`
}

// UserDetail is the admin view of one account.
type UserDetail struct {
	User       *identity.User    `json:"user"`
	Totals     ledger.UserTotals `json:"totals"`
	Suspicious bool              `json:"suspicious"`
	Purchases  []Activity        `json:"purchases"`
	Activities []Activity        `json:"activities"`
}

// UserSummary is one row of the admin user listing.
type UserSummary struct {
	User       *identity.User    `json:"user"`
	Totals     ledger.UserTotals `json:"totals"`
	Suspicious bool              `json:"suspicious"`
}

// MetricsReport is the bucketed platform activity for the admin dashboard.
type MetricsReport struct {
	Range  string                   `json:"range"`
	Points []ledgerstore.SeriesPoint `json:"points"`
	// Today holds the hourly breakdown of the current day for daily
	// ranges. Empty for the yearly range.
	Today []ledgerstore.SeriesPoint `json:"today,omitempty"`
}
