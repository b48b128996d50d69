// Package rewards holds the engagement reward rules: the daily claim
// cooldown and the one-time purchase tier bonuses.
package rewards

import "time"

// DailyCooldown is the minimum interval between two daily claims.
const DailyCooldown = 24 * time.Hour

// TierThresholds maps each tier to the lifetime purchased-token total
// required to claim it.
var TierThresholds = map[int64]int64{
	1: 300,
	2: 750,
	3: 2000,
}

// TierRewards maps each tier to the one-time token bonus it pays.
var TierRewards = map[int64]int64{
	1: 50,
	2: 150,
	3: 400,
}

// DailyResult is the outcome of a successful daily claim.
type DailyResult struct {
	TokensAdded int64     `json:"tokens_added"`
	Balance     int64     `json:"balance"`
	NextClaimAt time.Time `json:"next_claim_at"`
}

// DailyStatus reports whether the daily claim is currently available.
type DailyStatus struct {
	Available        bool       `json:"available"`
	NextClaimAt      *time.Time `json:"next_claim_at,omitempty"`
	RemainingSeconds int64      `json:"remaining_seconds"`
}

// TierResult is the outcome of a successful tier claim.
type TierResult struct {
	Tier           int64 `json:"tier"`
	TokensAdded    int64 `json:"tokens_added"`
	Balance        int64 `json:"balance"`
	PurchasedTotal int64 `json:"purchased_total"`
}

// TierStatus describes one tier for the eligibility overview.
type TierStatus struct {
	Tier      int64 `json:"tier"`
	Threshold int64 `json:"threshold"`
	Reward    int64 `json:"reward"`
	Eligible  bool  `json:"eligible"`
	Claimed   bool  `json:"claimed"`
}

// Tiers lists the configured tiers in ascending order.
func Tiers() []int64 {
	return []int64{1, 2, 3}
}
