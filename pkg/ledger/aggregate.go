package ledger

import "sort"

// UserTotals are the per-user aggregates derived from the event log.
// Spent, Purchased and Rewards are token sums; Claims is the number of
// daily_claim events.
type UserTotals struct {
	Spent     int64 `json:"spent"`
	Purchased int64 `json:"purchased"`
	Claims    int64 `json:"claims"`
	Rewards   int64 `json:"rewards"`
}

// FreeAllowance is the number of tokens a user obtained without paying:
// the initial grant plus daily claims plus one-off rewards.
func (t UserTotals) FreeAllowance() int64 {
	return InitialGrant + t.Claims + t.Rewards
}

// SpendLimit is the maximum a user could legitimately have spent.
func (t UserTotals) SpendLimit() int64 {
	return t.FreeAllowance() + t.Purchased
}

// Suspicious reports whether a user spent more than they could have
// legitimately obtained. Trusted accounts are never flagged.
func Suspicious(t UserTotals, trusted bool) bool {
	if trusted {
		return false
	}
	return t.Spent > t.SpendLimit()
}

// Totals folds a user's events into UserTotals. Claims counts daily_claim
// events rather than summing their tokens, and Rewards covers reward_claim
// events only; tier bonuses do not extend the spend limit.
func Totals(events []Event) UserTotals {
	var t UserTotals
	for _, e := range events {
		switch e.Kind {
		case KindTokenSpent:
			t.Spent += e.Meta.Tokens
		case KindTokenPurchase:
			t.Purchased += e.Meta.Tokens
		case KindDailyClaim:
			t.Claims++
		case KindRewardClaim:
			t.Rewards += e.Meta.Tokens
		}
	}
	return t
}

// Replay recomputes a user's balance from scratch: the initial grant plus
// every credit minus every debit. It must match the live counter on the
// user row at all times.
func Replay(events []Event) int64 {
	balance := InitialGrant
	for _, e := range events {
		balance += e.CreditTokens()
		balance -= e.DebitTokens()
	}
	return balance
}

// ClaimedTiers returns the sorted set of tiers a user has ever claimed.
func ClaimedTiers(events []Event) []int64 {
	seen := map[int64]bool{}
	for _, e := range events {
		if e.Kind == KindTierClaim && e.Meta.Tier > 0 {
			seen[e.Meta.Tier] = true
		}
	}
	tiers := make([]int64, 0, len(seen))
	for tier := range seen {
		tiers = append(tiers, tier)
	}
	sort.Slice(tiers, func(i, j int) bool { return tiers[i] < tiers[j] })
	return tiers
}

// HasTierClaim reports whether a tier_claim event for the given tier exists.
func HasTierClaim(events []Event, tier int64) bool {
	for _, e := range events {
		if e.Kind == KindTierClaim && e.Meta.Tier == tier {
			return true
		}
	}
	return false
}

// FindPurchaseRef scans events (newest first) for a token_purchase whose
// order or transaction reference matches. Empty references never match.
func FindPurchaseRef(events []Event, orderID, txnID string) *Event {
	for i := range events {
		e := &events[i]
		if e.Kind != KindTokenPurchase {
			continue
		}
		if orderID != "" && e.Meta.OrderID == orderID {
			return e
		}
		if txnID != "" && e.Meta.TxnID == txnID {
			return e
		}
	}
	return nil
}
