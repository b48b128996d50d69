// Package ledger defines the append-only event log vocabulary and the pure
// derivations computed over it. Events are facts: they are written once,
// never updated and never deleted. Balances and reports are projections of
// this log.
package ledger

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Kind identifies what a ledger event records.
type Kind string

const (
	KindRegister      Kind = "register"
	KindLogin         Kind = "login"
	KindUpload        Kind = "upload"
	KindTokenSpent    Kind = "token_spent"
	KindTokenPurchase Kind = "token_purchase"
	KindDailyClaim    Kind = "daily_claim"
	KindRewardClaim   Kind = "reward_claim"
	KindTierClaim     Kind = "tier_claim"
	KindCouponRedeem  Kind = "coupon_redeem"
	KindCouponCreate  Kind = "coupon_create"
)

// InitialGrant is the number of tokens every account starts with.
const InitialGrant int64 = 3

// Event is a single immutable entry in the audit log.
// UserID is nil for events not tied to an account.
type Event struct {
	ID        int64
	UserID    *int64
	Kind      Kind
	Meta      Meta
	CreatedAt time.Time
}

// Meta is the event metadata bag. Every field is optional; which fields are
// populated depends on the event kind. It is stored as jsonb and must decode
// tolerantly: a missing or malformed field yields its zero value so that
// aggregate derivations stay total.
type Meta struct {
	Tokens          int64           `json:"tokens,omitempty"`
	Reason          string          `json:"reason,omitempty"`
	Amount          decimal.Decimal `json:"amount,omitempty"`
	Currency        string          `json:"currency,omitempty"`
	Provider        string          `json:"provider,omitempty"`
	OrderID         string          `json:"order_id,omitempty"`
	TxnID           string          `json:"txn_id,omitempty"`
	Files           int64           `json:"files,omitempty"`
	Orientation     string          `json:"orientation,omitempty"`
	Scale           int64           `json:"scale,omitempty"`
	Tier            int64           `json:"tier,omitempty"`
	Reward          int64           `json:"reward,omitempty"`
	PurchasedTotal  int64           `json:"purchased_total,omitempty"`
	Code            string          `json:"code,omitempty"`
	Type            string          `json:"type,omitempty"`
	Discount        int64           `json:"discount,omitempty"`
	Source          string          `json:"source,omitempty"`
	MaxUses         int64           `json:"max_uses,omitempty"`
	Days            int64           `json:"days,omitempty"`
	RewardTokens    int64           `json:"reward_tokens,omitempty"`
	DiscountPercent int64           `json:"discount_percent,omitempty"`
}

// UnmarshalJSON decodes metadata field by field so one malformed value
// (a string where a number is expected, a truncated object written by an
// older release) zeroes that field instead of failing the whole event.
func (m *Meta) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		*m = Meta{}
		return nil
	}

	decoded := Meta{}
	decodeField(raw, "tokens", &decoded.Tokens)
	decodeField(raw, "reason", &decoded.Reason)
	decodeField(raw, "amount", &decoded.Amount)
	decodeField(raw, "currency", &decoded.Currency)
	decodeField(raw, "provider", &decoded.Provider)
	decodeField(raw, "order_id", &decoded.OrderID)
	decodeField(raw, "txn_id", &decoded.TxnID)
	decodeField(raw, "files", &decoded.Files)
	decodeField(raw, "orientation", &decoded.Orientation)
	decodeField(raw, "scale", &decoded.Scale)
	decodeField(raw, "tier", &decoded.Tier)
	decodeField(raw, "reward", &decoded.Reward)
	decodeField(raw, "purchased_total", &decoded.PurchasedTotal)
	decodeField(raw, "code", &decoded.Code)
	decodeField(raw, "type", &decoded.Type)
	decodeField(raw, "discount", &decoded.Discount)
	decodeField(raw, "source", &decoded.Source)
	decodeField(raw, "max_uses", &decoded.MaxUses)
	decodeField(raw, "days", &decoded.Days)
	decodeField(raw, "reward_tokens", &decoded.RewardTokens)
	decodeField(raw, "discount_percent", &decoded.DiscountPercent)

	*m = decoded
	return nil
}

func decodeField[T any](raw map[string]json.RawMessage, key string, dst *T) {
	data, ok := raw[key]
	if !ok {
		return
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return
	}
	*dst = v
}

// CreditTokens returns the number of tokens the event added to its user's
// balance, zero for non-crediting kinds.
func (e Event) CreditTokens() int64 {
	switch e.Kind {
	case KindTokenPurchase, KindDailyClaim, KindRewardClaim:
		return e.Meta.Tokens
	case KindTierClaim:
		return e.Meta.Reward
	default:
		return 0
	}
}

// DebitTokens returns the number of tokens the event removed from its
// user's balance, zero for non-debiting kinds.
func (e Event) DebitTokens() int64 {
	if e.Kind == KindTokenSpent {
		return e.Meta.Tokens
	}
	return 0
}
