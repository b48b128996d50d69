// Package coupon holds the coupon domain model.
package coupon

import (
	"strings"
	"time"
)

// Coupon types. Token coupons credit tokens on redemption; discount
// coupons record a percentage consumed by the next purchase.
const (
	TypeToken    = "token"
	TypeDiscount = "discount"
)

// Coupon represents a redeemable code
type Coupon struct {
	ID              int64      `json:"id"`
	Code            string     `json:"code"`
	Type            string     `json:"type"`
	RewardTokens    int64      `json:"reward_tokens,omitempty"`
	DiscountPercent int64      `json:"discount_percent,omitempty"`
	MaxUses         int64      `json:"max_uses"`
	ExpiresAt       *time.Time `json:"expires_at,omitempty"`
	CreatedBy       *int64     `json:"created_by,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

// Redemption records one user redeeming one coupon, including what the
// redemption paid out. At most one per (coupon, user) pair, enforced by a
// unique index.
type Redemption struct {
	ID              int64     `json:"id"`
	CouponID        int64     `json:"coupon_id"`
	UserID          int64     `json:"user_id"`
	BenefitTokens   int64     `json:"benefit_tokens"`
	DiscountPercent int64     `json:"discount_percent,omitempty"`
	RedeemedAt      time.Time `json:"redeemed_at"`
}

// RedeemResult is the outcome of a successful redemption.
type RedeemResult struct {
	Code            string `json:"code"`
	Type            string `json:"type"`
	TokensAdded     int64  `json:"tokens_added"`
	DiscountPercent int64  `json:"discount_percent,omitempty"`
	Balance         int64  `json:"balance"`
}

// NormalizeCode canonicalizes user-entered codes: trimmed, uppercased,
// inner spaces removed. "welcome 50" and "WELCOME50" are the same code.
func NormalizeCode(code string) string {
	return strings.ReplaceAll(strings.ToUpper(strings.TrimSpace(code)), " ", "")
}

// Expired reports whether the coupon can no longer be redeemed due to age.
func (c *Coupon) Expired(now time.Time) bool {
	return c.ExpiresAt != nil && now.After(*c.ExpiresAt)
}
