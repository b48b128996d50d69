package couponstore

import (
	"context"
	"errors"

	"github.com/uptrace/bun"

	"github.com/picturescaler/server/pkg/coupon"
)

// ErrCouponNotFound is returned when a coupon lookup finds no matching record.
var ErrCouponNotFound = errors.New("coupon not found")

// ErrDuplicateRedemption is returned when the (coupon, user) unique index
// rejects an insert, i.e. a racing redemption won.
var ErrDuplicateRedemption = errors.New("coupon already redeemed by user")

// ErrDuplicateCode is returned when creating a coupon whose normalized
// code already exists.
var ErrDuplicateCode = errors.New("coupon code already exists")

// Store defines the interface for coupon data persistence
type Store interface {
	CreateCoupon(ctx context.Context, c *coupon.Coupon) error
	GetByCode(ctx context.Context, code string) (*coupon.Coupon, error)
	// GetByCodeForUpdate locks the coupon row for the duration of the
	// transaction, serializing concurrent redemptions of the same code.
	GetByCodeForUpdate(ctx context.Context, idb bun.IDB, code string) (*coupon.Coupon, error)
	CountRedemptions(ctx context.Context, idb bun.IDB, couponID int64) (int64, error)
	HasRedemption(ctx context.Context, idb bun.IDB, couponID, userID int64) (bool, error)
	InsertRedemption(ctx context.Context, idb bun.IDB, r *coupon.Redemption) error
	ListCoupons(ctx context.Context) ([]*CouponWithUsage, error)
	RecentRedemptions(ctx context.Context, limit int) ([]RedemptionDetail, error)
}

// CouponWithUsage is an admin listing row: the coupon plus its use count.
type CouponWithUsage struct {
	Coupon *coupon.Coupon `json:"coupon"`
	Uses   int64          `json:"uses"`
}

// RedemptionDetail is a redemption joined with code and user email for
// the admin view.
type RedemptionDetail struct {
	Redemption coupon.Redemption `json:"redemption"`
	Code       string            `json:"code"`
	UserEmail  string            `json:"user_email"`
}
