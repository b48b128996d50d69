package couponstore

import (
	"time"

	"github.com/uptrace/bun"

	"github.com/picturescaler/server/pkg/coupon"
)

// CouponDao is a data access object that maps directly to the 'coupons' table in PostgreSQL.
type CouponDao struct {
	bun.BaseModel   `bun:"table:coupons,alias:c"`
	ID              int64      `bun:"id,pk,autoincrement"`
	Code            string     `bun:"code,unique,notnull,type:varchar(64)"`
	Type            string     `bun:"type,notnull,type:varchar(16)"`
	RewardTokens    int64      `bun:"reward_tokens,notnull,default:0"`
	DiscountPercent int64      `bun:"discount_percent,notnull,default:0"`
	MaxUses         int64      `bun:"max_uses,notnull,default:1"`
	ExpiresAt       *time.Time `bun:"expires_at"`
	CreatedBy       *int64     `bun:"created_by"`
	CreatedAt       time.Time  `bun:"created_at,nullzero,default:current_timestamp"`
}

// RedemptionDao is a data access object that maps directly to the 'coupon_redemptions' table in PostgreSQL.
type RedemptionDao struct {
	bun.BaseModel   `bun:"table:coupon_redemptions,alias:cr"`
	ID              int64     `bun:"id,pk,autoincrement"`
	CouponID        int64     `bun:"coupon_id,notnull"`
	UserID          int64     `bun:"user_id,notnull"`
	BenefitTokens   int64     `bun:"benefit_tokens,notnull,default:0"`
	DiscountPercent int64     `bun:"discount_percent,notnull,default:0"`
	RedeemedAt      time.Time `bun:"redeemed_at,nullzero,default:current_timestamp"`
}

// toCouponDao converts a coupon.Coupon to CouponDao.
func toCouponDao(c *coupon.Coupon) *CouponDao {
	return &CouponDao{
		ID:              c.ID,
		Code:            coupon.NormalizeCode(c.Code),
		Type:            c.Type,
		RewardTokens:    c.RewardTokens,
		DiscountPercent: c.DiscountPercent,
		MaxUses:         c.MaxUses,
		ExpiresAt:       c.ExpiresAt,
		CreatedBy:       c.CreatedBy,
		CreatedAt:       c.CreatedAt,
	}
}

// toCoupon converts a CouponDao to coupon.Coupon.
func toCoupon(dao *CouponDao) *coupon.Coupon {
	return &coupon.Coupon{
		ID:              dao.ID,
		Code:            dao.Code,
		Type:            dao.Type,
		RewardTokens:    dao.RewardTokens,
		DiscountPercent: dao.DiscountPercent,
		MaxUses:         dao.MaxUses,
		ExpiresAt:       dao.ExpiresAt,
		CreatedBy:       dao.CreatedBy,
		CreatedAt:       dao.CreatedAt,
	}
}

// toRedemption converts a RedemptionDao to coupon.Redemption.
func toRedemption(dao *RedemptionDao) coupon.Redemption {
	return coupon.Redemption{
		ID:              dao.ID,
		CouponID:        dao.CouponID,
		UserID:          dao.UserID,
		BenefitTokens:   dao.BenefitTokens,
		DiscountPercent: dao.DiscountPercent,
		RedeemedAt:      dao.RedeemedAt,
	}
}
