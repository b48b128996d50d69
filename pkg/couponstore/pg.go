package couponstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/driver/pgdriver"

	"github.com/picturescaler/server/pkg/coupon"
)

type pgStore struct {
	db *bun.DB
}

// NewStore creates a new postgres implementation of the coupon store
func NewStore(db *bun.DB) *pgStore {
	return &pgStore{db: db}
}

func (s *pgStore) CreateCoupon(ctx context.Context, c *coupon.Coupon) error {
	dao := toCouponDao(c)

	_, err := s.db.NewInsert().
		Model(dao).
		Exec(ctx)
	if err != nil {
		if isIntegrityViolation(err) {
			return ErrDuplicateCode
		}
		return fmt.Errorf("failed to create coupon: %w", err)
	}

	c.ID = dao.ID
	c.Code = dao.Code
	return nil
}

func (s *pgStore) GetByCode(ctx context.Context, code string) (*coupon.Coupon, error) {
	return s.getByCode(ctx, s.db, code, false)
}

func (s *pgStore) GetByCodeForUpdate(ctx context.Context, idb bun.IDB, code string) (*coupon.Coupon, error) {
	return s.getByCode(ctx, idb, code, true)
}

func (s *pgStore) getByCode(ctx context.Context, idb bun.IDB, code string, lock bool) (*coupon.Coupon, error) {
	if idb == nil {
		idb = s.db
	}

	dao := new(CouponDao)
	query := idb.NewSelect().
		Model(dao).
		Where("c.code = ?", coupon.NormalizeCode(code))
	if lock {
		query = query.For("UPDATE")
	}

	err := query.Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCouponNotFound
		}
		return nil, fmt.Errorf("failed to get coupon: %w", err)
	}
	return toCoupon(dao), nil
}

func (s *pgStore) CountRedemptions(ctx context.Context, idb bun.IDB, couponID int64) (int64, error) {
	if idb == nil {
		idb = s.db
	}

	count, err := idb.NewSelect().
		Model((*RedemptionDao)(nil)).
		Where("cr.coupon_id = ?", couponID).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count redemptions: %w", err)
	}
	return int64(count), nil
}

func (s *pgStore) HasRedemption(ctx context.Context, idb bun.IDB, couponID, userID int64) (bool, error) {
	if idb == nil {
		idb = s.db
	}

	exists, err := idb.NewSelect().
		Model((*RedemptionDao)(nil)).
		Where("cr.coupon_id = ?", couponID).
		Where("cr.user_id = ?", userID).
		Exists(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to check redemption: %w", err)
	}
	return exists, nil
}

func (s *pgStore) InsertRedemption(ctx context.Context, idb bun.IDB, r *coupon.Redemption) error {
	if idb == nil {
		idb = s.db
	}

	dao := &RedemptionDao{
		CouponID:        r.CouponID,
		UserID:          r.UserID,
		BenefitTokens:   r.BenefitTokens,
		DiscountPercent: r.DiscountPercent,
	}
	_, err := idb.NewInsert().
		Model(dao).
		Exec(ctx)
	if err != nil {
		if isIntegrityViolation(err) {
			return ErrDuplicateRedemption
		}
		return fmt.Errorf("failed to insert redemption: %w", err)
	}

	r.ID = dao.ID
	r.RedeemedAt = dao.RedeemedAt
	return nil
}

func (s *pgStore) ListCoupons(ctx context.Context) ([]*CouponWithUsage, error) {
	type row struct {
		CouponDao
		Uses int64 `bun:"uses"`
	}

	var rows []row
	err := s.db.NewSelect().
		TableExpr("coupons AS c").
		ColumnExpr("c.*").
		ColumnExpr("COUNT(cr.id) AS uses").
		Join("LEFT JOIN coupon_redemptions AS cr ON cr.coupon_id = c.id").
		GroupExpr("c.id").
		OrderExpr("c.created_at DESC").
		Scan(ctx, &rows)
	if err != nil {
		return nil, fmt.Errorf("failed to list coupons: %w", err)
	}

	results := make([]*CouponWithUsage, len(rows))
	for i := range rows {
		results[i] = &CouponWithUsage{
			Coupon: toCoupon(&rows[i].CouponDao),
			Uses:   rows[i].Uses,
		}
	}
	return results, nil
}

func (s *pgStore) RecentRedemptions(ctx context.Context, limit int) ([]RedemptionDetail, error) {
	if limit <= 0 {
		limit = 50
	}

	type row struct {
		RedemptionDao
		Code      string `bun:"code"`
		UserEmail string `bun:"user_email"`
	}

	var rows []row
	err := s.db.NewSelect().
		TableExpr("coupon_redemptions AS cr").
		ColumnExpr("cr.*").
		ColumnExpr("c.code AS code").
		ColumnExpr("u.email AS user_email").
		Join("JOIN coupons AS c ON c.id = cr.coupon_id").
		Join("JOIN users AS u ON u.id = cr.user_id").
		OrderExpr("cr.redeemed_at DESC").
		Limit(limit).
		Scan(ctx, &rows)
	if err != nil {
		return nil, fmt.Errorf("failed to list redemptions: %w", err)
	}

	results := make([]RedemptionDetail, len(rows))
	for i := range rows {
		results[i] = RedemptionDetail{
			Redemption: toRedemption(&rows[i].RedemptionDao),
			Code:       rows[i].Code,
			UserEmail:  rows[i].UserEmail,
		}
	}
	return results, nil
}

func isIntegrityViolation(err error) bool {
	var pgErr pgdriver.Error
	return errors.As(err, &pgErr) && pgErr.IntegrityViolation()
}
