package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"go.uber.org/zap"

	"github.com/picturescaler/server/internal/metrics"
	apperrors "github.com/picturescaler/server/pkg/app/errors"
	"github.com/picturescaler/server/pkg/coupon"
	"github.com/picturescaler/server/pkg/couponstore"
	"github.com/picturescaler/server/pkg/identity"
	"github.com/picturescaler/server/pkg/ledger"
	"github.com/picturescaler/server/pkg/userstore"
)

var (
	ErrCouponNotFound  = errors.New("coupon not found")
	ErrCouponExpired   = errors.New("coupon expired")
	ErrCouponExhausted = errors.New("coupon exhausted")
	ErrAlreadyUsed     = errors.New("coupon already used")
	ErrInvalidType     = errors.New("invalid coupon type")
	ErrUserBanned      = errors.New("account suspended")
)

// Redemption outcomes used as metric labels.
const (
	outcomeSuccess     = "success"
	outcomeNotFound    = "not_found"
	outcomeForbidden   = "forbidden"
	outcomeExpired     = "expired"
	outcomeExhausted   = "exhausted"
	outcomeAlreadyUsed = "already_used"
	outcomeInvalidType = "invalid_type"
	outcomeError       = "error"
)

// DB is the transactional boundary every balance-changing unit of work
// runs in. *bun.DB satisfies it.
type DB interface {
	RunInTx(ctx context.Context, opts *sql.TxOptions, fn func(ctx context.Context, tx bun.Tx) error) error
}

// UserStore is the narrow user interface for the coupon service.
type UserStore interface {
	GetUserForUpdate(ctx context.Context, idb bun.IDB, id int64) (*identity.User, error)
	CreditTokens(ctx context.Context, idb bun.IDB, id, delta int64) (int64, error)
}

// CouponStore is the narrow coupon persistence interface for the service.
type CouponStore interface {
	CreateCoupon(ctx context.Context, c *coupon.Coupon) error
	GetByCodeForUpdate(ctx context.Context, idb bun.IDB, code string) (*coupon.Coupon, error)
	CountRedemptions(ctx context.Context, idb bun.IDB, couponID int64) (int64, error)
	HasRedemption(ctx context.Context, idb bun.IDB, couponID, userID int64) (bool, error)
	InsertRedemption(ctx context.Context, idb bun.IDB, r *coupon.Redemption) error
	ListCoupons(ctx context.Context) ([]*couponstore.CouponWithUsage, error)
	RecentRedemptions(ctx context.Context, limit int) ([]couponstore.RedemptionDetail, error)
}

// EventStore is the narrow event log interface for the coupon service.
type EventStore interface {
	Append(ctx context.Context, idb bun.IDB, events ...*ledger.Event) error
}

// CreateRequest is the admin request to mint a new coupon.
type CreateRequest struct {
	Code            string `json:"code" validate:"required"`
	Type            string `json:"type" validate:"required,oneof=token discount"`
	RewardTokens    int64  `json:"reward_tokens"`
	DiscountPercent int64  `json:"discount_percent"`
	MaxUses         int64  `json:"max_uses" validate:"required,gte=1"`
	Days            int64  `json:"days" validate:"gte=0"`
}

// Listing is the admin coupon overview.
type Listing struct {
	Coupons           []*couponstore.CouponWithUsage `json:"coupons"`
	RecentRedemptions []couponstore.RedemptionDetail `json:"recent_redemptions"`
}

// Service defines the interface for the coupon business logic
type Service interface {
	// Redeem runs the redemption state machine for one user and code.
	Redeem(ctx context.Context, userID int64, code string) (*coupon.RedeemResult, error)
	// Create mints a new coupon on behalf of an admin.
	Create(ctx context.Context, adminID int64, req *CreateRequest) (*coupon.Coupon, error)
	// List returns the admin coupon overview.
	List(ctx context.Context) (*Listing, error)
}

type couponService struct {
	db      DB
	users   UserStore
	coupons CouponStore
	events  EventStore
	logger  *zap.Logger
}

// NewService creates a new coupon service
func NewService(db DB, users UserStore, coupons CouponStore, events EventStore, logger *zap.Logger) Service {
	return &couponService{
		db:      db,
		users:   users,
		coupons: coupons,
		events:  events,
		logger:  logger,
	}
}

// Redeem checks the code through the full state machine inside one
// transaction: the user row and coupon row stay locked until commit, and
// the unique (coupon, user) index backstops any race that slips through.
func (s *couponService) Redeem(ctx context.Context, userID int64, code string) (*coupon.RedeemResult, error) {
	normalized := coupon.NormalizeCode(code)
	if normalized == "" {
		metrics.CouponRedemptions.WithLabelValues(outcomeNotFound).Inc()
		return nil, apperrors.BadRequestError(nil, "coupon code is required")
	}

	result := &coupon.RedeemResult{}
	outcome := outcomeError
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		usr, err := s.users.GetUserForUpdate(ctx, tx, userID)
		if err != nil {
			if errors.Is(err, userstore.ErrUserNotFound) {
				return apperrors.ResourceNotFoundError(err, "user not found")
			}
			return fmt.Errorf("failed to lock user: %w", err)
		}

		cpn, err := s.coupons.GetByCodeForUpdate(ctx, tx, normalized)
		if err != nil {
			if errors.Is(err, couponstore.ErrCouponNotFound) {
				outcome = outcomeNotFound
				return apperrors.ResourceNotFoundError(ErrCouponNotFound, "invalid coupon code")
			}
			return fmt.Errorf("failed to lock coupon: %w", err)
		}

		if usr.IsBanned {
			outcome = outcomeForbidden
			return apperrors.ForbiddenError(ErrUserBanned, "account suspended")
		}
		if cpn.Expired(time.Now().UTC()) {
			outcome = outcomeExpired
			return apperrors.GoneError(ErrCouponExpired, "coupon expired")
		}

		uses, err := s.coupons.CountRedemptions(ctx, tx, cpn.ID)
		if err != nil {
			return fmt.Errorf("failed to count redemptions: %w", err)
		}
		if uses >= cpn.MaxUses {
			outcome = outcomeExhausted
			return apperrors.ConflictError(ErrCouponExhausted, "coupon fully redeemed")
		}

		used, err := s.coupons.HasRedemption(ctx, tx, cpn.ID, usr.ID)
		if err != nil {
			return fmt.Errorf("failed to check prior redemption: %w", err)
		}
		if used {
			outcome = outcomeAlreadyUsed
			return apperrors.ConflictError(ErrAlreadyUsed, "coupon already used")
		}

		var tokensAdded, discountPercent int64
		switch cpn.Type {
		case coupon.TypeToken:
			tokensAdded = cpn.RewardTokens
		case coupon.TypeDiscount:
			discountPercent = cpn.DiscountPercent
		default:
			outcome = outcomeInvalidType
			return apperrors.BadRequestError(ErrInvalidType, "unsupported coupon type")
		}

		redemption := &coupon.Redemption{
			CouponID:        cpn.ID,
			UserID:          usr.ID,
			BenefitTokens:   tokensAdded,
			DiscountPercent: discountPercent,
		}
		if err := s.coupons.InsertRedemption(ctx, tx, redemption); err != nil {
			if errors.Is(err, couponstore.ErrDuplicateRedemption) {
				outcome = outcomeAlreadyUsed
				return apperrors.ConflictError(ErrAlreadyUsed, "coupon already used")
			}
			return fmt.Errorf("failed to record redemption: %w", err)
		}

		balance := usr.Tokens
		if tokensAdded > 0 {
			balance, err = s.users.CreditTokens(ctx, tx, usr.ID, tokensAdded)
			if err != nil {
				return fmt.Errorf("failed to credit tokens: %w", err)
			}
		}

		uid := usr.ID
		events := []*ledger.Event{{
			UserID: &uid,
			Kind:   ledger.KindCouponRedeem,
			Meta: ledger.Meta{
				Code:     cpn.Code,
				Type:     cpn.Type,
				Tokens:   tokensAdded,
				Discount: discountPercent,
			},
		}}
		if tokensAdded > 0 {
			events = append(events, &ledger.Event{
				UserID: &uid,
				Kind:   ledger.KindRewardClaim,
				Meta: ledger.Meta{
					Tokens: tokensAdded,
					Source: "coupon",
					Code:   cpn.Code,
				},
			})
		}
		if err := s.events.Append(ctx, tx, events...); err != nil {
			return fmt.Errorf("failed to append redemption events: %w", err)
		}

		result.Code = cpn.Code
		result.Type = cpn.Type
		result.TokensAdded = tokensAdded
		result.DiscountPercent = discountPercent
		result.Balance = balance
		return nil
	})
	if err != nil {
		metrics.CouponRedemptions.WithLabelValues(outcome).Inc()
		return nil, err
	}

	metrics.CouponRedemptions.WithLabelValues(outcomeSuccess).Inc()
	if result.TokensAdded > 0 {
		metrics.TokensGranted.WithLabelValues("coupon").Add(float64(result.TokensAdded))
	}
	return result, nil
}

func (s *couponService) Create(ctx context.Context, adminID int64, req *CreateRequest) (*coupon.Coupon, error) {
	normalized := coupon.NormalizeCode(req.Code)
	if normalized == "" {
		return nil, apperrors.BadRequestError(nil, "coupon code is required")
	}
	if req.MaxUses < 1 {
		return nil, apperrors.BadRequestError(nil, "max_uses must be at least 1")
	}

	switch req.Type {
	case coupon.TypeToken:
		if req.RewardTokens < 1 {
			return nil, apperrors.BadRequestError(nil, "reward_tokens must be at least 1")
		}
	case coupon.TypeDiscount:
		if req.DiscountPercent < 1 || req.DiscountPercent > 100 {
			return nil, apperrors.BadRequestError(nil, "discount_percent must be between 1 and 100")
		}
	default:
		return nil, apperrors.BadRequestError(ErrInvalidType, "unsupported coupon type")
	}

	cpn := &coupon.Coupon{
		Code:            normalized,
		Type:            req.Type,
		RewardTokens:    req.RewardTokens,
		DiscountPercent: req.DiscountPercent,
		MaxUses:         req.MaxUses,
		CreatedBy:       &adminID,
	}
	if req.Days > 0 {
		expires := time.Now().UTC().Add(time.Duration(req.Days) * 24 * time.Hour)
		cpn.ExpiresAt = &expires
	}

	if err := s.coupons.CreateCoupon(ctx, cpn); err != nil {
		if errors.Is(err, couponstore.ErrDuplicateCode) {
			return nil, apperrors.ConflictError(err, "coupon code already exists")
		}
		return nil, fmt.Errorf("failed to create coupon: %w", err)
	}

	event := &ledger.Event{
		UserID: &adminID,
		Kind:   ledger.KindCouponCreate,
		Meta: ledger.Meta{
			Code:            cpn.Code,
			Type:            cpn.Type,
			MaxUses:         cpn.MaxUses,
			Days:            req.Days,
			RewardTokens:    cpn.RewardTokens,
			DiscountPercent: cpn.DiscountPercent,
		},
	}
	if err := s.events.Append(ctx, nil, event); err != nil {
		// The coupon exists; a missing audit row is worth a warning, not
		// a failed request.
		s.logger.Warn("failed to append coupon_create event",
			zap.String("code", cpn.Code),
			zap.Error(err))
	}

	return cpn, nil
}

func (s *couponService) List(ctx context.Context) (*Listing, error) {
	coupons, err := s.coupons.ListCoupons(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list coupons: %w", err)
	}
	recent, err := s.coupons.RecentRedemptions(ctx, 50)
	if err != nil {
		return nil, fmt.Errorf("failed to list redemptions: %w", err)
	}
	return &Listing{Coupons: coupons, RecentRedemptions: recent}, nil
}
