package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/uptrace/bun"
	"go.uber.org/zap"

	apperrors "github.com/picturescaler/server/pkg/app/errors"
	"github.com/picturescaler/server/pkg/coupon"
	"github.com/picturescaler/server/pkg/couponstore"
	"github.com/picturescaler/server/pkg/identity"
	"github.com/picturescaler/server/pkg/ledger"
	"github.com/picturescaler/server/pkg/userstore"
)

// mockDB runs the transaction body directly, without a database.
type mockDB struct{}

func (m *mockDB) RunInTx(ctx context.Context, _ *sql.TxOptions, fn func(ctx context.Context, tx bun.Tx) error) error {
	return fn(ctx, bun.Tx{})
}

type mockUserStore struct {
	user     *identity.User
	credited int64
}

func (m *mockUserStore) GetUserForUpdate(_ context.Context, _ bun.IDB, id int64) (*identity.User, error) {
	if m.user == nil || m.user.ID != id {
		return nil, userstore.ErrUserNotFound
	}
	u := *m.user
	return &u, nil
}

func (m *mockUserStore) CreditTokens(_ context.Context, _ bun.IDB, _, delta int64) (int64, error) {
	m.credited += delta
	m.user.Tokens += delta
	return m.user.Tokens, nil
}

type mockCouponStore struct {
	coupon      *coupon.Coupon
	uses        int64
	used        bool
	insertErr   error
	createErr   error
	coupons     []*couponstore.CouponWithUsage
	redemptions []couponstore.RedemptionDetail

	created  *coupon.Coupon
	inserted []*coupon.Redemption
}

func (m *mockCouponStore) CreateCoupon(_ context.Context, c *coupon.Coupon) error {
	if m.createErr != nil {
		return m.createErr
	}
	c.ID = 1
	m.created = c
	return nil
}

func (m *mockCouponStore) GetByCodeForUpdate(_ context.Context, _ bun.IDB, code string) (*coupon.Coupon, error) {
	if m.coupon == nil || m.coupon.Code != code {
		return nil, couponstore.ErrCouponNotFound
	}
	c := *m.coupon
	return &c, nil
}

func (m *mockCouponStore) CountRedemptions(_ context.Context, _ bun.IDB, _ int64) (int64, error) {
	return m.uses, nil
}

func (m *mockCouponStore) HasRedemption(_ context.Context, _ bun.IDB, _, _ int64) (bool, error) {
	return m.used, nil
}

func (m *mockCouponStore) InsertRedemption(_ context.Context, _ bun.IDB, r *coupon.Redemption) error {
	if m.insertErr != nil {
		return m.insertErr
	}
	m.inserted = append(m.inserted, r)
	return nil
}

func (m *mockCouponStore) ListCoupons(_ context.Context) ([]*couponstore.CouponWithUsage, error) {
	return m.coupons, nil
}

func (m *mockCouponStore) RecentRedemptions(_ context.Context, _ int) ([]couponstore.RedemptionDetail, error) {
	return m.redemptions, nil
}

type mockEventStore struct {
	appended []*ledger.Event
}

func (m *mockEventStore) Append(_ context.Context, _ bun.IDB, events ...*ledger.Event) error {
	m.appended = append(m.appended, events...)
	return nil
}

func tokenCoupon() *coupon.Coupon {
	return &coupon.Coupon{
		ID:           11,
		Code:         "WELCOME50",
		Type:         coupon.TypeToken,
		RewardTokens: 50,
		MaxUses:      100,
	}
}

func TestRedeem_TokenCoupon(t *testing.T) {
	users := &mockUserStore{user: &identity.User{ID: 7, Tokens: 3}}
	coupons := &mockCouponStore{coupon: tokenCoupon()}
	events := &mockEventStore{}
	svc := NewService(&mockDB{}, users, coupons, events, zap.NewNop())

	// Normalization makes "welcome 50" hit WELCOME50.
	resp, err := svc.Redeem(context.Background(), 7, "welcome 50")
	if err != nil {
		t.Fatalf("Redeem() failed: %v", err)
	}

	if resp.Code != "WELCOME50" || resp.TokensAdded != 50 || resp.Balance != 53 {
		t.Fatalf("unexpected result: %+v", resp)
	}
	if users.credited != 50 {
		t.Fatalf("credited %d, want 50", users.credited)
	}
	if len(coupons.inserted) != 1 {
		t.Fatalf("inserted %d redemptions, want 1", len(coupons.inserted))
	}
	if coupons.inserted[0].BenefitTokens != 50 {
		t.Fatalf("redemption benefit = %d, want 50", coupons.inserted[0].BenefitTokens)
	}

	if len(events.appended) != 2 {
		t.Fatalf("appended %d events, want coupon_redeem + reward_claim", len(events.appended))
	}
	redeem, reward := events.appended[0], events.appended[1]
	if redeem.Kind != ledger.KindCouponRedeem || redeem.Meta.Code != "WELCOME50" {
		t.Fatalf("unexpected coupon_redeem event: %+v", redeem)
	}
	if reward.Kind != ledger.KindRewardClaim || reward.Meta.Tokens != 50 || reward.Meta.Source != "coupon" {
		t.Fatalf("unexpected reward_claim event: %+v", reward)
	}
}

func TestRedeem_DiscountCoupon(t *testing.T) {
	users := &mockUserStore{user: &identity.User{ID: 7, Tokens: 3}}
	coupons := &mockCouponStore{coupon: &coupon.Coupon{
		ID:              12,
		Code:            "TENOFF",
		Type:            coupon.TypeDiscount,
		DiscountPercent: 10,
		MaxUses:         5,
	}}
	events := &mockEventStore{}
	svc := NewService(&mockDB{}, users, coupons, events, zap.NewNop())

	resp, err := svc.Redeem(context.Background(), 7, "TENOFF")
	if err != nil {
		t.Fatalf("Redeem() failed: %v", err)
	}

	if resp.TokensAdded != 0 || resp.DiscountPercent != 10 {
		t.Fatalf("unexpected result: %+v", resp)
	}
	if users.credited != 0 {
		t.Fatalf("discount coupon credited %d tokens", users.credited)
	}
	if len(coupons.inserted) != 1 || coupons.inserted[0].DiscountPercent != 10 {
		t.Fatalf("redemption discount not recorded: %+v", coupons.inserted)
	}
	if len(events.appended) != 1 || events.appended[0].Kind != ledger.KindCouponRedeem {
		t.Fatalf("expected single coupon_redeem event, got %d", len(events.appended))
	}
}

func TestRedeem_Outcomes(t *testing.T) {
	expired := time.Now().UTC().Add(-time.Hour)

	tests := []struct {
		name     string
		user     *identity.User
		coupons  *mockCouponStore
		code     string
		category apperrors.Category
		sentinel error
	}{
		{
			name:     "unknown code",
			user:     &identity.User{ID: 7},
			coupons:  &mockCouponStore{},
			code:     "NOPE",
			category: apperrors.CategoryResourceNotFound,
			sentinel: ErrCouponNotFound,
		},
		{
			name:     "banned user",
			user:     &identity.User{ID: 7, IsBanned: true},
			coupons:  &mockCouponStore{coupon: tokenCoupon()},
			code:     "WELCOME50",
			category: apperrors.CategoryForbidden,
			sentinel: ErrUserBanned,
		},
		{
			name: "expired coupon",
			user: &identity.User{ID: 7},
			coupons: &mockCouponStore{coupon: &coupon.Coupon{
				ID: 11, Code: "WELCOME50", Type: coupon.TypeToken,
				RewardTokens: 50, MaxUses: 100, ExpiresAt: &expired,
			}},
			code:     "WELCOME50",
			category: apperrors.CategoryGone,
			sentinel: ErrCouponExpired,
		},
		{
			name:     "exhausted coupon",
			user:     &identity.User{ID: 7},
			coupons:  &mockCouponStore{coupon: tokenCoupon(), uses: 100},
			code:     "WELCOME50",
			category: apperrors.CategoryDataConflict,
			sentinel: ErrCouponExhausted,
		},
		{
			name:     "already used",
			user:     &identity.User{ID: 7},
			coupons:  &mockCouponStore{coupon: tokenCoupon(), used: true},
			code:     "WELCOME50",
			category: apperrors.CategoryDataConflict,
			sentinel: ErrAlreadyUsed,
		},
		{
			name: "unsupported type",
			user: &identity.User{ID: 7},
			coupons: &mockCouponStore{coupon: &coupon.Coupon{
				ID: 11, Code: "WELCOME50", Type: "mystery", MaxUses: 100,
			}},
			code:     "WELCOME50",
			category: apperrors.CategoryDataError,
			sentinel: ErrInvalidType,
		},
		{
			name:     "duplicate insert race",
			user:     &identity.User{ID: 7},
			coupons:  &mockCouponStore{coupon: tokenCoupon(), insertErr: couponstore.ErrDuplicateRedemption},
			code:     "WELCOME50",
			category: apperrors.CategoryDataConflict,
			sentinel: ErrAlreadyUsed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			users := &mockUserStore{user: tt.user}
			svc := NewService(&mockDB{}, users, tt.coupons, &mockEventStore{}, zap.NewNop())

			_, err := svc.Redeem(context.Background(), 7, tt.code)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !apperrors.Is(err, tt.category) {
				t.Fatalf("expected %v, got %v", tt.category, err)
			}
			if !errors.Is(err, tt.sentinel) {
				t.Fatalf("expected %v to be wrapped, got %v", tt.sentinel, err)
			}
			if users.credited != 0 {
				t.Fatalf("failed redemption credited %d tokens", users.credited)
			}
		})
	}
}

func TestCreate_TokenCoupon(t *testing.T) {
	coupons := &mockCouponStore{}
	events := &mockEventStore{}
	svc := NewService(&mockDB{}, &mockUserStore{}, coupons, events, zap.NewNop())

	resp, err := svc.Create(context.Background(), 1, &CreateRequest{
		Code:         "spring 24",
		Type:         coupon.TypeToken,
		RewardTokens: 25,
		MaxUses:      10,
		Days:         30,
	})
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}

	if resp.Code != "SPRING24" {
		t.Fatalf("code not normalized: %q", resp.Code)
	}
	if resp.ExpiresAt == nil {
		t.Fatal("expected expiry to be set")
	}
	if got := time.Until(*resp.ExpiresAt); got < 29*24*time.Hour || got > 31*24*time.Hour {
		t.Fatalf("expiry %v not about 30 days out", got)
	}
	if len(events.appended) != 1 || events.appended[0].Kind != ledger.KindCouponCreate {
		t.Fatalf("expected coupon_create event, got %+v", events.appended)
	}
}

func TestCreate_Validation(t *testing.T) {
	svc := NewService(&mockDB{}, &mockUserStore{}, &mockCouponStore{}, &mockEventStore{}, zap.NewNop())

	tests := []struct {
		name string
		req  CreateRequest
	}{
		{"empty code", CreateRequest{Type: coupon.TypeToken, RewardTokens: 5, MaxUses: 1}},
		{"zero max uses", CreateRequest{Code: "X", Type: coupon.TypeToken, RewardTokens: 5}},
		{"token without reward", CreateRequest{Code: "X", Type: coupon.TypeToken, MaxUses: 1}},
		{"discount percent too low", CreateRequest{Code: "X", Type: coupon.TypeDiscount, MaxUses: 1}},
		{"discount percent too high", CreateRequest{Code: "X", Type: coupon.TypeDiscount, DiscountPercent: 150, MaxUses: 1}},
		{"bad type", CreateRequest{Code: "X", Type: "mystery", MaxUses: 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), 1, &tt.req)
			if err == nil {
				t.Fatal("expected validation error, got nil")
			}
			if !apperrors.Is(err, apperrors.CategoryDataError) {
				t.Fatalf("expected CategoryDataError, got %v", err)
			}
		})
	}
}

func TestCreate_DuplicateCode(t *testing.T) {
	coupons := &mockCouponStore{createErr: couponstore.ErrDuplicateCode}
	svc := NewService(&mockDB{}, &mockUserStore{}, coupons, &mockEventStore{}, zap.NewNop())

	_, err := svc.Create(context.Background(), 1, &CreateRequest{
		Code:         "WELCOME50",
		Type:         coupon.TypeToken,
		RewardTokens: 50,
		MaxUses:      100,
	})
	if err == nil {
		t.Fatal("expected conflict error, got nil")
	}
	if !apperrors.Is(err, apperrors.CategoryDataConflict) {
		t.Fatalf("expected CategoryDataConflict, got %v", err)
	}
}
