package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/uptrace/bun"
	"go.uber.org/zap"

	apperrors "github.com/picturescaler/server/pkg/app/errors"
	"github.com/picturescaler/server/pkg/identity"
	"github.com/picturescaler/server/pkg/ledger"
	"github.com/picturescaler/server/pkg/ledgerstore"
	"github.com/picturescaler/server/pkg/reporting"
	"github.com/picturescaler/server/pkg/rewards"
	"github.com/picturescaler/server/pkg/userstore"
)

const (
	activityLimit = 50

	// maxRangeDays caps the daily series at five years.
	maxRangeDays = 1825
)

// UserStore is the narrow user interface for the reporting service.
type UserStore interface {
	GetUserByID(ctx context.Context, id int64) (*identity.User, error)
	ListUsersWithTotals(ctx context.Context, q userstore.ListQuery) ([]*userstore.UserWithTotals, error)
	SetBanned(ctx context.Context, id int64, banned bool) error
	SetTrusted(ctx context.Context, id int64, trusted bool) error
}

// EventStore is the narrow event log interface for the reporting service.
type EventStore interface {
	ListByUser(ctx context.Context, idb bun.IDB, userID int64, limit int, kinds ...ledger.Kind) ([]ledger.Event, error)
	UserTotals(ctx context.Context, userID int64) (ledger.UserTotals, error)
	Series(ctx context.Context, unit string, from, to time.Time) ([]ledgerstore.SeriesPoint, error)
}

// Service defines the interface for the reporting business logic
type Service interface {
	// Me assembles the authenticated user's account overview.
	Me(ctx context.Context, userID int64) (*reporting.Profile, error)
	// ListUsers returns the admin user listing.
	ListUsers(ctx context.Context, q userstore.ListQuery) ([]reporting.UserSummary, error)
	// UserDetail returns the admin view of one account.
	UserDetail(ctx context.Context, userID int64) (*reporting.UserDetail, error)
	// Metrics buckets platform activity for the given range ("30d", "5y").
	Metrics(ctx context.Context, rng string) (*reporting.MetricsReport, error)
	// SetBanned flips the ban flag on an account.
	SetBanned(ctx context.Context, userID int64, banned bool) error
	// SetTrusted flips the trusted flag on an account.
	SetTrusted(ctx context.Context, userID int64, trusted bool) error
}

type reportingService struct {
	users  UserStore
	events EventStore
	logger *zap.Logger
}

// NewService creates a new reporting service
func NewService(users UserStore, events EventStore, logger *zap.Logger) Service {
	return &reportingService{
		users:  users,
		events: events,
		logger: logger,
	}
}

func (s *reportingService) Me(ctx context.Context, userID int64) (*reporting.Profile, error) {
	usr, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, userstore.ErrUserNotFound) {
			return nil, apperrors.ResourceNotFoundError(err, "user not found")
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	totals, err := s.events.UserTotals(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to compute totals: %w", err)
	}

	tierEvents, err := s.events.ListByUser(ctx, nil, userID, 0, ledger.KindTierClaim)
	if err != nil {
		return nil, fmt.Errorf("failed to load tier claims: %w", err)
	}

	statuses := make([]rewards.TierStatus, 0, len(rewards.Tiers()))
	for _, tier := range rewards.Tiers() {
		statuses = append(statuses, rewards.TierStatus{
			Tier:      tier,
			Threshold: rewards.TierThresholds[tier],
			Reward:    rewards.TierRewards[tier],
			Eligible:  totals.Purchased >= rewards.TierThresholds[tier],
			Claimed:   ledger.HasTierClaim(tierEvents, tier),
		})
	}

	return &reporting.Profile{
		User:          usr,
		Balance:       usr.Tokens,
		Totals:        totals,
		FreeAllowance: totals.FreeAllowance(),
		SpendLimit:    totals.SpendLimit(),
		Tiers:         statuses,
	}, nil
}

func (s *reportingService) ListUsers(ctx context.Context, q userstore.ListQuery) ([]reporting.UserSummary, error) {
	rows, err := s.users.ListUsersWithTotals(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	summaries := make([]reporting.UserSummary, 0, len(rows))
	for _, row := range rows {
		summaries = append(summaries, reporting.UserSummary{
			User:       row.User,
			Totals:     row.Totals,
			Suspicious: row.Suspicious(),
		})
	}
	return summaries, nil
}

func (s *reportingService) UserDetail(ctx context.Context, userID int64) (*reporting.UserDetail, error) {
	usr, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, userstore.ErrUserNotFound) {
			return nil, apperrors.ResourceNotFoundError(err, "user not found")
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	totals, err := s.events.UserTotals(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to compute totals: %w", err)
	}

	purchases, err := s.events.ListByUser(ctx, nil, userID, activityLimit, ledger.KindTokenPurchase)
	if err != nil {
		return nil, fmt.Errorf("failed to load purchases: %w", err)
	}
	activities, err := s.events.ListByUser(ctx, nil, userID, activityLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to load activities: %w", err)
	}

	return &reporting.UserDetail{
		User:       usr,
		Totals:     totals,
		Suspicious: ledger.Suspicious(totals, usr.IsTrusted),
		Purchases:  renderActivities(purchases),
		Activities: renderActivities(activities),
	}, nil
}

// Metrics accepts "Nd" for a daily series over the last N days (clamped
// to five years) plus an hourly breakdown of today, or "5y" for a yearly
// series.
func (s *reportingService) Metrics(ctx context.Context, rng string) (*reporting.MetricsReport, error) {
	rng = strings.TrimSpace(strings.ToLower(rng))
	if rng == "" {
		rng = "30d"
	}
	now := time.Now().UTC()

	if rng == "5y" {
		from := time.Date(now.Year()-4, time.January, 1, 0, 0, 0, 0, time.UTC)
		points, err := s.events.Series(ctx, "year", from, now)
		if err != nil {
			return nil, err
		}
		return &reporting.MetricsReport{Range: rng, Points: points}, nil
	}

	days, err := strconv.Atoi(strings.TrimSuffix(rng, "d"))
	if err != nil || !strings.HasSuffix(rng, "d") {
		return nil, apperrors.BadRequestError(err, "range must be Nd or 5y")
	}
	if days < 1 {
		days = 1
	}
	if days > maxRangeDays {
		days = maxRangeDays
	}

	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	from := midnight.AddDate(0, 0, -(days - 1))

	points, err := s.events.Series(ctx, "day", from, now)
	if err != nil {
		return nil, err
	}
	today, err := s.events.Series(ctx, "hour", midnight, now)
	if err != nil {
		return nil, err
	}

	return &reporting.MetricsReport{
		Range:  fmt.Sprintf("%dd", days),
		Points: fillDays(points, from, days),
		Today:  today,
	}, nil
}

// fillDays expands a sparse day series into one point per day of the
// window. Charts render days without activity as zeroes instead of gaps.
func fillDays(points []ledgerstore.SeriesPoint, from time.Time, days int) []ledgerstore.SeriesPoint {
	byDay := make(map[time.Time]ledgerstore.SeriesPoint, len(points))
	for _, p := range points {
		byDay[p.Bucket.UTC().Truncate(24*time.Hour)] = p
	}

	filled := make([]ledgerstore.SeriesPoint, 0, days)
	for i := 0; i < days; i++ {
		day := from.AddDate(0, 0, i)
		p, ok := byDay[day]
		if !ok {
			p = ledgerstore.SeriesPoint{Bucket: day}
		}
		filled = append(filled, p)
	}
	return filled
}

func (s *reportingService) SetBanned(ctx context.Context, userID int64, banned bool) error {
	if err := s.users.SetBanned(ctx, userID, banned); err != nil {
		if errors.Is(err, userstore.ErrUserNotFound) {
			return apperrors.ResourceNotFoundError(err, "user not found")
		}
		return fmt.Errorf("failed to update ban flag: %w", err)
	}
	return nil
}

func (s *reportingService) SetTrusted(ctx context.Context, userID int64, trusted bool) error {
	if err := s.users.SetTrusted(ctx, userID, trusted); err != nil {
		if errors.Is(err, userstore.ErrUserNotFound) {
			return apperrors.ResourceNotFoundError(err, "user not found")
		}
		return fmt.Errorf("failed to update trusted flag: %w", err)
	}
	return nil
}

func renderActivities(events []ledger.Event) []reporting.Activity {
	out := make([]reporting.Activity, 0, len(events))
	for i := range events {
		e := &events[i]
		out = append(out, reporting.Activity{
			ID:        e.ID,
			Kind:      string(e.Kind),
			Detail:    describe(e),
			CreatedAt: e.CreatedAt,
		})
	}
	return out
}

// describe renders one event as a human-readable line for the admin view.
func describe(e *ledger.Event) string {
	switch e.Kind {
	case ledger.KindRegister:
		return fmt.Sprintf("Registered with %d welcome tokens", e.Meta.Tokens)
	case ledger.KindLogin:
		return "Logged in"
	case ledger.KindUpload:
		return fmt.Sprintf("Uploaded %d file(s), %s at scale %d",
			e.Meta.Files, e.Meta.Orientation, e.Meta.Scale)
	case ledger.KindTokenSpent:
		return fmt.Sprintf("Spent %d token(s) on %s", e.Meta.Tokens, e.Meta.Reason)
	case ledger.KindTokenPurchase:
		if e.Meta.Amount.IsZero() {
			return fmt.Sprintf("Purchased %d tokens via %s", e.Meta.Tokens, e.Meta.Provider)
		}
		return fmt.Sprintf("Purchased %d tokens for %s %s via %s",
			e.Meta.Tokens, e.Meta.Amount.String(), e.Meta.Currency, e.Meta.Provider)
	case ledger.KindDailyClaim:
		return fmt.Sprintf("Claimed %d daily token(s)", e.Meta.Tokens)
	case ledger.KindRewardClaim:
		if e.Meta.Source != "" {
			return fmt.Sprintf("Received %d token(s) from %s", e.Meta.Tokens, e.Meta.Source)
		}
		return fmt.Sprintf("Received %d reward token(s)", e.Meta.Tokens)
	case ledger.KindTierClaim:
		return fmt.Sprintf("Claimed tier %d bonus of %d tokens", e.Meta.Tier, e.Meta.Reward)
	case ledger.KindCouponRedeem:
		return fmt.Sprintf("Redeemed coupon %s", e.Meta.Code)
	case ledger.KindCouponCreate:
		return fmt.Sprintf("Created coupon %s", e.Meta.Code)
	default:
		return string(e.Kind)
	}
}
