package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/uptrace/bun"
	"go.uber.org/zap"

	"github.com/picturescaler/server/internal/metrics"
	apperrors "github.com/picturescaler/server/pkg/app/errors"
	"github.com/picturescaler/server/pkg/identity"
	"github.com/picturescaler/server/pkg/ledger"
	"github.com/picturescaler/server/pkg/rewards"
	"github.com/picturescaler/server/pkg/userstore"
)

var (
	ErrClaimTooSoon   = errors.New("daily claim not available yet")
	ErrUnknownTier    = errors.New("unknown tier")
	ErrNotEligible    = errors.New("tier threshold not reached")
	ErrAlreadyClaimed = errors.New("tier already claimed")
)

const (
	outcomeSuccess        = "success"
	outcomeCooldown       = "cooldown"
	outcomeNotEligible    = "not_eligible"
	outcomeAlreadyClaimed = "already_claimed"
	outcomeError          = "error"
)

// DB is the transactional boundary every balance-changing unit of work
// runs in. *bun.DB satisfies it.
type DB interface {
	RunInTx(ctx context.Context, opts *sql.TxOptions, fn func(ctx context.Context, tx bun.Tx) error) error
}

// UserStore is the narrow user interface for the rewards service.
type UserStore interface {
	GetUserByID(ctx context.Context, id int64) (*identity.User, error)
	GetUserForUpdate(ctx context.Context, idb bun.IDB, id int64) (*identity.User, error)
	CreditTokens(ctx context.Context, idb bun.IDB, id, delta int64) (int64, error)
	SetLastDailyClaim(ctx context.Context, idb bun.IDB, id int64, at time.Time) error
}

// EventStore is the narrow event log interface for the rewards service.
type EventStore interface {
	Append(ctx context.Context, idb bun.IDB, events ...*ledger.Event) error
	ListByUser(ctx context.Context, idb bun.IDB, userID int64, limit int, kinds ...ledger.Kind) ([]ledger.Event, error)
}

// Service defines the interface for the rewards business logic
type Service interface {
	// ClaimDaily pays the daily bonus if the cooldown has elapsed.
	ClaimDaily(ctx context.Context, userID int64) (*rewards.DailyResult, error)
	// DailyStatus reports whether the daily claim is available right now.
	DailyStatus(ctx context.Context, userID int64) (*rewards.DailyStatus, error)
	// ClaimTier pays a one-time tier bonus once the purchase threshold is met.
	ClaimTier(ctx context.Context, userID, tier int64) (*rewards.TierResult, error)
	// TierOverview lists every tier with the user's eligibility.
	TierOverview(ctx context.Context, userID int64) ([]rewards.TierStatus, error)
}

type rewardsService struct {
	db          DB
	users       UserStore
	events      EventStore
	dailyTokens int64
	logger      *zap.Logger
}

// NewService creates a new rewards service
func NewService(db DB, users UserStore, events EventStore, dailyTokens int64, logger *zap.Logger) Service {
	return &rewardsService{
		db:          db,
		users:       users,
		events:      events,
		dailyTokens: dailyTokens,
		logger:      logger,
	}
}

// ClaimDaily credits the daily bonus under the user row lock. The lock
// serializes concurrent claims, so only one of two racing requests sees
// an elapsed cooldown.
func (s *rewardsService) ClaimDaily(ctx context.Context, userID int64) (*rewards.DailyResult, error) {
	result := &rewards.DailyResult{}
	outcome := outcomeError
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		usr, err := s.users.GetUserForUpdate(ctx, tx, userID)
		if err != nil {
			if errors.Is(err, userstore.ErrUserNotFound) {
				return apperrors.ResourceNotFoundError(err, "user not found")
			}
			return fmt.Errorf("failed to lock user: %w", err)
		}

		now := time.Now().UTC()
		if usr.LastDailyClaim != nil {
			elapsed := now.Sub(*usr.LastDailyClaim)
			if elapsed < rewards.DailyCooldown {
				remaining := rewards.DailyCooldown - elapsed
				outcome = outcomeCooldown
				return apperrors.WithDetails(
					apperrors.CooldownError(ErrClaimTooSoon, "daily claim not available yet"),
					map[string]any{
						"remaining_seconds": int64(remaining.Seconds()),
						"next_claim_at":     usr.LastDailyClaim.Add(rewards.DailyCooldown),
					})
			}
		}

		balance, err := s.users.CreditTokens(ctx, tx, usr.ID, s.dailyTokens)
		if err != nil {
			return fmt.Errorf("failed to credit daily tokens: %w", err)
		}
		if err := s.users.SetLastDailyClaim(ctx, tx, usr.ID, now); err != nil {
			return fmt.Errorf("failed to update claim timestamp: %w", err)
		}

		uid := usr.ID
		event := &ledger.Event{
			UserID: &uid,
			Kind:   ledger.KindDailyClaim,
			Meta:   ledger.Meta{Tokens: s.dailyTokens},
		}
		if err := s.events.Append(ctx, tx, event); err != nil {
			return fmt.Errorf("failed to append daily_claim event: %w", err)
		}

		result.TokensAdded = s.dailyTokens
		result.Balance = balance
		result.NextClaimAt = now.Add(rewards.DailyCooldown)
		return nil
	})
	if err != nil {
		metrics.DailyClaims.WithLabelValues(outcome).Inc()
		return nil, err
	}

	metrics.DailyClaims.WithLabelValues(outcomeSuccess).Inc()
	metrics.TokensGranted.WithLabelValues("daily").Add(float64(result.TokensAdded))
	return result, nil
}

func (s *rewardsService) DailyStatus(ctx context.Context, userID int64) (*rewards.DailyStatus, error) {
	usr, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, userstore.ErrUserNotFound) {
			return nil, apperrors.ResourceNotFoundError(err, "user not found")
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	status := &rewards.DailyStatus{Available: true}
	if usr.LastDailyClaim != nil {
		next := usr.LastDailyClaim.Add(rewards.DailyCooldown)
		if remaining := time.Until(next); remaining > 0 {
			status.Available = false
			status.NextClaimAt = &next
			status.RemainingSeconds = int64(remaining.Seconds())
		}
	}
	return status, nil
}

// ClaimTier pays the tier bonus exactly once. Eligibility is recomputed
// from the event log under the user row lock, never trusted from the
// request.
func (s *rewardsService) ClaimTier(ctx context.Context, userID, tier int64) (*rewards.TierResult, error) {
	threshold, ok := rewards.TierThresholds[tier]
	if !ok {
		metrics.TierClaims.WithLabelValues(strconv.FormatInt(tier, 10), outcomeError).Inc()
		return nil, apperrors.BadRequestError(ErrUnknownTier, "unknown tier")
	}
	reward := rewards.TierRewards[tier]
	tierLabel := strconv.FormatInt(tier, 10)

	result := &rewards.TierResult{Tier: tier}
	outcome := outcomeError
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		usr, err := s.users.GetUserForUpdate(ctx, tx, userID)
		if err != nil {
			if errors.Is(err, userstore.ErrUserNotFound) {
				return apperrors.ResourceNotFoundError(err, "user not found")
			}
			return fmt.Errorf("failed to lock user: %w", err)
		}

		events, err := s.events.ListByUser(ctx, tx, usr.ID, 0,
			ledger.KindTokenPurchase, ledger.KindTierClaim)
		if err != nil {
			return fmt.Errorf("failed to load purchase history: %w", err)
		}

		purchased := ledger.Totals(events).Purchased
		if purchased < threshold {
			outcome = outcomeNotEligible
			return apperrors.WithDetails(
				apperrors.ForbiddenError(ErrNotEligible, "purchase threshold not reached"),
				map[string]any{
					"threshold": threshold,
					"purchased": purchased,
				})
		}
		if ledger.HasTierClaim(events, tier) {
			outcome = outcomeAlreadyClaimed
			return apperrors.ConflictError(ErrAlreadyClaimed, "tier already claimed")
		}

		balance, err := s.users.CreditTokens(ctx, tx, usr.ID, reward)
		if err != nil {
			return fmt.Errorf("failed to credit tier reward: %w", err)
		}

		uid := usr.ID
		event := &ledger.Event{
			UserID: &uid,
			Kind:   ledger.KindTierClaim,
			Meta: ledger.Meta{
				Tier:           tier,
				Reward:         reward,
				PurchasedTotal: purchased,
			},
		}
		if err := s.events.Append(ctx, tx, event); err != nil {
			return fmt.Errorf("failed to append tier_claim event: %w", err)
		}

		result.TokensAdded = reward
		result.Balance = balance
		result.PurchasedTotal = purchased
		return nil
	})
	if err != nil {
		metrics.TierClaims.WithLabelValues(tierLabel, outcome).Inc()
		return nil, err
	}

	metrics.TierClaims.WithLabelValues(tierLabel, outcomeSuccess).Inc()
	metrics.TokensGranted.WithLabelValues("tier").Add(float64(result.TokensAdded))
	return result, nil
}

func (s *rewardsService) TierOverview(ctx context.Context, userID int64) ([]rewards.TierStatus, error) {
	events, err := s.events.ListByUser(ctx, nil, userID, 0,
		ledger.KindTokenPurchase, ledger.KindTierClaim)
	if err != nil {
		return nil, fmt.Errorf("failed to load purchase history: %w", err)
	}

	purchased := ledger.Totals(events).Purchased
	statuses := make([]rewards.TierStatus, 0, len(rewards.Tiers()))
	for _, tier := range rewards.Tiers() {
		statuses = append(statuses, rewards.TierStatus{
			Tier:      tier,
			Threshold: rewards.TierThresholds[tier],
			Reward:    rewards.TierRewards[tier],
			Eligible:  purchased >= rewards.TierThresholds[tier],
			Claimed:   ledger.HasTierClaim(events, tier),
		})
	}
	return statuses, nil
}
