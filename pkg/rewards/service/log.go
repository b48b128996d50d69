package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/picturescaler/server/pkg/rewards"
)

const serviceName = "RewardsService"

// logService wraps Service with automatic logging of all method calls
type logService struct {
	svc    Service
	logger *zap.Logger
}

// NewLog creates a logging decorator for the rewards Service.
// It logs method entry/exit, duration and errors.
func NewLog(svc Service, logger *zap.Logger) Service {
	return &logService{
		svc:    svc,
		logger: logger,
	}
}

// ClaimDaily wraps the service method with logging
func (ls *logService) ClaimDaily(ctx context.Context, userID int64) (resp *rewards.DailyResult, err error) {
	start := time.Now()

	ls.logger.Info("ClaimDaily started",
		zap.String("service", serviceName),
		zap.String("method", "ClaimDaily"),
		zap.Int64("user_id", userID),
	)

	defer func() {
		duration := time.Since(start)

		if err != nil {
			ls.logger.Error("ClaimDaily failed",
				zap.String("service", serviceName),
				zap.String("method", "ClaimDaily"),
				zap.Int64("user_id", userID),
				zap.Duration("duration", duration),
				zap.Error(err),
			)
		} else {
			ls.logger.Info("ClaimDaily completed",
				zap.String("service", serviceName),
				zap.String("method", "ClaimDaily"),
				zap.Int64("user_id", userID),
				zap.Int64("tokens_added", resp.TokensAdded),
				zap.Int64("balance", resp.Balance),
				zap.Duration("duration", duration),
			)
		}
	}()

	return ls.svc.ClaimDaily(ctx, userID)
}

// DailyStatus wraps the service method with logging
func (ls *logService) DailyStatus(ctx context.Context, userID int64) (resp *rewards.DailyStatus, err error) {
	start := time.Now()

	defer func() {
		if err != nil {
			ls.logger.Error("DailyStatus failed",
				zap.String("service", serviceName),
				zap.String("method", "DailyStatus"),
				zap.Int64("user_id", userID),
				zap.Duration("duration", time.Since(start)),
				zap.Error(err),
			)
		}
	}()

	return ls.svc.DailyStatus(ctx, userID)
}

// ClaimTier wraps the service method with logging
func (ls *logService) ClaimTier(ctx context.Context, userID, tier int64) (resp *rewards.TierResult, err error) {
	start := time.Now()

	ls.logger.Info("ClaimTier started",
		zap.String("service", serviceName),
		zap.String("method", "ClaimTier"),
		zap.Int64("user_id", userID),
		zap.Int64("tier", tier),
	)

	defer func() {
		duration := time.Since(start)

		if err != nil {
			ls.logger.Error("ClaimTier failed",
				zap.String("service", serviceName),
				zap.String("method", "ClaimTier"),
				zap.Int64("user_id", userID),
				zap.Int64("tier", tier),
				zap.Duration("duration", duration),
				zap.Error(err),
			)
		} else {
			ls.logger.Info("ClaimTier completed",
				zap.String("service", serviceName),
				zap.String("method", "ClaimTier"),
				zap.Int64("user_id", userID),
				zap.Int64("tier", tier),
				zap.Int64("tokens_added", resp.TokensAdded),
				zap.Int64("balance", resp.Balance),
				zap.Duration("duration", duration),
			)
		}
	}()

	return ls.svc.ClaimTier(ctx, userID, tier)
}

// TierOverview wraps the service method with logging
func (ls *logService) TierOverview(ctx context.Context, userID int64) (resp []rewards.TierStatus, err error) {
	start := time.Now()

	defer func() {
		if err != nil {
			ls.logger.Error("TierOverview failed",
				zap.String("service", serviceName),
				zap.String("method", "TierOverview"),
				zap.Int64("user_id", userID),
				zap.Duration("duration", time.Since(start)),
				zap.Error(err),
			)
		}
	}()

	return ls.svc.TierOverview(ctx, userID)
}
