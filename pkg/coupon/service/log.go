package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/picturescaler/server/pkg/coupon"
)

const serviceName = "CouponService"

// logService wraps Service with automatic logging of all method calls
type logService struct {
	svc    Service
	logger *zap.Logger
}

// NewLog creates a logging decorator for the coupon Service.
// It logs method entry/exit, duration and errors.
func NewLog(svc Service, logger *zap.Logger) Service {
	return &logService{
		svc:    svc,
		logger: logger,
	}
}

// Redeem wraps the service method with logging
func (ls *logService) Redeem(ctx context.Context, userID int64, code string) (resp *coupon.RedeemResult, err error) {
	start := time.Now()

	ls.logger.Info("Redeem started",
		zap.String("service", serviceName),
		zap.String("method", "Redeem"),
		zap.Int64("user_id", userID),
	)

	defer func() {
		duration := time.Since(start)

		if err != nil {
			ls.logger.Error("Redeem failed",
				zap.String("service", serviceName),
				zap.String("method", "Redeem"),
				zap.Int64("user_id", userID),
				zap.Duration("duration", duration),
				zap.Error(err),
			)
		} else {
			ls.logger.Info("Redeem completed",
				zap.String("service", serviceName),
				zap.String("method", "Redeem"),
				zap.Int64("user_id", userID),
				zap.String("code", resp.Code),
				zap.String("type", resp.Type),
				zap.Int64("tokens_added", resp.TokensAdded),
				zap.Duration("duration", duration),
			)
		}
	}()

	return ls.svc.Redeem(ctx, userID, code)
}

// Create wraps the service method with logging
func (ls *logService) Create(ctx context.Context, adminID int64, req *CreateRequest) (resp *coupon.Coupon, err error) {
	start := time.Now()

	ls.logger.Info("Create started",
		zap.String("service", serviceName),
		zap.String("method", "Create"),
		zap.Int64("admin_id", adminID),
		zap.String("type", req.Type),
	)

	defer func() {
		duration := time.Since(start)

		if err != nil {
			ls.logger.Error("Create failed",
				zap.String("service", serviceName),
				zap.String("method", "Create"),
				zap.Int64("admin_id", adminID),
				zap.Duration("duration", duration),
				zap.Error(err),
			)
		} else {
			ls.logger.Info("Create completed",
				zap.String("service", serviceName),
				zap.String("method", "Create"),
				zap.Int64("admin_id", adminID),
				zap.String("code", resp.Code),
				zap.Duration("duration", duration),
			)
		}
	}()

	return ls.svc.Create(ctx, adminID, req)
}

// List wraps the service method with logging
func (ls *logService) List(ctx context.Context) (resp *Listing, err error) {
	start := time.Now()

	defer func() {
		duration := time.Since(start)

		if err != nil {
			ls.logger.Error("List failed",
				zap.String("service", serviceName),
				zap.String("method", "List"),
				zap.Duration("duration", duration),
				zap.Error(err),
			)
		} else {
			ls.logger.Debug("List completed",
				zap.String("service", serviceName),
				zap.String("method", "List"),
				zap.Int("coupons", len(resp.Coupons)),
				zap.Duration("duration", duration),
			)
		}
	}()

	return ls.svc.List(ctx)
}
