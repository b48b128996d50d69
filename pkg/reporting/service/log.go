package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/picturescaler/server/pkg/reporting"
	"github.com/picturescaler/server/pkg/userstore"
)

const serviceName = "ReportingService"

// logService wraps Service with automatic logging of all method calls
type logService struct {
	svc    Service
	logger *zap.Logger
}

// NewLog creates a logging decorator for the reporting Service.
// It logs method entry/exit, duration and errors.
func NewLog(svc Service, logger *zap.Logger) Service {
	return &logService{
		svc:    svc,
		logger: logger,
	}
}

// Me wraps the service method with logging
func (ls *logService) Me(ctx context.Context, userID int64) (resp *reporting.Profile, err error) {
	start := time.Now()

	defer func() {
		if err != nil {
			ls.logger.Error("Me failed",
				zap.String("service", serviceName),
				zap.String("method", "Me"),
				zap.Int64("user_id", userID),
				zap.Duration("duration", time.Since(start)),
				zap.Error(err),
			)
		}
	}()

	return ls.svc.Me(ctx, userID)
}

// ListUsers wraps the service method with logging
func (ls *logService) ListUsers(ctx context.Context, q userstore.ListQuery) (resp []reporting.UserSummary, err error) {
	start := time.Now()

	defer func() {
		duration := time.Since(start)

		if err != nil {
			ls.logger.Error("ListUsers failed",
				zap.String("service", serviceName),
				zap.String("method", "ListUsers"),
				zap.String("filter", q.Filter),
				zap.Duration("duration", duration),
				zap.Error(err),
			)
		} else {
			ls.logger.Debug("ListUsers completed",
				zap.String("service", serviceName),
				zap.String("method", "ListUsers"),
				zap.String("filter", q.Filter),
				zap.Int("users", len(resp)),
				zap.Duration("duration", duration),
			)
		}
	}()

	return ls.svc.ListUsers(ctx, q)
}

// UserDetail wraps the service method with logging
func (ls *logService) UserDetail(ctx context.Context, userID int64) (resp *reporting.UserDetail, err error) {
	start := time.Now()

	defer func() {
		if err != nil {
			ls.logger.Error("UserDetail failed",
				zap.String("service", serviceName),
				zap.String("method", "UserDetail"),
				zap.Int64("user_id", userID),
				zap.Duration("duration", time.Since(start)),
				zap.Error(err),
			)
		}
	}()

	return ls.svc.UserDetail(ctx, userID)
}

// Metrics wraps the service method with logging
func (ls *logService) Metrics(ctx context.Context, rng string) (resp *reporting.MetricsReport, err error) {
	start := time.Now()

	defer func() {
		if err != nil {
			ls.logger.Error("Metrics failed",
				zap.String("service", serviceName),
				zap.String("method", "Metrics"),
				zap.String("range", rng),
				zap.Duration("duration", time.Since(start)),
				zap.Error(err),
			)
		}
	}()

	return ls.svc.Metrics(ctx, rng)
}

// SetBanned wraps the service method with logging
func (ls *logService) SetBanned(ctx context.Context, userID int64, banned bool) (err error) {
	start := time.Now()

	ls.logger.Info("SetBanned started",
		zap.String("service", serviceName),
		zap.String("method", "SetBanned"),
		zap.Int64("user_id", userID),
		zap.Bool("banned", banned),
	)

	defer func() {
		duration := time.Since(start)

		if err != nil {
			ls.logger.Error("SetBanned failed",
				zap.String("service", serviceName),
				zap.String("method", "SetBanned"),
				zap.Int64("user_id", userID),
				zap.Duration("duration", duration),
				zap.Error(err),
			)
		} else {
			ls.logger.Info("SetBanned completed",
				zap.String("service", serviceName),
				zap.String("method", "SetBanned"),
				zap.Int64("user_id", userID),
				zap.Bool("banned", banned),
				zap.Duration("duration", duration),
			)
		}
	}()

	return ls.svc.SetBanned(ctx, userID, banned)
}

// SetTrusted wraps the service method with logging
func (ls *logService) SetTrusted(ctx context.Context, userID int64, trusted bool) (err error) {
	start := time.Now()

	ls.logger.Info("SetTrusted started",
		zap.String("service", serviceName),
		zap.String("method", "SetTrusted"),
		zap.Int64("user_id", userID),
		zap.Bool("trusted", trusted),
	)

	defer func() {
		duration := time.Since(start)

		if err != nil {
			ls.logger.Error("SetTrusted failed",
				zap.String("service", serviceName),
				zap.String("method", "SetTrusted"),
				zap.Int64("user_id", userID),
				zap.Duration("duration", duration),
				zap.Error(err),
			)
		} else {
			ls.logger.Info("SetTrusted completed",
				zap.String("service", serviceName),
				zap.String("method", "SetTrusted"),
				zap.Int64("user_id", userID),
				zap.Bool("trusted", trusted),
				zap.Duration("duration", duration),
			)
		}
	}()

	return ls.svc.SetTrusted(ctx, userID, trusted)
}
