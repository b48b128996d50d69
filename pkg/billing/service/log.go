package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/picturescaler/server/pkg/billing"
)

const serviceName = "BillingService"

// logService wraps Service with automatic logging of all method calls
type logService struct {
	svc    Service
	logger *zap.Logger
}

// NewLog creates a logging decorator for the billing Service.
// It logs method entry/exit, duration and errors.
func NewLog(svc Service, logger *zap.Logger) Service {
	return &logService{
		svc:    svc,
		logger: logger,
	}
}

// GrantTokens wraps the service method with logging
func (ls *logService) GrantTokens(ctx context.Context, req *billing.GrantRequest) (resp *billing.GrantResult, err error) {
	start := time.Now()

	ls.logger.Info("GrantTokens started",
		zap.String("service", serviceName),
		zap.String("method", "GrantTokens"),
		zap.Int64("user_id", req.UserID),
		zap.Int64("tokens", req.Tokens),
		zap.String("provider", req.Provider),
		zap.String("order_id", req.OrderID),
	)

	defer func() {
		duration := time.Since(start)

		if err != nil {
			ls.logger.Error("GrantTokens failed",
				zap.String("service", serviceName),
				zap.String("method", "GrantTokens"),
				zap.Int64("user_id", req.UserID),
				zap.Duration("duration", duration),
				zap.Error(err),
			)
		} else {
			ls.logger.Info("GrantTokens completed",
				zap.String("service", serviceName),
				zap.String("method", "GrantTokens"),
				zap.Int64("user_id", req.UserID),
				zap.Bool("already_processed", resp.AlreadyProcessed),
				zap.Int64("balance", resp.Balance),
				zap.Duration("duration", duration),
			)
		}
	}()

	return ls.svc.GrantTokens(ctx, req)
}

// DebitForJob wraps the service method with logging
func (ls *logService) DebitForJob(ctx context.Context, userID int64, job billing.JobDebit) (resp *billing.DebitResult, err error) {
	start := time.Now()

	ls.logger.Info("DebitForJob started",
		zap.String("service", serviceName),
		zap.String("method", "DebitForJob"),
		zap.Int64("user_id", userID),
		zap.Int64("files", job.Files),
	)

	defer func() {
		duration := time.Since(start)

		if err != nil {
			ls.logger.Error("DebitForJob failed",
				zap.String("service", serviceName),
				zap.String("method", "DebitForJob"),
				zap.Int64("user_id", userID),
				zap.Duration("duration", duration),
				zap.Error(err),
			)
		} else {
			ls.logger.Info("DebitForJob completed",
				zap.String("service", serviceName),
				zap.String("method", "DebitForJob"),
				zap.Int64("user_id", userID),
				zap.Int64("charged", resp.Charged),
				zap.Int64("remaining", resp.Remaining),
				zap.Duration("duration", duration),
			)
		}
	}()

	return ls.svc.DebitForJob(ctx, userID, job)
}
