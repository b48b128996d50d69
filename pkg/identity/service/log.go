package service

import (
	"context"
	"time"

	"go.uber.org/zap"
)

const serviceName = "IdentityService"

// logService wraps Service with automatic logging of all method calls
type logService struct {
	svc    Service
	logger *zap.Logger
}

// NewLog creates a logging decorator for the identity Service.
// It logs method entry/exit, duration and errors.
func NewLog(svc Service, logger *zap.Logger) Service {
	return &logService{
		svc:    svc,
		logger: logger,
	}
}

// Register wraps the service method with logging
func (ls *logService) Register(ctx context.Context, email string) (resp *Session, err error) {
	start := time.Now()

	ls.logger.Info("Register started",
		zap.String("service", serviceName),
		zap.String("method", "Register"),
	)

	defer func() {
		duration := time.Since(start)

		if err != nil {
			ls.logger.Error("Register failed",
				zap.String("service", serviceName),
				zap.String("method", "Register"),
				zap.Duration("duration", duration),
				zap.Error(err),
			)
		} else {
			ls.logger.Info("Register completed",
				zap.String("service", serviceName),
				zap.String("method", "Register"),
				zap.Int64("user_id", resp.User.ID),
				zap.Duration("duration", duration),
			)
		}
	}()

	return ls.svc.Register(ctx, email)
}

// Login wraps the service method with logging
func (ls *logService) Login(ctx context.Context, email string) (resp *Session, err error) {
	start := time.Now()

	ls.logger.Info("Login started",
		zap.String("service", serviceName),
		zap.String("method", "Login"),
	)

	defer func() {
		duration := time.Since(start)

		if err != nil {
			ls.logger.Error("Login failed",
				zap.String("service", serviceName),
				zap.String("method", "Login"),
				zap.Duration("duration", duration),
				zap.Error(err),
			)
		} else {
			ls.logger.Info("Login completed",
				zap.String("service", serviceName),
				zap.String("method", "Login"),
				zap.Int64("user_id", resp.User.ID),
				zap.Duration("duration", duration),
			)
		}
	}()

	return ls.svc.Login(ctx, email)
}
