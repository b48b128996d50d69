// Package api implements app.Runner for the API server process.
package api

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	apphttp "github.com/picturescaler/server/pkg/app/http"
	billingservice "github.com/picturescaler/server/pkg/billing/service"
	"github.com/picturescaler/server/pkg/config"
	couponservice "github.com/picturescaler/server/pkg/coupon/service"
	"github.com/picturescaler/server/pkg/couponstore"
	"github.com/picturescaler/server/pkg/identity"
	identityservice "github.com/picturescaler/server/pkg/identity/service"
	"github.com/picturescaler/server/pkg/imaging"
	"github.com/picturescaler/server/pkg/ledgerstore"
	"github.com/picturescaler/server/pkg/pgutil"
	reportingservice "github.com/picturescaler/server/pkg/reporting/service"
	rewardsservice "github.com/picturescaler/server/pkg/rewards/service"
	"github.com/picturescaler/server/pkg/userstore"
)

const defaultRequestTimeout = 60

// Server holds cfg to init the api server.
type Server struct {
	cfg *config.Config
}

// NewServer initializes new api server.
func NewServer(cfg *config.Config) *Server {
	return &Server{cfg: cfg}
}

func (s *Server) Run() error {
	if s.cfg == nil {
		return fmt.Errorf("api server config is nil")
	}
	cfg := s.cfg

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, err := config.NewLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("setup logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting API server",
		zap.String("host", cfg.Server.Host),
		zap.Int("port", cfg.Server.Port),
	)

	db, err := pgutil.ConnectDB(&cfg.Database)
	if err != nil {
		return fmt.Errorf("connect db: %w", err)
	}
	defer func() { _ = db.Close() }()

	logger.Info("Connected to database",
		zap.String("host", cfg.Database.Host),
		zap.String("database", cfg.Database.Database),
	)

	userStore := userstore.NewStore(db)
	eventStore := ledgerstore.NewStore(db)
	couponStore := couponstore.NewStore(db)

	tokens := identity.NewJWTValidator(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer)

	identitySvc := identityservice.NewLog(
		identityservice.NewService(db, userStore, eventStore, tokens, cfg.Auth.AdminEmails, logger),
		logger)
	billingSvc := billingservice.NewLog(
		billingservice.NewService(db, userStore, eventStore, cfg.Billing.DedupeWindow, logger),
		logger)
	couponSvc := couponservice.NewLog(
		couponservice.NewService(db, userStore, couponStore, eventStore, logger),
		logger)
	rewardsSvc := rewardsservice.NewLog(
		rewardsservice.NewService(db, userStore, eventStore, cfg.Rewards.DailyTokens, logger),
		logger)
	reportingSvc := reportingservice.NewLog(
		reportingservice.NewService(userStore, eventStore, logger),
		logger)

	pipeline := imaging.NewResizer(logger)

	router := s.setupRouter(
		tokens, userStore,
		identitySvc, billingSvc, couponSvc, rewardsSvc, reportingSvc,
		pipeline, logger,
	)

	return apphttp.ServeAndWait(ctx, router, logger, &cfg.Server)
}

func (s *Server) setupRouter(
	tokens *identity.JWTValidator,
	userStore userstore.Store,
	identitySvc identityservice.Service,
	billingSvc billingservice.Service,
	couponSvc couponservice.Service,
	rewardsSvc rewardsservice.Service,
	reportingSvc reportingservice.Service,
	pipeline imaging.Pipeline,
	logger *zap.Logger,
) chi.Router {
	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(time.Second * defaultRequestTimeout))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-Tokens-Remaining", "X-Required-Tokens", "Content-Disposition"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	// Prometheus scrape endpoint
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	// Public endpoints: auth sits behind the identity-aware gateway, the
	// payment webhook behind the gateway's allowlist.
	identityservice.RegisterRoutes(r, identitySvc, logger)
	billingservice.RegisterWebhookRoutes(r, billingSvc, logger)

	// Authenticated endpoints
	r.Group(func(r chi.Router) {
		r.Use(identity.Authenticator(tokens, userStore, logger))

		billingservice.RegisterRoutes(r, billingSvc, logger)
		billingservice.RegisterUploadRoutes(r, billingSvc, pipeline, s.cfg.Uploads, logger)
		couponservice.RegisterRoutes(r, couponSvc, logger)
		rewardsservice.RegisterRoutes(r, rewardsSvc, logger)
		reportingservice.RegisterRoutes(r, reportingSvc, logger)

		// Admin endpoints
		r.Group(func(r chi.Router) {
			r.Use(identity.RequireAdmin(s.cfg.Auth.AdminEmails))

			couponservice.RegisterAdminRoutes(r, couponSvc, logger)
			reportingservice.RegisterAdminRoutes(r, reportingSvc, logger)
		})
	})

	return r
}
