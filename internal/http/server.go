package http

import (
	"context"
	"net/http"
	"time"

	"github.com/jmehdipour/payout-engine/internal/config"
	"github.com/jmehdipour/payout-engine/internal/eligibility"
	"github.com/jmehdipour/payout-engine/internal/http/middleware"
	"github.com/jmehdipour/payout-engine/internal/model"
	"github.com/labstack/echo/v4"
	echoMid "github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

// PayoutService is the settlement surface served over HTTP.
type PayoutService interface {
	CalculatePlatformFee(ctx context.Context, gross int64, serviceID *int64) int64
	Settle(ctx context.Context, paymentID int64, idempotencyKey string) (*model.Payout, bool, error)
	RetryPayout(ctx context.Context, payoutID string) (*model.Payout, error)
	GeneratePayoutReceipt(ctx context.Context, payoutID string) (*model.Receipt, error)
	PayoutEvents(ctx context.Context, payoutID string) ([]model.OutboxEvent, error)
	ProcessPendingPayouts(ctx context.Context, batchSize int) (*model.BatchResult, error)
	GetProviderPayoutHistory(ctx context.Context, q model.HistoryQuery) (*model.PayoutHistory, error)
	GetProviderBalance(ctx context.Context, providerID int64) (*model.ProviderBalance, error)
	HasCompletedOnboarding(ctx context.Context, providerID int64) bool
	CreateOnboardingLink(ctx context.Context, providerID int64) (*model.OnboardingLink, error)
}

// EligibilityChecker explains eligibility decisions for the eligibility endpoint.
type EligibilityChecker interface {
	Check(ctx context.Context, providerID int64) eligibility.Verdict
}

// BreakerStates reports processor breaker states for /healthz.
type BreakerStates func() map[string]string

type Server struct{ e *echo.Echo }

func NewServer(cfg config.Config, svc PayoutService, elig EligibilityChecker, rds *redis.Client, breakers BreakerStates) *Server {
	e := echo.New()
	e.HideBanner = true
	e.Logger.SetLevel(log.WARN)
	e.Use(echoMid.Recover(), echoMid.Logger())

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// health
	e.GET("/healthz", func(c echo.Context) error {
		out := map[string]any{"status": "ok"}
		if breakers != nil {
			out["breakers"] = breakers()
		}
		return c.JSON(http.StatusOK, out)
	})

	// middlewares
	authMW := middleware.APIKeyMiddleware(cfg.Auth.APIKeys)
	rlMW := middleware.RateLimitMiddleware(middleware.RateLimitConfig{
		Redis:          rds,
		RPS:            cfg.RateLimit.RPS,
		KeyPrefix:      "rl:client:",
		Window:         time.Second,
		RetryAfterHint: true,
	})

	// routes
	v1 := e.Group("/v1", authMW, rlMW)
	v1.GET("/fees", feeHandler(svc))
	v1.POST("/payouts", createPayoutHandler(svc))
	v1.POST("/payouts/process-pending", processPendingHandler(svc, cfg.Settlement.BatchSize))
	v1.POST("/payouts/:id/retry", retryPayoutHandler(svc))
	v1.GET("/payouts/:id/receipt", receiptHandler(svc))
	v1.GET("/payouts/:id/events", payoutEventsHandler(svc))

	v1.GET("/providers/:id/eligibility", eligibilityHandler(elig))
	v1.GET("/providers/:id/payouts", historyHandler(svc))
	v1.GET("/providers/:id/balance", balanceHandler(svc))
	v1.GET("/providers/:id/onboarding", onboardingStatusHandler(svc))
	v1.POST("/providers/:id/onboarding-link", onboardingLinkHandler(svc))

	return &Server{e: e}
}

func (s *Server) Handler() http.Handler { return s.e }

func (s *Server) Start(addr string) error {
	return s.e.Start(addr)
}

func (s *Server) Shutdown(ctx context.Context) error { return s.e.Shutdown(ctx) }
