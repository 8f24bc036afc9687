package api

import (
	"github.com/ayo6706/liquidity-settlement/internal/api/handler"
	"github.com/ayo6706/liquidity-settlement/internal/api/middleware"
	"github.com/ayo6706/liquidity-settlement/internal/catalog"
	"github.com/ayo6706/liquidity-settlement/internal/config"
	"github.com/ayo6706/liquidity-settlement/internal/notification"
	"github.com/ayo6706/liquidity-settlement/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	httpSwagger "github.com/swaggo/http-swagger/v2"
	"go.uber.org/zap"
)

// Services are the engines exposed over HTTP.
type Services struct {
	Liquidity *service.LiquidityService
	Payouts   *service.PayoutService
	Assets    catalog.Resolver
	// Notifier receives handler panics. Optional.
	Notifier notification.Notifier
}

type Router struct {
	cfg       *config.Config
	logger    *zap.Logger
	notifier  notification.Notifier
	auth      *middleware.Authenticator
	health    *handler.HealthHandler
	liquidity *handler.LiquidityHandler
	payouts   *handler.PayoutHandler
}

func NewRouter(cfg *config.Config, logger *zap.Logger, db handler.Pinger, redis redis.Cmdable, svc Services) *Router {
	return &Router{
		cfg:       cfg,
		logger:    logger,
		notifier:  svc.Notifier,
		auth:      middleware.NewAuthenticator(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTAudience),
		health:    handler.NewHealthHandler(db, redis),
		liquidity: handler.NewLiquidityHandler(svc.Liquidity, svc.Assets, cfg.Chain.Blockchain),
		payouts:   handler.NewPayoutHandler(svc.Payouts, svc.Assets, cfg.Chain.Blockchain),
	}
}

func (api *Router) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestContextMiddleware)
	r.Use(middleware.LoggingMiddleware(api.logger))
	r.Use(middleware.RecoverMiddleware(api.logger, api.notifier))
	r.Use(middleware.MetricsMiddleware)

	// Public routes
	r.Group(func(r chi.Router) {
		r.Use(middleware.PublicRateLimiter(api.cfg.RateLimitRPS))
		r.Get("/health/live", api.health.Live)
		r.Get("/health/ready", api.health.Ready)
		r.Handle("/metrics", promhttp.Handler())
		r.Get("/openapi.yaml", serveOpenAPI)
		r.Get("/docs/*", httpSwagger.Handler(httpSwagger.URL("/openapi.yaml")))
	})

	// Engine routes, for subsystems holding a service token
	r.Group(func(r chi.Router) {
		r.Use(api.auth.Middleware)
		r.Use(middleware.RequireRole(middleware.RoleService))
		r.Use(middleware.CallerRateLimiter(api.cfg.RateLimitRPS))

		r.Route("/v1/liquidity", func(r chi.Router) {
			r.Post("/check", api.liquidity.CheckLiquidity)
			r.Post("/reserve", api.liquidity.ReserveLiquidity)
			r.Post("/purchase", api.liquidity.PurchaseLiquidity)
			r.Post("/sell", api.liquidity.SellLiquidity)
			r.Get("/pending", api.liquidity.GetPendingCount)
			r.Get("/{context}/{correlationId}", api.liquidity.GetTransactionResult)
			r.Get("/{context}/{correlationId}/ready", api.liquidity.GetReady)
			r.Get("/{context}/{correlationId}/completion", api.liquidity.GetCompletion)
			r.Post("/{context}/{correlationId}/complete", api.liquidity.Complete)
		})

		r.Route("/v1/payouts", func(r chi.Router) {
			r.Post("/", api.payouts.CreatePayout)
			r.Get("/{context}/{correlationId}", api.payouts.GetPayout)
			r.Get("/{context}/{correlationId}/completion", api.payouts.GetCompletion)
		})
	})

	return r
}
