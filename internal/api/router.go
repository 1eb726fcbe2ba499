package api

import (
	"net/http"

	"github.com/ayo6706/shop-treasury/internal/api/handler"
	"github.com/ayo6706/shop-treasury/internal/api/middleware"
	"github.com/ayo6706/shop-treasury/internal/api/spec"
	"github.com/ayo6706/shop-treasury/internal/config"
	"github.com/ayo6706/shop-treasury/internal/ledger"
	"github.com/ayo6706/shop-treasury/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	httpSwagger "github.com/swaggo/http-swagger/v2"
	"go.uber.org/zap"
)

type Router struct {
	cfg     *config.Config
	logger  *zap.Logger
	economy *service.EconomyFacade
	ledger  ledger.Pinger
	redis   redis.Cmdable
}

// NewRouter wires the economy API. economy is nil when the system account
// could not be bootstrapped; the routes then answer not handled.
func NewRouter(cfg *config.Config, logger *zap.Logger, economy *service.EconomyFacade, pinger ledger.Pinger, redis redis.Cmdable) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{cfg: cfg, logger: logger, economy: economy, ledger: pinger, redis: redis}
}

func (api *Router) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.TraceMiddleware)
	r.Use(middleware.LoggingMiddleware(api.logger))
	r.Use(middleware.RecoverMiddleware(api.logger))
	r.Use(middleware.MetricsMiddleware)

	healthHandler := handler.NewHealthHandler(api.ledger, api.redis, api.economy != nil)
	economyHandler := handler.NewEconomyHandler(api.economy)

	// Public Routes
	r.Group(func(r chi.Router) {
		r.Use(middleware.PublicRateLimiter(api.cfg.RateLimitRPS))
		r.Get("/health/live", healthHandler.Live)
		r.Get("/health/ready", healthHandler.Ready)
		r.Method(http.MethodGet, "/metrics", promhttp.Handler())
		r.Get("/openapi.yaml", spec.OpenAPIHandler())
		r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/openapi.yaml")))
	})

	// Protected Routes
	r.Route("/v1", func(r chi.Router) {
		r.Use(middleware.AuthMiddleware)
		r.Use(middleware.ClientRateLimiter(api.cfg.RateLimitRPS))
		r.Use(economyHandler.RequireFacade)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireScope(middleware.ScopeRead))
			r.Post("/economy/balance", economyHandler.Balance)
			r.Post("/economy/funds", economyHandler.CheckFunds)
			r.Post("/economy/account-check", economyHandler.CheckAccount)
			r.Post("/economy/format", economyHandler.FormatAmount)
			r.Post("/economy/hold", economyHandler.CheckHold)
			r.Post("/accounts/query", economyHandler.QueryAccount)
			r.Post("/accounts/access", economyHandler.CheckAccess)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireScope(middleware.ScopeWrite))
			r.Post("/economy/add", economyHandler.Add)
			r.Post("/economy/subtract", economyHandler.Subtract)
			r.Post("/economy/transfer", economyHandler.Transfer)
		})
	})

	return r
}
