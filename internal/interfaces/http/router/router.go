// Package router wires handlers to the HTTP surface.
package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ketchup/backend/internal/infrastructure/cache"
	"github.com/ketchup/backend/internal/infrastructure/logger"
	"github.com/ketchup/backend/internal/interfaces/http/handler"
	"github.com/ketchup/backend/internal/interfaces/http/middleware"
	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20 // 1 MB

// Handlers bundles every handler the router registers
type Handlers struct {
	Webhook        *handler.WebhookHandler
	Voucher        *handler.VoucherHandler
	Token          *handler.TokenHandler
	Reconciliation *handler.ReconciliationHandler
	System         *handler.SystemHandler
}

// Config configures the router
type Config struct {
	Handlers Handlers
	Logger   *zap.Logger
	// RateCounter enables per-IP rate limiting when set
	RateCounter cache.RateCounter
	RateLimit   int64
	RateWindow  time.Duration
}

// New builds the gin engine with middleware and all routes registered
func New(cfg Config) *gin.Engine {
	engine := gin.New()
	engine.Use(
		middleware.RequestID(),
		middleware.Secure(),
		logger.GinMiddleware(cfg.Logger),
		logger.Recovery(cfg.Logger),
		middleware.BodyLimit(maxBodyBytes),
	)

	// Probes stay outside the versioned group and the rate limiter
	engine.GET("/healthz", cfg.Handlers.System.Healthz)
	engine.GET("/readyz", cfg.Handlers.System.Readyz)

	api := engine.Group("/api/v1")
	if cfg.RateCounter != nil && cfg.RateLimit > 0 {
		api.Use(middleware.RateLimit(cfg.RateCounter, middleware.RateLimitConfig{
			Limit:  cfg.RateLimit,
			Window: cfg.RateWindow,
		}, cfg.Logger))
	}

	webhooks := api.Group("/webhooks")
	{
		webhooks.POST("/buffr", cfg.Handlers.Webhook.HandleBuffrWebhook)
		webhooks.POST("/:id/retry", cfg.Handlers.Webhook.HandleRetry)
	}

	vouchers := api.Group("/vouchers")
	{
		vouchers.POST("", cfg.Handlers.Voucher.Issue)
		vouchers.GET("/:id", cfg.Handlers.Voucher.Get)
		vouchers.GET("/:id/history", cfg.Handlers.Voucher.History)
		vouchers.POST("/:id/distribute", cfg.Handlers.Voucher.Distribute)
	}
	api.POST("/distributions/batch", cfg.Handlers.Voucher.DistributeBatch)
	api.GET("/events/recent", cfg.Handlers.Voucher.RecentEvents)

	tokens := api.Group("/tokens")
	{
		tokens.POST("/validate", cfg.Handlers.Token.Validate)
		tokens.POST("/redeem", cfg.Handlers.Token.Redeem)
		tokens.GET("/:id", cfg.Handlers.Token.Get)
	}

	recon := api.Group("/reconciliation")
	{
		recon.POST("/verify", cfg.Handlers.Reconciliation.Verify)
		recon.GET("/records", cfg.Handlers.Reconciliation.Records)
	}

	return engine
}
