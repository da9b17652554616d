package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	distributionapp "github.com/ketchup/backend/internal/application/distribution"
	issuanceapp "github.com/ketchup/backend/internal/application/issuance"
	reconciliationapp "github.com/ketchup/backend/internal/application/reconciliation"
	statusapp "github.com/ketchup/backend/internal/application/status"
	vaultapp "github.com/ketchup/backend/internal/application/vault"
	webhookapp "github.com/ketchup/backend/internal/application/webhookingest"
	"github.com/ketchup/backend/internal/domain/shared"
	"github.com/ketchup/backend/internal/infrastructure/buffr"
	"github.com/ketchup/backend/internal/infrastructure/cache"
	"github.com/ketchup/backend/internal/infrastructure/config"
	"github.com/ketchup/backend/internal/infrastructure/logger"
	"github.com/ketchup/backend/internal/infrastructure/notification"
	"github.com/ketchup/backend/internal/infrastructure/persistence"
	"github.com/ketchup/backend/internal/infrastructure/scheduler"
	"github.com/ketchup/backend/internal/interfaces/http/handler"
	"github.com/ketchup/backend/internal/interfaces/http/router"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	log, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting Ketchup backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	// Database
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level))
	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected")

	// Dedupe store; falls back to in-process when Redis is not configured
	var dedupeStore shared.DedupeStore
	var redisStore *cache.RedisDedupeStore
	if cfg.Redis.Host != "" {
		redisStore, err = cache.NewRedisDedupeStore(cache.RedisConfig{
			Host:     cfg.Redis.Host,
			Port:     cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			log.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		dedupeStore = redisStore
		log.Info("Redis connected")
	} else {
		dedupeStore = cache.NewInMemoryDedupeStore()
		log.Warn("Redis not configured; using in-process dedupe store")
	}
	defer func() {
		if err := dedupeStore.Close(); err != nil {
			log.Error("Error closing dedupe store", zap.Error(err))
		}
	}()

	// Repositories
	voucherRepo := persistence.NewGormVoucherRepository(db.DB)
	statusEventRepo := persistence.NewGormStatusEventRepository(db.DB)
	tokenRepo := persistence.NewGormTokenRepository(db.DB)
	webhookEventRepo := persistence.NewGormWebhookEventRepository(db.DB)
	idempotencyStore := persistence.NewGormIdempotencyStore(db.DB)
	reconciliationRepo := persistence.NewGormReconciliationRepository(db.DB)
	beneficiaryRepo := persistence.NewGormBeneficiaryRepository(db.DB)

	// External collaborators
	buffrClient := buffr.NewHTTPClient(buffr.Config{
		BaseURL: cfg.Buffr.BaseURL,
		APIKey:  cfg.Buffr.APIKey,
		Timeout: cfg.Buffr.Timeout,
	}, log)
	var notifier notification.Notifier = notification.NopNotifier{}
	if cfg.Notification.BaseURL != "" {
		notifier = notification.NewHTTPNotifier(notification.Config{
			BaseURL: cfg.Notification.BaseURL,
			APIKey:  cfg.Notification.APIKey,
			Timeout: cfg.Notification.Timeout,
		}, log)
	}

	// Application services
	vaultService := vaultapp.NewService(tokenRepo, log)
	statusService := statusapp.NewService(statusapp.Config{
		Vouchers:      voucherRepo,
		Events:        statusEventRepo,
		Beneficiaries: beneficiaryRepo,
		Notifier:      notifier,
		WarningWindow: cfg.Scheduler.ExpiryWarningWindow,
		Logger:        log,
	})
	distributionService := distributionapp.NewService(buffrClient, vaultService, statusEventRepo, log)
	issuanceService := issuanceapp.NewService(voucherRepo, statusEventRepo, beneficiaryRepo, distributionService, log)
	ingestService := webhookapp.NewService(webhookapp.Config{
		Events:          webhookEventRepo,
		StatusMonitor:   statusService,
		Idempotency:     idempotencyStore,
		Dedupe:          dedupeStore,
		Secret:          cfg.Webhook.Secret,
		StrictSignature: cfg.Webhook.StrictSignatureRequired,
		CacheTTL:        cfg.Idempotency.TTL,
		Logger:          log,
	})
	reconciliationService := reconciliationapp.NewService(voucherRepo, reconciliationRepo, buffrClient, log)

	// Background sweeps
	if cfg.Scheduler.Enabled {
		sweeper := scheduler.NewSweeper(scheduler.SweeperConfig{
			ExpirySweepInterval:  cfg.Scheduler.ExpirySweepInterval,
			WarningSweepInterval: cfg.Scheduler.WarningSweepInterval,
			CleanupInterval:      cfg.Scheduler.CleanupInterval,
			TokenRetention:       cfg.Vault.CleanupRetention,
		}, statusService, vaultService, idempotencyStore, log)
		if err := sweeper.Start(context.Background()); err != nil {
			log.Fatal("Failed to start sweeper", zap.Error(err))
		}
		defer func() {
			if err := sweeper.Stop(context.Background()); err != nil {
				log.Error("Error stopping sweeper", zap.Error(err))
			}
		}()
	}
	if cfg.Reconciliation.Enabled {
		hour, minute, err := scheduler.ParseRunAt(cfg.Reconciliation.RunAt)
		if err != nil {
			log.Fatal("Invalid reconciliation run_at", zap.Error(err))
		}
		triggerCfg := scheduler.DefaultReconTriggerConfig()
		triggerCfg.RunHour = hour
		triggerCfg.RunMinute = minute
		reconTrigger := scheduler.NewReconTrigger(triggerCfg, reconciliationService, log)
		if err := reconTrigger.Start(context.Background()); err != nil {
			log.Fatal("Failed to start reconciliation trigger", zap.Error(err))
		}
		defer func() {
			if err := reconTrigger.Stop(context.Background()); err != nil {
				log.Error("Error stopping reconciliation trigger", zap.Error(err))
			}
		}()
	}

	// HTTP surface
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	var redisClient *redis.Client
	if redisStore != nil {
		redisClient = redisStore.Client()
	}

	var rateCounter cache.RateCounter
	if cfg.HTTP.RateLimitEnabled && redisClient != nil {
		rateCounter = cache.NewRedisRateCounter(redisClient)
	}

	handlers := router.Handlers{
		Webhook: handler.NewWebhookHandler(ingestService),
		Voucher: handler.NewVoucherHandler(issuanceService, distributionService,
			statusService, voucherRepo, beneficiaryRepo),
		Token:          handler.NewTokenHandler(vaultService, statusService),
		Reconciliation: handler.NewReconciliationHandler(reconciliationService),
		System:         handler.NewSystemHandler(db, redisClient),
	}

	engine := router.New(router.Config{
		Handlers:    handlers,
		Logger:      log,
		RateCounter: rateCounter,
		RateLimit:   int64(cfg.HTTP.RateLimitRequests),
		RateWindow:  cfg.HTTP.RateLimitWindow,
	})

	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown", zap.Error(err))
	}
	log.Info("Server exited gracefully")
}
