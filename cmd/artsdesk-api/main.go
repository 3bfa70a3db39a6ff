package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/artsdesk/artsdesk-api/api/swagger"
	"github.com/artsdesk/artsdesk-api/internal/handler"
	"github.com/artsdesk/artsdesk-api/internal/middleware"
	"github.com/artsdesk/artsdesk-api/internal/models"
	"github.com/artsdesk/artsdesk-api/internal/repository"
	"github.com/artsdesk/artsdesk-api/internal/service"
	"github.com/artsdesk/artsdesk-api/pkg/cache"
	"github.com/artsdesk/artsdesk-api/pkg/config"
	"github.com/artsdesk/artsdesk-api/pkg/database"
	"github.com/artsdesk/artsdesk-api/pkg/logger"
	corsmiddleware "github.com/artsdesk/artsdesk-api/pkg/middleware/cors"
	reqidmiddleware "github.com/artsdesk/artsdesk-api/pkg/middleware/requestid"
	"github.com/artsdesk/artsdesk-api/pkg/storage"
)

// @title Artsdesk API
// @version 1.0.0
// @description Submission and moderation backend for the arts directory
// @BasePath /api/v1
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, stats cache disabled", zap.Error(err))
		redisClient = nil
	}

	uploadStorage, err := storage.NewLocalStorage(cfg.Uploads.StorageDir)
	if err != nil {
		logr.Fatal("failed to prepare uploads dir", zap.Error(err))
	}
	transferStorage, err := storage.NewLocalStorage(cfg.Transfers.StorageDir)
	if err != nil {
		logr.Fatal("failed to prepare transfers dir", zap.Error(err))
	}
	signer := storage.NewSignedURLSigner(cfg.Transfers.SignedURLSecret, cfg.Transfers.SignedURLTTL)

	userRepo := repository.NewUserRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)
	moderationRepo := repository.NewModerationRepository(db)
	upgradeRepo := repository.NewUpgradeRepository(db)
	mappingRepo := repository.NewMappingRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	authSvc := service.NewAuthService(userRepo, validator.New(), logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "artsdesk-api",
	})

	metricsSvc := service.NewMetricsService()

	notificationSvc := service.NewNotificationService(notificationRepo, userRepo, service.NewSMTPMailer(cfg.Notifications), cfg.Notifications, logr)

	submissionSvc := service.NewSubmissionService(submissionRepo, moderationRepo, logr, cfg.Moderation.PageSize)
	moderationSvc := service.NewModerationService(submissionRepo, moderationRepo, notificationSvc, logr, cfg.Moderation.PageSize)
	upgradeSvc := service.NewUpgradeService(upgradeRepo, userRepo, submissionRepo, moderationRepo, notificationSvc, logr)
	uploadSvc := service.NewUploadService(submissionRepo, uploadStorage, cfg.Uploads, logr)
	transferSvc := service.NewTransferService(submissionRepo, mappingRepo, transferStorage, signer, logr, service.TransferServiceConfig{
		APIPrefix:     cfg.APIPrefix,
		MaxImportRows: cfg.Transfers.MaxImportRows,
	})

	var statsSvc *service.StatsService
	if cfg.Stats.Enabled {
		statsSvc = service.NewStatsService(submissionRepo, redisClient, metricsSvc, logr, cfg.Stats.CacheTTL)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	notificationSvc.Start(ctx)
	defer notificationSvc.Stop()

	go cleanupExports(ctx, transferStorage, cfg.Transfers.SignedURLTTL, logr)

	r := buildRouter(cfg, logr, routerDeps{
		auth:          authSvc,
		metrics:       metricsSvc,
		submissions:   submissionSvc,
		moderation:    moderationSvc,
		upgrades:      upgradeSvc,
		uploads:       uploadSvc,
		transfers:     transferSvc,
		notifications: notificationSvc,
		stats:         statsSvc,
		db:            pinger{db.PingContext},
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}

type pinger struct {
	ping func(ctx context.Context) error
}

type routerDeps struct {
	auth          *service.AuthService
	metrics       *service.MetricsService
	submissions   *service.SubmissionService
	moderation    *service.ModerationService
	upgrades      *service.UpgradeService
	uploads       *service.UploadService
	transfers     *service.TransferService
	notifications *service.NotificationService
	stats         *service.StatsService
	db            pinger
}

func buildRouter(cfg *config.Config, logr *zap.Logger, deps routerDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(deps.metrics))

	metricsHandler := handler.NewMetricsHandler(deps.metrics)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := deps.db.ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	authHandler := handler.NewAuthHandler(deps.auth)
	submissionHandler := handler.NewSubmissionHandler(deps.submissions, deps.uploads)
	moderationHandler := handler.NewModerationHandler(deps.moderation, nil, deps.metrics)
	if deps.stats != nil {
		moderationHandler = handler.NewModerationHandler(deps.moderation, deps.stats, deps.metrics)
	}
	upgradeHandler := handler.NewUpgradeHandler(deps.upgrades)
	transferHandler := handler.NewTransferHandler(deps.transfers)
	notificationHandler := handler.NewNotificationHandler(deps.notifications)

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	{
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)

		session := auth.Group("", middleware.JWT(deps.auth))
		session.POST("/logout", authHandler.Logout)
		session.POST("/change-password", authHandler.ChangePassword)
		session.GET("/me", authHandler.Me)
	}

	// Download is authenticated by the signed token in the query string;
	// claims are attached only so request logs carry the user when present.
	api.GET("/transfers/download", middleware.OptionalJWT(deps.auth), transferHandler.Download)

	authed := api.Group("", middleware.JWT(deps.auth))

	submissions := authed.Group("/submissions")
	{
		submissions.POST("", submissionHandler.Create)
		submissions.GET("", submissionHandler.List)
		submissions.GET("/:id", submissionHandler.Get)
		submissions.PUT("/:id", submissionHandler.Update)
		submissions.POST("/:id/submit", submissionHandler.Submit)
		submissions.POST("/:id/withdraw", submissionHandler.Withdraw)
		submissions.POST("/:id/gallery", submissionHandler.UploadGallery)
	}

	upgrades := authed.Group("/upgrades")
	{
		upgrades.POST("", upgradeHandler.Create)
		upgrades.GET("", upgradeHandler.List)
		upgrades.GET("/:id", upgradeHandler.Get)

		decide := upgrades.Group("", middleware.RequireRoles(models.ModerationRoles...))
		decide.POST("/:id/approve", upgradeHandler.Approve)
		decide.POST("/:id/deny", upgradeHandler.Deny)
	}

	notifications := authed.Group("/notifications")
	{
		notifications.GET("", notificationHandler.List)
		notifications.POST("/:id/read", notificationHandler.MarkRead)
	}

	moderation := authed.Group("/moderation", middleware.RequireRoles(models.ModerationRoles...))
	{
		moderation.GET("/queue", moderationHandler.Queue)
		moderation.GET("/queue/counts", moderationHandler.PendingCounts)
		moderation.POST("/approve", moderationHandler.Approve)
		moderation.POST("/deny", moderationHandler.Deny)
		moderation.GET("/history", moderationHandler.History)
	}

	transfers := authed.Group("/transfers", middleware.RequireRoles(models.ModerationRoles...))
	{
		transfers.GET("/export", transferHandler.Export)
		transfers.POST("/import", transferHandler.Import)
		transfers.POST("/mappings", transferHandler.CreateMapping)
		transfers.GET("/mappings", transferHandler.ListMappings)
		transfers.DELETE("/mappings/:id", transferHandler.DeleteMapping)
	}

	if deps.stats != nil {
		stats := authed.Group("/stats", middleware.RequireRoles(models.ModerationRoles...))
		stats.GET("/moderation", handler.NewStatsHandler(deps.stats).Moderation)
	}

	return r
}

// cleanupExports removes export files once their signed URLs can no
// longer reference them.
func cleanupExports(ctx context.Context, store *storage.LocalStorage, ttl time.Duration, logr *zap.Logger) {
	if ttl <= 0 {
		return
	}
	ticker := time.NewTicker(ttl)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := store.CleanupOlderThan(ttl)
			if err != nil {
				logr.Warn("export cleanup failed", zap.Error(err))
				continue
			}
			if len(removed) > 0 {
				logr.Info("expired exports removed", zap.Int("count", len(removed)))
			}
		}
	}
}
