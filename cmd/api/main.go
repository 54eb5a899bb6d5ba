package main

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/orbitalworks/imagery-api/internal/handler"
	"github.com/orbitalworks/imagery-api/internal/middleware"
	"github.com/orbitalworks/imagery-api/internal/models"
	"github.com/orbitalworks/imagery-api/internal/repository"
	"github.com/orbitalworks/imagery-api/internal/service"
	"github.com/orbitalworks/imagery-api/pkg/cache"
	"github.com/orbitalworks/imagery-api/pkg/config"
	"github.com/orbitalworks/imagery-api/pkg/database"
	"github.com/orbitalworks/imagery-api/pkg/logger"
	corsmiddleware "github.com/orbitalworks/imagery-api/pkg/middleware/cors"
	reqidmiddleware "github.com/orbitalworks/imagery-api/pkg/middleware/requestid"
)

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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	metricsSvc := service.NewMetricsService()

	var cacheRepo service.CacheRepository
	if cfg.Cache.Enabled {
		redisClient, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
		} else {
			repo := repository.NewCacheRepository(redisClient, logr)
			defer repo.Close() //nolint:errcheck
			cacheRepo = repo
		}
	}
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Cache.TTL, logr, cfg.Cache.Enabled && cacheRepo != nil)

	validate := validator.New()

	userRepo := repository.NewUserRepository(db)
	requestRepo := repository.NewRequestRepository(db)

	authSvc := service.NewAuthService(userRepo, service.AuthConfig{
		Secret:     cfg.JWT.Secret,
		Expiration: cfg.JWT.Expiration,
	}, validate, logr)

	notifier := service.NewNotificationService(
		&service.LogNotificationGateway{FromEmail: cfg.Notifier.FromEmail, Logger: logr},
		metricsSvc,
		logr,
		service.NotificationServiceConfig{
			Enabled:    cfg.Notifier.Enabled,
			Workers:    cfg.Notifier.Workers,
			MaxRetries: cfg.Notifier.MaxRetries,
			RetryDelay: cfg.Notifier.RetryDelay,
		},
	)
	notifier.Start(context.Background())
	defer notifier.Stop()

	requestSvc := service.NewRequestService(requestRepo, notifier, cacheSvc, metricsSvc, validate, logr)
	exportSvc := service.NewExportService(requestSvc, cfg.Export.MaxRows, logr)

	authHandler := handler.NewAuthHandler(authSvc)
	requestHandler := handler.NewRequestHandler(requestSvc)
	adminHandler := handler.NewAdminRequestHandler(requestSvc, exportSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	api := r.Group(cfg.APIPrefix)
	{
		api.POST("/auth/login", authHandler.Login)

		api.POST("/imagery-requests", middleware.OptionalJWT(authSvc), requestHandler.Create)

		authed := api.Group("", middleware.JWT(authSvc))
		{
			authed.GET("/imagery-requests", requestHandler.List)
			authed.GET("/imagery-requests/:id", requestHandler.Get)
			authed.POST("/imagery-requests/:id/cancel", requestHandler.Cancel)
		}

		admin := api.Group("/admin", middleware.JWT(authSvc), middleware.RequireRoles(models.RoleAdmin))
		{
			admin.GET("/imagery-requests", adminHandler.List)
			admin.GET("/imagery-requests/stats", adminHandler.Stats)
			admin.GET("/imagery-requests/export", adminHandler.Export)
			admin.GET("/imagery-requests/:id", adminHandler.Get)
			admin.PUT("/imagery-requests/:id", adminHandler.Update)
			admin.GET("/imagery-requests/:id/quote.pdf", adminHandler.QuotePDF)
		}
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
