// Package main runs the EventsX HTTP server with graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/eventsx/backend/config"
	"github.com/eventsx/backend/internal/analytics"
	"github.com/eventsx/backend/internal/attendees"
	"github.com/eventsx/backend/internal/auth"
	"github.com/eventsx/backend/internal/capacity"
	"github.com/eventsx/backend/internal/events"
	"github.com/eventsx/backend/internal/metrics"
	"github.com/eventsx/backend/internal/middleware"
	"github.com/eventsx/backend/internal/models"
	"github.com/eventsx/backend/internal/store"
	"github.com/eventsx/backend/internal/store/local"
	"github.com/eventsx/backend/internal/store/remote"
	"github.com/eventsx/backend/pkg/database"
	"github.com/eventsx/backend/pkg/redis"
	"github.com/eventsx/backend/pkg/response"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()

	// The local store always exists; the service must come up with no
	// remote database at all.
	localStore, err := local.New(cfg.Local.Path, logger)
	if err != nil {
		logger.Fatal("local store", zap.Error(err))
	}

	var remoteStore store.Store
	if cfg.Remote.Configured() {
		pool, err := database.NewPostgresPool(cfg.Remote.DSN(), logger)
		if err != nil {
			logger.Warn("remote store disabled", zap.Error(err))
		} else {
			defer pool.Close()
			if err := database.Migrate(ctx, pool); err != nil {
				logger.Warn("remote schema migration failed", zap.Error(err))
			}
			remoteStore = remote.New(pool, logger, cfg.Adapter.MaxRetries, cfg.Adapter.RetryDelay)
		}
	} else {
		logger.Info("remote store not configured, running on local store")
	}

	var locker store.Locker
	if cfg.Redis.Addr != "" {
		rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
		if err != nil {
			logger.Warn("redis disabled", zap.Error(err))
		} else {
			defer rdb.Close()
			locker = rdb
		}
	}

	adapter := store.NewAdapter(remoteStore, localStore, logger, cfg.Adapter.ProbeTimeout, locker)
	metrics.Register()

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	engine := capacity.NewEngine(adapter, logger)

	authHandler := auth.NewHandler(adapter, jwtService, logger)
	eventHandler := events.NewHandler(events.NewService(adapter, logger))
	attendeeHandler := attendees.NewHandler(engine, adapter, logger)
	analyticsHandler := analytics.NewHandler(adapter, logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	router.GET("/healthz", func(c *gin.Context) {
		response.OK(c, gin.H{"status": "ok", "database": adapter.Mode(c.Request.Context()).String()})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/v1")

	authGroup := v1.Group("/auth")
	{
		authGroup.POST("/register", authHandler.Register)
		authGroup.POST("/login", authHandler.Login)
	}

	// Public reads and registration; event creation accepts anonymous
	// submissions carrying owner credentials.
	v1.GET("/events", eventHandler.List)
	v1.GET("/events/:id", eventHandler.GetByID)
	v1.POST("/events", middleware.OptionalJWT(jwtService), eventHandler.Create)
	v1.POST("/events/:id/attendees", attendeeHandler.Register)

	api := v1.Group("")
	api.Use(middleware.JWT(jwtService))
	{
		api.GET("/users", middleware.RequireRole(string(models.RoleSuperadmin)), authHandler.List)

		api.PUT("/events/:id", eventHandler.Update)
		api.DELETE("/events/:id", eventHandler.Delete)
		api.GET("/events/:id/attendees", attendeeHandler.List)
		api.GET("/events/:id/attendees/search", attendeeHandler.Search)
		api.GET("/events/:id/analytics", analyticsHandler.EventAnalytics)
		api.GET("/dashboard/stats", analyticsHandler.Dashboard)

		super := api.Group("")
		super.Use(middleware.RequireRole(string(models.RoleSuperadmin)))
		{
			super.POST("/events/:id/attendees/:attendeeID/checkin", attendeeHandler.CheckIn)
			super.DELETE("/events/:id/attendees/:attendeeID/checkin", attendeeHandler.Revert)
			super.POST("/events/:id/capacity", attendeeHandler.IncreaseCapacity)

			super.GET("/admin/database/status", analyticsHandler.DatabaseStatus)
			super.POST("/admin/database/switch", analyticsHandler.DatabaseSwitch)
			super.POST("/admin/database/migrate", analyticsHandler.DatabaseMigrate)
		}
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
