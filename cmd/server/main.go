// Package main runs the BeeTopic entitlements HTTP server with graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/beetopic/backend/config"
	"github.com/beetopic/backend/internal/analytics"
	"github.com/beetopic/backend/internal/auth"
	"github.com/beetopic/backend/internal/channels"
	"github.com/beetopic/backend/internal/coupons"
	"github.com/beetopic/backend/internal/middleware"
	"github.com/beetopic/backend/internal/notifications"
	"github.com/beetopic/backend/internal/subscriptions"
	"github.com/beetopic/backend/pkg/database"
	"github.com/beetopic/backend/pkg/queue"
	"github.com/beetopic/backend/pkg/redis"
	"github.com/beetopic/backend/pkg/response"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}
	loc, err := cfg.Subscription.Location()
	if err != nil {
		logger.Fatal("business timezone", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB}, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.Issuer)
	jobQueue := queue.NewQueue(rdb.Client, logger)

	// Channels
	channelRepo := channels.NewRepository(pool)
	channelHandler := channels.NewHandler(channelRepo, logger)
	ownerOnly := channels.RequireOwner(channelRepo)

	// Coupons (creator console)
	couponRepo := coupons.NewRepository(pool)
	couponHandler := coupons.NewHandler(couponRepo, loc, logger)

	// Subscriptions (redemption engine + ledger)
	ledger := subscriptions.NewRepository(pool)
	subscriptionService := subscriptions.NewService(couponRepo, ledger, subscriptions.Options{
		TrialDays: cfg.Subscription.TrialDays,
		Location:  loc,
		Notifier:  jobQueue,
	}, logger)
	subscriptionHandler := subscriptions.NewHandler(subscriptionService, logger)

	analyticsHandler := analytics.NewHandler(ledger, couponRepo, logger)
	notificationHandler := notifications.NewHandler(notifications.NewRepository(pool), logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	// Health
	router.GET("/health", health(pool, rdb))

	// Public channel page
	router.GET("/channels/:id", channelHandler.Get)

	// Protected API (JWT required)
	api := router.Group("")
	api.Use(middleware.JWT(jwtService))
	{
		api.POST("/channels", channelHandler.Create)
		api.GET("/channels", channelHandler.ListMine)

		// Subscriber
		api.POST("/channels/:id/redeem", subscriptionHandler.Redeem)
		api.POST("/channels/:id/subscribe", subscriptionHandler.Subscribe)
		api.GET("/channels/:id/subscription", subscriptionHandler.Get)
		api.DELETE("/channels/:id/subscription", subscriptionHandler.Pause)
		api.GET("/subscriptions", subscriptionHandler.ListMine)

		// Channel owner
		api.POST("/channels/:id/coupons", ownerOnly, couponHandler.Create)
		api.GET("/channels/:id/coupons", ownerOnly, couponHandler.List)
		api.GET("/channels/:id/coupons/:couponId", ownerOnly, couponHandler.Get)
		api.DELETE("/channels/:id/coupons/:couponId", ownerOnly, couponHandler.Delete)
		api.GET("/channels/:id/subscriptions", ownerOnly, subscriptionHandler.ListChannel)
		api.GET("/channels/:id/transactions", ownerOnly, subscriptionHandler.ListTransactions)
		api.GET("/channels/:id/analytics", ownerOnly, analyticsHandler.GetByChannel)
		api.GET("/channels/:id/notifications", ownerOnly, notificationHandler.ListByChannel)
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

func health(pool *pgxpool.Pool, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if err := pool.Ping(ctx); err != nil {
			response.ServiceUnavailable(c, "database unavailable")
			return
		}
		if err := rdb.Healthy(ctx); err != nil {
			response.ServiceUnavailable(c, "redis unavailable")
			return
		}
		response.OK(c, gin.H{"status": "ok"})
	}
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
