package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"villagehub/database"
	"villagehub/internal/config"
	"villagehub/internal/microservices/http-api/handler"
	"villagehub/internal/microservices/http-api/middleware"
	"villagehub/internal/microservices/http-api/repository"
	"villagehub/internal/microservices/http-api/service"
	"villagehub/internal/microservices/websocket"
	"villagehub/internal/queue"
)

const (
	shutdownTimeout = 15 * time.Second

	// a live push older than this is stale; dashboards pick it up from the inbox instead
	livePushTTL        = 2 * time.Minute
	livePushMaxRetries = 5
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	logger := newLogger(cfg)
	slog.SetDefault(logger)

	db, err := database.Connect(cfg, logger)
	if err != nil {
		logger.Error("database_connect_failed", "error", err.Error())
		os.Exit(1)
	}
	defer database.Close(db)

	if err := database.Migrate(db); err != nil {
		logger.Error("database_migrate_failed", "error", err.Error())
		os.Exit(1)
	}

	redisClient := connectRedis(cfg, logger)
	statsCache := repository.NewRedisStatsCache(redisClient, cfg.CacheTTLDuration(), logger)
	defer statsCache.Close()

	// Live push pipeline
	q := queue.NewReliableQueue(
		queue.WithLogger(logger),
		queue.WithDropHandler(func(msg *queue.Message, reason error) {
			logger.Warn("live_push_dropped",
				"message_id", msg.ID,
				"topic", msg.Metadata[websocket.MetadataTopic],
				"attempts", msg.RetryCount,
				"reason", reason.Error(),
			)
		}),
	)
	broker := websocket.NewBroker(q,
		websocket.WithIdleTimeout(cfg.WSIdleTimeout),
		websocket.WithMaxRetries(livePushMaxRetries),
		websocket.WithMessageTTL(livePushTTL),
		websocket.WithBrokerLogger(logger),
	)

	// Repositories and services
	notificationRepo := repository.NewNotificationRepository(db)
	deliveryRepo := repository.NewDeliveryRepository(db)
	adminRepo := repository.NewAdminRepository(db)

	store := service.NewNotificationService(notificationRepo, adminRepo, statsCache, logger)
	tracker := service.NewDeliveryService(deliveryRepo, statsCache, logger)
	notifier := service.NewNotifier(store, broker, logger)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(logger))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":      "ok",
			"connections": broker.ConnectionCount(),
			"queue":       broker.QueueStatus(),
		})
	})

	api := r.Group("/api/v1")
	api.Use(middleware.AuthMiddleware(cfg.JWTSecret))

	admin := api.Group("/admin/notifications")
	admin.Use(middleware.RequireAdmin())
	handler.NewNotificationHandler(tracker).RegisterRoutes(admin)

	internal := api.Group("/internal")
	internal.Use(middleware.RequireRole(middleware.RoleService))
	handler.NewNotifyHandler(notifier).RegisterRoutes(internal)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	wsRouter := gin.New()
	wsRouter.Use(gin.Recovery())
	wsRouter.GET(cfg.WSPath, websocket.WSHandler(broker))
	wsServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.WSPort),
		Handler:           wsRouter,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errChan := make(chan error, 2)
	go func() {
		logger.Info("starting_http_server", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("http server: %w", err)
		}
	}()
	go func() {
		logger.Info("starting_websocket_server", "addr", wsServer.Addr, "path", cfg.WSPath, "idle_timeout", cfg.WSIdleTimeout.String())
		if err := wsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("websocket server: %w", err)
		}
	}()

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	exitCode := 0
	select {
	case <-sigChan:
		logger.Info("received_shutdown_signal")
	case err := <-errChan:
		logger.Error("server_error", "error", err.Error())
		exitCode = 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	// hijacked websocket connections are not tracked by Shutdown, the broker closes them
	broker.Close()
	q.Close()
	if err := wsServer.Shutdown(ctx); err != nil {
		logger.Warn("websocket_server_shutdown_error", "error", err.Error())
	}
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Warn("http_server_shutdown_error", "error", err.Error())
	}
	logger.Info("server_stopped_gracefully")

	if exitCode != 0 {
		os.Exit(exitCode)
	}
}

func newLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	if cfg.LogFormat == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

// connectRedis returns nil when no cache is configured or redis is unreachable;
// the stats cache then falls through to the database.
func connectRedis(cfg *config.Config, logger *slog.Logger) *redis.Client {
	if cfg.RedisURL == "" {
		logger.Info("redis_disabled")
		return nil
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Warn("redis_url_invalid", "error", err.Error())
		return nil
	}
	if cfg.RedisPassword != "" {
		opts.Password = cfg.RedisPassword
	}

	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis_unavailable", "addr", opts.Addr, "error", err.Error())
		client.Close()
		return nil
	}
	logger.Info("redis_connected", "addr", opts.Addr)
	return client
}
