// Package main runs the voice channel manager: presence intake, the
// interaction endpoint for the bot gateway and the operator API.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/voicehub/backend/config"
	"github.com/voicehub/backend/internal/auth"
	"github.com/voicehub/backend/internal/gateway"
	"github.com/voicehub/backend/internal/interactions"
	"github.com/voicehub/backend/internal/middleware"
	"github.com/voicehub/backend/internal/ops"
	"github.com/voicehub/backend/internal/realtime"
	"github.com/voicehub/backend/internal/store"
	"github.com/voicehub/backend/internal/voice"
	"github.com/voicehub/backend/internal/worker"
	"github.com/voicehub/backend/pkg/database"
	"github.com/voicehub/backend/pkg/queue"
	"github.com/voicehub/backend/pkg/redis"
	"github.com/voicehub/backend/pkg/response"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
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

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	channelStore := store.NewPostgres(pool)
	gatewayClient := gateway.NewClient(cfg.Gateway, logger)
	registry := voice.NewRegistry()
	cooldown := voice.NewCooldown(cfg.Voice.CreateCooldown)
	hub := realtime.NewHub(logger)
	jobQueue := queue.NewQueue(rdb.Client, logger)

	// Restore in-memory state from the database before taking traffic.
	reconciler := voice.NewReconciler(channelStore, gatewayClient, registry, logger)
	stats, err := reconciler.Run(ctx)
	if err != nil {
		logger.Fatal("reconcile", zap.Error(err))
	}
	logger.Info("reconciled",
		zap.Int("restored", stats.Restored),
		zap.Int("purged", stats.Purged),
		zap.Int("failed", stats.Failed),
	)

	manager := voice.NewManager(cfg.Voice, channelStore, gatewayClient, gatewayClient, registry, cooldown, logger)
	manager.SetCleanupQueue(jobQueue)
	manager.SetEvents(hub)

	access := voice.NewAccessController(channelStore, gatewayClient, cfg.Voice.InviteWindow, logger)
	dispatcher := voice.NewDispatcher(channelStore, gatewayClient, gatewayClient, registry, access, cfg.Voice.NamePrefix, cfg.Voice.OwnerRights, logger)
	dispatcher.SetEvents(hub)
	dispatcher.SetDriftHandler(func() {
		if _, err := reconciler.Run(context.Background()); err != nil {
			logger.Error("drift reconcile", zap.Error(err))
		}
	})

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	authHandler := auth.NewHandler(cfg.Admin, jwtService, logger)
	interactionHandler := interactions.NewHandler(dispatcher, logger)
	opsHandler := ops.NewHandler(channelStore, registry, gatewayClient, reconciler, gatewayClient, hub, logger)

	jwtValidate := func(token string) error {
		_, err := jwtService.Validate(token)
		return err
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	// Health
	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	// Auth (public)
	router.POST("/auth/login", authHandler.Login)

	// Bot gateway callbacks (shared-secret token, not JWT)
	gw := router.Group("/gateway")
	gw.Use(middleware.GatewayAuth(cfg.Gateway.Token))
	{
		gw.POST("/interactions", interactionHandler.Handle)
	}

	// Operator API (JWT required)
	api := router.Group("/api")
	api.Use(middleware.JWT(jwtService))
	{
		api.GET("/channels", opsHandler.ListChannels)
		api.GET("/channels/:id", opsHandler.GetChannel)
		api.POST("/reconcile", opsHandler.Reconcile)
		api.GET("/stats", opsHandler.Stats)
		api.POST("/panel/publish", opsHandler.PublishPanel)
	}

	// WebSocket event stream (token in query)
	router.GET("/ws", realtime.ServeWs(hub, logger, jwtValidate))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	// Cleanup retry worker
	cleanup := worker.NewCleanupProcessor(channelStore, gatewayClient, registry, jobQueue, logger)
	go cleanup.Run(workerCtx)

	// Presence intake from the bot gateway
	presence := gateway.NewPresenceSubscriber(rdb.Client, cfg.Gateway.PresenceChannel, logger)
	go func() {
		if err := presence.Run(workerCtx, manager.HandlePresence); err != nil && !errors.Is(err, context.Canceled) {
			logger.Fatal("presence subscriber", zap.Error(err))
		}
	}()

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	workerCancel()
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
