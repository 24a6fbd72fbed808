package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fundilink/internal/config"
	"fundilink/internal/gateway"
	handlers "fundilink/internal/handlers/shared"
	"fundilink/internal/middleware"
	"fundilink/internal/repositories/mongodb"
	"fundilink/internal/services"
	"fundilink/pkg/cache"
	"fundilink/pkg/database"
	"fundilink/pkg/logger"
	ws "fundilink/pkg/websocket"
	"fundilink/routes"

	"github.com/gin-gonic/gin"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.NewLogger(&logger.Config{
		Level:  logger.LogLevel(cfg.App.LogLevel),
		Format: cfg.App.LogFormat,
		Output: "stdout",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}

	db, err := database.NewMongoDB(&database.DatabaseConfig{
		URI:            cfg.Database.URI,
		Database:       cfg.Database.Database,
		MaxPoolSize:    cfg.Database.MaxPoolSize,
		MinPoolSize:    cfg.Database.MinPoolSize,
		ConnectTimeout: cfg.Database.ConnectTimeout,
		SocketTimeout:  cfg.Database.SocketTimeout,
	})
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to MongoDB")
	}
	defer db.Close()

	if err := database.NewMigrator(db.Database).Up(); err != nil {
		log.WithError(err).Fatal("Failed to run migrations")
	}

	redisCache, err := cache.NewRedisCache(&cache.RedisConfig{
		Host:         cfg.Redis.Host,
		Port:         cfg.Redis.Port,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
		DialTimeout:  cfg.Redis.DialTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
	})
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to Redis")
	}
	defer redisCache.Close()

	cacheService := services.NewCacheService(redisCache, log)

	// Repositories
	userRepo := mongodb.NewUserRepository(db.Database, cacheService)
	conversationRepo := mongodb.NewConversationRepository(db.Database, cacheService)
	trackingRepo := mongodb.NewTrackingRepository(db.Database)
	notificationRepo := mongodb.NewNotificationRepository(db.Database)

	// Services
	authService := services.NewAuthService(userRepo, cfg.Security.JWTSecret, log)
	chatService := services.NewChatService(conversationRepo, log)
	trackingService := services.NewTrackingService(trackingRepo, cfg.Tracking, log)
	notificationSink := services.NewNotificationService(notificationRepo, cacheService, log)

	// Realtime core
	registry := ws.NewRegistry()
	hub := ws.NewHub(log)
	gw := gateway.NewGateway(hub, registry, authService, chatService, trackingService,
		notificationSink, userRepo, cfg.WebSocket, log)
	chatService.SetRoomMembership(gw)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go hub.Run(ctx)
	go runExpirySweep(ctx, trackingService, cfg.Tracking.SweepInterval, log)

	// HTTP surface
	if cfg.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORSMiddleware(cfg.Security.CORSAllowedOrigins))
	router.Use(middleware.RequestIDMiddleware())

	chatHandler := handlers.NewChatHandler(chatService)
	trackingHandler := handlers.NewTrackingHandler(trackingService)

	v1 := router.Group("/api/v1")
	routes.SetupRealtimeRoutes(router, v1, gw, chatHandler, trackingHandler, authService, cfg.WebSocket.Path)

	router.GET("/health", func(c *gin.Context) {
		status := "healthy"
		code := http.StatusOK
		if err := db.Ping(); err != nil {
			status = "degraded"
			code = http.StatusServiceUnavailable
		}
		if err := cacheService.Ping(c.Request.Context()); err != nil {
			status = "degraded"
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{
			"status":      status,
			"version":     cfg.App.Version,
			"connections": registry.ConnectionCount(),
		})
	})

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.App.Port),
		Handler: router,
	}

	go func() {
		log.WithField("port", cfg.App.Port).Info("Server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("Server failed")
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Server shutdown failed")
	}
}

// runExpirySweep periodically expires active sessions whose max duration
// elapsed without any further samples arriving.
func runExpirySweep(ctx context.Context, trackingService services.TrackingService, interval time.Duration, log *logger.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			expired, err := trackingService.ExpireOverdueSessions(ctx)
			if err != nil {
				log.WithError(err).Error("Session expiry sweep failed")
				continue
			}
			if expired > 0 {
				log.WithField("expired", expired).Info("Expired overdue tracking sessions")
			}
		case <-ctx.Done():
			return
		}
	}
}
