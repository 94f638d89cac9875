package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/reqtrail/reqtrail/internal/config"
	"github.com/reqtrail/reqtrail/internal/handler"
	"github.com/reqtrail/reqtrail/internal/middleware"
	"github.com/reqtrail/reqtrail/internal/pkg/logger"
	"github.com/reqtrail/reqtrail/internal/repository"
	"github.com/reqtrail/reqtrail/internal/service"
	"github.com/reqtrail/reqtrail/internal/store"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger.Init(cfg.Log.Level)

	// 2. Initialize Persistence (Postgres > Redis > memory buffer)
	var historyRepo service.HistoryRepo
	if cfg.Database.DSN != "" {
		db, err := repository.NewDB(cfg)
		if err == nil {
			repo, migErr := repository.NewGormHistoryRepo(db)
			if migErr == nil {
				logger.Info("Connected to PostgreSQL")
				historyRepo = repo
			} else {
				logger.Error("Failed to migrate history schema", "error", migErr)
			}
		} else {
			logger.Error("Failed to connect to DB", "error", err)
		}
	}
	if historyRepo == nil && cfg.Redis.Addr != "" {
		client, err := repository.NewRedisClient(cfg)
		if err == nil {
			logger.Info("Connected to Redis")
			historyRepo = repository.NewRedisHistoryRepo(client, cfg.Redis.HistoryListKey, cfg.Redis.HistoryListMax)
		} else {
			logger.Error("Failed to connect to Redis", "error", err)
		}
	}
	if historyRepo == nil {
		logger.Warn("No durable sink configured, history is memory-only")
	}

	// 3. Initialize Core Services
	historySvc, err := service.NewHistoryService(cfg.History.LogDir, cfg.History.BufferSize, historyRepo)
	if err != nil {
		log.Fatalf("Failed to initialize history service: %v", err)
	}
	commandStore := store.NewCommandStore()

	// 4. Initialize Handlers
	historyHandler := handler.NewHistoryHandler(historySvc, cfg.History.View)
	commandHandler := handler.NewCommandHandler(commandStore)
	streamHandler := handler.NewStreamHandler(historySvc)

	// 5. Setup Router
	r := gin.Default()

	// Global Middleware
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.MetricsMiddleware())
	r.Use(middleware.HistoryMiddleware(historySvc, middleware.NewHistoryOptions(cfg.History)))

	// Health Check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok", "service": "reqtrail"})
	})

	// Metrics Endpoint
	if cfg.Metrics.Enabled {
		r.GET(cfg.Metrics.Path, gin.WrapH(promhttp.Handler()))
	}

	// API V1 Routes
	v1 := r.Group("/v1")
	v1.Use(middleware.RateLimitMiddleware(cfg.Server.RateLimitRPS))
	{
		v1.GET("/history", historyHandler.List)
		v1.DELETE("/history", historyHandler.Clear)
		v1.GET("/history/stream", streamHandler.Tail)

		v1.POST("/commands", commandHandler.Enqueue)
		v1.GET("/commands", commandHandler.Queue)
		v1.DELETE("/commands", commandHandler.Clear)

		v1.PUT("/state/:key", commandHandler.PutState)
		v1.GET("/state/:key", commandHandler.GetState)
	}

	// 6. Start Server with Graceful Shutdown
	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: r,
	}

	go func() {
		logger.Info("reqtrail started", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server listen failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown: ", err)
	}

	// in-flight requests may record right up until Shutdown returns
	historySvc.Close()

	logger.Info("Server exiting")
}
