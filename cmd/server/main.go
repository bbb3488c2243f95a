package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/crossretail/retail-intel-go/internal/api"
	"github.com/crossretail/retail-intel-go/internal/cache"
	"github.com/crossretail/retail-intel-go/internal/config"
	"github.com/crossretail/retail-intel-go/internal/database"
	"github.com/crossretail/retail-intel-go/internal/logging"
	"github.com/crossretail/retail-intel-go/internal/services"
	"github.com/crossretail/retail-intel-go/internal/store"
)

func main() {
	// Optional .env for local development
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := logging.NewLogger(cfg.LogLevel, cfg.Environment)

	db, err := database.NewPostgresConnection(cfg.Database, logger)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	redis, err := database.NewRedisConnection(cfg.Redis, logger)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redis.Close()

	observationStore := store.NewPostgresStore(
		db.Pool,
		cfg.Engine.Retention(),
		cfg.Engine.RecencyWindow(),
		logger,
	)
	if err := observationStore.EnsureSchema(context.Background()); err != nil {
		log.Fatalf("Failed to ensure observation schema: %v", err)
	}

	queryCache := cache.NewQueryCache(
		redis.Client,
		config.Duration(cfg.Engine.StaleTTL, 24*time.Hour),
		logger,
	)

	facade := services.NewQueryFacade(observationStore, queryCache, services.FacadeConfig{
		RecencyWindow:   cfg.Engine.RecencyWindow(),
		RefreshBudget:   config.Duration(cfg.Engine.RefreshBudget, services.DefaultRefreshBudget),
		CacheTTL:        config.Duration(cfg.Engine.CacheTTL, 3*time.Minute),
		HistoryCacheTTL: config.Duration(cfg.Engine.HistoryCacheTTL, 10*time.Minute),
	}, logger)

	retention := services.NewRetentionService(
		observationStore,
		config.Duration(cfg.Engine.PruneInterval, time.Hour),
		logger,
	)
	if err := retention.Start(); err != nil {
		log.Fatalf("Failed to start retention service: %v", err)
	}
	defer retention.Stop()

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()
	api.SetupRoutes(router, facade, db, redis, logger)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.WithField("port", cfg.Server.Port).Info("Server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	logger.Info("Server exited")
}
