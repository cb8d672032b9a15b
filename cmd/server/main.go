// Package main provides the API server entry point for the NAV erosion
// tracker.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nav-tracker/internal/api"
	"github.com/nav-tracker/internal/config"
	"github.com/nav-tracker/internal/logging"
	"github.com/nav-tracker/internal/provider"
	"github.com/nav-tracker/internal/service"
	"github.com/nav-tracker/internal/storage"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		logging.Global().WithError(err).Fatal("Failed to load configuration")
	}

	// Initialize structured logging
	logging.Init(logging.ParseLevel(cfg.Logging.Level), logging.ParseFormat(cfg.Logging.Format))

	logger := logging.Global()
	logger.WithFields(map[string]interface{}{
		"level":  cfg.Logging.Level,
		"format": cfg.Logging.Format,
	}).Info("Structured logging initialized")

	// Connect to Postgres
	logger.Info("Connecting to Postgres...")
	postgres, err := storage.NewPostgresDB(&cfg.Postgres)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to Postgres")
	}
	defer postgres.Close()

	// Redis is optional. Without it the scorecard is rebuilt per request.
	var cacheService *storage.CacheService
	if cfg.Redis.Addr != "" {
		redis, err := storage.NewRedisCache(&cfg.Redis)
		if err != nil {
			logger.WithError(err).Fatal("Failed to connect to Redis")
		}
		defer redis.Close()
		cacheService = storage.NewCacheService(redis, cfg.Redis.CacheTTL)
		logger.WithField("ttl", cfg.Redis.CacheTTL.String()).Info("Scorecard cache enabled")
	} else {
		logger.Info("Redis not configured, running without scorecard cache")
	}

	// Initialize repositories
	etfRepo := storage.NewETFRepository(postgres)
	snapshotRepo := storage.NewSnapshotRepository(postgres)
	metricRepo := storage.NewMetricRepository(postgres)
	settingsRepo := storage.NewSettingsRepository(postgres)

	// Market data provider
	marketData := provider.NewYahooClient(&cfg.Provider)

	// Initialize services
	trackerService := service.NewTrackerService(
		etfRepo,
		snapshotRepo,
		metricRepo,
		settingsRepo,
		marketData,
		cacheService,
		cfg.Provider.LookbackMonths,
	)
	scorecardService := service.NewScorecardService(
		etfRepo,
		snapshotRepo,
		metricRepo,
		settingsRepo,
		cacheService,
	)
	settingsService := service.NewSettingsService(
		settingsRepo,
		etfRepo,
		snapshotRepo,
		metricRepo,
		cacheService,
	)

	// Create the API server
	server := api.NewServer(
		&api.ServerConfig{
			Host:            cfg.Server.Host,
			Port:            cfg.Server.Port,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    60 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		trackerService,
		scorecardService,
		settingsService,
	)

	// Start serving in the background so signals can be handled here
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		logger.WithError(err).Fatal("Server failed")
	case sig := <-stop:
		logger.WithField("signal", sig.String()).Info("Shutting down")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("Graceful shutdown failed")
	}
}
