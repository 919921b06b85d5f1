package main

import (
	"context"
	"crypto/tls"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"

	"github.com/pixelweather/weather-push-backend/config"
	"github.com/pixelweather/weather-push-backend/logger"
	"github.com/pixelweather/weather-push-backend/router"
	"github.com/pixelweather/weather-push-backend/services"
	redisstore "github.com/pixelweather/weather-push-backend/store/redis"
)

func main() {
	// Initialize logger
	logger.InitLogger()
	log := logger.GetLogger()
	defer func() { _ = logger.Close() }()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize Redis client with TLS in production
	redisOptions := &redis.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}
	if cfg.Redis.UseTLS || cfg.IsProduction() {
		redisOptions.TLSConfig = &tls.Config{
			ServerName: cfg.Redis.Address,
			MinVersion: tls.VersionTLS12,
		}
	}
	redisClient := redis.NewClient(redisOptions)

	locationStore := redisstore.NewLocationStore(redisClient)

	// Services
	weatherService := services.NewWeatherService(&cfg.Weather)
	pushService := services.NewExpoPushService(&cfg.Push)
	rateLimiter := services.NewRedisRateLimiter(redisClient,
		time.Duration(cfg.Notify.MinIntervalMinutes)*time.Minute)
	dispatcher := services.NewDispatchService(pushService, rateLimiter, cfg.Notify, clockwork.NewRealClock())

	pool := services.NewWorkerPool(cfg.Poller)
	pool.Start()

	poller := services.NewPollerService(
		locationStore,
		weatherService,
		services.NewChangeDetector(),
		services.NewEmergencyEvaluator(),
		dispatcher,
		pool,
		cfg.Poller,
	)

	scheduler := services.NewScheduler(poller, time.Duration(cfg.Poller.IntervalMinutes)*time.Minute)
	if err := scheduler.Start(); err != nil {
		log.Fatalf("Failed to start polling schedule: %v", err)
	}

	r := router.New(router.Dependencies{
		Config:     cfg,
		Redis:      redisClient,
		Store:      locationStore,
		Dispatcher: dispatcher,
		Poller:     poller,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Infof("Starting server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Info("Shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(),
		time.Duration(cfg.Poller.ShutdownTimeoutSeconds)*time.Second)
	defer cancel()

	scheduler.Stop()
	if err := pool.Shutdown(shutdownCtx); err != nil {
		log.Warnw("Worker pool did not drain in time", "error", err)
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warnw("HTTP server shutdown failed", "error", err)
	}
	if err := redisClient.Close(); err != nil {
		log.Warnw("Redis client close failed", "error", err)
	}
	log.Info("Shutdown complete")
}
