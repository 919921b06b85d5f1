// Package router wires HTTP routes to their handlers.
package router

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/pixelweather/weather-push-backend/config"
	"github.com/pixelweather/weather-push-backend/handlers"
	"github.com/pixelweather/weather-push-backend/middleware"
	"github.com/pixelweather/weather-push-backend/services"
	"github.com/pixelweather/weather-push-backend/store"
)

// Dependencies carries everything the router needs to build handlers.
type Dependencies struct {
	Config     *config.Config
	Redis      *redis.Client
	Store      store.LocationStore
	Dispatcher *services.DispatchService
	Poller     *services.PollerService
}

// New builds the gin engine with all middleware and routes registered.
func New(deps Dependencies) *gin.Engine {
	if deps.Config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.Default()
	r.Use(middleware.RequestIDMiddleware())
	r.Use(middleware.CORSMiddleware(&deps.Config.Server))
	r.Use(middleware.ErrorHandler())

	healthHandler := handlers.NewHealthHandler(deps.Redis, deps.Config.Server.Version)
	locationHandler := handlers.NewLocationHandler(deps.Store)
	pollHandler := handlers.NewPollHandler(deps.Poller)
	notificationHandler := handlers.NewNotificationHandler(deps.Dispatcher)

	r.GET("/health", healthHandler.HealthCheck)
	r.GET("/health/liveness", healthHandler.LivenessCheck)
	r.GET("/metrics", gin.WrapH(promhttp.Handler())) // Prometheus metrics endpoint

	v1 := r.Group("/v1")
	{
		v1.POST("/location", locationHandler.SetCurrentLocationHandler)
		v1.POST("/poll", pollHandler.TriggerRunHandler)
		v1.POST("/notifications/test", notificationHandler.SendTestHandler)
		v1.GET("/debug/locations", locationHandler.ListLocationsHandler)
	}

	return r
}
