package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// HealthHandler reports process and dependency health.
type HealthHandler struct {
	rdb     *redis.Client
	version string
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(rdb *redis.Client, version string) *HealthHandler {
	return &HealthHandler{rdb: rdb, version: version}
}

// LivenessCheck reports that the process is up.
func (h *HealthHandler) LivenessCheck(c *gin.Context) {
	c.Status(http.StatusOK)
}

// HealthCheck reports overall health including the Redis dependency.
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	overall := "up"
	redisStatus := "up"
	status := http.StatusOK
	if err := h.rdb.Ping(ctx).Err(); err != nil {
		overall = "degraded"
		redisStatus = "down"
		status = http.StatusServiceUnavailable
	}

	c.JSON(status, gin.H{
		"status":  overall,
		"version": h.version,
		"components": gin.H{
			"redis": redisStatus,
		},
	})
}
