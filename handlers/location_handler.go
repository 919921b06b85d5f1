package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/pixelweather/weather-push-backend/errors"
	"github.com/pixelweather/weather-push-backend/logger"
	"github.com/pixelweather/weather-push-backend/store"
	"github.com/pixelweather/weather-push-backend/types"
)

// LocationHandler handles device registration and location queries.
type LocationHandler struct {
	store store.LocationStore
}

// NewLocationHandler creates a new LocationHandler.
func NewLocationHandler(st store.LocationStore) *LocationHandler {
	return &LocationHandler{store: st}
}

type setLocationRequest struct {
	Token string   `json:"token" binding:"required"`
	Lat   *float64 `json:"lat" binding:"required"`
	Lon   *float64 `json:"lon" binding:"required"`
}

// SetCurrentLocationHandler registers a device token at its reported
// coordinate. Re-registration moves the token: it is pruned from every other
// coordinate's subscriber set.
func (h *LocationHandler) SetCurrentLocationHandler(c *gin.Context) {
	log := logger.GetLogger()

	var req setLocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(apperrors.ValidationFailed("token, lat and lon are required", err.Error()))
		c.Abort()
		return
	}

	if *req.Lat < -90 || *req.Lat > 90 || *req.Lon < -180 || *req.Lon > 180 {
		_ = c.Error(apperrors.ValidationFailed("coordinates out of range",
			fmt.Sprintf("lat=%f lon=%f", *req.Lat, *req.Lon)))
		c.Abort()
		return
	}

	coord := types.NewCoordinate(*req.Lat, *req.Lon)
	if err := h.store.SetCurrentLocation(c.Request.Context(), req.Token, coord); err != nil {
		_ = c.Error(apperrors.NewStoreError(err))
		c.Abort()
		return
	}

	log.Infow("Device location registered",
		"token", logger.MaskToken(req.Token),
		"coordinate", coord.Key())

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"location": coord,
	})
}

// ListLocationsHandler reports every known coordinate with its subscriber
// count. Debug surface for operators.
func (h *LocationHandler) ListLocationsHandler(c *gin.Context) {
	coords, err := h.store.ListLocations(c.Request.Context())
	if err != nil {
		_ = c.Error(apperrors.NewStoreError(err))
		c.Abort()
		return
	}

	locations := make([]gin.H, 0, len(coords))
	for _, coord := range coords {
		tokens, err := h.store.Subscribers(c.Request.Context(), coord)
		if err != nil {
			_ = c.Error(apperrors.NewStoreError(err))
			c.Abort()
			return
		}
		locations = append(locations, gin.H{
			"coordinate":  coord,
			"subscribers": len(tokens),
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"count":     len(locations),
		"locations": locations,
	})
}
