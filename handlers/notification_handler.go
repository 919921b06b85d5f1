package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	apperrors "github.com/pixelweather/weather-push-backend/errors"
	"github.com/pixelweather/weather-push-backend/logger"
	"github.com/pixelweather/weather-push-backend/services"
	"github.com/pixelweather/weather-push-backend/types"
)

// NotificationHandler exposes the operator test-send endpoint.
type NotificationHandler struct {
	dispatcher *services.DispatchService
}

// NewNotificationHandler creates a new NotificationHandler.
func NewNotificationHandler(dispatcher *services.DispatchService) *NotificationHandler {
	return &NotificationHandler{dispatcher: dispatcher}
}

type testNotificationRequest struct {
	Token    string            `json:"token" binding:"required"`
	Title    string            `json:"title" binding:"required"`
	Body     string            `json:"body" binding:"required"`
	Priority string            `json:"priority"`
	Data     map[string]string `json:"data"`
}

// SendTestHandler delivers one direct push to a single token so an operator
// can verify a device. Suppression rules do not apply.
func (h *NotificationHandler) SendTestHandler(c *gin.Context) {
	log := logger.GetLogger()

	var req testNotificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(apperrors.ValidationFailed("token, title and body are required", err.Error()))
		c.Abort()
		return
	}

	if !isExpoToken(req.Token) {
		_ = c.Error(apperrors.ValidationFailed("invalid push token",
			"expected an ExponentPushToken[...] value"))
		c.Abort()
		return
	}

	result := h.dispatcher.SendDirect(c.Request.Context(), types.PushMessage{
		To:       req.Token,
		Title:    req.Title,
		Body:     req.Body,
		Priority: req.Priority,
		Data:     req.Data,
	})
	if !result.Success {
		_ = c.Error(apperrors.DeliveryFailed(req.Token, fmt.Errorf("%s", result.Error)))
		c.Abort()
		return
	}

	log.Infow("Test notification delivered", "token", logger.MaskToken(req.Token))
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// isExpoToken reports whether a token looks like an Expo push token.
func isExpoToken(token string) bool {
	return strings.HasPrefix(token, "ExponentPushToken[") && strings.HasSuffix(token, "]")
}
