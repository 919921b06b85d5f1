package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pixelweather/weather-push-backend/services"
)

// PollHandler triggers polling runs over HTTP, in addition to the internal
// schedule. Used by external cron services and by operators.
type PollHandler struct {
	poller *services.PollerService
}

// NewPollHandler creates a new PollHandler.
func NewPollHandler(poller *services.PollerService) *PollHandler {
	return &PollHandler{poller: poller}
}

// TriggerRunHandler executes one polling run synchronously and returns its
// summary. A structural run failure maps to 500; per-coordinate failures are
// part of a successful summary.
func (h *PollHandler) TriggerRunHandler(c *gin.Context) {
	summary := h.poller.RunOnce(c.Request.Context())

	counts := make(map[string]int)
	for status, n := range summary.CountByStatus() {
		counts[string(status)] = n
	}

	response := gin.H{
		"runId":     summary.RunID,
		"startedAt": summary.StartedAt,
		"duration":  summary.Duration.String(),
		"success":   summary.Success,
		"counts":    counts,
		"results":   summary.Results,
	}
	if summary.Error != "" {
		response["error"] = summary.Error
	}

	status := http.StatusOK
	if !summary.Success {
		status = http.StatusInternalServerError
	}
	c.JSON(status, response)
}
