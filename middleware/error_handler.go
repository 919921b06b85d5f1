package middleware

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/pixelweather/weather-push-backend/errors"
	"github.com/pixelweather/weather-push-backend/logger"
)

// ErrorHandler converts errors attached to the gin context into a uniform
// JSON error response. Handlers attach errors with c.Error and abort; this
// middleware decides the status code and response shape.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		err := c.Errors.Last().Err
		log := logger.GetLogger()

		if appError, ok := err.(*errors.AppError); ok {
			statusCode := appError.GetHTTPStatus()
			log.Errorw("Request failed",
				"path", c.Request.URL.Path,
				"method", c.Request.Method,
				"status", statusCode,
				"errorType", string(appError.Type),
				"error", appError.Message,
				"detail", appError.Detail)

			response := gin.H{
				"type":    string(appError.Type),
				"message": appError.Message,
				"code":    strconv.Itoa(statusCode),
			}
			// Only validation and not-found details are safe to echo back.
			if appError.Detail != "" && (appError.Type == errors.ValidationError ||
				appError.Type == errors.NotFoundError) {
				response["details"] = appError.Detail
			}

			c.JSON(statusCode, response)
			return
		}

		if c.Errors.Last().Type == gin.ErrorTypeBind {
			log.Warnw("Request binding error",
				"path", c.Request.URL.Path,
				"error", err)
			c.JSON(400, gin.H{
				"type":    string(errors.ValidationError),
				"message": "Failed to bind request",
				"code":    "400",
			})
			return
		}

		log.Errorw("Unexpected server error",
			"path", c.Request.URL.Path,
			"method", c.Request.Method,
			"error", err)
		c.JSON(500, gin.H{
			"type":    string(errors.ServerError),
			"message": "An unexpected error occurred",
			"code":    "500",
		})
	}
}
