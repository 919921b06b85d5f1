package services

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/pixelweather/weather-push-backend/config"
	"github.com/pixelweather/weather-push-backend/logger"
	"github.com/pixelweather/weather-push-backend/metrics"
	"github.com/pixelweather/weather-push-backend/types"
)

const (
	routineTitle  = "🌤️ Pixel Weather"
	pushChannelID = "weather-alerts"

	// maxRoutineChanges caps how many descriptors fit in one message body.
	maxRoutineChanges = 2
)

// DispatchService turns detection results into push messages, applying
// quiet-hours and rate-limit suppression to routine notifications only.
type DispatchService struct {
	sender  PushSender
	limiter RateLimiter
	cfg     config.NotifyConfig
	clock   clockwork.Clock
	logger  *zap.SugaredLogger
}

// NewDispatchService creates the dispatcher. The clock is injected so quiet
// hours are testable against fixed times.
func NewDispatchService(sender PushSender, limiter RateLimiter, cfg config.NotifyConfig, clock clockwork.Clock) *DispatchService {
	return &DispatchService{
		sender:  sender,
		limiter: limiter,
		cfg:     cfg,
		clock:   clock,
		logger:  logger.GetLogger().Named("dispatch"),
	}
}

// inQuietHours reports whether the local hour falls inside the configured
// window. The window may wrap midnight (default 23:00–07:00).
func (s *DispatchService) inQuietHours(now time.Time) bool {
	start, end := s.cfg.QuietHoursStart, s.cfg.QuietHoursEnd
	if start == end {
		return false
	}
	h := now.Hour()
	if start < end {
		return h >= start && h < end
	}
	return h >= start || h < end
}

// DispatchChanges sends one routine change notification per eligible token.
// Suppressed tokens are recorded with their reason; they are not failures.
func (s *DispatchService) DispatchChanges(ctx context.Context, tokens []string, coord types.Coordinate, changes []types.ChangeDescriptor) *types.DispatchResult {
	result := &types.DispatchResult{}
	if len(tokens) == 0 || len(changes) == 0 {
		return result
	}

	if s.inQuietHours(s.clock.Now()) {
		for _, token := range tokens {
			result.Skipped = append(result.Skipped, types.SkippedDelivery{
				Token:  token,
				Reason: types.SkipQuietHours,
			})
			metrics.NotificationsSkipped().WithLabelValues(string(types.SkipQuietHours)).Inc()
		}
		s.logger.Infow("Routine notification suppressed by quiet hours",
			"coordinate", coord.Key(),
			"tokens", len(tokens))
		return result
	}

	texts := make([]string, 0, maxRoutineChanges)
	for i, change := range changes {
		if i == maxRoutineChanges {
			break
		}
		texts = append(texts, change.Text)
	}
	body := strings.Join(texts, " • ")

	var messages []types.PushMessage
	for _, token := range tokens {
		allowed, err := s.limiter.Allow(ctx, token)
		if err != nil {
			// A broken limiter must not silence notifications; fail open.
			s.logger.Warnw("Rate limit check failed, allowing send",
				"token", logger.MaskToken(token),
				"error", err)
			allowed = true
		}
		if !allowed {
			result.Skipped = append(result.Skipped, types.SkippedDelivery{
				Token:  token,
				Reason: types.SkipRateLimit,
			})
			metrics.NotificationsSkipped().WithLabelValues(string(types.SkipRateLimit)).Inc()
			continue
		}

		messages = append(messages, types.PushMessage{
			To:        token,
			Title:     routineTitle,
			Body:      body,
			Sound:     "default",
			Priority:  "normal",
			ChannelID: pushChannelID,
			Data:      s.messageData(coord, "change", nil),
		})
	}

	s.deliver(ctx, messages, "routine", result)
	return result
}

// DispatchAlerts sends every emergency alert to every token. Quiet hours and
// rate limiting never apply: hazards must always reach the user.
func (s *DispatchService) DispatchAlerts(ctx context.Context, tokens []string, coord types.Coordinate, alerts []types.EmergencyAlert) *types.DispatchResult {
	result := &types.DispatchResult{}
	if len(tokens) == 0 || len(alerts) == 0 {
		return result
	}

	var messages []types.PushMessage
	for _, alert := range alerts {
		priority := "normal"
		if alert.Priority == types.AlertPriorityHigh {
			priority = "high"
		}
		for _, token := range tokens {
			messages = append(messages, types.PushMessage{
				To:        token,
				Title:     alert.Title,
				Body:      alert.Body,
				Sound:     "default",
				Priority:  priority,
				ChannelID: pushChannelID,
				Data:      s.messageData(coord, "emergency", &alert),
			})
		}
	}

	s.deliver(ctx, messages, "emergency", result)
	return result
}

// SendDirect delivers a single pre-built message, bypassing all suppression.
// Used by the operator test endpoint.
func (s *DispatchService) SendDirect(ctx context.Context, msg types.PushMessage) types.DeliveryResult {
	if msg.Sound == "" {
		msg.Sound = "default"
	}
	if msg.ChannelID == "" {
		msg.ChannelID = pushChannelID
	}
	results := s.sender.Send(ctx, []types.PushMessage{msg})
	if len(results) == 0 {
		return types.DeliveryResult{Token: msg.To, Error: "no delivery result returned"}
	}
	return results[0]
}

func (s *DispatchService) messageData(coord types.Coordinate, kind string, alert *types.EmergencyAlert) map[string]string {
	data := map[string]string{
		"kind": kind,
		"lat":  formatCoordPart(coord.Lat),
		"lon":  formatCoordPart(coord.Lon),
	}
	if alert != nil {
		data["level"] = string(alert.Level)
		data["type"] = string(alert.Type)
	}
	return data
}

func formatCoordPart(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}

// deliver hands messages to the transport and folds per-message outcomes
// into the dispatch result.
func (s *DispatchService) deliver(ctx context.Context, messages []types.PushMessage, kind string, result *types.DispatchResult) {
	if len(messages) == 0 {
		return
	}

	for _, res := range s.sender.Send(ctx, messages) {
		if res.Success {
			result.Sent = append(result.Sent, res.Token)
			metrics.NotificationsSent().WithLabelValues(kind).Inc()
			continue
		}
		result.Failed = append(result.Failed, res)
	}
}
