package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/pixelweather/weather-push-backend/config"
	"github.com/pixelweather/weather-push-backend/logger"
	"github.com/pixelweather/weather-push-backend/metrics"
	"github.com/pixelweather/weather-push-backend/types"
)

// PushSender delivers push messages and reports a per-message outcome.
type PushSender interface {
	Send(ctx context.Context, messages []types.PushMessage) []types.DeliveryResult
}

// expoTicket is a single push ticket in the Expo response.
type expoTicket struct {
	Status  string `json:"status"` // "ok" or "error"
	ID      string `json:"id,omitempty"`
	Message string `json:"message,omitempty"`
	Details *struct {
		Error string `json:"error,omitempty"` // "DeviceNotRegistered", "InvalidCredentials", etc.
	} `json:"details,omitempty"`
}

type expoResponse struct {
	Data []expoTicket `json:"data"`
}

// ExpoPushService sends push messages through the Expo push HTTP API.
type ExpoPushService struct {
	url        string
	batchSize  int
	httpClient *http.Client
	logger     *zap.SugaredLogger
}

var _ PushSender = (*ExpoPushService)(nil)

// NewExpoPushService creates the Expo push transport from configuration.
func NewExpoPushService(cfg *config.PushConfig) *ExpoPushService {
	return &ExpoPushService{
		url:       cfg.URL,
		batchSize: cfg.BatchSize,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		},
		logger: logger.GetLogger().Named("expo-push"),
	}
}

// Send delivers messages in transport-sized batches. One failed batch records
// per-token failures for that batch and moves on; it never aborts the rest.
func (s *ExpoPushService) Send(ctx context.Context, messages []types.PushMessage) []types.DeliveryResult {
	results := make([]types.DeliveryResult, 0, len(messages))

	for i := 0; i < len(messages); i += s.batchSize {
		end := i + s.batchSize
		if end > len(messages) {
			end = len(messages)
		}

		batch := messages[i:end]
		batchResults, err := s.sendBatch(ctx, batch)
		if err != nil {
			s.logger.Errorw("Failed to send push batch",
				"batchStart", i,
				"batchEnd", end,
				"error", err)
			for _, msg := range batch {
				results = append(results, types.DeliveryResult{
					Token: msg.To,
					Error: err.Error(),
				})
			}
			continue
		}
		results = append(results, batchResults...)
	}

	return results
}

func (s *ExpoPushService) sendBatch(ctx context.Context, batch []types.PushMessage) ([]types.DeliveryResult, error) {
	if len(batch) == 0 {
		return nil, nil
	}

	body, err := json.Marshal(batch)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal messages: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send push notification: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		s.logger.Errorw("Expo push API returned non-OK status",
			"statusCode", resp.StatusCode,
			"response", string(respBody))
		return nil, fmt.Errorf("expo push API returned status %d", resp.StatusCode)
	}

	var expoResp expoResponse
	if err := json.Unmarshal(respBody, &expoResp); err != nil {
		// The push likely went through; treat the whole batch as accepted.
		s.logger.Warnw("Failed to parse Expo response",
			"error", err,
			"responseBody", string(respBody))
		results := make([]types.DeliveryResult, 0, len(batch))
		for _, msg := range batch {
			results = append(results, types.DeliveryResult{Token: msg.To, Success: true})
		}
		return results, nil
	}

	return s.processTickets(batch, expoResp.Data), nil
}

// processTickets pairs response tickets with their messages by position.
func (s *ExpoPushService) processTickets(batch []types.PushMessage, tickets []expoTicket) []types.DeliveryResult {
	results := make([]types.DeliveryResult, 0, len(batch))
	var okCount, errCount int

	for i, msg := range batch {
		if i >= len(tickets) {
			// Expo returned fewer tickets than messages; count the tail as sent.
			results = append(results, types.DeliveryResult{Token: msg.To, Success: true})
			okCount++
			continue
		}

		ticket := tickets[i]
		if ticket.Status == "error" {
			errCount++
			reason := ticket.Message
			if ticket.Details != nil && ticket.Details.Error != "" {
				reason = ticket.Details.Error
			}
			metrics.DeliveryFailures().Inc()
			s.logger.Warnw("Push notification failed",
				"token", logger.MaskToken(msg.To),
				"status", ticket.Status,
				"reason", reason)
			results = append(results, types.DeliveryResult{Token: msg.To, Error: reason})
			continue
		}

		okCount++
		s.logger.Debugw("Push notification ticket successful",
			"token", logger.MaskToken(msg.To),
			"ticketId", ticket.ID)
		results = append(results, types.DeliveryResult{Token: msg.To, Success: true})
	}

	s.logger.Infow("Push notification batch processed",
		"total", len(batch),
		"ok", okCount,
		"errors", errCount)
	return results
}
