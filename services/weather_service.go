package services

import (
	"context"
	"net/http"
	"time"

	"github.com/pixelweather/weather-push-backend/config"
	"github.com/pixelweather/weather-push-backend/errors"
	"github.com/pixelweather/weather-push-backend/logger"
	"github.com/pixelweather/weather-push-backend/metrics"
	"github.com/pixelweather/weather-push-backend/types"
)

// fallbackObservation is returned when every provider fails so a poll cycle
// can still complete. Its values are deliberately bland: routine comparison
// against it never trips a threshold.
func fallbackObservation(now time.Time) types.WeatherObservation {
	return types.WeatherObservation{
		Temperature:   0,
		WeatherCode:   3,
		Precipitation: 0,
		WindSpeed:     2,
		Source:        types.SourceFallback,
		IsFallback:    true,
		ObservedAt:    now,
	}
}

// WeatherService resolves a current-weather observation through an ordered
// provider chain. The chain is tried in order and the first success wins;
// when all providers fail the service degrades to a stub observation instead
// of failing the caller.
type WeatherService struct {
	providers []WeatherProvider
	now       func() time.Time
}

// NewWeatherService builds the provider chain from configuration:
// OpenWeatherMap first, WeatherAPI.com second.
func NewWeatherService(cfg *config.WeatherConfig) *WeatherService {
	client := &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second}
	return &WeatherService{
		providers: []WeatherProvider{
			NewOpenWeatherProvider(client, cfg.OpenWeatherAPIKey),
			NewWeatherAPIProvider(client, cfg.WeatherAPIKey),
		},
		now: time.Now,
	}
}

// NewWeatherServiceWithProviders builds a service over an explicit chain.
func NewWeatherServiceWithProviders(providers ...WeatherProvider) *WeatherService {
	return &WeatherService{providers: providers, now: time.Now}
}

// Fetch returns the first successful provider observation, or the fallback
// stub when the whole chain fails. The error return is reserved for context
// cancellation; provider failures alone never surface to the caller.
func (s *WeatherService) Fetch(ctx context.Context, coord types.Coordinate) (types.WeatherObservation, error) {
	log := logger.GetLogger()

	for _, provider := range s.providers {
		obs, err := provider.Fetch(ctx, coord.Lat, coord.Lon)
		if err == nil {
			metrics.ProviderFetches().WithLabelValues(provider.Name(), "success").Inc()
			return obs, nil
		}
		metrics.ProviderFetches().WithLabelValues(provider.Name(), "error").Inc()
		log.Warnw("Weather provider failed, trying next",
			"provider", provider.Name(),
			"coordinate", coord.Key(),
			"error", err)

		if ctx.Err() != nil {
			return types.WeatherObservation{}, errors.Wrap(ctx.Err(), errors.ProviderError, "weather fetch cancelled")
		}
	}

	metrics.ProviderFetches().WithLabelValues("fallback", "success").Inc()
	log.Warnw("All weather providers failed, using fallback observation",
		"coordinate", coord.Key())
	return fallbackObservation(s.now().UTC()), nil
}
