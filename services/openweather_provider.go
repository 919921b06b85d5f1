package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"

	"github.com/pixelweather/weather-push-backend/types"
)

// WeatherProvider is one upstream source of current-weather readings.
// Implementations normalize their raw condition codes onto the shared
// WMO-like scale and report wind in m/s.
type WeatherProvider interface {
	Name() string
	Fetch(ctx context.Context, lat, lon float64) (types.WeatherObservation, error)
}

// OpenWeatherProvider fetches current weather from OpenWeatherMap,
// the primary provider in the fallback chain.
type OpenWeatherProvider struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	circuit    *gobreaker.CircuitBreaker
}

var _ WeatherProvider = (*OpenWeatherProvider)(nil)

// NewOpenWeatherProvider creates the OpenWeatherMap provider client.
func NewOpenWeatherProvider(client *http.Client, apiKey string) *OpenWeatherProvider {
	return &OpenWeatherProvider{
		apiKey:     apiKey,
		baseURL:    "https://api.openweathermap.org/data/2.5/weather",
		httpClient: client,
		circuit: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "openweather",
			MaxRequests: 5,
			Interval:    1 * time.Minute,
			Timeout:     2 * time.Minute,
		}),
	}
}

func (p *OpenWeatherProvider) Name() string {
	return "openweather"
}

// Fetch retrieves and normalizes a current-weather reading.
func (p *OpenWeatherProvider) Fetch(ctx context.Context, lat, lon float64) (types.WeatherObservation, error) {
	if p.apiKey == "" {
		return types.WeatherObservation{}, fmt.Errorf("openweather api key is not configured")
	}

	result, err := p.circuit.Execute(func() (interface{}, error) {
		return p.fetch(ctx, lat, lon)
	})
	if err != nil {
		return types.WeatherObservation{}, err
	}
	return result.(types.WeatherObservation), nil
}

func (p *OpenWeatherProvider) fetch(ctx context.Context, lat, lon float64) (types.WeatherObservation, error) {
	params := url.Values{}
	params.Set("lat", fmt.Sprintf("%f", lat))
	params.Set("lon", fmt.Sprintf("%f", lon))
	params.Set("units", "metric")
	params.Set("appid", p.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s?%s", p.baseURL, params.Encode()), nil)
	if err != nil {
		return types.WeatherObservation{}, err
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return types.WeatherObservation{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return types.WeatherObservation{}, fmt.Errorf("openweather api error: %s", resp.Status)
	}

	var payload struct {
		Main struct {
			Temp float64 `json:"temp"`
		} `json:"main"`
		Weather []struct {
			ID int `json:"id"`
		} `json:"weather"`
		Wind struct {
			Speed float64 `json:"speed"` // already m/s with units=metric
		} `json:"wind"`
		Rain struct {
			OneH float64 `json:"1h"`
		} `json:"rain"`
		Snow struct {
			OneH float64 `json:"1h"`
		} `json:"snow"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return types.WeatherObservation{}, err
	}

	conditionID := 0
	if len(payload.Weather) > 0 {
		conditionID = payload.Weather[0].ID
	}

	precip := payload.Rain.OneH
	if precip == 0 {
		precip = payload.Snow.OneH
	}

	return types.WeatherObservation{
		Temperature:   payload.Main.Temp,
		WeatherCode:   convertOpenWeatherCode(conditionID),
		Precipitation: precip,
		WindSpeed:     payload.Wind.Speed,
		Source:        types.SourceOpenWeather,
		ObservedAt:    time.Now().UTC(),
	}, nil
}

// convertOpenWeatherCode maps an OpenWeatherMap condition group onto the
// shared WMO-like scale. Unmapped codes default to 3 (overcast).
func convertOpenWeatherCode(code int) int {
	switch {
	case code >= 200 && code < 300:
		return 95 // thunderstorm
	case code >= 300 && code < 400:
		return 51 // drizzle
	case code >= 500 && code < 600:
		return 61 // rain
	case code >= 600 && code < 700:
		return 71 // snow
	case code >= 700 && code < 800:
		return 45 // fog / atmosphere
	case code == 800:
		return 0 // clear
	case code == 801:
		return 1
	case code == 802:
		return 2
	case code == 803 || code == 804:
		return 3
	default:
		return 3
	}
}
