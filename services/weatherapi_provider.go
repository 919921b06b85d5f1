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

// WeatherAPIProvider fetches current weather from WeatherAPI.com, the
// secondary provider in the fallback chain.
type WeatherAPIProvider struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	circuit    *gobreaker.CircuitBreaker
}

var _ WeatherProvider = (*WeatherAPIProvider)(nil)

// NewWeatherAPIProvider creates the WeatherAPI.com provider client.
func NewWeatherAPIProvider(client *http.Client, apiKey string) *WeatherAPIProvider {
	return &WeatherAPIProvider{
		apiKey:     apiKey,
		baseURL:    "https://api.weatherapi.com/v1/current.json",
		httpClient: client,
		circuit: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "weatherapi",
			MaxRequests: 5,
			Interval:    1 * time.Minute,
			Timeout:     2 * time.Minute,
		}),
	}
}

func (p *WeatherAPIProvider) Name() string {
	return "weatherapi"
}

// Fetch retrieves and normalizes a current-weather reading.
func (p *WeatherAPIProvider) Fetch(ctx context.Context, lat, lon float64) (types.WeatherObservation, error) {
	if p.apiKey == "" {
		return types.WeatherObservation{}, fmt.Errorf("weatherapi api key is not configured")
	}

	result, err := p.circuit.Execute(func() (interface{}, error) {
		return p.fetch(ctx, lat, lon)
	})
	if err != nil {
		return types.WeatherObservation{}, err
	}
	return result.(types.WeatherObservation), nil
}

func (p *WeatherAPIProvider) fetch(ctx context.Context, lat, lon float64) (types.WeatherObservation, error) {
	params := url.Values{}
	params.Set("key", p.apiKey)
	params.Set("q", fmt.Sprintf("%f,%f", lat, lon))

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
		return types.WeatherObservation{}, fmt.Errorf("weatherapi api error: %s", resp.Status)
	}

	var payload struct {
		Current struct {
			TempC      float64 `json:"temp_c"`
			PrecipMM   float64 `json:"precip_mm"`
			WindKPH    float64 `json:"wind_kph"`
			Condition  struct {
				Code int `json:"code"`
			} `json:"condition"`
		} `json:"current"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return types.WeatherObservation{}, err
	}

	return types.WeatherObservation{
		Temperature:   payload.Current.TempC,
		WeatherCode:   convertWeatherAPICode(payload.Current.Condition.Code),
		Precipitation: payload.Current.PrecipMM,
		WindSpeed:     payload.Current.WindKPH / 3.6, // kph to m/s
		Source:        types.SourceWeatherAPI,
		ObservedAt:    time.Now().UTC(),
	}, nil
}

// weatherAPICodes maps WeatherAPI.com condition codes onto the shared
// WMO-like scale.
var weatherAPICodes = map[int]int{
	1000: 0,  // clear / sunny
	1003: 1,  // partly cloudy
	1006: 2,  // cloudy
	1009: 3,  // overcast
	1030: 45, // mist
	1063: 61, // patchy rain possible
	1066: 71, // patchy snow possible
	1069: 71, // patchy sleet possible
	1072: 51, // patchy freezing drizzle
	1087: 95, // thundery outbreaks
	1114: 85, // blowing snow
	1117: 86, // blizzard
	1135: 45, // fog
	1147: 48, // freezing fog
	1150: 51, // patchy light drizzle
	1153: 51, // light drizzle
	1168: 51, // freezing drizzle
	1171: 51, // heavy freezing drizzle
	1180: 61, // patchy light rain
	1183: 61, // light rain
	1186: 61, // moderate rain at times
	1189: 63, // moderate rain
	1192: 65, // heavy rain at times
	1195: 65, // heavy rain
	1198: 61, // light freezing rain
	1201: 65, // heavy freezing rain
	1204: 71, // light sleet
	1207: 73, // heavy sleet
	1210: 71, // patchy light snow
	1213: 71, // light snow
	1216: 73, // patchy moderate snow
	1219: 73, // moderate snow
	1222: 75, // patchy heavy snow
	1225: 75, // heavy snow
	1237: 77, // ice pellets
	1240: 80, // light rain shower
	1243: 81, // moderate or heavy rain shower
	1246: 82, // torrential rain shower
	1249: 80, // light sleet showers
	1252: 81, // heavy sleet showers
	1255: 85, // light snow showers
	1258: 86, // heavy snow showers
	1261: 85, // light ice pellet showers
	1264: 86, // heavy ice pellet showers
	1273: 95, // patchy light rain with thunder
	1276: 95, // heavy rain with thunder
	1279: 95, // patchy light snow with thunder
	1282: 99, // heavy snow with thunder
}

func convertWeatherAPICode(code int) int {
	if mapped, ok := weatherAPICodes[code]; ok {
		return mapped
	}
	return 3
}
