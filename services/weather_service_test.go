package services

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pixelweather/weather-push-backend/types"
)

type stubProvider struct {
	name  string
	obs   types.WeatherObservation
	err   error
	calls int
}

func (p *stubProvider) Name() string { return p.name }

func (p *stubProvider) Fetch(_ context.Context, _, _ float64) (types.WeatherObservation, error) {
	p.calls++
	if p.err != nil {
		return types.WeatherObservation{}, p.err
	}
	return p.obs, nil
}

var testCoord = types.NewCoordinate(55.755, 37.617)

func TestFetch_FirstProviderWins(t *testing.T) {
	primary := &stubProvider{name: "primary", obs: obs(12, 61, 1, 4)}
	secondary := &stubProvider{name: "secondary", obs: obs(99, 0, 0, 0)}
	svc := NewWeatherServiceWithProviders(primary, secondary)

	got, err := svc.Fetch(context.Background(), testCoord)
	require.NoError(t, err)
	assert.Equal(t, primary.obs, got)
	assert.Equal(t, 0, secondary.calls, "secondary must not be consulted")
}

func TestFetch_FallsThroughToSecondary(t *testing.T) {
	primary := &stubProvider{name: "primary", err: fmt.Errorf("rate limited")}
	secondary := &stubProvider{name: "secondary", obs: obs(7, 71, 0.5, 6)}
	svc := NewWeatherServiceWithProviders(primary, secondary)

	got, err := svc.Fetch(context.Background(), testCoord)
	require.NoError(t, err)
	assert.Equal(t, secondary.obs, got)
	assert.Equal(t, 1, primary.calls)
}

func TestFetch_AllProvidersFailDegradesToFallback(t *testing.T) {
	primary := &stubProvider{name: "primary", err: fmt.Errorf("down")}
	secondary := &stubProvider{name: "secondary", err: fmt.Errorf("also down")}
	svc := NewWeatherServiceWithProviders(primary, secondary)

	got, err := svc.Fetch(context.Background(), testCoord)
	require.NoError(t, err, "the chain degrades, it does not fail")

	assert.True(t, got.IsFallback)
	assert.Equal(t, types.SourceFallback, got.Source)
	assert.Equal(t, 0.0, got.Temperature)
	assert.Equal(t, 3, got.WeatherCode)
	assert.Equal(t, 0.0, got.Precipitation)
	assert.Equal(t, 2.0, got.WindSpeed)
}

func TestOpenWeatherProvider_NormalizesResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "metric", r.URL.Query().Get("units"))
		assert.Equal(t, "test-key", r.URL.Query().Get("appid"))
		fmt.Fprint(w, `{
			"main": {"temp": 16.5},
			"weather": [{"id": 502}],
			"wind": {"speed": 4.2},
			"rain": {"1h": 2.4}
		}`)
	}))
	defer srv.Close()

	p := NewOpenWeatherProvider(srv.Client(), "test-key")
	p.baseURL = srv.URL

	got, err := p.Fetch(context.Background(), 55.755, 37.617)
	require.NoError(t, err)
	assert.Equal(t, 16.5, got.Temperature)
	assert.Equal(t, 61, got.WeatherCode, "condition group 5xx is rain")
	assert.Equal(t, 2.4, got.Precipitation)
	assert.Equal(t, 4.2, got.WindSpeed)
	assert.Equal(t, types.SourceOpenWeather, got.Source)
	assert.False(t, got.IsFallback)
}

func TestOpenWeatherProvider_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	p := NewOpenWeatherProvider(srv.Client(), "bad-key")
	p.baseURL = srv.URL

	_, err := p.Fetch(context.Background(), 55.755, 37.617)
	assert.Error(t, err)
}

func TestOpenWeatherProvider_MissingKey(t *testing.T) {
	p := NewOpenWeatherProvider(&http.Client{Timeout: time.Second}, "")
	_, err := p.Fetch(context.Background(), 55.755, 37.617)
	assert.Error(t, err)
}

func TestWeatherAPIProvider_NormalizesWindToMS(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))
		fmt.Fprint(w, `{
			"current": {
				"temp_c": -3,
				"precip_mm": 1.2,
				"wind_kph": 36,
				"condition": {"code": 1225}
			}
		}`)
	}))
	defer srv.Close()

	p := NewWeatherAPIProvider(srv.Client(), "test-key")
	p.baseURL = srv.URL

	got, err := p.Fetch(context.Background(), 55.755, 37.617)
	require.NoError(t, err)
	assert.Equal(t, -3.0, got.Temperature)
	assert.Equal(t, 75, got.WeatherCode, "1225 is heavy snow")
	assert.InDelta(t, 10.0, got.WindSpeed, 1e-9, "36 kph is 10 m/s")
	assert.Equal(t, types.SourceWeatherAPI, got.Source)
}

func TestConvertCodes_UnmappedDefaultsToCloudy(t *testing.T) {
	assert.Equal(t, 3, convertOpenWeatherCode(999))
	assert.Equal(t, 3, convertWeatherAPICode(4242))
}
