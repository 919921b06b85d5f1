package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pixelweather/weather-push-backend/types"
)

func obs(temp float64, code int, precip, wind float64) types.WeatherObservation {
	return types.WeatherObservation{
		Temperature:   temp,
		WeatherCode:   code,
		Precipitation: precip,
		WindSpeed:     wind,
		Source:        types.SourceOpenWeather,
	}
}

func TestDetect_NoPreviousSnapshotSeedsOnly(t *testing.T) {
	d := NewChangeDetector()
	assert.Empty(t, d.Detect(nil, obs(30, 95, 50, 40)))
}

func TestDetect_BelowThresholdsIsEmpty(t *testing.T) {
	d := NewChangeDetector()
	prev := obs(10, 1, 0, 3)

	cases := []types.WeatherObservation{
		obs(14.9, 1, 0, 3),  // temp delta 4.9
		obs(10, 3, 0, 3),    // same category (cloudy)
		obs(10, 1, 0, 7.9),  // wind delta 4.9
		obs(5.1, 2, 0, 7.9), // everything just under
	}
	for _, cur := range cases {
		assert.Empty(t, d.Detect(&prev, cur), "observation %+v", cur)
	}
}

func TestDetect_TemperatureDescriptor(t *testing.T) {
	d := NewChangeDetector()

	tests := []struct {
		name     string
		prev     types.WeatherObservation
		cur      types.WeatherObservation
		wantText string
	}{
		{
			name:     "warming",
			prev:     obs(10, 0, 0, 3),
			cur:      obs(16, 0, 0, 3),
			wantText: "Температура ↑ на 6.0°C",
		},
		{
			name:     "cooling",
			prev:     obs(3, 0, 0, 3),
			cur:      obs(-2.5, 0, 0, 3),
			wantText: "Температура ↓ на 5.5°C",
		},
		{
			name:     "exactly at threshold",
			prev:     obs(0, 0, 0, 3),
			cur:      obs(5, 0, 0, 3),
			wantText: "Температура ↑ на 5.0°C",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			changes := d.Detect(&tc.prev, tc.cur)
			require.Len(t, changes, 1)
			assert.Equal(t, types.ChangeTemperature, changes[0].Kind)
			assert.Equal(t, tc.wantText, changes[0].Text)
		})
	}
}

func TestDetect_CategoryTransitionTexts(t *testing.T) {
	d := NewChangeDetector()

	tests := []struct {
		name     string
		prevCode int
		curCode  int
		wantText string
	}{
		{"thunderstorm onset", 1, 95, "⚡ НАЧАЛАСЬ ГРОЗА!"},
		{"downpour onset", 61, 80, "💦 СИЛЬНЫЙ ЛИВЕНЬ"},
		{"heavy snow onset", 71, 85, "❄️ СНЕГОПАД"},
		{"clear to rain", 0, 61, "🌧️ Пошел дождь"},
		{"clear to snow", 0, 71, "❄️ Пошел снег"},
		{"generic transition", 61, 1, "дождь → облачно"},
		{"cloudy to rain is generic", 2, 61, "облачно → дождь"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			prev := obs(10, tc.prevCode, 0, 3)
			changes := d.Detect(&prev, obs(10, tc.curCode, 0, 3))
			require.Len(t, changes, 1)
			assert.Equal(t, types.ChangeCategory, changes[0].Kind)
			assert.Equal(t, tc.wantText, changes[0].Text)
		})
	}
}

func TestDetect_WindDescriptor(t *testing.T) {
	d := NewChangeDetector()
	prev := obs(10, 0, 0, 2)

	changes := d.Detect(&prev, obs(10, 0, 0, 8.5))
	require.Len(t, changes, 1)
	assert.Equal(t, types.ChangeWind, changes[0].Kind)
	assert.Equal(t, "💨 Ветер изменился на 6.5 м/с", changes[0].Text)

	// Direction does not matter, only magnitude.
	changes = d.Detect(&prev, obs(10, 0, 0, -3))
	require.Len(t, changes, 1)
	assert.Equal(t, types.ChangeWind, changes[0].Kind)
}

func TestDetect_OrderIsTemperatureCategoryWind(t *testing.T) {
	d := NewChangeDetector()
	prev := obs(20, 0, 0, 1)

	changes := d.Detect(&prev, obs(12, 61, 2, 9))
	require.Len(t, changes, 3)
	assert.Equal(t, types.ChangeTemperature, changes[0].Kind)
	assert.Equal(t, types.ChangeCategory, changes[1].Kind)
	assert.Equal(t, types.ChangeWind, changes[2].Kind)
}
