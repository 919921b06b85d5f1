package services

import (
	"fmt"

	"github.com/pixelweather/weather-push-backend/types"
)

const (
	hurricaneWindThreshold = 33.0 // m/s
	stormWindThreshold     = 25.0 // m/s
	downpourThreshold      = 30.0 // mm
	heavySnowThreshold     = 20.0 // mm
)

// EmergencyEvaluator inspects a single observation against fixed hazard
// thresholds. It is stateless: hazards are judged on absolute conditions,
// not deltas, so an ongoing storm keeps alerting every cycle.
type EmergencyEvaluator struct{}

func NewEmergencyEvaluator() *EmergencyEvaluator {
	return &EmergencyEvaluator{}
}

// Evaluate returns every alert whose condition holds, in fixed rule order.
// The two wind tiers are mutually exclusive; all other rules are independent
// and may co-occur.
func (e *EmergencyEvaluator) Evaluate(obs types.WeatherObservation) []types.EmergencyAlert {
	var alerts []types.EmergencyAlert

	switch {
	case obs.WindSpeed >= hurricaneWindThreshold:
		alerts = append(alerts, types.EmergencyAlert{
			Level:    types.AlertLevelRed,
			Type:     types.AlertTypeWind,
			Title:    "🔴 УРАГАН!",
			Body:     fmt.Sprintf("Ветер %.0f м/с. Оставайтесь дома!", obs.WindSpeed),
			Priority: types.AlertPriorityHigh,
		})
	case obs.WindSpeed >= stormWindThreshold:
		alerts = append(alerts, types.EmergencyAlert{
			Level:    types.AlertLevelOrange,
			Type:     types.AlertTypeWind,
			Title:    "🟠 Штормовое предупреждение",
			Body:     fmt.Sprintf("Ветер %.0f м/с. Будьте осторожны на улице.", obs.WindSpeed),
			Priority: types.AlertPriorityHigh,
		})
	}

	if obs.Precipitation >= downpourThreshold {
		alerts = append(alerts, types.EmergencyAlert{
			Level:    types.AlertLevelOrange,
			Type:     types.AlertTypeRain,
			Title:    "🟠 Сильный ливень",
			Body:     fmt.Sprintf("Осадки %.0f мм. Возможны подтопления.", obs.Precipitation),
			Priority: types.AlertPriorityHigh,
		})
	}

	if obs.Precipitation >= heavySnowThreshold && types.Classify(obs.WeatherCode) == types.CategoryHeavySnow {
		alerts = append(alerts, types.EmergencyAlert{
			Level:    types.AlertLevelOrange,
			Type:     types.AlertTypeSnow,
			Title:    "🟠 Сильный снегопад",
			Body:     fmt.Sprintf("Осадки %.0f мм. Ограничьте поездки.", obs.Precipitation),
			Priority: types.AlertPriorityMedium,
		})
	}

	if types.Classify(obs.WeatherCode) == types.CategoryThunderstorm {
		alerts = append(alerts, types.EmergencyAlert{
			Level:    types.AlertLevelYellow,
			Type:     types.AlertTypeThunderstorm,
			Title:    "🟡 Гроза",
			Body:     "Гроза в вашем районе. Избегайте открытых пространств.",
			Priority: types.AlertPriorityMedium,
		})
	}

	if obs.WeatherCode >= 45 && obs.WeatherCode <= 48 {
		alerts = append(alerts, types.EmergencyAlert{
			Level:    types.AlertLevelYellow,
			Type:     types.AlertTypeFog,
			Title:    "🟡 Туман",
			Body:     "Плохая видимость. Будьте внимательны на дороге.",
			Priority: types.AlertPriorityMedium,
		})
	}

	return alerts
}
