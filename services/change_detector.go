package services

import (
	"fmt"
	"math"

	"github.com/pixelweather/weather-push-backend/types"
)

const (
	temperatureThreshold = 5.0 // °C
	windChangeThreshold  = 5.0 // m/s
)

// ChangeDetector compares the last notified snapshot to a fresh observation
// and produces routine change descriptors. It is pure: the caller owns
// snapshot persistence.
type ChangeDetector struct{}

func NewChangeDetector() *ChangeDetector {
	return &ChangeDetector{}
}

// Detect returns the satisfied change descriptors in fixed order: temperature,
// then category, then wind. A nil previous snapshot yields nil — the first
// observation only seeds the snapshot, never notifies.
func (d *ChangeDetector) Detect(previous *types.WeatherObservation, current types.WeatherObservation) []types.ChangeDescriptor {
	if previous == nil {
		return nil
	}

	var changes []types.ChangeDescriptor

	if delta := current.Temperature - previous.Temperature; math.Abs(delta) >= temperatureThreshold {
		direction := "↑"
		if delta < 0 {
			direction = "↓"
		}
		changes = append(changes, types.ChangeDescriptor{
			Kind: types.ChangeTemperature,
			Text: fmt.Sprintf("Температура %s на %.1f°C", direction, math.Abs(delta)),
		})
	}

	oldCategory := types.Classify(previous.WeatherCode)
	newCategory := types.Classify(current.WeatherCode)
	if oldCategory != newCategory {
		changes = append(changes, types.ChangeDescriptor{
			Kind: types.ChangeCategory,
			Text: categoryTransitionText(oldCategory, newCategory),
		})
	}

	if delta := math.Abs(current.WindSpeed - previous.WindSpeed); delta >= windChangeThreshold {
		changes = append(changes, types.ChangeDescriptor{
			Kind: types.ChangeWind,
			Text: fmt.Sprintf("💨 Ветер изменился на %.1f м/с", delta),
		})
	}

	return changes
}

// categoryTransitionText renders a category transition. Severe onsets get
// their own texts; everything else is the generic "old → new" form.
func categoryTransitionText(from, to types.Category) string {
	switch {
	case to == types.CategoryThunderstorm:
		return "⚡ НАЧАЛАСЬ ГРОЗА!"
	case to == types.CategoryDownpour:
		return "💦 СИЛЬНЫЙ ЛИВЕНЬ"
	case to == types.CategoryHeavySnow:
		return "❄️ СНЕГОПАД"
	case from == types.CategoryClear && to == types.CategoryRain:
		return "🌧️ Пошел дождь"
	case from == types.CategoryClear && to == types.CategorySnow:
		return "❄️ Пошел снег"
	default:
		return fmt.Sprintf("%s → %s", from, to)
	}
}
