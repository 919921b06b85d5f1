package types

import "time"

// WeatherSource identifies which provider produced an observation.
type WeatherSource string

const (
	SourceOpenWeather WeatherSource = "openweather"
	SourceWeatherAPI  WeatherSource = "weatherapi"
	SourceFallback    WeatherSource = "fallback"
)

// WeatherObservation is a normalized current-weather reading for a coordinate.
// WeatherCode uses the WMO-like scale every provider is mapped onto.
// Observations are produced fresh on every poll and never mutated.
type WeatherObservation struct {
	Temperature   float64       `json:"temperature"`   // °C
	WeatherCode   int           `json:"weatherCode"`   // normalized scale
	Precipitation float64       `json:"precipitation"` // mm
	WindSpeed     float64       `json:"windSpeed"`     // m/s
	Source        WeatherSource `json:"source"`
	IsFallback    bool          `json:"isFallback"`
	ObservedAt    time.Time     `json:"observedAt"`
}

// Category is a coarse weather bucket. Display values are the product's
// Russian-language category names, carried into notification texts.
type Category string

const (
	CategoryClear        Category = "ясно"
	CategoryCloudy       Category = "облачно"
	CategoryFog          Category = "туман"
	CategoryRain         Category = "дождь"
	CategorySnow         Category = "снег"
	CategoryDownpour     Category = "ливень"
	CategoryHeavySnow    Category = "снегопад"
	CategoryThunderstorm Category = "гроза"
	CategoryUnknown      Category = "неизвестно"
)

// Classify maps a normalized weather code to its category. It is total over
// all ints and is the single notion of "category" shared by change detection
// and emergency evaluation.
func Classify(weatherCode int) Category {
	switch {
	case weatherCode == 0:
		return CategoryClear
	case weatherCode >= 1 && weatherCode <= 3:
		return CategoryCloudy
	case weatherCode >= 45 && weatherCode <= 48:
		return CategoryFog
	case weatherCode >= 51 && weatherCode <= 67:
		return CategoryRain
	case weatherCode >= 71 && weatherCode <= 77:
		return CategorySnow
	case weatherCode >= 80 && weatherCode <= 82:
		return CategoryDownpour
	case weatherCode >= 85 && weatherCode <= 86:
		return CategoryHeavySnow
	case weatherCode >= 95 && weatherCode <= 99:
		return CategoryThunderstorm
	default:
		return CategoryUnknown
	}
}
