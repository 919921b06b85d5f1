package types

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// coordCellSize is the quantization step for grouping registrations.
// Three decimal places of a degree is roughly a 111m cell.
const coordCellSize = 0.001

// Coordinate is a latitude/longitude pair quantized to three decimal places.
// Two registrations inside the same quantized cell share one subscriber set
// and one weather snapshot.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// NewCoordinate quantizes raw latitude/longitude into a grouping coordinate.
func NewCoordinate(lat, lon float64) Coordinate {
	return Coordinate{Lat: quantize(lat), Lon: quantize(lon)}
}

func quantize(v float64) float64 {
	return math.Round(v*1000) / 1000
}

// Key returns the canonical "lat:lon" form used in store keys,
// e.g. "55.755:37.617".
func (c Coordinate) Key() string {
	return formatCoord(c.Lat) + ":" + formatCoord(c.Lon)
}

func (c Coordinate) String() string {
	return c.Key()
}

// SameCell reports whether two coordinates fall into the same quantization
// cell, with tolerance for float formatting drift.
func (c Coordinate) SameCell(other Coordinate) bool {
	return math.Abs(c.Lat-other.Lat) < coordCellSize/2+1e-9 &&
		math.Abs(c.Lon-other.Lon) < coordCellSize/2+1e-9
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}

// ParseCoordinateKey parses the "lat:lon" store-key form back into a Coordinate.
func ParseCoordinateKey(key string) (Coordinate, error) {
	parts := strings.Split(key, ":")
	if len(parts) != 2 {
		return Coordinate{}, fmt.Errorf("invalid coordinate key %q", key)
	}
	lat, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return Coordinate{}, fmt.Errorf("invalid latitude in key %q: %w", key, err)
	}
	lon, err := strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return Coordinate{}, fmt.Errorf("invalid longitude in key %q: %w", key, err)
	}
	return NewCoordinate(lat, lon), nil
}

// DeviceLocation is a device's latest self-reported position. It is the
// source of truth for whether a subscription to a coordinate is still active.
type DeviceLocation struct {
	Coordinate Coordinate `json:"coordinate"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}
