package telemetry

import (
	"math"
	"time"
)

// Reading is one composite sample across the station sensors. Every field
// except Timestamp is optional: a nil pointer means the sensor had nothing to
// report that cycle, which is a normal, storable state distinct from zero.
type Reading struct {
	Timestamp      time.Time `json:"timestamp"`                // Assigned at cycle time, UTC, second resolution
	Latitude       *float64  `json:"latitude,omitempty"`       // GPS latitude in degrees
	Longitude      *float64  `json:"longitude,omitempty"`      // GPS longitude in degrees
	Temperature    *float64  `json:"temperature,omitempty"`    // Air temperature in °C
	Humidity       *float64  `json:"humidity,omitempty"`       // Relative humidity in %
	RadiationCount *int64    `json:"radiationCount,omitempty"` // Pulse count over the detector read interval
}

// Position is a GPS fix. Both coordinates are acquired and validated
// together; a Position never carries one without the other.
type Position struct {
	Latitude  float64
	Longitude float64
}

// HasFix reports whether the reading carries a position.
func (r *Reading) HasFix() bool {
	return r.Latitude != nil && r.Longitude != nil
}

// RoundCoordinate rounds a GPS coordinate to 6 decimal places.
func RoundCoordinate(v float64) float64 {
	return round(v, 1e6)
}

// RoundMeasure rounds a climate measurement to 2 decimal places.
func RoundMeasure(v float64) float64 {
	return round(v, 1e2)
}

func round(v, scale float64) float64 {
	return math.Round(v*scale) / scale
}
