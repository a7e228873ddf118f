package telemetry

import (
	"time"
)

type Provider interface {
	Get() *Telemetry
}

// Telemetry is the ambient context of a measurement: where it was taken and
// the air temperature around the device
type Telemetry struct {
	Timestamp     time.Time `json:"timestamp"`               // Timestamp of the latest position fix
	Latitude      *float64  `json:"latitude,omitempty"`      // GPS latitude in degrees
	Longitude     *float64  `json:"longitude,omitempty"`     // GPS longitude in degrees
	Altitude      *float64  `json:"altitude,omitempty"`      // GPS altitude in meters
	GroundSpeed   *float64  `json:"groundSpeed,omitempty"`   // Ground speed in m/s
	Satellites    *int64    `json:"satellites,omitempty"`    // Satellites used in the fix
	Temperature   *float64  `json:"temperature,omitempty"`   // Ambient temperature in °C
	TemperatureAt time.Time `json:"temperatureAt,omitempty"` // Timestamp of the temperature reading
}

// HasPosition reports whether a position fix is known
func (t *Telemetry) HasPosition() bool {
	return t != nil && t.Latitude != nil && t.Longitude != nil
}
