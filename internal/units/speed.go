// Package units converts wind speed for display.
package units

import (
	"fmt"
	"strconv"
	"strings"
)

type SpeedUnit string

const (
	MetresPerSecond   SpeedUnit = "m/s"
	KilometresPerHour SpeedUnit = "km/h"
	MilesPerHour      SpeedUnit = "mph"
	Knots             SpeedUnit = "kn"
	Beaufort          SpeedUnit = "bft"
)

// upper bounds in m/s of Beaufort forces 0 to 11
var beaufortLimits = []float64{0.3, 1.6, 3.4, 5.5, 8.0, 10.8, 13.9, 17.2, 20.8, 24.5, 28.5, 32.7}

func ParseSpeedUnit(s string) (SpeedUnit, error) {
	switch strings.ToLower(s) {
	case "", "m/s", "ms", "mps":
		return MetresPerSecond, nil
	case "km/h", "kmh", "kph":
		return KilometresPerHour, nil
	case "mph":
		return MilesPerHour, nil
	case "kn", "kt", "knots":
		return Knots, nil
	case "bft", "beaufort":
		return Beaufort, nil
	default:
		return "", fmt.Errorf("unknown speed unit '%s'", s)
	}
}

// FromMetresPerSecond converts a speed to the unit.
func (u SpeedUnit) FromMetresPerSecond(v float64) float64 {
	switch u {
	case KilometresPerHour:
		return v * 3.6
	case MilesPerHour:
		return v * 3600 / 1609.344
	case Knots:
		return v * 3600 / 1852
	case Beaufort:
		return float64(BeaufortForce(v))
	default:
		return v
	}
}

// Format renders a speed given in m/s.
func (u SpeedUnit) Format(v float64) string {
	if u == Beaufort {
		return fmt.Sprintf("%d %s", BeaufortForce(v), u)
	}
	return strconv.FormatFloat(u.FromMetresPerSecond(v), 'f', 1, 64) + " " + string(u)
}

// BeaufortForce returns the Beaufort number of a speed in m/s.
func BeaufortForce(v float64) int {
	for force, limit := range beaufortLimits {
		if v < limit {
			return force
		}
	}
	return len(beaufortLimits)
}
