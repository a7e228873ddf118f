package sensor

import (
	"fmt"
	"math"
	"time"
)

// MagneticSample is a single 3-axis magnetometer reading in microtesla.
type MagneticSample struct {
	Timestamp time.Time
	X, Y, Z   float64
}

// IMUSample is a combined accelerometer (g) and gyroscope (rad/s) reading.
type IMUSample struct {
	Timestamp  time.Time
	Ax, Ay, Az float64
	Gx, Gy, Gz float64
}

// DynamicsSample summarises device motion over a short window.
type DynamicsSample struct {
	Timestamp            time.Time
	Acceleration         float64 // g, deviation from 1 g
	AngularVelocity      float64 // rad/s
	OrientationDeviation float64 // rad from level
	Valid                bool
}

// Axis selects the magnetometer channel that carries the rotor signal.
type Axis string

const (
	AxisX    Axis = "x"
	AxisY    Axis = "y"
	AxisZ    Axis = "z"
	AxisNorm Axis = "norm"
)

func ParseAxis(s string) (Axis, error) {
	switch a := Axis(s); a {
	case AxisX, AxisY, AxisZ, AxisNorm:
		return a, nil
	case "":
		return AxisX, nil
	default:
		return "", fmt.Errorf("unknown rotor axis '%s'", s)
	}
}

// Value returns the rotor signal carried by the sample on the given axis.
func (s MagneticSample) Value(a Axis) float64 {
	switch a {
	case AxisY:
		return s.Y
	case AxisZ:
		return s.Z
	case AxisNorm:
		return math.Sqrt(s.X*s.X + s.Y*s.Y + s.Z*s.Z)
	default:
		return s.X
	}
}
