// Package validity decides whether a speed reading can be trusted.
package validity

import (
	"fmt"
	"strings"
)

// Check is a set of validity signals.
type Check uint8

const (
	CheckAcceleration Check = 1 << iota
	CheckAngularVelocity
	CheckOrientation
	CheckSpectral
	CheckDynamics

	AllChecks = CheckAcceleration | CheckAngularVelocity | CheckOrientation | CheckSpectral | CheckDynamics
)

var checkNames = map[string]Check{
	"acceleration":    CheckAcceleration,
	"angularVelocity": CheckAngularVelocity,
	"orientation":     CheckOrientation,
	"spectral":        CheckSpectral,
	"dynamics":        CheckDynamics,
}

// ParseChecks turns check names into a set.
func ParseChecks(names []string) (Check, error) {
	var c Check
	for _, n := range names {
		v, ok := checkNames[n]
		if !ok {
			return 0, fmt.Errorf("unknown validity check '%s' (expected one of acceleration, angularVelocity, orientation, spectral, dynamics)", n)
		}
		c |= v
	}
	return c, nil
}

func (c Check) String() string {
	var parts []string
	for _, n := range []string{"acceleration", "angularVelocity", "orientation", "spectral", "dynamics"} {
		if c&checkNames[n] != 0 {
			parts = append(parts, n)
		}
	}
	return strings.Join(parts, ",")
}

type Thresholds struct {
	AccelerationMax         float64 // g
	AngularVelocityMax      float64 // rad/s
	OrientationDeviationMax float64 // rad
	PeakMagnitudeMin        float64
	Enabled                 Check
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		AccelerationMax:         0.4,
		AngularVelocityMax:      0.4,
		OrientationDeviationMax: 0.63,
		PeakMagnitudeMin:        5,
		Enabled:                 AllChecks,
	}
}

// Input carries the latest dynamics and spectral figures. Absent dynamics
// should be expressed as +Inf values with DynamicsValid false.
type Input struct {
	Acceleration         float64
	AngularVelocity      float64
	OrientationDeviation float64
	PeakMagnitude        float64
	DynamicsValid        bool
}

// Verdict holds one flag per signal. A disabled signal is reported as true.
type Verdict struct {
	Acceleration    bool
	AngularVelocity bool
	Orientation     bool
	Spectral        bool
	Dynamics        bool
}

func (v Verdict) Valid() bool {
	return v.Acceleration && v.AngularVelocity && v.Orientation && v.Spectral && v.Dynamics
}

func Evaluate(in Input, th Thresholds) Verdict {
	enabled := func(c Check) bool { return th.Enabled&c != 0 }

	return Verdict{
		Acceleration:    !enabled(CheckAcceleration) || in.Acceleration < th.AccelerationMax,
		AngularVelocity: !enabled(CheckAngularVelocity) || in.AngularVelocity < th.AngularVelocityMax,
		Orientation:     !enabled(CheckOrientation) || in.OrientationDeviation < th.OrientationDeviationMax,
		Spectral:        !enabled(CheckSpectral) || in.PeakMagnitude >= th.PeakMagnitudeMin,
		Dynamics:        !enabled(CheckDynamics) || in.DynamicsValid,
	}
}
