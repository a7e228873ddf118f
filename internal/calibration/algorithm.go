// Package calibration maps rotor frequency to wind speed.
package calibration

import (
	"fmt"
	"strings"
)

// Algorithm identifies a calibration curve. The set is closed.
type Algorithm int

const (
	Standard Algorithm = iota
	IPhone4Legacy
	IPhone5Legacy
)

// Coefficients of the affine frequency to speed map.
type Coefficients struct {
	FrequencyStart  float64 // m/s at zero rotation
	FrequencyFactor float64 // m/s per Hz
}

var (
	coefficients = map[Algorithm]Coefficients{
		Standard:      {FrequencyStart: 0.238, FrequencyFactor: 1.07},
		IPhone4Legacy: {FrequencyStart: 0.238, FrequencyFactor: 1.16},
		IPhone5Legacy: {FrequencyStart: 0.238, FrequencyFactor: 1.04},
	}

	names = map[Algorithm]string{
		Standard:      "standard",
		IPhone4Legacy: "iphone4",
		IPhone5Legacy: "iphone5",
	}

	// device model prefixes with their own calibration
	devicePrefixes = []struct {
		prefix    string
		algorithm Algorithm
	}{
		{prefix: "iPhone3,", algorithm: IPhone4Legacy},
		{prefix: "iPhone5,", algorithm: IPhone5Legacy},
		{prefix: "iPhone6,", algorithm: IPhone5Legacy},
	}
)

func (a Algorithm) String() string {
	if n, ok := names[a]; ok {
		return n
	}
	return fmt.Sprintf("algorithm(%d)", int(a))
}

// Coefficients returns the table entry, unknown values fall back to Standard.
func (a Algorithm) Coefficients() Coefficients {
	if c, ok := coefficients[a]; ok {
		return c
	}
	return coefficients[Standard]
}

// Calibrate converts a rotor frequency in Hz to wind speed in m/s.
func (a Algorithm) Calibrate(frequency float64) float64 {
	c := a.Coefficients()
	return c.FrequencyStart + c.FrequencyFactor*frequency
}

func Calibrate(frequency float64, a Algorithm) float64 {
	return a.Calibrate(frequency)
}

// ParseAlgorithm accepts an algorithm name. "auto" and "" resolve through
// ForDevice with the given device model.
func ParseAlgorithm(s, deviceModel string) (Algorithm, error) {
	switch strings.ToLower(s) {
	case "", "auto":
		return ForDevice(deviceModel), nil
	}
	for a, n := range names {
		if strings.EqualFold(s, n) {
			return a, nil
		}
	}
	return 0, fmt.Errorf("unknown algorithm '%s'", s)
}

// ForDevice picks the calibration for a hardware model identifier such as
// "iPhone5,2".
func ForDevice(model string) Algorithm {
	for _, d := range devicePrefixes {
		if strings.HasPrefix(model, d.prefix) {
			return d.algorithm
		}
	}
	return Standard
}
