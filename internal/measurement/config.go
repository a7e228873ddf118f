package measurement

import (
	"errors"
	"fmt"
	"time"

	"github.com/roman-kulish/anemometer/internal/calibration"
	"github.com/roman-kulish/anemometer/internal/dsp"
	"github.com/roman-kulish/anemometer/internal/sensor"
	"github.com/roman-kulish/anemometer/internal/validity"
)

const (
	DefaultSampleFrequency       = 100 // Hz requested from the magnetometer
	DefaultFFTForEvery           = 3
	DefaultSaveEveryNthPoint     = 10
	DefaultMinimumDuration       = 30 * time.Second
	DefaultDirectionStabilityRun = 10
	DefaultDirectionTolerance    = 10 // degrees
	DefaultSensorTimeout         = 2 * time.Second
)

// Config is copied into a session at start and never changes afterwards.
type Config struct {
	SampleFrequency   float64 // nominal, used when sample timestamps are unusable
	Band              dsp.Band
	Window            dsp.WindowFunction
	Algorithm         calibration.Algorithm
	FFTForEvery       int
	SaveEveryNthPoint int
	MinimumDuration   time.Duration
	Thresholds        validity.Thresholds
	RotorAxis         sensor.Axis

	DirectionSmoothing    int // magnetometer vectors averaged per heading, 0 means the FFT length
	DirectionStabilityRun int
	DirectionTolerance    float64 // degrees
	UpsideDown            bool

	LookupTemperature bool
	SensorTimeout     time.Duration // 0 disables staleness
	MaxRetainedPoints int           // 0 means unbounded
}

func DefaultConfig() Config {
	return Config{
		SampleFrequency:       DefaultSampleFrequency,
		Band:                  dsp.BandFQ40,
		Window:                dsp.WindowHann,
		Algorithm:             calibration.Standard,
		FFTForEvery:           DefaultFFTForEvery,
		SaveEveryNthPoint:     DefaultSaveEveryNthPoint,
		MinimumDuration:       DefaultMinimumDuration,
		Thresholds:            validity.DefaultThresholds(),
		RotorAxis:             sensor.AxisX,
		DirectionStabilityRun: DefaultDirectionStabilityRun,
		DirectionTolerance:    DefaultDirectionTolerance,
		LookupTemperature:     true,
		SensorTimeout:         DefaultSensorTimeout,
	}
}

func (c Config) Validate() error {
	var errs []error

	if c.SampleFrequency <= 0 {
		errs = append(errs, fmt.Errorf("sample frequency must be positive, got %f", c.SampleFrequency))
	}
	if c.FFTForEvery < 1 {
		errs = append(errs, fmt.Errorf("fftForEvery must be at least 1, got %d", c.FFTForEvery))
	}
	if c.SaveEveryNthPoint < 1 {
		errs = append(errs, fmt.Errorf("saveEveryNthPoint must be at least 1, got %d", c.SaveEveryNthPoint))
	}
	if c.MinimumDuration <= 0 {
		errs = append(errs, fmt.Errorf("minimum duration must be positive, got %s", c.MinimumDuration))
	}
	if c.DirectionSmoothing < 0 || c.DirectionStabilityRun < 1 {
		errs = append(errs, errors.New("direction smoothing must not be negative and stability run must be at least 1"))
	}
	if c.DirectionTolerance <= 0 || c.DirectionTolerance > 180 {
		errs = append(errs, fmt.Errorf("direction tolerance must be in (0, 180], got %f", c.DirectionTolerance))
	}
	if c.SensorTimeout < 0 || c.MaxRetainedPoints < 0 {
		errs = append(errs, errors.New("sensor timeout and max retained points must not be negative"))
	}
	if t := c.Thresholds; t.AccelerationMax < 0 || t.AngularVelocityMax < 0 || t.OrientationDeviationMax < 0 || t.PeakMagnitudeMin < 0 {
		errs = append(errs, errors.New("validity thresholds must not be negative"))
	}

	return errors.Join(errs...)
}
