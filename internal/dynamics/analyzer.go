// Package dynamics turns raw IMU samples into motion summaries used to
// judge whether the device is held still enough for a reading.
package dynamics

import (
	"io"
	"log/slog"
	"math"
	"sync"

	"github.com/google/uuid"

	"github.com/roman-kulish/anemometer/internal/sensor"
)

const (
	// DefaultWindowSize groups a 50 Hz IMU stream into 5 Hz summaries
	DefaultWindowSize = 10

	// DefaultSteadinessMax is the largest spread of the specific force, in g,
	// of a steady window
	DefaultSteadinessMax = 0.05
)

// WithWindowSize sets the number of IMU samples per summary
func WithWindowSize(n int) func(a *Analyzer) {
	return func(a *Analyzer) {
		if n > 0 {
			a.windowSize = n
		}
	}
}

// WithUpsideDown flips the level reference for a device lying face down
func WithUpsideDown(upsideDown bool) func(a *Analyzer) {
	return func(a *Analyzer) {
		a.upsideDown = upsideDown
	}
}

// WithSteadinessMax sets the spread limit of a steady window
func WithSteadinessMax(g float64) func(a *Analyzer) {
	return func(a *Analyzer) {
		a.steadinessMax = g
	}
}

// WithLogger sets the logger for the analyzer
func WithLogger(logger *slog.Logger) func(a *Analyzer) {
	return func(a *Analyzer) {
		a.logger = logger.With(slog.String("component", "dynamics"))
	}
}

// Analyzer is a sensor.Source of DynamicsSample built on an IMU source.
type Analyzer struct {
	sensor.Hub[sensor.DynamicsSample]

	id  uuid.UUID
	imu sensor.Source[sensor.IMUSample]

	windowSize    int
	upsideDown    bool
	steadinessMax float64

	mu     sync.Mutex
	window []sensor.IMUSample
	logger *slog.Logger
}

func NewAnalyzer(imu sensor.Source[sensor.IMUSample], options ...func(a *Analyzer)) *Analyzer {
	a := Analyzer{
		id:            uuid.New(),
		imu:           imu,
		windowSize:    DefaultWindowSize,
		steadinessMax: DefaultSteadinessMax,
		logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, option := range options {
		option(&a)
	}
	a.window = make([]sensor.IMUSample, 0, a.windowSize)
	return &a
}

func (a *Analyzer) Start() error {
	a.mu.Lock()
	a.window = a.window[:0]
	a.mu.Unlock()

	a.imu.Subscribe(a.id, a.onIMU)
	if err := a.imu.Start(); err != nil {
		a.imu.Unsubscribe(a.id)
		return err
	}
	return nil
}

func (a *Analyzer) Stop() error {
	a.imu.Unsubscribe(a.id)
	return a.imu.Stop()
}

func (a *Analyzer) onIMU(s sensor.IMUSample) {
	a.mu.Lock()
	a.window = append(a.window, s)
	if len(a.window) < a.windowSize {
		a.mu.Unlock()
		return
	}
	d := Analyze(a.window, a.upsideDown, a.steadinessMax)
	a.window = a.window[:0]
	a.mu.Unlock()

	a.logger.Debug("dynamics",
		slog.Float64("acceleration", d.Acceleration),
		slog.Float64("angularVelocity", d.AngularVelocity),
		slog.Float64("orientation", d.OrientationDeviation),
		slog.Bool("valid", d.Valid),
	)
	a.Publish(d)
}

// Analyze summarises one window of samples:
//   - Acceleration is the largest deviation of the specific force from 1 g
//   - AngularVelocity is the largest rotation rate
//   - OrientationDeviation is the angle between the mean gravity vector and
//     the level axis (-z, or +z upside down)
//   - Valid reports a steady specific force across the window
func Analyze(window []sensor.IMUSample, upsideDown bool, steadinessMax float64) sensor.DynamicsSample {
	if len(window) == 0 {
		return sensor.DynamicsSample{
			Acceleration:         math.Inf(1),
			AngularVelocity:      math.Inf(1),
			OrientationDeviation: math.Inf(1),
		}
	}

	var d sensor.DynamicsSample
	var mx, my, mz, sum, sumSq float64
	for _, s := range window {
		norm := math.Sqrt(s.Ax*s.Ax + s.Ay*s.Ay + s.Az*s.Az)
		d.Acceleration = math.Max(d.Acceleration, math.Abs(norm-1))
		d.AngularVelocity = math.Max(d.AngularVelocity, math.Sqrt(s.Gx*s.Gx+s.Gy*s.Gy+s.Gz*s.Gz))

		mx += s.Ax
		my += s.Ay
		mz += s.Az
		sum += norm
		sumSq += norm * norm
	}

	n := float64(len(window))
	d.Timestamp = window[len(window)-1].Timestamp
	d.OrientationDeviation = tilt(mx/n, my/n, mz/n, upsideDown)

	mean := sum / n
	spread := math.Sqrt(math.Max(sumSq/n-mean*mean, 0))
	d.Valid = spread < steadinessMax
	return d
}

func tilt(x, y, z float64, upsideDown bool) float64 {
	norm := math.Sqrt(x*x + y*y + z*z)
	if norm == 0 {
		return math.Pi
	}
	level := -z
	if upsideDown {
		level = z
	}
	return math.Acos(math.Max(-1, math.Min(1, level/norm)))
}
