// Package measurement runs wind measurement sessions: it buffers the rotor
// signal, estimates its frequency, converts it to speed, gates the result on
// device motion and keeps the decimated series with running statistics.
package measurement

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/roman-kulish/anemometer/internal/dsp"
	"github.com/roman-kulish/anemometer/internal/heading"
	"github.com/roman-kulish/anemometer/internal/sensor"
	"github.com/roman-kulish/anemometer/internal/telemetry"
	"github.com/roman-kulish/anemometer/internal/validity"
)

var (
	// ErrInvalidState is returned when an operation is not allowed in the current state
	ErrInvalidState = errors.New("invalid state")

	// ErrSensorUnavailable is returned by Start when a sampler cannot be started
	ErrSensorUnavailable = errors.New("sensor unavailable")
)

var inf = math.Inf(1)

type State int

const (
	StateIdle State = iota
	StateRunning
	StateStopped
	StateRemoved
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	case StateRemoved:
		return "removed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// WithDelegate sets the receiver of session updates
func WithDelegate(d Delegate) func(c *Controller) {
	return func(c *Controller) {
		c.delegate = d
	}
}

// WithTelemetry sets the source of location and ambient temperature
func WithTelemetry(p telemetry.Provider) func(c *Controller) {
	return func(c *Controller) {
		c.telemetry = p
	}
}

// WithLogger sets the logger for the controller
func WithLogger(logger *slog.Logger) func(c *Controller) {
	return func(c *Controller) {
		c.logger = logger.With(slog.String("component", "measurement"))
	}
}

// WithClock replaces the wall clock
func WithClock(now func() time.Time) func(c *Controller) {
	return func(c *Controller) {
		c.now = now
	}
}

// Controller owns one measurement session at a time. All methods are safe
// for concurrent use.
type Controller struct {
	config    Config
	magnetic  sensor.Source[sensor.MagneticSample]
	dynamics  sensor.Source[sensor.DynamicsSample]
	telemetry telemetry.Provider
	delegate  Delegate
	logger    *slog.Logger
	now       func() time.Time

	mu        sync.Mutex
	state     State
	sessionID uuid.UUID
	startTime time.Time
	stoppedAt time.Time

	detector *dsp.Detector
	ring     *dsp.Ring
	tracker  *heading.Tracker

	ticks             int
	stats             statistics
	series            Series
	seriesFull        bool
	current           *Reading
	direction         *float64
	latestDynamics    *sensor.DynamicsSample
	dynamicsAt        time.Time
	magneticAt        time.Time
	lastValid         bool
	lastDynamicsValid bool
	lastTemperatureAt time.Time
}

func New(magnetic sensor.Source[sensor.MagneticSample], dynamics sensor.Source[sensor.DynamicsSample], config Config, options ...func(c *Controller)) (*Controller, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid measurement configuration: %w", err)
	}

	detector, err := dsp.NewDetector(config.Band, config.Window, config.SampleFrequency)
	if err != nil {
		return nil, fmt.Errorf("creating frequency detector: %w", err)
	}

	smoothing := config.DirectionSmoothing
	if smoothing == 0 {
		smoothing = config.Band.FFTLength()
	}

	c := Controller{
		config:   config,
		magnetic: magnetic,
		dynamics: dynamics,
		delegate: nopDelegate{},
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:      time.Now,
		detector: detector,
		ring:     dsp.NewRing(config.Band.FFTLength()),
		tracker:  heading.NewTracker(smoothing, config.DirectionStabilityRun, config.DirectionTolerance, config.UpsideDown),
	}

	for _, option := range options {
		option(&c)
	}

	return &c, nil
}

// Start begins a new session from Idle or Stopped. Previous session data is
// discarded.
func (c *Controller) Start() error {
	c.mu.Lock()
	if c.state != StateIdle && c.state != StateStopped {
		st := c.state
		c.mu.Unlock()
		return fmt.Errorf("%w: cannot start a %s measurement", ErrInvalidState, st)
	}

	id := uuid.New()
	c.reset(id)
	c.state = StateRunning
	c.mu.Unlock()

	c.magnetic.Subscribe(id, func(s sensor.MagneticSample) { c.handleMagnetic(id, s) })
	c.dynamics.Subscribe(id, func(d sensor.DynamicsSample) { c.handleDynamics(id, d) })

	if err := c.magnetic.Start(); err != nil {
		c.abort(id)
		return fmt.Errorf("%w: magnetic field sampler: %w", ErrSensorUnavailable, err)
	}
	if err := c.dynamics.Start(); err != nil {
		c.abort(id)
		return fmt.Errorf("%w: motion dynamics: %w", ErrSensorUnavailable, err)
	}

	c.mu.Lock()
	superseded := c.sessionID != id || c.state != StateRunning
	c.mu.Unlock()
	if superseded {
		// stopped or removed while the samplers were starting
		return c.release(id)
	}

	c.logger.Info("measurement started",
		slog.String("session", id.String()),
		slog.String("algorithm", c.config.Algorithm.String()),
		slog.String("band", c.config.Band.String()),
	)
	return nil
}

// abort rolls a failed start back to Idle.
func (c *Controller) abort(id uuid.UUID) {
	if err := c.release(id); err != nil {
		c.logger.Warn(fmt.Sprintf("releasing samplers: %s", err.Error()))
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sessionID == id && c.state == StateRunning {
		c.state = StateIdle
		c.reset(uuid.Nil)
	}
}

// Stop ends the running session and returns its wall-clock duration.
func (c *Controller) Stop() (time.Duration, error) {
	c.mu.Lock()
	if c.state != StateRunning {
		st := c.state
		c.mu.Unlock()
		return 0, fmt.Errorf("%w: cannot stop a %s measurement", ErrInvalidState, st)
	}

	c.state = StateStopped
	c.stoppedAt = c.now()
	id := c.sessionID
	elapsed := c.stoppedAt.Sub(c.startTime)
	points, valid := c.stats.points, c.stats.valid
	c.mu.Unlock()

	if err := c.release(id); err != nil {
		c.logger.Warn(fmt.Sprintf("releasing samplers: %s", err.Error()))
	}

	c.logger.Info("measurement stopped",
		slog.String("session", id.String()),
		slog.Duration("elapsed", elapsed),
		slog.Int("points", points),
		slog.Int("validPoints", valid),
	)
	return elapsed, nil
}

// Remove tears the controller down. A running session is ended and the
// delegate told that the model stopped it.
func (c *Controller) Remove() error {
	c.mu.Lock()
	if c.state == StateRemoved {
		c.mu.Unlock()
		return fmt.Errorf("%w: already removed", ErrInvalidState)
	}

	wasRunning := c.state == StateRunning
	id := c.sessionID
	c.state = StateRemoved
	c.series = Series{}
	c.current = nil
	c.latestDynamics = nil
	c.ring.Clear()
	c.tracker.Reset()
	c.mu.Unlock()

	if !wasRunning {
		return nil
	}

	if err := c.release(id); err != nil {
		c.logger.Warn(fmt.Sprintf("releasing samplers: %s", err.Error()))
	}
	c.delegate.MeasuringStoppedByModel()
	return nil
}

// release clears the observer registrations of a session and stops the
// samplers.
func (c *Controller) release(id uuid.UUID) error {
	c.magnetic.Unsubscribe(id)
	c.dynamics.Unsubscribe(id)

	return errors.Join(c.magnetic.Stop(), c.dynamics.Stop())
}

func (c *Controller) reset(id uuid.UUID) {
	c.sessionID = id
	c.startTime = c.now()
	c.stoppedAt = time.Time{}
	c.magneticAt = c.startTime
	c.ticks = 0
	c.stats = statistics{}
	c.series = Series{}
	c.seriesFull = false
	c.current = nil
	c.direction = nil
	c.latestDynamics = nil
	c.dynamicsAt = time.Time{}
	c.lastValid = false
	c.lastDynamicsValid = false
	c.lastTemperatureAt = time.Time{}
	c.ring.Clear()
	c.tracker.Reset()
}

func (c *Controller) handleDynamics(id uuid.UUID, d sensor.DynamicsSample) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateRunning || c.sessionID != id {
		return
	}
	c.latestDynamics = &d
	c.dynamicsAt = c.now()
}

func (c *Controller) handleMagnetic(id uuid.UUID, s sensor.MagneticSample) {
	for _, notify := range c.process(id, s) {
		notify()
	}
}

// process runs one tick of the pipeline and returns the delegate calls to
// make once the lock is released.
func (c *Controller) process(id uuid.UUID, s sensor.MagneticSample) []func() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateRunning || c.sessionID != id {
		return nil
	}

	c.magneticAt = c.now()
	c.ring.Push(s.Timestamp, s.Value(c.config.RotorAxis))
	c.tracker.Update(s.X, s.Y)

	c.ticks++
	if c.ticks%c.config.FFTForEvery != 0 || !c.ring.Full() {
		return nil
	}

	est := c.detector.Detect(c.ring.Window())
	verdict := validity.Evaluate(c.validityInput(est.PeakMagnitude), c.config.Thresholds)

	reading := Reading{
		Timestamp:     s.Timestamp,
		Frequency:     est.DominantFrequency,
		PeakMagnitude: est.PeakMagnitude,
		Speed:         c.config.Algorithm.Calibrate(est.DominantFrequency),
		Verdict:       verdict,
	}
	if d, ok := c.tracker.Direction(); ok {
		reading.Direction = &d
		c.direction = &d
	}
	c.current = &reading
	c.stats.add(reading.Speed, verdict.Valid())

	var notify []func()

	if valid, dyn := verdict.Valid(), verdict.Dynamics; valid != c.lastValid || dyn != c.lastDynamicsValid {
		c.lastValid, c.lastDynamicsValid = valid, dyn
		if o, ok := c.delegate.(ValidityObserver); ok {
			notify = append(notify, func() { o.ChangedValidity(valid, dyn) })
		}
	}

	if c.stats.points%c.config.SaveEveryNthPoint == 0 {
		c.retain(reading)

		speed, avg, mx := reading.Speed, c.stats.average(), c.stats.maximum()
		notify = append(notify, func() { c.delegate.AddSpeedMeasurement(speed, avg, mx) })
	}

	if celsius, ok := c.temperatureUpdate(); ok {
		notify = append(notify, func() { c.delegate.TemperatureUpdated(celsius) })
	}

	return notify
}

func (c *Controller) retain(r Reading) {
	if c.config.MaxRetainedPoints > 0 && c.series.Len() >= c.config.MaxRetainedPoints {
		if !c.seriesFull {
			c.seriesFull = true
			c.logger.Warn("retained series is full, later points only update statistics",
				slog.Int("maxRetainedPoints", c.config.MaxRetainedPoints))
		}
		return
	}
	c.series.append(r)
}

// validityInput combines the spectral peak with the latest dynamics. Missing
// or stale dynamics evaluate as unbounded motion.
func (c *Controller) validityInput(peak float64) validity.Input {
	in := validity.Input{PeakMagnitude: peak}

	d := c.latestDynamics
	if d == nil || (c.config.SensorTimeout > 0 && c.now().Sub(c.dynamicsAt) > c.config.SensorTimeout) {
		in.Acceleration = inf
		in.AngularVelocity = inf
		in.OrientationDeviation = inf
		return in
	}

	in.Acceleration = d.Acceleration
	in.AngularVelocity = d.AngularVelocity
	in.OrientationDeviation = d.OrientationDeviation
	in.DynamicsValid = d.Valid
	return in
}

func (c *Controller) temperatureUpdate() (float64, bool) {
	if !c.config.LookupTemperature || c.telemetry == nil {
		return 0, false
	}

	t := c.telemetry.Get()
	if t == nil || t.Temperature == nil || !t.TemperatureAt.After(c.lastTemperatureAt) {
		return 0, false
	}
	c.lastTemperatureAt = t.TemperatureAt
	return *t.Temperature, true
}

func (c *Controller) progressLocked() float64 {
	var end time.Time
	switch c.state {
	case StateRunning:
		end = c.now()
	case StateStopped:
		end = c.stoppedAt
	default:
		return 0
	}

	p := end.Sub(c.startTime).Seconds() / c.config.MinimumDuration.Seconds()
	return min(max(p, 0), 1)
}

func (c *Controller) checkNotRemoved() error {
	if c.state == StateRemoved {
		return fmt.Errorf("%w: measurement was removed", ErrInvalidState)
	}
	return nil
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.state
}

func (c *Controller) SessionID() (uuid.UUID, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.checkNotRemoved(); err != nil {
		return uuid.Nil, err
	}
	return c.sessionID, nil
}

// Average returns the mean speed over valid points, nil when none was valid.
func (c *Controller) Average() (*float64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.checkNotRemoved(); err != nil {
		return nil, err
	}
	return c.stats.average(), nil
}

// Max returns the highest valid speed, nil when none was valid.
func (c *Controller) Max() (*float64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.checkNotRemoved(); err != nil {
		return nil, err
	}
	return c.stats.maximum(), nil
}

// Progress returns how much of the minimum duration has elapsed, in [0, 1].
// It freezes when the session stops.
func (c *Controller) Progress() (float64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.checkNotRemoved(); err != nil {
		return 0, err
	}
	return c.progressLocked(), nil
}

// Current returns the latest processed reading, nil before the first one.
func (c *Controller) Current() (*Reading, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.checkNotRemoved(); err != nil {
		return nil, err
	}
	if c.current == nil {
		return nil, nil
	}
	r := *c.current
	return &r, nil
}

// Series returns a copy of the retained points.
func (c *Controller) Series() (Series, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.checkNotRemoved(); err != nil {
		return Series{}, err
	}
	return c.series.clone(), nil
}

// Stale reports whether the magnetometer has been silent for longer than the
// sensor timeout during a running session.
func (c *Controller) Stale() (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.checkNotRemoved(); err != nil {
		return false, err
	}
	if c.state != StateRunning || c.config.SensorTimeout == 0 {
		return false, nil
	}
	return c.now().Sub(c.magneticAt) > c.config.SensorTimeout, nil
}

// Snapshot returns the result of a stopped session.
func (c *Controller) Snapshot() (Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateStopped {
		return Snapshot{}, fmt.Errorf("%w: snapshot of a %s measurement", ErrInvalidState, c.state)
	}

	snap := Snapshot{
		SessionID:   c.sessionID,
		StartTime:   c.startTime,
		EndTime:     c.stoppedAt,
		Duration:    c.stoppedAt.Sub(c.startTime),
		Algorithm:   c.config.Algorithm,
		Band:        c.config.Band,
		Average:     c.stats.average(),
		Max:         c.stats.maximum(),
		Points:      c.stats.points,
		ValidPoints: c.stats.valid,
		Progress:    c.progressLocked(),
		Series:      c.series.clone(),
	}
	if c.direction != nil {
		d := *c.direction
		snap.Direction = &d
	}
	if c.telemetry != nil {
		snap.Telemetry = c.telemetry.Get()
	}
	return snap, nil
}
