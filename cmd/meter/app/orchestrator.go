package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/roman-kulish/anemometer/internal/heading"
	"github.com/roman-kulish/anemometer/internal/history"
	"github.com/roman-kulish/anemometer/internal/measurement"
	"github.com/roman-kulish/anemometer/internal/sensor"
	"github.com/roman-kulish/anemometer/internal/storage"
	"github.com/roman-kulish/anemometer/internal/telemetry"
	"github.com/roman-kulish/anemometer/internal/units"
)

const (
	progressInterval = 5 * time.Second
	storeTimeout     = 10 * time.Second
)

var ErrStoppedByModel = errors.New("measurement stopped unexpectedly")

// WithLogger sets the logger for the orchestrator and the controller it owns
func WithLogger(logger *slog.Logger) func(*Orchestrator) {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

// WithTelemetry sets the telemetry provider used to tag sessions
func WithTelemetry(provider telemetry.Provider) func(*Orchestrator) {
	return func(o *Orchestrator) {
		o.telemetry = provider
	}
}

// WithStore sets the store finished sessions are saved to
func WithStore(store storage.Store) func(*Orchestrator) {
	return func(o *Orchestrator) {
		o.store = store
	}
}

// WithDuration stops the session after d, 0 runs until the context is done
func WithDuration(d time.Duration) func(*Orchestrator) {
	return func(o *Orchestrator) {
		o.duration = d
	}
}

// WithUnit sets the speed unit used in log messages
func WithUnit(unit units.SpeedUnit) func(*Orchestrator) {
	return func(o *Orchestrator) {
		o.unit = unit
	}
}

// WithSessionConfig attaches a JSON description of the configuration to
// stored sessions
func WithSessionConfig(config string) func(*Orchestrator) {
	return func(o *Orchestrator) {
		o.sessionConfig = &config
	}
}

// WithStateHook registers a function called on every session state change
func WithStateHook(fn func(state string)) func(*Orchestrator) {
	return func(o *Orchestrator) {
		o.stateHooks = append(o.stateHooks, fn)
	}
}

// WithSessionHook registers a function called with every finished session
func WithSessionHook(fn func(history.Session)) func(*Orchestrator) {
	return func(o *Orchestrator) {
		o.sessionHooks = append(o.sessionHooks, fn)
	}
}

// Orchestrator runs a single measurement session from start to storage and
// reports its progress.
type Orchestrator struct {
	controller *measurement.Controller

	logger        *slog.Logger
	store         storage.Store
	telemetry     telemetry.Provider
	duration      time.Duration
	unit          units.SpeedUnit
	sessionConfig *string
	stateHooks    []func(string)
	sessionHooks  []func(history.Session)

	stoppedOnce sync.Once
	stopped     chan struct{}
}

// NewOrchestrator creates the measurement controller with the given delegates
// and the orchestrator itself attached.
func NewOrchestrator(
	magnetic sensor.Source[sensor.MagneticSample],
	dynamics sensor.Source[sensor.DynamicsSample],
	config measurement.Config,
	delegates measurement.Delegates,
	options ...func(*Orchestrator),
) (*Orchestrator, error) {
	o := Orchestrator{
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		unit:    units.MetresPerSecond,
		stopped: make(chan struct{}),
	}
	for _, option := range options {
		option(&o)
	}

	controllerOptions := []func(*measurement.Controller){
		measurement.WithDelegate(append(measurement.Delegates{&o}, delegates...)),
		measurement.WithLogger(o.logger),
	}
	if o.telemetry != nil {
		controllerOptions = append(controllerOptions, measurement.WithTelemetry(o.telemetry))
	}

	var err error
	if o.controller, err = measurement.New(magnetic, dynamics, config, controllerOptions...); err != nil {
		return nil, err
	}
	return &o, nil
}

func (o *Orchestrator) Controller() *measurement.Controller {
	return o.controller
}

// Run starts a session and stops it when ctx is done or the configured
// duration elapses. The stopped session is stored and then removed.
func (o *Orchestrator) Run(ctx context.Context) error {
	if err := o.controller.Start(); err != nil {
		return fmt.Errorf("starting measurement: %w", err)
	}
	defer func() {
		if err := o.controller.Remove(); err != nil {
			o.logger.Warn("failed to remove measurement", slog.Any("error", err))
		}
	}()

	id, _ := o.controller.SessionID()
	o.logger.Info("measurement started", slog.String("session", id.String()))
	o.notifyState("running")

	var deadline <-chan time.Time
	if o.duration > 0 {
		timer := time.NewTimer(o.duration)
		defer timer.Stop()
		deadline = timer.C
	}

	ticker := time.NewTicker(progressInterval)
	defer ticker.Stop()

loop:
	for {
		select {
		case <-ctx.Done():
			o.logger.Info("measurement interrupted")
			break loop
		case <-deadline:
			o.logger.Info("measurement duration elapsed", slog.Duration("duration", o.duration))
			break loop
		case <-o.stopped:
			return ErrStoppedByModel
		case <-ticker.C:
			o.logProgress()
		}
	}

	elapsed, err := o.controller.Stop()
	if err != nil {
		return fmt.Errorf("stopping measurement: %w", err)
	}
	o.notifyState("stopped")

	snap, err := o.controller.Snapshot()
	if err != nil {
		return fmt.Errorf("reading measurement: %w", err)
	}
	o.logSummary(&snap, elapsed)

	session, points := history.FromSnapshot(&snap, o.sessionConfig)
	if o.store != nil {
		storeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), storeTimeout)
		defer cancel()

		if err = o.store.StoreSession(storeCtx, session, points); err != nil {
			return fmt.Errorf("storing session: %w", err)
		}
		o.logger.Info("session stored", slog.String("session", session.ID), slog.Int("points", len(points)))
	}
	for _, hook := range o.sessionHooks {
		hook(session)
	}

	return nil
}

func (o *Orchestrator) notifyState(state string) {
	for _, hook := range o.stateHooks {
		hook(state)
	}
}

func (o *Orchestrator) logProgress() {
	progress, err := o.controller.Progress()
	if err != nil {
		return
	}

	attrs := []any{slog.String("progress", fmt.Sprintf("%.0f%%", progress*100))}
	if avg, _ := o.controller.Average(); avg != nil {
		attrs = append(attrs, slog.String("average", o.unit.Format(*avg)))
	}
	if r, _ := o.controller.Current(); r != nil {
		attrs = append(attrs, slog.String("current", o.unit.Format(r.Speed)), slog.Bool("valid", r.Verdict.Valid()))
	}
	if stale, _ := o.controller.Stale(); stale {
		o.logger.Warn("sensor data is stale")
	}

	o.logger.Info("measuring", attrs...)
}

func (o *Orchestrator) logSummary(snap *measurement.Snapshot, elapsed time.Duration) {
	attrs := []any{
		slog.String("session", snap.SessionID.String()),
		slog.String("elapsed", elapsed.Round(time.Second).String()),
		slog.String("points", humanize.Comma(int64(snap.Points))),
		slog.String("valid", humanize.Comma(int64(snap.ValidPoints))),
		slog.String("retained", humanize.Comma(int64(snap.Series.Len()))),
		slog.String("algorithm", snap.Algorithm.String()),
	}
	if snap.Average != nil {
		attrs = append(attrs, slog.String("average", o.unit.Format(*snap.Average)))
	}
	if snap.Max != nil {
		attrs = append(attrs, slog.String("max", o.unit.Format(*snap.Max)))
	}
	if snap.Direction != nil {
		attrs = append(attrs, slog.String("direction", fmt.Sprintf("%.0f° %s", *snap.Direction, heading.Cardinal(*snap.Direction))))
	}

	if snap.Progress < 1 {
		o.logger.Warn("measurement shorter than the minimum duration", attrs...)
		return
	}
	o.logger.Info("measurement finished", attrs...)
}

func (o *Orchestrator) AddSpeedMeasurement(current float64, average, max *float64) {
	o.logger.Debug("speed", slog.Float64("current", current))
}

func (o *Orchestrator) MeasuringStoppedByModel() {
	o.stoppedOnce.Do(func() {
		close(o.stopped)
	})
}

func (o *Orchestrator) TemperatureUpdated(celsius float64) {
	o.logger.Info("temperature", slog.String("celsius", humanize.FormatFloat("#.#", celsius)))
}
