package thermometer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/devices/v3/bmxx80"
	"periph.io/x/host/v3"
)

const (
	DefaultInterval = 10 * time.Second
	DefaultAddress  = 0x76
)

var ErrUnknownInterface = errors.New("unknown thermometer interface")

// Sensor is the subset of a BMx280 used here.
type Sensor interface {
	Sense(env *physic.Env) error
	Halt() error
}

// Sink receives temperature readings.
type Sink interface {
	SetTemperature(ts time.Time, celsius float64)
}

type Config struct {
	Interface string // "i2c" or "spi"
	Bus       string // empty opens the first bus available
	Address   uint16 // I²C only
	Interval  time.Duration
}

// Open initialises the host drivers and a BMx280 on the configured bus.
func Open(config Config) (Sensor, io.Closer, error) {
	if _, err := host.Init(); err != nil {
		return nil, nil, fmt.Errorf("periph host init: %w", err)
	}

	switch config.Interface {
	case "", "i2c":
		bus, err := i2creg.Open(config.Bus)
		if err != nil {
			return nil, nil, fmt.Errorf("open I²C bus %q: %w", config.Bus, err)
		}
		addr := config.Address
		if addr == 0 {
			addr = DefaultAddress
		}
		dev, err := bmxx80.NewI2C(bus, addr, &bmxx80.DefaultOpts)
		if err != nil {
			_ = bus.Close()
			return nil, nil, fmt.Errorf("BMx280 init: %w", err)
		}
		return dev, bus, nil

	case "spi":
		port, err := spireg.Open(config.Bus)
		if err != nil {
			return nil, nil, fmt.Errorf("open SPI port %q: %w", config.Bus, err)
		}
		dev, err := bmxx80.NewSPI(port, &bmxx80.DefaultOpts)
		if err != nil {
			_ = port.Close()
			return nil, nil, fmt.Errorf("BMx280 init: %w", err)
		}
		return dev, port, nil
	}

	return nil, nil, fmt.Errorf("%w: %s", ErrUnknownInterface, config.Interface)
}

type Option func(*Poller)

func WithLogger(logger *slog.Logger) Option {
	return func(p *Poller) {
		p.logger = logger.With(slog.String("component", "thermometer"))
	}
}

// Poller reads the sensor periodically and forwards the temperature.
type Poller struct {
	sensor   Sensor
	sink     Sink
	interval time.Duration
	logger   *slog.Logger
}

func NewPoller(sensor Sensor, sink Sink, interval time.Duration, opts ...Option) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}

	p := &Poller{
		sensor:   sensor,
		sink:     sink,
		interval: interval,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run reads once immediately and then on every tick until ctx is done.
// Read failures are logged and do not stop polling.
func (p *Poller) Run(ctx context.Context) error {
	defer func() {
		if err := p.sensor.Halt(); err != nil {
			p.logger.Warn("failed to halt sensor", slog.Any("error", err))
		}
	}()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		p.read()

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (p *Poller) read() {
	var e physic.Env
	if err := p.sensor.Sense(&e); err != nil {
		p.logger.Warn("failed to read temperature", slog.Any("error", err))
		return
	}

	c := e.Temperature.Celsius()
	p.sink.SetTemperature(time.Now(), c)
	p.logger.Debug("temperature", slog.Float64("celsius", c))
}
