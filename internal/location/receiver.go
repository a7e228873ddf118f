package location

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	nmea "github.com/adrianmo/go-nmea"
	"github.com/jacobsa/go-serial/serial"
)

const knotsToMetresPerSecond = 1852.0 / 3600.0

const (
	DefaultPort     = "/dev/serial0"
	DefaultBaudRate = 9600
)

// Sink receives decoded position fixes.
type Sink interface {
	SetPosition(ts time.Time, lat, lon float64, altitude, groundSpeed *float64, satellites *int64)
}

type Config struct {
	Port     string
	BaudRate uint
}

type Option func(*Receiver)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Receiver) {
		r.logger = logger.With(slog.String("component", "gps"))
	}
}

// WithOpener replaces the serial port opener.
func WithOpener(open func(serial.OpenOptions) (io.ReadWriteCloser, error)) Option {
	return func(r *Receiver) {
		r.open = open
	}
}

// Receiver reads NMEA sentences from a serial GPS module.
type Receiver struct {
	config Config
	sink   Sink
	logger *slog.Logger
	open   func(serial.OpenOptions) (io.ReadWriteCloser, error)
}

func NewReceiver(config Config, sink Sink, opts ...Option) *Receiver {
	if config.Port == "" {
		config.Port = DefaultPort
	}
	if config.BaudRate == 0 {
		config.BaudRate = DefaultBaudRate
	}

	r := &Receiver{
		config: config,
		sink:   sink,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		open:   serial.Open,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run blocks until ctx is cancelled or the port fails.
func (r *Receiver) Run(ctx context.Context) error {
	port, err := r.open(serial.OpenOptions{
		PortName:        r.config.Port,
		BaudRate:        r.config.BaudRate,
		DataBits:        8,
		StopBits:        1,
		MinimumReadSize: 1,
		ParityMode:      serial.PARITY_NONE,
	})
	if err != nil {
		return fmt.Errorf("open %s: %w", r.config.Port, err)
	}

	stop := context.AfterFunc(ctx, func() {
		_ = port.Close()
	})
	defer func() {
		if stop() {
			_ = port.Close()
		}
	}()

	r.logger.Info("GPS port opened", slog.String("port", r.config.Port), slog.Uint64("baud", uint64(r.config.BaudRate)))

	if err = Consume(ctx, port, r.sink, r.logger); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

// Consume decodes RMC and GGA sentences from rd until EOF or ctx is done.
// Malformed sentences are skipped.
func Consume(ctx context.Context, rd io.Reader, sink Sink, logger *slog.Logger) error {
	var (
		scanner = bufio.NewScanner(rd)
		date    nmea.Date
	)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "$") {
			continue
		}

		sentence, err := nmea.Parse(line)
		if err != nil {
			logger.Debug("skipping NMEA sentence", slog.String("line", line), slog.Any("error", err))
			continue
		}

		switch s := sentence.(type) {
		case nmea.RMC:
			if s.Validity != nmea.ValidRMC {
				continue
			}
			date = s.Date
			speed := s.Speed * knotsToMetresPerSecond
			sink.SetPosition(timestamp(date, s.Time), s.Latitude, s.Longitude, nil, &speed, nil)

		case nmea.GGA:
			if s.FixQuality == nmea.Invalid {
				continue
			}
			altitude, satellites := s.Altitude, s.NumSatellites
			sink.SetPosition(timestamp(date, s.Time), s.Latitude, s.Longitude, &altitude, nil, &satellites)
		}
	}

	if err := scanner.Err(); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("read NMEA: %w", err)
	}
	return nil
}

// timestamp combines an NMEA date and time. GGA carries no date, so the date
// of the last RMC is used, or today when none was seen yet.
func timestamp(d nmea.Date, t nmea.Time) time.Time {
	if !t.Valid {
		return time.Now().UTC()
	}

	year, month, day := time.Now().UTC().Date()
	if d.Valid {
		year, month, day = 2000+d.YY, time.Month(d.MM), d.DD
		if d.YY >= 80 {
			year -= 100
		}
	}
	return time.Date(year, month, day, t.Hour, t.Minute, t.Second, t.Millisecond*int(time.Millisecond), time.UTC)
}
