package sensor

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

const (
	// ParseErrorsThreshold defines the number of consecutive parse errors allowed
	ParseErrorsThreshold = 5
)

var (
	// ErrTooManyParseErrors is returned when the number of consecutive parse errors exceeds the threshold
	ErrTooManyParseErrors = errors.New("too many consecutive parse errors")

	// ErrBrokenPipe is returned when there's an error reading from stdout or stderr
	ErrBrokenPipe = errors.New("broken pipe")
)

// WithLogger sets the logger for the command source
func WithLogger(logger *slog.Logger) func(c *Command) {
	return func(c *Command) {
		c.logger = logger.With(slog.String("command", c.path))
	}
}

// WithParseErrorsThreshold sets the threshold for consecutive parse errors
func WithParseErrorsThreshold(threshold uint8) func(c *Command) {
	return func(c *Command) {
		c.parseErrorsThreshold = threshold
	}
}

// Command runs a sensor bridge process and turns its stdout into sample
// streams. Each line is one sample:
//
//	M,<unix nanos>,<x>,<y>,<z>
//	I,<unix nanos>,<ax>,<ay>,<az>,<gx>,<gy>,<gz>
type Command struct {
	path string
	args []string

	magnetic *Feed[MagneticSample]
	imu      *Feed[IMUSample]
	shared   *Shared

	isSampling atomic.Bool
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	stopped    <-chan error

	parseErrorsThreshold uint8
	logger               *slog.Logger
}

// NewCommand creates a new Command with a discard logger
func NewCommand(path string, args []string, options ...func(c *Command)) *Command {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // nil logger

	c := Command{
		path:                 path,
		args:                 args,
		logger:               logger,
		parseErrorsThreshold: ParseErrorsThreshold,
	}
	c.shared = NewShared(c.open, c.close)
	c.magnetic = NewFeed[MagneticSample]("magnetometer", OnStart(c.shared.Acquire), OnStop(c.shared.Release))
	c.imu = NewFeed[IMUSample]("imu", OnStart(c.shared.Acquire), OnStop(c.shared.Release))

	for _, option := range options {
		option(&c)
	}

	return &c
}

func (c *Command) Magnetic() *Feed[MagneticSample] {
	return c.magnetic
}

func (c *Command) IMU() *Feed[IMUSample] {
	return c.imu
}

// Done returns the channel reporting why the process stopped, nil before the
// first start.
func (c *Command) Done() <-chan error {
	return c.stopped
}

func (c *Command) open() error {
	stopped, err := c.BeginSampling(context.Background())
	if err != nil {
		return err
	}
	c.stopped = stopped
	return nil
}

func (c *Command) close() error {
	c.Stop()
	return nil
}

// BeginSampling starts the process and pushes parsed samples into the feeds
func (c *Command) BeginSampling(ctx context.Context) (<-chan error, error) {
	if c.isSampling.Load() {
		return nil, fmt.Errorf("command is already running")
	}

	c.isSampling.Store(true)

	ctx, c.cancel = context.WithCancel(ctx)
	cmd := exec.CommandContext(ctx, c.path, c.args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		c.isSampling.Store(false) // Reset running state on error
		return nil, fmt.Errorf("error creating stdout pipe: %w", err)
	}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		c.isSampling.Store(false) // Reset running state on error
		return nil, fmt.Errorf("error creating stderr pipe: %w", err)
	}

	if err = cmd.Start(); err != nil {
		c.isSampling.Store(false) // Reset running state on error
		return nil, fmt.Errorf("error starting command: %w", err)
	}

	samplingStopped := make(chan error, 1)

	c.wg.Add(1)
	go func() {
		defer close(samplingStopped)

		c.logger.Info("starting samples collection...")

		done := make(chan error, 3) // expects three results from three goroutines

		go c.handleStdout(stdout, done)
		go c.handleStderr(stderr, done)
		go c.handleCmdWait(ctx, cmd, done)

		var errs []error
		for i := 0; i < cap(done); i++ {
			if err := <-done; err != nil {
				c.cancel() // cancel context on error
				c.logger.Error(err.Error())

				errs = append(errs, err)
			}
		}

		close(done)

		c.logger.Info("samples collection stopped")

		c.isSampling.Store(false)
		c.wg.Done()

		if len(errs) > 0 {
			samplingStopped <- errors.Join(errs...)
		}
	}()

	return samplingStopped, nil
}

func (c *Command) Stop() {
	if !c.isSampling.Load() {
		return // already stopped
	}

	c.cancel()
	c.wg.Wait()
	c.isSampling.Store(false)
}

// IsSampling returns true if the process is running
func (c *Command) IsSampling() bool {
	return c.isSampling.Load()
}

// handleStdout reads from stdout, parses lines and pushes samples to the feeds.
func (c *Command) handleStdout(stdout io.Reader, done chan<- error) {
	var parseErrors uint8

	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if err := c.dispatch(line); err != nil {
			parseErrors++
			c.logger.Warn(fmt.Sprintf("error parsing samples: %s", err.Error()), slog.String("line", line))

			if parseErrors >= c.parseErrorsThreshold {
				done <- ErrTooManyParseErrors
				return
			}

			continue
		}

		parseErrors = 0 // reset counter
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, fs.ErrClosed) {
		done <- fmt.Errorf("%w: error reading stdout: %w", ErrBrokenPipe, err)
		return
	}

	done <- nil
}

func (c *Command) dispatch(line string) error {
	m, i, err := ParseLine(line)
	if err != nil {
		return err
	}
	if m != nil {
		c.magnetic.Push(*m)
	}
	if i != nil {
		c.imu.Push(*i)
	}
	return nil
}

// handleStderr reads from stderr and logs errors.
func (c *Command) handleStderr(stderr io.Reader, done chan<- error) {
	scanner := bufio.NewScanner(stderr)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		c.logger.Warn(fmt.Sprintf("%s >> %s", c.path, line))
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, fs.ErrClosed) {
		done <- fmt.Errorf("%w: error reading stderr: %w", ErrBrokenPipe, err)
		return
	}

	done <- nil
}

// handleCmdWait waits for the command to exit and sends the error to the error channel
func (c *Command) handleCmdWait(ctx context.Context, cmd *exec.Cmd, done chan<- error) {
	if err := cmd.Wait(); err != nil && ctx.Err() == nil {
		done <- fmt.Errorf("command exited with error: %w", err)
		return
	}

	done <- nil
}

// ParseLine decodes one line of the bridge protocol. Exactly one of the
// returned samples is non-nil on success.
func ParseLine(line string) (*MagneticSample, *IMUSample, error) {
	fields := strings.Split(line, ",")
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}

	if len(fields) < 2 {
		return nil, nil, fmt.Errorf("invalid line: too few fields")
	}

	nanos, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid timestamp: %w", err)
	}
	ts := time.Unix(0, nanos)

	values, err := parseFloats(fields[2:])
	if err != nil {
		return nil, nil, err
	}

	switch fields[0] {
	case "M":
		if len(values) != 3 {
			return nil, nil, fmt.Errorf("magnetometer line: expected 3 values, got %d", len(values))
		}
		return &MagneticSample{Timestamp: ts, X: values[0], Y: values[1], Z: values[2]}, nil, nil

	case "I":
		if len(values) != 6 {
			return nil, nil, fmt.Errorf("imu line: expected 6 values, got %d", len(values))
		}
		return nil, &IMUSample{
			Timestamp: ts,
			Ax:        values[0], Ay: values[1], Az: values[2],
			Gx: values[3], Gy: values[4], Gz: values[5],
		}, nil

	default:
		return nil, nil, fmt.Errorf("unknown record type '%s'", fields[0])
	}
}

func parseFloats(fields []string) ([]float64, error) {
	values := make([]float64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid value at position %d: %w", i, err)
		}
		values[i] = v
	}
	return values, nil
}
