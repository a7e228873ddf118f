package sensor

import (
	"context"
	"io"
	"log/slog"
	"math"
	"math/rand/v2"
	"sync"
	"time"
)

// SyntheticConfig describes a simulated accessory spinning at a steady rate
// with optional gusts, held level and still.
type SyntheticConfig struct {
	RotorFrequency float64 // Hz
	GustAmplitude  float64 // Hz, peak deviation of the rotor frequency
	GustPeriod     time.Duration
	FieldAmplitude float64 // µT of the rotating magnet
	Noise          float64 // µT, standard deviation
	SampleRate     float64 // magnetometer rate, Hz
	IMURate        float64 // Hz
	Heading        float64 // degrees the device points at
	Seed           uint64
}

func DefaultSyntheticConfig() SyntheticConfig {
	return SyntheticConfig{
		RotorFrequency: 4,
		GustAmplitude:  0.5,
		GustPeriod:     20 * time.Second,
		FieldAmplitude: 60,
		Noise:          0.5,
		SampleRate:     63,
		IMURate:        50,
		Heading:        225,
		Seed:           1,
	}
}

// WithSyntheticLogger sets the logger for the synthetic source
func WithSyntheticLogger(logger *slog.Logger) func(s *Synthetic) {
	return func(s *Synthetic) {
		s.logger = logger.With(slog.String("source", "synthetic"))
	}
}

// Synthetic produces magnetometer and IMU streams in real time.
type Synthetic struct {
	config   SyntheticConfig
	magnetic *Feed[MagneticSample]
	imu      *Feed[IMUSample]
	shared   *Shared

	cancel context.CancelFunc
	wg     sync.WaitGroup
	logger *slog.Logger
}

func NewSynthetic(config SyntheticConfig, options ...func(s *Synthetic)) *Synthetic {
	s := Synthetic{
		config: config,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	s.shared = NewShared(s.open, s.close)
	s.magnetic = NewFeed[MagneticSample]("synthetic magnetometer", OnStart(s.shared.Acquire), OnStop(s.shared.Release))
	s.imu = NewFeed[IMUSample]("synthetic imu", OnStart(s.shared.Acquire), OnStop(s.shared.Release))

	for _, option := range options {
		option(&s)
	}
	return &s
}

func (s *Synthetic) Magnetic() *Feed[MagneticSample] {
	return s.magnetic
}

func (s *Synthetic) IMU() *Feed[IMUSample] {
	return s.imu
}

func (s *Synthetic) open() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	start := time.Now()
	gen := NewRotorGenerator(s.config)

	s.wg.Add(2)
	go s.loop(ctx, s.config.SampleRate, func(now time.Time) {
		s.magnetic.Push(gen.Magnetic(now, now.Sub(start)))
	})
	go s.loop(ctx, s.config.IMURate, func(now time.Time) {
		s.imu.Push(gen.IMU(now))
	})

	s.logger.Info("synthetic sampling started", slog.Float64("rotorFrequency", s.config.RotorFrequency))
	return nil
}

func (s *Synthetic) close() error {
	s.cancel()
	s.wg.Wait()
	s.logger.Info("synthetic sampling stopped")
	return nil
}

func (s *Synthetic) loop(ctx context.Context, rate float64, emit func(time.Time)) {
	defer s.wg.Done()

	ticker := time.NewTicker(time.Duration(float64(time.Second) / rate))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			emit(now)
		}
	}
}

// RotorGenerator computes deterministic synthetic samples as a function of
// time. It is not safe for concurrent use of the magnetic channel.
type RotorGenerator struct {
	config SyntheticConfig
	phase  float64
	last   time.Duration
	rnd    *rand.Rand
	mu     sync.Mutex
}

func NewRotorGenerator(config SyntheticConfig) *RotorGenerator {
	return &RotorGenerator{
		config: config,
		rnd:    rand.New(rand.NewPCG(config.Seed, config.Seed^0x9e3779b97f4a7c15)),
	}
}

// Frequency returns the simulated rotor frequency at elapsed time t.
func (g *RotorGenerator) Frequency(t time.Duration) float64 {
	f := g.config.RotorFrequency
	if g.config.GustPeriod > 0 {
		f += g.config.GustAmplitude * math.Sin(2*math.Pi*t.Seconds()/g.config.GustPeriod.Seconds())
	}
	return math.Max(f, 0)
}

// Magnetic integrates the rotor phase up to elapsed time t and returns the
// field seen by the magnetometer: earth field along the heading plus the
// rotating magnet on the x and y axes.
func (g *RotorGenerator) Magnetic(ts time.Time, t time.Duration) MagneticSample {
	g.mu.Lock()
	defer g.mu.Unlock()

	dt := (t - g.last).Seconds()
	g.last = t
	g.phase = math.Mod(g.phase+2*math.Pi*g.Frequency(t)*dt, 2*math.Pi)

	h := g.config.Heading * math.Pi / 180
	a := g.config.FieldAmplitude
	return MagneticSample{
		Timestamp: ts,
		X:         20*math.Cos(h) + a*math.Sin(g.phase) + g.rnd.NormFloat64()*g.config.Noise,
		Y:         -20*math.Sin(h) + a*math.Cos(g.phase) + g.rnd.NormFloat64()*g.config.Noise,
		Z:         -40 + g.rnd.NormFloat64()*g.config.Noise,
	}
}

// IMU returns a level, resting device reading.
func (g *RotorGenerator) IMU(ts time.Time) IMUSample {
	g.mu.Lock()
	defer g.mu.Unlock()

	n := func() float64 { return g.rnd.NormFloat64() * 0.002 }
	return IMUSample{
		Timestamp: ts,
		Ax:        n(),
		Ay:        n(),
		Az:        -1 + n(),
		Gx:        n(),
		Gy:        n(),
		Gz:        n(),
	}
}
