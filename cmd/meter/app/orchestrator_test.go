package app

import (
	"context"
	"io"
	"log/slog"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roman-kulish/anemometer/internal/config"
	"github.com/roman-kulish/anemometer/internal/history"
	"github.com/roman-kulish/anemometer/internal/measurement"
	"github.com/roman-kulish/anemometer/internal/sensor"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type memoryStore struct {
	mu       sync.Mutex
	sessions []history.Session
	points   map[string][]history.Point
}

func (m *memoryStore) StoreSession(_ context.Context, s history.Session, points []history.Point) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.points == nil {
		m.points = make(map[string][]history.Point)
	}
	m.sessions = append(m.sessions, s)
	m.points[s.ID] = points
	return nil
}

func (m *memoryStore) Session(context.Context, string) (*history.Session, error) {
	return nil, nil
}

func (m *memoryStore) Sessions(context.Context) ([]*history.Session, error) {
	return nil, nil
}

func (m *memoryStore) Close() error {
	return nil
}

func testConfig() measurement.Config {
	c := measurement.DefaultConfig()
	c.FFTForEvery = 1
	c.SaveEveryNthPoint = 1
	c.SensorTimeout = 0
	c.MinimumDuration = time.Hour
	return c
}

func pushRotor(magnetic *sensor.Feed[sensor.MagneticSample], n int) {
	start := time.Now()
	for i := 0; i < n; i++ {
		magnetic.Push(sensor.MagneticSample{
			Timestamp: start.Add(time.Duration(i) * time.Second / 64),
			X:         20 * math.Cos(2*math.Pi*10*float64(i)/64),
			Y:         -20,
		})
	}
}

func TestOrchestrator_Run(t *testing.T) {
	magnetic := sensor.NewFeed[sensor.MagneticSample]("magnetic")
	dyn := sensor.NewFeed[sensor.DynamicsSample]("dynamics")
	store := &memoryStore{}

	var (
		mu       sync.Mutex
		states   []string
		sessions []history.Session
	)
	o, err := NewOrchestrator(magnetic, dyn, testConfig(), nil,
		WithStore(store),
		WithSessionConfig(`{"band":"fq40"}`),
		WithStateHook(func(s string) {
			mu.Lock()
			defer mu.Unlock()
			states = append(states, s)
		}),
		WithSessionHook(func(s history.Session) {
			mu.Lock()
			defer mu.Unlock()
			sessions = append(sessions, s)
		}),
	)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- o.Run(ctx) }()

	require.Eventually(t, magnetic.IsRunning, time.Second, time.Millisecond)
	require.Eventually(t, dyn.IsRunning, time.Second, time.Millisecond)
	dyn.Push(sensor.DynamicsSample{Timestamp: time.Now(), Valid: true})
	pushRotor(magnetic, 100)

	cancel()
	select {
	case err = <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("orchestrator did not stop")
	}

	assert.Equal(t, measurement.StateRemoved, o.Controller().State())
	assert.False(t, magnetic.IsRunning())

	require.Len(t, store.sessions, 1)
	s := store.sessions[0]
	assert.Equal(t, 37, s.Points)
	assert.Equal(t, 37, s.ValidPoints)
	assert.Len(t, store.points[s.ID], 37)
	require.NotNil(t, s.Average)
	assert.InDelta(t, 0.238+1.07*10, *s.Average, 1e-6)
	require.NotNil(t, s.Config)
	assert.Less(t, s.Progress, 1.0)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"running", "stopped"}, states)
	require.Len(t, sessions, 1)
	assert.Equal(t, s.ID, sessions[0].ID)
}

func TestOrchestrator_Duration(t *testing.T) {
	magnetic := sensor.NewFeed[sensor.MagneticSample]("magnetic")
	dyn := sensor.NewFeed[sensor.DynamicsSample]("dynamics")

	o, err := NewOrchestrator(magnetic, dyn, testConfig(), nil, WithDuration(20*time.Millisecond))
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- o.Run(context.Background()) }()

	select {
	case err = <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("orchestrator did not stop after its duration")
	}
}

func TestOrchestrator_StoppedByModel(t *testing.T) {
	magnetic := sensor.NewFeed[sensor.MagneticSample]("magnetic")
	dyn := sensor.NewFeed[sensor.DynamicsSample]("dynamics")

	o, err := NewOrchestrator(magnetic, dyn, testConfig(), nil)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- o.Run(context.Background()) }()

	require.Eventually(t, magnetic.IsRunning, time.Second, time.Millisecond)
	require.Eventually(t, dyn.IsRunning, time.Second, time.Millisecond)
	require.NoError(t, o.Controller().Remove())

	select {
	case err = <-done:
		assert.ErrorIs(t, err, ErrStoppedByModel)
	case <-time.After(5 * time.Second):
		t.Fatal("orchestrator did not notice the removal")
	}
}

func TestOrchestrator_SensorUnavailable(t *testing.T) {
	magnetic := sensor.NewFeed[sensor.MagneticSample]("magnetic")
	magnetic.Fail(sensor.ErrUnavailable)
	dyn := sensor.NewFeed[sensor.DynamicsSample]("dynamics")

	o, err := NewOrchestrator(magnetic, dyn, testConfig(), nil)
	require.NoError(t, err)

	err = o.Run(context.Background())
	assert.ErrorIs(t, err, measurement.ErrSensorUnavailable)
}

func TestCreateStorage(t *testing.T) {
	dir := t.TempDir()

	store, err := createStorage(&config.StorageConfig{DataDirectory: dir, Database: "test.sqlite"})
	require.NoError(t, err)
	require.NoError(t, store.Close())

	_, err = createStorage(&config.StorageConfig{DataDirectory: dir + "/missing", Database: "test.sqlite"})
	assert.Error(t, err)
}

func TestCreateSources(t *testing.T) {
	for _, source := range []string{config.SourceSynthetic, config.SourceCommand, config.SourceMQTT} {
		cfg := config.Default().Sensors
		cfg.Source = source
		src, err := createSources(&cfg, discard)
		require.NoError(t, err, source)
		assert.NotNil(t, src.magnetic)
		assert.NotNil(t, src.imu)
	}

	cfg := config.Default().Sensors
	cfg.Source = "serial"
	_, err := createSources(&cfg, discard)
	assert.Error(t, err)
}
