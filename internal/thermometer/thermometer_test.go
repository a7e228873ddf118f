package thermometer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/physic"
)

type fakeSensor struct {
	mu     sync.Mutex
	reads  int
	fail   bool
	halted bool
}

func (f *fakeSensor) Sense(env *physic.Env) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	if f.fail {
		return errors.New("bus error")
	}
	env.Temperature = physic.ZeroCelsius + 21*physic.Celsius
	return nil
}

func (f *fakeSensor) Halt() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.halted = true
	return nil
}

type sink struct {
	mu     sync.Mutex
	values []float64
}

func (s *sink) SetTemperature(_ time.Time, celsius float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values = append(s.values, celsius)
}

func (s *sink) snapshot() []float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]float64(nil), s.values...)
}

func TestPoller_Run(t *testing.T) {
	sensor := &fakeSensor{}
	var s sink
	p := NewPoller(sensor, &s, 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	require.Eventually(t, func() bool { return len(s.snapshot()) >= 2 }, time.Second, time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	assert.InDelta(t, 21, s.snapshot()[0], 1e-6)
	assert.True(t, sensor.halted)
}

func TestPoller_ReadErrorKeepsPolling(t *testing.T) {
	sensor := &fakeSensor{fail: true}
	var s sink
	p := NewPoller(sensor, &s, time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	require.Eventually(t, func() bool {
		sensor.mu.Lock()
		defer sensor.mu.Unlock()
		return sensor.reads >= 3
	}, time.Second, time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	assert.Empty(t, s.snapshot())
}

func TestNewPoller_DefaultInterval(t *testing.T) {
	p := NewPoller(&fakeSensor{}, &sink{}, 0)
	assert.Equal(t, DefaultInterval, p.interval)
}
