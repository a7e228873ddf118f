package location

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jacobsa/go-serial/serial"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sentences = "$GPRMC,123519,A,4807.038,N,01131.000,E,022.4,084.4,230394,003.1,W*6A\r\n" +
	"garbage\r\n" +
	"$GPRMC,123519,A,4807.038,N,01131.000,E,022.4,084.4,230394,003.1,W*00\r\n" +
	"$GPGGA,123520,4807.038,N,01131.000,E,1,08,0.9,545.4,M,46.9,M,,*4D\r\n" +
	"$GPRMC,123521,V,4807.038,N,01131.000,E,022.4,084.4,230394,003.1,W*76\r\n" +
	"$GPGGA,123522,4807.038,N,01131.000,E,0,00,,,M,,M,,*5A\r\n"

type fix struct {
	ts          time.Time
	lat, lon    float64
	altitude    *float64
	groundSpeed *float64
	satellites  *int64
}

type sink struct {
	mu    sync.Mutex
	fixes []fix
}

func (s *sink) SetPosition(ts time.Time, lat, lon float64, altitude, groundSpeed *float64, satellites *int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fixes = append(s.fixes, fix{ts, lat, lon, altitude, groundSpeed, satellites})
}

func (s *sink) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.fixes)
}

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestConsume(t *testing.T) {
	var s sink
	require.NoError(t, Consume(context.Background(), strings.NewReader(sentences), &s, discard))

	require.Len(t, s.fixes, 2, "bad checksum, void RMC and invalid GGA are skipped")

	rmc := s.fixes[0]
	assert.Equal(t, time.Date(1994, time.March, 23, 12, 35, 19, 0, time.UTC), rmc.ts)
	assert.InDelta(t, 48.1173, rmc.lat, 1e-6)
	assert.InDelta(t, 11.516667, rmc.lon, 1e-6)
	require.NotNil(t, rmc.groundSpeed)
	assert.InDelta(t, 11.5236, *rmc.groundSpeed, 1e-3)
	assert.Nil(t, rmc.altitude)

	gga := s.fixes[1]
	assert.Equal(t, time.Date(1994, time.March, 23, 12, 35, 20, 0, time.UTC), gga.ts)
	require.NotNil(t, gga.altitude)
	assert.InDelta(t, 545.4, *gga.altitude, 1e-9)
	require.NotNil(t, gga.satellites)
	assert.Equal(t, int64(8), *gga.satellites)
	assert.Nil(t, gga.groundSpeed)
}

type pipePort struct {
	*io.PipeReader
	w *io.PipeWriter
}

func (p pipePort) Write(b []byte) (int, error) { return 0, errors.ErrUnsupported }

func (p pipePort) Close() error {
	return p.PipeReader.Close()
}

func TestReceiver_Run(t *testing.T) {
	pr, pw := io.Pipe()

	var opened serial.OpenOptions
	open := func(o serial.OpenOptions) (io.ReadWriteCloser, error) {
		opened = o
		return pipePort{PipeReader: pr, w: pw}, nil
	}

	var s sink
	r := NewReceiver(Config{Port: "/dev/ttyUSB0"}, &s, WithOpener(open))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	_, err := pw.Write([]byte(sentences))
	require.NoError(t, err)
	require.Eventually(t, func() bool { return s.len() == 2 }, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("receiver did not stop")
	}

	assert.Equal(t, "/dev/ttyUSB0", opened.PortName)
	assert.Equal(t, uint(DefaultBaudRate), opened.BaudRate)
}

func TestReceiver_OpenError(t *testing.T) {
	open := func(serial.OpenOptions) (io.ReadWriteCloser, error) {
		return nil, errors.New("no such device")
	}
	r := NewReceiver(Config{}, &sink{}, WithOpener(open))
	err := r.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), DefaultPort)
}
