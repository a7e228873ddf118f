package telemetry

import (
	"sync"
	"time"
)

// Latest is a Provider holding the most recent position and temperature
// reported by independent receivers. It is safe for concurrent use.
type Latest struct {
	mu sync.RWMutex
	t  Telemetry
}

// Get returns a copy of the current telemetry, nil when nothing was reported
func (l *Latest) Get() *Telemetry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.t.Timestamp.IsZero() && l.t.TemperatureAt.IsZero() {
		return nil
	}

	t := l.t
	t.Latitude = clonePtr(l.t.Latitude)
	t.Longitude = clonePtr(l.t.Longitude)
	t.Altitude = clonePtr(l.t.Altitude)
	t.GroundSpeed = clonePtr(l.t.GroundSpeed)
	t.Satellites = clonePtr(l.t.Satellites)
	t.Temperature = clonePtr(l.t.Temperature)
	return &t
}

// SetPosition records a position fix. Nil fields keep their previous value.
func (l *Latest) SetPosition(ts time.Time, lat, lon float64, altitude, groundSpeed *float64, satellites *int64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.t.Timestamp = ts
	l.t.Latitude = &lat
	l.t.Longitude = &lon
	if altitude != nil {
		l.t.Altitude = clonePtr(altitude)
	}
	if groundSpeed != nil {
		l.t.GroundSpeed = clonePtr(groundSpeed)
	}
	if satellites != nil {
		l.t.Satellites = clonePtr(satellites)
	}
}

func (l *Latest) SetTemperature(ts time.Time, celsius float64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.t.Temperature = &celsius
	l.t.TemperatureAt = ts
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
