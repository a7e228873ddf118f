package storage

import (
	"database/sql"
	"errors"
	"time"

	"github.com/roman-kulish/anemometer/internal/history"
	"github.com/roman-kulish/anemometer/internal/telemetry"
)

func closeWithError(cl interface{ Close() error }, err *error) {
	if cErr := cl.Close(); cErr != nil && *err == nil {
		*err = cErr
	}
}

func rollbackWithError(rb interface{ Rollback() error }, err *error) {
	if cErr := rb.Rollback(); cErr != nil && !errors.Is(cErr, sql.ErrTxDone) && *err == nil {
		*err = cErr
	}
}

func toSessionData(s *history.Session) *sessionData {
	d := &sessionData{
		ID:          s.ID,
		StartTime:   s.StartTime.UnixNano(),
		EndTime:     s.EndTime.UnixNano(),
		Algorithm:   s.Algorithm,
		Band:        s.Band,
		Average:     toNullFloat64(s.Average),
		Max:         toNullFloat64(s.Max),
		Direction:   toNullFloat64(s.Direction),
		Points:      s.Points,
		ValidPoints: s.ValidPoints,
		Progress:    s.Progress,
	}
	if s.Config != nil {
		d.Config = sql.NullString{String: *s.Config, Valid: true}
	}

	if t := s.Telemetry; t != nil {
		if !t.Timestamp.IsZero() {
			d.TelemetryTime = sql.NullInt64{Int64: t.Timestamp.UnixNano(), Valid: true}
		}
		d.Latitude = toNullFloat64(t.Latitude)
		d.Longitude = toNullFloat64(t.Longitude)
		d.Altitude = toNullFloat64(t.Altitude)
		d.GroundSpeed = toNullFloat64(t.GroundSpeed)
		if t.Satellites != nil {
			d.Satellites = sql.NullInt64{Int64: *t.Satellites, Valid: true}
		}
		d.Temperature = toNullFloat64(t.Temperature)
		if !t.TemperatureAt.IsZero() {
			d.TemperatureTime = sql.NullInt64{Int64: t.TemperatureAt.UnixNano(), Valid: true}
		}
	}
	return d
}

func fromSessionData(d *sessionData) *history.Session {
	s := &history.Session{
		ID:          d.ID,
		StartTime:   fromUnixNano(d.StartTime),
		EndTime:     fromUnixNano(d.EndTime),
		Algorithm:   d.Algorithm,
		Band:        d.Band,
		Average:     fromNullFloat64(d.Average),
		Max:         fromNullFloat64(d.Max),
		Direction:   fromNullFloat64(d.Direction),
		Points:      d.Points,
		ValidPoints: d.ValidPoints,
		Progress:    d.Progress,
	}
	if d.Config.Valid {
		s.Config = &d.Config.String
	}

	if !d.TelemetryTime.Valid && !d.TemperatureTime.Valid {
		return s
	}

	t := &telemetry.Telemetry{
		Latitude:    fromNullFloat64(d.Latitude),
		Longitude:   fromNullFloat64(d.Longitude),
		Altitude:    fromNullFloat64(d.Altitude),
		GroundSpeed: fromNullFloat64(d.GroundSpeed),
		Temperature: fromNullFloat64(d.Temperature),
	}
	if d.TelemetryTime.Valid {
		t.Timestamp = fromUnixNano(d.TelemetryTime.Int64)
	}
	if d.TemperatureTime.Valid {
		t.TemperatureAt = fromUnixNano(d.TemperatureTime.Int64)
	}
	if d.Satellites.Valid {
		t.Satellites = &d.Satellites.Int64
	}
	s.Telemetry = t
	return s
}

func toPointData(p history.Point) pointData {
	return pointData{
		Timestamp: p.Timestamp.UnixNano(),
		Speed:     p.Speed,
		Valid:     p.Valid,
		Direction: toNullFloat64(p.Direction),
	}
}

func fromPointData(d pointData) history.Point {
	return history.Point{
		Timestamp: fromUnixNano(d.Timestamp),
		Speed:     d.Speed,
		Valid:     d.Valid,
		Direction: fromNullFloat64(d.Direction),
	}
}

func toNullFloat64(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func fromNullFloat64(f sql.NullFloat64) *float64 {
	if !f.Valid {
		return nil
	}
	v := f.Float64
	return &v
}

func fromUnixNano(ns int64) time.Time {
	return time.Unix(0, ns).UTC()
}
