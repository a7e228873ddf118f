package app

import (
	"time"

	"github.com/roman-kulish/anemometer/internal/history"
)

// SeriesData collects the points of a session for plotting.
type SeriesData struct {
	Session                      *history.Session
	TimestampStart, TimestampEnd time.Time
	SpeedMax                     float64 // m/s, over all plotted points
	ValidCount                   int
	Points                       []history.Point
}

func NewSeriesData(session *history.Session) *SeriesData {
	return &SeriesData{Session: session}
}

func (s *SeriesData) Update(p *history.Point) {
	if s.TimestampStart.IsZero() || s.TimestampStart.After(p.Timestamp) {
		s.TimestampStart = p.Timestamp
	}
	if s.TimestampEnd.IsZero() || s.TimestampEnd.Before(p.Timestamp) {
		s.TimestampEnd = p.Timestamp
	}

	s.SpeedMax = max(s.SpeedMax, p.Speed)
	if p.Valid {
		s.ValidCount++
	}
	s.Points = append(s.Points, *p)
}

func (s *SeriesData) Len() int {
	return len(s.Points)
}

// Duration is the time covered by the plotted points.
func (s *SeriesData) Duration() time.Duration {
	return s.TimestampEnd.Sub(s.TimestampStart)
}
