package history

import (
	"time"

	"github.com/roman-kulish/anemometer/internal/measurement"
	"github.com/roman-kulish/anemometer/internal/telemetry"
)

// Session is a finished measurement session as kept in the history.
type Session struct {
	ID          string               `json:"id"`                    // Session UUID
	StartTime   time.Time            `json:"startTime"`             // First processed point
	EndTime     time.Time            `json:"endTime"`               // Last processed point
	Algorithm   string               `json:"algorithm"`             // Calibration used for the speeds
	Band        string               `json:"band"`                  // Frequency band of the detector
	Average     *float64             `json:"average,omitempty"`     // Mean speed over valid points in m/s
	Max         *float64             `json:"max,omitempty"`         // Maximum speed over valid points in m/s
	Direction   *float64             `json:"direction,omitempty"`   // Last confirmed wind direction in degrees
	Points      int                  `json:"points"`                // Processed points, retained or not
	ValidPoints int                  `json:"validPoints"`           // Processed points that passed validation
	Progress    float64              `json:"progress"`              // Fraction of the minimum duration covered
	Telemetry   *telemetry.Telemetry `json:"telemetry,omitempty"`   // Position and temperature at stop
	Config      *string              `json:"config,string,omitempty"` // Optional session configuration in JSON format
}

func (s Session) Duration() time.Duration {
	return s.EndTime.Sub(s.StartTime)
}

// Point is one retained speed reading.
type Point struct {
	Timestamp time.Time `json:"timestamp"`
	Speed     float64   `json:"speed"` // m/s
	Valid     bool      `json:"valid"`
	Direction *float64  `json:"direction,omitempty"` // degrees, nil while unconfirmed
}

// FromSnapshot converts a stopped session into its history records.
func FromSnapshot(snap *measurement.Snapshot, config *string) (Session, []Point) {
	s := Session{
		ID:          snap.SessionID.String(),
		StartTime:   snap.StartTime,
		EndTime:     snap.EndTime,
		Algorithm:   snap.Algorithm.String(),
		Band:        snap.Band.String(),
		Average:     snap.Average,
		Max:         snap.Max,
		Direction:   snap.Direction,
		Points:      snap.Points,
		ValidPoints: snap.ValidPoints,
		Progress:    snap.Progress,
		Telemetry:   snap.Telemetry,
		Config:      config,
	}

	series := snap.Series
	points := make([]Point, series.Len())
	for i := range points {
		points[i] = Point{
			Timestamp: series.WindSpeedTime[i],
			Speed:     series.WindSpeed[i],
			Valid:     series.WindSpeedValidity[i],
			Direction: series.WindDirection[i],
		}
	}
	return s, points
}
