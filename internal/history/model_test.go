package history

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roman-kulish/anemometer/internal/calibration"
	"github.com/roman-kulish/anemometer/internal/dsp"
	"github.com/roman-kulish/anemometer/internal/measurement"
)

func TestFromSnapshot(t *testing.T) {
	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	avg, dir := 4.5, 180.0
	snap := &measurement.Snapshot{
		SessionID:   uuid.New(),
		StartTime:   start,
		EndTime:     start.Add(time.Minute),
		Algorithm:   calibration.IPhone5Legacy,
		Band:        dsp.BandFQ60,
		Average:     &avg,
		Points:      120,
		ValidPoints: 100,
		Progress:    1,
		Series: measurement.Series{
			WindSpeed:         []float64{4, 5},
			WindSpeedValidity: []bool{true, false},
			WindSpeedTime:     []time.Time{start, start.Add(time.Second)},
			WindDirection:     []*float64{nil, &dir},
		},
	}

	s, points := FromSnapshot(snap, nil)

	assert.Equal(t, snap.SessionID.String(), s.ID)
	assert.Equal(t, time.Minute, s.Duration())
	assert.Equal(t, calibration.IPhone5Legacy.String(), s.Algorithm)
	assert.Equal(t, dsp.BandFQ60.String(), s.Band)
	assert.Equal(t, &avg, s.Average)
	assert.Nil(t, s.Max)
	assert.Equal(t, 100, s.ValidPoints)

	require.Len(t, points, 2)
	assert.Equal(t, Point{Timestamp: start, Speed: 4, Valid: true}, points[0])
	assert.Equal(t, 180.0, *points[1].Direction)
	assert.False(t, points[1].Valid)
}
