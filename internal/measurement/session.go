package measurement

import (
	"time"

	"github.com/google/uuid"

	"github.com/roman-kulish/anemometer/internal/calibration"
	"github.com/roman-kulish/anemometer/internal/dsp"
	"github.com/roman-kulish/anemometer/internal/telemetry"
	"github.com/roman-kulish/anemometer/internal/validity"
)

// Reading is one processed point of the pipeline.
type Reading struct {
	Timestamp     time.Time
	Frequency     float64 // Hz
	PeakMagnitude float64
	Speed         float64 // m/s
	Verdict       validity.Verdict
	Direction     *float64 // degrees, nil while unconfirmed
}

// Series holds the retained points as parallel sequences of equal length.
type Series struct {
	WindSpeed         []float64
	WindSpeedValidity []bool
	WindSpeedTime     []time.Time
	WindDirection     []*float64
}

func (s *Series) Len() int {
	return len(s.WindSpeed)
}

func (s *Series) append(r Reading) {
	s.WindSpeed = append(s.WindSpeed, r.Speed)
	s.WindSpeedValidity = append(s.WindSpeedValidity, r.Verdict.Valid())
	s.WindSpeedTime = append(s.WindSpeedTime, r.Timestamp)

	var d *float64
	if r.Direction != nil {
		v := *r.Direction
		d = &v
	}
	s.WindDirection = append(s.WindDirection, d)
}

func (s *Series) clone() Series {
	c := Series{
		WindSpeed:         append([]float64(nil), s.WindSpeed...),
		WindSpeedValidity: append([]bool(nil), s.WindSpeedValidity...),
		WindSpeedTime:     append([]time.Time(nil), s.WindSpeedTime...),
		WindDirection:     make([]*float64, len(s.WindDirection)),
	}
	for i, d := range s.WindDirection {
		if d != nil {
			v := *d
			c.WindDirection[i] = &v
		}
	}
	return c
}

// statistics accumulates every processed point, retained or not.
type statistics struct {
	points int
	valid  int
	sum    float64
	max    float64
}

func (st *statistics) add(speed float64, valid bool) {
	st.points++
	if !valid {
		return
	}
	if st.valid == 0 || speed > st.max {
		st.max = speed
	}
	st.valid++
	st.sum += speed
}

func (st *statistics) average() *float64 {
	if st.valid == 0 {
		return nil
	}
	avg := st.sum / float64(st.valid)
	return &avg
}

func (st *statistics) maximum() *float64 {
	if st.valid == 0 {
		return nil
	}
	m := st.max
	return &m
}

// Snapshot is the read-only result of a stopped session.
type Snapshot struct {
	SessionID   uuid.UUID
	StartTime   time.Time
	EndTime     time.Time
	Duration    time.Duration
	Algorithm   calibration.Algorithm
	Band        dsp.Band
	Average     *float64
	Max         *float64
	Direction   *float64 // last confirmed heading
	Points      int      // processed, retained or not
	ValidPoints int
	Progress    float64
	Series      Series
	Telemetry   *telemetry.Telemetry
}
