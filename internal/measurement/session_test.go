package measurement

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roman-kulish/anemometer/internal/validity"
)

func TestStatistics(t *testing.T) {
	var st statistics
	assert.Nil(t, st.average())
	assert.Nil(t, st.maximum())

	st.add(9, false)
	assert.Nil(t, st.average(), "invalid points do not count")

	st.add(2, true)
	st.add(4, true)
	st.add(100, false)

	require.NotNil(t, st.average())
	assert.Equal(t, 3.0, *st.average())
	assert.Equal(t, 4.0, *st.maximum())
	assert.Equal(t, 4, st.points)
	assert.Equal(t, 2, st.valid)
}

func TestSeries_CloneIsIndependent(t *testing.T) {
	var s Series
	d := 45.0
	valid := validity.Verdict{Acceleration: true, AngularVelocity: true, Orientation: true, Spectral: true, Dynamics: true}

	s.append(Reading{Timestamp: time.Unix(1, 0), Speed: 3, Verdict: valid, Direction: &d})
	s.append(Reading{Timestamp: time.Unix(2, 0), Speed: 4})

	c := s.clone()
	c.WindSpeed[0] = 99
	*c.WindDirection[0] = 0

	assert.Equal(t, 3.0, s.WindSpeed[0])
	assert.Equal(t, 45.0, *s.WindDirection[0])
	assert.Equal(t, []bool{true, false}, s.WindSpeedValidity)
	assert.Nil(t, s.WindDirection[1])
	assert.Equal(t, 2, c.Len())
}

func TestDelegates_FanOut(t *testing.T) {
	a, b := &recorder{}, &recorder{}
	ds := Delegates{a, b, nopDelegate{}}

	avg := 2.0
	ds.AddSpeedMeasurement(3, &avg, nil)
	ds.TemperatureUpdated(20)
	ds.ChangedValidity(true, false)
	ds.MeasuringStoppedByModel()

	for _, r := range []*recorder{a, b} {
		require.Len(t, r.speeds, 1)
		assert.Equal(t, 3.0, r.speeds[0].current)
		assert.Equal(t, []float64{20}, r.temperatures)
		assert.Equal(t, [][2]bool{{true, false}}, r.validity)
		assert.Equal(t, 1, r.stopped)
	}
}

func TestConfig_Validate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())

	c := DefaultConfig()
	c.SaveEveryNthPoint = 0
	c.DirectionTolerance = 270
	c.Thresholds.PeakMagnitudeMin = -1
	err := c.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "saveEveryNthPoint")
	assert.Contains(t, err.Error(), "direction tolerance")
	assert.Contains(t, err.Error(), "thresholds")
}
