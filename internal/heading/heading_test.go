package heading

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromVector(t *testing.T) {
	tests := []struct {
		x, y       float64
		upsideDown bool
		want       float64
	}{
		{x: 20, y: 0, want: 0},
		{x: 0, y: -20, want: 90},
		{x: -20, y: 0, want: 180},
		{x: 0, y: 20, want: 270},
		{x: 0, y: 20, upsideDown: true, want: 90},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, FromVector(tt.x, tt.y, tt.upsideDown), 1e-9)
	}
}

func TestDistance(t *testing.T) {
	assert.InDelta(t, 20, Distance(350, 10), 1e-9)
	assert.InDelta(t, -20, Distance(10, 350), 1e-9)
	assert.InDelta(t, 180, Distance(0, 180), 1e-9)
	assert.InDelta(t, 0, Distance(725, 5), 1e-9)
}

func TestCardinal(t *testing.T) {
	tests := map[float64]string{
		0:      "N",
		11.24:  "N",
		11.25:  "NNE",
		45:     "NE",
		180:    "S",
		225:    "SW",
		348.75: "N",
		-90:    "W",
	}
	for deg, want := range tests {
		assert.Equal(t, want, Cardinal(deg), "%f", deg)
	}
}

func TestCircularMean(t *testing.T) {
	assert.InDelta(t, 0, Distance(0, CircularMean([]float64{350, 10})), 1e-9)
	assert.InDelta(t, 90, CircularMean([]float64{80, 100}), 1e-9)
}

func TestTracker_ConfirmsStableHeading(t *testing.T) {
	tr := NewTracker(8, 5, 5, false)
	h := 225 * math.Pi / 180

	for i := 0; i < 8+3; i++ {
		// rotating magnet on top of the earth field cancels over 8 samples
		phase := 2 * math.Pi * float64(i) / 8
		tr.Update(20*math.Cos(h)+60*math.Sin(phase), -20*math.Sin(h)+60*math.Cos(phase))
	}
	_, ok := tr.Direction()
	assert.False(t, ok, "not enough headings yet")

	phase := 2 * math.Pi * float64(11) / 8
	tr.Update(20*math.Cos(h)+60*math.Sin(phase), -20*math.Sin(h)+60*math.Cos(phase))

	deg, ok := tr.Direction()
	assert.True(t, ok)
	assert.InDelta(t, 225, deg, 1e-6)
}

func TestTracker_RejectsUnstableHeading(t *testing.T) {
	tr := NewTracker(1, 3, 5, false)
	tr.Update(20, 0)
	tr.Update(0, -20)
	tr.Update(-20, 0)

	_, ok := tr.Direction()
	assert.False(t, ok)

	tr.Reset()
	for i := 0; i < 3; i++ {
		tr.Update(0, -20)
	}
	deg, ok := tr.Direction()
	assert.True(t, ok)
	assert.InDelta(t, 90, deg, 1e-9)
}
