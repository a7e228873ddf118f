package app

import (
	"image"
	"image/color"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roman-kulish/anemometer/internal/history"
	"github.com/roman-kulish/anemometer/internal/units"
)

func ptr[T any](v T) *T {
	return &v
}

func testSeries(average *float64, speeds ...float64) *SeriesData {
	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s := NewSeriesData(&history.Session{
		ID:        "8f0c1c1e-0000-4000-8000-000000000000",
		StartTime: start,
		Algorithm: "standard",
		Band:      "fq40",
		Average:   average,
		Max:       ptr(9.0),
	})
	for i, v := range speeds {
		s.Update(&history.Point{
			Timestamp: start.Add(time.Duration(i) * 10 * time.Second),
			Speed:     v,
			Valid:     i%2 == 0,
		})
	}
	return s
}

func rgba(c color.Color) color.RGBA {
	return color.RGBAModel.Convert(c).(color.RGBA)
}

func TestSeriesData_Update(t *testing.T) {
	s := testSeries(nil, 3, 9, 1, 4)

	assert.Equal(t, 4, s.Len())
	assert.Equal(t, 2, s.ValidCount)
	assert.Equal(t, 9.0, s.SpeedMax)
	assert.Equal(t, 30*time.Second, s.Duration())
}

func TestNewChartRenderer_TooSmall(t *testing.T) {
	_, err := NewChartRenderer(RenderConfig{Width: 100, Height: 400})
	assert.Error(t, err)
}

func TestChartRenderer_Render(t *testing.T) {
	r, err := NewChartRenderer(RenderConfig{Width: 600, Height: 300, Location: time.UTC})
	require.NoError(t, err)

	img, err := r.Render(testSeries(ptr(4.25), 3, 9, 1, 4, 6))
	require.NoError(t, err)

	want := image.Rect(0, 0, 600+defaultLeftBorder+defaultRightBorder, 300+defaultTopBorder+defaultBottomBorder)
	assert.Equal(t, want, img.Bounds())
}

func TestChartRenderer_RenderEmpty(t *testing.T) {
	r, err := NewChartRenderer(RenderConfig{Width: 600, Height: 300})
	require.NoError(t, err)

	_, err = r.Render(testSeries(nil))
	assert.ErrorIs(t, err, ErrNoPoints)
}

func TestChartRenderer_PointColors(t *testing.T) {
	cfg := RenderConfig{Width: 400, Height: 400, Unit: units.KilometresPerHour, NoAnnotations: true}
	r, err := NewChartRenderer(cfg)
	require.NoError(t, err)

	series := testSeries(nil, 2, 7, 5)
	img, err := r.Render(series)
	require.NoError(t, err)

	area := image.Rect(defaultLeftBorder, defaultTopBorder, defaultLeftBorder+400, defaultTopBorder+400)
	p := newPlot(area, series, units.KilometresPerHour)
	colors := NewColorMapper(BeaufortTheme, series.SpeedMax)

	for _, pt := range series.Points {
		got := rgba(img.At(p.x(pt.Timestamp), p.y(pt.Speed)))
		assert.Equal(t, rgba(colors.GetColor(pt.Speed, pt.Valid)), got, "%+v", pt)
	}

	// first point sits on the left edge of the plot area
	assert.Equal(t, area.Min.X, p.x(series.TimestampStart))
	assert.Equal(t, area.Max.X-1, p.x(series.TimestampEnd))
}

func TestChartRenderer_AverageLine(t *testing.T) {
	r, err := NewChartRenderer(RenderConfig{Width: 400, Height: 400, NoAnnotations: true})
	require.NoError(t, err)

	series := testSeries(ptr(3.0), 1, 1)
	img, err := r.Render(series)
	require.NoError(t, err)

	area := image.Rect(defaultLeftBorder, defaultTopBorder, defaultLeftBorder+400, defaultTopBorder+400)
	p := newPlot(area, series, units.MetresPerSecond)
	y := p.y(3.0)

	// dashed: the first dash is drawn, the gap after it is not
	assert.Equal(t, rgba(averageColor), rgba(img.At(area.Min.X+dashLength/2, y)))
	assert.NotEqual(t, rgba(averageColor), rgba(img.At(area.Min.X+dashLength+1, y)))
}

func TestPlot_Scale(t *testing.T) {
	area := image.Rect(0, 0, 400, 360)

	p := newPlot(area, testSeries(nil, 0.5, 4.2), units.MetresPerSecond)
	assert.Equal(t, 2.0, p.speedStep)
	assert.Equal(t, 6.0, p.speedScale)
	assert.Equal(t, area.Max.Y-1, p.y(0))
	assert.Equal(t, area.Min.Y, p.y(6))
	assert.Equal(t, area.Min.Y, p.y(60))

	p = newPlot(area, testSeries(nil, 0), units.MetresPerSecond)
	assert.Greater(t, p.speedScale, 0.0)
	assert.Equal(t, area.Min.X+area.Dx()/2, p.x(time.Now()))

	// force 5
	p = newPlot(area, testSeries(nil, 9), units.Beaufort)
	assert.Equal(t, 2.0, p.speedStep)
	assert.Equal(t, 6.0, p.speedScale)
}

func TestDrawLine(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 20, 20))
	drawLine(img, 2, 3, 12, 8, color.Black, false)

	assert.Equal(t, rgba(color.Black), rgba(img.At(2, 3)))
	assert.Equal(t, rgba(color.Black), rgba(img.At(12, 8)))
	assert.NotEqual(t, rgba(color.Black), rgba(img.At(2, 8)))

	var set int
	for y := 0; y < 20; y++ {
		for x := 0; x < 20; x++ {
			if rgba(img.At(x, y)) == rgba(color.Black) {
				set++
			}
		}
	}
	assert.Equal(t, 11, set)
}

func TestCalculateNiceTimeStep(t *testing.T) {
	assert.Equal(t, time.Second, calculateNiceTimeStep(3*time.Second, 1200))
	assert.Equal(t, 30*time.Second, calculateNiceTimeStep(5*time.Minute, 1200))
	assert.Equal(t, 10*time.Minute, calculateNiceTimeStep(90*time.Minute, 1200))
	assert.Equal(t, 2*time.Hour, calculateNiceTimeStep(48*time.Hour, 1200))
}
