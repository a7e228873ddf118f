package app

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
	"time"

	"github.com/roman-kulish/anemometer/internal/units"
)

const (
	dpi            = 120.0
	fontSize       = 9.0
	tickMarkSize   = 5
	pixelsPerLabel = 120.0
	pointRadius    = 2
	dashLength     = 6
	minPlotSize    = 200

	// Default border sizes in pixels
	defaultTopBorder    = 40
	defaultLeftBorder   = 90
	defaultBottomBorder = 80
	defaultRightBorder  = 40

	defaultTimeFormat     = "15:04:05"
	defaultDatetimeFormat = time.DateTime
)

var (
	axisColor    color.Color = color.Black
	gridColor    color.Color = color.RGBA{R: 0xe4, G: 0xe4, B: 0xe4, A: 0xff}
	traceColor   color.Color = color.RGBA{R: 0xc8, G: 0xc8, B: 0xd8, A: 0xff}
	averageColor color.Color = color.RGBA{R: 0x20, G: 0x80, B: 0x20, A: 0xff}
)

// BorderConfig defines the sizes of white space around the plot area
type BorderConfig struct {
	Top    int // Space for the title
	Left   int // Space for the speed scale
	Bottom int // Space for the time scale and information bar
	Right  int // Right padding
}

// RenderConfig holds all configuration options for chart rendering
type RenderConfig struct {
	TimeFormat     string
	DatetimeFormat string
	Location       *time.Location

	Width, Height int             // Plot area in pixels
	Unit          units.SpeedUnit // Unit of the speed scale
	FontSize      float64
	ColorTheme    ColorTheme
	NoAnnotations bool

	BorderConfig BorderConfig
}

// ChartRenderer draws the wind speed of a session over time.
type ChartRenderer struct {
	config RenderConfig
}

func NewChartRenderer(config RenderConfig) (*ChartRenderer, error) {
	if config.Width < minPlotSize || config.Height < minPlotSize {
		return nil, fmt.Errorf("plot area %dx%d is below %dx%d pixels", config.Width, config.Height, minPlotSize, minPlotSize)
	}

	if config.TimeFormat == "" {
		config.TimeFormat = defaultTimeFormat
	}
	if config.DatetimeFormat == "" {
		config.DatetimeFormat = defaultDatetimeFormat
	}
	if config.Location == nil {
		config.Location = time.Local
	}
	if config.Unit == "" {
		config.Unit = units.MetresPerSecond
	}
	if config.FontSize == 0 {
		config.FontSize = fontSize
	}
	if config.ColorTheme == "" {
		config.ColorTheme = BeaufortTheme
	}
	if config.BorderConfig.Top == 0 {
		config.BorderConfig.Top = defaultTopBorder
	}
	if config.BorderConfig.Left == 0 {
		config.BorderConfig.Left = defaultLeftBorder
	}
	if config.BorderConfig.Bottom == 0 {
		config.BorderConfig.Bottom = defaultBottomBorder
	}
	if config.BorderConfig.Right == 0 {
		config.BorderConfig.Right = defaultRightBorder
	}

	return &ChartRenderer{config: config}, nil
}

// plot maps session values to pixels of the plot area.
type plot struct {
	area       image.Rectangle
	start      time.Time
	duration   time.Duration
	unit       units.SpeedUnit
	speedStep  float64 // in unit
	speedScale float64 // top of the speed scale in unit
}

func newPlot(area image.Rectangle, series *SeriesData, unit units.SpeedUnit) *plot {
	top := unit.FromMetresPerSecond(series.SpeedMax)
	if avg := series.Session.Average; avg != nil {
		top = max(top, unit.FromMetresPerSecond(*avg))
	}

	step := calculateNiceSpeedStep(top, area.Dy(), unit)
	scale := math.Ceil(top/step) * step
	if scale <= top {
		scale += step
	}

	return &plot{
		area:       area,
		start:      series.TimestampStart,
		duration:   series.Duration(),
		unit:       unit,
		speedStep:  step,
		speedScale: scale,
	}
}

// ticks is the number of speed steps up to the top of the scale.
func (p *plot) ticks() int {
	return int(math.Round(p.speedScale / p.speedStep))
}

func (p *plot) x(t time.Time) int {
	if p.duration <= 0 {
		return p.area.Min.X + p.area.Dx()/2
	}
	ratio := float64(t.Sub(p.start)) / float64(p.duration)
	return p.area.Min.X + int(math.Round(ratio*float64(p.area.Dx()-1)))
}

// y takes a speed in m/s.
func (p *plot) y(speed float64) int {
	return p.yUnit(p.unit.FromMetresPerSecond(speed))
}

func (p *plot) yUnit(v float64) int {
	ratio := min(max(v/p.speedScale, 0), 1)
	return p.area.Max.Y - 1 - int(math.Round(ratio*float64(p.area.Dy()-1)))
}

// Render creates an image of the series with annotations
func (r *ChartRenderer) Render(series *SeriesData) (*image.RGBA, error) {
	if series.Len() == 0 {
		return nil, ErrNoPoints
	}

	b := r.config.BorderConfig
	fullWidth := r.config.Width + b.Left + b.Right
	fullHeight := r.config.Height + b.Top + b.Bottom
	img := image.NewRGBA(image.Rect(0, 0, fullWidth, fullHeight))

	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)

	area := image.Rect(b.Left, b.Top, b.Left+r.config.Width, b.Top+r.config.Height)
	p := newPlot(area, series, r.config.Unit)

	r.renderGrid(img, p)
	r.renderSeries(img, p, series)
	r.renderAverage(img, p, series)
	r.renderAxes(img, p)

	if r.config.NoAnnotations {
		return img, nil
	}

	ann, err := newAnnotator(annotatorConfig{
		TimeFormat:     r.config.TimeFormat,
		DatetimeFormat: r.config.DatetimeFormat,
		Location:       r.config.Location,
		FontSize:       r.config.FontSize,
		Borders:        b,
	})
	if err != nil {
		return nil, fmt.Errorf("creating annotator: %w", err)
	}
	defer ann.Close()

	if err = ann.annotate(img, p, series); err != nil {
		return nil, fmt.Errorf("drawing annotations: %w", err)
	}
	return img, nil
}

func (r *ChartRenderer) renderGrid(img *image.RGBA, p *plot) {
	for i := 1; i < p.ticks(); i++ {
		y := p.yUnit(float64(i) * p.speedStep)
		for x := p.area.Min.X; x < p.area.Max.X; x++ {
			img.Set(x, y, gridColor)
		}
	}
}

func (r *ChartRenderer) renderAxes(img *image.RGBA, p *plot) {
	for x := p.area.Min.X - 1; x < p.area.Max.X; x++ {
		img.Set(x, p.area.Max.Y, axisColor)
	}
	for y := p.area.Min.Y; y <= p.area.Max.Y; y++ {
		img.Set(p.area.Min.X-1, y, axisColor)
	}
}

// renderSeries joins consecutive points with a trace and marks every point,
// colored by speed, or gray when it failed validation.
func (r *ChartRenderer) renderSeries(img *image.RGBA, p *plot, series *SeriesData) {
	colors := NewColorMapper(r.config.ColorTheme, series.SpeedMax)

	for i := 1; i < series.Len(); i++ {
		a, b := series.Points[i-1], series.Points[i]
		drawLine(img, p.x(a.Timestamp), p.y(a.Speed), p.x(b.Timestamp), p.y(b.Speed), traceColor, false)
	}

	// invalid points first, so valid ones stay on top
	for _, valid := range []bool{false, true} {
		for _, pt := range series.Points {
			if pt.Valid != valid {
				continue
			}
			drawPoint(img, p.x(pt.Timestamp), p.y(pt.Speed), colors.GetColor(pt.Speed, pt.Valid))
		}
	}
}

func (r *ChartRenderer) renderAverage(img *image.RGBA, p *plot, series *SeriesData) {
	avg := series.Session.Average
	if avg == nil {
		return
	}
	y := p.y(*avg)
	drawLine(img, p.area.Min.X, y, p.area.Max.X-1, y, averageColor, true)
}

func drawPoint(img *image.RGBA, cx, cy int, c color.Color) {
	for y := cy - pointRadius; y <= cy+pointRadius; y++ {
		for x := cx - pointRadius; x <= cx+pointRadius; x++ {
			img.Set(x, y, c)
		}
	}
}

// drawLine rasterizes a segment with Bresenham's algorithm.
func drawLine(img *image.RGBA, x0, y0, x1, y1 int, c color.Color, dashed bool) {
	dx, dy := abs(x1-x0), -abs(y1-y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}

	e := dx + dy
	for n := 0; ; n++ {
		if !dashed || (n/dashLength)%2 == 0 {
			img.Set(x0, y0, c)
		}
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * e
		if e2 >= dy {
			e += dy
			x0 += sx
		}
		if e2 <= dx {
			e += dx
			y0 += sy
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// Helper functions

func calculateNiceSpeedStep(top float64, height int, unit units.SpeedUnit) float64 {
	steps := []float64{0.1, 0.2, 0.5, 1, 2, 5, 10, 20, 50}
	if unit == units.Beaufort {
		steps = []float64{1, 2, 3, 4, 6}
	}

	desiredSteps := max(float64(height)/pixelsPerLabel, 1)
	targetStep := top / desiredSteps

	for _, step := range steps {
		if step >= targetStep {
			return step
		}
	}
	return steps[len(steps)-1]
}

func calculateNiceTimeStep(duration time.Duration, width int) time.Duration {
	desiredSteps := max(float64(width)/pixelsPerLabel, 1)
	roughStep := duration.Seconds() / desiredSteps

	// Nice time intervals in seconds
	niceIntervals := []float64{
		1, 2, 5, 10, 15, 30,
		60,   // 1 minute
		120,  // 2 minutes
		300,  // 5 minutes
		600,  // 10 minutes
		900,  // 15 minutes
		1800, // 30 minutes
		3600, // 1 hour
	}

	for _, interval := range niceIntervals {
		if roughStep <= interval {
			return time.Duration(interval) * time.Second
		}
	}
	return 2 * time.Hour
}
