package app

import (
	"fmt"
	"image"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/golang/freetype"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/roman-kulish/anemometer/internal/units"
)

type annotatorConfig struct {
	TimeFormat     string
	DatetimeFormat string
	Location       *time.Location
	FontSize       float64
	Borders        BorderConfig
}

type annotator struct {
	context  *freetype.Context
	config   annotatorConfig
	fontFace font.Face
}

func newAnnotator(config annotatorConfig) (*annotator, error) {
	parsedFont, err := freetype.ParseFont(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("parsing font: %w", err)
	}

	ctx := freetype.NewContext()
	ctx.SetDPI(dpi)
	ctx.SetFont(parsedFont)
	ctx.SetFontSize(config.FontSize)
	ctx.SetHinting(font.HintingNone)
	ctx.SetSrc(image.Black)

	return &annotator{
		context: ctx,
		config:  config,
		fontFace: truetype.NewFace(parsedFont, &truetype.Options{
			Size:    config.FontSize,
			DPI:     dpi,
			Hinting: font.HintingNone,
		}),
	}, nil
}

func (a *annotator) Close() error {
	if a.fontFace != nil {
		return a.fontFace.Close()
	}
	return nil
}

func (a *annotator) annotate(img *image.RGBA, p *plot, series *SeriesData) error {
	a.context.SetClip(img.Bounds())
	a.context.SetDst(img)

	ops := []struct {
		msg string
		fn  func(*image.RGBA, *plot, *SeriesData) error
	}{
		{"drawing title", a.drawTitle},
		{"drawing speed scale", a.drawSpeedScale},
		{"drawing time scale", a.drawTimeScale},
		{"drawing info bar", a.drawInfoBar},
	}
	for _, op := range ops {
		if err := op.fn(img, p, series); err != nil {
			return fmt.Errorf("%s: %w", op.msg, err)
		}
	}
	return nil
}

func (a *annotator) fontHeight() int {
	metrics := a.fontFace.Metrics()
	return (metrics.Ascent + metrics.Descent).Round()
}

func (a *annotator) drawTitle(_ *image.RGBA, _ *plot, series *SeriesData) error {
	s := series.Session
	title := fmt.Sprintf("Session %s, %s calibration, %s band", s.ID, s.Algorithm, s.Band)

	textY := a.config.Borders.Top - (a.config.Borders.Top-a.fontHeight())/2 - a.fontFace.Metrics().Descent.Round()
	_, err := a.context.DrawString(title, freetype.Pt(a.config.Borders.Left, textY))
	return err
}

func (a *annotator) drawSpeedScale(img *image.RGBA, p *plot, _ *SeriesData) error {
	metrics := a.fontFace.Metrics()
	fontHeight := a.fontHeight()

	for i := 0; i <= p.ticks(); i++ {
		v := float64(i) * p.speedStep
		y := p.yUnit(v)

		for x := p.area.Min.X - 1 - tickMarkSize; x < p.area.Min.X-1; x++ {
			img.Set(x, y, axisColor)
		}

		label := formatSpeed(v, p.unit)
		width := font.MeasureString(a.fontFace, label).Round()
		textY := y + fontHeight/2 - metrics.Descent.Round()
		pt := freetype.Pt(p.area.Min.X-tickMarkSize-4-width, textY)
		if _, err := a.context.DrawString(label, pt); err != nil {
			return fmt.Errorf("drawing speed label: %w", err)
		}
	}
	return nil
}

func (a *annotator) drawTimeScale(img *image.RGBA, p *plot, series *SeriesData) error {
	step := calculateNiceTimeStep(p.duration, p.area.Dx())
	textY := p.area.Max.Y + tickMarkSize + a.fontHeight() + 2

	ts := series.TimestampStart.Truncate(step)
	if ts.Before(series.TimestampStart) {
		ts = ts.Add(step)
	}
	for ; !ts.After(series.TimestampEnd); ts = ts.Add(step) {
		x := p.x(ts)

		for y := p.area.Max.Y + 1; y <= p.area.Max.Y+tickMarkSize; y++ {
			img.Set(x, y, axisColor)
		}

		label := ts.In(a.config.Location).Format(a.config.TimeFormat)
		width := font.MeasureString(a.fontFace, label).Round()
		if _, err := a.context.DrawString(label, freetype.Pt(x-width/2, textY)); err != nil {
			return fmt.Errorf("drawing time label: %w", err)
		}

		if p.duration <= 0 {
			break
		}
	}
	return nil
}

func (a *annotator) drawInfoBar(img *image.RGBA, p *plot, series *SeriesData) error {
	s := series.Session

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Time: %s - %s",
		series.TimestampStart.In(a.config.Location).Format(a.config.DatetimeFormat),
		series.TimestampEnd.In(a.config.Location).Format(a.config.DatetimeFormat)))
	sb.WriteString("; ")
	sb.WriteString(fmt.Sprintf("%s points, %s valid",
		humanize.Comma(int64(series.Len())), humanize.Comma(int64(series.ValidCount))))
	if s.Average != nil {
		sb.WriteString("; avg " + p.unit.Format(*s.Average))
	}
	if s.Max != nil {
		sb.WriteString("; max " + p.unit.Format(*s.Max))
	}

	metrics := a.fontFace.Metrics()
	textY := img.Bounds().Max.Y - (a.config.Borders.Bottom-2*a.fontHeight())/4 - metrics.Descent.Round()
	if _, err := a.context.DrawString(sb.String(), freetype.Pt(a.config.Borders.Left, textY)); err != nil {
		return fmt.Errorf("drawing info text: %w", err)
	}
	return nil
}

func formatSpeed(v float64, unit units.SpeedUnit) string {
	if unit == units.Beaufort {
		return fmt.Sprintf("%d %s", int(v), unit)
	}
	return humanize.FtoaWithDigits(v, 1) + " " + string(unit)
}
