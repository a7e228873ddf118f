package app

import (
	"image/color"
	"math"

	"github.com/roman-kulish/anemometer/internal/units"
)

const (
	BeaufortTheme  ColorTheme = "beaufort"  // Blue to red by Beaufort force
	ClassicTheme   ColorTheme = "classic"   // Blue to red transition
	GrayscaleTheme ColorTheme = "grayscale" // Dark gray to black transition
	ThermalTheme   ColorTheme = "thermal"   // Red to yellow transition
	MarineTheme    ColorTheme = "marine"    // Light blue to deep blue

	DefaultColorMapSize = 256

	maxBeaufortForce = 12
)

// ColorTheme names a speed color scheme.
type ColorTheme string

var (
	InvalidPointColor color.Color = color.RGBA{R: 0xb0, G: 0xb0, B: 0xb0, A: 0xff}

	colorThemes = map[ColorTheme]func(float64) color.Color{
		BeaufortTheme: func(speed float64) color.Color {
			// speed is normalised against force 12 here
			return HSV{H: 240 - (speed * 240), S: 0.9, V: 0.85}.RGB()
		},
		ClassicTheme: func(speed float64) color.Color {
			return HSV{H: 240 - (speed * 240), S: 0.9 + (speed * 0.1), V: 0.4 + math.Pow(speed, 0.7)*0.6}.RGB()
		},
		GrayscaleTheme: func(speed float64) color.Color {
			v := uint8(160 - math.Pow(speed, 0.7)*160)
			return color.RGBA{R: v, G: v, B: v, A: 0xff}
		},
		ThermalTheme: func(speed float64) color.Color {
			if speed < 0.5 {
				return color.RGBA{R: 0xc0 + uint8(speed*2*0x3f), A: 0xff}
			}
			return color.RGBA{R: 0xff, G: uint8((speed - 0.5) * 2 * 0xd0), A: 0xff}
		},
		MarineTheme: func(speed float64) color.Color {
			return HSV{H: 180 + (speed * 60), S: 0.5 + (speed * 0.5), V: 0.9 - (math.Pow(speed, 0.6) * 0.5)}.RGB()
		},
	}
)

// ColorMapper maps speeds to colors from a pre-computed table.
type ColorMapper struct {
	colorMap      []color.Color
	theme         func(float64) color.Color
	themeName     ColorTheme
	size          int
	speedPerIndex float64
	speedMax      float64
}

// NewColorMapper creates a mapper over [0, speedMax] m/s. The Beaufort
// theme ignores speedMax and spans forces 0 to 12.
func NewColorMapper(theme ColorTheme, speedMax float64) *ColorMapper {
	return NewColorMapperWithSize(theme, speedMax, DefaultColorMapSize)
}

func NewColorMapperWithSize(theme ColorTheme, speedMax float64, size int) *ColorMapper {
	if size <= 1 {
		size = DefaultColorMapSize
	}

	fn, ok := colorThemes[theme]
	if !ok {
		theme, fn = BeaufortTheme, colorThemes[BeaufortTheme]
	}

	cm := &ColorMapper{
		colorMap:  make([]color.Color, size),
		theme:     fn,
		themeName: theme,
		size:      size,
	}
	cm.UpdateBounds(speedMax)
	return cm
}

func (cm *ColorMapper) UpdateBounds(speedMax float64) {
	if speedMax <= 0 {
		speedMax = 1
	}
	cm.speedMax = speedMax
	cm.speedPerIndex = speedMax / float64(cm.size-1)

	for i := 0; i < cm.size; i++ {
		cm.colorMap[i] = cm.theme(float64(i) / float64(cm.size-1))
	}
}

// GetColor returns the color of a point.
func (cm *ColorMapper) GetColor(speed float64, valid bool) color.Color {
	if !valid {
		return InvalidPointColor
	}

	var index int
	if cm.themeName == BeaufortTheme {
		index = beaufortIndex(speed, cm.size)
	} else {
		index = int(speed / cm.speedPerIndex)
	}

	if index < 0 {
		return cm.colorMap[0]
	}
	if index >= cm.size {
		return cm.colorMap[cm.size-1]
	}
	return cm.colorMap[index]
}

func (cm *ColorMapper) ThemeName() ColorTheme {
	return cm.themeName
}

// HSV represents a color in HSV (Hue, Saturation, Value) color space
type HSV struct {
	H float64 // Hue angle in degrees [0-360]
	S float64 // Saturation [0-1]
	V float64 // Value/Brightness [0-1]
}

// RGB converts HSV to RGB color space
func (hsv HSV) RGB() color.Color {
	if hsv.S <= 0.0 {
		v := uint8(hsv.V * 255)
		return color.RGBA{R: v, G: v, B: v, A: 255}
	}

	h := math.Mod(hsv.H, 360)
	if h < 0 {
		h += 360
	}
	h /= 60

	i := int(h)
	f := h - float64(i)

	v := uint8(hsv.V * 255)
	p := uint8((hsv.V * (1 - hsv.S)) * 255)
	q := uint8((hsv.V * (1 - (hsv.S * f))) * 255)
	t := uint8((hsv.V * (1 - (hsv.S * (1 - f)))) * 255)

	switch i {
	case 0:
		return color.RGBA{R: v, G: t, B: p, A: 255}
	case 1:
		return color.RGBA{R: q, G: v, B: p, A: 255}
	case 2:
		return color.RGBA{R: p, G: v, B: t, A: 255}
	case 3:
		return color.RGBA{R: p, G: q, B: v, A: 255}
	case 4:
		return color.RGBA{R: t, G: p, B: v, A: 255}
	default:
		return color.RGBA{R: v, G: p, B: q, A: 255}
	}
}

func beaufortIndex(speed float64, size int) int {
	return units.BeaufortForce(speed) * (size - 1) / maxBeaufortForce
}
