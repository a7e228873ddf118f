// Package heading derives wind direction from the magnetometer.
package heading

import "math"

var cardinals = [16]string{
	"N", "NNE", "NE", "ENE", "E", "ESE", "SE", "SSE",
	"S", "SSW", "SW", "WSW", "W", "WNW", "NW", "NNW",
}

// Normalize maps any angle in degrees to [0, 360).
func Normalize(deg float64) float64 {
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	if deg >= 360 {
		deg = 0
	}
	return deg
}

// FromVector returns the heading of a level device in degrees clockwise from
// magnetic north. Flipping the device mirrors the y axis.
func FromVector(x, y float64, upsideDown bool) float64 {
	if upsideDown {
		y = -y
	}
	return Normalize(math.Atan2(-y, x) * 180 / math.Pi)
}

// Distance returns the signed shortest arc from one heading to another, in
// (-180, 180].
func Distance(from, to float64) float64 {
	d := Normalize(to - from)
	if d > 180 {
		d -= 360
	}
	return d
}

// Cardinal names the 16-point compass sector of a heading.
func Cardinal(deg float64) string {
	return cardinals[int(math.Floor(Normalize(deg)/22.5+0.5))%16]
}

// CircularMean averages headings on the circle.
func CircularMean(degs []float64) float64 {
	var s, c float64
	for _, d := range degs {
		r := d * math.Pi / 180
		s += math.Sin(r)
		c += math.Cos(r)
	}
	return Normalize(math.Atan2(s, c) * 180 / math.Pi)
}
