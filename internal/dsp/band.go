package dsp

import (
	"fmt"
	"math"
	"strings"
)

// Band is the sensor sampling band, it fixes the FFT length and the number
// of bins searched for the rotor peak.
type Band int

const (
	BandFQ40 Band = iota
	BandFQ60
)

func ParseBand(s string) (Band, error) {
	switch strings.ToLower(s) {
	case "", "fq40":
		return BandFQ40, nil
	case "fq60":
		return BandFQ60, nil
	default:
		return 0, fmt.Errorf("unknown band '%s'", s)
	}
}

func (b Band) String() string {
	switch b {
	case BandFQ60:
		return "fq60"
	default:
		return "fq40"
	}
}

func (b Band) FFTLength() int {
	if b == BandFQ60 {
		return 128
	}
	return 64
}

func (b Band) DataLength() int {
	if b == BandFQ60 {
		return 80
	}
	return 50
}

// WindowFunction applied to the rotor signal before the transform
type WindowFunction string

const (
	WindowRectangle WindowFunction = "rectangle"
	WindowHann      WindowFunction = "hann"
	WindowHamming   WindowFunction = "hamming"
	WindowBlackman  WindowFunction = "blackman"
)

func ParseWindowFunction(s string) (WindowFunction, error) {
	switch w := WindowFunction(strings.ToLower(s)); w {
	case "":
		return WindowHann, nil
	case WindowRectangle, WindowHann, WindowHamming, WindowBlackman:
		return w, nil
	default:
		return "", fmt.Errorf("unknown window function '%s'", s)
	}
}

// Coefficients returns the periodic form of the window of length n.
func (w WindowFunction) Coefficients(n int) []float64 {
	c := make([]float64, n)
	for i := range c {
		x := 2 * math.Pi * float64(i) / float64(n)
		switch w {
		case WindowHann:
			c[i] = 0.5 - 0.5*math.Cos(x)
		case WindowHamming:
			c[i] = 0.54 - 0.46*math.Cos(x)
		case WindowBlackman:
			c[i] = 0.42 - 0.5*math.Cos(x) + 0.08*math.Cos(2*x)
		default:
			c[i] = 1
		}
	}
	return c
}
