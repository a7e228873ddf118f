// Package dsp estimates the rotor frequency from a window of magnetometer
// samples.
package dsp

import (
	"fmt"
	"math"
	"math/cmplx"
	"time"

	"gonum.org/v1/gonum/dsp/fourier"
)

// tieTolerance is the relative difference under which two bin magnitudes are
// considered equal, the lower bin wins.
const tieTolerance = 1e-9

// Window is an ordered slice of rotor signal samples.
type Window struct {
	Values     []float64
	Start, End time.Time
}

// SampleRate derives the rate from the window timestamps, 0 when unknown.
func (w Window) SampleRate() float64 {
	if len(w.Values) < 2 || !w.End.After(w.Start) {
		return 0
	}
	return float64(len(w.Values)-1) / w.End.Sub(w.Start).Seconds()
}

type FrequencyEstimate struct {
	DominantFrequency float64 // Hz
	PeakMagnitude     float64
	Bin               int
	WindowStart       time.Time
	WindowEnd         time.Time
}

// Detector is not safe for concurrent use.
type Detector struct {
	band        Band
	nominalRate float64
	window      []float64
	gain        float64
	fft         *fourier.FFT
	seq         []float64
	coeff       []complex128
	magnitudes  []float64
}

func NewDetector(band Band, fn WindowFunction, nominalRate float64) (*Detector, error) {
	if nominalRate <= 0 {
		return nil, fmt.Errorf("nominal sample rate must be positive, got %f", nominalRate)
	}

	n := band.FFTLength()
	d := Detector{
		band:        band,
		nominalRate: nominalRate,
		window:      fn.Coefficients(n),
		fft:         fourier.NewFFT(n),
		seq:         make([]float64, n),
		coeff:       make([]complex128, n/2+1),
		magnitudes:  make([]float64, n/2+1),
	}
	for _, c := range d.window {
		d.gain += c
	}
	return &d, nil
}

func (d *Detector) Band() Band {
	return d.band
}

// Detect never fails: a silent window reports bin 0 with zero magnitude.
func (d *Detector) Detect(w Window) FrequencyEstimate {
	n := len(d.seq)

	values := w.Values
	if len(values) > n {
		values = values[len(values)-n:]
	}

	var mean float64
	for _, v := range values {
		mean += v
	}
	if len(values) > 0 {
		mean /= float64(len(values))
	}

	clear(d.seq)
	for i, v := range values {
		d.seq[i] = (v - mean) * d.window[i]
	}

	d.coeff = d.fft.Coefficients(d.coeff, d.seq)
	for k, c := range d.coeff {
		m := cmplx.Abs(c) / d.gain
		if k != 0 && k != n/2 {
			m *= 2
		}
		d.magnitudes[k] = m
	}

	bin := PeakBin(d.magnitudes, d.band.DataLength())

	rate := w.SampleRate()
	if rate == 0 {
		rate = d.nominalRate
	}

	return FrequencyEstimate{
		DominantFrequency: float64(bin) * rate / float64(n),
		PeakMagnitude:     d.magnitudes[bin],
		Bin:               bin,
		WindowStart:       w.Start,
		WindowEnd:         w.End,
	}
}

// PeakBin returns the index of the largest magnitude among the first limit
// bins. Equal magnitudes resolve to the lowest index.
func PeakBin(magnitudes []float64, limit int) int {
	if limit > len(magnitudes) {
		limit = len(magnitudes)
	}

	best := 0
	for k := 1; k < limit; k++ {
		if magnitudes[k]-magnitudes[best] > tieTolerance*math.Max(1, math.Abs(magnitudes[best])) {
			best = k
		}
	}
	return best
}
