package dsp

import "time"

// Ring keeps the latest samples of the rotor signal with their capture time.
type Ring struct {
	values []float64
	times  []time.Time
	pos    int
	full   bool
}

func NewRing(size int) *Ring {
	return &Ring{
		values: make([]float64, size),
		times:  make([]time.Time, size),
	}
}

func (r *Ring) Push(t time.Time, v float64) {
	r.values[r.pos] = v
	r.times[r.pos] = t
	r.pos++
	if r.pos == len(r.values) {
		r.pos = 0
		r.full = true
	}
}

func (r *Ring) Len() int {
	if r.full {
		return len(r.values)
	}
	return r.pos
}

func (r *Ring) Cap() int {
	return len(r.values)
}

func (r *Ring) Full() bool {
	return r.full
}

func (r *Ring) Clear() {
	r.pos = 0
	r.full = false
}

// Window returns a copy of the buffered samples, oldest first.
func (r *Ring) Window() Window {
	n := r.Len()
	w := Window{Values: make([]float64, n)}
	if n == 0 {
		return w
	}

	start := 0
	if r.full {
		start = r.pos
	}
	for i := 0; i < n; i++ {
		w.Values[i] = r.values[(start+i)%len(r.values)]
	}
	w.Start = r.times[start%len(r.times)]
	w.End = r.times[(start+n-1)%len(r.times)]
	return w
}
