package heading

// Tracker smooths magnetometer vectors over a short window, then confirms
// the heading once Run consecutive headings stay within Tolerance degrees of
// their mean. The spinning magnet averages out over the smoothing window.
type Tracker struct {
	run        int
	tolerance  float64
	upsideDown bool

	xs, ys   []float64
	sumX     float64
	sumY     float64
	pos      int
	filled   int
	headings []float64

	direction float64
	confirmed bool
}

func NewTracker(smoothing, run int, tolerance float64, upsideDown bool) *Tracker {
	smoothing = max(smoothing, 1)
	return &Tracker{
		run:        max(run, 1),
		tolerance:  tolerance,
		upsideDown: upsideDown,
		xs:         make([]float64, smoothing),
		ys:         make([]float64, smoothing),
	}
}

func (t *Tracker) Update(x, y float64) {
	t.sumX += x - t.xs[t.pos]
	t.sumY += y - t.ys[t.pos]
	t.xs[t.pos], t.ys[t.pos] = x, y
	t.pos = (t.pos + 1) % len(t.xs)
	if t.filled < len(t.xs) {
		t.filled++
		if t.filled < len(t.xs) {
			return
		}
	}

	h := FromVector(t.sumX, t.sumY, t.upsideDown)
	t.headings = append(t.headings, h)
	if len(t.headings) > t.run {
		t.headings = t.headings[1:]
	}

	t.confirmed = false
	if len(t.headings) < t.run {
		return
	}

	mean := CircularMean(t.headings)
	for _, v := range t.headings {
		if d := Distance(mean, v); d > t.tolerance || d < -t.tolerance {
			return
		}
	}
	t.direction = mean
	t.confirmed = true
}

// Direction returns the confirmed heading. ok is false while the heading is
// unstable.
func (t *Tracker) Direction() (deg float64, ok bool) {
	return t.direction, t.confirmed
}

func (t *Tracker) Reset() {
	clear(t.xs)
	clear(t.ys)
	t.sumX, t.sumY = 0, 0
	t.pos, t.filled = 0, 0
	t.headings = t.headings[:0]
	t.direction, t.confirmed = 0, false
}
