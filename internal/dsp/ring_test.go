package dsp

import (
	"testing"
	"time"
)

func TestRing_Ordering(t *testing.T) {
	r := NewRing(4)
	baseTime := time.Now()

	for i := 0; i < 6; i++ {
		r.Push(baseTime.Add(time.Duration(i)*time.Second), float64(i))
	}

	if !r.Full() {
		t.Fatalf("Expected ring to be full")
	}
	if size := r.Len(); size != 4 {
		t.Errorf("Expected ring size 4, got %d", size)
	}

	w := r.Window()
	expected := []float64{2, 3, 4, 5}
	for i, v := range w.Values {
		if v != expected[i] {
			t.Errorf("Position %d: expected %f, got %f", i, expected[i], v)
		}
	}
	if !w.Start.Equal(baseTime.Add(2 * time.Second)) {
		t.Errorf("Expected window start %v, got %v", baseTime.Add(2*time.Second), w.Start)
	}
	if !w.End.Equal(baseTime.Add(5 * time.Second)) {
		t.Errorf("Expected window end %v, got %v", baseTime.Add(5*time.Second), w.End)
	}
}

func TestRing_Partial(t *testing.T) {
	r := NewRing(8)
	baseTime := time.Now()

	if w := r.Window(); len(w.Values) != 0 {
		t.Fatalf("Expected empty window, got %d values", len(w.Values))
	}

	r.Push(baseTime, 1)
	r.Push(baseTime.Add(time.Second), 2)

	if r.Full() {
		t.Errorf("Ring should not be full")
	}

	w := r.Window()
	if len(w.Values) != 2 || w.Values[0] != 1 || w.Values[1] != 2 {
		t.Errorf("Unexpected window values %v", w.Values)
	}
	if !w.Start.Equal(baseTime) || !w.End.Equal(baseTime.Add(time.Second)) {
		t.Errorf("Unexpected window bounds %v - %v", w.Start, w.End)
	}
}

func TestRing_Clear(t *testing.T) {
	r := NewRing(2)
	r.Push(time.Now(), 1)
	r.Push(time.Now(), 2)
	r.Clear()

	if r.Full() || r.Len() != 0 {
		t.Errorf("Expected empty ring after clear, got len %d", r.Len())
	}
	if r.Cap() != 2 {
		t.Errorf("Expected capacity 2, got %d", r.Cap())
	}
}
