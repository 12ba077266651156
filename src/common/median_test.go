package common

import (
	"testing"
	"time"
)

func TestMedianDuration(t *testing.T) {
	for _, c := range []struct {
		in  []time.Duration
		out time.Duration
	}{
		{[]time.Duration{5, 3, 4, 2, 1}, 3},
		{[]time.Duration{6, 3, 2, 4, 5, 1}, 3},
		{[]time.Duration{1}, 1},
	} {
		got := MedianDuration(c.in)
		if got != c.out {
			t.Errorf("MedianDuration(%v) => %v != %v", c.in, got, c.out)
		}
	}
	m := MedianDuration([]time.Duration{})
	if m != 0 {
		t.Errorf("Empty slice should have returned 0")
	}
}

func TestDurationWindow(t *testing.T) {
	w := NewDurationWindow(3)

	if w.Median() != 0 {
		t.Fatalf("empty window should have a median of 0")
	}

	for _, d := range []time.Duration{100, 100, 100, 1, 2} {
		w.Add(d)
	}

	// window now holds 1, 2 and 100
	if m := w.Median(); m != 2 {
		t.Fatalf("median should be 2, not %v", m)
	}
}
