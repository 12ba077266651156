package common

import (
	"sort"
	"time"
)

// MedianDuration returns the median of a set of durations, or 0 if the set is
// empty. The input is not modified.
func MedianDuration(input []time.Duration) time.Duration {
	s := make([]time.Duration, len(input))
	copy(s, input)
	sort.Slice(s, func(i, j int) bool { return s[i] < s[j] })

	l := len(s)
	switch {
	case l == 0:
		return 0
	case l%2 == 0:
		mid := l/2 - 1
		return (s[mid] + s[mid+1]) / 2
	default:
		return s[l/2]
	}
}

// DurationWindow keeps the last few durations observed, to report a median
// that follows recent behaviour. It is not safe for concurrent use.
type DurationWindow struct {
	items []time.Duration
	next  int
}

// NewDurationWindow creates a DurationWindow holding at most size items.
func NewDurationWindow(size int) *DurationWindow {
	return &DurationWindow{
		items: make([]time.Duration, 0, size),
	}
}

// Add records a duration, evicting the oldest one if the window is full.
func (w *DurationWindow) Add(d time.Duration) {
	if len(w.items) < cap(w.items) {
		w.items = append(w.items, d)
		return
	}
	if cap(w.items) == 0 {
		return
	}
	w.items[w.next] = d
	w.next = (w.next + 1) % cap(w.items)
}

// Median returns the median of the durations in the window.
func (w *DurationWindow) Median() time.Duration {
	return MedianDuration(w.items)
}
