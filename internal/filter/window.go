package filter

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// SlidingWindow is a fixed-capacity FIFO of the most recent observations.
//
// The window always holds exactly Capacity samples: it starts zeroed and is
// expected to be seeded with Fill before real use, after which every Update
// evicts the oldest sample. Storage is a ring, so Update is O(1).
type SlidingWindow struct {
	samples []float64
	// head indexes the oldest sample.
	head int
}

// NewSlidingWindow returns a zero-filled window. A capacity below one fails
// with ErrInvalidParameter.
func NewSlidingWindow(capacity int) (*SlidingWindow, error) {
	if capacity < 1 {
		return nil, fmt.Errorf("%w: sliding window capacity must be positive, got %d", ErrInvalidParameter, capacity)
	}
	return &SlidingWindow{samples: make([]float64, capacity)}, nil
}

// Capacity returns the fixed number of samples held.
func (w *SlidingWindow) Capacity() int {
	return len(w.samples)
}

// Fill sets every slot to value.
func (w *SlidingWindow) Fill(value float64) {
	for i := range w.samples {
		w.samples[i] = value
	}
	w.head = 0
}

// Update evicts the oldest sample and appends value as the newest.
func (w *SlidingWindow) Update(value float64) {
	w.samples[w.head] = value
	w.head = (w.head + 1) % len(w.samples)
}

// Latest returns the most recently appended sample.
func (w *SlidingWindow) Latest() float64 {
	n := len(w.samples)
	return w.samples[(w.head+n-1)%n]
}

// Mean returns the arithmetic mean of all samples.
func (w *SlidingWindow) Mean() float64 {
	return stat.Mean(w.samples, nil)
}

// Median returns the middle sample for odd capacities and the average of the
// two middle samples for even capacities. The window itself is not reordered.
func (w *SlidingWindow) Median() float64 {
	sorted := make([]float64, len(w.samples))
	copy(sorted, w.samples)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

// Samples returns a copy of the window contents, oldest first.
func (w *SlidingWindow) Samples() []float64 {
	out := make([]float64, 0, len(w.samples))
	out = append(out, w.samples[w.head:]...)
	out = append(out, w.samples[:w.head]...)
	return out
}
