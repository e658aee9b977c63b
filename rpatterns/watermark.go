package rpatterns

import "slices"

// Watermark tracks the highest event index below which every started
// index has completed. Indexes must be started in ascending order but may
// complete in any order. Indexes that were never started are not waited for.
type Watermark struct {
	started   []int64        // in flight, ascending
	completed map[int64]bool // completed but not yet passed by the mark
	mark      int64
	ok        bool
}

func NewWatermark() *Watermark {
	return &Watermark{completed: make(map[int64]bool)}
}

// Start marks index as in flight. The mark cannot pass it until it is Done.
func (w *Watermark) Start(index int64) {
	w.started = append(w.started, index)
}

// Done marks index complete and reports whether the mark advanced.
func (w *Watermark) Done(index int64) bool {
	if _, found := slices.BinarySearch(w.started, index); !found {
		return false
	}
	w.completed[index] = true

	var advanced bool
	for len(w.started) > 0 && w.completed[w.started[0]] {
		delete(w.completed, w.started[0])
		w.mark, w.ok, advanced = w.started[0], true, true
		w.started = w.started[1:]
	}
	return advanced
}

// Mark returns the highest index up to which everything started is done,
// false if nothing has completed yet.
func (w *Watermark) Mark() (int64, bool) {
	return w.mark, w.ok
}

// InFlight returns the number of started indexes not yet passed by the mark.
func (w *Watermark) InFlight() int {
	return len(w.started)
}
