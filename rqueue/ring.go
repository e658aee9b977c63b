package rqueue

// ring is a fixed size FIFO of slots. It never overwrites, callers must
// check full before push.
type ring[T any] struct {
	slots []T
	head  int // next slot to write
	tail  int // oldest slot
	count int
}

func newRing[T any](size int) *ring[T] {
	return &ring[T]{slots: make([]T, size)}
}

func (r *ring[T]) push(v T) {
	r.slots[r.head] = v
	r.head = (r.head + 1) % len(r.slots)
	r.count++
}

func (r *ring[T]) pop() (T, bool) {
	var zero T
	if r.count == 0 {
		return zero, false
	}
	v := r.slots[r.tail]
	r.slots[r.tail] = zero
	r.tail = (r.tail + 1) % len(r.slots)
	r.count--
	return v, true
}

// at returns the i'th oldest item.
func (r *ring[T]) at(i int) T {
	return r.slots[(r.tail+i)%len(r.slots)]
}

func (r *ring[T]) len() int {
	return r.count
}

func (r *ring[T]) full() bool {
	return r.count == len(r.slots)
}
