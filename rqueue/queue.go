// Package rqueue provides a bounded blocking FIFO of byte slices that is
// safe for any number of concurrent producers and consumers.
package rqueue

import (
	"context"
	"sync"

	"github.com/luno/jettison/errors"
	"github.com/luno/jettison/j"
)

// ErrQueueClosed is returned by Push after Close and by Pop once a closed
// queue is drained.
var ErrQueueClosed = errors.New("queue closed", j.C("ERR_f08b3d6a1e92c457"))

// Queue is a bounded ring of owned byte slots. Push copies items in, so
// callers may reuse their slices; items returned by Pop belong to the
// caller. A full queue blocks producers, it never drops or grows.
type Queue struct {
	mu     sync.Mutex
	ring   *ring[[]byte]
	closed bool

	// notFull and notEmpty are closed and replaced to wake waiters.
	notFull  chan struct{}
	notEmpty chan struct{}
}

// New returns an empty queue holding at most capacity items. Capacities
// below one are treated as one.
func New(capacity int) *Queue {
	if capacity < 1 {
		capacity = 1
	}
	return &Queue{
		ring:     newRing[[]byte](capacity),
		notFull:  make(chan struct{}),
		notEmpty: make(chan struct{}),
	}
}

// Push copies item into the queue. It blocks while the queue is full until
// a slot frees, the context is done or the queue is closed.
func (q *Queue) Push(ctx context.Context, item []byte) error {
	owned := append(make([]byte, 0, len(item)), item...)

	for {
		q.mu.Lock()
		if q.closed {
			q.mu.Unlock()
			return ErrQueueClosed
		}
		if !q.ring.full() {
			q.ring.push(owned)
			wakeUnsafe(&q.notEmpty)
			q.mu.Unlock()
			return nil
		}
		wait := q.notFull
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-wait:
		}
	}
}

// Pop removes and returns the oldest item. It blocks while the queue is
// empty. Once closed, remaining items are still returned before Pop
// fails with ErrQueueClosed.
func (q *Queue) Pop(ctx context.Context) ([]byte, error) {
	for {
		q.mu.Lock()
		if item, ok := q.ring.pop(); ok {
			wakeUnsafe(&q.notFull)
			q.mu.Unlock()
			return item, nil
		}
		if q.closed {
			q.mu.Unlock()
			return nil, ErrQueueClosed
		}
		wait := q.notEmpty
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-wait:
		}
	}
}

// TryPop returns the oldest item without blocking, false if the queue is empty.
func (q *Queue) TryPop() ([]byte, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	item, ok := q.ring.pop()
	if ok {
		wakeUnsafe(&q.notFull)
	}
	return item, ok
}

// Peek returns a copy of the queued items, oldest first.
func (q *Queue) Peek() [][]byte {
	q.mu.Lock()
	defer q.mu.Unlock()

	res := make([][]byte, 0, q.ring.len())
	for i := 0; i < q.ring.len(); i++ {
		res = append(res, append([]byte(nil), q.ring.at(i)...))
	}
	return res
}

// Close wakes every waiter. Pending items remain available to Pop.
// Close is idempotent.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	wakeUnsafe(&q.notFull)
	wakeUnsafe(&q.notEmpty)
}

func (q *Queue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Len returns the number of queued items.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.ring.len()
}

// Cap returns the capacity of the queue.
func (q *Queue) Cap() int {
	return len(q.ring.slots)
}

func wakeUnsafe(ch *chan struct{}) {
	close(*ch)
	*ch = make(chan struct{})
}
