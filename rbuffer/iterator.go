package rbuffer

import (
	"context"
	"io"
	"sync"

	"github.com/luno/repyable/rbits"
)

// IterOption configures an Iterator.
type IterOption func(*Iterator)

// WithFollow returns an option that makes the iterator live-tailing: once
// it catches up with the buffer it waits for new appends instead of
// returning io.EOF. It terminates on context cancellation, Close, or when
// the buffer is sealed and fully consumed.
func WithFollow() IterOption {
	return func(it *Iterator) {
		it.follow = true
	}
}

// Iterator is a cursor over a buffer. An iterator is live from creation
// until it is closed or returns a terminal error; the buffer cannot be
// reset while any iterator is live.
//
// Next is not safe for concurrent use, Close may be called from any goroutine.
type Iterator struct {
	b      *Buffer
	pos    int64
	end    int64
	follow bool
	err    error

	stop chan struct{}
	once sync.Once
}

// Iterate returns an iterator starting at index from. Negative values start
// at zero. Without WithFollow the iterator stops at the length observed now.
func (b *Buffer) Iterate(from int64, opts ...IterOption) *Iterator {
	if from < 0 {
		from = 0
	}

	b.mu.Lock()
	b.live++
	end := int64(len(b.ends))
	b.mu.Unlock()

	it := &Iterator{
		b:    b,
		pos:  from,
		end:  end,
		stop: make(chan struct{}),
	}
	for _, o := range opts {
		o(it)
	}
	return it
}

// Pos returns the index of the block the next call to Next returns.
func (it *Iterator) Pos() int64 {
	return it.pos
}

// Next returns the next block and its index. A finite iterator returns
// io.EOF at its end; a live-tailing iterator blocks until a block is
// appended and returns ErrSealed once a sealed buffer is exhausted.
func (it *Iterator) Next(ctx context.Context) (int64, rbits.Block, error) {
	return it.next(ctx)
}

// next implements Next. Finite iterators never wait so ctx may be nil.
func (it *Iterator) next(ctx context.Context) (int64, rbits.Block, error) {
	for {
		if it.err != nil {
			return 0, nil, it.err
		}

		select {
		case <-it.stop:
			return 0, nil, ErrIteratorClosed
		default:
		}

		it.b.mu.RLock()
		n := int64(len(it.b.ends))

		if !it.follow && it.pos >= min(it.end, n) {
			it.b.mu.RUnlock()
			return it.finish(io.EOF)
		}

		if it.pos < n {
			block, err := it.b.getUnsafe(it.pos)
			it.b.mu.RUnlock()
			if err != nil {
				return 0, nil, err
			}
			i := it.pos
			it.pos++
			return i, block, nil
		}

		if it.b.sealed {
			it.b.mu.RUnlock()
			return it.finish(ErrSealed)
		}

		notify := it.b.notify
		it.b.mu.RUnlock()

		select {
		case <-ctx.Done():
			return 0, nil, ctx.Err()
		case <-it.stop:
			return 0, nil, ErrIteratorClosed
		case <-notify:
		}
	}
}

func (it *Iterator) finish(err error) (int64, rbits.Block, error) {
	it.err = err
	it.Close()
	return 0, nil, err
}

// Close releases the iterator and wakes a blocked Next. It is idempotent.
func (it *Iterator) Close() {
	it.once.Do(func() {
		close(it.stop)
		it.b.release()
	})
}
