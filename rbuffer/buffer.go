// Package rbuffer provides an append-only, indexable sequence of encoded
// event blocks held in a single contiguous byte arena.
package rbuffer

import (
	"iter"
	"sync"

	"github.com/luno/jettison/errors"
	"github.com/luno/jettison/j"

	"github.com/luno/repyable/rbits"
)

// Buffer is an append-only sequence of blocks. Index assignment on Append
// defines the global replay order. It is safe for concurrent use.
//
// Blocks returned by Get and iterators alias the arena and must not be
// modified.
type Buffer struct {
	mu sync.RWMutex

	arena []byte
	ends  []int // ends[i] is the arena offset just after block i

	sealed bool
	live   int

	// notify is closed and replaced on every append, seal and reset.
	notify chan struct{}
}

// New returns an empty buffer with room for capacityHint blocks.
func New(capacityHint int) *Buffer {
	if capacityHint < 0 {
		capacityHint = 0
	}
	return &Buffer{
		ends:   make([]int, 0, capacityHint),
		notify: make(chan struct{}),
	}
}

// Append copies the block into the arena and returns its index. The block
// is published atomically: readers observe either all of it or nothing.
// Blocks longer than rbits.MaxFrameLen are rejected so every buffer can be
// written as frames.
func (b *Buffer) Append(block rbits.Block) (int64, error) {
	if len(block) > rbits.MaxFrameLen {
		return 0, errors.Wrap(rbits.ErrFrameTooLarge, "block too large", j.KV("len", len(block)))
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.sealed {
		return 0, ErrSealed
	}

	b.arena = append(b.arena, block...)
	b.ends = append(b.ends, len(b.arena))
	b.broadcastUnsafe()

	return int64(len(b.ends) - 1), nil
}

// Get returns the block at index.
func (b *Buffer) Get(index int64) (rbits.Block, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.getUnsafe(index)
}

func (b *Buffer) getUnsafe(index int64) (rbits.Block, error) {
	if index < 0 || index >= int64(len(b.ends)) {
		return nil, errors.Wrap(ErrIndexOutOfRange, "",
			j.KV("index", index), j.KV("len", len(b.ends)))
	}

	var start int
	if index > 0 {
		start = b.ends[index-1]
	}
	end := b.ends[index]

	return b.arena[start:end:end], nil
}

// Len returns the number of blocks. It only decreases on Reset.
func (b *Buffer) Len() int64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return int64(len(b.ends))
}

// Size returns the number of arena bytes in use.
func (b *Buffer) Size() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.arena)
}

// Seal prevents further appends and wakes live iterators so they can
// terminate once they have caught up. Sealing is idempotent.
func (b *Buffer) Seal() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.sealed {
		return
	}
	b.sealed = true
	b.broadcastUnsafe()
}

func (b *Buffer) Sealed() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.sealed
}

// Reset releases all blocks. It returns ErrBufferInUse if any iterator is
// still live. The sealed state is retained.
func (b *Buffer) Reset() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.live > 0 {
		return errors.Wrap(ErrBufferInUse, "", j.KV("iterators", b.live))
	}

	b.arena = nil
	b.ends = make([]int, 0, cap(b.ends))
	b.broadcastUnsafe()

	return nil
}

// Live returns the number of live iterators.
func (b *Buffer) Live() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.live
}

// All returns a finite sequence of the blocks from index from up to the
// length at the time iteration starts. The sequence may be ranged over
// multiple times.
func (b *Buffer) All(from int64) iter.Seq2[int64, rbits.Block] {
	return func(yield func(int64, rbits.Block) bool) {
		it := b.Iterate(from)
		defer it.Close()

		for {
			i, block, err := it.next(nil)
			if err != nil {
				return
			}
			if !yield(i, block) {
				return
			}
		}
	}
}

func (b *Buffer) broadcastUnsafe() {
	close(b.notify)
	b.notify = make(chan struct{})
}

func (b *Buffer) release() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.live--
}
