package repyable

import (
	"context"
	"strconv"

	"github.com/luno/repyable/rbits"
)

// Event is a decoded record together with its position in the replay order.
type Event struct {
	// Index is the stable buffer index assigned when the event was produced.
	Index int64

	Record rbits.Record
	Block  rbits.Block

	// Trace is the encoded span context of the producer, if any. It is only
	// carried by events popped from the queue.
	Trace []byte

	// Head is the buffer length when the event was delivered.
	Head int64
}

// Cursor returns the index formatted as a cursor.
func (e *Event) Cursor() string {
	return strconv.FormatInt(e.Index, 10)
}

// Lag returns the number of events produced after this one at delivery time.
func (e *Event) Lag() int64 {
	if e.Head <= e.Index {
		return 0
	}
	return e.Head - e.Index - 1
}

// Spec specifies all the elements required to stream and consume events
// for a specific purpose. StreamFunc is the source of the events. Consumer is
// the business logic consuming the events. CursorStore persists a cursor of
// consumed events. As long as the elements do not change the consumer is
// guaranteed at-least-once delivery of all events in the stream.
type Spec struct {
	stream   StreamFunc
	cstore   CursorStore
	consumer Consumer
	opts     []StreamOption
}

// Name returns the name of the spec which is the name of the consumer.
func (req Spec) Name() string {
	return req.consumer.Name()
}

// Stop stops the spec's consumer.
func (req Spec) Stop() error {
	if s, ok := req.consumer.(Stopper); ok {
		return s.Stop()
	}
	return nil
}

// NewSpec returns a new Spec.
func NewSpec(stream StreamFunc, cstore CursorStore, consumer Consumer,
	opts ...StreamOption,
) Spec {
	return Spec{
		stream:   stream,
		cstore:   cstore,
		consumer: consumer,
		opts:     opts,
	}
}

// Consumer represents a piece of business logic that consumes events.
// It consists of a name and the consume logic. Consumer logic should be idempotent
// since Run provides at-least-once event delivery.
type Consumer interface {
	Name() string
	Consume(context.Context, *Event) error
}

// ResetterCtx is an optional interface that a consumer can implement indicating
// that it is stateful and requires reset at the start of each Run.
type ResetterCtx interface {
	Reset(context.Context) error
}

// Stopper is an optional interface that a consumer can implement indicating
// that it has clean up work to do at the end of each Run.
type Stopper interface {
	Stop() error
}

// StreamClient is a stream interface providing subsequent events on calls to Recv.
// Implementations may also implement io.Closer.
type StreamClient interface {
	// Recv blocks until the next event is found. Either the event or error is non-nil.
	Recv() (*Event, error)
}

// StreamFunc returns a long lived StreamClient that streams events with
// an index greater than after. An empty after streams from the start.
type StreamFunc func(ctx context.Context, after string, opts ...StreamOption) (StreamClient, error)

// CursorStore is an interface used to persist consumer offsets in a stream.
type CursorStore interface {
	// GetCursor returns the consumers cursor, it returns an empty string if no cursor exists.
	GetCursor(ctx context.Context, consumerName string) (string, error)

	// SetCursor stores the consumers cursor. Note some implementation may buffer writes.
	SetCursor(ctx context.Context, consumerName string, cursor string) error

	// Flush writes any buffered cursors to the underlying store.
	Flush(ctx context.Context) error
}

// ParseCursor returns the index following the cursor, ie. the first index
// a stream resuming after the cursor should return.
func ParseCursor(after string) (int64, error) {
	if after == "" {
		return 0, nil
	}
	i, err := strconv.ParseInt(after, 10, 64)
	if err != nil {
		return 0, err
	}
	return i + 1, nil
}
