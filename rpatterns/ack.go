package rpatterns

import (
	"context"
	"sync"

	"github.com/luno/jettison/errors"
	"github.com/luno/jettison/j"

	"github.com/luno/repyable"
)

// AckEvent is an event whose cursor is only stored once Ack is called.
type AckEvent struct {
	repyable.Event
	acks *ackTracker
}

// Ack stores and flushes the cursor of the event. Acking an index at or
// below the last acked one is a no-op, the cursor never moves back.
func (e *AckEvent) Ack(ctx context.Context) error {
	return e.acks.ack(ctx, e.Index)
}

type AckConsumerFunc func(context.Context, *AckEvent) error

// AckConsumer consumes events without storing cursors; the handler acks
// events explicitly. When batching, ack only the last event of a batch
// and the unacked tail is replayed after a restart.
type AckConsumer struct {
	name    string
	consume AckConsumerFunc
	acks    *ackTracker
}

// NewAckConsumer returns a new AckConsumer storing acks in cstore.
func NewAckConsumer(name string, cstore repyable.CursorStore,
	consume AckConsumerFunc,
) *AckConsumer {
	return &AckConsumer{
		name:    name,
		consume: consume,
		acks:    &ackTracker{name: name, cstore: cstore, last: -1},
	}
}

// Name returns the ack consumer name.
func (c *AckConsumer) Name() string {
	return c.name
}

// Reset reloads the last acked index from the cursor store. It is called
// by repyable.Run at the start of every run.
func (c *AckConsumer) Reset(ctx context.Context) error {
	return c.acks.load(ctx)
}

// Consume passes e to the handler as an AckEvent.
func (c *AckConsumer) Consume(ctx context.Context, e *repyable.Event) error {
	return c.consume(ctx, &AckEvent{Event: *e, acks: c.acks})
}

// LastAcked returns the highest acked index, or -1 if nothing was acked.
func (c *AckConsumer) LastAcked() int64 {
	c.acks.mu.Lock()
	defer c.acks.mu.Unlock()
	return c.acks.last
}

// NewAckSpec returns a spec that only stores cursors when events are acked.
func NewAckSpec(stream repyable.StreamFunc, ac *AckConsumer,
	opts ...repyable.StreamOption,
) repyable.Spec {
	return repyable.NewSpec(stream, &noSetStore{ac.acks.cstore}, ac, opts...)
}

type ackTracker struct {
	mu     sync.Mutex
	name   string
	cstore repyable.CursorStore
	last   int64
}

func (a *ackTracker) load(ctx context.Context) error {
	cursor, err := a.cstore.GetCursor(ctx, a.name)
	if err != nil {
		return err
	}
	next, err := repyable.ParseCursor(cursor)
	if err != nil {
		return errors.Wrap(err, "invalid stored cursor", j.MKS{"consumer": a.name, "cursor": cursor})
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.last = next - 1
	return nil
}

func (a *ackTracker) ack(ctx context.Context, index int64) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if index <= a.last {
		return nil
	}

	e := repyable.Event{Index: index}
	if err := a.cstore.SetCursor(ctx, a.name, e.Cursor()); err != nil {
		return err
	}
	if err := a.cstore.Flush(ctx); err != nil {
		return err
	}

	a.last = index
	return nil
}

// noSetStore drops the SetCursor calls made by repyable.Run.
type noSetStore struct {
	repyable.CursorStore
}

func (s *noSetStore) SetCursor(context.Context, string, string) error {
	return nil
}
