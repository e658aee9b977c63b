package rpatterns

import (
	"context"
	"sync"

	"github.com/luno/jettison/errors"
	"github.com/luno/jettison/j"
	"github.com/luno/jettison/log"
	"golang.org/x/sync/semaphore"

	"github.com/luno/repyable"
)

const defaultMaxInFlight = 100

// ConcurrentConsumer hands up to maxInFlight events to the inner consumer
// at once, so events may complete out of order. The stored cursor is the
// highest index below which every started event completed without error.
// The first failure is returned by the next call to Consume.
type ConcurrentConsumer struct {
	consumer    repyable.Consumer
	cstore      repyable.CursorStore
	maxInFlight int64

	sem     *semaphore.Weighted
	running sync.WaitGroup

	mu   sync.Mutex
	mark *Watermark
	fail error
}

// NewConcurrentConsumer returns a consumer allowing maxInFlight events in
// flight, 100 if not positive.
func NewConcurrentConsumer(
	cstore repyable.CursorStore,
	consumer repyable.Consumer,
	maxInFlight int,
) *ConcurrentConsumer {
	if maxInFlight <= 0 {
		maxInFlight = defaultMaxInFlight
	}
	return &ConcurrentConsumer{
		cstore:      cstore,
		consumer:    consumer,
		maxInFlight: int64(maxInFlight),
	}
}

// Name returns the inner consumer name.
func (c *ConcurrentConsumer) Name() string {
	return c.consumer.Name()
}

// Stop waits for in flight events to complete.
func (c *ConcurrentConsumer) Stop() error {
	c.running.Wait()
	return nil
}

// Reset waits for in flight events, forgets any failure and flushes the
// cursor store. repyable.Run calls it before streaming.
func (c *ConcurrentConsumer) Reset(ctx context.Context) error {
	_ = c.Stop()

	c.mu.Lock()
	c.mark = NewWatermark()
	c.fail = nil
	c.sem = semaphore.NewWeighted(c.maxInFlight)
	c.mu.Unlock()

	return c.cstore.Flush(ctx)
}

// Consume starts e in the background once a slot is free.
func (c *ConcurrentConsumer) Consume(ctx context.Context, e *repyable.Event) error {
	if err := c.failure(); err != nil {
		return err
	}

	if err := c.sem.Acquire(ctx, 1); err != nil {
		return err
	}

	c.mu.Lock()
	c.mark.Start(e.Index)
	c.mu.Unlock()

	c.running.Add(1)
	go func() {
		defer c.running.Done()
		defer c.sem.Release(1)

		c.complete(e.Index, c.consumer.Consume(ctx, e))
	}()

	return nil
}

func (c *ConcurrentConsumer) failure() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fail
}

// complete records the result for index. Failed indexes are never marked
// done, holding the cursor below them until the next Reset.
func (c *ConcurrentConsumer) complete(index int64, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err != nil {
		if c.fail == nil {
			c.fail = errors.Wrap(err, "concurrent consume failed", j.KV("event_index", index))
		}
		return
	}

	if !c.mark.Done(index) {
		return
	}
	next, _ := c.mark.Mark()

	ctx := context.Background()
	e := repyable.Event{Index: next}
	if err := c.cstore.SetCursor(ctx, c.consumer.Name(), e.Cursor()); err != nil {
		// NoReturnErr: The next completion retries with a higher cursor.
		log.Error(ctx, errors.Wrap(err, "set concurrent cursor"),
			j.MKV{"consumer": c.consumer.Name(), "event_index": next})
	}
}

// NewConcurrentSpec returns a spec running cc. Cursors are stored by cc
// as events complete rather than by repyable.Run.
func NewConcurrentSpec(
	stream repyable.StreamFunc,
	cc *ConcurrentConsumer,
	opts ...repyable.StreamOption,
) repyable.Spec {
	return repyable.NewSpec(stream, &noSetStore{cc.cstore}, cc, opts...)
}
