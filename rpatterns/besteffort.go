package rpatterns

import (
	"context"

	"github.com/luno/jettison/errors"
	"github.com/luno/jettison/j"
	"github.com/luno/jettison/log"

	"github.com/luno/repyable"
)

// SkipFunc is called with each event a best effort consumer gives up on
// and the last error returned for it.
type SkipFunc func(ctx context.Context, e *repyable.Event, err error)

// BestEffortOption configures NewBestEffortConsumer.
type BestEffortOption func(*bestEffort)

// WithSkipFunc registers fn to be called for every skipped event, for
// example to park the decoded record in a dead letter table.
func WithSkipFunc(fn SkipFunc) BestEffortOption {
	return func(b *bestEffort) {
		b.onSkip = fn
	}
}

// WithConsumerOptions passes opts through to the underlying consumer.
func WithConsumerOptions(opts ...repyable.ConsumerOption) BestEffortOption {
	return func(b *bestEffort) {
		b.consumerOpts = append(b.consumerOpts, opts...)
	}
}

// NewBestEffortConsumer returns a consumer that gives fn retries+1
// attempts per event index. When those are used up the event is skipped
// and the consumer moves on to the next index.
func NewBestEffortConsumer(name string, retries int, fn func(context.Context, *repyable.Event) error,
	opts ...BestEffortOption,
) repyable.Consumer {
	be := &bestEffort{
		name:     name,
		inner:    fn,
		attempts: retries + 1,
		index:    -1,
	}
	for _, o := range opts {
		o(be)
	}

	return repyable.NewConsumer(name, be.consume, be.consumerOpts...)
}

type bestEffort struct {
	name         string
	inner        func(context.Context, *repyable.Event) error
	attempts     int
	onSkip       SkipFunc
	consumerOpts []repyable.ConsumerOption

	// index is the event currently failing, failed counts its attempts.
	index  int64
	failed int
}

func (b *bestEffort) consume(ctx context.Context, e *repyable.Event) error {
	err := b.inner(ctx, e)
	if err == nil {
		b.reset()
		return nil
	}

	if b.index != e.Index {
		b.index, b.failed = e.Index, 0
	}
	b.failed++
	if b.failed < b.attempts {
		return err
	}

	b.reset()
	bestEffortSkipped.WithLabelValues(b.name).Inc()
	if !repyable.IsExpected(err) {
		log.Error(ctx, errors.Wrap(err, "best effort consumer skipping event"),
			j.MKV{"consumer": b.name, "event_index": e.Index, "attempts": b.attempts})
	}
	if b.onSkip != nil {
		b.onSkip(ctx, e, err)
	}

	return nil
}

func (b *bestEffort) reset() {
	b.index, b.failed = -1, 0
}
