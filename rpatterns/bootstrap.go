package rpatterns

import (
	"context"
	"sync/atomic"

	"github.com/luno/jettison/j"
	"github.com/luno/jettison/log"

	"github.com/luno/repyable"
)

// NewBootstrapSpec returns a spec for consumers that should skip the
// events already in the buffer the first time they run. Without a stored
// cursor the stream starts at the buffer head; once a cursor has been
// stored the spec behaves like repyable.NewSpec.
func NewBootstrapSpec(stream repyable.StreamFunc, cstore repyable.CursorStore,
	consumer repyable.Consumer, opts ...repyable.StreamOption,
) repyable.Spec {
	b := &bootstrap{CursorStore: cstore, next: stream}
	return repyable.NewSpec(b.stream, b, consumer, opts...)
}

// bootstrap notes whether the last cursor lookup came back empty so the
// stream that follows it can start from the head.
type bootstrap struct {
	repyable.CursorStore
	next  repyable.StreamFunc
	fresh atomic.Bool
}

func (b *bootstrap) GetCursor(ctx context.Context, consumerName string) (string, error) {
	cursor, err := b.CursorStore.GetCursor(ctx, consumerName)
	if err != nil {
		return "", err
	}

	b.fresh.Store(cursor == "")
	if cursor == "" {
		log.Info(ctx, "no stored cursor, starting at buffer head", j.KS("consumer", consumerName))
	}
	return cursor, nil
}

func (b *bootstrap) stream(ctx context.Context, after string, opts ...repyable.StreamOption,
) (repyable.StreamClient, error) {
	if b.fresh.Load() {
		opts = append(opts[:len(opts):len(opts)], repyable.WithStreamFromHead())
	}
	return b.next(ctx, after, opts...)
}
