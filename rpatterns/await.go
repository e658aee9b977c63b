package rpatterns

import (
	"context"
	"io"
	"time"

	"github.com/luno/repyable"
)

const defaultPollPeriod = time.Second

type awaitOptions struct {
	pollPeriod time.Duration
	replay     bool
	after      string
}

// AwaitOption configures Await.
type AwaitOption func(*awaitOptions)

// WithPollPeriod sets how often the poll function is called.
func WithPollPeriod(d time.Duration) AwaitOption {
	return func(o *awaitOptions) {
		o.pollPeriod = d
	}
}

// WithAwaitAfter makes Await match events after cursor, including ones
// already in the buffer, instead of only events produced from now on.
func WithAwaitAfter(cursor string) AwaitOption {
	return func(o *awaitOptions) {
		o.replay = true
		o.after = cursor
	}
}

// Await blocks until an event satisfying match is streamed or poll reports
// true, and returns the error of whichever finishes first. Both run in
// parallel so state written just before its event is not missed. A nil
// poll only waits for events. Cancel the context to return early.
func Await(in context.Context, stream repyable.StreamFunc, poll func() (bool, error),
	match func(*repyable.Event) bool, opts ...AwaitOption,
) error {
	o := awaitOptions{pollPeriod: defaultPollPeriod}
	for _, opt := range opts {
		opt(&o)
	}

	ctx, cancel := context.WithCancel(in)
	defer cancel()

	res := make(chan error, 2)
	go func() {
		res <- listen(ctx, stream, match, o)
	}()
	if poll != nil {
		go func() {
			res <- pollUntil(ctx, poll, o.pollPeriod)
		}()
	}

	return <-res
}

// AwaitIndex blocks until the event at index has been produced.
func AwaitIndex(ctx context.Context, stream repyable.StreamFunc, index int64) error {
	var after string
	if index > 0 {
		after = (&repyable.Event{Index: index - 1}).Cursor()
	}
	return Await(ctx, stream, nil, func(e *repyable.Event) bool {
		return e.Index >= index
	}, WithAwaitAfter(after))
}

func listen(ctx context.Context, stream repyable.StreamFunc, match func(*repyable.Event) bool,
	o awaitOptions,
) error {
	var streamOpts []repyable.StreamOption
	if !o.replay {
		streamOpts = append(streamOpts, repyable.WithStreamFromHead())
	}

	sc, err := stream(ctx, o.after, streamOpts...)
	if err != nil {
		return err
	}
	if closer, ok := sc.(io.Closer); ok {
		defer closer.Close()
	}

	for ctx.Err() == nil {
		e, err := sc.Recv()
		if err != nil {
			return err
		}
		if match(e) {
			return nil
		}
	}
	return ctx.Err()
}

func pollUntil(ctx context.Context, poll func() (bool, error), period time.Duration) error {
	t := time.NewTicker(period)
	defer t.Stop()

	for ctx.Err() == nil {
		found, err := poll()
		if err != nil {
			return err
		} else if found {
			return nil
		}

		select {
		case <-ctx.Done():
		case <-t.C:
		}
	}
	return ctx.Err()
}
