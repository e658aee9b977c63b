package repyable

import (
	"context"
	"io"

	"github.com/luno/jettison/errors"
	"github.com/luno/jettison/j"
	"github.com/luno/jettison/log"
)

// Run executes the spec by streaming events after the current cursor,
// feeding each into the consumer and updating the cursor on success.
// It always returns a non-nil error, ErrEndOfStream once a closed session
// is drained. Cancel the context to return early.
func Run(in context.Context, s Spec) error {
	ctx, cancel := context.WithCancel(in)
	defer cancel()
	defer s.cstore.Flush(context.Background()) // best effort flush with new context

	cursor, err := s.cstore.GetCursor(ctx, s.consumer.Name())
	if err != nil {
		return errors.Wrap(err, "get cursor error")
	}

	// Check if the consumer requires to be reset.
	if r, ok := s.consumer.(ResetterCtx); ok {
		if err := r.Reset(ctx); err != nil {
			return errors.Wrap(err, "reset error")
		}
	}

	sc, err := s.stream(ctx, cursor, s.opts...)
	if err != nil {
		return err
	}

	// Check if the stream client is a closer.
	if closer, ok := sc.(io.Closer); ok {
		defer closer.Close()
	}

	for {
		e, err := sc.Recv()
		if err != nil {
			return errors.Wrap(err, "recv error")
		}

		ctx := log.ContextWith(ctx, j.MKV{"event_index": e.Index})

		if err := s.consumer.Consume(ctx, e); err != nil {
			return errors.Wrap(err, "consume error", j.MKV{"event_index": e.Index})
		}

		if err := s.cstore.SetCursor(ctx, s.consumer.Name(), e.Cursor()); err != nil {
			return errors.Wrap(err, "set cursor error", j.MKV{"event_index": e.Index})
		}
	}
}
