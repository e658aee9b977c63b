package rpatterns

import (
	"context"
	"runtime/debug"

	"github.com/luno/jettison/errors"
	"github.com/luno/jettison/j"
	"golang.org/x/sync/errgroup"

	"github.com/luno/repyable"
	"github.com/luno/repyable/internal/tracing"
	"github.com/luno/repyable/rqueue"
)

// ErrWorkerPanic is returned by ConsumeQueue when a handler panics.
var ErrWorkerPanic = errors.New("queue worker panic", j.C("ERR_4c1e8a7d0b93f256"))

// Popper is satisfied by a repyable.Session and a remote rgrpc.Client.
type Popper interface {
	Pop(ctx context.Context) (*repyable.Event, error)
}

// QueueHandler handles a single popped event.
type QueueHandler func(ctx context.Context, e *repyable.Event) error

type queueOptions struct {
	name string
}

// QueueOption configures ConsumeQueue.
type QueueOption func(*queueOptions)

// WithPoolName sets the pool_name label of the worker metrics.
func WithPoolName(name string) QueueOption {
	return func(o *queueOptions) {
		o.name = name
	}
}

// ConsumeQueue pops events with n workers until the queue is closed and
// drained, returning nil in that case. Each event is delivered to exactly
// one worker. The first handler error (or panic) cancels the remaining
// workers and is returned.
func ConsumeQueue(ctx context.Context, p Popper, n int, h QueueHandler, opts ...QueueOption) error {
	o := queueOptions{name: "default"}
	for _, opt := range opts {
		opt(&o)
	}
	if n < 1 {
		n = 1
	}

	busy := queueWorkersBusy.WithLabelValues(o.name)
	handled := queueHandledTotal.WithLabelValues(o.name, "success")
	failed := queueHandledTotal.WithLabelValues(o.name, "error")

	eg, ctx := errgroup.WithContext(ctx)
	for i := 0; i < n; i++ {
		eg.Go(func() error {
			for {
				e, err := p.Pop(ctx)
				if errors.Is(err, rqueue.ErrQueueClosed) {
					return nil
				} else if err != nil {
					return err
				}

				busy.Inc()
				err = handle(tracing.WithEventTrace(ctx, e.Trace), h, e)
				busy.Dec()
				if err != nil {
					failed.Inc()
					return errors.Wrap(err, "queue handler", j.MKV{"index": e.Index, "worker": i})
				}
				handled.Inc()
			}
		})
	}
	return eg.Wait()
}

func handle(ctx context.Context, h QueueHandler, e *repyable.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Wrap(ErrWorkerPanic, "", j.MKV{
				"panic": r,
				"stack": string(debug.Stack()),
			})
		}
	}()
	return h(ctx, e)
}
