package rpatterns

import (
	"context"
	"time"

	"github.com/luno/jettison/errors"
	"github.com/luno/jettison/j"
	"github.com/luno/jettison/log"

	"github.com/luno/repyable"
)

// RunForever continuously calls the run function, backing off
// and logging on unexpected errors. It returns once the spec's stream
// ended, ie. a closed session was drained.
func RunForever(getCtx func() context.Context, req repyable.Spec) {
	for {
		ctx := getCtx()
		ctx = log.ContextWith(ctx, j.KS("consumer", req.Name()))

		err := repyable.Run(ctx, req)
		if errors.Is(err, repyable.ErrEndOfStream) {
			log.Info(ctx, "run forever reached end of stream")
			return
		} else if repyable.IsExpected(err) {
			// Just retry on expected errors.
			sleep(time.Millisecond * 100) // Don't spin
			continue
		}

		log.Error(ctx, errors.Wrap(err, "run forever error"))
		sleep(backoff) // backoff on errors
	}
}

var backoff = time.Minute

// sleep is aliased for testing.
var sleep = time.Sleep
