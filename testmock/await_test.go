package testmock_test

import (
	"context"
	"testing"
	"time"

	"github.com/luno/jettison/jtest"
	"github.com/stretchr/testify/require"

	"github.com/luno/repyable"
	"github.com/luno/repyable/rpatterns"
	"github.com/luno/repyable/testmock"
)

func TestAwaitConsumer(t *testing.T) {
	streamer := testmock.NewTestStreamer(t, schema)
	defer streamer.Stop()

	for i := int64(0); i < 4; i++ {
		streamer.InsertEvent(record(uint64(i), i*3))
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	cs := rpatterns.MemCursorStore()
	var deltas []int64
	consumer := repyable.NewConsumer("awaited", func(_ context.Context, e *repyable.Event) error {
		deltas = append(deltas, e.Record["delta"].Int())
		return nil
	})

	errc := make(chan error, 1)
	go func() {
		errc <- repyable.Run(ctx, repyable.NewSpec(streamer.StreamFunc(), cs, consumer,
			repyable.WithStreamToHead()))
	}()

	testmock.AwaitConsumer(t, cs, "awaited", 3)
	jtest.Require(t, repyable.ErrHeadReached, <-errc)
	require.Equal(t, []int64{0, 3, 6, 9}, deltas)
}

func TestAwaitConsumerIndexZero(t *testing.T) {
	cs := rpatterns.MemCursorStore(rpatterns.WithMemCursorInt("first", 0))
	testmock.AwaitConsumer(t, cs, "first", 0)
}
