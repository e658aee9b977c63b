package testmock_test

import (
	"context"
	"strconv"
	"testing"

	"github.com/luno/jettison/jtest"
	"github.com/stretchr/testify/require"

	"github.com/luno/repyable"
	"github.com/luno/repyable/rbits"
	"github.com/luno/repyable/testmock"
)

var schema = rbits.MustSchema(
	rbits.Field{Name: "kind", Width: 4, Kind: rbits.KindUint},
	rbits.Field{Name: "delta", Width: 12, Kind: rbits.KindInt},
)

func record(kind uint64, delta int64) rbits.Record {
	return rbits.Record{"kind": rbits.Uint(kind), "delta": rbits.Int(delta)}
}

func TestNewTestStreamer(t *testing.T) {
	records := []rbits.Record{
		record(1, -5),
		record(5, 100),
		record(1, 0),
		record(4, -2048),
	}

	ctx := context.Background()
	streamer := testmock.NewTestStreamer(t, schema)

	for i, r := range records {
		require.Equal(t, int64(i), streamer.InsertEvent(r))
	}

	streamFunc := streamer.StreamFunc()
	for i, exp := range records {
		after := ""
		if i > 0 {
			after = strconv.Itoa(i - 1)
		}

		sc, err := streamFunc(ctx, after, repyable.WithStreamToHead())
		jtest.RequireNil(t, err)

		e, err := sc.Recv()
		jtest.RequireNil(t, err)
		require.Equal(t, int64(i), e.Index)
		require.Equal(t, exp["kind"].Uint(), e.Record["kind"].Uint())
		require.Equal(t, exp["delta"].Int(), e.Record["delta"].Int())
	}

	sc, err := streamFunc(ctx, "", repyable.WithStreamFromHead(), repyable.WithStreamToHead())
	jtest.RequireNil(t, err)

	_, err = sc.Recv()
	jtest.Require(t, repyable.ErrHeadReached, err)
}

func TestStop(t *testing.T) {
	streamer := testmock.NewTestStreamer(t, schema)
	streamer.InsertEvent(record(1, 1))
	streamer.Stop()

	sc, err := streamer.StreamFunc()(context.Background(), "")
	jtest.RequireNil(t, err)

	_, err = sc.Recv()
	jtest.RequireNil(t, err)

	_, err = sc.Recv()
	jtest.Require(t, repyable.ErrEndOfStream, err)
}
