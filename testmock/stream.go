// Package testmock provides test doubles and helpers for code built on
// repyable sessions.
package testmock

import (
	"context"
	"testing"

	"github.com/luno/jettison/jtest"

	"github.com/luno/repyable"
	"github.com/luno/repyable/rbits"
)

// NewTestStreamer returns a streamer backed by an in-memory session of the
// schema. The session is closed on test cleanup.
func NewTestStreamer(t *testing.T, schema rbits.Schema) TestStreamer {
	t.Helper()

	sess, err := repyable.Open(schema, 0, 1024)
	jtest.RequireNil(t, err)
	t.Cleanup(func() { _ = sess.Close() })

	return &testStreamerImpl{t: t, sess: sess}
}

type TestStreamer interface {
	// InsertEvent produces the record and returns its index.
	InsertEvent(r rbits.Record) int64
	StreamFunc() repyable.StreamFunc

	// Stop closes the session, streams return repyable.ErrEndOfStream once drained.
	Stop()
}

type testStreamerImpl struct {
	t    *testing.T
	sess *repyable.Session
}

func (ts *testStreamerImpl) Stop() {
	_ = ts.sess.Close()
}

func (ts *testStreamerImpl) InsertEvent(r rbits.Record) int64 {
	ts.t.Helper()

	// Nobody pops the queue, so drain it to avoid blocking producers.
	defer ts.drain()

	index, err := ts.sess.Produce(context.Background(), r)
	jtest.RequireNil(ts.t, err)

	return index
}

// drain pops every queued event without blocking.
func (ts *testStreamerImpl) drain() {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	for {
		if _, err := ts.sess.Pop(ctx); err != nil {
			return
		}
	}
}

func (ts *testStreamerImpl) StreamFunc() repyable.StreamFunc {
	return ts.sess.Stream
}
