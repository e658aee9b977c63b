package rpatterns_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/luno/jettison/jtest"

	"github.com/luno/repyable"
	"github.com/luno/repyable/rpatterns"
)

func seqIs(seq uint64) func(*repyable.Event) bool {
	return func(e *repyable.Event) bool {
		return e.Record["seq"].Uint() == seq
	}
}

func TestAwaitClosedSession(t *testing.T) {
	never := func() (bool, error) { return false, nil }

	cases := map[string]struct {
		poll   func() (bool, error)
		match  func(*repyable.Event) bool
		opts   []rpatterns.AwaitOption
		open   bool
		cancel bool
		expErr error
	}{
		"buffered events are not matched": {
			poll:   never,
			match:  seqIs(2),
			expErr: repyable.ErrEndOfStream,
		},
		"replay after cursor": {
			poll:  never,
			match: seqIs(3),
			opts:  []rpatterns.AwaitOption{rpatterns.WithAwaitAfter("1")},
		},
		"replay past the match": {
			poll:   never,
			match:  seqIs(1),
			opts:   []rpatterns.AwaitOption{rpatterns.WithAwaitAfter("1")},
			expErr: repyable.ErrEndOfStream,
		},
		"poll reports found": {
			poll:  func() (bool, error) { return true, nil },
			match: seqIs(100),
			open:  true,
		},
		"poll error": {
			poll:   func() (bool, error) { return false, sql.ErrNoRows },
			match:  seqIs(100),
			opts:   []rpatterns.AwaitOption{rpatterns.WithAwaitAfter("")},
			open:   true,
			expErr: sql.ErrNoRows,
		},
		"cancelled": {
			poll:   never,
			match:  seqIs(100),
			cancel: true,
			expErr: context.Canceled,
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			sess := closedSession(t, 5)
			if tc.open {
				// An empty open session keeps the listener waiting.
				var err error
				sess, err = repyable.Open(streamSchema, 0, 4)
				jtest.RequireNil(t, err)
				t.Cleanup(func() { _ = sess.Close() })
			}

			ctx, cancel := context.WithCancel(context.Background())
			if tc.cancel {
				cancel()
			} else {
				defer cancel()
			}

			opts := append([]rpatterns.AwaitOption{rpatterns.WithPollPeriod(time.Millisecond)}, tc.opts...)
			err := rpatterns.Await(ctx, sess.Stream, tc.poll, tc.match, opts...)
			jtest.Require(t, tc.expErr, err)
		})
	}
}

func TestAwaitNewEvent(t *testing.T) {
	sess, err := repyable.Open(streamSchema, 0, 16)
	jtest.RequireNil(t, err)
	t.Cleanup(func() { _ = sess.Close() })
	produceSeq(t, sess, 0, 3)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	started := make(chan struct{})
	stream := func(ctx context.Context, after string, opts ...repyable.StreamOption) (repyable.StreamClient, error) {
		defer close(started)
		return sess.Stream(ctx, after, opts...)
	}

	errc := make(chan error, 1)
	go func() {
		// seq 1 is already buffered so only the later one matches.
		errc <- rpatterns.Await(ctx, stream, nil, func(e *repyable.Event) bool {
			return e.Record["kind"].Uint() == 1
		})
	}()

	<-started
	produceSeq(t, sess, 3, 7)

	jtest.RequireNil(t, <-errc)
}

func TestAwaitIndex(t *testing.T) {
	sess, err := repyable.Open(streamSchema, 0, 16)
	jtest.RequireNil(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	errc := make(chan error, 1)
	go func() {
		errc <- rpatterns.AwaitIndex(ctx, sess.Stream, 2)
	}()

	produceSeq(t, sess, 0, 3)
	jtest.RequireNil(t, <-errc)

	// Indexes already produced return at once.
	jtest.RequireNil(t, rpatterns.AwaitIndex(ctx, sess.Stream, 0))

	jtest.RequireNil(t, sess.Close())
	jtest.Require(t, repyable.ErrEndOfStream, rpatterns.AwaitIndex(ctx, sess.Stream, 3))
}
