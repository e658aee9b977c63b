package rpatterns

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/luno/jettison/errors"
	"github.com/luno/jettison/jtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luno/repyable"
)

type consumerFunc struct {
	name string
	fn   func(context.Context, *repyable.Event) error
}

func (c consumerFunc) Name() string { return c.name }

func (c consumerFunc) Consume(ctx context.Context, e *repyable.Event) error {
	if c.fn == nil {
		return nil
	}
	return c.fn(ctx, e)
}

func requireCursor(t *testing.T, cs repyable.CursorStore, name, exp string) {
	t.Helper()
	cursor, err := cs.GetCursor(context.Background(), name)
	jtest.RequireNil(t, err)
	require.Equal(t, exp, cursor)
}

func TestConcurrentCursor(t *testing.T) {
	cases := map[string]struct {
		limit   int
		skip    map[int64]bool
		fail    int64
		exp     string
		expFail bool
	}{
		"default limit": {
			exp:  "299",
			fail: -1,
		},
		"single slot": {
			limit: 1,
			exp:   "299",
			fail:  -1,
		},
		"indexes not streamed are not waited for": {
			limit: 8,
			skip:  map[int64]bool{0: true, 70: true, 71: true},
			exp:   "299",
			fail:  -1,
		},
		"failure holds the cursor": {
			limit:   4,
			fail:    120,
			exp:     "119",
			expFail: true,
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			cs := MemCursorStore()
			errFail := errors.New("fail")

			cc := NewConcurrentConsumer(cs, consumerFunc{name: "cc", fn: func(_ context.Context, e *repyable.Event) error {
				if e.Index == tc.fail {
					return errFail
				}
				return nil
			}}, tc.limit)
			jtest.RequireNil(t, cc.Reset(ctx))

			var failed error
			for i := int64(0); i < 300; i++ {
				if tc.skip[i] {
					continue
				}
				if failed = cc.Consume(ctx, &repyable.Event{Index: i}); failed != nil {
					break
				}
			}
			jtest.RequireNil(t, cc.Stop())

			if tc.expFail {
				if failed == nil {
					failed = cc.Consume(ctx, &repyable.Event{Index: 300})
				}
				jtest.Require(t, errFail, failed)
			} else {
				jtest.RequireNil(t, failed)
			}
			requireCursor(t, cs, "cc", tc.exp)
		})
	}
}

func TestConcurrentOutOfOrder(t *testing.T) {
	ctx := context.Background()
	cs := MemCursorStore()

	release := make(chan struct{})
	var done atomic.Int32
	cc := NewConcurrentConsumer(cs, consumerFunc{name: "ooo", fn: func(_ context.Context, e *repyable.Event) error {
		if e.Index == 0 {
			<-release
		}
		done.Add(1)
		return nil
	}}, 5)
	jtest.RequireNil(t, cc.Reset(ctx))

	for i := int64(0); i < 5; i++ {
		jtest.RequireNil(t, cc.Consume(ctx, &repyable.Event{Index: i}))
	}

	require.Eventually(t, func() bool { return done.Load() == 4 }, time.Second, time.Millisecond)
	requireCursor(t, cs, "ooo", "")

	close(release)
	jtest.RequireNil(t, cc.Stop())
	requireCursor(t, cs, "ooo", "4")
}

func TestConcurrentLimitHonoursContext(t *testing.T) {
	cs := MemCursorStore()

	block := make(chan struct{})
	cc := NewConcurrentConsumer(cs, consumerFunc{name: "full", fn: func(context.Context, *repyable.Event) error {
		<-block
		return nil
	}}, 1)
	jtest.RequireNil(t, cc.Reset(context.Background()))
	jtest.RequireNil(t, cc.Consume(context.Background(), &repyable.Event{Index: 0}))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	jtest.Require(t, context.DeadlineExceeded, cc.Consume(ctx, &repyable.Event{Index: 1}))

	close(block)
	jtest.RequireNil(t, cc.Stop())
	requireCursor(t, cs, "full", "0")
}

func TestConcurrentResetClearsFailure(t *testing.T) {
	ctx := context.Background()
	cs := MemCursorStore()

	var healthy atomic.Bool
	errDown := errors.New("downstream unavailable")
	cc := NewConcurrentConsumer(cs, consumerFunc{name: "reset", fn: func(context.Context, *repyable.Event) error {
		if !healthy.Load() {
			return errDown
		}
		return nil
	}}, 10)

	jtest.RequireNil(t, cc.Reset(ctx))
	jtest.RequireNil(t, cc.Consume(ctx, &repyable.Event{Index: 0}))
	jtest.RequireNil(t, cc.Stop())
	jtest.Require(t, errDown, cc.Consume(ctx, &repyable.Event{Index: 1}))

	healthy.Store(true)
	jtest.RequireNil(t, cc.Reset(ctx))
	jtest.RequireNil(t, cc.Consume(ctx, &repyable.Event{Index: 0}))
	jtest.RequireNil(t, cc.Stop())
	requireCursor(t, cs, "reset", "0")
}

func TestConcurrentSpec(t *testing.T) {
	sess, err := repyable.Open(testSchema, 0, 128)
	jtest.RequireNil(t, err)

	ctx := context.Background()
	for i := 0; i < 50; i++ {
		_, err := sess.Produce(ctx, testRecord(uint64(i)))
		jtest.RequireNil(t, err)
	}
	jtest.RequireNil(t, sess.Close())

	var sum atomic.Uint64
	cs := MemCursorStore()
	cc := NewConcurrentConsumer(cs, consumerFunc{name: "spec", fn: func(_ context.Context, e *repyable.Event) error {
		sum.Add(e.Record["value"].Uint())
		return nil
	}}, 8)

	spec := NewConcurrentSpec(sess.Stream, cc)
	jtest.Require(t, repyable.ErrEndOfStream, repyable.Run(ctx, spec))
	jtest.RequireNil(t, spec.Stop())

	assert.Equal(t, uint64(49*50/2), sum.Load())
	requireCursor(t, cs, "spec", "49")
}
