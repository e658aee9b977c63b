package rpatterns_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/luno/jettison/jtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luno/repyable"
	"github.com/luno/repyable/rbits"
	"github.com/luno/repyable/rpatterns"
)

type threadKey struct{}

func TestParallel(t *testing.T) {
	cases := []struct {
		name string
		opts []rpatterns.ParallelOption
	}{
		{name: "hash index"},
		{name: "hash field", opts: []rpatterns.ParallelOption{rpatterns.WithHashField("kind")}},
	}

	for _, test := range cases {
		t.Run(test.name, func(t *testing.T) {
			const n = 64
			sess := closedSession(t, n)

			var (
				mu     sync.Mutex
				wg     sync.WaitGroup
				seen   = make(map[int64]string)
				byKind = make(map[uint64]map[string]bool)
			)
			wg.Add(n)

			fn := func(ctx context.Context, e *repyable.Event) error {
				mu.Lock()
				defer mu.Unlock()
				defer wg.Done()

				thread := ctx.Value(threadKey{}).(string)
				_, dup := seen[e.Index]
				assert.False(t, dup, "event %d consumed twice", e.Index)
				seen[e.Index] = thread

				kind := e.Record["kind"].Uint()
				if byKind[kind] == nil {
					byKind[kind] = make(map[string]bool)
				}
				byKind[kind][thread] = true
				return nil
			}

			getCtx := func(n string) context.Context {
				return context.WithValue(context.Background(), threadKey{}, n)
			}

			rpatterns.Parallel(getCtx, "parallel_test", 4, sess.Stream,
				rpatterns.MemCursorStore(), fn, test.opts...)

			waitTimeout(t, &wg)

			require.Len(t, seen, n)
			if len(test.opts) > 0 {
				for kind, threads := range byKind {
					assert.Len(t, threads, 1, "kind %d consumed by multiple consumers", kind)
				}
			}
		})
	}
}

var streamSchema = rbits.MustSchema(
	rbits.Field{Name: "kind", Width: 3, Kind: rbits.KindUint},
	rbits.Field{Name: "seq", Width: 16, Kind: rbits.KindUint},
)

// closedSession returns a closed session holding n events.
func closedSession(t *testing.T, n int) *repyable.Session {
	t.Helper()

	sess, err := repyable.Open(streamSchema, n, n)
	jtest.RequireNil(t, err)

	ctx := context.Background()
	for i := 0; i < n; i++ {
		_, err := sess.Produce(ctx, rbits.Record{
			"kind": rbits.Uint(uint64(i % 5)),
			"seq":  rbits.Uint(uint64(i)),
		})
		jtest.RequireNil(t, err)
	}
	jtest.RequireNil(t, sess.Close())

	return sess
}

func waitTimeout(t *testing.T, wg *sync.WaitGroup) {
	t.Helper()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		require.Fail(t, "timeout waiting for consumers")
	}
}
