package rsql

import (
	"context"
	"testing"
	"time"

	"github.com/luno/jettison/jtest"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/require"
)

//go:generate go test . -run TestQueries -update -clean

func TestQueries(t *testing.T) {
	schema := ctableSchema{
		name:        "cursors",
		cursorField: defaultCursorField,
		idField:     defaultIDField,
		timeField:   defaultTimeField,
	}

	g := goldie.New(t)
	g.Assert(t, "select", []byte(schema.selectQuery()))
	g.Assert(t, "update", []byte(schema.updateQuery()))
	g.Assert(t, "insert", []byte(schema.insertQuery()))
	g.Assert(t, "create", []byte(schema.createQuery()))
}

func TestParseCursor(t *testing.T) {
	c, err := parseCursor("0")
	jtest.RequireNil(t, err)
	require.Equal(t, int64(0), c)

	c, err = parseCursor("1234")
	jtest.RequireNil(t, err)
	require.Equal(t, int64(1234), c)

	for _, s := range []string{"", "x", "-2", "1.5"} {
		_, err := parseCursor(s)
		jtest.Require(t, ErrInvalidCursor, err)
	}
}

func TestClone(t *testing.T) {
	orig := NewCursorsTable("cursors", WithCursorField("last_id")).(*ctable)
	clone := orig.Clone(WithCursorAsyncDisabled(), WithCursorTimeField("ts")).(*ctable)

	require.Equal(t, "last_id", clone.schema.cursorField)
	require.Equal(t, "ts", clone.schema.timeField)
	require.Equal(t, defaultTimeField, orig.schema.timeField)
	require.False(t, clone.isAsyncEnabled())
	require.True(t, orig.isAsyncEnabled())
}

func TestAsyncCursorsPending(t *testing.T) {
	ctx := context.Background()
	// The background flusher never wakes up.
	table := NewCursorsTable("pending_cursors",
		WithTestCursorSleep(t, func(time.Duration) { select {} }))

	jtest.RequireNil(t, table.SetCursor(ctx, nil, "a", "3"))
	jtest.RequireNil(t, table.SetCursor(ctx, nil, "b", "4"))
	jtest.RequireNil(t, table.SetCursor(ctx, nil, "a", "5"))
	require.Equal(t, 2.0, testutil.ToFloat64(cursorsPending.WithLabelValues("pending_cursors")))

	jtest.Require(t, ErrInvalidCursor, table.SetCursor(ctx, nil, "c", "-1"))
	require.Equal(t, 2.0, testutil.ToFloat64(cursorsPending.WithLabelValues("pending_cursors")))
}
