package testmock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/luno/repyable"
)

// AwaitTimeout bounds how long AwaitConsumer waits.
var AwaitTimeout = 15 * time.Second

// AwaitConsumer fails the test unless the cursor stored for consumerName
// reaches index within AwaitTimeout.
func AwaitConsumer(t testing.TB, cs repyable.CursorStore, consumerName string, index int64) {
	t.Helper()

	reached := func() bool {
		cursor, err := cs.GetCursor(context.Background(), consumerName)
		if err != nil {
			return false
		}

		next, err := repyable.ParseCursor(cursor)
		if err != nil {
			return false
		}

		// An empty cursor parses to 0, same as cursor "-1".
		return cursor != "" && next > index
	}

	require.Eventuallyf(t, reached, AwaitTimeout, 5*time.Millisecond,
		"consumer %s did not reach index %d", consumerName, index)
}
