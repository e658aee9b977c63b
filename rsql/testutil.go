package rsql

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
)

const testConsumerName = "test_consumer"

// TestCursorsTable provides a helper function to test cursor tables
// against a real database.
func TestCursorsTable(t *testing.T, dbc *sql.DB, table CursorsTable) {
	ctx := context.Background()

	cursor, err := table.GetCursor(ctx, dbc, testConsumerName)
	assert.NoError(t, err)
	assert.Equal(t, "", cursor)

	assert.NoError(t, table.SetCursor(ctx, dbc, testConsumerName, "10"))
	assert.NoError(t, table.Flush(ctx))

	cursor, err = table.GetCursor(ctx, dbc, testConsumerName)
	assert.NoError(t, err)
	assert.Equal(t, "10", cursor)
}
