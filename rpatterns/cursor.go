package rpatterns

import (
	"context"
	"strconv"
	"sync"

	"github.com/luno/repyable"
)

// ReadThroughCursorStore provides a cursor store that queries the fallback
// cursor store if the cursor is not found in the primary. It always writes
// to the primary.
//
// Use cases:
//   - Migrating cursor stores: Use the new cursor store as the primary
//     and the old cursor store as the fallback. Revert to just the new
//     cursor store after the migration.
//   - Programmatic seeding of a cursor: Use a MemCursorStore with the cursor
//     seeded by WithMemCursor as the fallback and the target cursor store as the primary.
//     Revert to just the target cursor store afterwards.
func ReadThroughCursorStore(primary, fallback repyable.CursorStore) repyable.CursorStore {
	return &readThroughCursorStore{CursorStore: primary, fallback: fallback}
}

type readThroughCursorStore struct {
	repyable.CursorStore // Primary
	fallback             repyable.CursorStore
}

func (c *readThroughCursorStore) GetCursor(ctx context.Context, consumerName string,
) (string, error) {
	cursor, err := c.CursorStore.GetCursor(ctx, consumerName)
	if err != nil {
		return "", err
	}

	if cursor != "" {
		return cursor, nil
	}

	return c.fallback.GetCursor(ctx, consumerName)
}

// MemCursorStore returns an in-memory cursor store. Note that it obviously
// does not provide any persistence guarantees.
//
// Use cases:
//   - Testing
//   - Programmatic seeding of a cursor: See ReadThroughCursorStore above.
func MemCursorStore(opts ...MemOption) repyable.CursorStore {
	res := &memCursorStore{cursors: make(map[string]string)}
	for _, opt := range opts {
		opt(res)
	}
	return res
}

type memCursorStore struct {
	mu      sync.Mutex
	cursors map[string]string
}

func (m *memCursorStore) GetCursor(_ context.Context, consumerName string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cursors[consumerName], nil
}

func (m *memCursorStore) SetCursor(_ context.Context, consumerName string, cursor string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cursors[consumerName] = cursor
	return nil
}

func (m *memCursorStore) Flush(_ context.Context) error { return nil }

type MemOption func(*memCursorStore)

// WithMemCursor returns a option that stores the cursor in the
// MemCursorStore.
func WithMemCursor(name, cursor string) MemOption {
	return func(m *memCursorStore) {
		m.cursors[name] = cursor
	}
}

// WithMemCursorInt returns a option that stores the event index as cursor
// in the MemCursorStore.
func WithMemCursorInt(name string, index int64) MemOption {
	return WithMemCursor(name, strconv.FormatInt(index, 10))
}
