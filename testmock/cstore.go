package testmock

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/luno/repyable"
)

var _ repyable.CursorStore = (*CursorStore)(nil)

// CursorStore is a testify mock of repyable.CursorStore.
type CursorStore struct {
	mock.Mock
}

func (m *CursorStore) GetCursor(ctx context.Context, consumerName string) (string, error) {
	args := m.Called(ctx, consumerName)
	return args.String(0), args.Error(1)
}

func (m *CursorStore) SetCursor(ctx context.Context, consumerName string, cursor string) error {
	args := m.Called(ctx, consumerName, cursor)
	return args.Error(0)
}

func (m *CursorStore) Flush(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
