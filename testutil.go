package repyable

import (
	"context"
)

// NewMockStream returns a StreamFunc over the provided events. Stream
// options will not work with a mock stream, it just returns the events
// after the cursor followed by endErr. Purely meant for testing.
func NewMockStream(events []*Event, endErr error) StreamFunc {
	return func(ctx context.Context, after string, opts ...StreamOption) (StreamClient, error) {
		from, err := ParseCursor(after)
		if err != nil {
			return nil, err
		}
		return &mockstreamclient{events: events, endError: endErr, from: from}, nil
	}
}

type mockstreamclient struct {
	events   []*Event
	endError error
	from     int64
}

func (m *mockstreamclient) Recv() (*Event, error) {
	for {
		if len(m.events) == 0 {
			return nil, m.endError
		}

		e := m.events[0]
		m.events = m.events[1:]

		if e.Index >= m.from {
			return e, nil
		}
	}
}
