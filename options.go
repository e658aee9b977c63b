package repyable

// StreamOptions provide options sent to the event stream source.
type StreamOptions struct {
	// StreamFromHead defines that the initial event be retrieved
	// from the head of the buffer.
	StreamFromHead bool

	// StreamToHead defines that ErrHeadReached be returned as soon as
	// no more events are available.
	StreamToHead bool
}

// StreamOption defines a functional option that configures StreamOptions.
type StreamOption func(*StreamOptions)

// WithStreamFromHead provides an option to stream only new events from
// the head of the buffer. Note this overrides the "after" parameter.
func WithStreamFromHead() StreamOption {
	return func(sc *StreamOptions) {
		sc.StreamFromHead = true
	}
}

// WithStreamToHead provides an option to return ErrHeadReached as soon as
// the stream reaches the buffer length at the time it was started.
func WithStreamToHead() StreamOption {
	return func(sc *StreamOptions) {
		sc.StreamToHead = true
	}
}

func resolveOptions(opts []StreamOption) StreamOptions {
	var o StreamOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithName provides an option to set the session name used in logs and
// metric labels. It defaults to the session ID. The session's metric
// series are deleted on Close, so names should be unique among open sessions.
func WithName(name string) SessionOption {
	return func(s *Session) {
		s.name = name
	}
}
