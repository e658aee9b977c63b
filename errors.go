package repyable

import (
	"context"

	"github.com/luno/jettison/errors"
	"github.com/luno/jettison/j"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/luno/repyable/rqueue"
)

var (
	// ErrEndOfStream is returned by replay consumers that caught up with a closed session.
	ErrEndOfStream = errors.New("end of stream", j.C("ERR_5a0e9c17d3b24f68"))

	// ErrSessionClosed is returned when producing to or registering with a closed session.
	ErrSessionClosed = errors.New("session closed", j.C("ERR_c41d7f2e08a96b35"))

	ErrUnknownConsumer = errors.New("unknown consumer", j.C("ERR_9b36e0a4f5c1d287"))

	// ErrHeadReached is returned by streams created with WithStreamToHead
	// once they reach the buffer length at the time of creation.
	ErrHeadReached = errors.New("the event stream has reached the current head", j.C("ERR_b4b155d2a91cfcd0"))

	// ErrStopped is returned when a remote session stops serving, usually
	// when the grpc server is stopped. Clients should check for this error
	// and reconnect.
	ErrStopped = errors.New("the event stream has been stopped", j.C("ERR_09290f5944cb8671"))
)

// IsExpected returns true if the error is expected during normal streaming
// operation: context cancellation, a stopped server, or the end of a closed
// session.
func IsExpected(err error) bool {
	if errors.IsAny(err, context.Canceled, context.DeadlineExceeded,
		ErrStopped, ErrEndOfStream, ErrHeadReached, rqueue.ErrQueueClosed) {
		return true
	}

	// Check if err is a grpc status with a context error code.
	cd := status.Code(err)
	return cd == codes.Canceled || cd == codes.DeadlineExceeded
}
