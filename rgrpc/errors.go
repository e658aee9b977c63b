package rgrpc

import (
	"context"

	"github.com/luno/jettison/errors"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/luno/repyable"
	"github.com/luno/repyable/rbits"
	"github.com/luno/repyable/rbuffer"
	"github.com/luno/repyable/rqueue"
)

// sentinels are the errors that survive a round trip over grpc. The status
// message is the sentinel's message so the client can map it back.
var sentinels = []struct {
	err  error
	code codes.Code
}{
	{rqueue.ErrQueueClosed, codes.OutOfRange},
	{repyable.ErrEndOfStream, codes.OutOfRange},
	{repyable.ErrHeadReached, codes.OutOfRange},
	{rbuffer.ErrIndexOutOfRange, codes.NotFound},
	{repyable.ErrSessionClosed, codes.FailedPrecondition},
	{repyable.ErrStopped, codes.Unavailable},
	{rbits.ErrFieldOverflow, codes.InvalidArgument},
	{rbits.ErrFieldKind, codes.InvalidArgument},
	{rbits.ErrMissingField, codes.InvalidArgument},
	{rbits.ErrUnknownField, codes.InvalidArgument},
	{rbits.ErrTruncatedBlock, codes.InvalidArgument},
	{rbits.ErrInvalidSchema, codes.InvalidArgument},
	{rbits.ErrFrameTooLarge, codes.InvalidArgument},
}

// toStatus converts session errors into grpc status errors.
func toStatus(err error) error {
	if err == nil {
		return nil
	}

	for _, s := range sentinels {
		if errors.Is(err, s.err) {
			return status.Error(s.code, s.err.Error())
		}
	}

	if errors.IsAny(err, context.Canceled, context.DeadlineExceeded) {
		return status.FromContextError(err).Err()
	}

	return err
}

// fromStatus converts grpc status errors back into session errors.
func fromStatus(err error) error {
	if err == nil {
		return nil
	}

	st, ok := status.FromError(err)
	if !ok {
		return err
	}

	for _, s := range sentinels {
		if st.Code() == s.code && st.Message() == s.err.Error() {
			return s.err
		}
	}

	return err
}
