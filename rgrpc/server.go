// Package rgrpc exposes a repyable session to other processes over gRPC.
package rgrpc

import (
	"context"
	"io"

	"github.com/luno/jettison/errors"
	"github.com/luno/jettison/j"
	"github.com/luno/jettison/log"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/luno/repyable"
	"github.com/luno/repyable/internal/tracing"
)

var _ SessionServer = (*Server)(nil)

// NewServer returns a new server of the session.
func NewServer(sess *repyable.Session) *Server {
	return &Server{
		sess: sess,
		stop: make(chan struct{}),
	}
}

// Server serves a session for use in a gRPC server.
type Server struct {
	sess *repyable.Session
	stop chan struct{}
}

// Stop stops serving streams returning ErrStopped. It should be used for
// graceful shutdown. It panics if called more than once.
func (s *Server) Stop() {
	close(s.stop)
}

func (s *Server) maybeErrStopped() error {
	select {
	case <-s.stop:
		return repyable.ErrStopped
	default:
		return nil
	}
}

func (s *Server) Schema(context.Context, *emptypb.Empty) (*wrapperspb.StringValue, error) {
	return wrapperspb.String(s.sess.Schema().String()), nil
}

// Produce produces the block of the envelope. The producer's trace, if
// any, is loaded into the context so it is carried to consumers.
func (s *Server) Produce(ctx context.Context, req *wrapperspb.BytesValue) (*wrapperspb.Int64Value, error) {
	if err := s.maybeErrStopped(); err != nil {
		return nil, toStatus(err)
	}

	e, err := repyable.UnmarshalEvent(s.sess.Schema(), req.GetValue())
	if err != nil {
		return nil, toStatus(err)
	}

	ctx = tracing.WithEventTrace(ctx, e.Trace)

	index, err := s.sess.ProduceBlock(ctx, e.Block)
	if err != nil {
		return nil, toStatus(err)
	}

	return wrapperspb.Int64(index), nil
}

// Pop pops the next event for the calling client. Delivery is at most once:
// an event is not popped for a call that has already ended, but one popped
// just as the call ends is lost. Such events are logged and counted.
func (s *Server) Pop(in context.Context, _ *emptypb.Empty) (*wrapperspb.BytesValue, error) {
	if err := s.maybeErrStopped(); err != nil {
		return nil, toStatus(err)
	}
	if err := in.Err(); err != nil {
		return nil, toStatus(err)
	}

	ctx, cancel := context.WithCancel(in)
	defer cancel()
	go func() {
		select {
		case <-s.stop:
			cancel()
		case <-ctx.Done():
		}
	}()

	e, err := s.sess.Pop(ctx)
	if err != nil {
		if s.maybeErrStopped() != nil {
			err = repyable.ErrStopped
		}
		return nil, toStatus(err)
	}

	if err := in.Err(); err != nil {
		popUndeliveredCounter.WithLabelValues(s.sess.Name()).Inc()
		log.Error(in, errors.Wrap(err, "popped event not delivered",
			j.MKV{"session": s.sess.Name(), "event_index": e.Index}))
		return nil, toStatus(err)
	}

	return marshal(e)
}

func (s *Server) Get(_ context.Context, req *wrapperspb.Int64Value) (*wrapperspb.BytesValue, error) {
	e, err := s.sess.Get(req.GetValue())
	if err != nil {
		return nil, toStatus(err)
	}
	return marshal(e)
}

func (s *Server) Len(context.Context, *emptypb.Empty) (*wrapperspb.Int64Value, error) {
	return wrapperspb.Int64(s.sess.Len()), nil
}

// Stream streams the session buffer after the requested cursor until the
// session is closed and drained, the client cancels or the server is stopped.
// Note that back pressure is achieved by gRPC Streams' 64KB send and receive buffers.
func (s *Server) Stream(req *wrapperspb.StringValue,
	ss grpc.ServerStreamingServer[wrapperspb.BytesValue],
) error {
	if err := s.maybeErrStopped(); err != nil {
		return toStatus(err)
	}

	ctx, cancel := context.WithCancel(ss.Context())
	defer cancel()

	stopper := func() error {
		return awaitStop(ctx, s.stop)
	}

	streamer := func() error {
		sc, err := s.sess.Stream(ctx, req.GetValue())
		if err != nil {
			return err
		}
		return serveStream(ctx, ss, sc)
	}

	var err error
	select {
	case err = <-goChan(stopper):
	case err = <-goChan(streamer):
	}
	return toStatus(err)
}

// serveStream sends the events from StreamClient to the grpc stream.
// It always returns a non-nil error.
func serveStream(ctx context.Context, ss grpc.ServerStreamingServer[wrapperspb.BytesValue],
	sc repyable.StreamClient,
) error {
	// Ensure close if stream client is a closer.
	if closer, ok := sc.(io.Closer); ok {
		defer closer.Close()
	}

	for {
		if ctx.Err() != nil {
			return errors.Wrap(ctx.Err(), "context error")
		}

		e, err := sc.Recv()
		if err != nil {
			return errors.Wrap(err, "recv error")
		}

		pb, err := marshal(e)
		if err != nil {
			return err
		}

		if err := ss.Send(pb); err != nil {
			return errors.Wrap(err, "send error")
		}
	}
}

func marshal(e *repyable.Event) (*wrapperspb.BytesValue, error) {
	b, err := repyable.MarshalEvent(e)
	if err != nil {
		return nil, toStatus(err)
	}
	return wrapperspb.Bytes(b), nil
}

func goChan(f func() error) <-chan error {
	ch := make(chan error, 1)
	go func() {
		ch <- f() // will never block since buffered
		close(ch)
	}()
	return ch
}

func awaitStop(ctx context.Context, stop <-chan struct{}) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-stop:
		return repyable.ErrStopped
	}
}
