package rgrpc

import (
	"context"
	"time"

	"github.com/luno/jettison/errors"
	"github.com/luno/jettison/j"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/luno/repyable"
	"github.com/luno/repyable/internal/tracing"
	"github.com/luno/repyable/rbits"
)

// Client is a producer and consumer of a remote session.
type Client struct {
	conn   *grpc.ClientConn
	schema rbits.Schema
}

// Dial connects to the session served at target and fetches its schema.
// The connection is insecure unless opts provide transport credentials.
func Dial(ctx context.Context, target string, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	}, opts...)

	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "new grpc client", j.KV("target", target))
	}

	cl := &Client{conn: conn}

	schema, err := cl.fetchSchema(ctx)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	cl.schema = schema

	return cl, nil
}

func (cl *Client) fetchSchema(ctx context.Context) (rbits.Schema, error) {
	var res wrapperspb.StringValue
	if err := cl.conn.Invoke(ctx, methodSchema, &emptypb.Empty{}, &res); err != nil {
		return rbits.Schema{}, errors.Wrap(fromStatus(err), "get schema")
	}
	return rbits.ParseSchema(res.GetValue())
}

// Schema returns the schema of the remote session.
func (cl *Client) Schema() rbits.Schema {
	return cl.schema
}

// Produce encodes the record and produces it to the remote session. The
// span context of ctx is carried to the remote consumers.
func (cl *Client) Produce(ctx context.Context, rec rbits.Record) (int64, error) {
	block, err := rbits.Encode(cl.schema, rec)
	if err != nil {
		return 0, err
	}
	return cl.ProduceBlock(ctx, block)
}

// ProduceBlock produces a block encoded with the session schema.
func (cl *Client) ProduceBlock(ctx context.Context, block rbits.Block) (int64, error) {
	e := &repyable.Event{Block: block, Trace: tracing.FromContext(ctx)}

	b, err := repyable.MarshalEvent(e)
	if err != nil {
		return 0, err
	}

	var res wrapperspb.Int64Value
	if err := cl.conn.Invoke(ctx, methodProduce, wrapperspb.Bytes(b), &res); err != nil {
		return 0, fromStatus(err)
	}

	return res.GetValue(), nil
}

// Pop removes the next event from the remote session queue. It returns
// rqueue.ErrQueueClosed once the session is closed and drained.
//
// Delivery is at most once. If ctx ends or the connection drops after the
// server popped the event, the event is lost to every consumer; it remains
// available for replay from the buffer via Get and Stream.
func (cl *Client) Pop(ctx context.Context) (*repyable.Event, error) {
	var res wrapperspb.BytesValue
	if err := cl.conn.Invoke(ctx, methodPop, &emptypb.Empty{}, &res); err != nil {
		return nil, fromStatus(err)
	}
	return repyable.UnmarshalEvent(cl.schema, res.GetValue())
}

// Get returns the event at index of the remote session buffer.
func (cl *Client) Get(ctx context.Context, index int64) (*repyable.Event, error) {
	var res wrapperspb.BytesValue
	if err := cl.conn.Invoke(ctx, methodGet, wrapperspb.Int64(index), &res); err != nil {
		return nil, fromStatus(err)
	}
	return repyable.UnmarshalEvent(cl.schema, res.GetValue())
}

// Len returns the length of the remote session buffer.
func (cl *Client) Len(ctx context.Context) (int64, error) {
	var res wrapperspb.Int64Value
	if err := cl.conn.Invoke(ctx, methodLen, &emptypb.Empty{}, &res); err != nil {
		return 0, fromStatus(err)
	}
	return res.GetValue(), nil
}

// Stream implements repyable.StreamFunc over the remote session buffer.
// Stream options are not supported.
func (cl *Client) Stream(ctx context.Context, after string,
	_ ...repyable.StreamOption,
) (repyable.StreamClient, error) {
	cs, err := cl.conn.NewStream(ctx, &ServiceDesc.Streams[0], methodStream)
	if err != nil {
		return nil, fromStatus(err)
	}

	x := &grpc.GenericClientStream[wrapperspb.StringValue, wrapperspb.BytesValue]{ClientStream: cs}
	if err := x.SendMsg(wrapperspb.String(after)); err != nil {
		return nil, fromStatus(err)
	}
	if err := x.CloseSend(); err != nil {
		return nil, fromStatus(err)
	}

	return &streamClient{schema: cl.schema, cs: x}, nil
}

type streamClient struct {
	schema rbits.Schema
	cs     grpc.ServerStreamingClient[wrapperspb.BytesValue]
}

func (s *streamClient) Recv() (*repyable.Event, error) {
	pb, err := s.cs.Recv()
	if err != nil {
		return nil, fromStatus(err)
	}
	return repyable.UnmarshalEvent(s.schema, pb.GetValue())
}

// WaitForHealth blocks until the remote health check reports SERVING or
// the context ends.
func (cl *Client) WaitForHealth(ctx context.Context) error {
	hc := healthpb.NewHealthClient(cl.conn)

	backoff := 100 * time.Millisecond
	for {
		res, err := hc.Check(ctx, &healthpb.HealthCheckRequest{Service: ServiceName})
		if err == nil && res.GetStatus() == healthpb.HealthCheckResponse_SERVING {
			return nil
		}

		select {
		case <-ctx.Done():
			return errors.Wrap(ctx.Err(), "wait for health")
		case <-time.After(backoff):
		}

		if backoff < time.Second {
			backoff *= 2
		}
	}
}

func (cl *Client) Close() error {
	return cl.conn.Close()
}
