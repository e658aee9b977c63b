// Package grpctest serves sessions over loopback gRPC for tests.
package grpctest

import (
	"context"
	"fmt"
	"net"
	"testing"

	"github.com/luno/jettison/errors"
	"github.com/luno/jettison/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/luno/repyable"
	"github.com/luno/repyable/rgrpc"
)

// NewServer starts serving the session on a loopback port and returns the
// server and its address. The server is stopped on test cleanup.
func NewServer(t testing.TB, sess *repyable.Session) (*Server, string) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		panic(fmt.Sprintf("net.Listen error: %v", err))
	}

	grpcServer := grpc.NewServer()

	srv := &Server{
		Server:      rgrpc.NewServer(sess),
		grpcServer:  grpcServer,
		sentCounter: prometheus.NewCounter(prometheus.CounterOpts{Name: "sent_total"}),
	}

	rgrpc.Register(grpcServer, srv)

	hs := health.NewServer()
	hs.SetServingStatus(rgrpc.ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(grpcServer, hs)

	go func() {
		err := grpcServer.Serve(l)
		if err != nil {
			log.Error(context.Background(), errors.Wrap(err, "grpcServer.Serve error"))
		}
	}()

	t.Cleanup(srv.Stop)

	return srv, l.Addr().String()
}

// Server wraps rgrpc.Server counting streamed events.
type Server struct {
	*rgrpc.Server
	grpcServer  *grpc.Server
	sentCounter prometheus.Counter
	stopped     bool
}

func (srv *Server) Stream(req *wrapperspb.StringValue,
	ss grpc.ServerStreamingServer[wrapperspb.BytesValue],
) error {
	return srv.Server.Stream(req, &counter{ss, srv.sentCounter})
}

func (srv *Server) SentCount() float64 {
	return testutil.ToFloat64(srv.sentCounter)
}

// Stop stops the server, it is idempotent.
func (srv *Server) Stop() {
	if srv.stopped {
		return
	}
	srv.stopped = true
	srv.Server.Stop()
	srv.grpcServer.GracefulStop()
}

type counter struct {
	grpc.ServerStreamingServer[wrapperspb.BytesValue]
	counter prometheus.Counter
}

func (c *counter) Send(e *wrapperspb.BytesValue) error {
	c.counter.Inc()
	return c.ServerStreamingServer.Send(e)
}
