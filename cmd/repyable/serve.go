package main

import (
	"context"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/luno/jettison/errors"
	"github.com/luno/jettison/j"
	"github.com/luno/jettison/log"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	// Register the snapshot bucket drivers.
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/s3blob"

	"github.com/luno/repyable"
	"github.com/luno/repyable/rbits"
	"github.com/luno/repyable/rblob"
	"github.com/luno/repyable/rgrpc"
)

func newServeCommand(cfg *config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve a session over grpc",
		Long: `Serve opens a session of the schema and serves it over grpc until
interrupted. On shutdown the session is closed and, if a snapshot url is
configured, the buffer is written to the snapshot bucket.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			l, err := net.Listen("tcp", cfg.Addr)
			if err != nil {
				return errors.Wrap(err, "listen", j.KS("addr", cfg.Addr))
			}

			return serve(ctx, *cfg, l)
		},
	}

	fs := cmd.Flags()
	fs.StringVar(&cfg.Schema, "schema", cfg.Schema, `Record schema, ex. "flag:1:bool,value:7:uint"`)
	fs.StringVar(&cfg.Name, "name", cfg.Name, "Session name used for metrics, defaults to the session id")
	fs.IntVar(&cfg.BufferHint, "buffer-hint", cfg.BufferHint, "Expected number of events")
	fs.IntVar(&cfg.QueueCapacity, "queue-capacity", cfg.QueueCapacity, "Queue capacity")
	fs.StringVar(&cfg.SnapshotURL, "snapshot-url", cfg.SnapshotURL, "Bucket url for snapshots, ex. file:///tmp/snaps or s3://bucket")
	fs.StringVar(&cfg.SnapshotKey, "snapshot-key", cfg.SnapshotKey, "Snapshot key, defaults to the session name and time")
	fs.StringVar(&cfg.RestorePrefix, "restore-prefix", cfg.RestorePrefix, "Restore snapshots under this prefix on start")
	fs.StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "Serve prometheus metrics on this address")

	return cmd
}

// serve serves a new session on the listener until ctx is done.
func serve(ctx context.Context, cfg config, l net.Listener) error {
	schema, err := rbits.ParseSchema(cfg.Schema)
	if err != nil {
		return errors.Wrap(err, "schema")
	}

	var opts []repyable.SessionOption
	if cfg.Name != "" {
		opts = append(opts, repyable.WithName(cfg.Name))
	}

	sess, err := repyable.Open(schema, cfg.BufferHint, cfg.QueueCapacity, opts...)
	if err != nil {
		return err
	}

	var bucket *rblob.Bucket
	if cfg.SnapshotURL != "" {
		bucket, err = rblob.OpenBucket(ctx, sess.Name(), cfg.SnapshotURL)
		if err != nil {
			return errors.Wrap(err, "open snapshot bucket")
		}
		defer bucket.Close()
	}

	if cfg.RestorePrefix != "" {
		if bucket == nil {
			return errors.New("restore requires a snapshot url")
		}
		n, err := bucket.RestoreAll(ctx, cfg.RestorePrefix, schema, sess.Buffer())
		if err != nil {
			return errors.Wrap(err, "restore")
		}
		log.Info(ctx, "restored snapshots", j.MKV{"prefix": cfg.RestorePrefix, "events": n})
	}

	grpcServer := grpc.NewServer()
	srv := rgrpc.NewServer(sess)
	rgrpc.Register(grpcServer, srv)

	hs := health.NewServer()
	hs.SetServingStatus(rgrpc.ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(grpcServer, hs)

	eg, ctx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		log.Info(ctx, "serving session", j.MKV{"addr": l.Addr().String(), "session": sess.Name()})
		return grpcServer.Serve(l)
	})

	var metricsServer *http.Server
	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsServer = &http.Server{Addr: cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

		eg.Go(func() error {
			err := metricsServer.ListenAndServe()
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return errors.Wrap(err, "metrics server")
		})
	}

	eg.Go(func() error {
		<-ctx.Done()

		hs.Shutdown()
		srv.Stop()
		if err := sess.Close(); err != nil {
			return err
		}
		grpcServer.GracefulStop()

		if metricsServer != nil {
			_ = metricsServer.Close()
		}

		if bucket == nil {
			return nil
		}

		key := cfg.SnapshotKey
		if key == "" {
			key = sess.Name() + "/" + time.Now().UTC().Format("20060102T150405Z")
		}
		_, err := bucket.Snapshot(context.Background(), key, schema, sess.Buffer())
		return err
	})

	err = eg.Wait()
	if errors.IsAny(err, context.Canceled, grpc.ErrServerStopped) {
		return nil
	}
	return err
}
