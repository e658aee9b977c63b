package repyable

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/luno/repyable/internal/metrics"
	"github.com/luno/repyable/internal/tracing"
)

const defaultLagAlert = 10_000
const defaultActivityTTL = 24 * time.Hour

type consumer struct {
	fn          func(context.Context, *Event) error
	name        string
	lagAlert    int64
	activityTTL time.Duration

	lagGauge      prometheus.Gauge
	lagAlertGauge prometheus.Gauge
	errorCounter  prometheus.Counter
	latencyHist   prometheus.Observer
	activityKey   string
}

type ConsumerOption func(*consumer)

// WithConsumerLagAlert provides an option to set the consumer lag alert
// threshold in events. Setting it to -1 disables the alert.
func WithConsumerLagAlert(events int64) ConsumerOption {
	return func(c *consumer) {
		c.lagAlert = events
	}
}

// WithConsumerActivityTTL provides an option to set the consumer activity
// metric ttl; ie. if no events is consumed in `tll` duration the consumer
// is considered inactive. Setting it to -1 disables the activity metric.
func WithConsumerActivityTTL(ttl time.Duration) ConsumerOption {
	return func(c *consumer) {
		c.activityTTL = ttl
	}
}

// NewConsumer returns a new instrumented consumer of events. Events carrying
// a producer trace are consumed with the remote span context loaded.
func NewConsumer(name string, fn func(context.Context, *Event) error,
	opts ...ConsumerOption,
) Consumer {
	labels := metrics.Labels(name)

	c := &consumer{
		fn:            fn,
		name:          name,
		lagAlert:      defaultLagAlert,
		activityTTL:   defaultActivityTTL,
		lagGauge:      metrics.ConsumerLag.With(labels),
		lagAlertGauge: metrics.ConsumerLagAlert.With(labels),
		errorCounter:  metrics.ConsumerErrors.With(labels),
		latencyHist:   metrics.ConsumerLatency.With(labels),
	}

	for _, o := range opts {
		o(c)
	}

	c.activityKey = metrics.ConsumerActivityGauge.Register(labels, c.activityTTL)

	return c
}

func (c *consumer) Name() string {
	return c.name
}

func (c *consumer) Consume(ctx context.Context, event *Event) error {
	t0 := time.Now()

	metrics.ConsumerActivityGauge.SetActive(c.activityKey)

	lag := event.Lag()
	c.lagGauge.Set(float64(lag))

	alert := 0.0
	if lag > c.lagAlert && c.lagAlert > 0 {
		alert = 1
	}
	c.lagAlertGauge.Set(alert)

	ctx = tracing.WithEventTrace(ctx, event.Trace)

	err := c.fn(ctx, event)
	if err != nil {
		c.errorCounter.Inc()
	}

	c.latencyHist.Observe(time.Since(t0).Seconds())

	return err
}
