package metrics

import (
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	consumerLabel = "consumer_name"
	sessionLabel  = "session_name"
)

// Labels returns the prometheus labels for the consumer
func Labels(name string) prometheus.Labels {
	return prometheus.Labels{consumerLabel: name}
}

// SessionLabels returns the prometheus labels for the session
func SessionLabels(name string) prometheus.Labels {
	return prometheus.Labels{sessionLabel: name}
}

// DeleteSession removes the series of the named session from every session
// collector.
func DeleteSession(name string) {
	labels := SessionLabels(name)
	ProducedTotal.Delete(labels)
	PoppedTotal.Delete(labels)
	BufferLength.Delete(labels)
	QueueDepth.Delete(labels)
	PushWait.Delete(labels)
}

var (
	// ProducedTotal is the number of events appended to a session
	ProducedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "repyable",
		Subsystem: "session",
		Name:      "produced_total",
		Help:      "Number of events produced to the session",
	}, []string{sessionLabel})

	// PoppedTotal is the number of events taken from a session queue
	PoppedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "repyable",
		Subsystem: "session",
		Name:      "popped_total",
		Help:      "Number of events popped from the session queue",
	}, []string{sessionLabel})

	// BufferLength is the number of events held by a session buffer
	BufferLength = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "repyable",
		Subsystem: "session",
		Name:      "buffer_length",
		Help:      "Number of events in the session buffer",
	}, []string{sessionLabel})

	// QueueDepth is the number of events waiting in a session queue
	QueueDepth = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "repyable",
		Subsystem: "session",
		Name:      "queue_depth",
		Help:      "Number of events waiting in the session queue",
	}, []string{sessionLabel})

	// PushWait is how long producers are blocked on a full queue
	PushWait = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "repyable",
		Subsystem: "session",
		Name:      "push_wait_seconds",
		Help:      "Time spent pushing an event to the session queue in seconds",
		Buckets:   []float64{0.0001, 0.001, 0.01, 0.1, 1.0, 5.0, 30.0},
	}, []string{sessionLabel})

	// ConsumerLag is a metric for how far behind the consumer is
	// based on the last consumed event
	ConsumerLag = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "repyable",
		Subsystem: "consumer",
		Name:      "lag_events",
		Help:      "Number of events between the current event and the buffer head",
	}, []string{consumerLabel})

	// ConsumerLagAlert is whether or not the consumer is too far behind
	ConsumerLagAlert = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "repyable",
		Subsystem: "consumer",
		Name:      "lag_alert",
		Help:      "Whether or not the consumer lag crosses its alert threshold",
	}, []string{consumerLabel})

	// ConsumerActivityGauge is whether or not the consumer has processed an event
	ConsumerActivityGauge = newActivityGauge(
		prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "repyable",
			Subsystem: "consumer",
			Name:      "active",
			Help: "Whether or not the consumer was active (consumed an event) " +
				"in the activity ttl period",
		}, []string{consumerLabel}))

	// ConsumerLatency is how long the consumer is taking to process an event
	ConsumerLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "repyable",
		Subsystem: "consumer",
		Name:      "latency_seconds",
		Help:      "Event loop latency in seconds",
		Buckets:   []float64{0.001, 0.01, 0.1, 1.0, 2.0, 5.0, 10.0, 30.0, 60.0, 120.0, 300.0},
	}, []string{consumerLabel})

	// ConsumerErrors is the number of errors from processing events
	ConsumerErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "repyable",
		Subsystem: "consumer",
		Name:      "error_count",
		Help:      "Number of errors processing events",
	}, []string{consumerLabel})
)

func init() {
	prometheus.MustRegister(
		ProducedTotal,
		PoppedTotal,
		BufferLength,
		QueueDepth,
		PushWait,
		ConsumerLag,
		ConsumerLagAlert,
		ConsumerActivityGauge,
		ConsumerLatency,
		ConsumerErrors,
	)
}

func newActivityGauge(g *prometheus.GaugeVec) *activityGauge {
	return &activityGauge{
		gv:     g,
		states: make(map[string]state),
	}
}

// activityGauge reports whether a consumer was recently active.
// The gauge value is computed at collection time from the last tick.
type activityGauge struct {
	gv     *prometheus.GaugeVec
	mu     sync.Mutex
	states map[string]state
}

type state struct {
	labels prometheus.Labels
	tick   time.Time
	ttl    time.Duration
}

// Register adds the labels with a ttl, marks them active and returns their key.
func (g *activityGauge) Register(labels prometheus.Labels, ttl time.Duration) string {
	key := labelsToKey(labels)

	g.mu.Lock()
	defer g.mu.Unlock()

	g.states[key] = state{
		labels: labels,
		ttl:    ttl,
		tick:   time.Now(),
	}
	return key
}

// SetActive ticks the consumer key as active.
func (g *activityGauge) SetActive(key string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	s, ok := g.states[key]
	if !ok {
		return
	}
	s.tick = time.Now()
	g.states[key] = s
}

// Unregister removes the key so it is no longer reported.
func (g *activityGauge) Unregister(key string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	s, ok := g.states[key]
	if !ok {
		return
	}
	g.gv.Delete(s.labels)
	delete(g.states, key)
}

func (g *activityGauge) Describe(ch chan<- *prometheus.Desc) {
	g.gv.Describe(ch)
}

func (g *activityGauge) Collect(ch chan<- prometheus.Metric) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, s := range g.states {
		if s.ttl < 0 {
			continue
		}
		v := 0.0
		if time.Since(s.tick) < s.ttl {
			v = 1
		}
		g.gv.With(s.labels).Set(v)
	}
	g.gv.Collect(ch)
}

func labelsToKey(labels prometheus.Labels) string {
	s := strings.Builder{}
	for k, v := range labels {
		s.WriteString(k)
		s.Write([]byte{255})
		s.WriteString(v)
		s.Write([]byte{255})
	}
	return s.String()
}
