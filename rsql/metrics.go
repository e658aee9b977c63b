package rsql

import "github.com/prometheus/client_golang/prometheus"

var (
	cursorWritesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "repyable",
		Subsystem: "cursors_table",
		Name:      "writes_total",
		Help:      "Number of cursor writes issued per table",
	}, []string{"table"})

	cursorStaleTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "repyable",
		Subsystem: "cursors_table",
		Name:      "stale_writes_total",
		Help:      "Number of cursor writes rejected because the stored index was not lower",
	}, []string{"table"})

	cursorFlushErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "repyable",
		Subsystem: "cursors_table",
		Name:      "flush_errors_total",
		Help:      "Number of failed background cursor flushes per table",
	}, []string{"table"})

	cursorsPending = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "repyable",
		Subsystem: "cursors_table",
		Name:      "pending",
		Help:      "Number of async cursors waiting for the next flush per table",
	}, []string{"table"})
)

func init() {
	prometheus.MustRegister(cursorWritesTotal, cursorStaleTotal, cursorFlushErrorsTotal, cursorsPending)
}
