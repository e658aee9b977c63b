package rpatterns

import "github.com/prometheus/client_golang/prometheus"

var (
	queueWorkersBusy = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "repyable",
		Subsystem: "rpatterns",
		Name:      "queue_workers_busy",
		Help:      "Number of queue workers currently handling an event",
	}, []string{"pool_name"})

	queueHandledTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "repyable",
		Subsystem: "rpatterns",
		Name:      "queue_handled_total",
		Help:      "Number of events handled by queue workers",
	}, []string{"pool_name", "result"})

	bestEffortSkipped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "repyable",
		Subsystem: "rpatterns",
		Name:      "best_effort_skipped_total",
		Help:      "Number of events skipped by best effort consumers after exhausting retries",
	}, []string{"consumer_name"})
)

func init() {
	prometheus.MustRegister(
		queueWorkersBusy,
		queueHandledTotal,
		bestEffortSkipped,
	)
}
