package rgrpc

import (
	"github.com/prometheus/client_golang/prometheus"
)

var popUndeliveredCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "repyable",
	Subsystem: "rgrpc",
	Name:      "pop_undelivered_total",
	Help:      "Number of events popped for a client whose call ended before the response was sent",
}, []string{"session"})

func init() {
	prometheus.MustRegister(popUndeliveredCounter)
}
