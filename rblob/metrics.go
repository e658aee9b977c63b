package rblob

import "github.com/prometheus/client_golang/prometheus"

const (
	resultWritten = "written"
	resultAborted = "aborted"

	opSnapshot = "snapshot"
	opRestore  = "restore"
)

var (
	snapshotsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "repyable",
		Subsystem: "rblob",
		Name:      "snapshots_total",
		Help:      "Number of snapshot writes per bucket by result",
	}, []string{"bucket", "result"})

	restoresTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "repyable",
		Subsystem: "rblob",
		Name:      "restores_total",
		Help:      "Number of snapshots opened for restore per bucket",
	}, []string{"bucket"})

	blocksTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "repyable",
		Subsystem: "rblob",
		Name:      "blocks_total",
		Help:      "Number of blocks written to or restored from snapshots per bucket",
	}, []string{"bucket", "op"})

	// listSkipTotal should stay zero on s3, where listing starts after the key.
	listSkipTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "repyable",
		Subsystem: "rblob",
		Name:      "list_skip_total",
		Help:      "Number of listed keys at or before the start key, skipped per bucket",
	}, []string{"bucket"})
)

func init() {
	prometheus.MustRegister(snapshotsTotal, restoresTotal, blocksTotal, listSkipTotal)
}
