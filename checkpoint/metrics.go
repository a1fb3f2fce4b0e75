package checkpoint

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	checkpointsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nexuscheckpoint_checkpoints_created_total",
		Help: "Number of checkpoints created successfully.",
	})

	checkpointFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nexuscheckpoint_checkpoint_failures_total",
		Help: "Number of checkpoint attempts that failed.",
	})

	exportsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nexuscheckpoint_exports_created_total",
		Help: "Number of column family exports created successfully.",
	})

	exportFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nexuscheckpoint_export_failures_total",
		Help: "Number of column family export attempts that failed.",
	})

	hardLinkFallbacksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nexuscheckpoint_hard_link_fallbacks_total",
		Help: "Number of operations that switched from hard links to copies.",
	})

	copiedBytesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nexuscheckpoint_copied_bytes_total",
		Help: "Total bytes written by copy-based file transfers.",
	})
)
