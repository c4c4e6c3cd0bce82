package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ShipmentsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shiptrack_shipments_created_total",
		Help: "Total number of shipments successfully created and finalized.",
	})

	TransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shiptrack_transitions_total",
		Help: "Total number of finalized lifecycle transitions, by operation.",
	},
		[]string{"operation"},
	)

	OperationErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shiptrack_operation_errors_total",
		Help: "Total number of errors encountered during specific operations.",
	},
		[]string{"operation"},
	)

	CacheRefreshesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shiptrack_cache_refreshes_total",
		Help: "Total number of read-model snapshot refreshes.",
	})

	CacheSnapshotSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "shiptrack_cache_snapshot_size",
		Help: "Number of shipments in the current read-model snapshot.",
	})

	AccountConnected = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "shiptrack_account_connected",
		Help: "1 while an authorized account (write handle) is present.",
	})
)
