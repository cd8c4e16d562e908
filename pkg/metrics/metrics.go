package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheLookups counts cache lookups by strategy (cache_first|network_first|shell_fallback)
	// and outcome (hit|miss).
	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "offlinegate_cache_lookups_total",
			Help: "Total number of cache lookups",
		},
		[]string{"strategy", "result"},
	)

	// SynthesizedResponses counts responses the gateway fabricated because both
	// the origin and the cache came up empty (status label is 404 or 503).
	SynthesizedResponses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "offlinegate_synthesized_responses_total",
			Help: "Total number of synthesized offline responses",
		},
		[]string{"status"},
	)

	// SyncReplays counts background sync replay attempts by tag and result (delivered|retained|error).
	SyncReplays = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "offlinegate_sync_replays_total",
			Help: "Total number of sync queue replay attempts",
		},
		[]string{"tag", "result"},
	)

	// PendingSyncEntries tracks the number of sync queue entries awaiting replay.
	PendingSyncEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "offlinegate_pending_sync_entries",
			Help: "Number of sync queue entries awaiting replay",
		},
	)

	// PushDeliveries counts push notification deliveries by channel (window|webpush)
	// and result (delivered|error|pruned).
	PushDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "offlinegate_push_deliveries_total",
			Help: "Total number of push notification deliveries",
		},
		[]string{"channel", "result"},
	)

	// GatewayLatency measures end-to-end gateway request latencies.
	GatewayLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "offlinegate_gateway_latency_seconds",
			Help:    "Gateway request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "class", "status"},
	)
)
