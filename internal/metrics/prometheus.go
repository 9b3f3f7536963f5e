package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Resolution metrics
	ResolutionsTotal   *prometheus.CounterVec
	ResolutionDuration prometheus.Histogram

	// Sync metrics
	SyncOpsTotal       *prometheus.CounterVec
	MirrorFallbacks    *prometheus.CounterVec
	UploadOnFirstSight *prometheus.CounterVec

	// Listener metrics
	ListenerEvents  *prometheus.CounterVec
	DedupDropped    *prometheus.CounterVec
	ActiveListeners prometheus.Gauge

	// Directory metrics
	DirectoryOpsTotal *prometheus.CounterVec
}

var globalMetrics *Metrics

// NewMetrics creates and registers Prometheus metrics.
func NewMetrics() *Metrics {
	if globalMetrics != nil {
		return globalMetrics
	}

	globalMetrics = &Metrics{
		ResolutionsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lmsync_resolutions_total",
				Help: "Total number of tenant resolutions by outcome",
			},
			[]string{"outcome"},
		),

		ResolutionDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "lmsync_resolution_duration_seconds",
				Help:    "Duration of tenant resolution",
				Buckets: prometheus.DefBuckets,
			},
		),

		SyncOpsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lmsync_sync_ops_total",
				Help: "Total number of sync engine operations",
			},
			[]string{"operation", "collection", "mode"},
		),

		MirrorFallbacks: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lmsync_mirror_fallbacks_total",
				Help: "Total number of operations degraded to the local mirror",
			},
			[]string{"operation"},
		),

		UploadOnFirstSight: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lmsync_upload_on_first_sight_total",
				Help: "Total number of mirror values pushed to an empty remote path",
			},
			[]string{"collection"},
		),

		ListenerEvents: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lmsync_listener_events_total",
				Help: "Total number of listener callback deliveries",
			},
			[]string{"collection"},
		),

		DedupDropped: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lmsync_dedup_dropped_total",
				Help: "Total number of duplicate records collapsed by listeners",
			},
			[]string{"collection"},
		),

		ActiveListeners: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "lmsync_active_listeners",
				Help: "Current number of standing subscriptions",
			},
		),

		DirectoryOpsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lmsync_directory_ops_total",
				Help: "Total number of directory editor operations",
			},
			[]string{"operation", "status"},
		),
	}
	return globalMetrics
}
