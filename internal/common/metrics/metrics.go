// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	AnalysesCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "oracle_analyses_completed_total",
			Help: "Total number of analysis requests completed, by trigger source and final status",
		},
		[]string{"source", "status"},
	)

	AnalysesFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "oracle_analyses_failed_total",
			Help: "Total number of analysis requests that ended Failed, by error code",
		},
		[]string{"source", "error_code"},
	)

	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "oracle_stage_duration_seconds",
			Help: "Duration of each pipeline stage in seconds",
		},
		[]string{"stage"},
	)

	FallbackAnalyses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "oracle_fallback_analyses_total",
			Help: "Total number of analyses produced by the deterministic fallback",
		},
	)

	SyntheticAttestations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "oracle_synthetic_attestations_total",
			Help: "Total number of attestations that returned a synthetic hash",
		},
	)

	ScannerBatchSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "oracle_scanner_batch_size",
			Help: "Number of proposals picked up by the last scanner tick",
		},
	)

	TrackedRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "oracle_tracked_requests",
			Help: "Number of analysis requests currently held by the tracker",
		},
	)
)
