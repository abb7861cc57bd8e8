package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrorRate counts Redis errors by operation type.
	RedisErrorRate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flatnest_redis_error_rate_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// RatingRecomputeLatency records how long a full snapshot recompute takes.
	RatingRecomputeLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "flatnest_rating_recompute_latency_seconds",
		Help:    "Latency of flat rating snapshot recomputation in seconds",
		Buckets: prometheus.DefBuckets,
	})

	// RatingRecomputesTotal counts snapshot recomputes by trigger.
	RatingRecomputesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flatnest_rating_recomputes_total",
		Help: "Total number of rating snapshot recomputations by trigger",
	}, []string{"trigger"})

	// CascadeStepFailures counts non-fatal cascade step failures.
	CascadeStepFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flatnest_cascade_step_failures_total",
		Help: "Total number of non-fatal cascade step failures by entity and step",
	}, []string{"entity", "step"})

	// CascadesTotal counts completed cascade runs by entity and outcome.
	CascadesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flatnest_cascades_total",
		Help: "Total number of cascade deletions by entity and outcome",
	}, []string{"entity", "outcome"})

	// ImageUploadsTotal counts image uploads by result.
	ImageUploadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flatnest_image_uploads_total",
		Help: "Total number of image uploads by result",
	}, []string{"result"})

	// WebSocketConnectionsTotal is the gauge of active notification connections.
	WebSocketConnectionsTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "flatnest_websocket_connections_total",
		Help: "Total number of active WebSocket notification connections",
	})
)

// ObserveRecompute records one rating recompute with its trigger and duration.
func ObserveRecompute(trigger string, start time.Time) {
	RatingRecomputesTotal.WithLabelValues(trigger).Inc()
	RatingRecomputeLatency.Observe(time.Since(start).Seconds())
}
