// Package observability holds the service's logging and Prometheus metrics.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	activityLogsCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tracker",
		Subsystem: "activity_logs",
		Name:      "recorded_total",
		Help:      "Number of activity logs recorded, labeled by activity name.",
	}, []string{"activity"})

	pointsAwardedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "tracker",
		Subsystem: "activity_logs",
		Name:      "points_awarded_total",
		Help:      "Sum of points awarded across all recorded activity logs.",
	})

	logPersistGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "tracker",
		Subsystem: "persistence",
		Name:      "last_activity_log_persisted_timestamp_seconds",
		Help:      "Unix timestamp of the most recent activity log persisted to Postgres.",
	})

	degradedReadsCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tracker",
		Subsystem: "reads",
		Name:      "degraded_total",
		Help:      "Number of reads that failed and were served as an empty result, labeled by view.",
	}, []string{"view"})

	httpRequestsCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tracker",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests.",
	}, []string{"method", "path", "status"})

	httpDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "tracker",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path"})
)

func init() {
	prometheus.MustRegister(
		activityLogsCounter,
		pointsAwardedCounter,
		logPersistGauge,
		degradedReadsCounter,
		httpRequestsCounter,
		httpDuration,
	)
}

// RecordActivityLogged counts a recorded log and the points it awarded.
func RecordActivityLogged(activity string, points int) {
	activityLogsCounter.WithLabelValues(activity).Inc()
	if points > 0 {
		pointsAwardedCounter.Add(float64(points))
	}
}

// RecordActivityLogPersisted updates the persistence watermark gauge.
func RecordActivityLogPersisted(ts time.Time) {
	if ts.IsZero() {
		return
	}
	logPersistGauge.Set(float64(ts.Unix()))
}

// RecordDegradedRead counts a read served as an empty result after a failure.
func RecordDegradedRead(view string) {
	degradedReadsCounter.WithLabelValues(view).Inc()
}
