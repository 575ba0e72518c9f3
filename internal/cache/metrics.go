package cache

import "github.com/prometheus/client_golang/prometheus"

var (
	lookupCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tracker",
		Subsystem: "cache",
		Name:      "leaderboard_lookups_total",
		Help:      "Leaderboard snapshot lookups by result.",
	}, []string{"result"})

	invalidationCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "tracker",
		Subsystem: "cache",
		Name:      "leaderboard_invalidations_total",
		Help:      "Number of leaderboard snapshot invalidations.",
	})
)

func init() {
	prometheus.MustRegister(lookupCounter, invalidationCounter)
}

func recordHit()          { lookupCounter.WithLabelValues("hit").Inc() }
func recordMiss()         { lookupCounter.WithLabelValues("miss").Inc() }
func recordInvalidation() { invalidationCounter.Inc() }
