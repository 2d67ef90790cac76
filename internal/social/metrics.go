package social

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "contentq"

var (
	postsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "social",
			Name:      "posts_total",
			Help:      "Social post attempts by platform and result",
		},
		[]string{"platform", "result"},
	)

	postDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "social",
			Name:      "post_duration_seconds",
			Help:      "Time to deliver a social post",
			Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"platform"},
	)

	retriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "social",
			Name:      "retries_total",
			Help:      "Retryable social failures by outcome",
		},
		[]string{"outcome"},
	)

	itemsFetched = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "social",
			Name:      "items_fetched_total",
			Help:      "Published items picked up for social posting",
		},
	)
)

func recordPost(platform, result string) {
	postsTotal.WithLabelValues(platform, result).Inc()
}

func recordPostDuration(platform string, d time.Duration) {
	postDuration.WithLabelValues(platform).Observe(d.Seconds())
}

func recordRetry(outcome string) {
	retriesTotal.WithLabelValues(outcome).Inc()
}

func recordItemsFetched(n int) {
	itemsFetched.Add(float64(n))
}
