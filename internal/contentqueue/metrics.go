package contentqueue

import (
	"time"

	"github.com/bissquit/contentq/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "contentq"

var (
	queueSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      "items",
			Help:      "Number of queue items by status",
		},
		[]string{"status"},
	)

	todayRemaining = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      "today_remaining",
			Help:      "Posts left under the daily cap for the current day",
		},
	)

	transitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      "transitions_total",
			Help:      "Lifecycle transitions applied to queue items",
		},
		[]string{"event"},
	)

	processRunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "processor",
			Name:      "run_duration_seconds",
			Help:      "Time to process all due items",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
	)

	processedItems = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "processor",
			Name:      "items_total",
			Help:      "Due items processed by result",
		},
		[]string{"result"},
	)
)

func recordTransition(eventType EventType) {
	transitions.WithLabelValues(string(eventType)).Inc()
}

func recordProcessRun(duration time.Duration, published, failed int) {
	processRunDuration.Observe(duration.Seconds())
	processedItems.WithLabelValues("published").Add(float64(published))
	processedItems.WithLabelValues("failed").Add(float64(failed))
}

// RecordQueueStats updates queue size metrics.
func RecordQueueStats(stats *QueueStats) {
	queueSize.WithLabelValues(string(domain.QueueStatusDraft)).Set(float64(stats.Draft))
	queueSize.WithLabelValues(string(domain.QueueStatusScheduled)).Set(float64(stats.Scheduled))
	queueSize.WithLabelValues(string(domain.QueueStatusPublished)).Set(float64(stats.Published))
	queueSize.WithLabelValues(string(domain.QueueStatusFailed)).Set(float64(stats.Failed))
	todayRemaining.Set(float64(stats.TodayRemaining))
}
