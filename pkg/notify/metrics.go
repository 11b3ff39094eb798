package notify

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ticksTotal counts completed pending-review checks.
	ticksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "kanjireview",
			Subsystem: "notify",
			Name:      "ticks_total",
			Help:      "Total number of pending-review checks",
		},
	)

	// remindersTotal counts reminder dispatches.
	// Labels: result (sent, error)
	remindersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kanjireview",
			Subsystem: "notify",
			Name:      "reminders_total",
			Help:      "Total number of review reminders by dispatch result",
		},
		[]string{"result"},
	)

	pendingReviews = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "kanjireview",
			Subsystem: "notify",
			Name:      "pending_reviews",
			Help:      "Overdue reviews seen by the last check",
		},
	)
)
