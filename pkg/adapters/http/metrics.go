package http

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/aretw0/birocrat"
)

type metrics struct {
	sessionsStarted *prometheus.CounterVec
	polls           *prometheus.CounterVec
	pollDuration    prometheus.Histogram
}

func newMetrics(reg prometheus.Registerer) *metrics {
	factory := promauto.With(reg)
	return &metrics{
		sessionsStarted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "birocrat",
			Name:      "sessions_started_total",
			Help:      "Sessions started, by form name.",
		}, []string{"form"}),
		polls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "birocrat",
			Name:      "polls_total",
			Help:      "Driver polls served over HTTP, by outcome.",
		}, []string{"outcome"}),
		pollDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "birocrat",
			Name:      "poll_duration_seconds",
			Help:      "Latency of driver polls, session persistence included.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}

func (m *metrics) sessionStarted(form string) {
	m.sessionsStarted.WithLabelValues(form).Inc()
}

func (m *metrics) pollObserved(poll *birocrat.Poll) {
	switch {
	case poll == nil:
		return
	case poll.Done:
		m.polls.WithLabelValues("done").Inc()
	case poll.Rejection != "":
		m.polls.WithLabelValues("retry").Inc()
	default:
		m.polls.WithLabelValues("question").Inc()
	}
}

// pollTimer starts the duration clock and returns the stop function.
func (m *metrics) pollTimer() func() {
	start := time.Now()
	return func() {
		m.pollDuration.Observe(time.Since(start).Seconds())
	}
}
