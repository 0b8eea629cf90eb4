package session

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const outcomeDone = "done"

var (
	sessionsCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "segmentor",
		Subsystem: "sync",
		Name:      "sessions_total",
		Help:      "Number of finished sync sessions grouped by outcome.",
	}, []string{"outcome"})

	activeSessionsGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "segmentor",
		Subsystem: "sync",
		Name:      "active_sessions",
		Help:      "Number of sync sessions currently in progress.",
	})

	staleCredentialCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "segmentor",
		Subsystem: "sync",
		Name:      "stale_credentials_total",
		Help:      "Number of sessions whose access token expires within the freshness margin.",
	})

	fetchDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "segmentor",
		Subsystem: "sync",
		Name:      "fetch_duration_seconds",
		Help:      "Time spent fetching the complete activity history from the source.",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
	})

	activitiesFetchedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "segmentor",
		Subsystem: "sync",
		Name:      "activities_fetched_total",
		Help:      "Number of raw activities received from the source.",
	})
)

func init() {
	prometheus.MustRegister(sessionsCounter, activeSessionsGauge, staleCredentialCounter, fetchDuration, activitiesFetchedCounter)
}

func recordOutcome(err *Error) {
	if err == nil {
		sessionsCounter.WithLabelValues(outcomeDone).Inc()
		return
	}
	sessionsCounter.WithLabelValues(string(err.Kind)).Inc()
}

func recordFetch(started time.Time, n int) {
	fetchDuration.Observe(time.Since(started).Seconds())
	activitiesFetchedCounter.Add(float64(n))
}
