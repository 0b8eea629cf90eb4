package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	activityPersistGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "segmentor",
		Subsystem: "persistence",
		Name:      "last_activity_persisted_timestamp_seconds",
		Help:      "Unix timestamp of the most recent activity upserted to Postgres.",
	})
	activityUpsertCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "segmentor",
		Subsystem: "persistence",
		Name:      "activities_upserted_total",
		Help:      "Number of activity rows inserted or overwritten.",
	})
	activitiesStoredGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "segmentor",
		Subsystem: "persistence",
		Name:      "activities_stored",
		Help:      "Number of activity rows currently stored.",
	})
)

func init() {
	prometheus.MustRegister(activityPersistGauge, activityUpsertCounter, activitiesStoredGauge)
}

// RecordActivityPersisted bumps the upsert counter and the persistence watermark gauge.
func RecordActivityPersisted(ts time.Time) {
	activityUpsertCounter.Inc()
	if ts.IsZero() {
		return
	}
	activityPersistGauge.Set(float64(ts.Unix()))
}

// RecordActivitiesStored sets the stored row count gauge.
func RecordActivitiesStored(n int) {
	activitiesStoredGauge.Set(float64(n))
}
