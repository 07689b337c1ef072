package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Fetch outcomes.
const (
	OutcomeSuccess    = "success"
	OutcomeError      = "error"
	OutcomeSuperseded = "superseded"
)

var (
	fetchCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "painel_pcm",
		Subsystem: "source",
		Name:      "fetches_total",
		Help:      "Number of upstream fetches grouped by outcome.",
	}, []string{"outcome"})

	fetchDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "painel_pcm",
		Subsystem: "source",
		Name:      "fetch_duration_seconds",
		Help:      "Latency of upstream fetches that reached a result.",
		Buckets:   prometheus.DefBuckets,
	})

	snapshotRecords = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "painel_pcm",
		Subsystem: "source",
		Name:      "snapshot_records",
		Help:      "Number of records in the current snapshot.",
	})

	lastSuccessGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "painel_pcm",
		Subsystem: "source",
		Name:      "last_success_timestamp_seconds",
		Help:      "Unix timestamp of the most recent successful fetch.",
	})

	changedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "painel_pcm",
		Subsystem: "source",
		Name:      "changed_records_total",
		Help:      "Number of records detected as changed between consecutive snapshots.",
	})

	adherenceGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "painel_pcm",
		Subsystem: "kpi",
		Name:      "adherence_percent",
		Help:      "Adherence over the whole current snapshot per strategy.",
	}, []string{"strategy"})
)

func init() {
	prometheus.MustRegister(fetchCounter, fetchDuration, snapshotRecords, lastSuccessGauge, changedCounter, adherenceGauge)
}

// RecordFetch counts a fetch outcome and, for completed fetches, its latency.
func RecordFetch(outcome string, elapsed time.Duration) {
	fetchCounter.WithLabelValues(outcome).Inc()
	if outcome != OutcomeSuperseded {
		fetchDuration.Observe(elapsed.Seconds())
	}
}

// RecordSnapshot updates the snapshot gauges after a successful fetch.
func RecordSnapshot(ts time.Time, records, changed int) {
	snapshotRecords.Set(float64(records))
	changedCounter.Add(float64(changed))
	if !ts.IsZero() {
		lastSuccessGauge.Set(float64(ts.Unix()))
	}
}

// RecordAdherence publishes the adherence of a strategy.
func RecordAdherence(strategy string, value float64) {
	adherenceGauge.WithLabelValues(strategy).Set(value)
}
