package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the sync engine's Prometheus collectors. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	SyncOutcomesTotal     *prometheus.CounterVec
	DispatchDuration      *prometheus.HistogramVec
	EventLogFailuresTotal prometheus.Counter
	BatchSize             prometheus.Histogram
	ConfigErrorsTotal     prometheus.Counter
}

// New creates the collectors and registers them on reg. Pass
// prometheus.DefaultRegisterer in production and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		SyncOutcomesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ctsync_sync_outcomes_total",
				Help: "Synchronization attempts by record type and outcome",
			},
			[]string{"record_type", "outcome"},
		),
		DispatchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ctsync_dispatch_duration_seconds",
				Help:    "Duration of profile upload calls",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"status"},
		),
		EventLogFailuresTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "ctsync_event_log_failures_total",
				Help: "Sync events that could not be persisted",
			},
		),
		BatchSize: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "ctsync_batch_size",
				Help:    "Records per synchronization batch",
				Buckets: prometheus.ExponentialBuckets(1, 4, 7),
			},
		),
		ConfigErrorsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "ctsync_config_errors_total",
				Help: "Sync runs halted by a configuration error",
			},
		),
	}
	if reg != nil {
		reg.MustRegister(m.SyncOutcomesTotal, m.DispatchDuration, m.EventLogFailuresTotal, m.BatchSize, m.ConfigErrorsTotal)
	}
	return m
}

// UnresolvedRecordType labels outcomes for records that matched no sync
// configuration. Only configured entity names are used as label values.
const UnresolvedRecordType = "unresolved"

func (m *Metrics) Outcome(recordType, outcome string) {
	if m == nil {
		return
	}
	m.SyncOutcomesTotal.WithLabelValues(recordType, outcome).Inc()
}

// Dispatch records one upload. statusCode 0 means no response was obtained.
func (m *Metrics) Dispatch(statusCode int, d time.Duration) {
	if m == nil {
		return
	}
	label := "error"
	if statusCode > 0 {
		label = strconv.Itoa(statusCode)
	}
	m.DispatchDuration.WithLabelValues(label).Observe(d.Seconds())
}

func (m *Metrics) EventLogFailed() {
	if m == nil {
		return
	}
	m.EventLogFailuresTotal.Inc()
}

func (m *Metrics) Batch(n int) {
	if m == nil {
		return
	}
	m.BatchSize.Observe(float64(n))
}

func (m *Metrics) ConfigError() {
	if m == nil {
		return
	}
	m.ConfigErrorsTotal.Inc()
}
