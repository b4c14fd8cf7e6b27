// Package metrics provides lock service metrics for observability
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/tphakala/quotedesk/internal/lock"
)

// LockMetrics contains Prometheus metrics for edit-lock operations. It
// implements lock.Recorder.
type LockMetrics struct {
	registry *prometheus.Registry

	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	conflictsTotal    *prometheus.CounterVec
	releasedTotal     *prometheus.CounterVec
	sweepRuns         *prometheus.CounterVec
	lastSweep         prometheus.Gauge
}

var _ lock.Recorder = (*LockMetrics)(nil)

// NewLockMetrics creates and registers new lock metrics
func NewLockMetrics(registry *prometheus.Registry) (*LockMetrics, error) {
	m := &LockMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *LockMetrics) initMetrics() {
	m.operationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quotedesk_lock_operations_total",
			Help: "Total number of lock operations by resource kind and outcome",
		},
		[]string{"kind", "operation", "outcome"}, // outcome: ok, conflict, not_found, denied, error
	)

	m.operationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "quotedesk_lock_operation_duration_seconds",
			Help:    "Time taken for lock operations including the database round trips",
			Buckets: prometheus.ExponentialBuckets(BucketStart100us, BucketFactor2, BucketCount15),
		},
		[]string{"kind", "operation"},
	)

	m.conflictsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quotedesk_lock_conflicts_total",
			Help: "Total number of operations rejected because another user holds the lock",
		},
		[]string{"kind", "operation"},
	)

	m.releasedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quotedesk_locks_released_total",
			Help: "Total number of locks cleared",
		},
		[]string{"kind", "reason"}, // reason: release, bulk_release, sweep
	)

	m.sweepRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quotedesk_lock_sweeps_total",
			Help: "Total number of expiry sweeps per resource kind",
		},
		[]string{"kind"},
	)

	m.lastSweep = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "quotedesk_lock_last_sweep_timestamp_seconds",
			Help: "Unix time of the last expiry sweep",
		},
	)
}

func (m *LockMetrics) getCollectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.operationsTotal,
		m.operationDuration,
		m.conflictsTotal,
		m.releasedTotal,
		m.sweepRuns,
		m.lastSweep,
	}
}

// Describe implements prometheus.Collector
func (m *LockMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, collector := range m.getCollectors() {
		collector.Describe(ch)
	}
}

// Collect implements prometheus.Collector
func (m *LockMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, collector := range m.getCollectors() {
		collector.Collect(ch)
	}
}

// RecordOperation implements lock.Recorder.
func (m *LockMetrics) RecordOperation(kind lock.Kind, operation, outcome string, duration time.Duration) {
	k := string(kind)
	m.operationsTotal.WithLabelValues(k, operation, outcome).Inc()
	m.operationDuration.WithLabelValues(k, operation).Observe(duration.Seconds())

	if outcome == lock.OutcomeConflict {
		m.conflictsTotal.WithLabelValues(k, operation).Inc()
	}
	if operation == lock.OpSweep {
		m.sweepRuns.WithLabelValues(k).Inc()
		m.lastSweep.SetToCurrentTime()
	}
}

// RecordReleased implements lock.Recorder.
func (m *LockMetrics) RecordReleased(kind lock.Kind, reason string, n int64) {
	if n <= 0 {
		return
	}
	m.releasedTotal.WithLabelValues(string(kind), reason).Add(float64(n))
}
