package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/quotedesk/internal/lock"
)

func TestLockMetrics_RecordOperation(t *testing.T) {
	registry := prometheus.NewRegistry()
	m, err := NewLockMetrics(registry)
	require.NoError(t, err)

	testCases := []struct {
		name         string
		kind         lock.Kind
		operation    string
		outcome      string
		wantConflict float64
	}{
		{"acquire ok", lock.KindArticle, lock.OpAcquire, lock.OutcomeOK, 0},
		{"acquire conflict", lock.KindBlock, lock.OpAcquire, lock.OutcomeConflict, 1},
		{"update blocked", lock.KindQuoteVersion, lock.OpUpdate, lock.OutcomeConflict, 1},
		{"release denied", lock.KindSalesOpportunity, lock.OpRelease, lock.OutcomeDenied, 0},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			m.RecordOperation(tc.kind, tc.operation, tc.outcome, 2*time.Millisecond)

			count := testutil.ToFloat64(m.operationsTotal.WithLabelValues(string(tc.kind), tc.operation, tc.outcome))
			assert.InDelta(t, 1.0, count, 0)

			conflicts := testutil.ToFloat64(m.conflictsTotal.WithLabelValues(string(tc.kind), tc.operation))
			assert.InDelta(t, tc.wantConflict, conflicts, 0)
		})
	}
}

func TestLockMetrics_RecordReleased(t *testing.T) {
	registry := prometheus.NewRegistry()
	m, err := NewLockMetrics(registry)
	require.NoError(t, err)

	m.RecordReleased(lock.KindArticle, lock.OpBulkRelease, 3)
	m.RecordReleased(lock.KindArticle, lock.OpBulkRelease, 2)
	m.RecordReleased(lock.KindArticle, lock.OpBulkRelease, 0)

	assert.InDelta(t, 5.0, testutil.ToFloat64(m.releasedTotal.WithLabelValues("article", lock.OpBulkRelease)), 0)
}

func TestLockMetrics_Sweep(t *testing.T) {
	registry := prometheus.NewRegistry()
	m, err := NewLockMetrics(registry)
	require.NoError(t, err)

	m.RecordOperation(lock.KindBlock, lock.OpSweep, lock.OutcomeOK, time.Millisecond)
	m.RecordReleased(lock.KindBlock, lock.OpSweep, 4)

	families, err := registry.Gather()
	require.NoError(t, err)

	byName := make(map[string]*dto.MetricFamily, len(families))
	for _, mf := range families {
		byName[mf.GetName()] = mf
	}

	sweeps := byName["quotedesk_lock_sweeps_total"]
	require.NotNil(t, sweeps)
	assert.InDelta(t, 1.0, sweeps.GetMetric()[0].GetCounter().GetValue(), 0)

	last := byName["quotedesk_lock_last_sweep_timestamp_seconds"]
	require.NotNil(t, last)
	assert.Greater(t, last.GetMetric()[0].GetGauge().GetValue(), float64(0))

	released := byName["quotedesk_locks_released_total"]
	require.NotNil(t, released)
	assert.Equal(t, dto.MetricType_COUNTER, released.GetType())
	assert.InDelta(t, 4.0, released.GetMetric()[0].GetCounter().GetValue(), 0)
}

func TestNewLockMetrics_DuplicateRegistration(t *testing.T) {
	registry := prometheus.NewRegistry()
	_, err := NewLockMetrics(registry)
	require.NoError(t, err)

	_, err = NewLockMetrics(registry)
	assert.Error(t, err)
}
