package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Record(t *testing.T) {
	m := New()

	m.RecordCollection(12)
	m.RecordDetection(4, 400, 6, 2)
	m.RecordDeleted(4)
	m.RecordVerify(map[string]int{"mkdir": 1})
	m.RecordRun("committed", time.Unix(1700000000, 0))
	m.ObservePhase("detect", 20*time.Millisecond)

	assert.Equal(t, 12.0, testutil.ToFloat64(m.filesCollected))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.duplicates))
	assert.Equal(t, 400.0, testutil.ToFloat64(m.bytesReclaimable))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.deletedTotal))
	assert.Equal(t, 6.0, testutil.ToFloat64(m.identitiesTotal.WithLabelValues("hash")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.identitiesTotal.WithLabelValues("cache")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.verifyOps.WithLabelValues("mkdir")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runsTotal.WithLabelValues("committed")))
	assert.Equal(t, 1700000000.0, testutil.ToFloat64(m.lastRunTimestamp))
	assert.Equal(t, 1, testutil.CollectAndCount(m.phaseDuration))
}

func TestMetrics_VerifyResets(t *testing.T) {
	m := New()
	m.RecordVerify(map[string]int{"change": 2})
	m.RecordVerify(map[string]int{"rmdir": 1})

	assert.Equal(t, 1, testutil.CollectAndCount(m.verifyOps))
}

func TestMetrics_Nil(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordCollection(1)
		m.RecordDetection(1, 1, 1, 1)
		m.RecordDeleted(1)
		m.RecordVerify(nil)
		m.RecordRun("aborted", time.Now())
		m.ObservePhase("collect", time.Second)
	})
	assert.Nil(t, m.Registry())
	assert.NoError(t, m.WriteTextfile(filepath.Join(t.TempDir(), "x.prom")))
}

func TestMetrics_WriteTextfile(t *testing.T) {
	m := New()
	m.RecordRun("dry-run", time.Now())

	path := filepath.Join(t.TempDir(), "binmin.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `binmin_runs_total{outcome="dry-run"} 1`)
	assert.Contains(t, string(data), "# HELP binmin_duplicates")
}
