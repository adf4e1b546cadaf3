package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	m := New()

	m.AddRows("EasyList", OutcomeKept, 3)
	m.AddRows("EasyList", OutcomeKept, 2)
	m.AddRows("EasyList", OutcomePruned, 1)
	m.AddRows("EasyList", OutcomeIgnored, 0)
	m.AddPatternKills("Regex", 4)
	m.AddInvalidPatterns(1)
	m.SetTrie(10, 6, 5)
	m.SetMaterialized(5, 1)

	assert.Equal(t, 5.0, testutil.ToFloat64(m.RowsTotal.WithLabelValues("EasyList", OutcomeKept)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RowsTotal.WithLabelValues("EasyList", OutcomePruned)))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.PatternKills.WithLabelValues("Regex")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.InvalidPatterns))
	assert.Equal(t, 10.0, testutil.ToFloat64(m.TrieNodes))
	assert.Equal(t, 6.0, testutil.ToFloat64(m.TrieRecords))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.LiveRecords))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.MaterializedTotal.WithLabelValues("emitted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.MaterializedTotal.WithLabelValues("dropped")))
}

func TestMetrics_ZeroRowsCreateNoSeries(t *testing.T) {
	m := New()
	m.AddRows("EasyList", OutcomeIgnored, 0)
	assert.Equal(t, 0, testutil.CollectAndCount(m.RowsTotal))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.AddRows("f", OutcomeKept, 1)
		m.SetTrie(1, 1, 1)
		m.AddPatternKills("f", 1)
		m.AddInvalidPatterns(1)
		m.SetMaterialized(1, 1)
		m.ObserveRun(time.Second, time.Now())
	})
	assert.NoError(t, m.WriteTextfile(filepath.Join(t.TempDir(), "x.prom")))
}

func TestWriteTextfile(t *testing.T) {
	m := New()
	m.AddRows("EasyList", OutcomeKept, 7)
	m.ObserveRun(1500*time.Millisecond, time.Unix(1700000000, 0))

	path := filepath.Join(t.TempDir(), "dedup.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)
	assert.True(t, strings.Contains(text, `dedup_domains_rows_total{file="EasyList",outcome="kept"} 7`), text)
	assert.True(t, strings.Contains(text, "dedup_domains_run_duration_seconds 1.5"), text)
	assert.True(t, strings.Contains(text, "dedup_domains_last_success_timestamp_seconds 1.7e+09"), text)
}

func TestWriteTextfile_BadDir(t *testing.T) {
	m := New()
	err := m.WriteTextfile(filepath.Join(t.TempDir(), "missing", "dedup.prom"))
	assert.Error(t, err)
}
