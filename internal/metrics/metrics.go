// Package metrics exposes run counters in the Prometheus text format.
//
// A prune run is a batch job with no scrape endpoint, so the registry is
// private and written once at the end with WriteTextfile for the
// node_exporter textfile collector.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Row outcomes used as the "outcome" label of RowsTotal.
const (
	OutcomeKept    = "kept"
	OutcomePruned  = "pruned"
	OutcomeIgnored = "ignored"
	OutcomeRegex   = "regex"
	OutcomeKilled  = "killed"
)

// Metrics holds the collectors of one run. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	reg *prometheus.Registry

	// Rows per input file by outcome
	RowsTotal *prometheus.CounterVec

	// Trie shape after ingestion
	TrieNodes   prometheus.Gauge
	TrieRecords prometheus.Gauge

	// Records still alive when materialization starts
	LiveRecords prometheus.Gauge

	// Literal pattern kills by pattern origin file
	PatternKills    *prometheus.CounterVec
	InvalidPatterns prometheus.Counter

	// Materialized rows by outcome: "emitted" or "dropped"
	MaterializedTotal *prometheus.CounterVec

	RunDuration prometheus.Gauge
	LastSuccess prometheus.Gauge
}

// New creates a Metrics instance with every collector registered on a fresh
// registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		reg: reg,

		RowsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "dedup_domains_rows_total",
			Help: "Input rows by file and outcome",
		}, []string{"file", "outcome"}),

		TrieNodes: f.NewGauge(prometheus.GaugeOpts{
			Name: "dedup_domains_trie_nodes",
			Help: "Nodes in the domain trie after ingestion",
		}),
		TrieRecords: f.NewGauge(prometheus.GaugeOpts{
			Name: "dedup_domains_trie_records",
			Help: "Terminal records in the domain trie after ingestion",
		}),
		LiveRecords: f.NewGauge(prometheus.GaugeOpts{
			Name: "dedup_domains_live_records",
			Help: "Records alive after the literal filter pass",
		}),

		PatternKills: f.NewCounterVec(prometheus.CounterOpts{
			Name: "dedup_domains_pattern_kills_total",
			Help: "Records removed by literal patterns, by pattern origin file",
		}, []string{"file"}),
		InvalidPatterns: f.NewCounter(prometheus.CounterOpts{
			Name: "dedup_domains_invalid_patterns_total",
			Help: "Regex rows whose pattern failed to compile",
		}),

		MaterializedTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "dedup_domains_materialized_rows_total",
			Help: "Surviving rows by materialization outcome",
		}, []string{"outcome"}),

		RunDuration: f.NewGauge(prometheus.GaugeOpts{
			Name: "dedup_domains_run_duration_seconds",
			Help: "Wall time of the last prune run",
		}),
		LastSuccess: f.NewGauge(prometheus.GaugeOpts{
			Name: "dedup_domains_last_success_timestamp_seconds",
			Help: "Unix time of the last successful prune run",
		}),
	}
}

// AddRows records n rows of file with the given outcome.
func (m *Metrics) AddRows(file, outcome string, n int) {
	if m != nil && n > 0 {
		m.RowsTotal.WithLabelValues(file, outcome).Add(float64(n))
	}
}

// SetTrie records the trie shape.
func (m *Metrics) SetTrie(nodes, records, live int) {
	if m != nil {
		m.TrieNodes.Set(float64(nodes))
		m.TrieRecords.Set(float64(records))
		m.LiveRecords.Set(float64(live))
	}
}

// AddPatternKills records kills attributed to patterns from file.
func (m *Metrics) AddPatternKills(file string, n int) {
	if m != nil && n > 0 {
		m.PatternKills.WithLabelValues(file).Add(float64(n))
	}
}

// AddInvalidPatterns records patterns that did not compile.
func (m *Metrics) AddInvalidPatterns(n int) {
	if m != nil && n > 0 {
		m.InvalidPatterns.Add(float64(n))
	}
}

// SetMaterialized records the materialization result.
func (m *Metrics) SetMaterialized(emitted, dropped int) {
	if m != nil {
		m.MaterializedTotal.WithLabelValues("emitted").Add(float64(emitted))
		m.MaterializedTotal.WithLabelValues("dropped").Add(float64(dropped))
	}
}

// ObserveRun records the run duration and marks it successful at end.
func (m *Metrics) ObserveRun(d time.Duration, end time.Time) {
	if m != nil {
		m.RunDuration.Set(d.Seconds())
		m.LastSuccess.Set(float64(end.Unix()))
	}
}

// WriteTextfile writes every collected metric to path in the text
// exposition format. The file is replaced atomically.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.reg); err != nil {
		return fmt.Errorf("write metrics %s: %w", path, err)
	}
	return nil
}
