package prune

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/babilon/dedup-domains/internal/literal"
	"github.com/babilon/dedup-domains/internal/metrics"
	"github.com/babilon/dedup-domains/internal/store"
	"github.com/babilon/dedup-domains/internal/trie"
)

// FileReport counts the rows of one input file.
type FileReport struct {
	Name   string `yaml:"name"`
	Input  string `yaml:"input"`
	Output string `yaml:"output"`

	// Processed is every row that was not ignored, regex rows included.
	Processed int `yaml:"processed"`
	Regex     int `yaml:"regex"`
	Kept      int `yaml:"kept"`
	Pruned    int `yaml:"pruned"`
	Ignored   int `yaml:"ignored"`
	// Invalid counts regex rows whose pattern did not compile.
	Invalid int `yaml:"invalid_patterns,omitempty"`

	// Live is the number of this file's records that reached output.
	Live int `yaml:"live"`
	// Killed counts this file's records removed by literal patterns.
	Killed int `yaml:"killed,omitempty"`
}

// Queued reports whether the file has records to materialize.
func (f FileReport) Queued() bool { return f.Processed-f.Regex > 0 }

// FilterReport is the outcome of the literal pattern pass.
type FilterReport struct {
	literal.Result `yaml:",inline"`
	Compiled       []*literal.Pattern `yaml:"compiled,omitempty"`
	Invalid        []literal.Invalid  `yaml:"invalid,omitempty"`
}

// Report summarizes one run.
type Report struct {
	RunID         string        `yaml:"run_id"`
	Strategy      string        `yaml:"strategy"`
	LiteralFilter bool          `yaml:"literal_filter"`
	Started       time.Time     `yaml:"started"`
	Elapsed       time.Duration `yaml:"elapsed"`

	Files  []FileReport  `yaml:"files"`
	Trie   trie.Stats    `yaml:"trie"`
	Filter *FilterReport `yaml:"filter,omitempty"`
	Output store.Result  `yaml:"output"`
}

// Totals sums the per-file counters.
func (r *Report) Totals() FileReport {
	t := FileReport{Name: "total"}
	for _, f := range r.Files {
		t.Processed += f.Processed
		t.Regex += f.Regex
		t.Kept += f.Kept
		t.Pruned += f.Pruned
		t.Ignored += f.Ignored
		t.Invalid += f.Invalid
		t.Live += f.Live
		t.Killed += f.Killed
	}
	return t
}

// WriteReport writes r as YAML to path.
func (r *Report) WriteReport(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create report directory: %w", err)
		}
	}
	data, err := yaml.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

// Record copies the report counters into m.
func (r *Report) Record(m *metrics.Metrics) {
	if m == nil {
		return
	}
	live := 0
	for _, f := range r.Files {
		m.AddRows(f.Name, metrics.OutcomeKept, f.Kept)
		m.AddRows(f.Name, metrics.OutcomePruned, f.Pruned)
		m.AddRows(f.Name, metrics.OutcomeIgnored, f.Ignored)
		m.AddRows(f.Name, metrics.OutcomeRegex, f.Regex)
		m.AddRows(f.Name, metrics.OutcomeKilled, f.Killed)
		live += f.Live
	}
	m.SetTrie(r.Trie.Nodes, r.Trie.Records, live)
	if r.Filter != nil {
		for _, p := range r.Filter.Compiled {
			m.AddPatternKills(p.Origin, p.Matches)
		}
		m.AddInvalidPatterns(len(r.Filter.Invalid))
	}
	m.SetMaterialized(r.Output.Emitted, r.Output.Dropped)
	m.ObserveRun(r.Elapsed, r.Started.Add(r.Elapsed))
}
