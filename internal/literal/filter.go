// Package literal applies the regex rows (strength 2) of the input lists to
// the records that survived the trie, marking every match dead.
package literal

import (
	"fmt"
	"iter"
	"time"

	"github.com/dlclark/regexp2"
	"go.uber.org/zap"

	"github.com/babilon/dedup-domains/internal/record"
)

// DefaultMatchTimeout bounds a single pattern evaluation. Backtracking
// patterns from third party lists can otherwise stall a run.
const DefaultMatchTimeout = 100 * time.Millisecond

// LiveSource yields the records a pattern may kill.
type LiveSource interface {
	Live() iter.Seq[*record.Record]
}

// Pattern is one compiled regex row.
type Pattern struct {
	Expr    string   `yaml:"expr"`
	Origin  string   `yaml:"origin"`
	Line    int      `yaml:"line"`
	Matches int      `yaml:"matches"`
	Killed  []string `yaml:"killed,omitempty"`

	re *regexp2.Regexp
}

// Invalid records a regex row that failed to compile.
type Invalid struct {
	Expr   string `yaml:"expr"`
	Origin string `yaml:"origin"`
	Line   int    `yaml:"line"`
	Err    string `yaml:"error"`
}

// Result summarizes one ApplyAll pass.
type Result struct {
	Patterns int `yaml:"patterns"`
	Killed   int `yaml:"killed"`
	Timeouts int `yaml:"timeouts"`
}

type Option func(*Filter)

func WithMatchTimeout(d time.Duration) Option {
	return func(f *Filter) {
		if d > 0 {
			f.timeout = d
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(f *Filter) {
		if l != nil {
			f.logger = l
		}
	}
}

// WithRegexOptions sets the regexp2 compile options, e.g. regexp2.IgnoreCase.
func WithRegexOptions(o regexp2.RegexOptions) Option {
	return func(f *Filter) { f.options = o }
}

// Filter is an ordered list of patterns.
type Filter struct {
	patterns []*Pattern
	invalid  []Invalid
	timeout  time.Duration
	options  regexp2.RegexOptions
	logger   *zap.Logger
}

func NewFilter(opts ...Option) *Filter {
	f := &Filter{
		timeout: DefaultMatchTimeout,
		options: regexp2.None,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Add compiles expr and appends it. A pattern that does not compile is
// remembered as invalid and the error returned; the filter stays usable.
func (f *Filter) Add(expr, origin string, line int) (*Pattern, error) {
	re, err := regexp2.Compile(expr, f.options)
	if err != nil {
		f.invalid = append(f.invalid, Invalid{Expr: expr, Origin: origin, Line: line, Err: err.Error()})
		return nil, fmt.Errorf("compile %q (%s:%d): %w", expr, origin, line, err)
	}
	re.MatchTimeout = f.timeout

	p := &Pattern{Expr: expr, Origin: origin, Line: line, re: re}
	f.patterns = append(f.patterns, p)
	return p, nil
}

func (f *Filter) Patterns() []*Pattern { return f.patterns }
func (f *Filter) Invalid() []Invalid   { return f.invalid }
func (f *Filter) Len() int             { return len(f.patterns) }

// ApplyAll runs every pattern, in the order added, over the live records of
// src. Matching records are killed; a record already dead is never counted
// twice.
func (f *Filter) ApplyAll(src LiveSource) Result {
	res := Result{Patterns: len(f.patterns)}
	for _, p := range f.patterns {
		for r := range src.Live() {
			ok, err := p.re.MatchString(r.Domain())
			if err != nil {
				res.Timeouts++
				f.logger.Warn("Pattern evaluation failed",
					zap.String("pattern", p.Expr),
					zap.String("domain", r.Domain()),
					zap.Error(err))
				continue
			}
			if !ok || !r.Kill() {
				continue
			}
			p.Matches++
			p.Killed = append(p.Killed, r.Domain())
			res.Killed++
		}
		if p.Matches > 0 {
			f.logger.Debug("Pattern applied",
				zap.String("pattern", p.Expr),
				zap.String("origin", p.Origin),
				zap.Int("matches", p.Matches))
		}
	}
	return res
}
