// Package prune runs the whole consolidation: it reads every input file,
// feeds the domain rows into one shared trie, optionally removes records
// matched by the regex rows and writes the survivors back per file.
package prune

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dlclark/regexp2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/babilon/dedup-domains/internal/config"
	"github.com/babilon/dedup-domains/internal/linefile"
	"github.com/babilon/dedup-domains/internal/literal"
	"github.com/babilon/dedup-domains/internal/logging"
	"github.com/babilon/dedup-domains/internal/record"
	"github.com/babilon/dedup-domains/internal/store"
	"github.com/babilon/dedup-domains/internal/trie"
)

// Options configure a Driver.
type Options struct {
	Strategy store.Strategy

	// LiteralFilter enables the regex pass. When off, regex rows are still
	// copied to the output but never compiled.
	LiteralFilter bool
	MatchTimeout  time.Duration
	IgnoreCase    bool

	// Logs supplies per-category loggers. When nil, categories are derived
	// from the logger passed to NewDriver.
	Logs *logging.Loggers
}

// OptionsFromConfig maps the prune section of cfg onto Options.
func OptionsFromConfig(cfg *config.Config) (Options, error) {
	s, err := store.ParseStrategy(cfg.Prune.Strategy)
	if err != nil {
		return Options{}, err
	}
	return Options{
		Strategy:      s,
		LiteralFilter: cfg.Prune.LiteralFilter,
		MatchTimeout:  cfg.GetMatchTimeout(),
		IgnoreCase:    cfg.Prune.IgnoreCase,
	}, nil
}

// Driver owns the state of one run. A Driver is single use: Run may be
// called once.
type Driver struct {
	opts  Options
	runID string

	trie   *trie.Trie
	store  store.Store
	filter *literal.Filter

	log    *zap.Logger // ingest
	outLog *zap.Logger // report
	ran    bool
}

// NewDriver validates opts and prepares an empty trie and store.
func NewDriver(opts Options, logger *zap.Logger) (*Driver, error) {
	if opts.Strategy == "" {
		opts.Strategy = store.Indexed
	}
	runID := uuid.NewString()

	logs := opts.Logs
	if logs == nil {
		logs = logging.Wrap(logger, config.LoggingConfig{})
	}
	logs = logs.With(zap.String("run_id", runID))

	st, err := store.New(opts.Strategy, logs.Get(logging.CategoryStore))
	if err != nil {
		return nil, err
	}

	d := &Driver{
		opts:   opts,
		runID:  runID,
		trie:   trie.New(),
		store:  st,
		log:    logs.Get(logging.CategoryIngest),
		outLog: logs.Get(logging.CategoryReport),
	}
	if opts.LiteralFilter {
		fopts := []literal.Option{
			literal.WithMatchTimeout(opts.MatchTimeout),
			literal.WithLogger(logs.Get(logging.CategoryFilter)),
		}
		if opts.IgnoreCase {
			fopts = append(fopts, literal.WithRegexOptions(regexp2.IgnoreCase))
		}
		d.filter = literal.NewFilter(fopts...)
	}
	return d, nil
}

// RunID identifies this run in logs and the report.
func (d *Driver) RunID() string { return d.runID }

// Run prunes inputs in order. Any I/O failure aborts the run; malformed
// rows, redundant records and missing writers are counted in the Report.
func (d *Driver) Run(ctx context.Context, inputs []Input) (*Report, error) {
	if d.ran {
		return nil, errors.New("driver already ran")
	}
	d.ran = true

	if err := checkInputs(inputs); err != nil {
		return nil, err
	}

	start := time.Now()
	rep := &Report{
		RunID:         d.runID,
		Strategy:      string(d.store.Strategy()),
		LiteralFilter: d.filter != nil,
		Started:       start,
	}

	var queued []Input
	for _, in := range inputs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		fr, err := d.ingest(in)
		if err != nil {
			return nil, err
		}
		rep.Files = append(rep.Files, fr)
		if fr.Queued() {
			queued = append(queued, in)
		}
	}
	rep.Trie = d.trie.Stats()

	if d.filter != nil {
		res := d.filter.ApplyAll(d.trie)
		rep.Filter = &FilterReport{
			Result:   res,
			Compiled: d.filter.Patterns(),
			Invalid:  d.filter.Invalid(),
		}
		d.log.Info("Literal filter applied",
			zap.Int("patterns", d.filter.Len()),
			zap.Int("invalid", len(d.filter.Invalid())),
			zap.Int("killed", res.Killed),
			zap.Int("timeouts", res.Timeouts))
	}

	groups := d.group(queued)
	countLive(rep, groups, d.trie)

	out, err := d.materialize(ctx, queued, groups)
	if err != nil {
		return nil, err
	}
	rep.Output = out
	rep.Elapsed = time.Since(start)

	t := rep.Totals()
	d.outLog.Info("Processing completed",
		zap.Int("files", len(rep.Files)),
		zap.Int("processed", t.Processed),
		zap.Int("pruned", t.Pruned),
		zap.Int("ignored", t.Ignored),
		zap.Int("emitted", out.Emitted),
		zap.Int("dropped", out.Dropped),
		zap.Duration("elapsed", rep.Elapsed))
	return rep, nil
}

// ingest reads one input file. Regex rows go straight to the output,
// domain rows into the trie.
func (d *Driver) ingest(in Input) (fr FileReport, err error) {
	fr = FileReport{Name: in.Origin.Name, Input: in.Origin.Path, Output: in.OutPath}
	d.log.Debug("Reading input", zap.String("file", in.Origin.Path), zap.String("output", in.OutPath))

	f, err := os.Open(in.Origin.Path)
	if err != nil {
		return fr, fmt.Errorf("open input %s: %w", in.Origin.Path, err)
	}
	defer f.Close()

	out := linefile.NewWriters()
	if err := out.Create(in.Origin.Name, in.OutPath); err != nil {
		return fr, err
	}
	defer func() {
		if cerr := out.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	rd := linefile.NewReader(f)
	rows := 0
	for {
		raw, line, rerr := rd.Next()
		if errors.Is(rerr, io.EOF) {
			break
		}
		if rerr != nil {
			return fr, fmt.Errorf("read %s: %w", in.Origin.Path, rerr)
		}
		rows++

		row := record.ParseRow(raw)
		s, cerr := row.Classify()
		if cerr != nil {
			fr.Ignored++
			d.log.Debug("Ignoring row",
				zap.String("file", in.Origin.Name),
				zap.Int("line", line),
				zap.Int("fields", row.Width()),
				zap.Error(cerr))
			continue
		}

		if s == record.Regex {
			if err := out.Write(in.Origin.Name, raw); err != nil {
				return fr, err
			}
			fr.Regex++
			d.addPattern(&fr, row.Domain(), in.Origin.Name, line)
			continue
		}

		r, nerr := record.New(row, s, in.Origin, d.store.Payload(in.Origin, line, row))
		if nerr != nil {
			return fr, fmt.Errorf("%s:%d: %w", in.Origin.Path, line, nerr)
		}
		if d.trie.Insert(r) {
			fr.Kept++
		} else {
			fr.Pruned++
			d.log.Debug("Pruned", zap.String("file", in.Origin.Name), zap.Int("line", line), zap.String("domain", r.Domain()))
		}
	}
	fr.Processed = rows - fr.Ignored

	d.log.Info("Processed input",
		zap.String("file", in.Origin.Name),
		zap.Int("rows", fr.Processed),
		zap.Int("regex", fr.Regex),
		zap.Int("kept", fr.Kept),
		zap.Int("pruned", fr.Pruned))
	if fr.Ignored > 0 {
		d.log.Warn("Ignored malformed rows, inspect the input for bogus data",
			zap.String("file", in.Origin.Name),
			zap.Int("ignored", fr.Ignored))
	}
	return fr, nil
}

func (d *Driver) addPattern(fr *FileReport, expr, origin string, line int) {
	if d.filter == nil {
		return
	}
	if _, err := d.filter.Add(expr, origin, line); err != nil {
		fr.Invalid++
		d.log.Warn("Invalid literal pattern, row passed through", zap.Error(err))
	}
}

// group collects the live records per origin, in input order.
func (d *Driver) group(queued []Input) []store.Group {
	byOrigin := make(map[*record.Origin][]*record.Record, len(queued))
	for r := range d.trie.Live() {
		byOrigin[r.Origin()] = append(byOrigin[r.Origin()], r)
	}
	groups := make([]store.Group, 0, len(queued))
	for _, in := range queued {
		if recs := byOrigin[in.Origin]; len(recs) > 0 {
			groups = append(groups, store.Group{Origin: in.Origin, Records: recs})
		}
	}
	return groups
}

// countLive fills the per-file Live and Killed counters.
func countLive(rep *Report, groups []store.Group, t *trie.Trie) {
	live := make(map[string]int, len(groups))
	for _, g := range groups {
		live[g.Origin.Name] = len(g.Records)
	}
	terminal := make(map[string]int)
	for r := range t.All() {
		if !r.Alive() {
			terminal[r.Origin().Name]++
		}
	}
	for i := range rep.Files {
		rep.Files[i].Live = live[rep.Files[i].Name]
		rep.Files[i].Killed = terminal[rep.Files[i].Name]
	}
}

// materialize appends the surviving rows to the outputs written during
// ingestion.
func (d *Driver) materialize(ctx context.Context, queued []Input, groups []store.Group) (res store.Result, err error) {
	if len(queued) == 0 {
		return res, nil
	}
	out := linefile.NewWriters()
	defer func() {
		if cerr := out.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	for _, in := range queued {
		if err := out.Append(in.Origin.Name, in.OutPath); err != nil {
			return res, err
		}
	}

	d.outLog.Debug("Writing pruned contents", zap.Int("files", len(queued)), zap.String("strategy", string(d.store.Strategy())))
	for _, g := range groups {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		r, err := d.store.Materialize([]store.Group{g}, out)
		res.Emitted += r.Emitted
		res.Dropped += r.Dropped
		if err != nil {
			return res, err
		}
		if err := out.CloseOrigin(g.Origin.Name); err != nil {
			return res, err
		}
	}
	return res, nil
}
