package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/babilon/dedup-domains/internal/config"
	"github.com/babilon/dedup-domains/internal/logging"
	"github.com/babilon/dedup-domains/internal/metrics"
	"github.com/babilon/dedup-domains/internal/prune"
)

var (
	pruneDir           string
	pruneInExt         string
	pruneOutExt        string
	pruneStrategy      string
	pruneLiteralFilter bool
	pruneReport        string
	pruneMetricsFile   string
)

// pruneCmd prunes a directory of lists or the files named on the command line
var pruneCmd = &cobra.Command{
	Use:   "prune [files...]",
	Short: "Remove redundant rows from DNSBL files",
	Long: `Reads every input, keeps the strongest row per domain and writes the
survivors next to each input with the output extension.

Without file arguments every '*<in-ext>' file in --dir is processed, in name
order. Regex rows are written first, followed by the surviving domain rows.

Example:
  dedup-domains prune -d /var/db/pfblockerng/dnsbl -x .fat -o .txt`,
	RunE: runPrune,
}

func init() {
	pruneCmd.Flags().StringVarP(&pruneDir, "dir", "d", "", "Directory holding the input files")
	pruneCmd.Flags().StringVarP(&pruneInExt, "in-ext", "x", ".fat", "Input file extension")
	pruneCmd.Flags().StringVarP(&pruneOutExt, "out-ext", "o", ".txt", "Output file extension")
	pruneCmd.Flags().StringVar(&pruneStrategy, "strategy", "indexed", "Record storage: indexed (re-read inputs) or inline (rows in memory)")
	pruneCmd.Flags().BoolVar(&pruneLiteralFilter, "literal-filter", false, "Remove domain rows matched by regex rows")
	pruneCmd.Flags().StringVar(&pruneReport, "report", "", "Write a YAML run report to this path")
	pruneCmd.Flags().StringVar(&pruneMetricsFile, "metrics-file", "", "Write Prometheus metrics in textfile format to this path")
}

// applyPruneFlags copies explicitly set flags over the loaded config.
func applyPruneFlags(cmd *cobra.Command, c *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("dir") {
		c.Prune.Directory = pruneDir
	}
	if flags.Changed("in-ext") {
		c.Prune.InputExt = pruneInExt
	}
	if flags.Changed("out-ext") {
		c.Prune.OutputExt = pruneOutExt
	}
	if flags.Changed("strategy") {
		c.Prune.Strategy = pruneStrategy
	}
	if flags.Changed("literal-filter") {
		c.Prune.LiteralFilter = pruneLiteralFilter
	}
	if flags.Changed("report") {
		c.Outputs.ReportFile = pruneReport
	}
	if flags.Changed("metrics-file") {
		c.Outputs.MetricsFile = pruneMetricsFile
	}
}

// resolveInputs prefers explicit files over the configured directory.
func resolveInputs(c *config.Config, args []string) ([]prune.Input, error) {
	files := args
	if len(files) == 0 {
		files = c.Prune.Files
	}
	if len(files) > 0 {
		inputs := make([]prune.Input, 0, len(files))
		for _, f := range files {
			in, err := prune.InputFor(f, c.Prune.OutputExt)
			if err != nil {
				return nil, err
			}
			inputs = append(inputs, in)
		}
		return inputs, nil
	}

	if c.Prune.Directory == "" {
		return nil, fmt.Errorf("specify a directory (--dir) or input files")
	}
	info, err := os.Stat(c.Prune.Directory)
	if err != nil {
		return nil, fmt.Errorf("specify an existing directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("specify an existing directory: %s is a file", c.Prune.Directory)
	}
	return prune.Discover(c.Prune.Directory, c.Prune.InputExt, c.Prune.OutputExt)
}

// runPrune executes one prune run
func runPrune(cmd *cobra.Command, args []string) error {
	applyPruneFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	inputs, err := resolveInputs(cfg, args)
	if err != nil {
		return err
	}
	boot := logs.Get(logging.CategoryBoot)
	if len(inputs) == 0 {
		boot.Warn("No input files found",
			zap.String("dir", cfg.Prune.Directory),
			zap.String("in_ext", cfg.Prune.InputExt))
	}

	opts, err := prune.OptionsFromConfig(cfg)
	if err != nil {
		return err
	}
	opts.Logs = logs

	driver, err := prune.NewDriver(opts, logger)
	if err != nil {
		return err
	}
	boot.Info("Begin processing",
		zap.String("run_id", driver.RunID()),
		zap.Int("files", len(inputs)),
		zap.String("strategy", string(opts.Strategy)),
		zap.Bool("literal_filter", opts.LiteralFilter))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rep, err := driver.Run(ctx, inputs)
	if err != nil {
		return err
	}

	if err := writeOutputs(rep, cfg.Outputs); err != nil {
		return err
	}
	if !silent {
		printSummary(cmd.OutOrStdout(), rep)
	}
	return nil
}

// writeOutputs writes the optional report and metrics files.
func writeOutputs(rep *prune.Report, out config.OutputsConfig) error {
	log := logs.Get(logging.CategoryReport)
	if out.ReportFile != "" {
		if err := rep.WriteReport(out.ReportFile); err != nil {
			return err
		}
		log.Info("Report written", zap.String("path", out.ReportFile))
	}
	if out.MetricsFile != "" {
		m := metrics.New()
		rep.Record(m)
		if err := m.WriteTextfile(out.MetricsFile); err != nil {
			return err
		}
		log.Info("Metrics written", zap.String("path", out.MetricsFile))
	}
	return nil
}

func printSummary(w io.Writer, rep *prune.Report) {
	fmt.Fprintf(w, "Run %s (%s)\n", rep.RunID, rep.Strategy)
	for _, f := range rep.Files {
		fmt.Fprintf(w, "  %-24s processed %d (regex %d), kept %d, pruned %d, ignored %d, written %d\n",
			f.Name, f.Processed, f.Regex, f.Kept, f.Pruned, f.Ignored, f.Live)
	}
	if rep.Filter != nil {
		fmt.Fprintf(w, "  literal filter: %d patterns killed %d records (%d invalid, %d timeouts)\n",
			rep.Filter.Patterns, rep.Filter.Killed, len(rep.Filter.Invalid), rep.Filter.Timeouts)
	}
	fmt.Fprintf(w, "Overwrites %d, subsumed %d, emitted %d, dropped %d in %s\n",
		rep.Trie.Replaced, rep.Trie.Subsumed, rep.Output.Emitted, rep.Output.Dropped, rep.Elapsed)
}
