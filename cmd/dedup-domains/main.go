package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/babilon/dedup-domains/internal/config"
	"github.com/babilon/dedup-domains/internal/logging"
)

var (
	// Global flags
	verbose    bool
	silent     bool
	logFile    string
	configPath string

	// Set in PersistentPreRunE
	cfg    *config.Config
	logs   *logging.Loggers
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "dedup-domains",
	Short: "Prune redundant entries from pfBlockerNG DNSBL lists",
	Long: `dedup-domains consolidates pfBlockerNG DNSBL source files.

Every domain row of every input goes into one shared suffix tree. A row is
dropped when a stronger row already covers it: the same domain at equal or
greater match strength, or a parent domain with strength 1. Regex rows
(strength 2) are copied through unchanged and can optionally remove the
domain rows they match.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}

		logs, err = logging.New(cfg.Logging, logging.Options{
			Verbose: verbose,
			Silent:  silent,
			File:    logFile,
		})
		if err != nil {
			return err
		}
		logger = logs.Base()
		logs.Get(logging.CategoryBoot).Debug("Configuration loaded",
			zap.String("config", configPath),
			zap.String("strategy", cfg.Prune.Strategy))
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logs != nil {
			_ = logs.Close()
		}
	},
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().BoolVarP(&silent, "silent", "s", false, "Only log errors and skip the summary")
	rootCmd.PersistentFlags().StringVarP(&logFile, "log-file", "L", "", "Also append JSON logs to this file")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML config file (missing file means defaults)")

	rootCmd.AddCommand(pruneCmd)
	rootCmd.AddCommand(sortCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
