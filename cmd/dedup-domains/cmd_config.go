package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/babilon/dedup-domains/internal/logging"
)

// defaultConfigFile is where config init writes when no path is given.
const defaultConfigFile = "dedup-domains.yaml"

var configForce bool

// configCmd groups configuration file commands
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the YAML configuration file",
}

// configInitCmd writes the effective configuration to a file
var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write the effective configuration as YAML",
	Long: `Writes the configuration currently in effect (defaults, then --config,
then DEDUP_DOMAINS_* environment overrides) so it can be edited and passed
back with --config.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runConfigInit,
}

func init() {
	configInitCmd.Flags().BoolVarP(&configForce, "force", "f", false, "Overwrite an existing file")
	configCmd.AddCommand(configInitCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := defaultConfigFile
	if len(args) == 1 {
		path = args[0]
	}
	if _, err := os.Stat(path); err == nil && !configForce {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if err := cfg.Save(path); err != nil {
		return err
	}
	logs.Get(logging.CategoryBoot).Info("Configuration written", zap.String("path", path))
	if !silent {
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
	}
	return nil
}
