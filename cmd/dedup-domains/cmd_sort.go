package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/babilon/dedup-domains/internal/canonsort"
	"github.com/babilon/dedup-domains/internal/logging"
)

// sortCmd writes each file in canonical order to <file>.sorted
var sortCmd = &cobra.Command{
	Use:   "sort [files...]",
	Short: "Write DNSBL files in canonical order for diffing",
	Long: `Writes <file>.sorted for every argument: regex rows first, then the
domain rows ordered by label from the top level down. Malformed rows are
left out.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSort,
}

func runSort(cmd *cobra.Command, args []string) error {
	log := logs.Get(logging.CategorySort)
	for _, path := range args {
		res, err := canonsort.File(path, log)
		if err != nil {
			return err
		}
		if !silent {
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d rows (%d regex, %d ignored) -> %s\n",
				path, res.Rows, res.Regex, res.Ignored, res.Output)
		}
	}
	return nil
}
