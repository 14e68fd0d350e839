package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ethpandaops/renderlab/pkg/simulate"
)

var scenariosCmd = &cobra.Command{
	Use:   "scenarios",
	Short: "List the known scenarios",
	RunE: func(cmd *cobra.Command, args []string) error {
		tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)

		for _, p := range simulate.Profiles() {
			fmt.Fprintf(tw, "%s\t%s\n", p.Scenario, p.Description)
		}

		if err := tw.Flush(); err != nil {
			return fmt.Errorf("writing scenarios: %w", err)
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(scenariosCmd)
}
